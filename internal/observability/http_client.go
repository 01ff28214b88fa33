package observability

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/adityaviki/sentinelops/internal/config"
	"github.com/adityaviki/sentinelops/internal/logging"
	"github.com/adityaviki/sentinelops/internal/sentinelerr"
)

// HTTPClient is the concrete Client implementation talking to a LogsQL-style
// document store over HTTP. It holds no pipeline state and is safe for
// concurrent use.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	indices    config.Indices
	httpClient *http.Client
	logger     *logging.Logger
}

// NewHTTPClient creates an HTTPClient with a connection pool tuned for
// frequent, concurrent, short-lived queries. indices scopes every query to
// the configured log/metrics/runbook index.
func NewHTTPClient(baseURL, apiKey string, indices config.Indices, queryTimeout time.Duration) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxConnsPerHost:     20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		indices: indices,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   queryTimeout,
		},
		logger: logging.GetLogger("observability.client"),
	}
}

func (c *HTTPClient) do(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	reqURL := fmt.Sprintf("%s%s", c.baseURL, endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &sentinelerr.BackendUnavailableError{Endpoint: c.baseURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("query failed: status=%d endpoint=%s body=%s", resp.StatusCode, endpoint, string(body))
		return nil, &sentinelerr.TransientBackendError{
			Op:  endpoint,
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body)),
		}
	}

	return body, nil
}

// servicesRow is one line of the distinct-services response.
type servicesRow struct {
	Service string `json:"service"`
}

// DistinctServices implements Client.
func (c *HTTPClient) DistinctServices(ctx context.Context, since time.Time) ([]string, error) {
	form := url.Values{"query": {buildServicesQuery(c.indices.Logs, since)}}
	body, err := c.do(ctx, "/select/logsql/stats_query", form)
	if err != nil {
		return nil, err
	}

	rows, err := parseJSONLines[servicesRow](body)
	if err != nil {
		return nil, &sentinelerr.MalformedDocumentError{Index: "services", Err: err}
	}

	services := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.Service != "" {
			services = append(services, r.Service)
		}
	}
	return services, nil
}

// bucketRow is one line of a bucketed series response.
type bucketRow struct {
	Time  time.Time `json:"_time"`
	Value *float64  `json:"value"`
}

// BucketedSeries implements Client.
func (c *HTTPClient) BucketedSeries(ctx context.Context, service, metric string, start, end time.Time) ([]Bucket, error) {
	query := buildSeriesQuery(c.indices.Metrics, service, metric, start, end)
	if query == "" {
		return nil, fmt.Errorf("unsupported metric %q", metric)
	}

	form := url.Values{"query": {query}}
	body, err := c.do(ctx, "/select/logsql/stats_query", form)
	if err != nil {
		return nil, err
	}

	rows, err := parseJSONLines[bucketRow](body)
	if err != nil {
		return nil, &sentinelerr.MalformedDocumentError{Index: metric, Err: err}
	}

	buckets := make([]Bucket, 0, len(rows))
	for _, r := range rows {
		if r.Value == nil {
			buckets = append(buckets, Bucket{Timestamp: r.Time, Valid: false})
			continue
		}
		buckets = append(buckets, Bucket{Timestamp: r.Time, Value: *r.Value, Valid: true})
	}
	return buckets, nil
}

// aggregateRow is the single-row response of an aggregate query.
type aggregateRow struct {
	Value *float64 `json:"value"`
}

// AggregateValue implements Client.
func (c *HTTPClient) AggregateValue(ctx context.Context, service, metric string, start, end time.Time) (float64, error) {
	query := buildAggregateQuery(c.indices.Metrics, service, metric, start, end)
	if query == "" {
		return 0, fmt.Errorf("unsupported metric %q", metric)
	}

	form := url.Values{"query": {query}}
	body, err := c.do(ctx, "/select/logsql/stats_query", form)
	if err != nil {
		return 0, err
	}

	rows, err := parseJSONLines[aggregateRow](body)
	if err != nil {
		return 0, &sentinelerr.MalformedDocumentError{Index: metric, Err: err}
	}
	if len(rows) == 0 || rows[0].Value == nil {
		return 0, nil
	}
	return *rows[0].Value, nil
}

// eventRow is one line of the cross-service event query response.
type eventRow struct {
	Time       time.Time `json:"_time"`
	Service    string    `json:"service"`
	Level      string    `json:"level"`
	Message    string    `json:"_msg"`
	TraceID    string    `json:"trace_id"`
	StatusCode int       `json:"status_code"`
}

// EventsInWindow implements Client.
func (c *HTTPClient) EventsInWindow(ctx context.Context, levels []string, start, end time.Time, limit int) ([]RawEvent, error) {
	query := buildEventsQuery(c.indices.Logs, levels, start, end, limit)
	form := url.Values{"query": {query}}
	if limit > 0 {
		form.Set("limit", strconv.Itoa(limit))
	}

	body, err := c.do(ctx, "/select/logsql/query", form)
	if err != nil {
		return nil, err
	}

	rows, err := parseJSONLines[eventRow](body)
	if err != nil {
		return nil, &sentinelerr.MalformedDocumentError{Index: "events", Err: err}
	}

	events := make([]RawEvent, 0, len(rows))
	for _, r := range rows {
		service := r.Service
		if service == "" {
			service = "unknown"
		}
		events = append(events, RawEvent{
			Timestamp:  r.Time,
			Service:    service,
			Level:      r.Level,
			Message:    r.Message,
			TraceID:    r.TraceID,
			StatusCode: r.StatusCode,
		})
	}
	return events, nil
}

// runbookRow is one line of the runbook search response.
type runbookRow struct {
	Title            string   `json:"title"`
	IncidentDate     string   `json:"incident_date"`
	ServicesAffected []string `json:"services_affected"`
	RootCause        string   `json:"root_cause"`
	ResolutionSteps  []string `json:"resolution_steps"`
	Tags             []string `json:"tags"`
	Score            float64  `json:"_score"`
}

// SearchRunbooks implements Client. Missing or unparseable incident_date
// falls back to the zero time rather than failing the whole document.
func (c *HTTPClient) SearchRunbooks(ctx context.Context, services, tags []string, maxResults int) ([]RawRunbook, error) {
	query := buildRunbookQuery(c.indices.Runbooks, services, tags)
	if query == "" {
		return nil, nil
	}

	form := url.Values{"query": {query}, "limit": {strconv.Itoa(maxResults)}}
	body, err := c.do(ctx, "/select/logsql/query", form)
	if err != nil {
		return nil, err
	}

	rows, err := parseJSONLines[runbookRow](body)
	if err != nil {
		return nil, &sentinelerr.MalformedDocumentError{Index: "runbooks", Err: err}
	}

	results := make([]RawRunbook, 0, len(rows))
	for _, r := range rows {
		date, _ := time.Parse(time.RFC3339, r.IncidentDate)
		results = append(results, RawRunbook{
			Title:            r.Title,
			IncidentDate:     date,
			ServicesAffected: r.ServicesAffected,
			RootCause:        r.RootCause,
			ResolutionSteps:  r.ResolutionSteps,
			Tags:             r.Tags,
			Score:            r.Score,
		})
	}
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

// parseJSONLines parses a JSON-lines response body into T rows, skipping
// blank lines. A line that does not parse into T is logged and skipped.
func parseJSONLines[T any](body []byte) ([]T, error) {
	var rows []T
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var row T
		if err := json.Unmarshal(line, &row); err != nil {
			logging.GetLogger("observability.client").WarnWithFields("skipping malformed document",
				logging.Field("error", err.Error()))
			continue
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan response: %w", err)
	}
	return rows, nil
}
