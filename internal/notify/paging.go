package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/adityaviki/sentinelops/internal/logging"
	"github.com/adityaviki/sentinelops/internal/models"
)

const pagerdutyIncidentsURL = "https://api.pagerduty.com/incidents"

var urgencyMap = map[models.Severity]string{
	models.SeverityP1: "high",
	models.SeverityP2: "high",
	models.SeverityP3: "low",
	models.SeverityP4: "low",
}

// PagingNotifier creates a PagerDuty incident for high-severity events.
type PagingNotifier struct {
	apiKey     string
	serviceID  string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewPagingNotifier creates a PagingNotifier.
func NewPagingNotifier(apiKey, serviceID string) *PagingNotifier {
	return &PagingNotifier{
		apiKey:    apiKey,
		serviceID: serviceID,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxConnsPerHost:     5,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logging.GetLogger("notify.paging"),
	}
}

// Channel identifies this notifier for logging and metrics.
func (p *PagingNotifier) Channel() string { return "paging" }

// Notify creates a PagerDuty incident. A non-2xx response is reported as
// an error; the caller treats it as best-effort.
func (p *PagingNotifier) Notify(ctx context.Context, incident *models.Incident) error {
	urgency, ok := urgencyMap[incident.Severity]
	if !ok {
		urgency = "low"
	}

	bodyLines := []string{
		fmt.Sprintf("Severity: %s", incident.Severity),
		fmt.Sprintf("Services: %s", strings.Join(incident.Services, ", ")),
	}
	if incident.Analysis != nil {
		bodyLines = append(bodyLines, fmt.Sprintf("Root cause: %s", incident.Analysis.RootCause))
		for i, step := range incident.Analysis.RemediationSteps {
			bodyLines = append(bodyLines, fmt.Sprintf("  %d. %s", i+1, step))
		}
	}

	payload := map[string]any{
		"incident": map[string]any{
			"type":  "incident",
			"title": fmt.Sprintf("[%s] %s", incident.Severity, incident.Title),
			"service": map[string]any{
				"id":   p.serviceID,
				"type": "service_reference",
			},
			"urgency": urgency,
			"body": map[string]any{
				"type":    "incident_body",
				"details": strings.Join(bodyLines, "\n"),
			},
			"incident_key": incident.DedupKey,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("paging notifier: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pagerdutyIncidentsURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("paging notifier: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/vnd.pagerduty+json;version=2")
	req.Header.Set("Authorization", "Token token="+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("paging notifier: request failed: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("paging notifier: unexpected status %d", resp.StatusCode)
	}

	p.logger.InfoWithFields("pagerduty incident created", logging.Field("incident_id", incident.ID))
	return nil
}
