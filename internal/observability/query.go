package observability

import (
	"fmt"
	"strings"
	"time"
)

// buildStreamFilter scopes a query to one configured index/stream
// (log_index, metrics_index, runbook_index) via a LogsQL stream filter.
func buildStreamFilter(index string) string {
	if index == "" {
		return ""
	}
	return fmt.Sprintf(`_stream:{index="%s"}`, index)
}

// buildTimeFilter renders a LogsQL-style absolute time range filter.
func buildTimeFilter(start, end time.Time) string {
	return fmt.Sprintf("_time:[%s, %s]", start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
}

// buildServiceFilter constructs a query selecting documents for a single
// service within a time range, optionally restricted to a log level and
// scoped to a configured index.
func buildServiceFilter(index, service, level string, start, end time.Time) string {
	var filters []string
	if s := buildStreamFilter(index); s != "" {
		filters = append(filters, s)
	}
	if service != "" {
		filters = append(filters, fmt.Sprintf(`service:"%s"`, service))
	}
	if level != "" {
		filters = append(filters, fmt.Sprintf(`level:"%s"`, level))
	}
	filters = append(filters, buildTimeFilter(start, end))
	return strings.Join(filters, " ")
}

// buildSeriesQuery constructs the per-minute bucketed aggregation query for
// a metric, scoped to the metrics index. error_rate counts documents at
// level=error; latency_p99 computes the 99th percentile of duration_ms
// among documents that carry the field.
func buildSeriesQuery(index, service, metric string, start, end time.Time) string {
	switch metric {
	case "error_rate":
		q := buildServiceFilter(index, service, "error", start, end)
		return fmt.Sprintf("%s | stats by (_time:1m) count() value", q)
	case "latency_p99":
		base := buildServiceFilter(index, service, "", start, end)
		q := fmt.Sprintf("%s duration_ms:*", base)
		return fmt.Sprintf("%s | stats by (_time:1m) quantile(0.99, duration_ms) value", q)
	default:
		return ""
	}
}

// buildAggregateQuery constructs the single-value aggregation query for the
// lookback window, mirroring buildSeriesQuery without the per-minute split.
func buildAggregateQuery(index, service, metric string, start, end time.Time) string {
	switch metric {
	case "error_rate":
		q := buildServiceFilter(index, service, "error", start, end)
		return fmt.Sprintf("%s | stats count() value", q)
	case "latency_p99":
		base := buildServiceFilter(index, service, "", start, end)
		q := fmt.Sprintf("%s duration_ms:*", base)
		return fmt.Sprintf("%s | stats quantile(0.99, duration_ms) value", q)
	default:
		return ""
	}
}

// buildEventsQuery constructs the cross-service correlation query selecting
// documents at any of levels within a time range, scoped to the logs index.
func buildEventsQuery(index string, levels []string, start, end time.Time, limit int) string {
	var levelClauses []string
	for _, l := range levels {
		levelClauses = append(levelClauses, fmt.Sprintf(`level:"%s"`, l))
	}
	var filters []string
	if s := buildStreamFilter(index); s != "" {
		filters = append(filters, s)
	}
	filters = append(filters, fmt.Sprintf("(%s)", strings.Join(levelClauses, " OR ")), buildTimeFilter(start, end))
	query := strings.Join(filters, " ")
	if limit > 0 {
		query = fmt.Sprintf("%s | limit %d", query, limit)
	}
	return query
}

// buildServicesQuery constructs the distinct-services discovery query,
// scoped to the logs index.
func buildServicesQuery(index string, since time.Time) string {
	var filters []string
	if s := buildStreamFilter(index); s != "" {
		filters = append(filters, s)
	}
	filters = append(filters, fmt.Sprintf("_time:[%s, now]", since.UTC().Format(time.RFC3339)))
	return fmt.Sprintf("%s | stats by (service) count() value", strings.Join(filters, " "))
}

// buildRunbookQuery constructs a "should match any" bool/should-style query
// over services and tags, scoped to the runbook index.
func buildRunbookQuery(index string, services, tags []string) string {
	var clauses []string
	for _, s := range services {
		clauses = append(clauses, fmt.Sprintf(`services_affected:"%s"`, s))
	}
	for _, tag := range tags {
		clauses = append(clauses, fmt.Sprintf(`tags:"%s"`, tag))
	}
	if len(clauses) == 0 {
		return ""
	}
	query := strings.Join(clauses, " OR ")
	if s := buildStreamFilter(index); s != "" {
		query = fmt.Sprintf("%s (%s)", s, query)
	}
	return query
}
