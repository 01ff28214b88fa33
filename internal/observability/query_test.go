package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildSeriesQuery_ErrorRateFiltersByLevel(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	q := buildSeriesQuery("app-metrics-*", "checkout", "error_rate", start, end)
	assert.Contains(t, q, `service:"checkout"`)
	assert.Contains(t, q, `level:"error"`)
	assert.Contains(t, q, `index="app-metrics-*"`)
}

func TestBuildSeriesQuery_LatencyRequiresDurationField(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	q := buildSeriesQuery("app-metrics-*", "checkout", "latency_p99", start, end)
	assert.Contains(t, q, "duration_ms:*")
	assert.Contains(t, q, "quantile(0.99")
}

func TestBuildSeriesQuery_UnknownMetricReturnsEmpty(t *testing.T) {
	start := time.Now()
	assert.Empty(t, buildSeriesQuery("app-metrics-*", "checkout", "cpu_usage", start, start.Add(time.Minute)))
}

func TestBuildEventsQuery_CombinesLevelsWithOr(t *testing.T) {
	start := time.Now()
	q := buildEventsQuery("app-logs-*", []string{"error", "warn"}, start, start.Add(time.Minute), 50)
	assert.Contains(t, q, `level:"error"`)
	assert.Contains(t, q, `level:"warn"`)
	assert.Contains(t, q, "OR")
	assert.Contains(t, q, "limit 50")
	assert.Contains(t, q, `index="app-logs-*"`)
}

func TestBuildRunbookQuery_EmptyWhenNoCriteria(t *testing.T) {
	assert.Empty(t, buildRunbookQuery("incident-runbooks", nil, nil))
}

func TestBuildRunbookQuery_ScopedToRunbookIndex(t *testing.T) {
	q := buildRunbookQuery("incident-runbooks", []string{"checkout"}, nil)
	assert.Contains(t, q, `index="incident-runbooks"`)
	assert.Contains(t, q, `services_affected:"checkout"`)
}

func TestBuildStreamFilter_EmptyIndexProducesNoFilter(t *testing.T) {
	assert.Empty(t, buildStreamFilter(""))
}
