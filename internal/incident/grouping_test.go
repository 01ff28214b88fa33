package incident

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adityaviki/sentinelops/internal/models"
)

func TestGroupAnomalies_MergesAnomaliesInCorrelatedServiceSet(t *testing.T) {
	anomalies := []models.Anomaly{
		{Service: "checkout", Metric: models.MetricErrorRate},
		{Service: "payments", Metric: models.MetricLatencyP99},
	}
	groups := GroupAnomalies(anomalies, []string{"checkout", "payments"})
	require.Len(t, groups, 1)
	assert.Len(t, groups[0], 2)
}

func TestGroupAnomalies_SplitsUncorrelatedServicesPerService(t *testing.T) {
	anomalies := []models.Anomaly{
		{Service: "checkout", Metric: models.MetricErrorRate},
		{Service: "inventory", Metric: models.MetricLatencyP99},
	}
	groups := GroupAnomalies(anomalies, nil)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 1)
	assert.Len(t, groups[1], 1)
}

func TestGroupAnomalies_SameServiceMultipleMetricsOneGroup(t *testing.T) {
	anomalies := []models.Anomaly{
		{Service: "checkout", Metric: models.MetricErrorRate},
		{Service: "checkout", Metric: models.MetricLatencyP99},
	}
	groups := GroupAnomalies(anomalies, nil)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0], 2)
}

func TestGroupAnomalies_EmptyInputReturnsNil(t *testing.T) {
	assert.Nil(t, GroupAnomalies(nil, nil))
}

func TestGroupAnomalies_MixedCorrelatedAndUncorrelated(t *testing.T) {
	anomalies := []models.Anomaly{
		{Service: "checkout", Metric: models.MetricErrorRate},
		{Service: "payments", Metric: models.MetricErrorRate},
		{Service: "inventory", Metric: models.MetricLatencyP99},
	}
	groups := GroupAnomalies(anomalies, []string{"checkout", "payments"})
	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 2) // merged checkout+payments
	assert.Len(t, groups[1], 1) // inventory alone
}
