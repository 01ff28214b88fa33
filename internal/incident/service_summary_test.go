package incident

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adityaviki/sentinelops/internal/models"
)

func TestServiceSummary_DerivesCriticalFromP1(t *testing.T) {
	s := NewStore(10, 30*time.Minute)
	inc := newTestIncident("INC-1", time.Now(), "a")
	inc.Anomalies = []models.Anomaly{{Service: "checkout", Severity: models.SeverityP1}}
	require.NoError(t, s.Put(inc))

	summary := s.ServiceSummary()
	require.Len(t, summary, 1)
	assert.Equal(t, "critical", summary[0].Status)
	assert.Equal(t, models.SeverityP1, summary[0].WorstSeverity)
}

func TestServiceSummary_DerivesWarningFromP2(t *testing.T) {
	s := NewStore(10, 30*time.Minute)
	inc := newTestIncident("INC-1", time.Now(), "a")
	inc.Anomalies = []models.Anomaly{{Service: "checkout", Severity: models.SeverityP2}}
	require.NoError(t, s.Put(inc))

	summary := s.ServiceSummary()
	require.Len(t, summary, 1)
	assert.Equal(t, "warning", summary[0].Status)
}

func TestServiceSummary_DerivesDegradedFromP3AndP4(t *testing.T) {
	s := NewStore(10, 30*time.Minute)
	incA := newTestIncident("INC-1", time.Now(), "a")
	incA.Anomalies = []models.Anomaly{{Service: "checkout", Severity: models.SeverityP3}}
	incB := newTestIncident("INC-2", time.Now(), "b")
	incB.Anomalies = []models.Anomaly{{Service: "inventory", Severity: models.SeverityP4}}
	require.NoError(t, s.Put(incA))
	require.NoError(t, s.Put(incB))

	summary := s.ServiceSummary()
	byService := make(map[string]ServiceHealth, len(summary))
	for _, h := range summary {
		byService[h.Service] = h
	}
	assert.Equal(t, "degraded", byService["checkout"].Status)
	assert.Equal(t, "degraded", byService["inventory"].Status)
}

func TestServiceSummary_OrdersMostSevereFirst(t *testing.T) {
	s := NewStore(10, 30*time.Minute)
	incA := newTestIncident("INC-1", time.Now(), "a")
	incA.Anomalies = []models.Anomaly{{Service: "inventory", Severity: models.SeverityP4}}
	incB := newTestIncident("INC-2", time.Now(), "b")
	incB.Anomalies = []models.Anomaly{{Service: "checkout", Severity: models.SeverityP1}}
	require.NoError(t, s.Put(incA))
	require.NoError(t, s.Put(incB))

	summary := s.ServiceSummary()
	require.Len(t, summary, 2)
	assert.Equal(t, "checkout", summary[0].Service)
	assert.Equal(t, "inventory", summary[1].Service)
}

func TestServiceSummary_TracksIncidentCountAndLastIncident(t *testing.T) {
	s := NewStore(10, 30*time.Minute)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	incA := newTestIncident("INC-1", base, "a")
	incA.Anomalies = []models.Anomaly{{Service: "checkout", Severity: models.SeverityP3}}
	incB := newTestIncident("INC-2", base.Add(time.Hour), "b")
	incB.Anomalies = []models.Anomaly{{Service: "checkout", Severity: models.SeverityP2}}
	require.NoError(t, s.Put(incA))
	require.NoError(t, s.Put(incB))

	summary := s.ServiceSummary()
	require.Len(t, summary, 1)
	assert.Equal(t, 2, summary[0].IncidentCount)
	assert.Equal(t, "INC-2", summary[0].LastIncidentID)
}
