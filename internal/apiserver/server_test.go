package apiserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adityaviki/sentinelops/internal/incident"
	"github.com/adityaviki/sentinelops/internal/models"
)

func newTestServer(t *testing.T) (*Server, *incident.Store) {
	t.Helper()
	store := incident.NewStore(10, 30*time.Minute)
	s := New(0, store)
	return s, store
}

func putIncident(t *testing.T, store *incident.Store, id string, sev models.Severity, service string) {
	t.Helper()
	inc := &models.Incident{
		ID:        id,
		CreatedAt: time.Now(),
		Severity:  sev,
		Title:     id,
		Services:  []string{service},
		Anomalies: []models.Anomaly{
			{Service: service, Metric: models.MetricErrorRate, ZScore: 6.0, Severity: sev},
		},
		DedupKey: id + "-key",
		Status:   models.StatusActive,
	}
	require.NoError(t, store.Put(inc))
}

func TestHandleHealth_ReportsIncidentsTracked(t *testing.T) {
	s, store := newTestServer(t)
	putIncident(t, store, "INC-1", models.SeverityP2, "checkout")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(1), body["incidents_tracked"])
}

func TestHandleServices_DerivesCriticalStatus(t *testing.T) {
	s, store := newTestServer(t)
	putIncident(t, store, "INC-1", models.SeverityP1, "checkout")

	req := httptest.NewRequest(http.MethodGet, "/services", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	var body struct {
		Services []map[string]any `json:"services"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Services, 1)
	assert.Equal(t, "checkout", body.Services[0]["service"])
	assert.Equal(t, "critical", body.Services[0]["status"])
}

func TestHandleListIncidents_RespectsLimitAndOffset(t *testing.T) {
	s, store := newTestServer(t)
	putIncident(t, store, "INC-1", models.SeverityP3, "checkout")
	putIncident(t, store, "INC-2", models.SeverityP3, "payments")
	putIncident(t, store, "INC-3", models.SeverityP3, "auth")

	req := httptest.NewRequest(http.MethodGet, "/incidents?limit=1&offset=1", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	var body struct {
		Total     int                `json:"total"`
		Incidents []models.Incident `json:"incidents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Total)
	require.Len(t, body.Incidents, 1)
	assert.Equal(t, "INC-2", body.Incidents[0].ID)
}

func TestHandleGetIncident_ReturnsFullIncident(t *testing.T) {
	s, store := newTestServer(t)
	putIncident(t, store, "INC-1", models.SeverityP2, "checkout")

	req := httptest.NewRequest(http.MethodGet, "/incidents/INC-1", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	var inc models.Incident
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inc))
	assert.Equal(t, "INC-1", inc.ID)
}

func TestHandleGetIncident_UnknownIDReturns404(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/incidents/missing", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 404, rec.Code)
}

func TestRequestIDMiddleware_GeneratesHeaderWhenAbsent(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestRequestIDMiddleware_PreservesIncomingID(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "caller-supplied-id")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "caller-supplied-id", rec.Header().Get(requestIDHeader))
}
