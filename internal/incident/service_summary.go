package incident

import (
	"sort"
	"time"

	"github.com/adityaviki/sentinelops/internal/models"
)

// ServiceHealth is the per-service derived health view served by the read
// API's /services route.
type ServiceHealth struct {
	Service         string
	Status          string // critical | warning | degraded | healthy
	LastIncidentID  string
	LastIncidentAt  time.Time
	IncidentCount   int
	WorstSeverity   models.Severity
	RecentAnomalies []models.Anomaly
}

// ServiceSummary derives a per-service health view from every retained
// incident: status is critical if any constituent anomaly is P1, warning
// if P2, degraded if P3/P4, else healthy. Services are ordered most to
// least severe.
func (s *Store) ServiceSummary() []ServiceHealth {
	s.mu.RLock()
	items := make([]*models.Incident, len(s.items))
	copy(items, s.items)
	s.mu.RUnlock()

	byService := make(map[string]*ServiceHealth)
	var order []string

	for _, inc := range items {
		counted := make(map[string]struct{}, len(inc.Anomalies))
		for _, a := range inc.Anomalies {
			entry, ok := byService[a.Service]
			if !ok {
				entry = &ServiceHealth{Service: a.Service, WorstSeverity: models.SeverityP4}
				byService[a.Service] = entry
				order = append(order, a.Service)
			}
			if _, done := counted[a.Service]; !done {
				counted[a.Service] = struct{}{}
				entry.IncidentCount++
			}
			if entry.LastIncidentAt.IsZero() || inc.CreatedAt.After(entry.LastIncidentAt) {
				entry.LastIncidentAt = inc.CreatedAt
				entry.LastIncidentID = inc.ID
			}
			if a.Severity.Worse(entry.WorstSeverity) {
				entry.WorstSeverity = a.Severity
			}
			entry.RecentAnomalies = append(entry.RecentAnomalies, a)
		}
	}

	out := make([]ServiceHealth, 0, len(order))
	for _, svc := range order {
		entry := byService[svc]
		entry.Status = statusForSeverity(entry.WorstSeverity)
		out = append(out, *entry)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].WorstSeverity.Worse(out[j].WorstSeverity)
	})
	return out
}

func statusForSeverity(sev models.Severity) string {
	switch sev {
	case models.SeverityP1:
		return "critical"
	case models.SeverityP2:
		return "warning"
	default:
		return "degraded"
	}
}
