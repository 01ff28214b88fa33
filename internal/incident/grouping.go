package incident

import "github.com/adityaviki/sentinelops/internal/models"

// GroupAnomalies partitions the anomalies detected in a single tick into
// incident candidates. Anomalies whose service is among correlatedServices
// already proved to co-occur within the correlator's time window, so they
// are merged into one candidate; every other anomaly is grouped with its
// same-service siblings. In the common case where a tick's anomalies share
// an already-correlated service set, this yields exactly one candidate.
func GroupAnomalies(anomalies []models.Anomaly, correlatedServices []string) [][]models.Anomaly {
	if len(anomalies) == 0 {
		return nil
	}

	correlated := make(map[string]struct{}, len(correlatedServices))
	for _, svc := range correlatedServices {
		correlated[svc] = struct{}{}
	}

	var merged []models.Anomaly
	perService := make(map[string][]models.Anomaly)
	var serviceOrder []string

	for _, a := range anomalies {
		if _, ok := correlated[a.Service]; ok {
			merged = append(merged, a)
			continue
		}
		if _, seen := perService[a.Service]; !seen {
			serviceOrder = append(serviceOrder, a.Service)
		}
		perService[a.Service] = append(perService[a.Service], a)
	}

	var groups [][]models.Anomaly
	if len(merged) > 0 {
		groups = append(groups, merged)
	}
	for _, svc := range serviceOrder {
		groups = append(groups, perService[svc])
	}
	return groups
}
