// Package runbooks searches historical incident runbooks relevant to a set
// of anomalies.
package runbooks

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/adityaviki/sentinelops/internal/logging"
	"github.com/adityaviki/sentinelops/internal/models"
	"github.com/adityaviki/sentinelops/internal/observability"
)

// cacheSize bounds the number of distinct (services, tags) search keys held
// in memory; cacheTTL bounds how long a cached result is trusted before the
// backend is consulted again. Repeated incidents on the same service set are
// the common case the cache targets.
const (
	cacheSize = 256
	cacheTTL  = 5 * time.Minute
)

// Matcher queries the observability backend's runbook index.
type Matcher struct {
	client     observability.Client
	maxResults int
	cache      *expirable.LRU[string, []models.RunbookMatch]
	logger     *logging.Logger
}

// New creates a Matcher.
func New(client observability.Client, maxResults int) *Matcher {
	return &Matcher{
		client:     client,
		maxResults: maxResults,
		cache:      expirable.NewLRU[string, []models.RunbookMatch](cacheSize, nil, cacheTTL),
		logger:     logging.GetLogger("runbooks.matcher"),
	}
}

// FindMatching returns up to maxResults runbook entries relevant to
// anomalies, ordered by relevance score descending then incident date
// descending. A backend failure yields an empty list, never an error —
// runbook enrichment is optional and must never abort the pipeline.
func (m *Matcher) FindMatching(ctx context.Context, anomalies []models.Anomaly) []models.RunbookMatch {
	if len(anomalies) == 0 {
		return nil
	}

	services := models.UnionServices(anomalies)
	tags := uniqueMetricTags(anomalies)

	key := cacheKey(services, tags)
	if cached, ok := m.cache.Get(key); ok {
		return cached
	}

	raw, err := m.client.SearchRunbooks(ctx, services, tags, m.maxResults)
	if err != nil {
		m.logger.WarnWithFields("runbook search failed, proceeding without runbooks",
			logging.Field("error", err.Error()))
		return nil
	}

	matches := make([]models.RunbookMatch, 0, len(raw))
	for _, r := range raw {
		matches = append(matches, models.RunbookMatch{
			Title:            r.Title,
			IncidentDate:     r.IncidentDate,
			ServicesAffected: r.ServicesAffected,
			RootCause:        r.RootCause,
			ResolutionSteps:  r.ResolutionSteps,
			Tags:             r.Tags,
			Score:            r.Score,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].IncidentDate.After(matches[j].IncidentDate)
	})

	if len(matches) > m.maxResults {
		matches = matches[:m.maxResults]
	}

	m.cache.Add(key, matches)
	return matches
}

// cacheKey builds a deterministic key from a (services, tags) search, both
// of which are already deduplicated by the caller; sorting here guards only
// against call-order differences between ticks, not duplicates.
func cacheKey(services, tags []string) string {
	sortedServices := append([]string(nil), services...)
	sort.Strings(sortedServices)
	sortedTags := append([]string(nil), tags...)
	sort.Strings(sortedTags)
	return strings.Join(sortedServices, ",") + "|" + strings.Join(sortedTags, ",")
}

// uniqueMetricTags returns the deduplicated set of metric names among
// anomalies, used as search keywords.
func uniqueMetricTags(anomalies []models.Anomaly) []string {
	seen := make(map[string]struct{}, len(anomalies))
	tags := make([]string, 0, len(anomalies))
	for _, a := range anomalies {
		m := string(a.Metric)
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		tags = append(tags, m)
	}
	return tags
}
