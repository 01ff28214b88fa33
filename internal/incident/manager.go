// Package incident groups anomalies into deduplicated incident candidates,
// persists them, and fans notifications out to configured channels.
package incident

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/adityaviki/sentinelops/internal/config"
	"github.com/adityaviki/sentinelops/internal/logging"
	"github.com/adityaviki/sentinelops/internal/metrics"
	"github.com/adityaviki/sentinelops/internal/models"
	"github.com/adityaviki/sentinelops/internal/notify"
)

// Manager creates Incident records from anomaly groupings, applying
// cooldown-based deduplication before committing to the store and
// notifying.
type Manager struct {
	store          *Store
	pagingSeverity atomic.Pointer[map[models.Severity]struct{}]
	chat           notify.Notifier
	paging         notify.Notifier
	metrics        *metrics.Metrics
	logger         *logging.Logger
}

// New creates a Manager. chat and paging may be nil when the corresponding
// channel is not configured; Create then silently skips that channel.
// store must already be configured with the same dedup_cooldown_minutes
// as cfg — the cooldown window itself lives on the Store, the single
// source of truth for both dedup lookups and lazy status transitions.
func New(store *Store, cfg config.Incidents, chat, paging notify.Notifier, m *metrics.Metrics) *Manager {
	mgr := &Manager{
		store:   store,
		chat:    chat,
		paging:  paging,
		metrics: m,
		logger:  logging.GetLogger("incident.manager"),
	}
	mgr.SetPagingSeverities(cfg.PagerdutySeverities)
	return mgr
}

// SetPagingSeverities swaps in the set of severities routed to the paging
// channel, applied to the next dispatch. Called by the config hot-reload
// watcher.
func (m *Manager) SetPagingSeverities(severities []string) {
	paged := make(map[models.Severity]struct{}, len(severities))
	for _, s := range severities {
		paged[models.Severity(s)] = struct{}{}
	}
	m.pagingSeverity.Store(&paged)
}

// IsDuplicate reports whether an incident with the candidate's dedup key is
// still within its cooldown window. Callers use this to skip expensive
// correlation/analysis work before it has been performed.
func (m *Manager) IsDuplicate(anomalies []models.Anomaly) bool {
	key := models.GroupDedupKey(anomalies)
	_, found := m.store.FindActiveByDedupKey(key)
	return found
}

// CleanupStaleEntries is the tick-end hook for bounding the dedup index.
// It is a deliberate no-op: the Store's own bounded-retention ring already
// evicts a dedup entry the moment its owning incident falls off the back
// of the list, so there is no side dedup map here that could grow without
// bound. Called at the end of every tick for parity with that lifecycle
// point, and as a seam for a future dedup index that outlives the
// incident list.
func (m *Manager) CleanupStaleEntries() {}

// Create commits a new incident for anomalies, unless an active incident
// with the same dedup key already exists, in which case it suppresses
// silently (no new incident, no notification) and returns (nil, false).
func (m *Manager) Create(
	ctx context.Context,
	anomalies []models.Anomaly,
	events []models.CorrelatedEvent,
	matches []models.RunbookMatch,
	analysis *models.Analysis,
) (*models.Incident, bool) {
	if len(anomalies) == 0 {
		return nil, false
	}

	key := models.GroupDedupKey(anomalies)
	if _, found := m.store.FindActiveByDedupKey(key); found {
		m.logger.InfoWithFields("incident suppressed by active cooldown", logging.Field("dedup_key", key))
		if m.metrics != nil {
			m.metrics.DedupSuppressions.Inc()
		}
		return nil, false
	}

	now := time.Now().UTC()
	severity := models.WorstSeverity(anomalies)
	title := fallbackTitle(severity, anomalies)
	if analysis != nil && analysis.Summary != "" {
		title = analysis.Summary
	}

	incident := &models.Incident{
		ID:               m.allocateID(now),
		CreatedAt:        now,
		Severity:         severity,
		Title:            title,
		Services:         models.UnionServices(anomalies),
		Anomalies:        anomalies,
		CorrelatedEvents: events,
		MatchedRunbooks:  matches,
		Analysis:         analysis,
		DedupKey:         key,
		Status:           models.StatusActive,
	}

	if err := m.store.Put(incident); err != nil {
		// Wallclock-second id collided after allocation raced with another
		// Put; retry once with a freshly allocated id.
		incident.ID = m.allocateID(time.Now().UTC())
		if err := m.store.Put(incident); err != nil {
			m.logger.WarnWithFields("failed to persist incident after retry", logging.Field("error", err.Error()))
			return nil, false
		}
	}

	m.logger.InfoWithFields("incident created",
		logging.Field("id", incident.ID),
		logging.Field("severity", string(incident.Severity)),
		logging.Field("title", incident.Title),
	)
	if m.metrics != nil {
		m.metrics.IncidentsTotal.Inc()
		m.metrics.IncidentsTracked.Set(float64(m.store.Count()))
	}

	m.dispatch(ctx, incident)
	return incident, true
}

// dispatch fans the incident out to the chat channel (always) and the
// paging channel (only when its severity is configured for paging). Both
// calls are best-effort: a failure is logged and counted, never propagated.
func (m *Manager) dispatch(ctx context.Context, incident *models.Incident) {
	if m.chat != nil {
		if err := m.chat.Notify(ctx, incident); err != nil {
			m.logger.WarnWithFields("chat notification failed",
				logging.Field("incident_id", incident.ID), logging.Field("error", err.Error()))
			if m.metrics != nil {
				m.metrics.NotifierFailures.WithLabelValues(m.chat.Channel()).Inc()
			}
		}
	}

	paged := *m.pagingSeverity.Load()
	if _, shouldPage := paged[incident.Severity]; shouldPage && m.paging != nil {
		if err := m.paging.Notify(ctx, incident); err != nil {
			m.logger.WarnWithFields("paging notification failed",
				logging.Field("incident_id", incident.ID), logging.Field("error", err.Error()))
			if m.metrics != nil {
				m.metrics.NotifierFailures.WithLabelValues(m.paging.Channel()).Inc()
			}
		}
	}
}

// allocateID formats the wallclock-derived id, resolving a same-second
// collision by appending the smallest free positive suffix.
func (m *Manager) allocateID(now time.Time) string {
	base := "INC-" + now.Format("20060102150405")
	if _, exists := m.store.Get(base); !exists {
		return base
	}
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s-%d", base, n)
		if _, exists := m.store.Get(candidate); !exists {
			return candidate
		}
	}
}

// fallbackTitle builds the deterministic title used when no analysis
// summary is available.
func fallbackTitle(severity models.Severity, anomalies []models.Anomaly) string {
	services := models.UnionServices(anomalies)
	metrics := uniqueSortedMetrics(anomalies)
	return fmt.Sprintf("%s: %s anomaly on %s", severity, strings.Join(metrics, ", "), strings.Join(services, ", "))
}

func uniqueSortedMetrics(anomalies []models.Anomaly) []string {
	seen := make(map[string]struct{}, len(anomalies))
	var out []string
	for _, a := range anomalies {
		m := string(a.Metric)
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
