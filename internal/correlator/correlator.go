// Package correlator gathers cross-service error/warning events around an
// anomaly set into a single ordered narrative.
package correlator

import (
	"context"
	"sort"
	"time"

	"github.com/adityaviki/sentinelops/internal/logging"
	"github.com/adityaviki/sentinelops/internal/models"
	"github.com/adityaviki/sentinelops/internal/observability"
)

// levels is the closed set of event levels the correlator surfaces.
var levels = []string{"error", "warn"}

// Correlator fetches related events across all services within a window
// centered on the earliest anomaly.
type Correlator struct {
	client        observability.Client
	windowMinutes int
	maxEvents     int
	logger        *logging.Logger
}

// New creates a Correlator.
func New(client observability.Client, windowMinutes, maxEvents int) *Correlator {
	return &Correlator{
		client:        client,
		windowMinutes: windowMinutes,
		maxEvents:     maxEvents,
		logger:        logging.GetLogger("correlator"),
	}
}

// Correlate returns the events within [earliest-window, earliest+window],
// where earliest is the earliest anomaly's DetectedAt. Returns an empty
// slice, not an error, if anomalies is empty.
func (c *Correlator) Correlate(ctx context.Context, anomalies []models.Anomaly) ([]models.CorrelatedEvent, error) {
	if len(anomalies) == 0 {
		return nil, nil
	}

	earliest := anomalies[0].DetectedAt
	for _, a := range anomalies[1:] {
		if a.DetectedAt.Before(earliest) {
			earliest = a.DetectedAt
		}
	}

	window := time.Duration(c.windowMinutes) * time.Minute
	start := earliest.Add(-window)
	end := earliest.Add(window)

	raw, err := c.client.EventsInWindow(ctx, levels, start, end, c.maxEvents)
	if err != nil {
		c.logger.WarnWithFields("correlation query failed", logging.Field("error", err.Error()))
		return nil, err
	}

	events := dedupeAndOrder(raw)
	if len(events) > c.maxEvents {
		events = events[:c.maxEvents]
	}
	return events, nil
}

// dedupeAndOrder folds RawEvents into CorrelatedEvents, removes duplicates
// by (timestamp, service, message), and orders ascending by timestamp with
// service as a tiebreaker.
func dedupeAndOrder(raw []observability.RawEvent) []models.CorrelatedEvent {
	type dedupKey struct {
		ts      int64
		service string
		message string
	}
	seen := make(map[dedupKey]struct{}, len(raw))

	events := make([]models.CorrelatedEvent, 0, len(raw))
	for _, r := range raw {
		k := dedupKey{ts: r.Timestamp.UnixNano(), service: r.Service, message: r.Message}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}

		service := r.Service
		if service == "" {
			service = "unknown"
		}

		events = append(events, models.CorrelatedEvent{
			Timestamp:  r.Timestamp,
			Service:    service,
			Level:      models.EventLevel(r.Level),
			Message:    r.Message,
			TraceID:    r.TraceID,
			StatusCode: r.StatusCode,
		})
	}

	sort.Slice(events, func(i, j int) bool {
		if !events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Timestamp.Before(events[j].Timestamp)
		}
		return events[i].Service < events[j].Service
	})

	return events
}
