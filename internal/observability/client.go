// Package observability wraps the document-store backend that the
// detector, correlator, and runbook matcher query for raw telemetry.
package observability

import (
	"context"
	"time"
)

// Bucket is a single per-minute aggregate value. Null buckets (no data in
// that minute) are represented by Valid == false and excluded from
// baseline statistics.
type Bucket struct {
	Timestamp time.Time
	Value     float64
	Valid     bool
}

// RawEvent is an unparsed log/event document returned by EventsInWindow,
// before the correlator folds it into a models.CorrelatedEvent.
type RawEvent struct {
	Timestamp  time.Time
	Service    string
	Level      string
	Message    string
	TraceID    string
	StatusCode int
}

// RawRunbook is an unparsed runbook document returned by SearchRunbooks.
type RawRunbook struct {
	Title            string
	IncidentDate     time.Time
	ServicesAffected []string
	RootCause        string
	ResolutionSteps  []string
	Tags             []string
	Score            float64
}

// Client is the abstract contract the detection pipeline uses to reach the
// observability backend. Implementations issue time-bounded queries only;
// they hold no pipeline state.
type Client interface {
	// DistinctServices returns every service with any activity since the
	// given instant.
	DistinctServices(ctx context.Context, since time.Time) ([]string, error)

	// BucketedSeries returns one bucket per minute of metric activity for
	// service within [start, end).
	BucketedSeries(ctx context.Context, service, metric string, start, end time.Time) ([]Bucket, error)

	// AggregateValue returns the single aggregate value of metric for
	// service within [start, end).
	AggregateValue(ctx context.Context, service, metric string, start, end time.Time) (float64, error)

	// EventsInWindow returns documents at any of levels, across all
	// services, within [start, end), ordered by timestamp ascending,
	// limited to limit results.
	EventsInWindow(ctx context.Context, levels []string, start, end time.Time, limit int) ([]RawEvent, error)

	// SearchRunbooks returns runbook documents relevant to services or
	// tags, ordered by relevance score descending, limited to maxResults.
	SearchRunbooks(ctx context.Context, services, tags []string, maxResults int) ([]RawRunbook, error)
}
