// Package models defines the data shapes that flow through the
// detection-to-incident pipeline: Anomaly, CorrelatedEvent, RunbookMatch,
// Analysis, and Incident. All are immutable after construction.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// MetricKind is a closed enumeration of the metrics the detector evaluates.
type MetricKind string

const (
	MetricErrorRate  MetricKind = "error_rate"
	MetricLatencyP99 MetricKind = "latency_p99"
)

// Severity is a closed enumeration ordered from most to least urgent.
type Severity string

const (
	SeverityP1 Severity = "P1"
	SeverityP2 Severity = "P2"
	SeverityP3 Severity = "P3"
	SeverityP4 Severity = "P4"
)

// severityRank gives each Severity a total order; lower rank is more urgent.
var severityRank = map[Severity]int{
	SeverityP1: 0,
	SeverityP2: 1,
	SeverityP3: 2,
	SeverityP4: 3,
}

// Worse reports whether s is more urgent than other.
func (s Severity) Worse(other Severity) bool {
	return severityRank[s] < severityRank[other]
}

// Valid reports whether s is one of the four recognized severities.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// EventLevel is a closed enumeration of correlated-event log levels.
type EventLevel string

const (
	LevelError EventLevel = "error"
	LevelWarn  EventLevel = "warn"
	LevelInfo  EventLevel = "info"
)

// Confidence is a closed enumeration of analysis confidence tiers.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// IncidentStatus is a closed enumeration of incident lifecycle states.
type IncidentStatus string

const (
	StatusActive  IncidentStatus = "active"
	StatusCooling IncidentStatus = "cooling"
)

// Anomaly is a single statistically significant deviation detected for one
// service and metric. baseline_stddev == 0 implies z_score == 0, which in
// turn means the anomaly would never have been constructed — callers
// compute the z-score and discard the candidate before building an Anomaly.
type Anomaly struct {
	Service        string     `json:"service"`
	Metric         MetricKind `json:"metric"`
	CurrentValue   float64    `json:"current_value"`
	BaselineMean   float64    `json:"baseline_mean"`
	BaselineStddev float64    `json:"baseline_stddev"`
	ZScore         float64    `json:"z_score"`
	Severity       Severity   `json:"severity"`
	DetectedAt     time.Time  `json:"detected_at"`
	SampleCount    int        `json:"sample_count"`
}

// DedupKey is a short deterministic digest identifying an anomaly by its
// (service, metric, severity) tuple, used as a building block for an
// incident-level dedup key.
func (a Anomaly) DedupKey() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s", a.Service, a.Metric, a.Severity)))
	return hex.EncodeToString(sum[:])[:16]
}

// CorrelatedEvent is a single log line surfaced by the correlator, ordered
// by Timestamp ascending within an incident.
type CorrelatedEvent struct {
	Timestamp  time.Time  `json:"timestamp"`
	Service    string     `json:"service"`
	Level      EventLevel `json:"level"`
	Message    string     `json:"message"`
	TraceID    string     `json:"trace_id,omitempty"`
	StatusCode int        `json:"status_code,omitempty"`
}

// RunbookMatch is a historical incident record returned by the runbook
// search, ordered by Score descending then IncidentDate descending.
type RunbookMatch struct {
	Title            string    `json:"title"`
	IncidentDate     time.Time `json:"incident_date"`
	ServicesAffected []string  `json:"services_affected"`
	RootCause        string    `json:"root_cause"`
	ResolutionSteps  []string  `json:"resolution_steps"`
	Tags             []string  `json:"tags"`
	Score            float64   `json:"score"`
}

// Analysis is the structured result of a language-model call. A nil
// *Analysis means the analyzer produced no usable result; the incident
// proceeds without enrichment.
type Analysis struct {
	Summary          string     `json:"summary"`
	RootCause        string     `json:"root_cause"`
	Confidence       Confidence `json:"confidence"`
	AffectedServices []string   `json:"affected_services"`
	RemediationSteps []string   `json:"remediation_steps"`
}

// Incident is the unit emitted to notification channels and served by the
// read API. The Incident Manager exclusively mutates Incident values; the
// Store only orders and retains them.
type Incident struct {
	ID               string            `json:"id"`
	CreatedAt        time.Time         `json:"created_at"`
	Severity         Severity          `json:"severity"`
	Title            string            `json:"title"`
	Services         []string          `json:"services"`
	Anomalies        []Anomaly         `json:"anomalies"`
	CorrelatedEvents []CorrelatedEvent `json:"correlated_events"`
	MatchedRunbooks  []RunbookMatch    `json:"matched_runbooks"`
	Analysis         *Analysis         `json:"analysis"`
	DedupKey         string            `json:"dedup_key"`
	Status           IncidentStatus    `json:"status"`
}

// GroupDedupKey computes the incident-level dedup key for a set of
// anomalies: the sorted set of each anomaly's own DedupKey, joined with ":".
// Two groupings that yield identical keys within the cooldown window
// collapse into a single incident.
func GroupDedupKey(anomalies []Anomaly) string {
	seen := make(map[string]struct{}, len(anomalies))
	keys := make([]string, 0, len(anomalies))
	for _, a := range anomalies {
		k := a.DedupKey()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ":")
}

// WorstSeverity returns the most urgent severity among anomalies. Panics if
// anomalies is empty — callers must never construct an incident candidate
// from zero anomalies.
func WorstSeverity(anomalies []Anomaly) Severity {
	worst := anomalies[0].Severity
	for _, a := range anomalies[1:] {
		if a.Severity.Worse(worst) {
			worst = a.Severity
		}
	}
	return worst
}

// UnionServices returns the deduplicated, sorted set of services named by
// anomalies.
func UnionServices(anomalies []Anomaly) []string {
	seen := make(map[string]struct{}, len(anomalies))
	out := make([]string, 0, len(anomalies))
	for _, a := range anomalies {
		if _, ok := seen[a.Service]; ok {
			continue
		}
		seen[a.Service] = struct{}{}
		out = append(out, a.Service)
	}
	sort.Strings(out)
	return out
}
