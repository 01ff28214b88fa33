package analyzer

import (
	"fmt"
	"strings"

	"github.com/adityaviki/sentinelops/internal/models"
)

const systemPrompt = `You are an expert SRE incident analyst. You will be given:
1. Detected anomalies (service, metric, z-score, severity)
2. Correlated events across services from the same time window
3. Matching historical runbooks (if any)

Your job:
- Identify the most likely root cause
- Assess your confidence (high/medium/low)
- List the affected services
- Provide concrete, prioritized remediation steps
- Write a one-sentence summary suitable for an incident title

Respond ONLY with valid JSON matching this schema:
{
  "root_cause": "string",
  "confidence": "high|medium|low",
  "affected_services": ["string"],
  "remediation_steps": ["string"],
  "summary": "string"
}`

const maxCorrelatedEventsInPrompt = 20

// buildContext renders the anomalies, correlated events, and runbooks into
// the single user message sent to the language model.
func buildContext(anomalies []models.Anomaly, events []models.CorrelatedEvent, matches []models.RunbookMatch) string {
	var sections []string

	sections = append(sections, "## Detected Anomalies")
	for _, a := range anomalies {
		sections = append(sections, fmt.Sprintf(
			"- Service: %s | Metric: %s | Value: %.1f | Baseline: %.1f +/- %.1f | Z-score: %.1f | Severity: %s",
			a.Service, a.Metric, a.CurrentValue, a.BaselineMean, a.BaselineStddev, a.ZScore, a.Severity,
		))
	}

	if len(events) > 0 {
		sections = append(sections, "\n## Correlated Events Across Services")
		limit := len(events)
		if limit > maxCorrelatedEventsInPrompt {
			limit = maxCorrelatedEventsInPrompt
		}
		for _, e := range events[:limit] {
			trace := ""
			if e.TraceID != "" {
				trace = fmt.Sprintf(" [trace: %s]", e.TraceID)
			}
			sections = append(sections, fmt.Sprintf(
				"- [%s] %s (%s): %s%s", e.Timestamp.Format("2006-01-02T15:04:05Z07:00"), e.Service, e.Level, e.Message, trace,
			))
		}
	}

	if len(matches) > 0 {
		sections = append(sections, "\n## Similar Past Incidents (Runbooks)")
		for _, rb := range matches {
			sections = append(sections, fmt.Sprintf("### %s", rb.Title))
			if rb.RootCause != "" {
				sections = append(sections, fmt.Sprintf("Root cause: %s", rb.RootCause))
			}
			for i, step := range rb.ResolutionSteps {
				sections = append(sections, fmt.Sprintf("  %d. %s", i+1, step))
			}
		}
	}

	return strings.Join(sections, "\n")
}
