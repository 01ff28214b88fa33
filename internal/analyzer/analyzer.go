// Package analyzer composes a structured incident narrative and asks a
// language model for a root-cause analysis.
package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/adityaviki/sentinelops/internal/config"
	"github.com/adityaviki/sentinelops/internal/logging"
	"github.com/adityaviki/sentinelops/internal/models"
)

// Analyzer calls an external language model to explain an incident
// candidate. A nil *models.Analysis is a normal, expected outcome: the
// incident proceeds without enrichment.
type Analyzer struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
	logger    *logging.Logger
}

// New creates an Analyzer. apiKey may be empty to fall back to the SDK's
// own ANTHROPIC_API_KEY environment lookup.
func New(apiKey string, cfg config.Analyzer) *Analyzer {
	var client anthropic.Client
	if apiKey != "" {
		client = anthropic.NewClient(option.WithAPIKey(apiKey))
	} else {
		client = anthropic.NewClient()
	}

	return &Analyzer{
		client:    client,
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
		timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
		logger:    logging.GetLogger("analyzer"),
	}
}

// analysisResponse mirrors the JSON schema requested in the system prompt.
// Missing optional keys default to their zero value rather than failing
// the parse.
type analysisResponse struct {
	RootCause        string   `json:"root_cause"`
	Confidence       string   `json:"confidence"`
	AffectedServices []string `json:"affected_services"`
	RemediationSteps []string `json:"remediation_steps"`
	Summary          string   `json:"summary"`
}

// Analyze issues one language-model call per incident candidate. On
// timeout, non-2xx, or unparseable response it returns (nil, nil): a null
// analysis is the pipeline's expected degraded outcome, not an error the
// caller must react to. It is only an error when there is nothing to
// analyze because anomalies is empty.
func (a *Analyzer) Analyze(ctx context.Context, anomalies []models.Anomaly, events []models.CorrelatedEvent, matches []models.RunbookMatch) (*models.Analysis, error) {
	if len(anomalies) == 0 {
		return nil, errors.New("analyzer: no anomalies to analyze")
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	userMessage := buildContext(anomalies, events, matches)

	a.logger.InfoWithFields("analyzer request",
		logging.Field("anomalies", len(anomalies)),
		logging.Field("events", len(events)),
	)

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userMessage)),
		},
	})
	if err != nil {
		a.logger.WarnWithFields("analyzer api call failed", logging.Field("error", err.Error()))
		return nil, nil
	}

	if len(resp.Content) == 0 {
		a.logger.Warn("analyzer returned no content blocks")
		return nil, nil
	}

	analysis, ok := parseAnalysisResponse(resp.Content[0].Text)
	if !ok {
		a.logger.Warn("analyzer response was unparseable or missing a summary")
		return nil, nil
	}
	return analysis, nil
}

// parseAnalysisResponse strips an optional markdown code fence and decodes
// the model's JSON reply. ok is false when the text is not valid JSON or
// the required summary field is empty — both are treated as "no usable
// analysis", never as an error.
func parseAnalysisResponse(text string) (*models.Analysis, bool) {
	text = stripCodeFence(text)

	var parsed analysisResponse
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, false
	}
	if parsed.Summary == "" {
		return nil, false
	}

	confidence := models.Confidence(parsed.Confidence)
	switch confidence {
	case models.ConfidenceHigh, models.ConfidenceMedium, models.ConfidenceLow:
	default:
		confidence = models.ConfidenceLow
	}

	return &models.Analysis{
		Summary:          parsed.Summary,
		RootCause:        parsed.RootCause,
		Confidence:       confidence,
		AffectedServices: parsed.AffectedServices,
		RemediationSteps: parsed.RemediationSteps,
	}, true
}

// stripCodeFence removes a leading/trailing ```json fence if present.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if idx := strings.Index(text, "\n"); idx != -1 {
		text = text[idx+1:]
	}
	if idx := strings.LastIndex(text, "```"); idx != -1 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
