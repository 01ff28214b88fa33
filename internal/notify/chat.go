package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/adityaviki/sentinelops/internal/logging"
	"github.com/adityaviki/sentinelops/internal/models"
)

const slackPostMessageURL = "https://slack.com/api/chat.postMessage"

var severityEmoji = map[models.Severity]string{
	models.SeverityP1: ":red_circle:",
	models.SeverityP2: ":large_orange_circle:",
	models.SeverityP3: ":large_yellow_circle:",
	models.SeverityP4: ":white_circle:",
}

// ChatNotifier posts a Block Kit incident summary to a Slack channel.
type ChatNotifier struct {
	botToken   string
	channelID  string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewChatNotifier creates a ChatNotifier.
func NewChatNotifier(botToken, channelID string) *ChatNotifier {
	return &ChatNotifier{
		botToken:  botToken,
		channelID: channelID,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxConnsPerHost:     5,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logging.GetLogger("notify.chat"),
	}
}

// Channel identifies this notifier for logging and metrics.
func (c *ChatNotifier) Channel() string { return "chat" }

// Notify posts the incident to Slack. A non-2xx or ok:false response is
// reported as an error; the caller treats it as best-effort.
func (c *ChatNotifier) Notify(ctx context.Context, incident *models.Incident) error {
	payload := map[string]any{
		"channel": c.channelID,
		"text":    fmt.Sprintf("[%s] %s", incident.Severity, incident.Title),
		"blocks":  buildBlocks(incident),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("chat notifier: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, slackPostMessageURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("chat notifier: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.botToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chat notifier: request failed: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chat notifier: unexpected status %d", resp.StatusCode)
	}

	var decoded struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("chat notifier: decode response: %w", err)
	}
	if !decoded.OK {
		return fmt.Errorf("chat notifier: slack rejected message: %s", decoded.Error)
	}

	c.logger.InfoWithFields("chat notification sent", logging.Field("incident_id", incident.ID))
	return nil
}

func buildBlocks(incident *models.Incident) []map[string]any {
	emoji, ok := severityEmoji[incident.Severity]
	if !ok {
		emoji = ":grey_question:"
	}

	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{
				"type": "plain_text",
				"text": fmt.Sprintf("%s %s Incident: %s", emoji, incident.Severity, incident.Title),
			},
		},
		{
			"type": "section",
			"fields": []map[string]any{
				textField(fmt.Sprintf("*Incident ID:*\n`%s`", incident.ID)),
				textField(fmt.Sprintf("*Severity:*\n%s", incident.Severity)),
				textField(fmt.Sprintf("*Services:*\n%s", strings.Join(incident.Services, ", "))),
				textField(fmt.Sprintf("*Detected at:*\n%s", incident.CreatedAt.Format("2006-01-02 15:04:05 UTC"))),
			},
		},
		{"type": "divider"},
	}

	anomalyLimit := len(incident.Anomalies)
	if anomalyLimit > 5 {
		anomalyLimit = 5
	}
	for _, a := range incident.Anomalies[:anomalyLimit] {
		blocks = append(blocks, map[string]any{
			"type": "section",
			"text": mrkdwn(fmt.Sprintf(
				"*%s* — `%s`\nCurrent: `%.1f` | Baseline: `%.1f` | Z-score: `%.1f`",
				a.Service, a.Metric, a.CurrentValue, a.BaselineMean, a.ZScore,
			)),
		})
	}

	if incident.Analysis != nil {
		blocks = append(blocks,
			map[string]any{"type": "divider"},
			map[string]any{
				"type": "section",
				"text": mrkdwn(fmt.Sprintf("*AI Analysis* (confidence: %s)\n>%s", incident.Analysis.Confidence, incident.Analysis.RootCause)),
			},
		)
		if len(incident.Analysis.RemediationSteps) > 0 {
			var steps strings.Builder
			for i, step := range incident.Analysis.RemediationSteps {
				if i > 0 {
					steps.WriteByte('\n')
				}
				fmt.Fprintf(&steps, "%d. %s", i+1, step)
			}
			blocks = append(blocks, map[string]any{
				"type": "section",
				"text": mrkdwn("*Suggested Remediation:*\n" + steps.String()),
			})
		}
	}

	if len(incident.MatchedRunbooks) > 0 {
		limit := len(incident.MatchedRunbooks)
		if limit > 3 {
			limit = 3
		}
		var titles strings.Builder
		for i, rb := range incident.MatchedRunbooks[:limit] {
			if i > 0 {
				titles.WriteByte('\n')
			}
			fmt.Fprintf(&titles, "- %s", rb.Title)
		}
		blocks = append(blocks,
			map[string]any{"type": "divider"},
			map[string]any{
				"type": "section",
				"text": mrkdwn("*Related Runbooks:*\n" + titles.String()),
			},
		)
	}

	return blocks
}

func textField(text string) map[string]any {
	return map[string]any{"type": "mrkdwn", "text": text}
}

func mrkdwn(text string) map[string]any {
	return map[string]any{"type": "mrkdwn", "text": text}
}
