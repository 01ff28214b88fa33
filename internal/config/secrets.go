package config

import (
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Secrets holds credentials read from the process environment only. They
// are never merged from the YAML config tree.
type Secrets struct {
	ObservabilityURL    string
	ObservabilityAPIKey string
	AnthropicAPIKey     string
	SlackBotToken       string
	SlackChannelID      string
	PagerdutyAPIKey     string
	PagerdutyServiceID  string
}

// LoadSecrets reads every recognized secret from the environment, using the
// SENTINELOPS_ prefix convention (e.g. SENTINELOPS_ANTHROPIC_API_KEY).
func LoadSecrets() *Secrets {
	k := koanf.New(".")
	_ = k.Load(env.Provider("SENTINELOPS_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "SENTINELOPS_"))
	}), nil)

	return &Secrets{
		ObservabilityURL:    k.String("observability_url"),
		ObservabilityAPIKey: k.String("observability_api_key"),
		AnthropicAPIKey:     k.String("anthropic_api_key"),
		SlackBotToken:       k.String("slack_bot_token"),
		SlackChannelID:      k.String("slack_channel_id"),
		PagerdutyAPIKey:     k.String("pagerduty_api_key"),
		PagerdutyServiceID:  k.String("pagerduty_service_id"),
	}
}

// ChatConfigured reports whether enough Slack credentials are present to
// construct the chat notifier, mirroring the reference implementation's
// "construct only if secrets present" behavior.
func (s *Secrets) ChatConfigured() bool {
	return s.SlackBotToken != "" && s.SlackChannelID != ""
}

// PagingConfigured reports whether PagerDuty credentials are present.
func (s *Secrets) PagingConfigured() bool {
	return s.PagerdutyAPIKey != "" && s.PagerdutyServiceID != ""
}
