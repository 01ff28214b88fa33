// Package config loads and validates the declarative operational settings
// for the detection-to-incident pipeline.
package config

import "fmt"

// Thresholds holds the descending z-score bands used to classify severity.
type Thresholds struct {
	P1 float64 `yaml:"p1"`
	P2 float64 `yaml:"p2"`
	P3 float64 `yaml:"p3"`
	P4 float64 `yaml:"p4"`
}

// Polling controls the tick scheduler cadence and the detector's lookback window.
type Polling struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	LookbackMinutes int `yaml:"lookback_minutes"`
}

// Detection controls the anomaly detector's statistical thresholds.
type Detection struct {
	Thresholds        Thresholds `yaml:"thresholds"`
	BaselineWindowMin int        `yaml:"baseline_window_minutes"`
	MinDataPoints     int        `yaml:"min_data_points"`
}

// Correlation controls the event correlator's search window.
type Correlation struct {
	WindowMinutes int `yaml:"window_minutes"`
	MaxEvents     int `yaml:"max_events"`
}

// Incidents controls deduplication and paging behavior.
type Incidents struct {
	DedupCooldownMinutes int      `yaml:"dedup_cooldown_minutes"`
	PagerdutySeverities  []string `yaml:"pagerduty_severities"`
}

// Analyzer controls the language-model analysis call.
type Analyzer struct {
	Model          string `yaml:"model"`
	MaxTokens      int    `yaml:"max_tokens"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Indices names the observability backend indices/streams consulted for
// each data kind.
type Indices struct {
	Logs     string `yaml:"log_index"`
	Metrics  string `yaml:"metrics_index"`
	Runbooks string `yaml:"runbook_index"`
}

// Tracing controls OpenTelemetry export, mirrored from the underlying
// tracing.Config shape so the YAML tree stays flat.
type Tracing struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	TLSCAPath   string `yaml:"tls_ca_path"`
	TLSInsecure bool   `yaml:"tls_insecure"`
}

// Server controls the thin HTTP read API.
type Server struct {
	Port int `yaml:"port"`
}

// Config holds every operational knob loaded from the YAML config tree.
// Secrets never live here; they are read directly from the environment by
// Secrets.
type Config struct {
	LogLevel    string      `yaml:"log_level"`
	Polling     Polling     `yaml:"polling"`
	Detection   Detection   `yaml:"detection"`
	Correlation Correlation `yaml:"correlation"`
	Incidents   Incidents   `yaml:"incidents"`
	Analyzer    Analyzer    `yaml:"analyzer"`
	Indices     Indices     `yaml:"indices"`
	Tracing     Tracing     `yaml:"tracing"`
	Server      Server      `yaml:"server"`
}

// Default returns a Config populated with sensible operational defaults.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Polling: Polling{
			IntervalSeconds: 30,
			LookbackMinutes: 5,
		},
		Detection: Detection{
			Thresholds:        Thresholds{P1: 5.0, P2: 3.5, P3: 2.5, P4: 2.0},
			BaselineWindowMin: 60,
			MinDataPoints:     10,
		},
		Correlation: Correlation{
			WindowMinutes: 10,
			MaxEvents:     50,
		},
		Incidents: Incidents{
			DedupCooldownMinutes: 30,
			PagerdutySeverities:  []string{"P1", "P2"},
		},
		Analyzer: Analyzer{
			Model:          "claude-sonnet-4-6",
			MaxTokens:      1024,
			TimeoutSeconds: 30,
		},
		Indices: Indices{
			Logs:     "app-logs-*",
			Metrics:  "app-metrics-*",
			Runbooks: "incident-runbooks",
		},
		Server: Server{Port: 8080},
	}
}

// Validate checks that the configuration is internally consistent. It does
// not check reachability of any external system — that is reported by exit
// code 2 at startup, not a config error.
func (c *Config) Validate() error {
	if c.Polling.IntervalSeconds < 1 {
		return NewValidationError("polling.interval_seconds must be at least 1")
	}
	if c.Polling.LookbackMinutes < 1 {
		return NewValidationError("polling.lookback_minutes must be at least 1")
	}

	t := c.Detection.Thresholds
	if !(t.P1 > t.P2 && t.P2 > t.P3 && t.P3 > t.P4) {
		return NewValidationError("detection.thresholds must be strictly descending: p1 > p2 > p3 > p4")
	}
	if c.Detection.BaselineWindowMin < 1 {
		return NewValidationError("detection.baseline_window_minutes must be at least 1")
	}
	if c.Detection.MinDataPoints < 1 {
		return NewValidationError("detection.min_data_points must be at least 1")
	}

	if c.Correlation.WindowMinutes < 0 {
		return NewValidationError("correlation.window_minutes must not be negative")
	}
	if c.Correlation.MaxEvents < 1 {
		return NewValidationError("correlation.max_events must be at least 1")
	}

	if c.Incidents.DedupCooldownMinutes < 1 {
		return NewValidationError("incidents.dedup_cooldown_minutes must be at least 1")
	}
	for _, sev := range c.Incidents.PagerdutySeverities {
		switch sev {
		case "P1", "P2", "P3", "P4":
		default:
			return NewValidationError(fmt.Sprintf("incidents.pagerduty_severities contains unknown severity %q", sev))
		}
	}

	if c.Analyzer.Model == "" {
		return NewValidationError("analyzer.model must not be empty")
	}
	if c.Analyzer.MaxTokens < 1 {
		return NewValidationError("analyzer.max_tokens must be at least 1")
	}
	if c.Analyzer.TimeoutSeconds < 1 {
		return NewValidationError("analyzer.timeout_seconds must be at least 1")
	}

	if c.Indices.Logs == "" || c.Indices.Metrics == "" || c.Indices.Runbooks == "" {
		return NewValidationError("indices.log_index, metrics_index, and runbook_index must all be set")
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return NewValidationError("tracing.endpoint must be set when tracing.enabled is true")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return NewValidationError("server.port must be between 1 and 65535")
	}

	return nil
}

// ValidationError reports a configuration value that failed validation.
type ValidationError struct {
	message string
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{message: message}
}

func (e *ValidationError) Error() string {
	return e.message
}
