package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/adityaviki/sentinelops/internal/analyzer"
	"github.com/adityaviki/sentinelops/internal/apiserver"
	"github.com/adityaviki/sentinelops/internal/config"
	"github.com/adityaviki/sentinelops/internal/correlator"
	"github.com/adityaviki/sentinelops/internal/detector"
	"github.com/adityaviki/sentinelops/internal/incident"
	"github.com/adityaviki/sentinelops/internal/lifecycle"
	"github.com/adityaviki/sentinelops/internal/logging"
	"github.com/adityaviki/sentinelops/internal/metrics"
	"github.com/adityaviki/sentinelops/internal/models"
	"github.com/adityaviki/sentinelops/internal/notify"
	"github.com/adityaviki/sentinelops/internal/observability"
	"github.com/adityaviki/sentinelops/internal/runbooks"
	"github.com/adityaviki/sentinelops/internal/scheduler"
	"github.com/adityaviki/sentinelops/internal/tracing"
)

// DefaultRunbookMatches bounds how many historical runbooks are attached to
// one incident candidate.
const DefaultRunbookMatches = 5

// DefaultQueryTimeout bounds a single call to the observability backend.
const DefaultQueryTimeout = 15 * time.Second

// startupConnectivityTimeout bounds the one-shot reachability check
// performed before any component starts.
const startupConnectivityTimeout = 10 * time.Second

// shutdownGracePeriod bounds how long serve waits for every registered
// component to stop once a shutdown signal arrives.
const shutdownGracePeriod = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the detection-to-incident pipeline",
	Long: `serve starts the tick scheduler, the read API, and every stage of the
detection-to-incident pipeline: anomaly detection, cross-service correlation,
runbook matching, language-model analysis, and notification dispatch.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := setupLogging(); err != nil {
		return &exitError{code: 1, err: fmt.Errorf("logging setup: %w", err)}
	}
	logger := logging.GetLogger("commands.serve")
	logger.Info("starting sentinelops v%s", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return &exitError{code: 1, err: fmt.Errorf("config: %w", err)}
	}
	secrets := config.LoadSecrets()

	client := observability.NewHTTPClient(secrets.ObservabilityURL, secrets.ObservabilityAPIKey, cfg.Indices, DefaultQueryTimeout)

	if err := checkObservabilityReachable(client, cfg); err != nil {
		return &exitError{code: 2, err: err}
	}

	tracingProvider, err := tracing.NewProvider(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		TLSCAPath:   cfg.Tracing.TLSCAPath,
		TLSInsecure: cfg.Tracing.TLSInsecure,
	})
	if err != nil {
		return &exitError{code: 1, err: fmt.Errorf("tracing: %w", err)}
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg, "sentinelops")

	det := detector.New(client, cfg.Detection, cfg.Polling.LookbackMinutes)
	corr := correlator.New(client, cfg.Correlation.WindowMinutes, cfg.Correlation.MaxEvents)
	matcher := runbooks.New(client, DefaultRunbookMatches)
	az := analyzer.New(secrets.AnthropicAPIKey, cfg.Analyzer)

	store := incident.NewStore(incident.DefaultMaxIncidents, time.Duration(cfg.Incidents.DedupCooldownMinutes)*time.Minute)

	var chat notify.Notifier
	if secrets.ChatConfigured() {
		chat = notify.NewChatNotifier(secrets.SlackBotToken, secrets.SlackChannelID)
	} else {
		logger.Info("chat notifications disabled: slack credentials not configured")
	}

	var paging notify.Notifier
	if secrets.PagingConfigured() {
		paging = notify.NewPagingNotifier(secrets.PagerdutyAPIKey, secrets.PagerdutyServiceID)
	} else {
		logger.Info("paging notifications disabled: pagerduty credentials not configured")
	}

	mgr := incident.New(store, cfg.Incidents, chat, paging, m)

	tick := buildTick(det, corr, matcher, az, mgr, m, logger)
	sch := scheduler.New(time.Duration(cfg.Polling.IntervalSeconds)*time.Second, scheduler.DefaultShutdownTimeout, tick, m)

	apiSrv := apiserver.New(cfg.Server.Port, store)

	manager := lifecycle.NewManager()
	if err := manager.Register(tracingProvider); err != nil {
		return &exitError{code: 1, err: fmt.Errorf("registering tracing provider: %w", err)}
	}
	if err := manager.Register(sch); err != nil {
		return &exitError{code: 1, err: fmt.Errorf("registering tick scheduler: %w", err)}
	}
	if err := manager.Register(apiSrv); err != nil {
		return &exitError{code: 1, err: fmt.Errorf("registering read api: %w", err)}
	}

	if configPath != "" {
		watcher, err := config.NewWatcher(configPath, func(reloaded *config.Config) error {
			det.SetThresholds(reloaded.Detection.Thresholds)
			store.SetCooldown(time.Duration(reloaded.Incidents.DedupCooldownMinutes) * time.Minute)
			mgr.SetPagingSeverities(reloaded.Incidents.PagerdutySeverities)
			return nil
		})
		if err != nil {
			return &exitError{code: 1, err: fmt.Errorf("config watcher: %w", err)}
		}
		if err := manager.Register(watcher); err != nil {
			return &exitError{code: 1, err: fmt.Errorf("registering config watcher: %w", err)}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.Start(ctx); err != nil {
		return &exitError{code: 1, err: fmt.Errorf("startup: %w", err)}
	}

	logger.Info("sentinelops running, listening on port %d", cfg.Server.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received, gracefully shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer shutdownCancel()
	if err := manager.Stop(shutdownCtx); err != nil {
		logger.ErrorWithFields("shutdown error", logging.Field("error", err.Error()))
	}

	logger.Info("shutdown complete")
	return nil
}

// checkObservabilityReachable performs a one-shot distinct-services query so
// a misconfigured or unreachable observability backend is reported as a
// startup failure rather than silently degrading every subsequent tick.
func checkObservabilityReachable(client observability.Client, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), startupConnectivityTimeout)
	defer cancel()

	since := time.Now().Add(-time.Duration(cfg.Detection.BaselineWindowMin) * time.Minute)
	if _, err := client.DistinctServices(ctx, since); err != nil {
		return fmt.Errorf("observability backend unreachable: %w", err)
	}
	return nil
}

// buildTick wires one detection-to-incident cycle: detect anomalies, find
// the tick's cross-service correlation footprint, partition anomalies into
// incident candidates along that footprint, then independently correlate,
// match runbooks, and analyze each candidate before handing it to mgr.
func buildTick(
	det *detector.Detector,
	corr *correlator.Correlator,
	matcher *runbooks.Matcher,
	az *analyzer.Analyzer,
	mgr *incident.Manager,
	m *metrics.Metrics,
	logger *logging.Logger,
) scheduler.TickFunc {
	return func(ctx context.Context) error {
		anomalies, err := det.Detect(ctx)
		if err != nil {
			return err
		}
		if len(anomalies) == 0 {
			return nil
		}
		m.AnomaliesTotal.Add(float64(len(anomalies)))

		tickEvents, err := corr.Correlate(ctx, anomalies)
		if err != nil {
			tickEvents = nil
		}
		correlatedServices := eventServices(tickEvents)

		groups := incident.GroupAnomalies(anomalies, correlatedServices)
		for _, group := range groups {
			if mgr.IsDuplicate(group) {
				logger.InfoWithFields("skipping correlation/analysis for duplicate candidate",
					logging.Field("dedup_key", models.GroupDedupKey(group)))
				continue
			}

			events, err := corr.Correlate(ctx, group)
			if err != nil {
				logger.WarnWithFields("correlation failed for incident candidate", logging.Field("error", err.Error()))
				events = nil
			}
			matches := matcher.FindMatching(ctx, group)
			analysis, _ := az.Analyze(ctx, group, events, matches)
			mgr.Create(ctx, group, events, matches, analysis)
		}
		mgr.CleanupStaleEntries()
		return nil
	}
}

// eventServices returns the deduplicated set of services present in events.
func eventServices(events []models.CorrelatedEvent) []string {
	seen := make(map[string]struct{}, len(events))
	var services []string
	for _, e := range events {
		if _, ok := seen[e.Service]; ok {
			continue
		}
		seen[e.Service] = struct{}{}
		services = append(services, e.Service)
	}
	return services
}
