// Package detector computes per-service, per-metric z-scores against a
// rolling baseline and emits Anomaly records.
package detector

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/adityaviki/sentinelops/internal/config"
	"github.com/adityaviki/sentinelops/internal/logging"
	"github.com/adityaviki/sentinelops/internal/models"
	"github.com/adityaviki/sentinelops/internal/observability"
	"github.com/adityaviki/sentinelops/internal/sentinelerr"
)

// metrics is the closed set of metrics evaluated for every active service.
var metrics = []string{"error_rate", "latency_p99"}

// Detector evaluates the most recent lookback window against a rolling
// baseline for every active service and metric. baselineWindowMin and
// minDataPoints are structural and fixed at construction; thresholds is
// hot-reloadable via SetThresholds.
type Detector struct {
	client            observability.Client
	baselineWindowMin int
	minDataPoints     int
	thresholds        atomic.Pointer[config.Thresholds]
	lookbackMinutes   int
	logger            *logging.Logger
}

// New creates a Detector.
func New(client observability.Client, detection config.Detection, lookbackMinutes int) *Detector {
	d := &Detector{
		client:            client,
		baselineWindowMin: detection.BaselineWindowMin,
		minDataPoints:     detection.MinDataPoints,
		lookbackMinutes:   lookbackMinutes,
		logger:            logging.GetLogger("detector.zscore"),
	}
	thresholds := detection.Thresholds
	d.thresholds.Store(&thresholds)
	return d
}

// SetThresholds swaps in new severity thresholds, taking effect on the next
// detection cycle. Called by the config hot-reload watcher.
func (d *Detector) SetThresholds(t config.Thresholds) {
	d.thresholds.Store(&t)
}

// checkResult pairs a detection outcome with the (service, metric) it was
// computed for, so results can be sorted deterministically before anomalies
// are extracted.
type checkResult struct {
	service string
	metric  string
	anomaly *models.Anomaly
	err     error
}

// Detect runs one detection cycle. A complete backend outage (the initial
// service discovery call fails) aborts cleanly with an error; a failure on
// an individual service/metric pair is logged and skipped.
func (d *Detector) Detect(ctx context.Context) ([]models.Anomaly, error) {
	now := time.Now().UTC()
	lookbackStart := now.Add(-time.Duration(d.lookbackMinutes) * time.Minute)
	baselineStart := now.Add(-time.Duration(d.baselineWindowMin) * time.Minute)

	services, err := d.client.DistinctServices(ctx, baselineStart)
	if err != nil {
		return nil, &sentinelerr.BackendUnavailableError{Err: err}
	}
	if len(services) == 0 {
		return nil, nil
	}

	sort.Strings(services)

	var (
		mu       sync.Mutex
		results  []checkResult
		failures int
		attempts int
	)

	// Individual service/metric failures are logged and skipped, never
	// propagated through the group — errgroup here is purely a bounded
	// wait, not a fail-fast gate.
	var eg errgroup.Group

	for _, service := range services {
		for _, metric := range metrics {
			service, metric := service, metric
			attempts++
			eg.Go(func() error {
				anomaly, err := d.checkMetric(ctx, service, metric, lookbackStart, now, baselineStart)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failures++
					d.logger.WarnWithFields("skipping service/metric after backend error",
						logging.Field("service", service),
						logging.Field("metric", metric),
						logging.Field("error", err.Error()),
					)
					return nil
				}
				results = append(results, checkResult{service: service, metric: metric, anomaly: anomaly})
				return nil
			})
		}
	}
	_ = eg.Wait()

	if attempts > 0 && failures == attempts {
		return nil, &sentinelerr.BackendUnavailableError{Err: errors.New("all service/metric checks failed")}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].service != results[j].service {
			return results[i].service < results[j].service
		}
		return results[i].metric < results[j].metric
	})

	anomalies := make([]models.Anomaly, 0, len(results))
	for _, r := range results {
		if r.anomaly != nil {
			anomalies = append(anomalies, *r.anomaly)
		}
	}
	return anomalies, nil
}

// checkMetric evaluates a single service/metric pair.
func (d *Detector) checkMetric(ctx context.Context, service, metric string, lookbackStart, now, baselineStart time.Time) (*models.Anomaly, error) {
	currentVal, err := d.client.AggregateValue(ctx, service, metric, lookbackStart, now)
	if err != nil {
		return nil, &sentinelerr.TransientBackendError{Service: service, Op: "AggregateValue", Err: err}
	}

	buckets, err := d.client.BucketedSeries(ctx, service, metric, baselineStart, lookbackStart)
	if err != nil {
		return nil, &sentinelerr.TransientBackendError{Service: service, Op: "BucketedSeries", Err: err}
	}

	baseline := nonNullValues(buckets)
	if len(baseline) < d.minDataPoints {
		d.logger.DebugWithFields("insufficient baseline data",
			logging.Field("service", service),
			logging.Field("metric", metric),
			logging.Field("data_points", len(baseline)),
		)
		return nil, nil
	}

	mean, stddev := computeStats(baseline)
	if stddev == 0 {
		return nil, nil
	}

	thresholds := *d.thresholds.Load()

	z := (currentVal - mean) / stddev
	if z < 0 {
		z = 0
	}
	if z < thresholds.P4 {
		return nil, nil
	}

	severity := severityForZScore(z, thresholds)

	anomaly := &models.Anomaly{
		Service:        service,
		Metric:         models.MetricKind(metric),
		CurrentValue:   currentVal,
		BaselineMean:   mean,
		BaselineStddev: stddev,
		ZScore:         z,
		Severity:       severity,
		DetectedAt:     now,
		SampleCount:    len(baseline),
	}

	d.logger.WarnWithFields("anomaly detected",
		logging.Field("service", service),
		logging.Field("metric", metric),
		logging.Field("z_score", z),
		logging.Field("severity", string(severity)),
	)

	return anomaly, nil
}

// nonNullValues extracts the valid bucket values, discarding nulls.
func nonNullValues(buckets []observability.Bucket) []float64 {
	values := make([]float64, 0, len(buckets))
	for _, b := range buckets {
		if b.Valid {
			values = append(values, b.Value)
		}
	}
	return values
}

// computeStats returns the population mean and standard deviation of
// values (divide by N, not N-1).
func computeStats(values []float64) (mean, stddev float64) {
	n := float64(len(values))
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / n

	var variance float64
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= n

	return mean, math.Sqrt(variance)
}

// severityForZScore returns the highest threshold band z clears. Callers
// must have already discarded z < thresholds.P4.
func severityForZScore(z float64, t config.Thresholds) models.Severity {
	switch {
	case z >= t.P1:
		return models.SeverityP1
	case z >= t.P2:
		return models.SeverityP2
	case z >= t.P3:
		return models.SeverityP3
	default:
		return models.SeverityP4
	}
}
