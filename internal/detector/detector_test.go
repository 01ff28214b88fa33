package detector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adityaviki/sentinelops/internal/config"
	"github.com/adityaviki/sentinelops/internal/models"
	"github.com/adityaviki/sentinelops/internal/observability"
)

type fakeClient struct {
	services     []string
	servicesErr  error
	buckets      map[string][]observability.Bucket
	aggregates   map[string]float64
	failServices map[string]bool
}

func key(service, metric string) string { return service + ":" + metric }

func (f *fakeClient) DistinctServices(ctx context.Context, since time.Time) ([]string, error) {
	return f.services, f.servicesErr
}

func (f *fakeClient) BucketedSeries(ctx context.Context, service, metric string, start, end time.Time) ([]observability.Bucket, error) {
	if f.failServices[service] {
		return nil, errors.New("backend timeout")
	}
	return f.buckets[key(service, metric)], nil
}

func (f *fakeClient) AggregateValue(ctx context.Context, service, metric string, start, end time.Time) (float64, error) {
	if f.failServices[service] {
		return 0, errors.New("backend timeout")
	}
	return f.aggregates[key(service, metric)], nil
}

func (f *fakeClient) EventsInWindow(ctx context.Context, levels []string, start, end time.Time, limit int) ([]observability.RawEvent, error) {
	return nil, nil
}

func (f *fakeClient) SearchRunbooks(ctx context.Context, services, tags []string, maxResults int) ([]observability.RawRunbook, error) {
	return nil, nil
}

func flatBaseline(n int, values ...float64) []observability.Bucket {
	buckets := make([]observability.Bucket, 0, n)
	for i := 0; i < n; i++ {
		v := values[0]
		if i < len(values) {
			v = values[i]
		}
		buckets = append(buckets, observability.Bucket{Value: v, Valid: true})
	}
	return buckets
}

func defaultThresholds() config.Detection {
	return config.Detection{
		Thresholds:        config.Thresholds{P1: 5.0, P2: 3.5, P3: 2.5, P4: 2.0},
		BaselineWindowMin: 60,
		MinDataPoints:     10,
	}
}

func TestDetect_DiscardsFlatBaselineWithZeroStddev(t *testing.T) {
	client := &fakeClient{
		services: []string{"checkout"},
		buckets: map[string][]observability.Bucket{
			key("checkout", "error_rate"): flatBaseline(10, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5),
		},
		aggregates: map[string]float64{
			key("checkout", "error_rate"): 5,
			key("checkout", "latency_p99"): 0,
		},
	}
	client.buckets[key("checkout", "latency_p99")] = flatBaseline(10, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5)

	d := New(client, defaultThresholds(), 5)
	anomalies, err := d.Detect(context.Background())
	require.NoError(t, err)
	// stddev is 0 for a flat baseline, so this should be discarded, not emitted.
	assert.Empty(t, anomalies)
}

func TestDetect_ComputesZScoreAndSeverity(t *testing.T) {
	baseline := flatBaseline(10, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	client := &fakeClient{
		services: []string{"checkout"},
		buckets: map[string][]observability.Bucket{
			key("checkout", "error_rate"):  baseline,
			key("checkout", "latency_p99"): baseline,
		},
		aggregates: map[string]float64{
			key("checkout", "error_rate"):  100, // far above baseline mean=5.5
			key("checkout", "latency_p99"): 5.5, // equal to mean -> no anomaly
		},
	}

	d := New(client, defaultThresholds(), 5)
	anomalies, err := d.Detect(context.Background())
	require.NoError(t, err)
	require.Len(t, anomalies, 1)
	assert.Equal(t, "checkout", anomalies[0].Service)
	assert.Equal(t, models.MetricErrorRate, anomalies[0].Metric)
	assert.Equal(t, models.SeverityP1, anomalies[0].Severity)
}

func TestDetect_SkipsMetricBelowMinDataPoints(t *testing.T) {
	client := &fakeClient{
		services: []string{"checkout"},
		buckets: map[string][]observability.Bucket{
			key("checkout", "error_rate"):  flatBaseline(3, 1, 2, 3),
			key("checkout", "latency_p99"): flatBaseline(3, 1, 2, 3),
		},
		aggregates: map[string]float64{},
	}

	d := New(client, defaultThresholds(), 5)
	anomalies, err := d.Detect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, anomalies)
}

func TestDetect_SkipsServiceOnTransientFailureButContinues(t *testing.T) {
	baseline := flatBaseline(10, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	client := &fakeClient{
		services:     []string{"broken", "checkout"},
		failServices: map[string]bool{"broken": true},
		buckets: map[string][]observability.Bucket{
			key("checkout", "error_rate"):  baseline,
			key("checkout", "latency_p99"): baseline,
		},
		aggregates: map[string]float64{
			key("checkout", "error_rate"): 100,
		},
	}

	d := New(client, defaultThresholds(), 5)
	anomalies, err := d.Detect(context.Background())
	require.NoError(t, err)
	require.Len(t, anomalies, 1)
	assert.Equal(t, "checkout", anomalies[0].Service)
}

func TestDetect_CompleteOutageAbortsCleanly(t *testing.T) {
	client := &fakeClient{servicesErr: errors.New("connection refused")}

	d := New(client, defaultThresholds(), 5)
	_, err := d.Detect(context.Background())
	assert.Error(t, err)
}

func TestDetect_NoActiveServicesIsNotAnError(t *testing.T) {
	client := &fakeClient{services: []string{}}

	d := New(client, defaultThresholds(), 5)
	anomalies, err := d.Detect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, anomalies)
}

func TestSetThresholds_AppliesToNextDetectCycle(t *testing.T) {
	baseline := flatBaseline(10, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	client := &fakeClient{
		services: []string{"checkout"},
		buckets: map[string][]observability.Bucket{
			key("checkout", "error_rate"):  baseline,
			key("checkout", "latency_p99"): baseline,
		},
		aggregates: map[string]float64{
			key("checkout", "error_rate"):  100,
			key("checkout", "latency_p99"): 5.5,
		},
	}

	d := New(client, defaultThresholds(), 5)
	anomalies, err := d.Detect(context.Background())
	require.NoError(t, err)
	require.Len(t, anomalies, 1)
	assert.Equal(t, models.SeverityP1, anomalies[0].Severity)

	// The z-score for this fixture is ~32.9; raising the bands so it now
	// lands in the P3 tier instead of P1 proves the swap took effect.
	d.SetThresholds(config.Thresholds{P1: 40, P2: 35, P3: 30, P4: 25})

	anomalies, err = d.Detect(context.Background())
	require.NoError(t, err)
	require.Len(t, anomalies, 1)
	assert.Equal(t, models.SeverityP3, anomalies[0].Severity)
}

func TestSeverityForZScore_BoundariesAreInclusiveAtHigherTier(t *testing.T) {
	th := config.Thresholds{P1: 5.0, P2: 3.5, P3: 2.5, P4: 2.0}
	assert.Equal(t, models.SeverityP1, severityForZScore(5.0, th))
	assert.Equal(t, models.SeverityP2, severityForZScore(3.5, th))
	assert.Equal(t, models.SeverityP3, severityForZScore(2.5, th))
	assert.Equal(t, models.SeverityP4, severityForZScore(2.1, th))
}

func TestComputeStats_PopulationStandardDeviation(t *testing.T) {
	mean, stddev := computeStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5.0, mean, 0.001)
	assert.InDelta(t, 2.0, stddev, 0.001)
}
