package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adityaviki/sentinelops/internal/metrics"
)

func testMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry(), "test")
}

func TestTickScheduler_RunsImmediatelyOnStart(t *testing.T) {
	var calls int32
	s := New(time.Hour, time.Second, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}, testMetrics())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 1 }, time.Second, time.Millisecond)
}

func TestTickScheduler_SkipsTickWhenPreviousStillRunning(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	s := New(5*time.Millisecond, time.Second, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		<-release
		return nil
	}, testMetrics())

	require.NoError(t, s.Start(context.Background()))

	// Give multiple intervals a chance to fire while the first tick blocks.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	close(release)
	require.NoError(t, s.Stop(context.Background()))
}

func TestTickScheduler_StopWaitsForInFlightTick(t *testing.T) {
	var finished int32
	s := New(time.Hour, time.Second, func(ctx context.Context) error {
		time.Sleep(20 * time.Millisecond)
		atomic.StoreInt32(&finished, 1)
		return nil
	}, testMetrics())

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.inFlight
	}, time.Second, time.Millisecond)

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&finished))
}

func TestTickScheduler_StopIsIdempotentWhenNotRunning(t *testing.T) {
	s := New(time.Hour, time.Second, func(ctx context.Context) error { return nil }, testMetrics())
	assert.NoError(t, s.Stop(context.Background()))
}

func TestTickScheduler_StartIsIdempotent(t *testing.T) {
	var calls int32
	s := New(time.Hour, time.Second, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}, testMetrics())

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 1 }, time.Second, time.Millisecond)
}
