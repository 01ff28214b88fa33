// Package scheduler drives the periodic detection-to-incident tick.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/adityaviki/sentinelops/internal/logging"
	"github.com/adityaviki/sentinelops/internal/metrics"
)

// DefaultShutdownTimeout bounds how long Stop waits for an in-flight tick
// to finish before giving up.
const DefaultShutdownTimeout = 30 * time.Second

// TickFunc runs one detection-to-incident cycle.
type TickFunc func(ctx context.Context) error

// TickScheduler drives TickFunc on a fixed interval. At most one tick runs
// at a time: if the previous tick is still running when the next interval
// fires, the new tick is skipped and logged/counted rather than queued or
// run concurrently.
type TickScheduler struct {
	interval        time.Duration
	shutdownTimeout time.Duration
	tick            TickFunc
	metrics         *metrics.Metrics
	logger          *logging.Logger

	mu       sync.Mutex
	running  bool
	inFlight bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New creates a TickScheduler. shutdownTimeout of zero uses DefaultShutdownTimeout.
func New(interval time.Duration, shutdownTimeout time.Duration, tick TickFunc, m *metrics.Metrics) *TickScheduler {
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	return &TickScheduler{
		interval:        interval,
		shutdownTimeout: shutdownTimeout,
		tick:            tick,
		metrics:         m,
		logger:          logging.GetLogger("scheduler.tick"),
	}
}

// Name implements lifecycle.Component.
func (s *TickScheduler) Name() string { return "scheduler.tick" }

// Start implements lifecycle.Component. It runs the first tick immediately,
// then on every interval thereafter.
func (s *TickScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.InfoWithFields("starting tick scheduler", logging.Field("interval", s.interval.String()))

	s.wg.Add(1)
	go s.runLoop(ctx)
	return nil
}

// Stop implements lifecycle.Component. It stops scheduling new ticks and
// waits up to shutdownTimeout for any in-flight tick to finish.
func (s *TickScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("tick scheduler stopped")
		return nil
	case <-time.After(s.shutdownTimeout):
		s.logger.Warn("tick scheduler shutdown timed out waiting for in-flight tick")
		return context.DeadlineExceeded
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *TickScheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runTickIfIdle(ctx)

	for {
		select {
		case <-ticker.C:
			s.runTickIfIdle(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// runTickIfIdle enforces the single-flight guarantee: a tick still running
// when the next interval fires causes the new one to be skipped, logged,
// and counted, never queued or run concurrently.
func (s *TickScheduler) runTickIfIdle(ctx context.Context) {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		s.logger.Warn("tick skipped: previous tick is still running")
		if s.metrics != nil {
			s.metrics.TicksSkippedTotal.Inc()
		}
		return
	}
	s.inFlight = true
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.inFlight = false
			s.mu.Unlock()
		}()

		start := time.Now()
		if err := s.tick(ctx); err != nil {
			s.logger.WarnWithFields("tick failed", logging.Field("error", err.Error()))
		}
		if s.metrics != nil {
			s.metrics.TickDuration.Observe(time.Since(start).Seconds())
		}
	}()
}
