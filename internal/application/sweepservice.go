package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/gamehub/internal/domain/port/driven"
	"github.com/ericfisherdev/gamehub/internal/metrics"
)

// idleCounterAge is how long a rate-limit counter may sit untouched before
// the sweeper deletes it.
const idleCounterAge = 24 * time.Hour

// SweepResult counts what one sweep changed.
type SweepResult struct {
	SessionsExpired int64
	SessionsPurged  int64
	CountersPurged  int64
}

// SweepService periodically expires sessions and removes stale records.
// Validation already expires sessions lazily; sweeping only bounds growth.
type SweepService struct {
	sessions  driven.SessionStore
	counters  driven.RateLimitStore
	interval  time.Duration
	retention time.Duration // Zero keeps inactive sessions forever.
	timeout   time.Duration
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewSweepService creates a SweepService.
func NewSweepService(
	sessions driven.SessionStore,
	counters driven.RateLimitStore,
	interval, retention, storeTimeout time.Duration,
	m *metrics.Metrics,
) *SweepService {
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}
	return &SweepService{
		sessions:  sessions,
		counters:  counters,
		interval:  interval,
		retention: retention,
		timeout:   storeTimeout,
		metrics:   m,
		now:       time.Now,
	}
}

// SetClock replaces the time source. Intended for tests.
func (s *SweepService) SetClock(now func() time.Time) {
	s.now = now
}

// Start runs an immediate sweep, then sweeps on the configured interval.
// Start blocks until the context is canceled. A non-positive interval
// disables sweeping and Start returns at once.
func (s *SweepService) Start(ctx context.Context) {
	if s.interval <= 0 {
		slog.Info("sweeper disabled")
		return
	}

	s.sweepAndLog(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.sweepAndLog(ctx)
		}
	}
}

// Run starts the sweeper in its own goroutine. The returned channel is
// closed once Start has returned, so callers can wait for an in-flight sweep
// before closing the stores.
func (s *SweepService) Run(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Start(ctx)
	}()
	return done
}

func (s *SweepService) sweepAndLog(ctx context.Context) {
	start := time.Now()
	res, err := s.Sweep(ctx)
	if err != nil {
		slog.Error("sweep failed", "error", err)
		return
	}
	slog.Info("sweep complete",
		"sessions_expired", res.SessionsExpired,
		"sessions_purged", res.SessionsPurged,
		"counters_purged", res.CountersPurged,
		"duration", time.Since(start),
	)
}

// Sweep performs one pass. Each step runs even if an earlier one failed;
// the returned error joins every failure.
func (s *SweepService) Sweep(ctx context.Context) (SweepResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now().UTC()
	var (
		res  SweepResult
		errs []error
		err  error
	)

	if res.SessionsExpired, err = s.sessions.DeactivateExpired(ctx, now); err != nil {
		errs = append(errs, fmt.Errorf("expire sessions: %w", err))
	}
	s.metrics.SweepRemoved("sessions_expired", res.SessionsExpired)

	if s.retention > 0 {
		if res.SessionsPurged, err = s.sessions.PurgeInactive(ctx, now.Add(-s.retention)); err != nil {
			errs = append(errs, fmt.Errorf("purge sessions: %w", err))
		}
		s.metrics.SweepRemoved("sessions_purged", res.SessionsPurged)
	}

	if res.CountersPurged, err = s.counters.PurgeIdle(ctx, now.Add(-idleCounterAge)); err != nil {
		errs = append(errs, fmt.Errorf("purge rate limit counters: %w", err))
	}
	s.metrics.SweepRemoved("counters_purged", res.CountersPurged)

	return res, errors.Join(errs...)
}
