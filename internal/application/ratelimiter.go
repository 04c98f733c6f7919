package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/gamehub/internal/domain/model"
	"github.com/ericfisherdev/gamehub/internal/domain/port/driven"
	"github.com/ericfisherdev/gamehub/internal/metrics"
)

const defaultStoreTimeout = 5 * time.Second

// RateLimit is the ceiling for one action: at most Max requests per Window.
type RateLimit struct {
	Max    int
	Window time.Duration
}

// RateLimiterConfig configures a RateLimiter.
type RateLimiterConfig struct {
	Limits       map[model.RateAction]RateLimit
	Block        time.Duration // How long an address stays blocked after exceeding a ceiling.
	StoreTimeout time.Duration
}

// DefaultRateLimiterConfig returns 5 authentications per 5 minutes, 100 data
// calls per minute and a one hour block.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Limits: map[model.RateAction]RateLimit{
			model.RateActionAuth: {Max: 5, Window: 5 * time.Minute},
			model.RateActionAPI:  {Max: 100, Window: time.Minute},
		},
		Block:        time.Hour,
		StoreTimeout: defaultStoreTimeout,
	}
}

// RateLimiter enforces fixed-window ceilings per (ip, action). Counters live
// in a RateLimitStore; the read-modify-write of one counter is serialized
// per (ip, action) while different pairs proceed independently.
type RateLimiter struct {
	store   driven.RateLimitStore
	cfg     RateLimiterConfig
	metrics *metrics.Metrics
	now     func() time.Time
	locks   keyedMutex
}

// NewRateLimiter creates a RateLimiter over store.
func NewRateLimiter(store driven.RateLimitStore, cfg RateLimiterConfig, m *metrics.Metrics) *RateLimiter {
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}
	return &RateLimiter{
		store:   store,
		cfg:     cfg,
		metrics: m,
		now:     time.Now,
	}
}

// SetClock replaces the time source. Intended for tests.
func (l *RateLimiter) SetClock(now func() time.Time) {
	l.now = now
}

// Allow reports whether a request for action from ip may proceed, counting
// it if so. Actions without a configured ceiling are always allowed.
func (l *RateLimiter) Allow(ctx context.Context, ip string, action model.RateAction) (bool, error) {
	err := l.Check(ctx, ip, action)
	if errors.Is(err, ErrRateLimited) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Check is Allow in error form: it returns a *RateLimitedError when the
// request is rejected.
func (l *RateLimiter) Check(ctx context.Context, ip string, action model.RateAction) error {
	limit, ok := l.cfg.Limits[action]
	if !ok || limit.Max <= 0 {
		return nil
	}

	unlock := l.locks.Lock(string(action) + "\x00" + ip)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, l.cfg.StoreTimeout)
	defer cancel()

	now := l.now().UTC()

	counter, err := l.store.Get(ctx, ip, action)
	if errors.Is(err, driven.ErrNotFound) {
		return l.save(ctx, model.RateLimitCounter{
			IPAddress:    ip,
			Action:       action,
			WindowStart:  now,
			RequestCount: 1,
		})
	}
	if err != nil {
		return fmt.Errorf("load rate limit counter: %w", err)
	}

	if counter.Blocked(now) {
		return l.reject(action, counter.BlockedUntil.Sub(now))
	}

	// A cleared block or an elapsed window both start a fresh window.
	if !counter.BlockedUntil.IsZero() || now.Sub(counter.WindowStart) >= limit.Window {
		counter.WindowStart = now
		counter.RequestCount = 1
		counter.BlockedUntil = time.Time{}
		return l.save(ctx, counter)
	}

	if counter.RequestCount >= limit.Max {
		counter.BlockedUntil = now.Add(l.cfg.Block)
		if err := l.save(ctx, counter); err != nil {
			return err
		}
		return l.reject(action, l.cfg.Block)
	}

	counter.RequestCount++
	return l.save(ctx, counter)
}

func (l *RateLimiter) save(ctx context.Context, c model.RateLimitCounter) error {
	if err := l.store.Save(ctx, c); err != nil {
		return fmt.Errorf("save rate limit counter: %w", err)
	}
	return nil
}

func (l *RateLimiter) reject(action model.RateAction, retryAfter time.Duration) error {
	l.metrics.RateLimited(string(action))
	if retryAfter < time.Second {
		retryAfter = time.Second
	}
	return &RateLimitedError{Action: action, RetryAfter: retryAfter}
}
