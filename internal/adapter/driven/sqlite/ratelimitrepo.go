package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/gamehub/internal/domain/model"
	"github.com/ericfisherdev/gamehub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RateLimitStore = (*RateLimitRepo)(nil)

// RateLimitRepo is the SQLite implementation of the RateLimitStore port interface.
type RateLimitRepo struct {
	db *DB
}

// NewRateLimitRepo creates a new RateLimitRepo backed by the given DB.
func NewRateLimitRepo(db *DB) *RateLimitRepo {
	return &RateLimitRepo{db: db}
}

// Get returns the counter for the (ip, action) pair.
func (r *RateLimitRepo) Get(ctx context.Context, ip string, action model.RateAction) (model.RateLimitCounter, error) {
	const query = `
		SELECT window_start, request_count, blocked_until
		FROM rate_limits WHERE ip_address = ? AND action = ?
	`

	c := model.RateLimitCounter{IPAddress: ip, Action: action}
	var windowStart string
	var blockedUntil sql.NullString
	err := r.db.Writer.QueryRowContext(ctx, query, ip, string(action)).
		Scan(&windowStart, &c.RequestCount, &blockedUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RateLimitCounter{}, driven.ErrNotFound
	}
	if err != nil {
		return model.RateLimitCounter{}, fmt.Errorf("get rate limit %s/%s: %w", ip, action, err)
	}

	if c.WindowStart, err = parseTime(windowStart); err != nil {
		return model.RateLimitCounter{}, fmt.Errorf("parse window_start: %w", err)
	}
	if c.BlockedUntil, err = parseNullableTime(blockedUntil); err != nil {
		return model.RateLimitCounter{}, fmt.Errorf("parse blocked_until: %w", err)
	}
	return c, nil
}

// Save inserts or replaces the counter for its (ip, action) pair.
func (r *RateLimitRepo) Save(ctx context.Context, c model.RateLimitCounter) error {
	const query = `
		INSERT INTO rate_limits (ip_address, action, window_start, request_count, blocked_until)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(ip_address, action) DO UPDATE SET
			window_start = excluded.window_start,
			request_count = excluded.request_count,
			blocked_until = excluded.blocked_until
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		c.IPAddress,
		string(c.Action),
		formatTime(c.WindowStart),
		c.RequestCount,
		formatNullableTime(c.BlockedUntil),
	)
	if err != nil {
		return fmt.Errorf("save rate limit %s/%s: %w", c.IPAddress, c.Action, err)
	}
	return nil
}

// PurgeIdle deletes counters whose window started before cutoff and that are
// not blocked past cutoff.
func (r *RateLimitRepo) PurgeIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `
		DELETE FROM rate_limits
		WHERE window_start < ?
		  AND (blocked_until IS NULL OR blocked_until < ?)
	`

	stamp := formatTime(cutoff)
	res, err := r.db.Writer.ExecContext(ctx, query, stamp, stamp)
	if err != nil {
		return 0, fmt.Errorf("purge idle rate limits: %w", err)
	}
	return res.RowsAffected()
}
