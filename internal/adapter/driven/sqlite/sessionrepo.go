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
var _ driven.SessionStore = (*SessionRepo)(nil)

// SessionRepo is the SQLite implementation of the SessionStore port interface.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new SessionRepo backed by the given DB.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Create inserts a new session. A duplicate token hash is an error.
func (r *SessionRepo) Create(ctx context.Context, s model.Session) error {
	const query = `
		INSERT INTO sessions (
			token_hash, account_hash, created_at, expires_at, last_used_at,
			ip_address, user_agent, active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		s.TokenHash,
		s.AccountHash,
		formatTime(s.CreatedAt),
		formatTime(s.ExpiresAt),
		formatTime(s.LastUsedAt),
		s.IPAddress,
		s.UserAgent,
		boolToInt(s.Active),
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Get returns the session with the given token hash.
func (r *SessionRepo) Get(ctx context.Context, tokenHash string) (model.Session, error) {
	const query = `
		SELECT token_hash, account_hash, created_at, expires_at, last_used_at,
			ip_address, user_agent, active
		FROM sessions WHERE token_hash = ?
	`

	var (
		s                              model.Session
		createdAt, expiresAt, lastUsed string
		active                         int
	)
	err := r.db.Reader.QueryRowContext(ctx, query, tokenHash).Scan(
		&s.TokenHash, &s.AccountHash, &createdAt, &expiresAt, &lastUsed,
		&s.IPAddress, &s.UserAgent, &active,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, driven.ErrNotFound
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("get session: %w", err)
	}

	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Session{}, fmt.Errorf("parse created_at: %w", err)
	}
	if s.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return model.Session{}, fmt.Errorf("parse expires_at: %w", err)
	}
	if s.LastUsedAt, err = parseTime(lastUsed); err != nil {
		return model.Session{}, fmt.Errorf("parse last_used_at: %w", err)
	}
	s.Active = active != 0

	return s, nil
}

// Touch records that the session was used at the given time.
func (r *SessionRepo) Touch(ctx context.Context, tokenHash string, at time.Time) error {
	const query = `UPDATE sessions SET last_used_at = ? WHERE token_hash = ?`

	res, err := r.db.Writer.ExecContext(ctx, query, formatTime(at), tokenHash)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return requireRow(res)
}

// Deactivate marks a single session inactive. The record is kept.
func (r *SessionRepo) Deactivate(ctx context.Context, tokenHash string) error {
	const query = `UPDATE sessions SET active = 0 WHERE token_hash = ?`

	res, err := r.db.Writer.ExecContext(ctx, query, tokenHash)
	if err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	return requireRow(res)
}

// DeactivateAccount marks all other active sessions of an account inactive.
func (r *SessionRepo) DeactivateAccount(ctx context.Context, accountHash, keepTokenHash string) (int64, error) {
	const query = `UPDATE sessions SET active = 0 WHERE account_hash = ? AND token_hash != ? AND active = 1`

	res, err := r.db.Writer.ExecContext(ctx, query, accountHash, keepTokenHash)
	if err != nil {
		return 0, fmt.Errorf("deactivate account sessions: %w", err)
	}
	return res.RowsAffected()
}

// DeactivateExpired marks every active session whose expiry has passed inactive.
func (r *SessionRepo) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `UPDATE sessions SET active = 0 WHERE active = 1 AND expires_at <= ?`

	res, err := r.db.Writer.ExecContext(ctx, query, formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("deactivate expired sessions: %w", err)
	}
	return res.RowsAffected()
}

// PurgeInactive deletes inactive sessions that expired before cutoff.
func (r *SessionRepo) PurgeInactive(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM sessions WHERE active = 0 AND expires_at < ?`

	res, err := r.db.Writer.ExecContext(ctx, query, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("purge inactive sessions: %w", err)
	}
	return res.RowsAffected()
}

// requireRow maps an update that matched nothing to ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return driven.ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
