package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ericfisherdev/gamehub/internal/domain/model"
	"github.com/ericfisherdev/gamehub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AuditStore = (*AuditRepo)(nil)

// AuditRepo is the SQLite implementation of the AuditStore port interface.
type AuditRepo struct {
	db *DB
}

// NewAuditRepo creates a new AuditRepo backed by the given DB.
func NewAuditRepo(db *DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// Record appends an event to the audit log.
func (r *AuditRepo) Record(ctx context.Context, e model.AuditEvent) error {
	const query = `
		INSERT INTO audit_log (
			id, occurred_at, account_hash, action, ip_address, user_agent, details, success
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	accountHash := sql.NullString{String: e.AccountHash, Valid: e.AccountHash != ""}
	_, err := r.db.Writer.ExecContext(ctx, query,
		e.ID,
		formatTime(e.OccurredAt),
		accountHash,
		string(e.Action),
		e.IPAddress,
		e.UserAgent,
		e.Details,
		boolToInt(e.Success),
	)
	if err != nil {
		return fmt.Errorf("record audit event %s: %w", e.Action, err)
	}
	return nil
}
