package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ericfisherdev/gamehub/internal/domain/model"
	"github.com/ericfisherdev/gamehub/internal/domain/port/driven"
)

// Auditor writes security events to the audit log. Writes are best effort:
// a failure is logged and never reaches the caller. A nil *Auditor is valid
// and records nothing.
type Auditor struct {
	store   driven.AuditStore
	timeout time.Duration
	now     func() time.Time
}

// NewAuditor creates an Auditor whose writes are bounded by timeout.
func NewAuditor(store driven.AuditStore, timeout time.Duration) *Auditor {
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	return &Auditor{store: store, timeout: timeout, now: time.Now}
}

// auditEntry carries the request-scoped fields of an audit event.
type auditEntry struct {
	action      model.AuditAction
	accountHash string
	ip          string
	userAgent   string
	details     string
	success     bool
}

func (a *Auditor) record(ctx context.Context, e auditEntry) {
	if a == nil || a.store == nil {
		return
	}

	// Detached from request cancellation so a client hang-up still leaves a trail.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()

	event := model.AuditEvent{
		ID:          ulid.Make().String(),
		OccurredAt:  a.now().UTC(),
		AccountHash: e.accountHash,
		Action:      e.action,
		IPAddress:   e.ip,
		UserAgent:   e.userAgent,
		Details:     e.details,
		Success:     e.success,
	}
	if err := a.store.Record(ctx, event); err != nil {
		slog.Warn("audit write failed", "action", e.action, "error", err)
	}
}
