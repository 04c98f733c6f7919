package model

import "time"

// AuditEvent is a single entry in the security audit log.
type AuditEvent struct {
	ID          string
	OccurredAt  time.Time
	AccountHash string // Empty when the account is unknown.
	Action      AuditAction
	IPAddress   string
	UserAgent   string
	Details     string
	Success     bool
}
