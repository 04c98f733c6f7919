package model

// RateAction identifies a rate-limited category of requests. Each category
// has its own counter and ceiling per source address.
type RateAction string

const (
	RateActionAuth RateAction = "auth" // Credential submissions.
	RateActionAPI  RateAction = "api"  // Data calls made with a session token.
)

// SessionState is the derived lifecycle state of a session record.
type SessionState string

const (
	SessionStateActive  SessionState = "active"
	SessionStateExpired SessionState = "expired"
	SessionStateRevoked SessionState = "revoked" // Inactive before its expiry.
)

// AuditAction names a security-relevant event written to the audit log.
type AuditAction string

const (
	AuditAuthSuccess     AuditAction = "AUTH_SUCCESS"
	AuditAuthFailed      AuditAction = "AUTH_FAILED"
	AuditAuthRateLimited AuditAction = "AUTH_RATE_LIMITED"
	AuditAuthError       AuditAction = "AUTH_ERROR"
	AuditDataRetrieved   AuditAction = "DATA_RETRIEVED"
	AuditDataError       AuditAction = "DATA_ERROR"
	AuditDataRateLimited AuditAction = "DATA_RATE_LIMITED"
)
