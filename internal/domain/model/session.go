package model

import "time"

// Session binds an opaque bearer token to an account hash. Only the SHA-256
// digest of the token is kept; the token itself is handed to the client once.
type Session struct {
	TokenHash   string
	AccountHash string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	LastUsedAt  time.Time
	IPAddress   string
	UserAgent   string
	Active      bool
}

// State reports the lifecycle state of the session at now.
// Expiry wins over the active flag so that a lazily-expired record and one
// flipped inactive on expiry report the same state.
func (s Session) State(now time.Time) SessionState {
	if !now.Before(s.ExpiresAt) {
		return SessionStateExpired
	}
	if !s.Active {
		return SessionStateRevoked
	}
	return SessionStateActive
}

// Usable reports whether the session may authorize a request at now.
func (s Session) Usable(now time.Time) bool {
	return s.State(now) == SessionStateActive
}
