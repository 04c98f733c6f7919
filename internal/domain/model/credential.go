package model

import "time"

// CredentialPair is the plaintext (account id, API key) pair needed to call
// the Steam Web API on a user's behalf. It only exists in memory.
type CredentialPair struct {
	AccountID string
	APIKey    string
}

// CredentialRecord is the persisted metadata for one upstream account. The
// encrypted values never leave the storage adapter; callers see only the
// bookkeeping fields.
type CredentialRecord struct {
	ID          string
	AccountHash string
	CreatedAt   time.Time
	LastLoginAt time.Time
	LoginCount  int64
}
