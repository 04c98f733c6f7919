package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/gamehub/internal/domain/model"
)

// ErrNotFound is returned by store lookups when no record matches the key.
// It is an expected condition, unlike ErrStoreCorruption.
var ErrNotFound = errors.New("record not found")

// ErrStoreCorruption is returned when a stored value cannot be decrypted with
// the configured key. It signals a broken security boundary and must never be
// treated as a missing record.
var ErrStoreCorruption = errors.New("credential store corrupted: decryption failed")

// CredentialStore defines the driven port for encrypted credential persistence.
// The adapter layer is responsible for encryption/decryption; this interface
// operates on plaintext values at the domain boundary.
type CredentialStore interface {
	// DeriveAccountHash returns the stable, non-reversible key under which the
	// credentials of accountID are stored. Same input, same output.
	DeriveAccountHash(accountID string) string

	// Upsert encrypts and stores the pair for DeriveAccountHash(accountID),
	// overwriting any existing record in place. login_count is incremented and
	// last_login_at set to now atomically with the write.
	Upsert(ctx context.Context, accountID, apiKey string, now time.Time) (model.CredentialRecord, error)

	// Resolve decrypts and returns the pair stored under accountHash.
	// Returns ErrNotFound if no record exists and ErrStoreCorruption if the
	// record cannot be decrypted.
	Resolve(ctx context.Context, accountHash string) (model.CredentialPair, error)
}
