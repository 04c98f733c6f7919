package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/gamehub/internal/domain/model"
)

// SessionStore defines the driven port for session record persistence.
// Records are addressed by the hash of their token.
type SessionStore interface {
	Create(ctx context.Context, s model.Session) error
	// Get returns ErrNotFound if no session has the given token hash.
	Get(ctx context.Context, tokenHash string) (model.Session, error)
	Touch(ctx context.Context, tokenHash string, at time.Time) error
	Deactivate(ctx context.Context, tokenHash string) error

	// DeactivateAccount marks every active session of accountHash inactive
	// except the one identified by keepTokenHash. Returns the number changed.
	DeactivateAccount(ctx context.Context, accountHash, keepTokenHash string) (int64, error)

	// DeactivateExpired marks active sessions with expires_at <= now inactive.
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)

	// PurgeInactive deletes inactive sessions that expired before cutoff.
	PurgeInactive(ctx context.Context, cutoff time.Time) (int64, error)
}
