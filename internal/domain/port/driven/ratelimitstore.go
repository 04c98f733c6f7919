package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/gamehub/internal/domain/model"
)

// RateLimitStore defines the persistence operations behind fixed-window rate
// limiting. Callers serialize read-modify-write cycles per (ip, action).
type RateLimitStore interface {
	// Get returns ErrNotFound if no counter exists for the pair.
	Get(ctx context.Context, ip string, action model.RateAction) (model.RateLimitCounter, error)
	Save(ctx context.Context, c model.RateLimitCounter) error

	// PurgeIdle deletes counters whose window started before cutoff and which
	// are not blocked at cutoff.
	PurgeIdle(ctx context.Context, cutoff time.Time) (int64, error)
}
