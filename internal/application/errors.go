package application

import (
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/gamehub/internal/domain/model"
)

// Session errors returned by SessionService.Validate. All of them mean the
// presented token must not be trusted.
var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionExpired    = errors.New("session expired")
	ErrSessionRevoked    = errors.New("session revoked")
	ErrSessionIPMismatch = errors.New("session bound to a different address")
)

// ErrSessionCredentialsMissing is returned when a valid session points at an
// account whose credentials are no longer in the store.
var ErrSessionCredentialsMissing = errors.New("no stored credentials for session")

// ErrProfileUnavailable wraps the upstream failure of the profile call, the
// one section a view cannot be built without.
var ErrProfileUnavailable = errors.New("profile unavailable")

// ErrRateLimited matches every *RateLimitedError via errors.Is.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitedError reports a request rejected by the rate limiter.
type RateLimitedError struct {
	Action     model.RateAction
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Action, e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// InvalidCredentialsError reports that the upstream check rejected a
// credential pair. Err is the upstream failure.
type InvalidCredentialsError struct {
	Err error
}

func (e *InvalidCredentialsError) Error() string {
	return fmt.Sprintf("invalid credentials: %v", e.Err)
}

func (e *InvalidCredentialsError) Unwrap() error { return e.Err }

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// reasoner is implemented by upstream client errors that carry a stable
// failure reason.
type reasoner interface {
	UpstreamReason() string
}

// UpstreamReason returns the stable reason of an upstream failure in err's
// chain, or "unknown".
func UpstreamReason(err error) string {
	var r reasoner
	if errors.As(err, &r) {
		return r.UpstreamReason()
	}
	return "unknown"
}
