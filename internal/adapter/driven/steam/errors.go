package steam

import (
	"errors"
	"fmt"
)

// Stable failure reasons carried by UpstreamError.
const (
	ReasonTimeout      = "timeout"
	ReasonTransport    = "transport"
	ReasonUnauthorized = "unauthorized"
	ReasonHTTPStatus   = "http_status"
	ReasonDecode       = "decode"
	ReasonNotFound     = "not_found"
)

// UpstreamError reports a failed Steam call. Reason is one of the Reason*
// constants and is safe to show to clients; Err holds the underlying cause
// for logs only.
type UpstreamError struct {
	Op         string
	Reason     string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("steam %s: %s (status %d)", e.Op, e.Reason, e.StatusCode)
	}
	return fmt.Sprintf("steam %s: %s", e.Op, e.Reason)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// UpstreamReason returns Reason. It lets callers outside this package read
// the reason without importing it.
func (e *UpstreamError) UpstreamReason() string { return e.Reason }

// ReasonOf returns the Reason of the first UpstreamError in err's chain, or ""
// if there is none.
func ReasonOf(err error) string {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Reason
	}
	return ""
}
