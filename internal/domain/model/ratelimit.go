package model

import "time"

// RateLimitCounter is a fixed-window request counter for one source address
// and action. BlockedUntil is zero when the address is not blocked.
type RateLimitCounter struct {
	IPAddress    string
	Action       RateAction
	WindowStart  time.Time
	RequestCount int
	BlockedUntil time.Time
}

// Blocked reports whether the counter rejects requests at now. A block is
// inclusive of its end instant and only clears once now is past it.
func (c RateLimitCounter) Blocked(now time.Time) bool {
	return !c.BlockedUntil.IsZero() && !now.After(c.BlockedUntil)
}
