package domain

import (
	"errors"
	"fmt"
	"time"
)

// Standard domain errors
var (
	ErrCandidateFetch = errors.New("failed to fetch recommendation candidates")
	ErrInvalidRequest = errors.New("invalid request parameters")
	ErrMissingItemID  = errors.New("candidate is missing an id")
)

// RateLimitError is returned when the limiter rejects a request. It
// carries what the 429 body needs to echo back, plus the window size
// for the Retry-After hint.
type RateLimitError struct {
	Remaining int
	ResetAt   time.Time
	Window    time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %d remaining, resets at %s", e.Remaining, e.ResetAt.Format(time.RFC3339))
}

// RetryAfter is the wait the client should observe: the full rate
// window, a fixed hint regardless of where in the window the rejection
// landed. Falls back to the time left until reset, floored at one
// second, when no window was recorded.
func (e *RateLimitError) RetryAfter() time.Duration {
	if e.Window > 0 {
		return e.Window
	}
	d := time.Until(e.ResetAt)
	if d < time.Second {
		return time.Second
	}
	return d
}
