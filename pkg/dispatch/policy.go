package dispatch

import (
	"errors"
	"time"
)

// Policy governs retries and recovery.
type Policy struct {
	// MaxAttempts is how many backend calls one request may use.
	MaxAttempts int

	// Backoff is the pause between attempts.
	Backoff time.Duration

	// FailureThreshold is the number of consecutive failed requests that
	// puts the dispatcher in degraded mode and triggers a restart.
	FailureThreshold int
}

// DefaultPolicy returns one retry after 2s and a threshold of 3.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:      2,
		Backoff:          2 * time.Second,
		FailureThreshold: 3,
	}
}

// Validate checks the policy.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return errors.New("dispatch: max attempts must be at least 1")
	}
	if p.Backoff < 0 {
		return errors.New("dispatch: backoff cannot be negative")
	}
	if p.FailureThreshold < 1 {
		return errors.New("dispatch: failure threshold must be at least 1")
	}
	return nil
}

// Restarts reports whether reaching failures consecutive failures should
// trigger a backend restart.
func (p Policy) Restarts(failures int) bool {
	return failures >= p.FailureThreshold && failures%p.FailureThreshold == 0
}
