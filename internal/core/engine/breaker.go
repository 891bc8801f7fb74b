package engine

import "time"

// Circuit breaker defaults.
const (
	DefaultBreakerThreshold = 3
	DefaultResetWindow      = 10 * time.Minute
)

// CircuitBreaker is a two-state (closed/open) cutoff. It has no half-open
// probing: once the reset window elapses the next admission check closes it
// fully. State is owned by one admission controller and is not safe for
// shared use across controllers.
type CircuitBreaker struct {
	Threshold   int
	ResetWindow time.Duration
	Clock       func() time.Time

	open     bool
	openedAt time.Time
}

// Trip opens the breaker, blocking all admission until the reset window
// elapses. Tripping an already-open breaker does not extend the window.
func (b *CircuitBreaker) Trip() {
	if b == nil || b.open {
		return
	}
	b.open = true
	b.openedAt = b.now()
}

// IsOpen reports whether the breaker is currently blocking admission. The
// flag stays set past the deadline until Reset is called by the next
// admission check, so status snapshots reflect the blocked state.
func (b *CircuitBreaker) IsOpen() bool {
	return b != nil && b.open
}

// Remaining returns how long admission stays blocked. Zero once the reset
// window has elapsed (or the breaker is closed).
func (b *CircuitBreaker) Remaining() time.Duration {
	if b == nil || !b.open {
		return 0
	}
	remaining := b.openedAt.Add(b.resetWindow()).Sub(b.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ResetAt returns the deadline after which admission may resume.
func (b *CircuitBreaker) ResetAt() (time.Time, bool) {
	if b == nil || !b.open {
		return time.Time{}, false
	}
	return b.openedAt.Add(b.resetWindow()), true
}

// Reset closes the breaker.
func (b *CircuitBreaker) Reset() {
	if b == nil {
		return
	}
	b.open = false
	b.openedAt = time.Time{}
}

func (b *CircuitBreaker) threshold() int {
	if b == nil || b.Threshold <= 0 {
		return DefaultBreakerThreshold
	}
	return b.Threshold
}

func (b *CircuitBreaker) resetWindow() time.Duration {
	if b == nil || b.ResetWindow <= 0 {
		return DefaultResetWindow
	}
	return b.ResetWindow
}

func (b *CircuitBreaker) now() time.Time {
	if b != nil && b.Clock != nil {
		return b.Clock()
	}
	return time.Now().UTC()
}
