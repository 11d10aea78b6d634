// internal/link/backoff.go
package link

import "time"

// Default reconnect configuration values.
const (
	DefaultBackoffInitial = 1 * time.Second
	DefaultBackoffMax     = 30 * time.Second
	DefaultTick           = 1 * time.Second
	DefaultTimeout        = 5 * time.Second
)

// backoff is a doubling reconnect delay without jitter.
// After k consecutive failures the delay is initial*2^k, capped at max.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(initial, max time.Duration) *backoff {
	if max < initial {
		max = initial
	}
	return &backoff{
		initial: initial,
		max:     max,
		current: initial,
	}
}

// Grow doubles the delay after a failed attempt.
func (b *backoff) Grow() {
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
}

// Reset restores the initial delay after a successful attempt.
func (b *backoff) Reset() {
	b.current = b.initial
}

// Current returns the delay before the next attempt.
func (b *backoff) Current() time.Duration {
	return b.current
}
