// internal/status/snapshot.go
package status

import "time"

// Snapshot is the link state as published to collaborators.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	State State

	// LastErrorCode is 0 while healthy, otherwise see ErrorCode.
	LastErrorCode uint16
	LastError     string

	// Failures counts consecutive failed reconnect attempts.
	Failures int

	// NextRetry is the wait before the next reconnect attempt.
	NextRetry time.Duration

	Since time.Time
}
