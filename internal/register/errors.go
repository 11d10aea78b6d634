// internal/register/errors.go
package register

import "errors"

var (
	// ErrOutOfRange is returned when address/count falls outside the store.
	ErrOutOfRange = errors.New("register: address out of range")

	// ErrNotWritable is returned when a remote write targets a read-only index.
	ErrNotWritable = errors.New("register: address not writable")

	// ErrBackingFailure wraps durable backing errors. It is logged, never returned
	// from Read/Write.
	ErrBackingFailure = errors.New("register: durable backing failure")
)
