// internal/poller/types.go
package poller

import (
	"context"
	"time"

	"github.com/tamzrod/modbus-regsync/internal/codec"
)

// Sender is the link as seen by a unit poller.
type Sender interface {
	IsConnected() bool
	Send(ctx context.Context, req codec.Request) (codec.Response, error)
}

// ReadBlock describes the holding-register read geometry of one unit.
type ReadBlock struct {
	Address  uint16
	Quantity uint16
}

// PollResult is the outcome of one read cycle.
type PollResult struct {
	Unit      uint8
	At        time.Time
	Block     ReadBlock
	Registers []uint16
	Err       error // non-nil means the cycle failed and the mirror is unchanged
}
