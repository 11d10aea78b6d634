// internal/writer/types.go
package writer

import (
	"context"
	"errors"
	"fmt"

	"github.com/tamzrod/modbus-regsync/internal/codec"
	"github.com/tamzrod/modbus-regsync/internal/register"
)

var (
	// ErrLengthMismatch: a block write must carry exactly one value per
	// writable address.
	ErrLengthMismatch = errors.New("writer: value count does not match writable span")

	// ErrQueueFull: the unit's pending-write queue has no room.
	ErrQueueFull = errors.New("writer: queue full")
)

// Kind distinguishes single-register and block writes.
type Kind int

const (
	KindSingle Kind = iota + 1
	KindBlock
)

// PendingWrite is one write submitted by an external caller.
// It is consumed exactly once by the unit's poller and never retried.
type PendingWrite struct {
	Unit    uint8
	Kind    Kind
	Address uint16
	Values  []uint16
}

// Request converts the write into its wire request.
func (w PendingWrite) Request() codec.Request {
	if w.Kind == KindSingle {
		var v uint16
		if len(w.Values) > 0 {
			v = w.Values[0]
		}
		return codec.WriteSingleRegister(w.Unit, w.Address, v)
	}
	return codec.WriteMultipleRegisters(w.Unit, w.Address, w.Values)
}

func (w PendingWrite) String() string {
	if w.Kind == KindSingle {
		return fmt.Sprintf("WRITE1 addr=%d val=%v", w.Address, w.Values)
	}
	return fmt.Sprintf("WRITE_N addr=%d vals=%v", w.Address, w.Values)
}

// Plan is the write plan for one unit: which addresses callers may write.
type Plan struct {
	Unit     uint8
	Writable register.Span
}

// Sender is the exact contract the writer uses to reach the wire.
type Sender interface {
	Send(ctx context.Context, req codec.Request) (codec.Response, error)
}

// Writer executes pending writes.
type Writer interface {
	Write(ctx context.Context, w PendingWrite) error
}
