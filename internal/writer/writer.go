// internal/writer/writer.go
package writer

import (
	"context"
	"fmt"

	"github.com/tamzrod/modbus-regsync/internal/codec"
)

type modbusWriter struct {
	plan   Plan
	sender Sender
}

// New returns a Writer sending through s.
func New(plan Plan, s Sender) Writer {
	return &modbusWriter{
		plan:   plan,
		sender: s,
	}
}

// Write performs the exchange for one pending write and checks the echo.
// Validation already happened when the write was built.
func (w *modbusWriter) Write(ctx context.Context, pw PendingWrite) error {
	if pw.Unit != w.plan.Unit {
		return fmt.Errorf("writer: write for unit %d routed to unit %d", pw.Unit, w.plan.Unit)
	}

	req := pw.Request()
	resp, err := w.sender.Send(ctx, req)
	if err != nil {
		return fmt.Errorf("writer: unit=%d addr=%d: %w", pw.Unit, pw.Address, err)
	}

	if resp.Address != req.Address || resp.Count != req.Count {
		return fmt.Errorf("writer: unit=%d: %w: echo addr=%d count=%d",
			pw.Unit, codec.ErrProtocol, resp.Address, resp.Count)
	}
	return nil
}
