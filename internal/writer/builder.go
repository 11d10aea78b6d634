// internal/writer/builder.go
package writer

import (
	"fmt"

	"github.com/tamzrod/modbus-regsync/internal/codec"
	"github.com/tamzrod/modbus-regsync/internal/register"
)

// BuildPlan derives the write plan of one unit from its register layout.
// Assumes the layout has already passed validation.
func BuildPlan(unit uint8, layout register.Layout) (Plan, error) {
	if unit == 0 {
		return Plan{}, fmt.Errorf("writer: unit id required")
	}
	if layout.Writable.Len() > codec.MaxWriteQuantity {
		return Plan{}, fmt.Errorf("writer: unit %d writable span %s exceeds %d registers",
			unit, layout.Writable, codec.MaxWriteQuantity)
	}
	return Plan{Unit: unit, Writable: layout.Writable}, nil
}

// Single builds a single-register write.
// An address outside the writable span yields ok=false and no write.
func (p Plan) Single(addr int, value uint16) (PendingWrite, bool) {
	if !p.Writable.Contains(addr) {
		return PendingWrite{}, false
	}
	return PendingWrite{
		Unit:    p.Unit,
		Kind:    KindSingle,
		Address: uint16(addr),
		Values:  []uint16{value},
	}, true
}

// Multi builds a block write covering the whole writable span.
func (p Plan) Multi(values []uint16) (PendingWrite, error) {
	if p.Writable.Len() == 0 || len(values) != p.Writable.Len() {
		return PendingWrite{}, fmt.Errorf("%w: got %d values, want %d",
			ErrLengthMismatch, len(values), p.Writable.Len())
	}
	return PendingWrite{
		Unit:    p.Unit,
		Kind:    KindBlock,
		Address: p.Writable.Start,
		Values:  append([]uint16(nil), values...),
	}, nil
}
