// internal/register/types.go
package register

import "fmt"

// Span is a half-open register address range [Start, End).
type Span struct {
	Start uint16
	End   uint16
}

// Len returns the number of registers covered by the span.
func (s Span) Len() int {
	if s.End <= s.Start {
		return 0
	}
	return int(s.End - s.Start)
}

// Contains reports whether addr lies inside the span.
func (s Span) Contains(addr int) bool {
	return addr >= int(s.Start) && addr < int(s.End)
}

// Covers reports whether [addr, addr+count) lies entirely inside the span.
func (s Span) Covers(addr, count int) bool {
	return addr >= int(s.Start) && addr+count <= int(s.End)
}

func (s Span) String() string {
	return fmt.Sprintf("%d-%d", s.Start, int(s.End)-1)
}

// Layout is the fixed geometry shared by every unit store.
type Layout struct {
	Size     uint16
	ReadOnly Span
	Writable Span
}

// DefaultLayout is 10 registers: 0-4 read-only, 5-9 writable.
func DefaultLayout() Layout {
	return Layout{
		Size:     10,
		ReadOnly: Span{Start: 0, End: 5},
		Writable: Span{Start: 5, End: 10},
	}
}

// Check verifies the layout invariants.
func (l Layout) Check() error {
	if l.Size == 0 {
		return fmt.Errorf("register: layout size must be > 0")
	}
	if l.ReadOnly.End < l.ReadOnly.Start || l.Writable.End < l.Writable.Start {
		return fmt.Errorf("register: inverted span (read_only=%v writable=%v)", l.ReadOnly, l.Writable)
	}
	if l.ReadOnly.End > l.Size || l.Writable.End > l.Size {
		return fmt.Errorf("register: span exceeds size %d (read_only=%v writable=%v)", l.Size, l.ReadOnly, l.Writable)
	}
	if l.ReadOnly.End > l.Writable.Start {
		return fmt.Errorf("register: read-only span %v overlaps writable span %v", l.ReadOnly, l.Writable)
	}
	return nil
}

// Change is one register mutation as seen by subscribers.
type Change struct {
	Unit    uint8
	Address uint16
	Value   uint16
}

// ChangeFunc receives change notifications. It is called with the store's
// mutation lock held and must not write back into the same store.
type ChangeFunc func(Change)
