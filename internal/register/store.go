// internal/register/store.go
package register

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Store is the register memory of one unit.
//
// Two mutation paths exist:
//   - Write: remote-facing, restricted to the writable span.
//   - Set:   owning side (poll mirror, simulation), any in-bounds index.
//
// Mutations are serialized per store: value update, backing save and change
// notifications complete before the next mutation starts.
type Store struct {
	unit   uint8
	layout Layout

	wmu sync.Mutex   // one mutation at a time
	mu  sync.RWMutex // guards regs / loaded

	regs   []uint16
	loaded []bool

	backing  Backing
	onChange ChangeFunc
	log      zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithBacking attaches a durable backing. Cells without an initial value are
// loaded lazily from it on first read.
func WithBacking(b Backing) Option {
	return func(s *Store) {
		if b != nil {
			s.backing = b
		}
	}
}

// WithInitial seeds registers starting at address 0. Extra values are ignored.
func WithInitial(values []uint16) Option {
	return func(s *Store) {
		for i, v := range values {
			if i >= len(s.regs) {
				break
			}
			s.regs[i] = v
			s.loaded[i] = true
		}
	}
}

// WithChangeFunc registers the change notification callback.
func WithChangeFunc(fn ChangeFunc) Option {
	return func(s *Store) { s.onChange = fn }
}

// WithLogger sets the logger used for backing failures.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// NewStore creates the store for one unit.
func NewStore(unit uint8, layout Layout, opts ...Option) (*Store, error) {
	if err := layout.Check(); err != nil {
		return nil, err
	}

	s := &Store{
		unit:    unit,
		layout:  layout,
		regs:    make([]uint16, layout.Size),
		loaded:  make([]bool, layout.Size),
		backing: nopBacking{},
		log:     zerolog.Nop(),
	}

	// Backing applies before initial values so WithInitial can override it.
	for _, opt := range opts {
		opt(s)
	}

	// Pure memory: nothing to load, every cell starts at zero.
	if _, ok := s.backing.(nopBacking); ok {
		for i := range s.loaded {
			s.loaded[i] = true
		}
	}

	return s, nil
}

// Unit returns the owning unit id.
func (s *Store) Unit() uint8 { return s.unit }

// Layout returns the store geometry.
func (s *Store) Layout() Layout { return s.layout }

// Read returns count registers starting at addr.
func (s *Store) Read(addr, count int) ([]uint16, error) {
	if err := s.bounds(addr, count); err != nil {
		return nil, err
	}

	s.mu.RLock()
	if s.allLoaded(addr, count) {
		out := s.copyLocked(addr, count)
		s.mu.RUnlock()
		return out, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := addr; i < addr+count; i++ {
		if !s.loaded[i] {
			s.loadLocked(i)
		}
	}
	return s.copyLocked(addr, count), nil
}

// Write is the validated, remote-facing mutation. Every written index raises
// one change notification, whether or not its value differs.
func (s *Store) Write(addr int, values []uint16) error {
	if err := s.bounds(addr, len(values)); err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}
	if !s.layout.Writable.Covers(addr, len(values)) {
		return fmt.Errorf("%w: unit=%d addr=%d count=%d writable=%v",
			ErrNotWritable, s.unit, addr, len(values), s.layout.Writable)
	}

	s.apply(addr, values, true)
	return nil
}

// Set is the privileged owning-side mutation. It bypasses the writable check
// and only notifies for indices whose value actually changed.
func (s *Store) Set(addr int, values []uint16) error {
	if err := s.bounds(addr, len(values)); err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}

	s.apply(addr, values, false)
	return nil
}

// Snapshot returns a copy of the full register array.
func (s *Store) Snapshot() []uint16 {
	out, _ := s.Read(0, int(s.layout.Size))
	return out
}

// Announce emits the current value of every register through the change
// callback without mutating anything.
func (s *Store) Announce() {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if s.onChange == nil {
		return
	}
	for addr, v := range s.Snapshot() {
		s.onChange(Change{Unit: s.unit, Address: uint16(addr), Value: v})
	}
}

// ---- internal ----

func (s *Store) apply(addr int, values []uint16, notifyAll bool) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	changes := make([]Change, 0, len(values))

	s.mu.Lock()
	for i, v := range values {
		idx := addr + i
		if !notifyAll && s.loaded[idx] && s.regs[idx] == v {
			continue
		}
		s.regs[idx] = v
		s.loaded[idx] = true
		changes = append(changes, Change{Unit: s.unit, Address: uint16(idx), Value: v})
	}
	s.mu.Unlock()

	// Best effort: memory already holds the new value (last writer wins).
	for _, c := range changes {
		if err := s.backing.Save(c.Unit, c.Address, c.Value); err != nil {
			s.log.Warn().
				Err(fmt.Errorf("%w: %v", ErrBackingFailure, err)).
				Uint8("unit", c.Unit).
				Uint16("addr", c.Address).
				Msg("register save failed")
		}
	}

	if s.onChange == nil {
		return
	}
	for _, c := range changes {
		s.onChange(c)
	}
}

func (s *Store) loadLocked(idx int) {
	v, ok, err := s.backing.Load(s.unit, uint16(idx))
	if err != nil {
		// Left unloaded: the next read consults the backing again.
		s.log.Warn().
			Err(fmt.Errorf("%w: %v", ErrBackingFailure, err)).
			Uint8("unit", s.unit).
			Int("addr", idx).
			Msg("register load failed")
		return
	}
	if ok {
		s.regs[idx] = v
	}
	s.loaded[idx] = true
}

func (s *Store) bounds(addr, count int) error {
	if addr < 0 || count < 0 || addr+count > int(s.layout.Size) {
		return fmt.Errorf("%w: unit=%d addr=%d count=%d size=%d",
			ErrOutOfRange, s.unit, addr, count, s.layout.Size)
	}
	return nil
}

func (s *Store) allLoaded(addr, count int) bool {
	for i := addr; i < addr+count; i++ {
		if !s.loaded[i] {
			return false
		}
	}
	return true
}

func (s *Store) copyLocked(addr, count int) []uint16 {
	out := make([]uint16, count)
	copy(out, s.regs[addr:addr+count])
	return out
}
