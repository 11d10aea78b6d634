// internal/poller/builder.go
package poller

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/modbus-regsync/internal/event"
	"github.com/tamzrod/modbus-regsync/internal/register"
)

// UnitSpec is everything needed to build one unit poller.
type UnitSpec struct {
	Unit       uint8
	Layout     register.Layout
	Read       register.Span
	Interval   time.Duration
	PauseRetry time.Duration
	QueueSize  int
}

// Build constructs the mirror store and the poller of one unit.
// Mirror changes are published as register-changed events.
func Build(spec UnitSpec, link Sender, events event.Emitter, log zerolog.Logger) (*Poller, error) {
	if events == nil {
		events = event.Discard
	}
	ulog := log.With().Uint8("unit", spec.Unit).Logger()

	mirror, err := register.NewStore(spec.Unit, spec.Layout,
		register.WithChangeFunc(event.StoreNotifier(events)),
		register.WithLogger(ulog),
	)
	if err != nil {
		return nil, fmt.Errorf("poller: unit %d: %w", spec.Unit, err)
	}

	return New(
		Config{
			Unit:       spec.Unit,
			Interval:   spec.Interval,
			PauseRetry: spec.PauseRetry,
			Read: ReadBlock{
				Address:  spec.Read.Start,
				Quantity: uint16(spec.Read.Len()),
			},
		},
		link,
		mirror,
		WithEmitter(events),
		WithLogger(ulog),
		WithQueueSize(spec.QueueSize),
	)
}

// ---- GROUP ----

// Group is the set of unit pollers sharing one link.
// It is the entry point for external write calls.
type Group struct {
	pollers map[uint8]*Poller
	units   []uint8
}

// NewGroup indexes pollers by unit. Duplicate units are rejected.
func NewGroup(pollers ...*Poller) (*Group, error) {
	g := &Group{pollers: make(map[uint8]*Poller, len(pollers))}
	for _, p := range pollers {
		if _, dup := g.pollers[p.Unit()]; dup {
			return nil, fmt.Errorf("poller: duplicate unit %d", p.Unit())
		}
		g.pollers[p.Unit()] = p
		g.units = append(g.units, p.Unit())
	}
	sort.Slice(g.units, func(i, j int) bool { return g.units[i] < g.units[j] })
	return g, nil
}

// Units returns the unit ids in ascending order.
func (g *Group) Units() []uint8 {
	return append([]uint8(nil), g.units...)
}

// Poller returns the poller of unit.
func (g *Group) Poller(unit uint8) (*Poller, bool) {
	p, ok := g.pollers[unit]
	return p, ok
}

// SubmitSingle queues a single-register write for unit.
func (g *Group) SubmitSingle(unit uint8, addr int, value uint16) (bool, error) {
	p, ok := g.pollers[unit]
	if !ok {
		return false, fmt.Errorf("poller: unknown unit %d", unit)
	}
	return p.SubmitSingle(addr, value)
}

// SubmitMulti queues a block write for unit.
func (g *Group) SubmitMulti(unit uint8, values []uint16) error {
	p, ok := g.pollers[unit]
	if !ok {
		return fmt.Errorf("poller: unknown unit %d", unit)
	}
	return p.SubmitMulti(values)
}

// Run starts one goroutine per unit and blocks until all of them return.
func (g *Group) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, u := range g.units {
		p := g.pollers[u]
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Run(ctx)
		}()
	}
	wg.Wait()
}
