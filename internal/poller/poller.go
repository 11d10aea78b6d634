// internal/poller/poller.go
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/modbus-regsync/internal/codec"
	"github.com/tamzrod/modbus-regsync/internal/event"
	"github.com/tamzrod/modbus-regsync/internal/register"
	"github.com/tamzrod/modbus-regsync/internal/writer"
)

// Default poll cadence.
const (
	DefaultInterval   = 3 * time.Second
	DefaultPauseRetry = 1 * time.Second
)

// Config is the minimal runtime config the poller needs.
type Config struct {
	Unit       uint8
	Interval   time.Duration
	PauseRetry time.Duration
	Read       ReadBlock
}

// Poller keeps the local mirror of one remote unit fresh and executes the
// unit's pending writes. A single goroutine drives it (see Run), so reads
// and writes of one unit never overlap.
type Poller struct {
	cfg    Config
	link   Sender
	mirror *register.Store

	plan   writer.Plan
	writer writer.Writer
	queue  *writer.Queue

	events event.Emitter
	log    zerolog.Logger

	// owned by the Run goroutine
	paused bool
}

// Option configures a Poller.
type Option func(*Poller)

func WithEmitter(e event.Emitter) Option {
	return func(p *Poller) {
		if e != nil {
			p.events = e
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(p *Poller) { p.log = l }
}

// WithQueueSize bounds the pending-write queue.
func WithQueueSize(n int) Option {
	return func(p *Poller) { p.queue = writer.NewQueue(n) }
}

// New creates a poller with immutable config over mirror.
func New(cfg Config, link Sender, mirror *register.Store, opts ...Option) (*Poller, error) {
	if cfg.Unit == 0 {
		return nil, errors.New("poller: unit id required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if cfg.PauseRetry <= 0 {
		cfg.PauseRetry = DefaultPauseRetry
	}
	if link == nil || mirror == nil {
		return nil, errors.New("poller: link and mirror required")
	}
	if mirror.Unit() != cfg.Unit {
		return nil, fmt.Errorf("poller: mirror belongs to unit %d, not %d", mirror.Unit(), cfg.Unit)
	}
	if cfg.Read.Quantity == 0 || cfg.Read.Quantity > codec.MaxReadQuantity {
		return nil, fmt.Errorf("poller: read quantity %d out of range 1-%d", cfg.Read.Quantity, codec.MaxReadQuantity)
	}
	if int(cfg.Read.Address)+int(cfg.Read.Quantity) > int(mirror.Layout().Size) {
		return nil, fmt.Errorf("poller: read block %d+%d exceeds %d registers",
			cfg.Read.Address, cfg.Read.Quantity, mirror.Layout().Size)
	}

	plan, err := writer.BuildPlan(cfg.Unit, mirror.Layout())
	if err != nil {
		return nil, err
	}

	p := &Poller{
		cfg:    cfg,
		link:   link,
		mirror: mirror,
		plan:   plan,
		writer: writer.New(plan, link),
		queue:  writer.NewQueue(writer.DefaultQueueSize),
		events: event.Discard,
		log:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Unit returns the unit id.
func (p *Poller) Unit() uint8 { return p.cfg.Unit }

// Mirror returns the local register mirror.
func (p *Poller) Mirror() *register.Store { return p.mirror }

// ---- READ ----

// PollOnce performs exactly one read cycle.
// On success the mirror is updated through the privileged path; on failure
// it is left untouched and the error is reported, with no retry.
func (p *Poller) PollOnce(ctx context.Context) PollResult {
	res := PollResult{
		Unit:  p.cfg.Unit,
		At:    time.Now(),
		Block: p.cfg.Read,
	}

	req := codec.ReadHoldingRegisters(p.cfg.Unit, p.cfg.Read.Address, p.cfg.Read.Quantity)
	resp, err := p.link.Send(ctx, req)
	if err != nil {
		res.Err = err
		p.logf(event.SeverityError, "ERR READ %v", err)
		return res
	}

	if err := p.mirror.Set(int(p.cfg.Read.Address), resp.Values); err != nil {
		res.Err = err
		p.logf(event.SeverityError, "ERR READ %v", err)
		return res
	}

	res.Registers = resp.Values
	p.events.Emit(event.Event{
		Type: event.EventReadCompleted,
		Payload: event.BlockPayload{
			Unit:    p.cfg.Unit,
			Address: p.cfg.Read.Address,
			Values:  append([]uint16(nil), resp.Values...),
		},
	})
	p.log.Debug().Interface("regs", resp.Values).Msg("READ")
	return res
}

// ---- WRITE ----

// SubmitSingle queues a single-register write.
// An address outside the writable span is dropped: queued=false, err=nil.
func (p *Poller) SubmitSingle(addr int, value uint16) (bool, error) {
	w, ok := p.plan.Single(addr, value)
	if !ok {
		p.log.Debug().Int("addr", addr).Msg("write outside writable span ignored")
		return false, nil
	}
	if err := p.queue.Submit(w); err != nil {
		return false, err
	}
	return true, nil
}

// SubmitMulti queues a block write over the whole writable span.
// A wrong value count fails with ErrLengthMismatch before any I/O.
func (p *Poller) SubmitMulti(values []uint16) error {
	w, err := p.plan.Multi(values)
	if err != nil {
		return err
	}
	return p.queue.Submit(w)
}

// execute consumes one pending write. It is never retried.
func (p *Poller) execute(ctx context.Context, w writer.PendingWrite) {
	if err := p.writer.Write(ctx, w); err != nil {
		p.logf(event.SeverityError, "ERR %s: %v", w, err)
		return
	}

	// the remote confirmed the values; mirror them
	if err := p.mirror.Set(int(w.Address), w.Values); err != nil {
		p.log.Warn().Err(err).Msg("mirror update after write failed")
	}

	p.events.Emit(event.Event{
		Type: event.EventWriteConfirmed,
		Payload: event.BlockPayload{
			Unit:    p.cfg.Unit,
			Address: w.Address,
			Values:  append([]uint16(nil), w.Values...),
		},
	})
	p.logf(event.SeverityInfo, "%s", w)
}

func (p *Poller) logf(sev event.Severity, format string, args ...interface{}) {
	event.Logf(p.events, p.cfg.Unit, sev, format, args...)
}
