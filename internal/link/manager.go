// internal/link/manager.go
package link

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"github.com/rs/zerolog"

	"github.com/tamzrod/modbus-regsync/internal/codec"
	"github.com/tamzrod/modbus-regsync/internal/event"
	"github.com/tamzrod/modbus-regsync/internal/status"
)

// Config is the connection manager configuration.
// Zero durations fall back to the package defaults.
type Config struct {
	Endpoint       string
	Timeout        time.Duration
	Tick           time.Duration
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Tick <= 0 {
		c.Tick = DefaultTick
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = DefaultBackoffInitial
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = DefaultBackoffMax
	}
	return c
}

// Manager owns the single persistent connection shared by every unit poller.
//
// At most one exchange is on the wire at any time: the gate is a buffered
// channel of capacity 1 and blocked senders are served in arrival order.
type Manager struct {
	cfg       Config
	transport Transport
	events    event.Emitter
	log       zerolog.Logger
	now       func() time.Time

	gate chan struct{}

	mu      sync.RWMutex // guards fields below
	snap    status.Snapshot
	backoff *backoff
	due     time.Time // next reconnect attempt
	stopped bool      // explicit Disconnect; liveness stays idle
}

// Option configures a Manager.
type Option func(*Manager)

// WithEmitter sets the event sink for connection-status events.
func WithEmitter(e event.Emitter) Option {
	return func(m *Manager) {
		if e != nil {
			m.events = e
		}
	}
}

// WithLogger sets the manager logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// New builds a manager over an arbitrary transport. The manager starts
// Disconnected; the first liveness tick attempts to connect immediately.
func New(cfg Config, t Transport, opts ...Option) *Manager {
	cfg = cfg.withDefaults()

	m := &Manager{
		cfg:       cfg,
		transport: t,
		events:    event.Discard,
		log:       zerolog.Nop(),
		now:       time.Now,
		gate:      make(chan struct{}, 1),
		backoff:   newBackoff(cfg.BackoffInitial, cfg.BackoffMax),
	}
	for _, o := range opts {
		o(m)
	}

	m.snap = status.Snapshot{
		State:     status.Disconnected,
		NextRetry: m.backoff.Current(),
		Since:     m.now(),
	}
	return m
}

// NewTCP builds a manager over a Modbus TCP transport.
func NewTCP(cfg Config, opts ...Option) (*Manager, error) {
	cfg = cfg.withDefaults()

	m := New(cfg, nil, opts...)
	t, err := NewTCPTransport(cfg.Endpoint, cfg.Timeout, m.log.With().Str("component", "transport").Logger())
	if err != nil {
		return nil, err
	}
	m.transport = t
	return m, nil
}

// ---- STATE ----

// IsConnected is a non-blocking snapshot of the connection state.
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.State == status.Connected
}

// State returns the full connection status.
func (m *Manager) State() status.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

func (m *Manager) setState(s status.State, err error) {
	m.mu.Lock()
	changed := m.snap.State != s
	m.snap.State = s
	if err != nil {
		m.snap.LastErrorCode = status.ErrorCode(err)
		m.snap.LastError = err.Error()
	} else if s == status.Connected {
		m.snap.LastErrorCode = status.CodeNone
		m.snap.LastError = ""
	}
	if changed {
		m.snap.Since = m.now()
	}
	snap := m.snap
	m.mu.Unlock()

	if changed {
		m.events.Emit(event.Event{
			Type:    event.EventConnectionStatus,
			Payload: event.StatusPayload{Unit: 0, Snapshot: snap},
		})
	}
}

// ---- CONNECT / DISCONNECT ----

// Connect performs one connection attempt unless already connected.
// Failures are classified as ErrTimeout or ErrRefused.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	m.stopped = false
	m.mu.Unlock()

	return m.attempt(ctx)
}

func (m *Manager) attempt(ctx context.Context) error {
	if err := m.acquire(ctx); err != nil {
		return err
	}
	defer m.release()

	return m.connectLocked()
}

func (m *Manager) connectLocked() error {
	if m.IsConnected() {
		return nil
	}

	m.setState(status.Connecting, nil)

	if err := m.transport.Connect(); err != nil {
		_ = m.transport.Close()
		err = classifyDial(err)
		m.setState(status.Disconnected, err)
		m.log.Warn().Err(err).Str("endpoint", m.cfg.Endpoint).Msg("connect failed")
		return err
	}

	m.setState(status.Connected, nil)
	m.log.Info().Str("endpoint", m.cfg.Endpoint).Msg("connected")
	return nil
}

// Disconnect waits for the in-flight exchange, closes the transport and
// keeps the liveness loop idle until the next Connect.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()

	m.gate <- struct{}{}
	defer m.release()

	err := m.transport.Close()
	m.setState(status.Disconnected, nil)
	m.log.Info().Str("endpoint", m.cfg.Endpoint).Msg("disconnected")
	return err
}

// drop closes the transport after a wire failure. Caller holds the gate.
func (m *Manager) drop(err error) {
	_ = m.transport.Close()

	m.mu.Lock()
	m.due = m.now().Add(m.backoff.Current())
	m.snap.NextRetry = m.backoff.Current()
	m.mu.Unlock()

	m.setState(status.Disconnected, err)
	m.log.Warn().Err(err).Str("endpoint", m.cfg.Endpoint).Msg("connection dropped")
}

// ---- EXCHANGE ----

// Send performs exactly one request/response exchange.
//
// It fails fast with ErrNotConnected when the link is down. An I/O failure,
// timeout or protocol error drops the link. A Modbus exception reply is
// returned as *modbus.ModbusError and keeps the link up.
func (m *Manager) Send(ctx context.Context, req codec.Request) (codec.Response, error) {
	resp, _, err := m.SendRaw(ctx, req)
	return resp, err
}

// Raw holds the request and reply PDUs (function code and data) of one
// exchange.
type Raw struct {
	Request []byte
	Reply   []byte
}

// SendRaw is Send that also returns the PDUs that went over the wire. Reply
// is set for exception replies too.
func (m *Manager) SendRaw(ctx context.Context, req codec.Request) (codec.Response, Raw, error) {
	var raw Raw
	if !m.IsConnected() {
		return codec.Response{}, raw, ErrNotConnected
	}

	pdu, err := req.PDU()
	if err != nil {
		return codec.Response{}, raw, err
	}
	raw.Request = pduBytes(pdu)

	if err := m.acquire(ctx); err != nil {
		return codec.Response{}, raw, err
	}
	defer m.release()

	// the link may have dropped while we waited
	if !m.IsConnected() {
		return codec.Response{}, raw, ErrNotConnected
	}

	reply, err := m.transport.Exchange(req.Unit, pdu)
	if err != nil {
		err = classifyExchange(err)
		m.drop(err)
		return codec.Response{}, raw, err
	}
	raw.Reply = pduBytes(reply)

	resp, err := codec.DecodeResponse(req, reply)
	if err != nil {
		if dropsLink(err) {
			m.drop(err)
		}
		return codec.Response{}, raw, err
	}
	return resp, raw, nil
}

func pduBytes(p *modbus.ProtocolDataUnit) []byte {
	return append([]byte{p.FunctionCode}, p.Data...)
}

func (m *Manager) acquire(ctx context.Context) error {
	select {
	case m.gate <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) release() {
	<-m.gate
}

// ---- LIVENESS ----

// Run is the liveness loop. It returns when ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	t := time.NewTicker(m.cfg.Tick)
	defer t.Stop()

	for {
		m.tick(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// tick does nothing while connected. While disconnected it attempts a
// reconnect once the current backoff has elapsed, doubling the backoff on
// failure and resetting it on success.
func (m *Manager) tick(ctx context.Context) {
	m.mu.RLock()
	idle := m.stopped || m.snap.State == status.Connected || m.now().Before(m.due)
	m.mu.RUnlock()
	if idle {
		return
	}

	err := m.attempt(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}

	m.mu.Lock()
	if err != nil {
		m.snap.Failures++
		m.backoff.Grow()
	} else {
		m.snap.Failures = 0
		m.backoff.Reset()
	}
	wait := m.backoff.Current()
	m.snap.NextRetry = wait
	m.due = m.now().Add(wait)
	m.mu.Unlock()

	if err != nil {
		event.Logf(m.events, 0, event.SeverityWarn, "reconnect failed, retrying in %s", wait)
	}
}
