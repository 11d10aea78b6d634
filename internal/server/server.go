// internal/server/server.go
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/simonvetter/modbus"
)

// Defaults.
const (
	DefaultAddr        = ":15050"
	DefaultIdleTimeout = 2 * time.Minute
	DefaultMaxClients  = 16
)

// Server answers Modbus TCP requests from a Dispatcher.
//
// Request handling is done by a modbus.ModbusServer. With strict framing
// (the default) the public listener is a frameGuard that answers malformed
// MBAP headers itself and relays every well-formed frame to the modbus
// server on a loopback port.
type Server struct {
	d   *Dispatcher
	log zerolog.Logger

	idleTimeout time.Duration
	maxClients  uint
	strict      bool

	mu      sync.Mutex
	mb      *modbus.ModbusServer
	guard   *frameGuard
	addr    net.Addr
	started bool
	closed  bool
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithIdleTimeout closes connections that send nothing for d.
// Zero selects DefaultIdleTimeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) { s.idleTimeout = d }
}

// WithMaxClients bounds concurrent client connections.
func WithMaxClients(n uint) Option {
	return func(s *Server) { s.maxClients = n }
}

// WithStrictFraming toggles the frame guard. Without it a frame with a bad
// protocol id or length closes the connection.
func WithStrictFraming(on bool) Option {
	return func(s *Server) { s.strict = on }
}

func New(d *Dispatcher, opts ...Option) *Server {
	s := &Server{
		d:      d,
		log:    zerolog.Nop(),
		strict: true,
	}
	for _, o := range opts {
		o(s)
	}
	if s.idleTimeout <= 0 {
		s.idleTimeout = DefaultIdleTimeout
	}
	if s.maxClients == 0 {
		s.maxClients = DefaultMaxClients
	}
	return s
}

// Start listens on addr and serves in the background until Close.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.started {
		return fmt.Errorf("server: already started or closed")
	}

	mbAddr := addr
	if s.strict {
		lo, err := loopbackAddr()
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		mbAddr = lo
	}

	mb, err := modbus.NewServer(&modbus.ServerConfiguration{
		URL:        "tcp://" + mbAddr,
		Timeout:    s.idleTimeout,
		MaxClients: s.maxClients,
	}, s.d)
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := mb.Start(); err != nil {
		return fmt.Errorf("server: listen %s: %w", mbAddr, err)
	}
	s.mb = mb

	if s.strict {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			_ = mb.Stop()
			return fmt.Errorf("server: listen %s: %w", addr, err)
		}
		s.guard = newFrameGuard(ln, mbAddr, s.idleTimeout, s.log)
		go s.guard.serve()
		s.addr = ln.Addr()
	} else {
		s.addr, _ = net.ResolveTCPAddr("tcp", addr)
	}

	s.started = true
	s.log.Info().Str("addr", s.addr.String()).Bool("strict_framing", s.strict).Msg("server started")
	return nil
}

// ListenAndServe starts the server and blocks until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if err := s.Start(addr); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Close()
}

// Close stops accepting and closes every client connection. It is
// idempotent.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	guard, mb := s.guard, s.mb
	s.mu.Unlock()

	if guard != nil {
		guard.close()
	}
	var err error
	if mb != nil {
		err = mb.Stop()
	}
	s.log.Info().Msg("server stopped")
	return err
}

// Addr returns the listen address once started. Without strict framing and
// with port 0 the port is not known.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// loopbackAddr picks a free loopback port for the internal modbus server.
func loopbackAddr() (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	addr := ln.Addr().String()
	return addr, ln.Close()
}
