// internal/server/guard.go
package server

import (
	"errors"
	"io"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"github.com/rs/zerolog"

	"github.com/tamzrod/modbus-regsync/internal/codec"
)

// relayTimeout bounds one exchange with the internal modbus server.
const relayTimeout = 5 * time.Second

// frameGuard is the public listener in strict framing mode.
//
// Each client frame is read whole. A malformed MBAP header (protocol id,
// length) is answered with an illegal-data-value exception and the stream
// continues. Well-formed frames are relayed unchanged over one upstream
// connection per client.
type frameGuard struct {
	ln       net.Listener
	upstream string
	timeout  time.Duration
	log      zerolog.Logger

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

func newFrameGuard(ln net.Listener, upstream string, timeout time.Duration, log zerolog.Logger) *frameGuard {
	return &frameGuard{
		ln:       ln,
		upstream: upstream,
		timeout:  timeout,
		log:      log,
		conns:    make(map[net.Conn]struct{}),
	}
}

func (g *frameGuard) serve() {
	for {
		conn, err := g.ln.Accept()
		if err != nil {
			g.mu.Lock()
			closed := g.closed
			g.mu.Unlock()
			if closed {
				return
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			g.log.Error().Err(err).Msg("accept failed")
			return
		}

		if !g.track(conn, true) {
			_ = conn.Close()
			return
		}
		go g.handle(conn)
	}
}

// close stops accepting, closes every client and upstream connection and
// waits for the handlers.
func (g *frameGuard) close() {
	g.mu.Lock()
	g.closed = true
	_ = g.ln.Close()
	for c := range g.conns {
		_ = c.Close()
	}
	g.mu.Unlock()

	g.wg.Wait()
}

// track registers conn; false once closed. Client connections also count
// on the wait group.
func (g *frameGuard) track(conn net.Conn, client bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.conns[conn] = struct{}{}
	if client {
		g.wg.Add(1)
	}
	return true
}

func (g *frameGuard) untrack(conn net.Conn) {
	g.mu.Lock()
	delete(g.conns, conn)
	g.mu.Unlock()
	_ = conn.Close()
}

// ---- CONNECTION ----

func (g *frameGuard) handle(client net.Conn) {
	log := g.log.With().Str("remote", client.RemoteAddr().String()).Logger()

	var upstream net.Conn
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("panic in connection handler")
		}
		if upstream != nil {
			g.untrack(upstream)
		}
		g.untrack(client)
		g.wg.Done()
	}()

	log.Debug().Msg("connection accepted")

	for {
		_ = client.SetReadDeadline(time.Now().Add(g.timeout))

		req, err := codec.ReadFrame(client)

		var resp codec.Frame
		switch {
		case err == nil:
			if upstream == nil {
				if upstream, err = g.dial(); err != nil {
					log.Warn().Err(err).Msg("upstream unavailable")
					resp = exceptionReply(req, modbus.ExceptionCodeServerDeviceFailure)
					break
				}
			}
			if resp, err = g.relay(upstream, req); err != nil {
				log.Warn().Err(err).Msg("upstream exchange failed")
				g.untrack(upstream)
				upstream = nil
				resp = exceptionReply(req, modbus.ExceptionCodeServerDeviceFailure)
			}

		case errors.Is(err, codec.ErrProtocol):
			// frame consumed; answer it and keep the stream
			log.Debug().Err(err).Uint16("tid", req.TransactionID).Msg("malformed frame")
			resp = exceptionReply(req, modbus.ExceptionCodeIllegalDataValue)

		default:
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Debug().Err(err).Msg("read error")
			}
			return
		}

		if _, err := client.Write(resp.Bytes()); err != nil {
			log.Debug().Err(err).Msg("write error")
			return
		}
	}
}

func (g *frameGuard) dial() (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", g.upstream, relayTimeout)
	if err != nil {
		return nil, err
	}
	if !g.track(conn, false) {
		_ = conn.Close()
		return nil, net.ErrClosed
	}
	return conn, nil
}

// relay performs one request/response exchange with the modbus server.
func (g *frameGuard) relay(upstream net.Conn, req codec.Frame) (codec.Frame, error) {
	_ = upstream.SetDeadline(time.Now().Add(relayTimeout))

	if _, err := upstream.Write(req.Bytes()); err != nil {
		return codec.Frame{}, err
	}
	return codec.ReadFrame(upstream)
}

func exceptionReply(req codec.Frame, code byte) codec.Frame {
	return req.Reply(codec.ExceptionPDU(codec.Exception(req.PDU.FunctionCode, code)))
}
