// internal/link/transport.go
package link

import (
	"errors"
	"fmt"
	"time"

	"github.com/goburrow/modbus"
	"github.com/rs/zerolog"

	"github.com/tamzrod/modbus-regsync/internal/codec"
)

// Transport is one byte-stream connection able to carry a single
// request/response exchange at a time. Callers serialize access.
type Transport interface {
	Connect() error
	Close() error
	Exchange(unit uint8, pdu *modbus.ProtocolDataUnit) (*modbus.ProtocolDataUnit, error)
}

// TCPTransport is a Modbus TCP connection to one endpoint.
// It mutates SlaveId per exchange, so it must not be shared without the gate.
type TCPTransport struct {
	handler *modbus.TCPClientHandler
	log     zerolog.Logger
}

// NewTCPTransport prepares the handler without dialing.
func NewTCPTransport(endpoint string, timeout time.Duration, log zerolog.Logger) (*TCPTransport, error) {
	if endpoint == "" {
		return nil, errors.New("link: endpoint required")
	}

	h := modbus.NewTCPClientHandler(endpoint)
	h.Timeout = timeout
	// the liveness loop owns the connection lifetime
	h.IdleTimeout = 0

	return &TCPTransport{handler: h, log: log}, nil
}

func (t *TCPTransport) Connect() error {
	return t.handler.Connect()
}

func (t *TCPTransport) Close() error {
	return t.handler.Close()
}

// Exchange sends one PDU to unit and returns the reply PDU.
// Exception replies are returned as PDUs; the caller decodes them.
func (t *TCPTransport) Exchange(unit uint8, pdu *modbus.ProtocolDataUnit) (*modbus.ProtocolDataUnit, error) {
	t.handler.SlaveId = unit

	adu, err := t.handler.Encode(pdu)
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %v", codec.ErrProtocol, err)
	}
	t.log.Trace().Uint8("unit", unit).Str("tx", codec.Hex(adu)).Msg("send")

	reply, err := t.handler.Send(adu)
	if err != nil {
		return nil, err
	}
	t.log.Trace().Uint8("unit", unit).Str("rx", codec.Hex(reply)).Msg("recv")

	if err := t.handler.Verify(adu, reply); err != nil {
		return nil, fmt.Errorf("%w: %v", codec.ErrProtocol, err)
	}

	out, err := t.handler.Decode(reply)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", codec.ErrProtocol, err)
	}
	return out, nil
}
