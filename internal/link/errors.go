// internal/link/errors.go
package link

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"

	"github.com/goburrow/modbus"

	"github.com/tamzrod/modbus-regsync/internal/codec"
)

// Error is a link failure kind carrying a stable status code.
type Error struct {
	code uint16
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Code implements the coder contract used by status.ErrorCode.
func (e *Error) Code() uint16 { return e.code }

// ---- ERROR KINDS ----

var (
	ErrNotConnected = &Error{code: 0x0101, msg: "link: not connected"}
	ErrTimeout      = &Error{code: 0x0102, msg: "link: timeout"}
	ErrRefused      = &Error{code: 0x0103, msg: "link: connection refused"}
	ErrConnLost     = &Error{code: 0x0104, msg: "link: connection lost"}
)

// classifyDial maps a connect failure onto ErrTimeout or ErrRefused.
func classifyDial(err error) error {
	if err == nil {
		return nil
	}
	if isTimeout(err) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrRefused, err)
}

// classifyExchange maps a failed request/response exchange.
// Protocol errors keep their identity; everything else is a timeout or a
// lost connection.
func classifyExchange(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, codec.ErrProtocol) {
		return err
	}
	if isTimeout(err) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrConnLost, err)
}

// dropsLink reports whether err leaves the wire in an unknown state.
// A Modbus exception is a complete, valid reply.
func dropsLink(err error) bool {
	var mbErr *modbus.ModbusError
	return err != nil && !errors.As(err, &mbErr)
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ETIMEDOUT)
}
