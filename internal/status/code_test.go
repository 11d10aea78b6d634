// internal/status/code_test.go
package status

import (
	"errors"
	"fmt"
	"testing"

	"github.com/goburrow/modbus"
)

type codedErr struct{ code uint16 }

func (e codedErr) Error() string { return "coded" }
func (e codedErr) Code() uint16  { return e.code }

func TestErrorCode(t *testing.T) {
	if got := ErrorCode(nil); got != CodeNone {
		t.Fatalf("nil: got=%d want=%d", got, CodeNone)
	}

	if got := ErrorCode(errors.New("plain")); got != CodeGeneric {
		t.Fatalf("plain: got=%d want=%d", got, CodeGeneric)
	}

	wrapped := fmt.Errorf("link: %w", codedErr{code: 7})
	if got := ErrorCode(wrapped); got != 7 {
		t.Fatalf("coder: got=%d want=7", got)
	}

	mb := fmt.Errorf("send: %w", &modbus.ModbusError{FunctionCode: 3, ExceptionCode: 2})
	if got := ErrorCode(mb); got != 0x82 {
		t.Fatalf("modbus: got=%#x want=0x82", got)
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		Disconnected: "disconnected",
		Connecting:   "connecting",
		Connected:    "connected",
		State(9):     "unknown",
	}
	for s, want := range cases {
		if s.String() != want {
			t.Fatalf("state %d: got=%q want=%q", s, s.String(), want)
		}
	}
}
