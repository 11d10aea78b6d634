// internal/status/code.go
package status

import (
	"errors"

	"github.com/goburrow/modbus"
)

// ErrorCode extracts a best-effort uint16 code from an error without assuming
// concrete types. Modbus exceptions map to 0x80|exception code.
// If the error does not expose a code, returns CodeGeneric.
func ErrorCode(err error) uint16 {
	if err == nil {
		return CodeNone
	}

	type coder interface{ Code() uint16 }

	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}

	var mbErr *modbus.ModbusError
	if errors.As(err, &mbErr) {
		return 0x80 | uint16(mbErr.ExceptionCode)
	}

	return CodeGeneric
}
