// internal/codec/response.go
package codec

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/goburrow/modbus"
)

// Response is the decoded success reply to a Request.
type Response struct {
	Unit     uint8
	Function byte
	Address  uint16   // echoed by FC 6 / FC 16
	Count    uint16   // echoed by FC 16, value count for FC 3
	Values   []uint16 // FC 3 registers, FC 6 echoed value
}

// DecodeResponse is the client-side decoder. An exception reply is returned as
// *modbus.ModbusError; anything inconsistent with req wraps ErrProtocol.
func DecodeResponse(req Request, pdu *modbus.ProtocolDataUnit) (Response, error) {
	if pdu == nil {
		return Response{}, fmt.Errorf("%w: empty response", ErrProtocol)
	}

	if pdu.FunctionCode == req.Function|0x80 {
		if len(pdu.Data) != 1 {
			return Response{}, fmt.Errorf("%w: exception without code", ErrProtocol)
		}
		return Response{}, Exception(req.Function, pdu.Data[0])
	}
	if pdu.FunctionCode != req.Function {
		return Response{}, fmt.Errorf("%w: function mismatch: got=%d want=%d", ErrProtocol, pdu.FunctionCode, req.Function)
	}

	resp := Response{Unit: req.Unit, Function: req.Function}
	d := pdu.Data

	switch req.Function {
	case modbus.FuncCodeReadHoldingRegisters:
		if len(d) < 1 {
			return Response{}, fmt.Errorf("%w: short read-registers payload", ErrProtocol)
		}
		byteCount := int(d[0])
		if byteCount != 2*int(req.Count) || len(d)-1 != byteCount {
			return Response{}, fmt.Errorf("%w: read-registers byte count %d, want %d", ErrProtocol, byteCount, 2*int(req.Count))
		}
		resp.Address = req.Address
		resp.Count = req.Count
		resp.Values = unpackRegisters(d[1:])

	case modbus.FuncCodeWriteSingleRegister:
		if len(d) != 4 {
			return Response{}, fmt.Errorf("%w: write-single payload length %d", ErrProtocol, len(d))
		}
		resp.Address = binary.BigEndian.Uint16(d[0:2])
		resp.Count = 1
		resp.Values = []uint16{binary.BigEndian.Uint16(d[2:4])}
		if resp.Address != req.Address || len(req.Values) != 1 || resp.Values[0] != req.Values[0] {
			return Response{}, fmt.Errorf("%w: write-single echo mismatch", ErrProtocol)
		}

	case modbus.FuncCodeWriteMultipleRegisters:
		if len(d) != 4 {
			return Response{}, fmt.Errorf("%w: write-multiple payload length %d", ErrProtocol, len(d))
		}
		resp.Address = binary.BigEndian.Uint16(d[0:2])
		resp.Count = binary.BigEndian.Uint16(d[2:4])
		if resp.Address != req.Address || resp.Count != req.Count {
			return Response{}, fmt.Errorf("%w: write-multiple echo mismatch", ErrProtocol)
		}

	default:
		return Response{}, fmt.Errorf("%w: unsupported function code %d", ErrProtocol, req.Function)
	}

	return resp, nil
}

// Hex renders bytes as "01 03 00 00" for trace logs.
func Hex(b []byte) string {
	var sb strings.Builder
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", v)
	}
	return sb.String()
}
