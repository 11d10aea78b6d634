// internal/codec/request.go
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/goburrow/modbus"
)

// Modbus application protocol quantity limits.
const (
	MaxReadQuantity  = 125
	MaxWriteQuantity = 123
)

// ErrProtocol marks malformed wire data.
var ErrProtocol = errors.New("codec: protocol error")

// Request is one of the three supported operations addressed to a unit.
type Request struct {
	Unit     uint8
	Function byte
	Address  uint16
	Count    uint16   // FC 3 / FC 16
	Values   []uint16 // FC 6 (one value) / FC 16
}

// ReadHoldingRegisters builds an FC 3 request.
func ReadHoldingRegisters(unit uint8, addr, count uint16) Request {
	return Request{
		Unit:     unit,
		Function: modbus.FuncCodeReadHoldingRegisters,
		Address:  addr,
		Count:    count,
	}
}

// WriteSingleRegister builds an FC 6 request.
func WriteSingleRegister(unit uint8, addr, value uint16) Request {
	return Request{
		Unit:     unit,
		Function: modbus.FuncCodeWriteSingleRegister,
		Address:  addr,
		Count:    1,
		Values:   []uint16{value},
	}
}

// WriteMultipleRegisters builds an FC 16 request.
func WriteMultipleRegisters(unit uint8, addr uint16, values []uint16) Request {
	return Request{
		Unit:     unit,
		Function: modbus.FuncCodeWriteMultipleRegisters,
		Address:  addr,
		Count:    uint16(len(values)),
		Values:   append([]uint16(nil), values...),
	}
}

func (r Request) String() string {
	switch r.Function {
	case modbus.FuncCodeReadHoldingRegisters:
		return fmt.Sprintf("read unit=%d addr=%d count=%d", r.Unit, r.Address, r.Count)
	case modbus.FuncCodeWriteSingleRegister:
		return fmt.Sprintf("write1 unit=%d addr=%d value=%v", r.Unit, r.Address, r.Values)
	case modbus.FuncCodeWriteMultipleRegisters:
		return fmt.Sprintf("writeN unit=%d addr=%d values=%v", r.Unit, r.Address, r.Values)
	default:
		return fmt.Sprintf("fc=%d unit=%d", r.Function, r.Unit)
	}
}

// PDU encodes the request.
//
// FC 3:  Address(2) Quantity(2)
// FC 6:  Address(2) Value(2)
// FC 16: Address(2) Quantity(2) ByteCount(1) Values(2*N)
func (r Request) PDU() (*modbus.ProtocolDataUnit, error) {
	switch r.Function {
	case modbus.FuncCodeReadHoldingRegisters:
		if r.Count < 1 || r.Count > MaxReadQuantity {
			return nil, fmt.Errorf("codec: read quantity %d out of range 1-%d", r.Count, MaxReadQuantity)
		}
		return &modbus.ProtocolDataUnit{
			FunctionCode: r.Function,
			Data:         u16s(r.Address, r.Count),
		}, nil

	case modbus.FuncCodeWriteSingleRegister:
		if len(r.Values) != 1 {
			return nil, fmt.Errorf("codec: write single needs exactly 1 value, got %d", len(r.Values))
		}
		return &modbus.ProtocolDataUnit{
			FunctionCode: r.Function,
			Data:         u16s(r.Address, r.Values[0]),
		}, nil

	case modbus.FuncCodeWriteMultipleRegisters:
		n := len(r.Values)
		if n < 1 || n > MaxWriteQuantity {
			return nil, fmt.Errorf("codec: write quantity %d out of range 1-%d", n, MaxWriteQuantity)
		}
		data := make([]byte, 5+2*n)
		binary.BigEndian.PutUint16(data[0:2], r.Address)
		binary.BigEndian.PutUint16(data[2:4], uint16(n))
		data[4] = byte(2 * n)
		packRegisters(data[5:], r.Values)
		return &modbus.ProtocolDataUnit{FunctionCode: r.Function, Data: data}, nil

	default:
		return nil, fmt.Errorf("codec: unsupported function code %d", r.Function)
	}
}

// Exception builds the Modbus error for a function code.
func Exception(fc byte, code byte) *modbus.ModbusError {
	return &modbus.ModbusError{FunctionCode: fc, ExceptionCode: code}
}

// ExceptionPDU encodes an exception response: FC|0x80, ExceptionCode(1).
func ExceptionPDU(e *modbus.ModbusError) *modbus.ProtocolDataUnit {
	return &modbus.ProtocolDataUnit{
		FunctionCode: e.FunctionCode | 0x80,
		Data:         []byte{e.ExceptionCode},
	}
}

// ---- helpers ----

func u16s(a, b uint16) []byte {
	out := make([]byte, 4)
	binary.BigEndian.PutUint16(out[0:2], a)
	binary.BigEndian.PutUint16(out[2:4], b)
	return out
}

// Modbus register memory order (BIG-ENDIAN)
func packRegisters(dst []byte, regs []uint16) {
	for i, r := range regs {
		dst[2*i] = byte(r >> 8)
		dst[2*i+1] = byte(r)
	}
}

func unpackRegisters(data []byte) []uint16 {
	n := len(data) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out
}
