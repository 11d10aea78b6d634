// internal/codec/frame.go
package codec

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/goburrow/modbus"
)

// MBAP:
//
//	TID(2) PID(2=0) LEN(2) UID(1)
//
// LEN counts UID + PDU.
const (
	mbapHeaderLen = 7
	maxPDULen     = 253
)

// Frame is one Modbus TCP ADU.
type Frame struct {
	TransactionID uint16
	ProtocolID    uint16
	Unit          uint8
	PDU           modbus.ProtocolDataUnit
}

// ReadFrame reads one ADU from r.
//
// A frame that is readable but malformed (bad protocol id, missing function
// code, oversize PDU) is fully consumed and returned together with an error
// wrapping ErrProtocol, so the caller can answer it and keep the stream in
// sync. Any other error is an I/O failure.
func ReadFrame(r io.Reader) (Frame, error) {
	var hdr [mbapHeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, err
	}

	f := Frame{
		TransactionID: binary.BigEndian.Uint16(hdr[0:2]),
		ProtocolID:    binary.BigEndian.Uint16(hdr[2:4]),
		Unit:          hdr[6],
	}
	length := int(binary.BigEndian.Uint16(hdr[4:6]))

	// body = PDU (LEN minus the unit id byte)
	bodyLen := length - 1
	if bodyLen < 0 {
		bodyLen = 0
	}

	if bodyLen > maxPDULen {
		if _, err := io.CopyN(io.Discard, r, int64(bodyLen)); err != nil {
			return Frame{}, err
		}
		return f, fmt.Errorf("%w: pdu length %d exceeds %d", ErrProtocol, bodyLen, maxPDULen)
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, err
	}

	if bodyLen == 0 {
		return f, fmt.Errorf("%w: missing function code", ErrProtocol)
	}

	f.PDU = modbus.ProtocolDataUnit{FunctionCode: body[0], Data: body[1:]}

	if f.ProtocolID != 0 {
		return f, fmt.Errorf("%w: protocol id %d", ErrProtocol, f.ProtocolID)
	}

	return f, nil
}

// Bytes encodes the frame, computing the MBAP length.
func (f Frame) Bytes() []byte {
	pduLen := 1 + len(f.PDU.Data)
	out := make([]byte, mbapHeaderLen+pduLen)

	binary.BigEndian.PutUint16(out[0:2], f.TransactionID)
	binary.BigEndian.PutUint16(out[2:4], f.ProtocolID)
	binary.BigEndian.PutUint16(out[4:6], uint16(1+pduLen))
	out[6] = f.Unit
	out[7] = f.PDU.FunctionCode
	copy(out[8:], f.PDU.Data)

	return out
}

// Reply builds a response frame carrying pdu with this frame's header.
func (f Frame) Reply(pdu *modbus.ProtocolDataUnit) Frame {
	return Frame{
		TransactionID: f.TransactionID,
		ProtocolID:    0,
		Unit:          f.Unit,
		PDU:           *pdu,
	}
}
