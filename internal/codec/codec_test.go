// internal/codec/codec_test.go
package codec

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/goburrow/modbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestPDU_Layout(t *testing.T) {
	pdu, err := ReadHoldingRegisters(1, 0, 5).PDU()
	require.NoError(t, err)
	assert.Equal(t, byte(3), pdu.FunctionCode)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x05}, pdu.Data)

	pdu, err = WriteSingleRegister(2, 6, 42).PDU()
	require.NoError(t, err)
	assert.Equal(t, byte(6), pdu.FunctionCode)
	assert.Equal(t, []byte{0x00, 0x06, 0x00, 0x2A}, pdu.Data)

	pdu, err = WriteMultipleRegisters(3, 5, []uint16{1, 0x0203}).PDU()
	require.NoError(t, err)
	assert.Equal(t, byte(16), pdu.FunctionCode)
	assert.Equal(t, []byte{0x00, 0x05, 0x00, 0x02, 0x04, 0x00, 0x01, 0x02, 0x03}, pdu.Data)
}

func TestRequestPDU_RejectsBadQuantity(t *testing.T) {
	_, err := ReadHoldingRegisters(1, 0, 0).PDU()
	assert.Error(t, err)

	_, err = ReadHoldingRegisters(1, 0, MaxReadQuantity+1).PDU()
	assert.Error(t, err)

	_, err = WriteMultipleRegisters(1, 0, nil).PDU()
	assert.Error(t, err)

	_, err = Request{Unit: 1, Function: 1}.PDU()
	assert.Error(t, err)
}

func replyPDU(fc byte, data ...byte) *modbus.ProtocolDataUnit {
	return &modbus.ProtocolDataUnit{FunctionCode: fc, Data: data}
}

func TestDecodeResponse(t *testing.T) {
	read := ReadHoldingRegisters(1, 5, 5)
	resp, err := DecodeResponse(read, replyPDU(3, 10, 0, 0, 0, 42, 0, 0, 0, 0, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, []uint16{0, 42, 0, 0, 0}, resp.Values)

	w1 := WriteSingleRegister(1, 6, 42)
	resp, err = DecodeResponse(w1, replyPDU(6, 0, 6, 0, 42))
	require.NoError(t, err)
	assert.Equal(t, uint16(6), resp.Address)
	assert.Equal(t, []uint16{42}, resp.Values)

	wn := WriteMultipleRegisters(1, 5, []uint16{1, 2, 3, 4, 5})
	resp, err = DecodeResponse(wn, replyPDU(16, 0, 5, 0, 5))
	require.NoError(t, err)
	assert.Equal(t, uint16(5), resp.Count)
}

func TestDecodeResponse_Exception(t *testing.T) {
	req := WriteSingleRegister(1, 2, 1)
	_, err := DecodeResponse(req, ExceptionPDU(Exception(6, modbus.ExceptionCodeIllegalDataAddress)))

	var mbErr *modbus.ModbusError
	require.True(t, errors.As(err, &mbErr))
	assert.Equal(t, byte(modbus.ExceptionCodeIllegalDataAddress), mbErr.ExceptionCode)
	assert.False(t, errors.Is(err, ErrProtocol))
}

func TestDecodeResponse_ProtocolErrors(t *testing.T) {
	read := ReadHoldingRegisters(1, 0, 5)

	// two registers for a five-register read
	_, err := DecodeResponse(read, replyPDU(3, 4, 0, 1, 0, 2))
	assert.ErrorIs(t, err, ErrProtocol)

	_, err = DecodeResponse(read, &modbus.ProtocolDataUnit{FunctionCode: 4, Data: []byte{0}})
	assert.ErrorIs(t, err, ErrProtocol)

	w1 := WriteSingleRegister(1, 6, 42)
	_, err = DecodeResponse(w1, replyPDU(6, 0, 6, 0, 41))
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestFrame_RoundTrip(t *testing.T) {
	pdu, err := WriteSingleRegister(3, 6, 42).PDU()
	require.NoError(t, err)

	in := Frame{TransactionID: 0x1234, Unit: 3, PDU: *pdu}
	raw := in.Bytes()
	assert.Equal(t, []byte{0x12, 0x34, 0x00, 0x00, 0x00, 0x06, 0x03, 0x06, 0x00, 0x06, 0x00, 0x2A}, raw)

	out, err := ReadFrame(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestReadFrame_MalformedKeepsStreamInSync(t *testing.T) {
	var buf bytes.Buffer

	// bad protocol id
	buf.Write([]byte{0, 1, 0, 7, 0, 6, 1, 3, 0, 0, 0, 5})
	// oversize length, body discarded
	buf.Write([]byte{0, 2, 0, 0, 1, 0, 1})
	buf.Write(make([]byte, 255))
	// length without function code
	buf.Write([]byte{0, 3, 0, 0, 0, 1, 1})
	// valid frame
	good := Frame{TransactionID: 4, Unit: 1, PDU: modbus.ProtocolDataUnit{FunctionCode: 3, Data: []byte{0, 0, 0, 5}}}
	buf.Write(good.Bytes())

	r := bytes.NewReader(buf.Bytes())

	for tid := uint16(1); tid <= 3; tid++ {
		f, err := ReadFrame(r)
		require.ErrorIs(t, err, ErrProtocol)
		assert.Equal(t, tid, f.TransactionID)
	}

	f, err := ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, good, f)

	_, err = ReadFrame(r)
	assert.ErrorIs(t, err, io.EOF)
}

func TestHex(t *testing.T) {
	assert.Equal(t, "01 03 0A FF", Hex([]byte{1, 3, 10, 255}))
	assert.Equal(t, "", Hex(nil))
}
