// Package fwcmd encodes and decodes the radio firmware's host command
// framing: the 8-byte command header, little-endian TLVs, the scan command
// bodies and the two scan result formats (a single legacy response, or a
// stream of extended scan report events).
package fwcmd

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Host command codes.
const (
	CmdScan     uint16 = 0x0006
	CmdScanExt  uint16 = 0x0107
	ResponseBit uint16 = 0x8000

	// EventExtScanReport is the event id carried by extended scan results.
	EventExtScanReport uint16 = 0x0058
)

// HeaderLen is the size of the host command header.
const HeaderLen = 8

// Result codes in the command header.
const (
	ResultOK       uint16 = 0x0000
	ResultFailed   uint16 = 0x0001
	ResultNotReady uint16 = 0x0002
)

var (
	// ErrShortBuffer is returned when a length field points past the end of
	// its buffer.
	ErrShortBuffer = errors.New("fwcmd: short buffer")
	// ErrCommandFailed is returned when the firmware reports a non-zero
	// result code.
	ErrCommandFailed = errors.New("fwcmd: command failed")
	// ErrUnexpectedResponse is returned when a response does not answer the
	// command that was sent.
	ErrUnexpectedResponse = errors.New("fwcmd: unexpected response")
)

// Header is the fixed prefix of every command and response.
type Header struct {
	Command uint16
	Size    uint16 // header included
	SeqNum  uint16
	Result  uint16
}

// AppendHeader encodes h onto dst.
func AppendHeader(dst []byte, h Header) []byte {
	dst = binary.LittleEndian.AppendUint16(dst, h.Command)
	dst = binary.LittleEndian.AppendUint16(dst, h.Size)
	dst = binary.LittleEndian.AppendUint16(dst, h.SeqNum)
	return binary.LittleEndian.AppendUint16(dst, h.Result)
}

// ReadHeader decodes the header at the front of b and returns the body it
// frames. Bytes beyond Size are ignored.
func ReadHeader(b []byte) (Header, []byte, error) {
	if len(b) < HeaderLen {
		return Header{}, nil, fmt.Errorf("header: %w", ErrShortBuffer)
	}
	h := Header{
		Command: binary.LittleEndian.Uint16(b),
		Size:    binary.LittleEndian.Uint16(b[2:]),
		SeqNum:  binary.LittleEndian.Uint16(b[4:]),
		Result:  binary.LittleEndian.Uint16(b[6:]),
	}
	if int(h.Size) < HeaderLen || int(h.Size) > len(b) {
		return h, nil, fmt.Errorf("header size %d of %d bytes: %w", h.Size, len(b), ErrShortBuffer)
	}
	return h, b[HeaderLen:h.Size], nil
}

// frame wraps body in a header. The size field is filled in.
func frame(cmd, seq, result uint16, body []byte) []byte {
	out := make([]byte, 0, HeaderLen+len(body))
	out = AppendHeader(out, Header{
		Command: cmd,
		Size:    uint16(HeaderLen + len(body)),
		SeqNum:  seq,
		Result:  result,
	})
	return append(out, body...)
}

// CheckResponse validates that resp answers cmd with a success result and
// returns its body.
func CheckResponse(resp []byte, cmd, seq uint16) ([]byte, error) {
	h, body, err := ReadHeader(resp)
	if err != nil {
		return nil, err
	}
	if h.Command != cmd|ResponseBit {
		return nil, fmt.Errorf("got command %#04x, want %#04x: %w", h.Command, cmd|ResponseBit, ErrUnexpectedResponse)
	}
	if h.SeqNum != seq {
		return nil, fmt.Errorf("got seq %d, want %d: %w", h.SeqNum, seq, ErrUnexpectedResponse)
	}
	if h.Result != ResultOK {
		return nil, fmt.Errorf("result %#04x: %w", h.Result, ErrCommandFailed)
	}
	return body, nil
}

// EncodeStatus builds a body-less response carrying only a result code.
func EncodeStatus(cmd, seq, result uint16) []byte {
	return frame(cmd|ResponseBit, seq, result, nil)
}
