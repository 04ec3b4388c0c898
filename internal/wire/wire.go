// Package wire implements the BGP-4 message framing the listener and the
// protocol adapter need: the fixed 19-byte header, OPEN, NOTIFICATION,
// KEEPALIVE, and the minimal UPDATE/End-of-RIB framing the established
// loop uses to signal initial convergence. Route attribute encoding and
// route-table maintenance stay outside this package's contract.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Version is the BGP protocol version this speaker implements.
type Version uint8

// CurrentVersion is the only version this speaker will ever send.
const CurrentVersion Version = 4

// ASN is an autonomous system number.
type ASN uint16

// Identifier is a BGP speaker's 4-octet identifier, conventionally one of
// its own IPv4 addresses.
type Identifier uint32

// MessageType is the one-octet type field of the BGP header.
type MessageType byte

// The four BGP-4 message types, plus NOP. NOP is not a wire value; it is the
// internal sentinel the protocol adapter yields to mean "no complete
// message buffered yet" (spec glossary: NOP (internal)).
const (
	NOP MessageType = iota
	OPEN
	UPDATE
	NOTIFICATION
	KEEPALIVE
)

// MarkerLength is the length in octets of the all-ones marker field.
const MarkerLength = 16

// HeaderLength is the length in octets of the fixed BGP message header:
// 16-byte marker, 2-byte length, 1-byte type.
const HeaderLength = 19

// MinOpenLength is the minimum total length (header included) of a
// syntactically plausible OPEN message.
const MinOpenLength = 29

// MinNotificationLength is the minimum total length of a NOTIFICATION
// message: header, 1-byte code, 1-byte subcode.
const MinNotificationLength = 21

// MaxMessageLength bounds any single BGP message, header included.
const MaxMessageLength = 4096

// Marker returns a fresh 16-byte all-ones marker.
func Marker() []byte {
	m := make([]byte, MarkerLength)
	for i := range m {
		m[i] = 0xFF
	}
	return m
}

// ValidMarker reports whether b holds exactly MarkerLength all-ones bytes.
func ValidMarker(b []byte) bool {
	if len(b) != MarkerLength {
		return false
	}
	for _, v := range b {
		if v != 0xFF {
			return false
		}
	}
	return true
}

// Header is the decoded fixed portion of a BGP message.
type Header struct {
	Length uint16
	Type   MessageType
}

// DecodeHeader parses the fixed 19-byte header from buf, which must be
// the full accumulated read buffer (not just the most recently received
// chunk — reading from a partial chunk is the bug spec.md §9 flags in
// the original implementation and explicitly forbids reproducing here).
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderLength {
		return Header{}, fmt.Errorf("wire: short header, have %d bytes want %d", len(buf), HeaderLength)
	}
	if !ValidMarker(buf[:MarkerLength]) {
		return Header{}, ErrInvalidMarker
	}
	length := binary.BigEndian.Uint16(buf[16:18])
	return Header{Length: length, Type: MessageType(buf[18])}, nil
}

// EncodeHeader writes a 19-byte header for a message of the given total
// length (including the header itself) and type.
func EncodeHeader(length uint16, typ MessageType) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, HeaderLength))
	buf.Write(Marker())
	lenBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(lenBytes, length)
	buf.Write(lenBytes)
	buf.WriteByte(byte(typ))
	return buf.Bytes()
}

// Errors returned while decoding a header. Type and length checks are
// only meaningful once the caller knows which message type it expected
// (OPEN, in the listener's case), so the caller makes them itself and
// reports them with its own values (OpenInvalidType, OpenInvalidSize);
// ErrInvalidMarker is unconditional.
var ErrInvalidMarker = fmt.Errorf("wire: first 16 bytes are not all 0xFF")
