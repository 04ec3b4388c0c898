package wire

import (
	"bytes"
	"encoding/binary"
	"time"
)

// Open is a decoded OPEN message body (the 19-byte header is handled
// separately by Header/DecodeHeader).
//
//	0                   1                   2                   3
//	0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//	+-+-+-+-+-+-+-+-+
//	|    Version    |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|     My Autonomous System      |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|           Hold Time           |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|                BGP Identifier                 |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	| Opt Parm Len  |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|             Optional Parameters (variable)    |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
type Open struct {
	Version       Version
	MyAS          ASN
	HoldTime      uint16
	BGPIdentifier Identifier
	Capabilities  Capabilities
}

// maxHoldTime is the largest hold time a 16-bit seconds field can carry.
const maxHoldTime = 1<<16 - 1

// MinHoldTime is the smallest nonzero hold time RFC 4271 §4.2 allows; a
// speaker advertising 1 or 2 seconds MUST be rejected.
const MinHoldTime = 3 * time.Second

// ValidHoldTime reports whether d is an acceptable hold time: zero
// (disables the hold timer) or at least MinHoldTime.
func ValidHoldTime(d time.Duration) bool {
	if d < 0 || d > maxHoldTime*time.Second {
		return false
	}
	if d > 0 && d < MinHoldTime {
		return false
	}
	return true
}

// NewOpen builds an OPEN with the capabilities this speaker advertises,
// encoded as optional parameters, for myAS/holdTime/id.
func NewOpen(myAS ASN, holdTime time.Duration, id Identifier, caps Capabilities) Open {
	return Open{
		Version:       CurrentVersion,
		MyAS:          myAS,
		HoldTime:      uint16(holdTime / time.Second),
		BGPIdentifier: id,
		Capabilities:  caps,
	}
}

// DecodeOpen parses an OPEN message body (everything after the 19-byte
// header).
func DecodeOpen(body []byte) (Open, error) {
	if len(body) < MinOpenLength-HeaderLength {
		return Open{}, NewNotify(CodeOpenMessageError, SubcodeUnspecific, "OPEN body too short")
	}
	buf := bytes.NewReader(body)
	var version byte
	var myAS, holdTime uint16
	var id uint32
	mustRead(buf, &version)
	mustRead(buf, &myAS)
	mustRead(buf, &holdTime)
	mustRead(buf, &id)
	optLen, _ := buf.ReadByte()
	optParams := make([]byte, optLen)
	buf.Read(optParams)

	return Open{
		Version:       Version(version),
		MyAS:          ASN(myAS),
		HoldTime:      holdTime,
		BGPIdentifier: Identifier(id),
		Capabilities:  decodeCapabilities(optParams),
	}, nil
}

func mustRead(buf *bytes.Reader, v interface{}) {
	binary.Read(buf, binary.BigEndian, v)
}

// Bytes encodes the OPEN body (without the header).
func (o Open) Bytes() []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(o.Version))
	binary.Write(buf, binary.BigEndian, uint16(o.MyAS))
	binary.Write(buf, binary.BigEndian, o.HoldTime)
	binary.Write(buf, binary.BigEndian, uint32(o.BGPIdentifier))
	params := o.Capabilities.encodeOptionalParameters()
	buf.WriteByte(byte(len(params)))
	buf.Write(params)
	return buf.Bytes()
}

// Encode returns the full wire message (header + body) for this OPEN.
func (o Open) Encode() []byte {
	body := o.Bytes()
	msg := EncodeHeader(uint16(HeaderLength+len(body)), OPEN)
	return append(msg, body...)
}

// Validate checks a received OPEN against the local configuration per
// RFC 4271 §6.2, returning a Notify ready to send on mismatch.
func (o Open) Validate(expectedRemoteAS ASN, localHoldTime time.Duration) error {
	if o.Version != CurrentVersion {
		return NewNotify(CodeOpenMessageError, SubcodeUnsupportedVersionNumber, "unsupported version number")
	}
	if o.MyAS != expectedRemoteAS {
		return NewNotify(CodeOpenMessageError, SubcodeBadPeerAS, "bad peer AS")
	}
	hold := time.Duration(o.HoldTime) * time.Second
	if !ValidHoldTime(hold) {
		return NewNotify(CodeOpenMessageError, SubcodeUnacceptableHoldTime, "unacceptable hold time")
	}
	return nil
}

// NegotiatedHoldTime returns the smaller of the two proposed hold times,
// per RFC 4271 §4.2.
func NegotiatedHoldTime(local, remote time.Duration) time.Duration {
	if local < remote {
		return local
	}
	return remote
}
