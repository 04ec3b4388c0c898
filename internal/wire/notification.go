package wire

import (
	"bytes"
	"fmt"
)

// Notify is both the decoded NOTIFICATION message and the Go error value
// raised internally when this speaker decides to close a session with an
// error — the "exception-for-control-flow" ExaBGP uses, modeled per
// spec.md §9 as an ordinary returned error rather than a panic/exception.
//
//	0                   1                   2                   3
//	0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	| Error code    | Error subcode |   Data (variable)
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
type Notify struct {
	Code    byte
	Subcode byte
	Data    []byte
	reason  string
}

// Error codes, RFC 4271 §4.5.
const (
	CodeMessageHeaderError      = 1
	CodeOpenMessageError        = 2
	CodeUpdateMessageError      = 3
	CodeHoldTimerExpired        = 4
	CodeFiniteStateMachineError = 5
	CodeCease                   = 6
)

// OPEN Message Error subcodes, RFC 4271 §6.2.
const (
	SubcodeUnsupportedVersionNumber = 1
	SubcodeBadPeerAS                = 2
	SubcodeBadBGPIdentifier         = 3
	SubcodeUnsupportedOptionalParam = 4
	SubcodeUnacceptableHoldTime     = 6
)

// Message Header Error subcodes, RFC 4271 §6.1.
const (
	SubcodeConnectionNotSynchronized = 1
	SubcodeBadMessageLength          = 2
	SubcodeBadMessageType            = 3
)

// Cease subcodes, RFC 4486. Subcode 0 is unspecific; 2 is administrative
// shutdown; 3 is "peer de-configured" (spec.md §4.2.3's default teardown).
const (
	SubcodeUnspecific            = 0
	SubcodeAdministrativeShutdown = 2
	SubcodePeerDeconfigured       = 3
	SubcodeConnectionCollision    = 7
)

// NewNotify constructs a Notify carrying a human-readable diagnostic in
// its Data field, matching the teacher's style of attaching a distinct
// diagnostic string per failure reason (message/notification.go).
func NewNotify(code, subcode byte, reason string) *Notify {
	return &Notify{Code: code, Subcode: subcode, Data: []byte(reason), reason: reason}
}

func (n *Notify) Error() string {
	if n.reason != "" {
		return fmt.Sprintf("NOTIFICATION(%d,%d): %s", n.Code, n.Subcode, n.reason)
	}
	return fmt.Sprintf("NOTIFICATION(%d,%d)", n.Code, n.Subcode)
}

// DecodeNotification parses a NOTIFICATION message body.
func DecodeNotification(body []byte) (*Notify, error) {
	if len(body) < MinNotificationLength-HeaderLength {
		return nil, fmt.Errorf("wire: notification body too short (%d bytes)", len(body))
	}
	return &Notify{
		Code:    body[0],
		Subcode: body[1],
		Data:    append([]byte(nil), body[2:]...),
	}, nil
}

// Bytes encodes the NOTIFICATION body (without the header).
func (n *Notify) Bytes() []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(n.Code)
	buf.WriteByte(n.Subcode)
	buf.Write(n.Data)
	return buf.Bytes()
}

// Encode returns the full wire message (header + body).
func (n *Notify) Encode() []byte {
	body := n.Bytes()
	msg := EncodeHeader(uint16(HeaderLength+len(body)), NOTIFICATION)
	return append(msg, body...)
}

// Pre-built notifications the listener sends on OPEN pre-validation
// failure, one per distinct diagnostic (spec.md §4.1/§6). Building them
// once avoids allocating on every rejected connection.
var (
	OpenBye          = NewNotify(CodeOpenMessageError, SubcodeUnspecific, "we do not accept incoming connections - thanks for calling")
	OpenInvalidMarker = NewNotify(CodeOpenMessageError, SubcodeUnspecific, "invalid OPEN message (16 first bytes are not 0xFF)")
	OpenInvalidType  = NewNotify(CodeOpenMessageError, SubcodeUnspecific, "invalid OPEN message (it is not an OPEN message)")
	OpenInvalidSize  = NewNotify(CodeOpenMessageError, SubcodeUnspecific, "invalid OPEN message (invalid size in message)")
)
