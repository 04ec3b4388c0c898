package protocol

import (
	"net"
	"time"

	"github.com/s12016/exabgp/internal/wire"
)

// Message is the unit ReadMessage/ReadOpen/ReadKeepalive yield. A NOP
// type means "no complete message yet" — spec glossary's "sentinel
// yielded by the wire codec meaning 'no complete message yet'; never
// appears on the wire".
type Message struct {
	Type wire.MessageType
	Body []byte // message body, header stripped
}

// NOP is the sentinel Message ReadMessage yields when nothing complete
// has arrived yet.
var NOP = Message{Type: wire.NOP}

func (m Message) IsNOP() bool { return m.Type == wire.NOP }

// frameReader accumulates bytes for exactly one message at a time: the
// 19-byte header, then however many body bytes the header's length
// field calls for. Reading the length field only once the full header
// is buffered (never from a single recv chunk) is the fix for the bug
// spec.md §9 flags in the original.
type frameReader struct {
	buf       []byte
	headerLen int // bytes of header already buffered
	header    wire.Header
	haveHdr   bool
	bodyGot   int
}

func newFrameReader() *frameReader {
	return &frameReader{buf: make([]byte, 0, wire.HeaderLength)}
}

// seed pre-loads a complete message (header+body) the caller already
// has in hand — used for the listener's pre-buffered inbound OPEN.
func (r *frameReader) seed(full []byte) {
	r.buf = append([]byte(nil), full...)
	r.headerLen = wire.HeaderLength
	r.haveHdr = true
	h, _ := wire.DecodeHeader(r.buf)
	r.header = h
	r.bodyGot = len(full) - wire.HeaderLength
}

// ready reports whether a full message is sitting in buf.
func (r *frameReader) ready() bool {
	return r.haveHdr && r.bodyGot >= int(r.header.Length)-wire.HeaderLength
}

// take pops the ready message off the buffer and resets state for the
// next one.
func (r *frameReader) take() Message {
	body := append([]byte(nil), r.buf[wire.HeaderLength:r.header.Length]...)
	msg := Message{Type: r.header.Type, Body: body}
	r.buf = append(r.buf[:0], r.buf[r.header.Length:]...)
	r.headerLen = 0
	r.haveHdr = false
	r.bodyGot = 0
	if len(r.buf) >= wire.HeaderLength {
		if h, err := wire.DecodeHeader(r.buf); err == nil {
			r.header = h
			r.haveHdr = true
			r.headerLen = wire.HeaderLength
			r.bodyGot = len(r.buf) - wire.HeaderLength
		}
	}
	return msg
}

// poll performs one non-blocking read attempt and reports whether a
// full message is now buffered.
func (a *Adapter) poll(now time.Time) (Message, error) {
	if a.rx.ready() {
		return a.rx.take(), nil
	}
	if a.conn == nil {
		return NOP, nil
	}

	deadlineNow(a.conn, now)
	tmp := make([]byte, 4096)
	n, err := a.conn.Read(tmp)
	if n > 0 {
		a.rx.buf = append(a.rx.buf, tmp[:n]...)
	}
	if err != nil {
		if wouldBlock(err) {
			if n == 0 {
				return NOP, nil
			}
		} else {
			return NOP, networkErrorf("read: %w", err)
		}
	}

	if !a.rx.haveHdr && len(a.rx.buf) >= wire.HeaderLength {
		h, herr := wire.DecodeHeader(a.rx.buf)
		if herr != nil {
			return NOP, herr
		}
		a.rx.header = h
		a.rx.haveHdr = true
	}
	if a.rx.haveHdr {
		a.rx.bodyGot = len(a.rx.buf) - wire.HeaderLength
	}
	if a.rx.ready() {
		return a.rx.take(), nil
	}
	return NOP, nil
}

// ReadMessage is the contract's `read_message()`: yields NOP until a
// real message (of any type) has arrived.
func (a *Adapter) ReadMessage(now time.Time) (Message, error) {
	return a.poll(now)
}

// ReadOpen is `read_open(expected_ip)`: like ReadMessage but the caller
// (the session package) is responsible for rejecting anything other
// than NOP/OPEN, matching spec.md §4.2.1/§4.2.2. expectedIP is not used:
// the adapter does not compare it, since the TCP accept/connect path
// already pinned the remote address.
func (a *Adapter) ReadOpen(now time.Time, expectedIP net.IP) (Message, error) {
	return a.poll(now)
}

// ReadKeepalive is `read_keepalive(stage)`.
func (a *Adapter) ReadKeepalive(now time.Time) (Message, error) {
	return a.poll(now)
}
