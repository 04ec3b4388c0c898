// Package protocol implements the per-connection protocol adapter
// spec.md §4.3 specifies only by contract: the encoder/decoder the peer
// state machine drives to accept or open a connection, exchange OPEN
// and KEEPALIVE, read arbitrary messages, and emit UPDATE/EOR/NOTIFICATION
// traffic. Every "lazy producer/consumer" named in the contract is a
// small poll()-style object here rather than a generator, for the same
// reason the session package's establishment phases are hand-written
// state machines (spec.md §9, §6 of SPEC_FULL.md): Go has no coroutine
// primitive that fits a single-threaded, no-blocking-ever reactor loop.
package protocol

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/s12016/exabgp/internal/wire"
)

// Direction distinguishes the inbound-accepted half-session from the
// outbound-initiated one (spec.md §3, Peer state: "two half-sessions in
// and out").
type Direction int

const (
	In Direction = iota
	Out
)

func (d Direction) String() string {
	if d == In {
		return "in"
	}
	return "out"
}

// Negotiated is the negotiation record spec.md §3/§4.3 describes: the
// sent and received OPEN, the derived hold time, and the mutually
// agreed address families.
type Negotiated struct {
	Sent     wire.Open
	Received wire.Open
	HoldTime time.Duration
	Families []wire.AFISAFI
}

// Announced reports whether this speaker's own sent OPEN advertised
// capability id — spec.md §4.3's
// `negotiated.sent_open.capabilities.announced(id)`. Unused today: the
// silent-close decision in session.closeEstablished is made from
// Peer.restarted/Peer.neighbor.GracefulRestart rather than by asking the
// negotiation record what was actually sent.
func (n Negotiated) Announced(id byte) bool {
	return n.Sent.Capabilities.Announced(id)
}

// Adapter owns one TCP connection plus its read/write buffering state.
// It is created when a direction begins establishment and destroyed
// when that direction terminates (spec.md §3, Protocol adapter
// lifecycle).
type Adapter struct {
	conn      net.Conn
	direction Direction
	remote    net.IP

	rx *frameReader
	tx *frameWriter

	dialCh          chan error // non-nil only while a Connect() is outstanding
	pendingOpen     *wire.Open
	queuedKeepalive bool
	updates         *updateProducer
	eors            *eorProducer

	Negotiated Negotiated

	log    zerolog.Logger
	closed bool
}

// NewInbound wraps an already-accepted connection. If buffered is
// non-empty it is the fully-received OPEN the listener pre-validated
// (spec.md §4.2's incoming()/accept(incoming)); it is seeded into the
// read buffer so the first ReadOpen call sees it immediately without a
// further socket read.
func NewInbound(conn net.Conn, buffered []byte, log zerolog.Logger) *Adapter {
	a := &Adapter{
		conn:      conn,
		direction: In,
		rx:        newFrameReader(),
		tx:        newFrameWriter(),
		log:       log.With().Str("dir", "in").Logger(),
	}
	if host, _, err := net.SplitHostPort(conn.RemoteAddr().String()); err == nil {
		a.remote = net.ParseIP(host)
	}
	if len(buffered) > 0 {
		a.rx.seed(buffered)
	}
	return a
}

// NewOutbound prepares an adapter for an outbound connection that has
// not dialed yet; call Connect to start it.
func NewOutbound(remote net.IP, log zerolog.Logger) *Adapter {
	return &Adapter{
		direction: Out,
		remote:    remote,
		rx:        newFrameReader(),
		tx:        newFrameWriter(),
		log:       log.With().Str("dir", "out").Logger(),
	}
}

// Connect kicks off a non-blocking outbound TCP connection attempt. Go's
// net package has no portable connect()+EINPROGRESS+select surface the
// way BSD sockets do, so the idiomatic translation spec.md §9 allows
// ("a Future/async task with a custom executor — the shape is
// identical") is a goroutine performing the blocking dial and signaling
// completion over a channel that DialResult polls without blocking.
func (a *Adapter) Connect(port int) {
	a.dialCh = make(chan error, 1)
	addr := net.JoinHostPort(a.remote.String(), fmt.Sprintf("%d", port))
	go func() {
		conn, err := net.DialTimeout("tcp", addr, 30*time.Second)
		if err != nil {
			a.dialCh <- err
			return
		}
		a.conn = conn
		a.dialCh <- nil
	}()
}

// DialResult polls a Connect() started earlier: done is false while the
// dial is still outstanding.
func (a *Adapter) DialResult() (done bool, err error) {
	if a.dialCh == nil {
		return true, nil
	}
	select {
	case err = <-a.dialCh:
		a.dialCh = nil
		return true, err
	default:
		return false, nil
	}
}

// Direction reports which half-session this adapter belongs to.
func (a *Adapter) Direction() Direction { return a.direction }

// RemoteIP is the negotiated peer's address, known before connect for
// outbound adapters and recovered from the accepted socket for inbound
// ones.
func (a *Adapter) RemoteIP() net.IP { return a.remote }

// Conn exposes the underlying socket for reactor-level readiness
// selection (spec.md §4.2's descriptors()); nil until a connection has
// been accepted or successfully dialed.
func (a *Adapter) Conn() net.Conn { return a.conn }

// Close closes the underlying socket. Idempotent, per spec.md §3's
// lifecycle note and §4.3's close(reason) contract.
func (a *Adapter) Close(reason string) {
	if a.closed {
		return
	}
	a.closed = true
	if a.conn != nil {
		a.log.Debug().Str("reason", reason).Msg("closing connection")
		a.conn.Close()
	}
}

// deadlineNow arms a read/write deadline one millisecond ahead, so the
// following syscall completes at once when data or buffer room is there
// and gives up within a millisecond otherwise — the Go equivalent of a
// non-blocking socket (SPEC_FULL.md §6's "Non-blocking I/O via
// deadlines" note). A deadline that has already passed would make Go
// fail the call without attempting it.
func deadlineNow(conn net.Conn, now time.Time) {
	conn.SetDeadline(time.Now().Add(time.Millisecond))
}

// wouldBlock reports whether err is the deadline-exceeded sentinel this
// package treats as "no data/room yet, come back next tick" rather than
// a real NetworkError.
func wouldBlock(err error) bool {
	return errors.Is(err, os.ErrDeadlineExceeded)
}
