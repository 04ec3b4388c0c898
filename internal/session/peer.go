package session

import (
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/s12016/exabgp/internal/metrics"
	"github.com/s12016/exabgp/internal/protocol"
	"github.com/s12016/exabgp/internal/wire"
)

// Peer owns one neighbor's lifecycle end to end: the two racing
// establishment half-sessions, the winner's steady-state loop, and the
// restart/teardown/back-off bookkeeping around all of it (spec.md §3/§4.2).
// Grounded on the teacher's fsm.FSM (fsm/fsm.go) for the state-holding
// shape, restructured into the two-half-session race spec.md requires.
type Peer struct {
	neighbor Neighbor
	process  ProcessBridge
	openWait time.Duration
	peerPort int
	tcpOnce  bool
	log      zerolog.Logger
	metrics  *metrics.PeerMetrics

	inState, outState HalfState

	inLoop, outLoop LoopLifecycle
	inMachine       *acceptMachine
	outMachine      *connectMachine
	connected       *connectedLoop

	in, out *protocol.Adapter
	proto   *protocol.Adapter // the winning direction, aliased once established

	establishedHold *holdTimer

	running, restart, restarted, haveRoutes bool
	teardownSubcode                         *byte

	backoff backoff

	pendingRoutes   routeQueue
	pendingNeighbor *Neighbor
}

// New creates a Peer for neighbor, ready for its first Step(). peerPort
// is the TCP port outbound connections dial (179 in production; tests
// pin it to a loopback listener's ephemeral port).
func New(n Neighbor, process ProcessBridge, openWait time.Duration, peerPort int, tcpOnce bool, log zerolog.Logger) *Peer {
	if process == nil {
		process = NullProcessBridge{}
	}
	p := &Peer{
		neighbor:  n,
		process:   process,
		openWait:  openWait,
		peerPort:  peerPort,
		tcpOnce:   tcpOnce,
		log:       log.With().Str("peer", n.PeerAddress.String()).Logger(),
		metrics:   metrics.NewPeer(n.PeerAddress.String()),
		running:   true,
		restarted: true, // FORCE_GRACEFUL: act like recovering from a failure until told otherwise
		inLoop:    Absent,
		outLoop:   Absent,
	}
	if n.Passive {
		p.outLoop = Absent
	} else {
		p.outLoop = PendingStart
	}
	return p
}

// localOpenTemplate builds this speaker's own OPEN for either direction
// (spec.md §4.3's `new_open(restarted)`).
func (p *Peer) localOpenTemplate() wire.OpenTemplate {
	return wire.OpenTemplate{
		MyAS:            p.neighbor.LocalAS,
		HoldTime:        p.neighbor.HoldTime,
		BGPIdentifier:   p.neighbor.LocalIdentifier,
		Families:        p.neighbor.Families,
		GracefulRestart: p.neighbor.GracefulRestart && p.restarted,
	}
}

// Incoming offers a pre-validated inbound OPEN buffer to the peer
// (spec.md §4.2's `incoming(pre_validated_open_buffer_and_socket)`).
// Accepted only if out_state has not reached established and in_state
// is idle.
func (p *Peer) Incoming(conn net.Conn, buffered []byte) bool {
	if p.outState == Established || p.inState != Idle {
		return false
	}
	p.in = protocol.NewInbound(conn, buffered, p.log)
	p.inLoop = PendingStart
	p.inState = Active
	return true
}

// Stop arms terminal shutdown (spec.md §4.2's stop()).
func (p *Peer) Stop() {
	p.running = false
	p.restart = false
	p.backoff.reset()
}

// Reload installs a new neighbor configuration in place without tearing
// the session down (spec.md §4.2's reload(neighbor)).
func (p *Peer) Reload(n Neighbor) {
	p.neighbor = n
	p.haveRoutes = true
	p.backoff.reset()
}

// Restart tears the session down and re-establishes, optionally
// queuing a replacement neighbor for the next boundary.
func (p *Peer) Restart(n *Neighbor) {
	p.restart = true
	p.running = false
	p.restarted = true
	p.pendingNeighbor = n
}

// Teardown arms a graceful shutdown that raises Notification(6,
// subcode) out of the established loop, then optionally re-establishes.
func (p *Peer) Teardown(subcode byte, restartAfter bool) {
	s := subcode
	p.teardownSubcode = &s
	p.restart = restartAfter
	p.running = false
}

// Descriptors returns the live I/O handles for reactor-level readiness
// selection (spec.md §4.2's descriptors()). Either may be nil.
func (p *Peer) Descriptors() []net.Conn {
	var out []net.Conn
	if p.in != nil && p.in.Conn() != nil {
		out = append(out, p.in.Conn())
	}
	if p.out != nil && p.out.Conn() != nil {
		out = append(out, p.out.Conn())
	}
	return out
}

// Step advances whichever half-session is due and returns the combined
// intent (spec.md §4.2's step()).
func (p *Peer) Step(now time.Time) Intent {
	if p.inState == Established || p.outState == Established {
		return p.stepEstablished(now)
	}

	result := combine(p.stepIn(now), p.stepOut(now))

	inDone := p.inLoop == Terminated || (p.inLoop == Absent && !p.running)
	outDone := p.outLoop == Terminated || (p.outLoop == Absent && !p.running)
	if inDone && outDone {
		if p.restart {
			if p.pendingNeighbor != nil {
				p.neighbor = *p.pendingNeighbor
				p.pendingNeighbor = nil
			}
			p.running = true
			p.restart = false
			p.teardownSubcode = nil
			p.inLoop = Absent
			if p.neighbor.Passive {
				p.outLoop = Absent
			} else {
				p.outLoop = PendingStart
			}
			return IntentUrgent
		}
		return IntentDone
	}

	return result
}

func (p *Peer) stepIn(now time.Time) Intent {
	switch p.inLoop {
	case Running:
		intent, f := p.inMachine.step(p, now)
		if p.inMachine.finished() {
			p.inLoop = Terminated
			p.winDirection(In, now)
			return IntentUrgent
		}
		if f.kind != dispContinue {
			p.handleFault(In, f, now)
			return IntentUrgent
		}
		return intent
	case PendingStart:
		p.inMachine = newAcceptMachine(p.openWait, now)
		p.inLoop = Running
		return IntentUrgent
	default:
		return IntentIdle
	}
}

func (p *Peer) stepOut(now time.Time) Intent {
	switch p.outLoop {
	case Running:
		if p.backoff.suppressed(now) {
			return IntentIdle
		}
		intent, f := p.outMachine.step(p, now)
		if p.outMachine.finished() {
			p.outLoop = Terminated
			p.backoff.reset()
			p.winDirection(Out, now)
			return IntentUrgent
		}
		if f.kind != dispContinue {
			p.handleFault(Out, f, now)
			return IntentUrgent
		}
		return intent
	case PendingStart:
		if p.neighbor.Passive {
			return IntentIdle
		}
		p.out = protocol.NewOutbound(p.neighbor.PeerAddress, p.log)
		p.outMachine = newConnectMachine(p.openWait)
		p.outLoop = Running
		return IntentUrgent
	default:
		return IntentIdle
	}
}

// winDirection collapses the race: the first direction to finish
// establishment becomes proto; the loser is sent a Cease/collision
// Notification and closed (spec.md §5's collision-resolution note,
// matching the original's validate_open raising Notify(6, collision)).
func (p *Peer) winDirection(d Direction, now time.Time) {
	if p.proto != nil {
		return
	}
	if d == In {
		p.proto = p.in
		if p.out != nil {
			p.out.NewNotification(wire.NewNotify(wire.CodeCease, wire.SubcodeConnectionCollision, "inbound connection won the establishment race"))
			p.out.Close("collision: inbound won establishment")
			p.outState = Idle
			p.outLoop = Terminated
			p.out = nil
		}
	} else {
		p.proto = p.out
		if p.in != nil {
			p.in.NewNotification(wire.NewNotify(wire.CodeCease, wire.SubcodeConnectionCollision, "outbound connection won the establishment race"))
			p.in.Close("collision: outbound won establishment")
			p.inState = Idle
			p.inLoop = Terminated
			p.in = nil
		}
	}
	p.establishedHold = newHoldTimer(p.proto.Negotiated.HoldTime, now)
	p.connected = newConnectedLoop()
	p.metrics.SetEstablished(true)
}

func (p *Peer) stepEstablished(now time.Time) Intent {
	if !p.running {
		p.closeEstablished(now)
		return IntentDone
	}
	intent, f := p.connected.step(p, now)
	if f.kind != dispContinue {
		p.handleEstablishedFault(f, now)
		return IntentUrgent
	}
	return intent
}

func (p *Peer) closeEstablished(now time.Time) {
	if p.restarted && p.neighbor.GracefulRestart {
		p.proto.Close("graceful restart")
	} else if p.teardownSubcode != nil {
		p.proto.NewNotification(wire.NewNotify(wire.CodeCease, *p.teardownSubcode, "teardown"))
		p.proto.Close("teardown")
	} else {
		p.proto.NewNotification(wire.NewNotify(wire.CodeCease, wire.SubcodePeerDeconfigured, "peer de-configured"))
		p.proto.Close("peer de-configured")
	}
	p.metrics.SetEstablished(false)
	p.resetHalves()
}

func (p *Peer) resetHalves() {
	p.inState, p.outState = Idle, Idle
	p.inLoop, p.outLoop = Terminated, Terminated
	p.in, p.out, p.proto = nil, nil, nil
}

// ReceiveRoutes queues a pre-built UPDATE batch for the established
// loop's lazy producer (spec.md §4.2.3's have_routes flag).
func (p *Peer) ReceiveRoutes(chunks [][]byte) {
	p.pendingRoutes.push(chunks)
	p.haveRoutes = true
}
