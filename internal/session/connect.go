package session

import (
	"time"

	"github.com/s12016/exabgp/internal/wire"
)

// connectPhase is the tagged-variant establishment phase for the
// outbound half-session (spec.md §4.2.2, `_connect`).
type connectPhase int

const (
	connectCheckBroken connectPhase = iota
	connectDialing
	connectSendOpen
	connectAwaitOpen
	connectValidate
	connectAwaitKeepalive
	connectSendKeepalive
	connectDone
)

// connectMachine drives out_state from idle to established.
type connectMachine struct {
	phase    connectPhase
	openWait *deadlineGuard
	openWaitDuration time.Duration
}

func newConnectMachine(openWait time.Duration) *connectMachine {
	return &connectMachine{phase: connectCheckBroken, openWaitDuration: openWait}
}

func (m *connectMachine) step(p *Peer, now time.Time) (Intent, fault) {
	if !p.running {
		return IntentIdle, interruptedFault()
	}

	switch m.phase {
	case connectCheckBroken:
		// spec.md §4.2.2 step 1: "If the out-of-process API helper is
		// reported broken for this neighbor, set running=false and stop."
		if p.process.Broken(p.neighbor.PeerAddress.String()) {
			p.running = false
			return IntentIdle, doneFault()
		}
		p.out.Connect(p.peerPort)
		p.outState = Connect
		p.backoff.reset()
		m.phase = connectDialing
		return IntentUrgent, continueFault()

	case connectDialing:
		done, err := p.out.DialResult()
		if err != nil {
			return IntentIdle, netErrorFault(err)
		}
		if !done {
			return IntentIdle, continueFault()
		}
		m.openWait = newDeadlineGuard(m.openWaitDuration, now)
		m.phase = connectSendOpen
		return IntentUrgent, continueFault()

	case connectSendOpen:
		done, sent, err := p.out.NewOpen(now, p.localOpenTemplate())
		if err != nil {
			return IntentIdle, netErrorFault(err)
		}
		if !done {
			return IntentUrgent, continueFault()
		}
		p.out.RecordSent(sent)
		p.outState = OpenSent
		m.phase = connectAwaitOpen
		return IntentUrgent, continueFault()

	case connectAwaitOpen:
		if m.openWait.expired(now) {
			return IntentIdle, sendNotifyFault(wire.NewNotify(wire.CodeHoldTimerExpired, wire.SubcodeUnspecific, "open-wait timeout"))
		}
		msg, err := p.out.ReadOpen(now, p.neighbor.PeerAddress)
		if err != nil {
			return IntentIdle, netErrorFault(err)
		}
		if msg.IsNOP() {
			return IntentIdle, continueFault()
		}
		if msg.Type != wire.OPEN {
			return IntentIdle, sendNotifyFault(wire.NewNotify(wire.CodeOpenMessageError, wire.SubcodeUnspecific, "expected OPEN"))
		}
		open, derr := wire.DecodeOpen(msg.Body)
		if derr != nil {
			return IntentIdle, sendNotifyFault(wire.NewNotify(wire.CodeOpenMessageError, wire.SubcodeUnspecific, "malformed OPEN"))
		}
		p.out.RecordReceived(open)
		m.phase = connectValidate
		return IntentUrgent, continueFault()

	case connectValidate:
		if err := p.out.ValidateOpen(p.neighbor.PeerAS, p.neighbor.HoldTime, p.neighbor.Families); err != nil {
			if n, ok := err.(*wire.Notify); ok {
				return IntentIdle, sendNotifyFault(n)
			}
			return IntentIdle, sendNotifyFault(wire.NewNotify(wire.CodeOpenMessageError, wire.SubcodeUnspecific, err.Error()))
		}
		p.outState = OpenConfirm
		m.phase = connectAwaitKeepalive
		return IntentUrgent, continueFault()

	case connectAwaitKeepalive:
		if m.openWait.expired(now) {
			return IntentIdle, sendNotifyFault(wire.NewNotify(wire.CodeHoldTimerExpired, wire.SubcodeUnspecific, "open-wait timeout"))
		}
		msg, err := p.out.ReadKeepalive(now)
		if err != nil {
			return IntentIdle, netErrorFault(err)
		}
		if msg.IsNOP() {
			return IntentIdle, continueFault()
		}
		if msg.Type != wire.KEEPALIVE {
			return IntentIdle, sendNotifyFault(wire.NewNotify(wire.CodeFiniteStateMachineError, wire.SubcodeUnspecific, "expected KEEPALIVE"))
		}
		m.phase = connectSendKeepalive
		return IntentUrgent, continueFault()

	case connectSendKeepalive:
		done, err := p.out.NewKeepalive(now)
		if err != nil {
			return IntentIdle, netErrorFault(err)
		}
		if !done {
			return IntentUrgent, continueFault()
		}
		p.outState = Established
		m.phase = connectDone
		return IntentUrgent, doneFault()

	default:
		return IntentIdle, doneFault()
	}
}

func (m *connectMachine) finished() bool { return m.phase == connectDone }
