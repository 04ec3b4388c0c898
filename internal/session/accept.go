package session

import (
	"time"

	"github.com/s12016/exabgp/internal/wire"
)

// acceptPhase is the tagged-variant establishment phase for the inbound
// half-session (spec.md §4.2.1, `_accept`), a hand-written replacement
// for the source's generator.
type acceptPhase int

const (
	acceptAwaitOpen acceptPhase = iota
	acceptSendOpen
	acceptValidate
	acceptSendKeepalive
	acceptAwaitKeepalive
	acceptDone
)

// acceptMachine drives in_state from idle to established (spec.md
// §4.2.1's six numbered steps), holding the open-wait timer that bounds
// the whole sequence.
type acceptMachine struct {
	phase    acceptPhase
	openWait *deadlineGuard
}

func newAcceptMachine(openWait time.Duration, now time.Time) *acceptMachine {
	return &acceptMachine{
		phase:    acceptAwaitOpen,
		openWait: newDeadlineGuard(openWait, now),
	}
}

// step advances the machine by exactly one tick, mutating the peer's
// in_state as transitions complete. Returns the step intent and, on
// failure, the fault to hand to Peer.handleFault.
func (m *acceptMachine) step(p *Peer, now time.Time) (Intent, fault) {
	if !p.running {
		return IntentIdle, interruptedFault()
	}

	switch m.phase {
	case acceptAwaitOpen:
		if m.openWait.expired(now) {
			return IntentIdle, sendNotifyFault(wire.NewNotify(wire.CodeHoldTimerExpired, wire.SubcodeUnspecific, "open-wait timeout"))
		}
		msg, err := p.in.ReadOpen(now, p.neighbor.PeerAddress)
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
		p.in.RecordReceived(open)
		p.inState = OpenSent
		m.phase = acceptSendOpen
		return IntentUrgent, continueFault()

	case acceptSendOpen:
		done, sent, err := p.in.NewOpen(now, p.localOpenTemplate())
		if err != nil {
			return IntentIdle, netErrorFault(err)
		}
		if !done {
			return IntentUrgent, continueFault()
		}
		p.in.RecordSent(sent)
		m.phase = acceptValidate
		return IntentUrgent, continueFault()

	case acceptValidate:
		if err := p.in.ValidateOpen(p.neighbor.PeerAS, p.neighbor.HoldTime, p.neighbor.Families); err != nil {
			if n, ok := err.(*wire.Notify); ok {
				return IntentIdle, sendNotifyFault(n)
			}
			return IntentIdle, sendNotifyFault(wire.NewNotify(wire.CodeOpenMessageError, wire.SubcodeUnspecific, err.Error()))
		}
		m.phase = acceptSendKeepalive
		return IntentUrgent, continueFault()

	case acceptSendKeepalive:
		done, err := p.in.NewKeepalive(now)
		if err != nil {
			return IntentIdle, netErrorFault(err)
		}
		if !done {
			return IntentUrgent, continueFault()
		}
		p.inState = OpenConfirm
		m.phase = acceptAwaitKeepalive
		return IntentUrgent, continueFault()

	case acceptAwaitKeepalive:
		if m.openWait.expired(now) {
			return IntentIdle, sendNotifyFault(wire.NewNotify(wire.CodeHoldTimerExpired, wire.SubcodeUnspecific, "open-wait timeout"))
		}
		msg, err := p.in.ReadKeepalive(now)
		if err != nil {
			return IntentIdle, netErrorFault(err)
		}
		if msg.IsNOP() {
			return IntentIdle, continueFault()
		}
		if msg.Type != wire.KEEPALIVE {
			return IntentIdle, sendNotifyFault(wire.NewNotify(wire.CodeFiniteStateMachineError, wire.SubcodeUnspecific, "expected KEEPALIVE"))
		}
		p.inState = Established
		m.phase = acceptDone
		return IntentUrgent, doneFault()

	default:
		return IntentIdle, doneFault()
	}
}

func (m *acceptMachine) finished() bool { return m.phase == acceptDone }
