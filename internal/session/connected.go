package session

import (
	"time"

	"github.com/s12016/exabgp/internal/timer"
	"github.com/s12016/exabgp/internal/wire"
)

// connectedLoop is the established-phase steady state (spec.md §4.2.3,
// `_connected`): read/route-count, pace keepalives, drain any pending
// UPDATE/EOR producers.
type connectedLoop struct {
	announcedUp bool
	eorStarted  bool
	keepalive   *timer.KeepaliveTimer
}

func newConnectedLoop() *connectedLoop { return &connectedLoop{} }

// step runs exactly one iteration of the established loop.
func (c *connectedLoop) step(p *Peer, now time.Time) (Intent, fault) {
	if !c.announcedUp {
		if p.neighbor.NeighborChanges {
			if err := p.process.Up(p.neighbor.PeerAddress.String()); err != nil {
				return IntentIdle, procErrorFault(err)
			}
		}
		c.announcedUp = true
		c.keepalive = timer.NewKeepalive(p.proto.Negotiated.HoldTime)
	}

	urgent := false

	msg, err := p.proto.ReadMessage(now)
	if err != nil {
		return IntentIdle, netErrorFault(err)
	}
	sawActivity := !msg.IsNOP()
	if sawActivity {
		if msg.Type == wire.UPDATE {
			n, cerr := wire.CountRoutes(msg.Body)
			if cerr != nil {
				if notify, ok := cerr.(*wire.Notify); ok {
					return IntentIdle, sendNotifyFault(notify)
				}
				return IntentIdle, sendNotifyFault(wire.NewNotify(wire.CodeUpdateMessageError, wire.SubcodeUnspecific, cerr.Error()))
			}
			p.metrics.AddRoutes(n)
		}
		if msg.Type == wire.NOTIFICATION {
			n, _ := wire.DecodeNotification(msg.Body)
			if n == nil {
				n = wire.NewNotify(wire.CodeCease, wire.SubcodeUnspecific, "malformed NOTIFICATION")
			}
			return IntentIdle, peerNotifiedFault(n)
		}
	}
	p.establishedHold.tick(now, sawActivity)
	if p.establishedHold.expired(now) {
		return IntentIdle, sendNotifyFault(wire.NewNotify(wire.CodeHoldTimerExpired, wire.SubcodeUnspecific, "hold timer expired"))
	}

	if c.keepalive.Due(now) {
		done, err := p.proto.NewKeepalive(now)
		if err != nil {
			return IntentIdle, netErrorFault(err)
		}
		if done {
			p.metrics.IncKeepalivesSent()
		}
		urgent = true
	}

	if p.haveRoutes && !p.proto.UpdateInFlight() {
		p.proto.NewUpdateProducer(p.pendingRoutes.popAll())
		p.haveRoutes = false
		urgent = true
	}

	if p.proto.UpdateInFlight() {
		done, err := p.proto.AdvanceUpdate(now)
		if err != nil {
			return IntentIdle, netErrorFault(err)
		}
		urgent = true
		if done && !c.eorStarted {
			c.eorStarted = true
			if len(p.proto.Negotiated.Families) > 0 {
				p.proto.NewEORs(p.proto.Negotiated.Families)
			} else {
				p.proto.NewKeepalive(now)
			}
		}
	} else if c.eorStarted {
		if done, err := p.proto.AdvanceEOR(now); err != nil {
			return IntentIdle, netErrorFault(err)
		} else if !done {
			urgent = true
		}
	}

	if urgent {
		return IntentUrgent, continueFault()
	}
	return IntentIdle, continueFault()
}
