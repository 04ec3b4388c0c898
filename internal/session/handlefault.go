package session

import (
	"time"

	"github.com/s12016/exabgp/internal/protocol"
)

// handleFault is the central disposition handler spec.md §9 calls for
// in place of the source's catch-ladder: one place performs the
// close-and-reset bookkeeping spec.md §7's table assigns to each error
// kind, for a fault raised by the establishment phase of direction d.
func (p *Peer) handleFault(d Direction, f fault, now time.Time) {
	switch f.kind {
	case dispSendNotify:
		p.log.Warn().Err(f.notify).Str("dir", d.String()).Msg("sending notification")
		p.adapterFor(d).NewNotification(f.notify)
		p.closeDirection(d)
		p.scheduleRestart()

	case dispPeerNotified:
		p.log.Warn().Err(f.notify).Str("dir", d.String()).Msg("peer sent notification")
		p.closeBoth()
		p.scheduleRestart()

	case dispNetError:
		p.log.Debug().Err(f.err).Str("dir", d.String()).Msg("network error")
		p.closeBoth()
		p.backoff.fail(now)
		p.metrics.SetBackoff(float64(p.backoff.skipUntil.Unix()), float64(p.backoff.nextSkip))
		if p.tcpOnce {
			p.running = false
		} else {
			p.scheduleRestart()
		}

	case dispInterrupted:
		p.log.Debug().Str("dir", d.String()).Msg("interrupted, tearing down quietly")
		p.closeDirection(d)

	case dispProcError:
		p.log.Error().Err(f.err).Msg("process API error")
		p.closeBoth()
	}
}

// handleEstablishedFault is handleFault's counterpart for the
// established loop, which has a single winning adapter rather than two
// racing directions.
func (p *Peer) handleEstablishedFault(f fault, now time.Time) {
	switch f.kind {
	case dispSendNotify:
		p.log.Warn().Err(f.notify).Msg("sending notification from established loop")
		p.proto.NewNotification(f.notify)
		p.proto.Close("local notification")
		p.metrics.SetEstablished(false)
		p.resetHalves()
		p.scheduleRestart()

	case dispPeerNotified:
		p.log.Warn().Err(f.notify).Msg("peer sent notification")
		p.proto.Close("peer notification")
		p.metrics.SetEstablished(false)
		p.resetHalves()
		p.scheduleRestart()

	case dispNetError:
		p.log.Debug().Err(f.err).Msg("network error in established loop")
		p.proto.Close("network error")
		p.metrics.SetEstablished(false)
		p.resetHalves()
		p.backoff.fail(now)
		if p.tcpOnce {
			p.running = false
		} else {
			p.scheduleRestart()
		}

	case dispProcError:
		p.log.Error().Err(f.err).Msg("process API error")
		p.proto.Close("process error")
		p.metrics.SetEstablished(false)
		p.resetHalves()
	}
}

func (p *Peer) adapterFor(d Direction) *protocol.Adapter {
	if d == In {
		return p.in
	}
	return p.out
}

func (p *Peer) closeDirection(d Direction) {
	if d == In {
		if p.in != nil {
			p.in.Close("fault")
		}
		p.inState = Idle
		p.inLoop = Terminated
	} else {
		if p.out != nil {
			p.out.Close("fault")
		}
		p.outState = Idle
		p.outLoop = Terminated
	}
}

func (p *Peer) closeBoth() {
	p.closeDirection(In)
	p.closeDirection(Out)
}

// scheduleRestart requests that step() re-arm both half-sessions on
// its next pass once both loop slots report terminated, mirroring
// spec.md §4.2's "if restart, apply any queued replacement neighbor...
// mark both slots pending-start" boundary.
func (p *Peer) scheduleRestart() {
	p.restart = true
}
