package session

import "github.com/s12016/exabgp/internal/wire"

// disposition is the "result sum type" SPEC_FULL.md §3.2 calls for in
// place of the source's exception-for-control-flow: every establishment
// or established-loop step returns one of these instead of raising, and
// Peer.handleFault performs the close-and-reset bookkeeping spec.md §7's
// table assigns to each kind.
type disposition int

const (
	dispContinue disposition = iota
	dispDone
	dispSendNotify    // we raise: send n, close, schedule restart if armed
	dispPeerNotified  // peer raised: log, close both, schedule restart
	dispInterrupted   // NOP observed after shutdown began
	dispNetError      // connect/read/write failure
	dispProcError     // external process API failure
)

// fault carries the disposition plus whatever data it needs to act on.
type fault struct {
	kind   disposition
	notify *wire.Notify
	err    error
}

func continueFault() fault           { return fault{kind: dispContinue} }
func doneFault() fault               { return fault{kind: dispDone} }
func sendNotifyFault(n *wire.Notify) fault {
	return fault{kind: dispSendNotify, notify: n}
}
func peerNotifiedFault(n *wire.Notify) fault {
	return fault{kind: dispPeerNotified, notify: n}
}
func interruptedFault() fault        { return fault{kind: dispInterrupted} }
func netErrorFault(err error) fault  { return fault{kind: dispNetError, err: err} }
func procErrorFault(err error) fault { return fault{kind: dispProcError, err: err} }
