// Package session implements the per-neighbor peer state machine
// (spec.md §4.2): two cooperative half-sessions racing to establish,
// collapsing to one, then the steady-state keepalive/update loop.
// Grounded on the teacher's fsm.FSM (fsm/fsm.go) for the state-enum and
// event-driven shape, generalized from its single linear RFC4271 FSM
// into the two-half-session, generator-as-poll() model spec.md requires
// (see SPEC_FULL.md §6's "Cooperative generators as explicit state machines").
package session

import "github.com/s12016/exabgp/internal/protocol"

// Direction distinguishes the inbound-accepted half-session from the
// outbound-initiated one; re-exported from the protocol package so the
// session and protocol packages share one vocabulary for it.
type Direction = protocol.Direction

const (
	In  = protocol.In
	Out = protocol.Out
)

// HalfState is one direction's position in the establishment sequence
// (spec.md §3, Peer state: "independent state drawn from {idle, active,
// connect, opensent, openconfirm, established}").
type HalfState int

const (
	Idle HalfState = iota
	Active
	Connect
	OpenSent
	OpenConfirm
	Established
)

func (s HalfState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Connect:
		return "connect"
	case OpenSent:
		return "opensent"
	case OpenConfirm:
		return "openconfirm"
	case Established:
		return "established"
	default:
		return "unknown"
	}
}

// LoopLifecycle is the lifecycle value of one of a peer's two
// cooperative task slots (spec.md §3: "absent, pending-start, running").
type LoopLifecycle int

const (
	Absent LoopLifecycle = iota
	PendingStart
	Running
	Terminated
)

// Intent is what a single step of a cooperative task reports to its
// scheduler (spec.md §2: "urgent, idle, stopped").
type Intent int

const (
	IntentIdle Intent = iota
	IntentUrgent
	IntentDone
)

// combine folds a slot's intent into the step()-wide result: urgent wins
// over idle, and done only propagates when the caller explicitly checks
// for full termination (spec.md §4.2's step() combination rule).
func combine(a, b Intent) Intent {
	if a == IntentUrgent || b == IntentUrgent {
		return IntentUrgent
	}
	return IntentIdle
}
