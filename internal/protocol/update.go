package protocol

import (
	"time"

	"github.com/s12016/exabgp/internal/wire"
)

// updateProducer drains a batch of already-encoded UPDATE messages one
// non-blocking write at a time — the contract's `new_update()`. The
// messages themselves come from the external route-table collaborator
// spec.md §1 keeps out of scope; this package only knows how to flush
// pre-built bytes onto the wire without blocking, the same queue/flush
// shape the teacher gives its pending-write queue (queue/queue.go),
// adapted here to hold whole messages instead of arbitrary byte slices.
type updateProducer struct {
	chunks [][]byte
	i      int
}

// NewUpdateProducer starts a lazy UPDATE write from a pre-built batch.
// Called at most once per "have routes" cycle (spec.md §4.2.3: "start a
// lazy UPDATE producer from the protocol adapter").
func (a *Adapter) NewUpdateProducer(chunks [][]byte) {
	a.updates = &updateProducer{chunks: chunks}
}

// UpdateInFlight reports whether an UPDATE batch is still being sent.
func (a *Adapter) UpdateInFlight() bool { return a.updates != nil }

// AdvanceUpdate sends one more chunk of the in-flight batch, or flushes
// whatever is partially written. done reports the whole batch has been
// written and the producer has been retired.
func (a *Adapter) AdvanceUpdate(now time.Time) (done bool, err error) {
	if a.updates == nil {
		return true, nil
	}
	if a.tx.idle() && a.updates.i < len(a.updates.chunks) {
		a.tx.queue(a.updates.chunks[a.updates.i])
		a.updates.i++
	}
	flushed, err := a.flush(now)
	if err != nil {
		a.updates = nil
		return false, err
	}
	if flushed && a.updates.i >= len(a.updates.chunks) {
		a.updates = nil
		return true, nil
	}
	return false, nil
}

// eorProducer walks the negotiated address families emitting one EOR
// marker per family (spec.md §4.2.3: "start a lazy UPDATE producer...
// send End-of-RIB markers for each negotiated address family").
type eorProducer struct {
	families []wire.AFISAFI
	i        int
}

// NewEORs starts the lazy EOR producer for the negotiated families. If
// no families were negotiated the caller (session package) sends a
// single KEEPALIVE as the EOR surrogate instead, per spec.md §4.2.3.
func (a *Adapter) NewEORs(families []wire.AFISAFI) {
	a.eors = &eorProducer{families: families}
}

// AdvanceEOR sends the next EOR marker. done reports all families have
// been signaled.
func (a *Adapter) AdvanceEOR(now time.Time) (done bool, err error) {
	if a.eors == nil {
		return true, nil
	}
	if a.tx.idle() && a.eors.i < len(a.eors.families) {
		a.tx.queue(wire.EOR(a.eors.families[a.eors.i]))
		a.eors.i++
	}
	flushed, err := a.flush(now)
	if err != nil {
		a.eors = nil
		return false, err
	}
	if flushed && a.eors.i >= len(a.eors.families) {
		a.eors = nil
		return true, nil
	}
	return false, nil
}
