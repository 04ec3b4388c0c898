package protocol

import (
	"time"

	"github.com/s12016/exabgp/internal/wire"
)

// frameWriter queues a fixed message and flushes it across however many
// non-blocking writes it takes.
type frameWriter struct {
	pending []byte
}

func newFrameWriter() *frameWriter { return &frameWriter{} }

func (w *frameWriter) queue(b []byte) { w.pending = append(w.pending, b...) }
func (w *frameWriter) idle() bool     { return len(w.pending) == 0 }

// flush attempts one non-blocking write of whatever remains queued.
// done reports whether the queue fully drained.
func (a *Adapter) flush(now time.Time) (done bool, err error) {
	if a.tx.idle() {
		return true, nil
	}
	deadlineNow(a.conn, now)
	n, werr := a.conn.Write(a.tx.pending)
	if n > 0 {
		a.tx.pending = a.tx.pending[n:]
	}
	if werr != nil {
		if wouldBlock(werr) {
			return a.tx.idle(), nil
		}
		return false, networkErrorf("write: %w", werr)
	}
	return a.tx.idle(), nil
}

// NewOpen is the contract's `new_open(restarted)`: queues (on first
// call) and flushes (on every call) an OPEN built from local, returning
// done=true and the sent message once fully written.
func (a *Adapter) NewOpen(now time.Time, local wire.OpenTemplate) (done bool, sent wire.Open, err error) {
	if a.tx.idle() && a.pendingOpen == nil {
		o := local.Build()
		a.pendingOpen = &o
		a.tx.queue(o.Encode())
	}
	done, err = a.flush(now)
	if err != nil || !done {
		return false, wire.Open{}, err
	}
	sent = *a.pendingOpen
	a.pendingOpen = nil
	return true, sent, nil
}

// NewKeepalive is `new_keepalive(stage?)`.
func (a *Adapter) NewKeepalive(now time.Time) (done bool, err error) {
	if a.tx.idle() && !a.queuedKeepalive {
		a.tx.queue(wire.EncodeKeepalive())
		a.queuedKeepalive = true
	}
	done, err = a.flush(now)
	if done {
		a.queuedKeepalive = false
	}
	return done, err
}

// NewNotification is `new_notification(n)`: a synchronous best-effort
// write, matching ExaBGP's "self._reply"/"new_notification" semantics —
// the session is ending regardless of whether the peer gets the byte.
func (a *Adapter) NewNotification(n *wire.Notify) {
	if a.conn == nil {
		return
	}
	deadlineNow(a.conn, time.Now())
	a.conn.Write(n.Encode())
}
