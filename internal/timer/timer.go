// Package timer implements the poll-driven timers the peer state machine
// needs: the open-wait timer bounding how long a half-session may sit
// waiting for an OPEN, and the hold timer that governs liveness once a
// session is established. Both are driven by the reactor's own clock
// (the `now` passed into every step) rather than a background goroutine
// and callback — the single-threaded cooperative model in spec.md §5
// has no safe place for a callback to land, so unlike the teacher's
// time.AfterFunc-based Timer (timer/timer.go), Timer exposes
// Tick(now, sawActivity) and KeepaliveTimer exposes Due(now); both are
// polled, never fired asynchronously.
package timer

import "time"

// Timer tracks the deadline by which *something* must have happened —
// an OPEN received, or any keepalive-worthy traffic — resetting whenever
// the caller reports that it did.
type Timer struct {
	interval time.Duration
	deadline time.Time
	armed    bool
}

// New creates a Timer for the given interval. A zero interval means the
// timer never expires (RFC 4271 §4.2: a hold time of zero disables the
// hold timer).
func New(interval time.Duration) *Timer {
	return &Timer{interval: interval}
}

// Start arms the timer against now, so it next expires at now+interval.
func (t *Timer) Start(now time.Time) {
	if t.interval <= 0 {
		t.armed = false
		return
	}
	t.deadline = now.Add(t.interval)
	t.armed = true
}

// Tick resets the deadline when sawActivity is true and the timer is
// armed; it is a no-op otherwise. This mirrors the ExaBGP Timer.tick
// contract spec.md §4.2.1/§4.2.2 describe: "the open-wait timer
// (configurable, default as per environment) must tick each observed
// message".
func (t *Timer) Tick(now time.Time, sawActivity bool) {
	if !t.armed || !sawActivity {
		return
	}
	t.deadline = now.Add(t.interval)
}

// Expired reports whether the timer is armed and its deadline has
// passed as of now.
func (t *Timer) Expired(now time.Time) bool {
	return t.armed && !now.Before(t.deadline)
}

// Stop disarms the timer.
func (t *Timer) Stop() {
	t.armed = false
}

// Running reports whether the timer is currently armed.
func (t *Timer) Running() bool {
	return t.armed
}

// Remaining returns how long until the deadline, or zero if not armed
// or already expired.
func (t *Timer) Remaining(now time.Time) time.Duration {
	if !t.armed {
		return 0
	}
	if d := t.deadline.Sub(now); d > 0 {
		return d
	}
	return 0
}

// KeepaliveTimer paces outgoing KEEPALIVE messages at one third of the
// negotiated hold time (RFC 4271 §4.4's "reasonable maximum"), never
// more often than once per second.
type KeepaliveTimer struct {
	interval time.Duration
	last     time.Time
}

// MinKeepaliveInterval is the floor RFC 4271 §4.4 places on how often
// KEEPALIVE messages may be sent.
const MinKeepaliveInterval = 1 * time.Second

// NewKeepalive derives a KeepaliveTimer from a negotiated hold time. A
// zero hold time yields a KeepaliveTimer that never fires.
func NewKeepalive(holdTime time.Duration) *KeepaliveTimer {
	if holdTime <= 0 {
		return &KeepaliveTimer{}
	}
	interval := holdTime / 3
	if interval < MinKeepaliveInterval {
		interval = MinKeepaliveInterval
	}
	return &KeepaliveTimer{interval: interval}
}

// Due reports whether it is time to send a KEEPALIVE, and if so resets
// the internal clock against now as if one had just been sent.
func (k *KeepaliveTimer) Due(now time.Time) bool {
	if k.interval <= 0 {
		return false
	}
	if k.last.IsZero() || now.Sub(k.last) >= k.interval {
		k.last = now
		return true
	}
	return false
}
