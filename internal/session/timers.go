package session

import (
	"time"

	"github.com/s12016/exabgp/internal/timer"
)

// deadlineGuard bounds an establishment sequence to the configured
// open-wait window (spec.md §4.2.1/§4.2.2). It is a thin adapter over
// timer.Timer, started once when the guard is created; received
// messages do not reset it, so the window covers the whole sequence
// from that start, not the gap between messages.
type deadlineGuard struct {
	t *timer.Timer
}

func newDeadlineGuard(d time.Duration, now time.Time) *deadlineGuard {
	g := &deadlineGuard{t: timer.New(d)}
	g.t.Start(now)
	return g
}

func (g *deadlineGuard) expired(now time.Time) bool {
	return g.t.Expired(now)
}

// holdTimer wraps timer.Timer for the established-phase hold timer,
// ticked by every non-NOP message (spec.md §4.2.3: "Tick the hold-timer
// with the message").
type holdTimer struct {
	t *timer.Timer
}

func newHoldTimer(d time.Duration, now time.Time) *holdTimer {
	h := &holdTimer{t: timer.New(d)}
	h.t.Start(now)
	return h
}

func (h *holdTimer) tick(now time.Time, sawActivity bool) { h.t.Tick(now, sawActivity) }
func (h *holdTimer) expired(now time.Time) bool           { return h.t.Expired(now) }
