package timer

import (
	"testing"
	"time"
)

func TestTimerExpiresAfterInterval(t *testing.T) {
	now := time.Unix(0, 0)
	tm := New(10 * time.Second)
	tm.Start(now)
	if !tm.Running() {
		t.Fatalf("expected timer to be running after Start")
	}
	if tm.Expired(now.Add(9 * time.Second)) {
		t.Errorf("did not expect expiry before the interval elapsed")
	}
	if !tm.Expired(now.Add(10 * time.Second)) {
		t.Errorf("expected expiry once the interval elapsed")
	}
}

func TestTimerTickResetsDeadline(t *testing.T) {
	now := time.Unix(0, 0)
	tm := New(10 * time.Second)
	tm.Start(now)
	later := now.Add(9 * time.Second)
	tm.Tick(later, true)
	if tm.Expired(now.Add(10 * time.Second)) {
		t.Errorf("expected the tick to push the deadline out, but timer still expired")
	}
	if !tm.Expired(later.Add(10 * time.Second)) {
		t.Errorf("expected expiry 10s after the last tick")
	}
}

func TestTimerTickIgnoresNonActivity(t *testing.T) {
	now := time.Unix(0, 0)
	tm := New(10 * time.Second)
	tm.Start(now)
	tm.Tick(now.Add(9*time.Second), false)
	if !tm.Expired(now.Add(10 * time.Second)) {
		t.Errorf("a tick with no activity must not reset the deadline")
	}
}

func TestTimerStop(t *testing.T) {
	now := time.Unix(0, 0)
	tm := New(10 * time.Second)
	tm.Start(now)
	tm.Stop()
	if tm.Running() {
		t.Errorf("expected timer to be stopped")
	}
	if tm.Expired(now.Add(time.Hour)) {
		t.Errorf("a stopped timer must never report expired")
	}
}

func TestZeroIntervalNeverExpires(t *testing.T) {
	now := time.Unix(0, 0)
	tm := New(0)
	tm.Start(now)
	if tm.Running() {
		t.Errorf("a zero hold time must not arm the timer (RFC 4271 §4.2)")
	}
	if tm.Expired(now.Add(24 * time.Hour)) {
		t.Errorf("a zero-interval timer must never expire")
	}
}

func TestKeepaliveTimerPacing(t *testing.T) {
	now := time.Unix(0, 0)
	k := NewKeepalive(9 * time.Second) // interval -> 3s
	if k.Due(now) != true {
		t.Fatalf("expected the first check to be due immediately")
	}
	if k.Due(now.Add(1 * time.Second)) {
		t.Errorf("did not expect a keepalive to be due after only 1s")
	}
	if !k.Due(now.Add(3 * time.Second)) {
		t.Errorf("expected a keepalive to be due after a full interval")
	}
}

func TestKeepaliveTimerFloor(t *testing.T) {
	k := NewKeepalive(1 * time.Second) // would derive to 0.33s, floored to MinKeepaliveInterval
	now := time.Unix(0, 0)
	k.Due(now)
	if k.Due(now.Add(500 * time.Millisecond)) {
		t.Errorf("expected the 1s floor to be enforced even for very short hold times")
	}
}
