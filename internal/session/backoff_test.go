package session

import (
	"testing"
	"time"
)

// TestBackoffGrowth matches spec.md §8 scenario 5: three consecutive
// failures from next_skip=0 yield the series 1, 2, 3.
func TestBackoffGrowth(t *testing.T) {
	var b backoff
	now := time.Unix(0, 0)

	want := []int{1, 2, 3}
	for i, w := range want {
		b.fail(now)
		if b.nextSkip != w {
			t.Errorf("failure %d: next_skip = %d, want %d", i+1, b.nextSkip, w)
		}
	}
}

func TestBackoffCapsAtSixty(t *testing.T) {
	var b backoff
	now := time.Unix(0, 0)
	for i := 0; i < 50; i++ {
		b.fail(now)
	}
	if b.nextSkip != maxBackoffSeconds {
		t.Errorf("next_skip = %d, want cap %d", b.nextSkip, maxBackoffSeconds)
	}
}

func TestBackoffResetsOnSuccess(t *testing.T) {
	var b backoff
	now := time.Unix(0, 0)
	b.fail(now)
	b.fail(now)
	b.reset()
	if b.nextSkip != 0 {
		t.Errorf("next_skip = %d, want 0 after reset", b.nextSkip)
	}
	if b.suppressed(now) {
		t.Errorf("expected no suppression immediately after reset")
	}
}

func TestBackoffSuppressesUntilSkipUntil(t *testing.T) {
	var b backoff
	now := time.Unix(0, 0)

	// the very first failure arms skip_until from the pre-growth
	// next_skip (0), so it suppresses nothing.
	b.fail(now)
	if b.suppressed(now) {
		t.Errorf("expected no suppression after the first failure")
	}

	// the second failure arms skip_until from next_skip=1.
	b.fail(now)
	if !b.suppressed(now) {
		t.Errorf("expected suppression right after the second failure")
	}
	later := now.Add(time.Duration(b.nextSkip) * time.Second)
	if b.suppressed(later) {
		t.Errorf("expected suppression to have lifted by skip_until")
	}
}
