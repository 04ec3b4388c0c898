package session

import (
	"math"
	"time"
)

// maxBackoffSeconds caps next_skip at 60 (spec.md §3/§5).
const maxBackoffSeconds = 60

// backoff tracks the outbound connect suppression window (spec.md §3:
// "skip_until, next_skip").
type backoff struct {
	skipUntil time.Time
	nextSkip  int
}

// suppressed reports whether an outbound connect attempt should be
// skipped at now.
func (b *backoff) suppressed(now time.Time) bool {
	return now.Before(b.skipUntil)
}

// fail arms skip_until from the *current* next_skip, then grows
// next_skip by floor(1 + 1.2·n), capped at 60 (spec.md §5: "On
// NetworkError, skip_until ← now + next_skip; next_skip ← min(60,
// floor(1+1.2·next_skip))" — the original's _more_skip arms skip_time
// from self._next_skip before growing it).
func (b *backoff) fail(now time.Time) {
	b.skipUntil = now.Add(time.Duration(b.nextSkip) * time.Second)
	b.nextSkip = int(math.Min(maxBackoffSeconds, math.Floor(1+1.2*float64(b.nextSkip))))
}

// reset clears the back-off on a successful connect (spec.md §5).
func (b *backoff) reset() {
	b.nextSkip = 0
	b.skipUntil = time.Time{}
}
