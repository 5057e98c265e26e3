package workload

import "sync/atomic"

// rankSequencer implements the rank-skewed modulo-100 decision used by
// both the rw-mix policy and the random-refill policy (spec.md §4.2): a
// per-worker sequence number, seeded by rank so separate ranks don't
// correlate, compared against a configured percentage. The async inner
// loop (ring.go) calls Decide concurrently from every ring slot's
// goroutine sharing the same worker, so seq is advanced with atomic ops
// rather than a plain increment.
type rankSequencer struct {
	rank int
	seq  uint64
}

func newRankSequencer(rank int) *rankSequencer {
	return &rankSequencer{rank: rank}
}

// Decide advances the sequence and reports whether this I/O falls within
// the given percentage (0-100) of the rank-skewed modulo-100 cycle.
func (s *rankSequencer) Decide(percent int) bool {
	seq := atomic.AddUint64(&s.seq, 1) - 1
	if percent <= 0 {
		return false
	}
	if percent >= 100 {
		return true
	}
	value := (uint64(s.rank)*97 + seq) % 100
	return value < uint64(percent)
}
