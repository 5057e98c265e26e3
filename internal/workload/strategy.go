package workload

import (
	"github.com/TheEntropyCollective/storagebench/internal/bench"
	"github.com/TheEntropyCollective/storagebench/internal/config"
	"github.com/TheEntropyCollective/storagebench/internal/iobuf"
)

// strategy is the set of behaviors selected exactly once at phase entry,
// per spec.md's Design Notes ("the function pointers must be selected
// exactly once at phase entry, not evaluated per I/O via feature flags").
// Go has no member-function-pointer idiom, so this is expressed as a
// struct of closures built once by newStrategy and then invoked
// unconditionally from the hot loops in dirmode.go, filemode.go, and
// ring.go.
type strategy struct {
	async bool

	// decideWrite reports whether the next I/O at this phase is a write
	// (true) or a read (false). Outside create-files rw-mix, this is a
	// phase-constant predicate; rw-mix makes it per-call.
	decideWrite func() bool

	// decideRefill reports whether the buffer used for the next I/O
	// should be refilled with fresh pseudo-random content before
	// submission (the random-refill policy, §4.2).
	decideRefill func() bool

	// integrityEnabled is true when a non-zero verify salt is configured
	// and this is a data phase (create-files or read-files).
	integrityEnabled bool
	salt             uint64

	// useDeviceStaging is true when a device-staging capability is
	// configured; the inner loop routes writes/reads through a
	// host<->device memcpy around the positional I/O in that case.
	useDeviceStaging bool
	caps             iobuf.Capabilities
}

// stageRoundTrip copies buf to the device buffer at slot and back, a
// stand-in for "submit via the device-staged path" that lets a real
// accelerator-backed DeviceStager intercept the data without changing the
// caller's read/write sequencing. It is a no-op unless useDeviceStaging is
// set.
func (s *strategy) stageRoundTrip(pool *iobuf.BufferPool, slot int, buf []byte) error {
	if !s.useDeviceStaging {
		return nil
	}
	dev := pool.Device(slot)
	if dev == nil {
		return nil
	}
	if err := s.caps.Stager.CopyHostToDevice(dev, buf); err != nil {
		return err
	}
	return s.caps.Stager.CopyDeviceToHost(buf, dev)
}

// newStrategy builds the strategy for one phase entry, reading the
// worker's rank-skewed sequencers and configuration exactly once.
func newStrategy(p bench.Phase, cfg *config.Config, rwSeq, refillSeq *rankSequencer, caps iobuf.Capabilities) *strategy {
	s := &strategy{
		async:            cfg.IODepth > 1,
		integrityEnabled: cfg.Verify != 0 && p.IsDataPhase(),
		salt:             cfg.Verify,
		useDeviceStaging: caps.Stager != nil,
		caps:             caps,
	}

	switch p {
	case bench.PhaseCreateFiles:
		if cfg.RWMixReadPercent > 0 {
			s.decideWrite = func() bool { return !rwSeq.Decide(cfg.RWMixReadPercent) }
		} else {
			s.decideWrite = func() bool { return true }
		}
	case bench.PhaseReadFiles:
		s.decideWrite = func() bool { return false }
	default:
		s.decideWrite = func() bool { return false }
	}

	if cfg.RandomRefillPercent > 0 {
		s.decideRefill = func() bool { return refillSeq.Decide(cfg.RandomRefillPercent) }
	} else {
		s.decideRefill = func() bool { return false }
	}

	return s
}
