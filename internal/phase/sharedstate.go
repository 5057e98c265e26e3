// Package phase implements the shared state, barrier, and stonewall logic
// a worker manager uses to start a phase and that workers consult to
// detect phase transitions and report completion. See spec.md §3/§4.3.
package phase

import (
	"sync"
	"time"

	"github.com/TheEntropyCollective/storagebench/internal/bench"
)

// StonewallHook is invoked, under the shared state's lock, exactly once
// per phase, at the moment the first worker reports done. The worker
// manager wires this to each worker's CreateStonewallStats.
type StonewallHook func()

// SharedState is the mutex+condvar-protected phase state every worker
// reads to detect a transition and every worker reports completion into.
// It is created once with the worker manager, mutated only by the manager
// and workers under its lock, and destroyed (via Close) with the manager.
type SharedState struct {
	mu   sync.Mutex
	cond *sync.Cond

	numWorkers int
	phase      bench.Phase
	benchID    bench.BenchID

	doneCount          int
	doneWithErrorCount int

	firstDoneCPU int
	lastDoneCPU  int

	phaseTimeExpired bool
	stonewallHook    StonewallHook

	closeCh chan struct{}
}

// New creates a SharedState for numWorkers workers, idle until the first
// call to StartNextPhase. It starts a background ticker that broadcasts
// periodically, giving waiters a "timed wait" of approximately
// broadcastInterval so callers like the worker manager can interleave
// time-limit and interrupt checks between wakeups, matching the ~500ms
// timed wait spec.md §4.3 describes.
func New(numWorkers int, broadcastInterval time.Duration) *SharedState {
	s := &SharedState{
		numWorkers: numWorkers,
		phase:      bench.PhaseIdle,
		closeCh:    make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.periodicBroadcaster(broadcastInterval)
	return s
}

func (s *SharedState) periodicBroadcaster(interval time.Duration) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		case <-s.closeCh:
			return
		}
	}
}

// Close stops the background broadcaster. It does not wake any waiters
// synchronously; callers should ensure all workers have exited first.
func (s *SharedState) Close() {
	select {
	case <-s.closeCh:
		// already closed
	default:
		close(s.closeCh)
	}
}

// SetStonewallHook installs the callback invoked when the first worker
// finishes a phase.
func (s *SharedState) SetStonewallHook(hook StonewallHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stonewallHook = hook
}

// StartNextPhase resets done counters, sets the new phase and bench ID,
// clears the phase-time-expired flag, and broadcasts so every worker next
// observes exactly this (phase, benchID) pair.
func (s *SharedState) StartNextPhase(p bench.Phase, id bench.BenchID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doneCount = 0
	s.doneWithErrorCount = 0
	s.firstDoneCPU = 0
	s.lastDoneCPU = 0
	s.phaseTimeExpired = false
	s.phase = p
	s.benchID = id
	s.cond.Broadcast()
}

// ResetDone zeroes done and done-with-error without changing phase/benchID.
func (s *SharedState) ResetDone() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doneCount = 0
	s.doneWithErrorCount = 0
	s.cond.Broadcast()
}

// Current returns the current (phase, benchID) pair. Workers poll this to
// detect a transition.
func (s *SharedState) Current() (bench.Phase, bench.BenchID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase, s.benchID
}

// WaitForPhaseChange blocks until the (phase, benchID) pair differs from
// (lastPhase, lastID) — the pair a worker last observed — or stop is
// closed. This is the "each worker wakes, consults the shared state"
// transition-detection step of spec.md's data-flow description.
func (s *SharedState) WaitForPhaseChange(lastPhase bench.Phase, lastID bench.BenchID, stop <-chan struct{}) (bench.Phase, bench.BenchID, bool) {
	forwardDone := make(chan struct{})
	defer close(forwardDone)
	go func() {
		select {
		case <-stop:
			s.cond.Broadcast()
		case <-forwardDone:
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	for s.phase == lastPhase && s.benchID == lastID {
		select {
		case <-stop:
			return s.phase, s.benchID, false
		default:
		}
		s.cond.Wait()
	}
	return s.phase, s.benchID, true
}

// IncDone increments the done count. If this is the first worker to
// finish, it snapshots firstDoneCPU and invokes the stonewall hook exactly
// once. If this is the last worker, it snapshots lastDoneCPU. cpuPercent
// is the caller's current CPU utilization sample (0-100).
func (s *SharedState) IncDone(cpuPercent int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doneCount++
	if s.doneCount == 1 {
		s.firstDoneCPU = cpuPercent
		if s.stonewallHook != nil {
			s.stonewallHook()
		}
	}
	if s.doneCount+s.doneWithErrorCount == s.numWorkers {
		s.lastDoneCPU = cpuPercent
	}
	s.cond.Broadcast()
}

// IncDoneWithError increments the done-with-error count.
func (s *SharedState) IncDoneWithError(cpuPercent int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doneWithErrorCount++
	if s.doneCount == 0 && s.doneWithErrorCount == 1 {
		s.firstDoneCPU = cpuPercent
	}
	if s.doneCount+s.doneWithErrorCount == s.numWorkers {
		s.lastDoneCPU = cpuPercent
	}
	s.cond.Broadcast()
}

// SetPhaseTimeExpired marks that the phase's time limit has elapsed.
func (s *SharedState) SetPhaseTimeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phaseTimeExpired = true
	s.cond.Broadcast()
}

// Snapshot is a point-in-time read of every field the worker manager and
// coordinator need.
type Snapshot struct {
	Phase              bench.Phase
	BenchID            bench.BenchID
	DoneCount          int
	DoneWithErrorCount int
	FirstDoneCPU       int
	LastDoneCPU        int
	PhaseTimeExpired   bool
	NumWorkers         int
}

func (s *SharedState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Phase:              s.phase,
		BenchID:            s.benchID,
		DoneCount:          s.doneCount,
		DoneWithErrorCount: s.doneWithErrorCount,
		FirstDoneCPU:       s.firstDoneCPU,
		LastDoneCPU:        s.lastDoneCPU,
		PhaseTimeExpired:   s.phaseTimeExpired,
		NumWorkers:         s.numWorkers,
	}
}

// WaitUntilAllDone blocks until done+doneWithError == numWorkers, the
// phase-time-expired flag is set, or stop is closed, whichever comes
// first. It wakes at least every broadcastInterval (set in New) so the
// caller can poll other conditions (SIGINT) in between, matching
// spec.md §4.3/§4.4's timed-wait requirement.
func (s *SharedState) WaitUntilAllDone(stop <-chan struct{}) Snapshot {
	// Forward stop into a Broadcast so a waiter parked in cond.Wait()
	// below is not stuck until the next periodic broadcast tick.
	// Broadcast may be called without holding the lock.
	forwardDone := make(chan struct{})
	defer close(forwardDone)
	go func() {
		select {
		case <-stop:
			s.cond.Broadcast()
		case <-forwardDone:
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if s.doneCount+s.doneWithErrorCount == s.numWorkers || s.phaseTimeExpired {
			return s.snapshotLocked()
		}
		select {
		case <-stop:
			return s.snapshotLocked()
		default:
		}
		s.cond.Wait()
	}
}

func (s *SharedState) snapshotLocked() Snapshot {
	return Snapshot{
		Phase:              s.phase,
		BenchID:            s.benchID,
		DoneCount:          s.doneCount,
		DoneWithErrorCount: s.doneWithErrorCount,
		FirstDoneCPU:       s.firstDoneCPU,
		LastDoneCPU:        s.lastDoneCPU,
		PhaseTimeExpired:   s.phaseTimeExpired,
		NumWorkers:         s.numWorkers,
	}
}
