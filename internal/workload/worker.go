// Package workload implements the local worker: the per-thread engine that
// walks directory trees or shared file/block-device ranges, submits I/O
// through a buffer pool, and reports live counters, a latency histogram,
// and a stonewall snapshot back to the worker manager. See spec.md §3/§4.2.
package workload

import (
	"math/rand"
	"sync"
	"time"

	"github.com/TheEntropyCollective/storagebench/internal/bench"
	"github.com/TheEntropyCollective/storagebench/internal/config"
	"github.com/TheEntropyCollective/storagebench/internal/cpuutil"
	"github.com/TheEntropyCollective/storagebench/internal/iobuf"
	"github.com/TheEntropyCollective/storagebench/internal/latency"
	"github.com/TheEntropyCollective/storagebench/internal/liveops"
	"github.com/TheEntropyCollective/storagebench/internal/logging"
	"github.com/TheEntropyCollective/storagebench/internal/phase"
)

// Result is the point-in-time report a worker manager reads after a phase
// completes (or is interrupted), matching the per-worker fields the
// coordinator aggregates into phase totals (spec.md §6's result table).
type Result struct {
	Rank             int
	Entries          liveops.Snapshot
	StonewallEntries liveops.Snapshot
	StonewallTaken   bool
	RWMixRead        liveops.Snapshot
	Latency          *latency.Histogram
	ElapsedUs        uint64
	Err              error
}

// LocalWorker is one rank of a local (non-remote) worker pool. It owns its
// own buffer pool, RNG, and rank-skewed sequencers; the FileSet (nil in
// directory mode) is shared read-only across all workers.
type LocalWorker struct {
	rank    int
	cfg     *config.Config
	shared  *phase.SharedState
	logger  *logging.Logger
	cpu     *cpuutil.Sampler
	fileSet *FileSet
	caps    iobuf.Capabilities
	bufPool *iobuf.BufferPool
	rng     *rand.Rand

	rwSeq     *rankSequencer
	refillSeq *rankSequencer

	counters liveops.Counters

	// rwMixRead tracks the bytes/iops subset of create-files counters that
	// the rw-mix policy (spec.md §4.2) diverted to a read instead of a
	// write. Atomic like counters, so ring.go's slot goroutines can update
	// it without the worker's mutex.
	rwMixRead liveops.Counters

	mu                sync.Mutex
	hist              latency.Histogram
	stonewallSnapshot liveops.Snapshot
	stonewallTaken    bool
	elapsedUs         uint64
	err               error
}

// NewLocalWorker constructs a worker for one rank. fileSet is nil in
// directory mode.
func NewLocalWorker(rank int, cfg *config.Config, shared *phase.SharedState, logger *logging.Logger, fileSet *FileSet, caps iobuf.Capabilities) (*LocalWorker, error) {
	rng := rand.New(rand.NewSource(int64(rank) + 1))
	pool, err := iobuf.New(int(cfg.IODepth), int(cfg.Block), caps, rng)
	if err != nil {
		return nil, err
	}
	return &LocalWorker{
		rank:      rank,
		cfg:       cfg,
		shared:    shared,
		logger:    logger.WithComponent("worker"),
		cpu:       cpuutil.NewSampler(0),
		fileSet:   fileSet,
		caps:      caps,
		bufPool:   pool,
		rng:       rng,
		rwSeq:     newRankSequencer(rank),
		refillSeq: newRankSequencer(rank),
	}, nil
}

// Close releases the worker's buffer pool. Called by the worker manager
// once the worker's goroutine has exited.
func (w *LocalWorker) Close() error { return w.bufPool.Close() }

// Rank returns the worker's rank.
func (w *LocalWorker) Rank() int { return w.rank }

// LiveCounters returns the worker's current live counters. Unlike Result,
// it is safe to call while the worker's phase is still in progress: it
// only reads the atomic Counters, never the histogram the worker's own
// goroutine is still mutating.
func (w *LocalWorker) LiveCounters() liveops.Snapshot { return w.counters.Get() }

// LiveRWMixRead returns the worker's current rw-mix-read counters. Safe to
// call mid-phase for the same reason as LiveCounters.
func (w *LocalWorker) LiveRWMixRead() liveops.Snapshot { return w.rwMixRead.Get() }

// Run is the worker's main loop: wait for a phase change, dispatch it, and
// report completion (with or without error) into the shared state. It
// returns when the shared state transitions to PhaseTerminate or stop is
// closed.
func (w *LocalWorker) Run(stop <-chan struct{}) {
	lastPhase, lastID := bench.PhaseIdle, bench.NilBenchID
	for {
		p, id, ok := w.shared.WaitForPhaseChange(lastPhase, lastID, stop)
		if !ok {
			return
		}
		lastPhase, lastID = p, id
		if p == bench.PhaseTerminate {
			return
		}
		if p == bench.PhaseIdle {
			continue
		}
		w.resetForPhase()
		start := time.Now()
		runErr := w.runPhase(p, stop)
		w.mu.Lock()
		w.elapsedUs = uint64(time.Since(start).Microseconds())
		w.err = runErr
		w.mu.Unlock()

		cpuPct, _ := w.cpu.Snapshot()
		if _, interrupted := runErr.(*bench.WorkerInterruptedError); interrupted {
			w.shared.IncDone(cpuPct)
		} else if runErr != nil {
			w.shared.IncDoneWithError(cpuPct)
		} else {
			w.shared.IncDone(cpuPct)
		}
	}
}

func (w *LocalWorker) resetForPhase() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.counters.Reset()
	w.rwMixRead.Reset()
	w.hist = latency.Histogram{}
	w.stonewallTaken = false
	w.stonewallSnapshot = liveops.Snapshot{}
	w.elapsedUs = 0
	w.err = nil
}

// CaptureStonewallSnapshot records the worker's current counters exactly
// once, the moment any worker in the pool first finishes its phase. The
// worker manager wires this (for every worker) into the shared state's
// single StonewallHook, so stonewall throughput reflects what every
// worker, not just the first, had done at that instant (spec.md §4.3).
func (w *LocalWorker) CaptureStonewallSnapshot() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.stonewallTaken {
		w.stonewallSnapshot = w.counters.Get()
		w.stonewallTaken = true
	}
}

// Result returns the worker's report for the phase that just completed.
func (w *LocalWorker) Result() Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	h := w.hist
	return Result{
		Rank:             w.rank,
		Entries:          w.counters.Get(),
		StonewallEntries: w.stonewallSnapshot,
		StonewallTaken:   w.stonewallTaken,
		RWMixRead:        w.rwMixRead.Get(),
		Latency:          &h,
		ElapsedUs:        w.elapsedUs,
		Err:              w.err,
	}
}

func (w *LocalWorker) runPhase(p bench.Phase, stop <-chan struct{}) error {
	switch p {
	case bench.PhaseCreateDirs:
		return w.runCreateDirs(stop)
	case bench.PhaseDeleteDirs:
		return w.runDeleteDirs(stop)
	case bench.PhaseCreateFiles, bench.PhaseReadFiles:
		if w.fileSet != nil {
			return w.runFileDataPhase(p, stop)
		}
		return w.runDirDataPhase(p, stop)
	case bench.PhaseStatFiles:
		return w.runStatFiles(stop)
	case bench.PhaseDeleteFiles:
		return w.runDeleteFiles(stop)
	case bench.PhaseSync, bench.PhaseDropCaches:
		// Applied once, process-wide, by the coordinator between
		// phases; not a per-worker operation.
		return nil
	default:
		return nil
	}
}

func checkInterrupted(rank int, stop <-chan struct{}) error {
	select {
	case <-stop:
		return &bench.WorkerInterruptedError{Rank: rank}
	default:
		return nil
	}
}
