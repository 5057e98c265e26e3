// Package workermanager owns one benchmark participant's local worker
// pool: it prepares threads, sequences phases through the shared state,
// polls for completion or a phase time limit, and aggregates each worker's
// result into phase totals. It is used directly by the master in local
// mode, and wrapped by internal/httpservice when this process is a remote
// service (spec.md §4.4).
package workermanager

import (
	"sync"
	"time"

	"github.com/TheEntropyCollective/storagebench/internal/bench"
	"github.com/TheEntropyCollective/storagebench/internal/config"
	"github.com/TheEntropyCollective/storagebench/internal/latency"
	"github.com/TheEntropyCollective/storagebench/internal/liveops"
	"github.com/TheEntropyCollective/storagebench/internal/logging"
	"github.com/TheEntropyCollective/storagebench/internal/phase"
	"github.com/TheEntropyCollective/storagebench/internal/workload"
)

// pollInterval is how often WaitForWorkersDone wakes to check the phase
// time limit and the interrupt channel: 250ms, half of the shared state's
// 500ms broadcast interval, so the manager's phase-completion loop stays
// within the ~500ms timed wait spec.md §4.3/§4.4 describes.
const pollInterval = 250 * time.Millisecond

// PhaseTotals is the aggregated result of one phase across every local
// worker: the summed live counters, the summed stonewall counters, the
// merged latency histogram, and the first worker error encountered (if
// any). The counters are what the workers actually completed; the planned
// per-phase totals (entries and bytes a phase is expected to reach) are not
// computed anywhere in this package.
type PhaseTotals struct {
	Phase            bench.Phase
	Entries          liveops.Snapshot
	StonewallEntries liveops.Snapshot
	RWMixRead        liveops.Snapshot
	Latency          *latency.Histogram
	ElapsedUs        uint64
	FirstDoneCPU     int
	LastDoneCPU      int
	Err              error
}

// Manager drives one process's local workers through a sequence of phases.
type Manager struct {
	cfg     *config.Config
	shared  *phase.SharedState
	workers []*workload.LocalWorker
	fileSet *workload.FileSet
	logger  *logging.Logger

	stopCh        chan struct{}
	interruptOnce sync.Once
	prepared      bool
	wg            sync.WaitGroup

	phaseDeadline time.Time
}

// New validates cfg, opens the shared FileSet in file/bdev mode, and
// constructs (but does not yet start) one LocalWorker per configured
// thread.
func New(cfg *config.Config, logger *logging.Logger) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		cfg:    cfg,
		shared: phase.New(cfg.Threads, 500*time.Millisecond),
		logger: logger.WithComponent("workermanager"),
		stopCh: make(chan struct{}),
	}

	if !cfg.PathTypes0IsDir() {
		fs, err := workload.OpenFileSet(cfg)
		if err != nil {
			return nil, err
		}
		m.fileSet = fs
	}

	for rank := 0; rank < cfg.Threads; rank++ {
		w, err := workload.NewLocalWorker(rank, cfg, m.shared, m.logger, m.fileSet, workload.DefaultCapabilities(cfg))
		if err != nil {
			m.closeWorkers()
			return nil, err
		}
		m.workers = append(m.workers, w)
	}

	m.shared.SetStonewallHook(func() {
		for _, w := range m.workers {
			w.CaptureStonewallSnapshot()
		}
	})

	return m, nil
}

// PrepareThreads launches every worker's goroutine. It is idempotent and
// must be called once, before the first StartNextPhase.
func (m *Manager) PrepareThreads() {
	if m.prepared {
		return
	}
	m.prepared = true
	for _, w := range m.workers {
		m.wg.Add(1)
		go func(w *workload.LocalWorker) {
			defer m.wg.Done()
			w.Run(m.stopCh)
		}(w)
	}
}

// StartNextPhase generates a fresh bench ID (unless id is non-nil, which
// the remote protocol uses to keep the master and every service in
// lockstep on the same ID) and publishes (phase, id) to every worker via
// the shared state.
func (m *Manager) StartNextPhase(p bench.Phase, id *bench.BenchID) bench.BenchID {
	benchID := bench.NewBenchID()
	if id != nil {
		benchID = *id
	}
	m.phaseDeadline = time.Time{}
	if m.cfg.TimeLimitSeconds > 0 && p.IsDataPhase() {
		m.phaseDeadline = time.Now().Add(time.Duration(m.cfg.TimeLimitSeconds) * time.Second)
	}
	m.shared.StartNextPhase(p, benchID)
	return benchID
}

// CheckPhaseTimeLimit reports whether the current phase's configured time
// limit has elapsed. It has no side effect; callers that want the shared
// state and workers to stop must also call the shared state's
// SetPhaseTimeExpired (done internally by WaitForWorkersDone).
func (m *Manager) CheckPhaseTimeLimit() bool {
	return !m.phaseDeadline.IsZero() && time.Now().After(m.phaseDeadline)
}

// WaitForWorkersDone blocks until every worker actually reports done (with
// or without error), waking at pollInterval to check the phase time limit
// and the interrupt channel, matching spec.md §4.3/§4.4's timed-wait
// requirement. Once the time limit elapses or the manager is interrupted,
// it calls InterruptAndNotifyWorkers and keeps waiting for the done-count
// to actually reach NumWorkers before returning: a worker's Result() (its
// histogram, elapsed time, and counters) is only safe to read after the
// worker's own goroutine has finished writing them, so the partial result
// this returns is never read out from under a still-running worker.
func (m *Manager) WaitForWorkersDone() (phase.Snapshot, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	var resultErr error
	for {
		snap := m.shared.Snapshot()
		if snap.DoneCount+snap.DoneWithErrorCount == snap.NumWorkers {
			return snap, resultErr
		}
		if resultErr == nil {
			if m.CheckPhaseTimeLimit() {
				m.shared.SetPhaseTimeExpired()
				resultErr = &bench.TimeLimitExpiredError{LimitSeconds: m.cfg.TimeLimitSeconds}
				m.InterruptAndNotifyWorkers()
				continue
			}
			select {
			case <-m.stopCh:
				resultErr = &bench.UserInterruptError{}
			case <-ticker.C:
			}
			continue
		}
		<-ticker.C
	}
}

// LiveSnapshot returns the current phase/done-count state, the aggregated
// live counters across every worker, and the aggregated live rw-mix-read
// counters, safe to call while a phase is still in progress.
// internal/httpservice polls this for GET /status.
func (m *Manager) LiveSnapshot() (phase.Snapshot, liveops.Snapshot, liveops.Snapshot) {
	snap := m.shared.Snapshot()
	var live, liveRWMixRead []liveops.Snapshot
	for _, w := range m.workers {
		live = append(live, w.LiveCounters())
		liveRWMixRead = append(liveRWMixRead, w.LiveRWMixRead())
	}
	return snap, liveops.Add(live...), liveops.Add(liveRWMixRead...)
}

// InterruptAndNotifyWorkers signals every worker's cooperative cancellation
// check and unblocks any in-progress WaitForWorkersDone. It is idempotent.
func (m *Manager) InterruptAndNotifyWorkers() {
	m.interruptOnce.Do(func() { close(m.stopCh) })
}

// GetPhaseNumEntriesAndBytes aggregates every worker's live counters for
// the phase that just completed, alongside the merged latency histogram
// and the stonewall snapshot sum. It reports what the workers actually did,
// not the planned entry/byte totals for the phase. It also returns the first worker error observed, if any: the manager
// surfaces only one failure even if several workers failed concurrently.
func (m *Manager) GetPhaseNumEntriesAndBytes(p bench.Phase, snap phase.Snapshot) PhaseTotals {
	totals := PhaseTotals{
		Phase:        p,
		Latency:      &latency.Histogram{},
		FirstDoneCPU: snap.FirstDoneCPU,
		LastDoneCPU:  snap.LastDoneCPU,
	}
	var entries, stonewall, rwMixRead []liveops.Snapshot
	var maxElapsed uint64
	for _, w := range m.workers {
		r := w.Result()
		entries = append(entries, r.Entries)
		if r.StonewallTaken {
			stonewall = append(stonewall, r.StonewallEntries)
		} else {
			stonewall = append(stonewall, r.Entries)
		}
		rwMixRead = append(rwMixRead, r.RWMixRead)
		totals.Latency.Merge(r.Latency)
		if r.ElapsedUs > maxElapsed {
			maxElapsed = r.ElapsedUs
		}
		if totals.Err == nil && r.Err != nil {
			if _, ok := r.Err.(*bench.WorkerInterruptedError); !ok {
				totals.Err = r.Err
			}
		}
	}
	totals.Entries = liveops.Add(entries...)
	totals.StonewallEntries = liveops.Add(stonewall...)
	totals.RWMixRead = liveops.Add(rwMixRead...)
	totals.ElapsedUs = maxElapsed
	return totals
}

// Close stops every worker's goroutine (if not already interrupted), waits
// for them to actually exit, then closes their buffer pools, the shared
// FileSet, and the shared state's background broadcaster. Joining before
// closeWorkers matters: a worker goroutine still inside Run can be holding
// its buffer pool's slots, and SharedState.Close does not wake waiters
// synchronously.
func (m *Manager) Close() {
	m.InterruptAndNotifyWorkers()
	m.wg.Wait()
	m.closeWorkers()
	if m.fileSet != nil {
		m.fileSet.Close()
	}
	m.shared.Close()
}

func (m *Manager) closeWorkers() {
	for _, w := range m.workers {
		_ = w.Close()
	}
}
