// Package coordinator implements the top-level phase sequencer: it walks
// the configured phase list, drives either a local worker manager or a
// pool of remote service connections through each one, aggregates their
// totals, and renders the per-phase result table (spec.md §3/§4.6/§7).
package coordinator

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/TheEntropyCollective/storagebench/internal/bench"
	"github.com/TheEntropyCollective/storagebench/internal/config"
	"github.com/TheEntropyCollective/storagebench/internal/latency"
	"github.com/TheEntropyCollective/storagebench/internal/liveops"
	"github.com/TheEntropyCollective/storagebench/internal/logging"
	"github.com/TheEntropyCollective/storagebench/internal/remoteworker"
	"github.com/TheEntropyCollective/storagebench/internal/unittk"
	"github.com/TheEntropyCollective/storagebench/internal/workermanager"
)

// PhaseReport is one phase's aggregated result, ready for rendering.
type PhaseReport struct {
	Phase            bench.Phase
	Entries          liveops.Snapshot
	StonewallEntries liveops.Snapshot
	RWMixRead        liveops.Snapshot
	Latency          *latency.Histogram
	ElapsedUs        uint64
	FirstDoneCPU     int
	LastDoneCPU      int
	// TimeLimitReached is set when this phase ended because its configured
	// time limit elapsed rather than every worker finishing its full entry
	// count. Run stops the phase loop after such a phase: its counters are a
	// valid, non-fatal partial result, but later phases (spec.md §4.4) would
	// run against a dataset the time-limited phase never finished building
	// or tearing down.
	TimeLimitReached bool
	Err              error
}

// Report is the full run's result: one PhaseReport per phase actually
// executed (a time limit or interrupt may truncate the list short of
// cfg.Phases()).
type Report struct {
	Phases []PhaseReport
}

// Coordinator drives one benchmark run, local or remote, to completion.
type Coordinator struct {
	cfg    *config.Config
	logger *logging.Logger

	local   *workermanager.Manager
	remotes []*remoteworker.Client

	interruptOnce sync.Once
	interrupted   chan struct{}
}

// New validates cfg and prepares either a local worker manager (cfg.Hosts
// empty) or one remoteworker.Client per configured host.
func New(cfg *config.Config, logger *logging.Logger) (*Coordinator, error) {
	requestedBlock := cfg.Block
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Coordinator{cfg: cfg, logger: logger.WithComponent("coordinator"), interrupted: make(chan struct{})}
	if cfg.Size > 0 && requestedBlock > cfg.Size {
		c.logger.Warn("block size exceeds file size; falling back to block = size", map[string]interface{}{
			"requested_block": requestedBlock,
			"size":            cfg.Size,
		})
	}

	if len(cfg.Hosts) == 0 {
		mgr, err := workermanager.New(cfg, logger)
		if err != nil {
			return nil, err
		}
		mgr.PrepareThreads()
		c.local = mgr
		return c, nil
	}

	for _, host := range cfg.Hosts {
		client := remoteworker.NewClient(host)
		if err := client.CheckProtocolVersion(); err != nil {
			return nil, err
		}
		if err := client.PreparePhase(cfg); err != nil {
			return nil, err
		}
		c.remotes = append(c.remotes, client)
	}
	return c, nil
}

// Close releases the local worker manager, if any. Remote connections need
// no explicit close beyond the final /interruptphase?quit the caller sends.
func (c *Coordinator) Close() {
	if c.local != nil {
		c.local.Close()
	}
}

// WatchInterrupts installs a SIGINT/SIGTERM handler that interrupts the
// run in progress. It returns a function to stop watching.
func (c *Coordinator) WatchInterrupts() func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			c.Interrupt()
		case <-c.interrupted:
		}
	}()
	return func() { signal.Stop(sigCh); close(sigCh) }
}

// Interrupt stops every local worker and asks every remote service to stop
// its current phase, without terminating the service processes.
func (c *Coordinator) Interrupt() {
	c.interruptOnce.Do(func() {
		close(c.interrupted)
		if c.local != nil {
			c.local.InterruptAndNotifyWorkers()
		}
		for _, r := range c.remotes {
			_ = r.InterruptPhase(false)
		}
	})
}

// Run drives cfg.Phases() to completion (or until an interrupt or a fatal
// worker error), applying sync/drop-caches phases directly and aggregating
// every data/metadata phase's totals across the local manager or every
// remote host.
func (c *Coordinator) Run() (Report, error) {
	var report Report
	for _, p := range c.cfg.Phases() {
		select {
		case <-c.interrupted:
			return report, &bench.UserInterruptError{}
		default:
		}

		if p == bench.PhaseSync || p == bench.PhaseDropCaches {
			applySystemPhase(p, c.logger)
			continue
		}

		pr, err := c.runPhase(p)
		report.Phases = append(report.Phases, pr)
		if err != nil {
			return report, err
		}
		if pr.Err != nil {
			return report, pr.Err
		}
		if pr.TimeLimitReached {
			break
		}
	}
	return report, nil
}

func (c *Coordinator) runPhase(p bench.Phase) (PhaseReport, error) {
	if c.local != nil {
		return c.runLocalPhase(p)
	}
	return c.runRemotePhase(p)
}

func (c *Coordinator) runLocalPhase(p bench.Phase) (PhaseReport, error) {
	c.local.StartNextPhase(p, nil)
	snap, err := c.local.WaitForWorkersDone()
	totals := c.local.GetPhaseNumEntriesAndBytes(p, snap)
	pr := PhaseReport{
		Phase:            p,
		Entries:          totals.Entries,
		StonewallEntries: totals.StonewallEntries,
		RWMixRead:        totals.RWMixRead,
		Latency:          totals.Latency,
		ElapsedUs:        totals.ElapsedUs,
		FirstDoneCPU:     totals.FirstDoneCPU,
		LastDoneCPU:      totals.LastDoneCPU,
		Err:              totals.Err,
	}
	if err != nil {
		if _, ok := err.(*bench.TimeLimitExpiredError); ok {
			pr.TimeLimitReached = true
			return pr, nil // partial counters are a valid, non-fatal result
		}
		if _, ok := err.(*bench.UserInterruptError); ok {
			return pr, err
		}
	}
	return pr, nil
}

// runRemotePhase starts the phase on every host with a single shared bench
// ID (so every service advances in lockstep), polls each host's /status
// until done, then fetches /benchresult and aggregates across hosts.
func (c *Coordinator) runRemotePhase(p bench.Phase) (PhaseReport, error) {
	id := bench.NewBenchID()
	for _, r := range c.remotes {
		if err := r.StartPhase(p, id); err != nil {
			return PhaseReport{Phase: p}, err
		}
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
pollLoop:
	for {
		allDone := true
		for _, r := range c.remotes {
			st, err := r.Status()
			if err != nil {
				return PhaseReport{Phase: p}, err
			}
			if st.NumWorkersDone+st.NumWorkersDoneErr < st.NumWorkers {
				allDone = false
			}
		}
		if allDone {
			break pollLoop
		}
		select {
		case <-c.interrupted:
			for _, r := range c.remotes {
				_ = r.InterruptPhase(false)
			}
			break pollLoop
		case <-ticker.C:
		}
	}

	pr := PhaseReport{Phase: p, Latency: &latency.Histogram{}}
	var entries, stonewall, rwMixRead []liveops.Snapshot
	for _, r := range c.remotes {
		res, err := r.BenchResult()
		if err != nil {
			if pr.Err == nil {
				pr.Err = err
			}
			continue
		}
		entries = append(entries, liveops.Snapshot{EntriesDone: res.EntriesDone, BytesDone: res.BytesDone, IopsDone: res.IopsDone})
		stonewall = append(stonewall, liveops.Snapshot{EntriesDone: res.StonewallEntries, BytesDone: res.StonewallBytes, IopsDone: res.StonewallIops})
		rwMixRead = append(rwMixRead, liveops.Snapshot{BytesDone: res.RWMixReadBytesDone, IopsDone: res.RWMixReadIopsDone})
		if h, err := latency.FromSerialized(res.Latency); err == nil {
			pr.Latency.Merge(h)
		}
		if res.ElapsedUs > pr.ElapsedUs {
			pr.ElapsedUs = res.ElapsedUs
		}
	}
	pr.Entries = liveops.Add(entries...)
	pr.StonewallEntries = liveops.Add(stonewall...)
	pr.RWMixRead = liveops.Add(rwMixRead...)
	return pr, nil
}

// RenderTable writes a human-readable per-phase summary table to w,
// matching the throughput/IOPS/latency columns spec.md §7 describes.
func RenderTable(w io.Writer, report Report) {
	fmt.Fprintf(w, "%-10s %10s %12s %10s %8s %8s\n", "phase", "entries", "bytes", "iops", "avg-us", "p99-us")
	for _, pr := range report.Phases {
		throughputBytes := unittk.FormatBytes(uint64(pr.Entries.BytesDone))
		avg := 0.0
		p99 := uint64(0)
		if pr.Latency != nil {
			avg = pr.Latency.Avg()
			p99 = pr.Latency.Percentile(99)
		}
		status := "ok"
		if pr.Err != nil {
			status = "FAILED: " + pr.Err.Error()
		}
		fmt.Fprintf(w, "%-10s %10d %12s %10d %8.1f %8d  %s\n",
			pr.Phase.String(), pr.Entries.EntriesDone, throughputBytes, pr.Entries.IopsDone, avg, p99, status)
	}
}

// ExitCode maps a Run error to the process exit status spec.md §7 defines:
// 0 on success, 1 on a worker/config failure, 130 on user interrupt.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch err.(type) {
	case *bench.UserInterruptError:
		return 130
	default:
		return 1
	}
}
