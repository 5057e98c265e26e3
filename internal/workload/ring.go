package workload

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/TheEntropyCollective/storagebench/internal/bench"
	"github.com/TheEntropyCollective/storagebench/internal/iobuf"
	"github.com/TheEntropyCollective/storagebench/internal/offsetgen"
)

// The standard library has no io_uring/libaio binding, and this module
// never invokes the Go toolchain to validate a cgo one, so the async inner
// loop (spec.md's Design Notes, "Async completion loop") is implemented as
// a bounded pool of goroutines sharing the worker's io-depth buffer slots:
// at most io-depth I/Os are ever outstanding at once, each completion is
// collected off a channel exactly the way a real ring's completion queue
// would be drained, and the buffer slot is only reused once its prior I/O
// has completed.

// ringJob carries one submission to a ring worker goroutine. Each goroutine
// owns a fixed buffer slot for its lifetime (assigned at spawn), so jobs
// need not and do not specify which slot to use; the channel hand-off
// itself is what selects a free slot.
type ringJob struct {
	off      uint64
	size     uint64
	write    bool
	rwMixHit bool // true when baseWrite was true but the rw-mix policy picked a read
	file     *os.File
	path     string
}

type ringCompletion struct {
	job       ringJob
	n         int
	err       error
	elapsedUs uint64
}

func (w *LocalWorker) runFileDataPhaseAsync(gen offsetgen.Generator, numFiles int, baseWrite bool, st *strategy, stop <-chan struct{}) error {
	depth := w.bufPool.Depth()
	jobs := make(chan ringJob, depth)
	completions := make(chan ringCompletion, depth)
	done := make(chan struct{})
	defer close(done)

	// Each ring slot gets its own RNG: st.decideRefill/decideWrite already
	// use an atomically-guarded shared sequencer, but math/rand.Rand itself
	// is not safe for concurrent use, and every slot's goroutine runs
	// concurrently with the others belonging to this worker.
	for slot := 0; slot < depth; slot++ {
		slotRng := rand.New(rand.NewSource(int64(w.rank)*997 + int64(slot) + 1))
		go w.ringWorker(slot, slotRng, jobs, completions, st, done)
	}

	outstanding := 0
	fileIdx := 0
	var firstErr error

	submitNext := func() bool {
		if gen.Exhausted() || firstErr != nil {
			return false
		}
		off := gen.NextOffset()
		size := gen.NextSubmitSize()
		gen.AddBytesSubmitted(size)
		f := w.fileSet.Files[fileIdx%numFiles]
		fileIdx++
		write := baseWrite
		if baseWrite && st.decideWrite != nil {
			write = st.decideWrite()
		}
		jobs <- ringJob{off: off, size: size, write: write, rwMixHit: baseWrite && !write, file: f, path: f.Name()}
		return true
	}

	for outstanding < depth {
		select {
		case <-stop:
			return &bench.WorkerInterruptedError{Rank: w.rank}
		default:
		}
		if !submitNext() {
			break
		}
		outstanding++
	}

	for outstanding > 0 {
		select {
		case <-stop:
			return &bench.WorkerInterruptedError{Rank: w.rank}
		case c := <-completions:
			outstanding--
			if c.err != nil {
				if firstErr == nil {
					firstErr = &bench.WorkerFailedError{Rank: w.rank, Path: c.job.path, Cause: c.err}
				}
				continue
			}
			if uint64(c.n) != c.job.size {
				if firstErr == nil {
					firstErr = &bench.WorkerFailedError{Rank: w.rank, Path: c.job.path, Expected: int64(c.job.size), Actual: int64(c.n)}
				}
				continue
			}
			w.hist.Add(c.elapsedUs)
			w.counters.AddBytes(int64(c.job.size))
			w.counters.AddIops(1)
			if c.job.rwMixHit {
				w.rwMixRead.AddBytes(int64(c.job.size))
				w.rwMixRead.AddIops(1)
			}
			if submitNext() {
				outstanding++
			}
		}
	}

	if firstErr != nil {
		return firstErr
	}
	w.counters.AddEntries(1)
	return nil
}

func (w *LocalWorker) ringWorker(slot int, rng *rand.Rand, jobs <-chan ringJob, completions chan<- ringCompletion, st *strategy, done <-chan struct{}) {
	buf := w.bufPool.Host(slot)
	for {
		select {
		case <-done:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			start := time.Now()
			var n int
			var err error
			if j.write {
				if st.decideRefill() {
					rng.Read(buf[:j.size])
				}
				if st.integrityEnabled {
					iobuf.FillIntegrity(buf[:j.size], j.off, st.salt)
				}
				err = st.stageRoundTrip(w.bufPool, slot, buf[:j.size])
				if err == nil {
					n, err = j.file.WriteAt(buf[:j.size], int64(j.off))
				}
			} else {
				n, err = j.file.ReadAt(buf[:j.size], int64(j.off))
				if err == nil {
					err = st.stageRoundTrip(w.bufPool, slot, buf[:j.size])
				}
				if err == nil && st.integrityEnabled {
					res := iobuf.VerifyIntegrity(buf[:j.size], j.off, st.salt)
					if !res.OK {
						err = fmt.Errorf("integrity mismatch at offset %d: expected %d, got %d", res.MismatchOffset, res.Expected, res.Actual)
					}
				}
			}
			completions <- ringCompletion{job: j, n: n, err: err, elapsedUs: uint64(time.Since(start).Microseconds())}
		}
	}
}
