package workload

import (
	"fmt"
	"time"

	"github.com/TheEntropyCollective/storagebench/internal/bench"
	"github.com/TheEntropyCollective/storagebench/internal/iobuf"
)

// runFileDataPhase drives create-files/read-files in file/bdev mode, where
// every worker shares the manager-owned FileSet read-only. Each rank claims
// a contiguous sub-range of the first configured path sized
// size/datasetthreads (spec.md §3's "worker claims a contiguous byte range"
// data-flow step); when more than one path is configured, successive I/Os
// round-robin across all configured paths, the first included
// (submitted-count modulo num-files), so a multi-device run spreads its
// range evenly.
func (w *LocalWorker) runFileDataPhase(p bench.Phase, stop <-chan struct{}) error {
	numFiles := len(w.fileSet.Files)
	primary := w.fileSet.Sizes[0]
	rangeLen := uint64(primary) / uint64(w.cfg.DatasetThreads)
	baseOffset := uint64(w.rank) * rangeLen

	st := newStrategy(p, w.cfg, w.rwSeq, w.refillSeq, w.caps)
	gen, err := w.newGenerator(rangeLen, baseOffset)
	if err != nil {
		return err
	}

	if st.async {
		return w.runFileDataPhaseAsync(gen, numFiles, p == bench.PhaseCreateFiles, st, stop)
	}

	buf := w.bufPool.Host(0)
	fileIdx := 0
	for !gen.Exhausted() {
		if err := checkInterrupted(w.rank, stop); err != nil {
			return err
		}
		off := gen.NextOffset()
		size := gen.NextSubmitSize()
		f := w.fileSet.Files[fileIdx%numFiles]
		fileIdx++

		doWrite := p == bench.PhaseCreateFiles
		if doWrite && st.decideWrite != nil {
			doWrite = st.decideWrite()
		}

		start := time.Now()
		if doWrite {
			if st.decideRefill() {
				w.rng.Read(buf[:size])
			}
			if st.integrityEnabled {
				iobuf.FillIntegrity(buf[:size], off, st.salt)
			}
			if err := st.stageRoundTrip(w.bufPool, 0, buf[:size]); err != nil {
				return &bench.WorkerFailedError{Rank: w.rank, Path: f.Name(), Cause: err}
			}
			n, werr := f.WriteAt(buf[:size], int64(off))
			if werr != nil {
				return &bench.WorkerFailedError{Rank: w.rank, Path: f.Name(), Cause: werr}
			}
			if uint64(n) != size {
				return &bench.WorkerFailedError{Rank: w.rank, Path: f.Name(), Expected: int64(size), Actual: int64(n)}
			}
		} else {
			n, rerr := f.ReadAt(buf[:size], int64(off))
			if rerr != nil {
				return &bench.WorkerFailedError{Rank: w.rank, Path: f.Name(), Cause: rerr}
			}
			if uint64(n) != size {
				return &bench.WorkerFailedError{Rank: w.rank, Path: f.Name(), Expected: int64(size), Actual: int64(n)}
			}
			if err := st.stageRoundTrip(w.bufPool, 0, buf[:size]); err != nil {
				return &bench.WorkerFailedError{Rank: w.rank, Path: f.Name(), Cause: err}
			}
			if st.integrityEnabled {
				res := iobuf.VerifyIntegrity(buf[:size], off, st.salt)
				if !res.OK {
					return &bench.WorkerFailedError{Rank: w.rank, Path: f.Name(), Cause: fmt.Errorf("integrity mismatch at offset %d: expected %d, got %d", res.MismatchOffset, res.Expected, res.Actual)}
				}
			}
		}
		w.hist.Add(uint64(time.Since(start).Microseconds()))
		w.counters.AddBytes(int64(size))
		w.counters.AddIops(1)
		if p == bench.PhaseCreateFiles && !doWrite {
			w.rwMixRead.AddBytes(int64(size))
			w.rwMixRead.AddIops(1)
		}
		gen.AddBytesSubmitted(size)
	}
	w.counters.AddEntries(1)
	return nil
}
