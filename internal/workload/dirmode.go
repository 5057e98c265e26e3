package workload

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/TheEntropyCollective/storagebench/internal/bench"
	"github.com/TheEntropyCollective/storagebench/internal/iobuf"
)

// Directory mode lays out each rank's tree as
// <path>/r<rank>/d<dir>/f<file>, matching original_source's per-thread
// directory naming scheme (original_source/source/ThreadResults and the
// directory-tree helpers referenced by spec.md §3's "entry" glossary
// term). When more than one benchmark path is configured, a worker's
// per-rank directory is created under every path and its num_dirs
// directories are distributed round-robin across them (spec.md §4.2).

func (w *LocalWorker) rankDir(pathIdx int) string {
	return filepath.Join(w.cfg.Path[pathIdx], fmt.Sprintf("r%d", w.rank))
}

func (w *LocalWorker) dirPath(d int) string {
	pathIdx := d % len(w.cfg.Path)
	return filepath.Join(w.rankDir(pathIdx), fmt.Sprintf("d%d", d))
}

func (w *LocalWorker) filePath(d, f int) string {
	return filepath.Join(w.dirPath(d), fmt.Sprintf("f%d", f))
}

func (w *LocalWorker) runCreateDirs(stop <-chan struct{}) error {
	for i := range w.cfg.Path {
		if err := os.MkdirAll(w.rankDir(i), 0755); err != nil {
			return &bench.WorkerFailedError{Rank: w.rank, Path: w.rankDir(i), Cause: err}
		}
	}
	for d := 0; d < w.cfg.Dirs; d++ {
		if err := checkInterrupted(w.rank, stop); err != nil {
			return err
		}
		if err := os.MkdirAll(w.dirPath(d), 0755); err != nil {
			return &bench.WorkerFailedError{Rank: w.rank, Path: w.dirPath(d), Cause: err}
		}
		w.counters.AddEntries(1)
	}
	return nil
}

func (w *LocalWorker) runDeleteDirs(stop <-chan struct{}) error {
	for d := w.cfg.Dirs - 1; d >= 0; d-- {
		if err := checkInterrupted(w.rank, stop); err != nil {
			return err
		}
		if err := os.Remove(w.dirPath(d)); err != nil {
			if w.cfg.NoDelErr {
				continue
			}
			return &bench.WorkerFailedError{Rank: w.rank, Path: w.dirPath(d), Cause: err}
		}
		w.counters.AddEntries(1)
	}
	for i := range w.cfg.Path {
		if err := os.Remove(w.rankDir(i)); err != nil && !w.cfg.NoDelErr {
			return &bench.WorkerFailedError{Rank: w.rank, Path: w.rankDir(i), Cause: err}
		}
	}
	return nil
}

// runDirDataPhase walks every file in the worker's directory tree, opening
// each one and driving it through the same offset-generator-and-buffer-pool
// inner loop file mode uses, so the per-I/O strategy (integrity, refill,
// device staging) is identical in both modes.
func (w *LocalWorker) runDirDataPhase(p bench.Phase, stop <-chan struct{}) error {
	st := newStrategy(p, w.cfg, w.rwSeq, w.refillSeq, w.caps)
	write := p == bench.PhaseCreateFiles

	for d := 0; d < w.cfg.Dirs; d++ {
		for f := 0; f < w.cfg.Files; f++ {
			if err := checkInterrupted(w.rank, stop); err != nil {
				return err
			}
			path := w.filePath(d, f)
			flags := os.O_RDWR
			if w.cfg.Direct {
				flags |= directFlag()
			}
			if write {
				flags |= os.O_CREATE
			}
			file, err := os.OpenFile(path, flags, 0644)
			if err != nil {
				return &bench.WorkerFailedError{Rank: w.rank, Path: path, Cause: err}
			}
			if write && (w.cfg.Trunc || w.cfg.TruncToSize) {
				if err := file.Truncate(int64(w.cfg.Size)); err != nil {
					file.Close()
					return &bench.WorkerFailedError{Rank: w.rank, Path: path, Cause: err}
				}
			}
			if err := w.driveFile(file, path, int64(w.cfg.Size), write, st, stop); err != nil {
				file.Close()
				return err
			}
			file.Close()
			w.counters.AddEntries(1)
		}
	}
	return nil
}

func (w *LocalWorker) runStatFiles(stop <-chan struct{}) error {
	for d := 0; d < w.cfg.Dirs; d++ {
		for f := 0; f < w.cfg.Files; f++ {
			if err := checkInterrupted(w.rank, stop); err != nil {
				return err
			}
			path := w.filePath(d, f)
			if _, err := os.Stat(path); err != nil {
				return &bench.WorkerFailedError{Rank: w.rank, Path: path, Cause: err}
			}
			w.counters.AddEntries(1)
		}
	}
	return nil
}

func (w *LocalWorker) runDeleteFiles(stop <-chan struct{}) error {
	for d := 0; d < w.cfg.Dirs; d++ {
		for f := 0; f < w.cfg.Files; f++ {
			if err := checkInterrupted(w.rank, stop); err != nil {
				return err
			}
			path := w.filePath(d, f)
			if err := os.Remove(path); err != nil {
				if w.cfg.NoDelErr {
					continue
				}
				return &bench.WorkerFailedError{Rank: w.rank, Path: path, Cause: err}
			}
			w.counters.AddEntries(1)
		}
	}
	return nil
}

// driveFile submits the full offset-generator sequence for one open file in
// directory mode (one generator per file, covering the whole file),
// checking the interrupt channel before every I/O. File mode does not use
// it: runFileDataPhase has its own loop over the shared FileSet.
func (w *LocalWorker) driveFile(f interface {
	WriteAt([]byte, int64) (int, error)
	ReadAt([]byte, int64) (int, error)
}, path string, length int64, write bool, st *strategy, stop <-chan struct{}) error {
	gen, err := w.newGenerator(uint64(length), 0)
	if err != nil {
		return err
	}
	buf := w.bufPool.Host(0)
	for !gen.Exhausted() {
		if err := checkInterrupted(w.rank, stop); err != nil {
			return err
		}
		off := gen.NextOffset()
		size := gen.NextSubmitSize()
		doWrite := write
		if !write {
			doWrite = false
		} else if st.decideWrite != nil {
			doWrite = st.decideWrite()
		}

		start := time.Now()
		var opErr error
		if doWrite {
			if st.decideRefill() {
				w.rng.Read(buf[:size])
			}
			if st.integrityEnabled {
				iobuf.FillIntegrity(buf[:size], off, st.salt)
			}
			if opErr = st.stageRoundTrip(w.bufPool, 0, buf[:size]); opErr != nil {
				return &bench.WorkerFailedError{Rank: w.rank, Path: path, Cause: opErr}
			}
			n, werr := f.WriteAt(buf[:size], int64(off))
			if werr != nil {
				opErr = werr
			} else if uint64(n) != size {
				return &bench.WorkerFailedError{Rank: w.rank, Path: path, Expected: int64(size), Actual: int64(n)}
			}
		} else {
			n, rerr := f.ReadAt(buf[:size], int64(off))
			if rerr != nil {
				opErr = rerr
			} else if uint64(n) != size {
				return &bench.WorkerFailedError{Rank: w.rank, Path: path, Expected: int64(size), Actual: int64(n)}
			} else {
				if err := st.stageRoundTrip(w.bufPool, 0, buf[:size]); err != nil {
					return &bench.WorkerFailedError{Rank: w.rank, Path: path, Cause: err}
				}
				if st.integrityEnabled {
					res := iobuf.VerifyIntegrity(buf[:size], off, st.salt)
					if !res.OK {
						return &bench.WorkerFailedError{Rank: w.rank, Path: path, Cause: fmt.Errorf("integrity mismatch at offset %d: expected %d, got %d", res.MismatchOffset, res.Expected, res.Actual)}
					}
				}
			}
		}
		if opErr != nil {
			return &bench.WorkerFailedError{Rank: w.rank, Path: path, Cause: opErr}
		}
		elapsedUs := uint64(time.Since(start).Microseconds())
		w.hist.Add(elapsedUs)
		w.counters.AddBytes(int64(size))
		w.counters.AddIops(1)
		if write && !doWrite {
			// rw-mix (spec.md §4.2) picked a read for this block despite
			// create-files being the active phase.
			w.rwMixRead.AddBytes(int64(size))
			w.rwMixRead.AddIops(1)
		}
		gen.AddBytesSubmitted(size)
	}
	return nil
}
