package workload

import (
	"github.com/TheEntropyCollective/storagebench/internal/offsetgen"
)

// newGenerator builds the offset generator for one worker's range: length
// bytes starting at baseOffset, honoring cfg.Rand/RandAlign and the
// per-dataset-thread share of cfg.RandAmount, per spec.md §4.1's selection
// table (sequential / random unaligned / random block-aligned).
func (w *LocalWorker) newGenerator(length, baseOffset uint64) (offsetgen.Generator, error) {
	if !w.cfg.Rand {
		return offsetgen.NewSequential(length, baseOffset, w.cfg.Block)
	}
	perThread := w.cfg.RandAmount / uint64(w.cfg.DatasetThreads)
	if w.cfg.RandAlign {
		return offsetgen.NewRandomAligned(perThread, w.rng, length, baseOffset, w.cfg.Block)
	}
	return offsetgen.NewRandomUnaligned(perThread, w.rng, length, baseOffset, w.cfg.Block)
}
