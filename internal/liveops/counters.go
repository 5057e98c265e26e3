// Package liveops implements the per-worker atomic live-ops counters:
// entries done, bytes done, and I/O ops done. They are updated from the
// hot I/O loop without locking and are composable across workers by plain
// addition.
package liveops

import "sync/atomic"

// Counters is a triple of atomic 64-bit counters. The zero value is ready
// to use. Values are monotonically non-decreasing within a phase; only
// Reset (called by the worker manager between phases) may lower them.
type Counters struct {
	entriesDone int64
	bytesDone   int64
	iopsDone    int64
}

// Snapshot is a non-atomic point-in-time copy of a Counters triple, used
// for stonewall snapshots and for rendering.
type Snapshot struct {
	EntriesDone int64
	BytesDone   int64
	IopsDone    int64
}

func (c *Counters) AddEntries(n int64) { atomic.AddInt64(&c.entriesDone, n) }
func (c *Counters) AddBytes(n int64)   { atomic.AddInt64(&c.bytesDone, n) }
func (c *Counters) AddIops(n int64)    { atomic.AddInt64(&c.iopsDone, n) }

// Get returns a consistent-enough snapshot for live progress reporting.
// The three loads are not taken atomically as a group (matching the
// source's plain 64-bit loads); this is acceptable for monitoring and
// final aggregation happens only after the phase is known complete.
func (c *Counters) Get() Snapshot {
	return Snapshot{
		EntriesDone: atomic.LoadInt64(&c.entriesDone),
		BytesDone:   atomic.LoadInt64(&c.bytesDone),
		IopsDone:    atomic.LoadInt64(&c.iopsDone),
	}
}

// Reset zeroes all three counters. Only the worker manager calls this,
// between phases.
func (c *Counters) Reset() {
	atomic.StoreInt64(&c.entriesDone, 0)
	atomic.StoreInt64(&c.bytesDone, 0)
	atomic.StoreInt64(&c.iopsDone, 0)
}

// Add returns a new Snapshot equal to the element-wise sum of snapshots,
// used by the coordinator to aggregate live counters across workers.
func Add(snapshots ...Snapshot) Snapshot {
	var total Snapshot
	for _, s := range snapshots {
		total.EntriesDone += s.EntriesDone
		total.BytesDone += s.BytesDone
		total.IopsDone += s.IopsDone
	}
	return total
}
