// Package cpuutil provides the CPU-utilization snapshots the phase shared
// state records at first-done and last-done, replacing the original's
// hand-rolled /proc/stat delta sampler (original_source/source/CPUUtil.cpp)
// with the idiomatic Go equivalent already present in the retrieval pack.
package cpuutil

import (
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
)

// Sampler snapshots system-wide CPU utilization as an integer percentage
// (0-100), matching the bench-result/status JSON's "stonewall-cpu-util"
// and "last-cpu-util" fields.
type Sampler struct {
	interval time.Duration
}

// NewSampler returns a Sampler that measures utilization over the given
// interval. A zero interval takes an instantaneous (non-blocking) sample
// relative to the last call, which is what each workload.LocalWorker uses
// when it reports done, so sampling never blocks a worker.
func NewSampler(interval time.Duration) *Sampler {
	return &Sampler{interval: interval}
}

// Snapshot returns the current system-wide CPU utilization as 0-100.
func (s *Sampler) Snapshot() (int, error) {
	percents, err := cpu.Percent(s.interval, false)
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, nil
	}
	pct := percents[0]
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return int(pct + 0.5), nil
}
