package coordinator

import (
	"os"

	"github.com/TheEntropyCollective/storagebench/internal/bench"
	"github.com/TheEntropyCollective/storagebench/internal/logging"
	"golang.org/x/sys/unix"
)

// applySystemPhase performs the process-wide (not per-worker) sync or
// drop-caches step between phases, per spec.md §3's phase list. Dropping
// caches requires root and a Linux host; when it cannot be done, this logs
// a warning and continues rather than failing the run, matching
// original_source's documented behavior of treating a drop-caches failure
// as non-fatal.
func applySystemPhase(p bench.Phase, logger *logging.Logger) {
	switch p {
	case bench.PhaseSync:
		unix.Sync()
	case bench.PhaseDropCaches:
		if err := dropCaches(); err != nil {
			logger.Warn("drop-caches failed, continuing", map[string]interface{}{"error": err.Error()})
		}
	}
}

// dropCaches writes "3" to /proc/sys/vm/drop_caches, Linux's standard
// free-pagecache-dentries-inodes request.
func dropCaches() error {
	f, err := os.OpenFile("/proc/sys/vm/drop_caches", os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString("3\n")
	return err
}
