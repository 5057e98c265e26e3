package workload

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheEntropyCollective/storagebench/internal/bench"
	"github.com/TheEntropyCollective/storagebench/internal/config"
	"github.com/TheEntropyCollective/storagebench/internal/logging"
	"github.com/TheEntropyCollective/storagebench/internal/phase"
)

func testLogger() *logging.Logger {
	return logging.New(&logging.Config{Level: logging.ErrorLevel, Format: logging.TextFormat, Output: os.Stderr})
}

func runOnePhase(t *testing.T, w *LocalWorker, shared *phase.SharedState, p bench.Phase) Result {
	t.Helper()
	stop := make(chan struct{})
	go w.Run(stop)
	shared.StartNextPhase(p, bench.NewBenchID())
	deadline := time.After(2 * time.Second)
	for {
		snap := shared.Snapshot()
		if snap.DoneCount+snap.DoneWithErrorCount == snap.NumWorkers {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for worker to finish phase")
		case <-time.After(5 * time.Millisecond):
		}
	}
	close(stop)
	return w.Result()
}

func TestDirectoryModeWriteThenReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Path = []string{dir}
	cfg.Dirs = 2
	cfg.Files = 2
	cfg.Size = 4096
	cfg.Block = 1024
	cfg.Verify = 777
	require.NoError(t, cfg.Validate())

	shared := phase.New(1, 50*time.Millisecond)
	defer shared.Close()

	w, err := NewLocalWorker(0, cfg, shared, testLogger(), nil, DefaultCapabilities(cfg))
	require.NoError(t, err)
	defer w.Close()

	res := runOnePhase(t, w, shared, bench.PhaseCreateDirs)
	assert.NoError(t, res.Err)
	assert.EqualValues(t, 2, res.Entries.EntriesDone)

	res = runOnePhase(t, w, shared, bench.PhaseCreateFiles)
	assert.NoError(t, res.Err)
	assert.EqualValues(t, 4, res.Entries.EntriesDone)
	assert.EqualValues(t, 4*4096, res.Entries.BytesDone)

	res = runOnePhase(t, w, shared, bench.PhaseReadFiles)
	assert.NoError(t, res.Err)
	assert.EqualValues(t, 4*4096, res.Entries.BytesDone)

	res = runOnePhase(t, w, shared, bench.PhaseStatFiles)
	assert.NoError(t, res.Err)

	res = runOnePhase(t, w, shared, bench.PhaseDeleteFiles)
	assert.NoError(t, res.Err)

	res = runOnePhase(t, w, shared, bench.PhaseDeleteDirs)
	assert.NoError(t, res.Err)
}

func TestDirectoryModeVerifyDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Path = []string{dir}
	cfg.Dirs = 1
	cfg.Files = 1
	cfg.Size = 1024
	cfg.Block = 1024
	cfg.Verify = 42
	require.NoError(t, cfg.Validate())

	shared := phase.New(1, 50*time.Millisecond)
	defer shared.Close()
	w, err := NewLocalWorker(0, cfg, shared, testLogger(), nil, DefaultCapabilities(cfg))
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.runCreateDirs(nil))

	res := runOnePhase(t, w, shared, bench.PhaseCreateFiles)
	require.NoError(t, res.Err)

	// Corrupt the file directly, then verify the read phase catches it.
	path := w.filePath(0, 0)
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{0xFF, 0xFF, 0xFF, 0xFF}, 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	res = runOnePhase(t, w, shared, bench.PhaseReadFiles)
	require.Error(t, res.Err)
	var wfe *bench.WorkerFailedError
	assert.ErrorAs(t, res.Err, &wfe)
}

func TestFileModeEachWorkerClaimsDisjointRange(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/shared.bin"
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(8192))
	require.NoError(t, f.Close())

	cfg := config.DefaultConfig()
	cfg.Path = []string{path}
	cfg.Threads = 2
	cfg.DatasetThreads = 2
	cfg.Size = 8192
	cfg.Block = 1024
	cfg.PathTypes = []config.PathType{config.PathTypeFile}
	require.NoError(t, cfg.Validate())

	fs, err := OpenFileSet(cfg)
	require.NoError(t, err)
	defer fs.Close()

	shared := phase.New(2, 50*time.Millisecond)
	defer shared.Close()

	w0, err := NewLocalWorker(0, cfg, shared, testLogger(), fs, DefaultCapabilities(cfg))
	require.NoError(t, err)
	defer w0.Close()
	w1, err := NewLocalWorker(1, cfg, shared, testLogger(), fs, DefaultCapabilities(cfg))
	require.NoError(t, err)
	defer w1.Close()

	stop := make(chan struct{})
	go w0.Run(stop)
	go w1.Run(stop)
	shared.StartNextPhase(bench.PhaseCreateFiles, bench.NewBenchID())
	deadline := time.After(2 * time.Second)
	for {
		snap := shared.Snapshot()
		if snap.DoneCount+snap.DoneWithErrorCount == snap.NumWorkers {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out")
		case <-time.After(5 * time.Millisecond):
		}
	}
	close(stop)

	r0 := w0.Result()
	r1 := w1.Result()
	assert.NoError(t, r0.Err)
	assert.NoError(t, r1.Err)
	assert.EqualValues(t, 4096, r0.Entries.BytesDone)
	assert.EqualValues(t, 4096, r1.Entries.BytesDone)
}
