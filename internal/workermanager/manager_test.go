package workermanager

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheEntropyCollective/storagebench/internal/bench"
	"github.com/TheEntropyCollective/storagebench/internal/config"
	"github.com/TheEntropyCollective/storagebench/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(&logging.Config{Level: logging.ErrorLevel, Format: logging.TextFormat, Output: os.Stderr})
}

func TestManagerRunsCreateDirsPhaseToCompletion(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Path = []string{dir}
	cfg.Threads = 3
	cfg.Dirs = 1
	cfg.Files = 1
	require.NoError(t, cfg.Validate())

	m, err := New(cfg, testLogger())
	require.NoError(t, err)
	defer m.Close()
	m.PrepareThreads()

	m.StartNextPhase(bench.PhaseCreateDirs, nil)
	snap, err := m.WaitForWorkersDone()
	require.NoError(t, err)
	assert.Equal(t, 3, snap.DoneCount)

	totals := m.GetPhaseNumEntriesAndBytes(bench.PhaseCreateDirs, snap)
	assert.NoError(t, totals.Err)
	assert.EqualValues(t, 3, totals.Entries.EntriesDone)
}

func TestManagerRespectsPhaseTimeLimit(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Path = []string{dir}
	cfg.Threads = 1
	cfg.Rand = true
	cfg.RandAmount = 1 << 30
	cfg.Size = 1 << 30
	cfg.Block = 4096
	cfg.TimeLimitSeconds = 1
	require.NoError(t, cfg.Validate())

	m, err := New(cfg, testLogger())
	require.NoError(t, err)
	defer m.Close()
	m.PrepareThreads()

	m.StartNextPhase(bench.PhaseCreateDirs, nil)
	_, err = m.WaitForWorkersDone()
	require.NoError(t, err)

	m.StartNextPhase(bench.PhaseCreateFiles, nil)
	start := time.Now()
	_, err = m.WaitForWorkersDone()
	elapsed := time.Since(start)
	require.Error(t, err)
	var tle *bench.TimeLimitExpiredError
	assert.ErrorAs(t, err, &tle)
	assert.Less(t, elapsed, 5*time.Second)
}

func TestManagerInterruptStopsWaitPromptly(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Path = []string{dir}
	cfg.Threads = 1
	cfg.Rand = true
	cfg.RandAmount = 1 << 30
	cfg.Size = 1 << 30
	cfg.Block = 4096
	require.NoError(t, cfg.Validate())

	m, err := New(cfg, testLogger())
	require.NoError(t, err)
	defer m.Close()
	m.PrepareThreads()

	m.StartNextPhase(bench.PhaseCreateDirs, nil)
	_, err = m.WaitForWorkersDone()
	require.NoError(t, err)

	m.StartNextPhase(bench.PhaseCreateFiles, nil)
	go func() {
		time.Sleep(20 * time.Millisecond)
		m.InterruptAndNotifyWorkers()
	}()
	start := time.Now()
	_, err = m.WaitForWorkersDone()
	elapsed := time.Since(start)
	require.Error(t, err)
	var uie *bench.UserInterruptError
	assert.ErrorAs(t, err, &uie)
	assert.Less(t, elapsed, 1*time.Second)
}
