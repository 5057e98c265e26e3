package httpservice

import (
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheEntropyCollective/storagebench/internal/bench"
	"github.com/TheEntropyCollective/storagebench/internal/config"
	"github.com/TheEntropyCollective/storagebench/internal/logging"
	"github.com/TheEntropyCollective/storagebench/internal/remoteworker"
)

func testLogger() *logging.Logger {
	return logging.New(&logging.Config{Level: logging.ErrorLevel, Format: logging.TextFormat, Output: os.Stderr})
}

func TestServiceFullPhaseProtocol(t *testing.T) {
	svc := New(testLogger())
	defer svc.Close()
	srv := httptest.NewServer(svc.Router())
	defer srv.Close()

	c := remoteworker.NewClient(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, c.CheckProtocolVersion())

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Path = []string{dir}
	cfg.Threads = 2
	cfg.Dirs = 1
	cfg.Files = 1

	require.NoError(t, c.PreparePhase(cfg))

	id := bench.NewBenchID()
	require.NoError(t, c.StartPhase(bench.PhaseCreateDirs, id))

	deadline := time.After(2 * time.Second)
	for {
		st, err := c.Status()
		require.NoError(t, err)
		if st.NumWorkersDone+st.NumWorkersDoneErr == st.NumWorkers {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for phase completion")
		case <-time.After(10 * time.Millisecond):
		}
	}

	res, err := c.BenchResult()
	require.NoError(t, err)
	assert.Equal(t, "mkdirs", res.Phase)
	assert.EqualValues(t, 2, res.EntriesDone)
}

func TestServiceInterruptPhaseStopsWorkers(t *testing.T) {
	svc := New(testLogger())
	defer svc.Close()
	srv := httptest.NewServer(svc.Router())
	defer srv.Close()

	c := remoteworker.NewClient(strings.TrimPrefix(srv.URL, "http://"))

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Path = []string{dir}
	cfg.Threads = 1
	cfg.Rand = true
	cfg.RandAmount = 1 << 30
	cfg.Size = 1 << 30
	cfg.Block = 4096

	require.NoError(t, c.PreparePhase(cfg))
	require.NoError(t, c.StartPhase(bench.PhaseCreateDirs, bench.NewBenchID()))
	_, err := c.BenchResult()
	require.NoError(t, err)
	require.NoError(t, c.StartPhase(bench.PhaseCreateFiles, bench.NewBenchID()))

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, c.InterruptPhase(false))

	deadline := time.After(2 * time.Second)
	for {
		res, err := c.BenchResult()
		if err == nil {
			assert.Equal(t, "write", res.Phase)
			return
		}
		select {
		case <-deadline:
			t.Fatalf("interrupt did not converge: %v", err)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
