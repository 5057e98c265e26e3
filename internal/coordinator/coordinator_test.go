package coordinator

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheEntropyCollective/storagebench/internal/config"
	"github.com/TheEntropyCollective/storagebench/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(&logging.Config{Level: logging.ErrorLevel, Format: logging.TextFormat, Output: os.Stderr})
}

func TestCoordinatorRunsLocalDirectoryWorkload(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Path = []string{dir}
	cfg.Threads = 2
	cfg.Dirs = 2
	cfg.Files = 2
	cfg.Size = 4096
	cfg.Block = 4096

	co, err := New(cfg, testLogger())
	require.NoError(t, err)
	defer co.Close()

	report, err := co.Run()
	require.NoError(t, err)
	require.NotEmpty(t, report.Phases)

	var buf bytes.Buffer
	RenderTable(&buf, report)
	assert.Contains(t, buf.String(), "mkdirs")
	assert.Contains(t, buf.String(), "write")
	assert.Contains(t, buf.String(), "read")
}

func TestExitCodeMapping(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
}
