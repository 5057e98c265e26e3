package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFilteringSuppressesLowerPriority(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: WarnLevel, Format: TextFormat, Output: &buf})
	l.Info("should not appear", nil)
	l.Warn("should appear", nil)
	out := buf.String()
	assert.NotContains(t, out, "should not appear")
	assert.Contains(t, out, "should appear")
}

func TestJSONFormatEmitsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: DebugLevel, Format: JSONFormat, Output: &buf, Component: "workload"})
	l.Info("phase started", map[string]interface{}{"rank": 2})
	out := buf.String()
	assert.True(t, strings.Contains(out, `"component":"workload"`))
	assert.True(t, strings.Contains(out, `"rank"`))
}

func TestParseLogLevel(t *testing.T) {
	lvl, err := ParseLogLevel("WARN")
	assert.NoError(t, err)
	assert.Equal(t, WarnLevel, lvl)

	_, err = ParseLogLevel("bogus")
	assert.Error(t, err)
}
