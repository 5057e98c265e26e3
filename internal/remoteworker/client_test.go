package remoteworker

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheEntropyCollective/storagebench/internal/bench"
)

func TestCheckProtocolVersionMatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ProtocolVersionResponse{ProtocolVersion: ProtocolVersion})
	}))
	defer srv.Close()

	c := NewClient(strings.TrimPrefix(srv.URL, "http://"))
	assert.NoError(t, c.CheckProtocolVersion())
}

func TestCheckProtocolVersionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ProtocolVersionResponse{ProtocolVersion: ProtocolVersion + 1})
	}))
	defer srv.Close()

	c := NewClient(strings.TrimPrefix(srv.URL, "http://"))
	err := c.CheckProtocolVersion()
	require.Error(t, err)
	var rpe *bench.RemoteProtocolError
	assert.ErrorAs(t, err, &rpe)
}

func TestBenchResultSurfacesErrorHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ResultResponse{ErrorHistory: "worker 2 failed: short write"})
	}))
	defer srv.Close()

	c := NewClient(strings.TrimPrefix(srv.URL, "http://"))
	_, err := c.BenchResult()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "short write")
}

func TestInterruptPhaseQuitSuppressesConnRefused(t *testing.T) {
	c := NewClient("127.0.0.1:1")
	assert.NoError(t, c.InterruptPhase(true))
}
