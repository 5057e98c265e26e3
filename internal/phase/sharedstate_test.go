package phase

import (
	"sync"
	"testing"
	"time"

	"github.com/TheEntropyCollective/storagebench/internal/bench"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartNextPhaseAdvancesPair(t *testing.T) {
	s := New(2, 50*time.Millisecond)
	defer s.Close()

	id := bench.NewBenchID()
	s.StartNextPhase(bench.PhaseCreateFiles, id)
	p, got := s.Current()
	assert.Equal(t, bench.PhaseCreateFiles, p)
	assert.Equal(t, id, got)
}

func TestStonewallFiresOnceOnFirstDone(t *testing.T) {
	s := New(3, 50*time.Millisecond)
	defer s.Close()

	var calls int
	var mu sync.Mutex
	s.SetStonewallHook(func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	s.StartNextPhase(bench.PhaseReadFiles, bench.NewBenchID())
	s.IncDone(10)
	s.IncDone(20)
	s.IncDone(30)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestWaitUntilAllDoneReturnsWhenComplete(t *testing.T) {
	s := New(2, 20*time.Millisecond)
	defer s.Close()
	s.StartNextPhase(bench.PhaseReadFiles, bench.NewBenchID())

	done := make(chan Snapshot, 1)
	go func() {
		done <- s.WaitUntilAllDone(nil)
	}()

	time.Sleep(10 * time.Millisecond)
	s.IncDone(0)
	s.IncDone(0)

	select {
	case snap := <-done:
		assert.Equal(t, 2, snap.DoneCount)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitUntilAllDone did not return")
	}
}

func TestWaitUntilAllDoneRespectsStop(t *testing.T) {
	s := New(5, time.Second) // long broadcast interval, stop must wake us promptly
	defer s.Close()
	s.StartNextPhase(bench.PhaseReadFiles, bench.NewBenchID())

	stop := make(chan struct{})
	done := make(chan Snapshot, 1)
	go func() {
		done <- s.WaitUntilAllDone(stop)
	}()

	time.Sleep(10 * time.Millisecond)
	close(stop)

	select {
	case snap := <-done:
		assert.Equal(t, 0, snap.DoneCount)
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not unblock WaitUntilAllDone")
	}
}

func TestIncDoneWithErrorCountsTowardCompletion(t *testing.T) {
	s := New(2, 20*time.Millisecond)
	defer s.Close()
	s.StartNextPhase(bench.PhaseReadFiles, bench.NewBenchID())
	s.IncDone(0)
	s.IncDoneWithError(0)
	snap := s.Snapshot()
	require.Equal(t, 1, snap.DoneCount)
	require.Equal(t, 1, snap.DoneWithErrorCount)
}
