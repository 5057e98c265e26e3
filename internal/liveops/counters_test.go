package liveops

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountersConcurrentAdd(t *testing.T) {
	c := &Counters{}
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.AddEntries(1)
			c.AddBytes(4096)
			c.AddIops(1)
		}()
	}
	wg.Wait()
	snap := c.Get()
	assert.Equal(t, int64(100), snap.EntriesDone)
	assert.Equal(t, int64(409600), snap.BytesDone)
	assert.Equal(t, int64(100), snap.IopsDone)
}

func TestResetZeroes(t *testing.T) {
	c := &Counters{}
	c.AddEntries(5)
	c.Reset()
	assert.Equal(t, Snapshot{}, c.Get())
}

func TestAddSnapshots(t *testing.T) {
	total := Add(Snapshot{1, 2, 3}, Snapshot{4, 5, 6})
	assert.Equal(t, Snapshot{EntriesDone: 5, BytesDone: 7, IopsDone: 9}, total)
}
