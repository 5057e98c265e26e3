package offsetgen

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialEmitsArithmeticSequence(t *testing.T) {
	g, err := NewSequential(10, 100, 4)
	require.NoError(t, err)

	var offsets []uint64
	var sizes []uint64
	for !g.Exhausted() {
		offsets = append(offsets, g.NextOffset())
		size := g.NextSubmitSize()
		sizes = append(sizes, size)
		g.AddBytesSubmitted(size)
	}

	assert.Equal(t, []uint64{100, 104, 108}, offsets)
	assert.Equal(t, []uint64{4, 4, 2}, sizes) // ceil(10/4) = 3 blocks, last is 10%4=2
}

func TestSequentialExactMultiple(t *testing.T) {
	g, err := NewSequential(8, 0, 4)
	require.NoError(t, err)
	count := 0
	for !g.Exhausted() {
		size := g.NextSubmitSize()
		g.AddBytesSubmitted(size)
		count++
	}
	assert.Equal(t, 2, count)
}

func TestRandomAlignedOffsetsAreAlignedAndInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	g, err := NewRandomAligned(64*1024, rng, 1<<30, 0, 4096)
	require.NoError(t, err)

	for i := 0; i < 200 && !g.Exhausted(); i++ {
		off := g.NextOffset()
		assert.Equal(t, uint64(0), off%4096)
		assert.GreaterOrEqual(t, off, uint64(0))
		assert.LessOrEqual(t, off, uint64(1<<30-4096))
		size := g.NextSubmitSize()
		assert.LessOrEqual(t, size, uint64(4096))
		g.AddBytesSubmitted(size)
	}
	assert.Equal(t, uint64(64*1024), g.BytesTotal())
}

func TestRandomAlignedTruncatesToBlockMultiple(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	g, err := NewRandomAligned(4096+100, rng, 1<<20, 0, 4096)
	require.NoError(t, err)
	assert.Equal(t, uint64(4096), g.BytesTotal())
}

func TestConstructorFailsWhenRangeShorterThanBlock(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, err := NewRandomAligned(4096, rng, 100, 0, 4096)
	require.Error(t, err)
}

func TestConstructorFailsWhenRandomAmountZero(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, err := NewRandomUnaligned(0, rng, 1<<20, 0, 4096)
	require.Error(t, err)
}

func TestRandomUnalignedInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	g, err := NewRandomUnaligned(1<<16, rng, 1<<20, 1000, 4096)
	require.NoError(t, err)
	for i := 0; i < 100 && !g.Exhausted(); i++ {
		off := g.NextOffset()
		assert.GreaterOrEqual(t, off, uint64(1000))
		assert.LessOrEqual(t, off, uint64(1000+(1<<20)-4096))
		size := g.NextSubmitSize()
		g.AddBytesSubmitted(size)
	}
}
