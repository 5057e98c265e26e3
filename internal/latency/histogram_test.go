package latency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketIndexZero(t *testing.T) {
	assert.Equal(t, 0, bucketIndex(0))
}

func TestAddAccumulates(t *testing.T) {
	h := &Histogram{}
	h.Add(10)
	h.Add(20)
	h.Add(5)
	assert.Equal(t, uint64(3), h.Count)
	assert.Equal(t, uint64(35), h.SumUs)
	assert.Equal(t, uint64(5), h.MinUs)
	assert.Equal(t, uint64(20), h.MaxUs)
}

func TestMergeCommutativeAssociative(t *testing.T) {
	a := &Histogram{}
	b := &Histogram{}
	c := &Histogram{}
	for _, v := range []uint64{1, 100, 4096, 7} {
		a.Add(v)
	}
	for _, v := range []uint64{2, 65536} {
		b.Add(v)
	}
	for _, v := range []uint64{3, 9} {
		c.Add(v)
	}

	ab := Sum(a, b)
	ba := Sum(b, a)
	require.Equal(t, ab.Count, ba.Count)
	require.Equal(t, ab.SumUs, ba.SumUs)
	require.Equal(t, ab.Buckets, ba.Buckets)

	abc1 := Sum(Sum(a, b), c)
	abc2 := Sum(a, Sum(b, c))
	assert.Equal(t, abc1.Buckets, abc2.Buckets)
	assert.Equal(t, abc1.Count, abc2.Count)
	assert.Equal(t, abc1.SumUs, abc2.SumUs)
	assert.Equal(t, abc1.MinUs, abc2.MinUs)
	assert.Equal(t, abc1.MaxUs, abc2.MaxUs)
}

func TestSerializeRoundTrip(t *testing.T) {
	h := &Histogram{}
	h.Add(123)
	h.Add(456789)
	s := h.Serialize()
	got, err := FromSerialized(s)
	require.NoError(t, err)
	assert.Equal(t, h.Buckets, got.Buckets)
	assert.Equal(t, h.Count, got.Count)
	assert.Equal(t, h.SumUs, got.SumUs)
}

func TestOverflowMarksTopBucket(t *testing.T) {
	h := &Histogram{}
	assert.False(t, h.Overflowed())
	h.Add(1 << 30) // far beyond 2^28us
	assert.True(t, h.Overflowed())
}
