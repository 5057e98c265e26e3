package iobuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillVerifyRoundTrip(t *testing.T) {
	buf := make([]byte, 1024)
	FillIntegrity(buf, 4096, 1)
	res := VerifyIntegrity(buf, 4096, 1)
	require.True(t, res.OK)
}

func TestVerifyDetectsSaltMismatch(t *testing.T) {
	buf := make([]byte, 64)
	FillIntegrity(buf, 0, 1)
	res := VerifyIntegrity(buf, 0, 2)
	require.False(t, res.OK)
	assert.Equal(t, uint64(0), res.MismatchOffset)
	assert.Equal(t, uint64(2), res.Expected)
	assert.Equal(t, uint64(1), res.Actual)
}

func TestFillHandlesPartialTail(t *testing.T) {
	buf := make([]byte, 13) // not a multiple of 8
	FillIntegrity(buf, 0, 0)
	res := VerifyIntegrity(buf, 0, 0)
	assert.True(t, res.OK)
}
