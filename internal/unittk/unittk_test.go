package unittk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseBytesSuffixes(t *testing.T) {
	cases := map[string]uint64{
		"128":    128,
		"4k":     4 * 1024,
		"4K":     4 * 1024,
		"4ki":    4 * 1024,
		"1m":     1 << 20,
		"1.5g":   uint64(1.5 * (1 << 30)),
		"2t":     2 << 40,
	}
	for in, want := range cases {
		got, err := ParseBytes(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseBytesRejectsUnknownSuffix(t *testing.T) {
	_, err := ParseBytes("10xb")
	assert.Error(t, err)
}

func TestFormatBytesUsesLargestBinarySuffix(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "4.00 KiB", FormatBytes(4*1024))
	assert.Equal(t, "1.00 MiB", FormatBytes(1<<20))
}
