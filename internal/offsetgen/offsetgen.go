// Package offsetgen produces the sequence of (offset, length) pairs a
// worker submits within one file range: sequential, random unaligned, or
// random block-aligned. See spec.md §3/§4.1.
package offsetgen

import (
	"math/rand"

	"github.com/TheEntropyCollective/storagebench/internal/bench"
)

// Generator is a stateful producer of a finite (offset, block-size)
// sequence for one file range.
type Generator interface {
	// Reset rewinds the generator to reuse it for another file, keeping
	// its configured range and block size.
	Reset()

	// NextOffset returns the offset of the next I/O to submit.
	NextOffset() uint64

	// NextSubmitSize returns the size to submit for the next I/O: at most
	// BlockSize, and equal to BytesLeft when the final block is partial.
	NextSubmitSize() uint64

	// BlockSize returns the configured block size.
	BlockSize() uint64

	// BytesTotal returns the total number of bytes this generator will
	// emit across a full pass.
	BytesTotal() uint64

	// BytesLeft returns the number of bytes not yet submitted in the
	// current pass.
	BytesLeft() uint64

	// AddBytesSubmitted records that numBytes were just submitted,
	// advancing internal state. BytesLeft decreases by exactly numBytes.
	AddBytesSubmitted(numBytes uint64)

	// Exhausted reports whether BytesLeft() == 0.
	Exhausted() bool
}

// Sequential emits start, start+block, start+2*block, ... until len bytes
// have been requested; the final block may be short.
type Sequential struct {
	numBytesTotal uint64
	numBytesLeft  uint64
	startOffset   uint64
	currentOffset uint64
	blockSize     uint64
}

// NewSequential constructs a sequential generator covering a range of len
// bytes starting at offset, in blockSize chunks.
func NewSequential(length, offset, blockSize uint64) (*Sequential, error) {
	if blockSize == 0 {
		return nil, &bench.ConfigInvalidError{Reason: "block size must be > 0"}
	}
	return &Sequential{
		numBytesTotal: length,
		numBytesLeft:  length,
		startOffset:   offset,
		currentOffset: offset,
		blockSize:     blockSize,
	}, nil
}

func (g *Sequential) Reset() {
	g.numBytesLeft = g.numBytesTotal
	g.currentOffset = g.startOffset
}

func (g *Sequential) NextOffset() uint64 { return g.currentOffset }

func (g *Sequential) NextSubmitSize() uint64 {
	if g.numBytesLeft < g.blockSize {
		return g.numBytesLeft
	}
	return g.blockSize
}

func (g *Sequential) BlockSize() uint64  { return g.blockSize }
func (g *Sequential) BytesTotal() uint64 { return g.numBytesTotal }
func (g *Sequential) BytesLeft() uint64  { return g.numBytesLeft }

func (g *Sequential) AddBytesSubmitted(numBytes uint64) {
	g.numBytesLeft -= numBytes
	g.currentOffset += numBytes
}

func (g *Sequential) Exhausted() bool { return g.numBytesLeft == 0 }

// randSource is satisfied by *rand.Rand; extracted so tests can inject a
// deterministic source.
type randSource interface {
	Int63n(n int64) int64
}

// RandomUnaligned draws offsets uniformly from [start, start+len-block].
// Total bytes bounded by randomAmount / numDatasetThreads, as passed in by
// the caller via numBytesTotal.
type RandomUnaligned struct {
	rng           randSource
	low           uint64
	high          uint64 // inclusive upper bound for draws: start+len-block
	numBytesTotal uint64
	numBytesLeft  uint64
	blockSize     uint64
}

// NewRandomUnaligned constructs a generator that draws offsets uniformly
// from [offset, offset+length-blockSize]. numBytesTotal is normally
// randomAmount/numDatasetThreads, supplied by the caller.
func NewRandomUnaligned(numBytesTotal uint64, rng *rand.Rand, length, offset, blockSize uint64) (*RandomUnaligned, error) {
	if length < blockSize {
		return nil, &bench.ConfigInvalidError{Reason: "random range shorter than one block"}
	}
	if numBytesTotal == 0 {
		return nil, &bench.ConfigInvalidError{Reason: "random amount per thread is 0"}
	}
	return &RandomUnaligned{
		rng:           rng,
		low:           offset,
		high:          offset + length - blockSize,
		numBytesTotal: numBytesTotal,
		numBytesLeft:  numBytesTotal,
		blockSize:     blockSize,
	}, nil
}

func (g *RandomUnaligned) Reset() { g.numBytesLeft = g.numBytesTotal }

func (g *RandomUnaligned) NextOffset() uint64 {
	span := g.high - g.low + 1
	if span == 0 {
		return g.low
	}
	return g.low + uint64(g.rng.Int63n(int64(span)))
}

func (g *RandomUnaligned) NextSubmitSize() uint64 {
	if g.numBytesLeft < g.blockSize {
		return g.numBytesLeft
	}
	return g.blockSize
}

func (g *RandomUnaligned) BlockSize() uint64  { return g.blockSize }
func (g *RandomUnaligned) BytesTotal() uint64 { return g.numBytesTotal }
func (g *RandomUnaligned) BytesLeft() uint64  { return g.numBytesLeft }

func (g *RandomUnaligned) AddBytesSubmitted(numBytes uint64) {
	g.numBytesLeft -= numBytes
}

func (g *RandomUnaligned) Exhausted() bool { return g.numBytesLeft == 0 }

// RandomAligned draws a block index uniformly from [0, (len-block)/block]
// and multiplies by blockSize, so every emitted offset is block-aligned
// and partial blocks are never submitted. Construction truncates
// numBytesTotal down to a multiple of blockSize.
type RandomAligned struct {
	rng           randSource
	maxBlockIndex uint64 // inclusive
	offset        uint64
	numBytesTotal uint64
	numBytesLeft  uint64
	blockSize     uint64
}

// NewRandomAligned constructs a block-aligned random generator. numBytesTotal
// is normally randomAmount/numDatasetThreads; it is truncated down to a
// multiple of blockSize so no partial block is ever submitted.
func NewRandomAligned(numBytesTotal uint64, rng *rand.Rand, length, offset, blockSize uint64) (*RandomAligned, error) {
	if length < blockSize {
		return nil, &bench.ConfigInvalidError{Reason: "random range shorter than one block"}
	}
	if numBytesTotal == 0 {
		return nil, &bench.ConfigInvalidError{Reason: "random amount per thread is 0"}
	}
	truncated := numBytesTotal - (numBytesTotal % blockSize)
	if truncated == 0 {
		return nil, &bench.ConfigInvalidError{Reason: "random amount per thread truncates to 0 blocks"}
	}
	return &RandomAligned{
		rng:           rng,
		maxBlockIndex: (length - blockSize) / blockSize,
		offset:        offset,
		numBytesTotal: truncated,
		numBytesLeft:  truncated,
		blockSize:     blockSize,
	}, nil
}

func (g *RandomAligned) Reset() { g.numBytesLeft = g.numBytesTotal }

func (g *RandomAligned) NextOffset() uint64 {
	draw := uint64(g.rng.Int63n(int64(g.maxBlockIndex + 1)))
	return g.offset + draw*g.blockSize
}

func (g *RandomAligned) NextSubmitSize() uint64 {
	if g.numBytesLeft < g.blockSize {
		return g.numBytesLeft
	}
	return g.blockSize
}

func (g *RandomAligned) BlockSize() uint64  { return g.blockSize }
func (g *RandomAligned) BytesTotal() uint64 { return g.numBytesTotal }
func (g *RandomAligned) BytesLeft() uint64  { return g.numBytesLeft }

func (g *RandomAligned) AddBytesSubmitted(numBytes uint64) {
	g.numBytesLeft -= numBytes
}

func (g *RandomAligned) Exhausted() bool { return g.numBytesLeft == 0 }
