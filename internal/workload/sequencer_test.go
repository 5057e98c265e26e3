package workload

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRankSequencerAlwaysFalseAtZeroPercent(t *testing.T) {
	s := newRankSequencer(3)
	for i := 0; i < 50; i++ {
		assert.False(t, s.Decide(0))
	}
}

func TestRankSequencerAlwaysTrueAt100Percent(t *testing.T) {
	s := newRankSequencer(3)
	for i := 0; i < 50; i++ {
		assert.True(t, s.Decide(100))
	}
}

func TestRankSequencerApproximatesPercentage(t *testing.T) {
	s := newRankSequencer(0)
	trueCount := 0
	const n = 1000
	for i := 0; i < n; i++ {
		if s.Decide(30) {
			trueCount++
		}
	}
	assert.InDelta(t, 300, trueCount, 1)
}

func TestRankSequencerDiffersByRank(t *testing.T) {
	a := newRankSequencer(0)
	b := newRankSequencer(1)
	var seqA, seqB []bool
	for i := 0; i < 20; i++ {
		seqA = append(seqA, a.Decide(50))
		seqB = append(seqB, b.Decide(50))
	}
	assert.NotEqual(t, seqA, seqB)
}
