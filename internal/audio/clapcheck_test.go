package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// impulseBlock builds a block with a sharp attack at attackIdx followed by a
// fast exponential decay, the envelope of a hand clap.
func impulseBlock(size, attackIdx int, amplitude float64) []int16 {
	samples := make([]int16, size)
	for i := attackIdx; i < size; i++ {
		v := amplitude * math.Exp(-float64(i-attackIdx)/10.0)
		samples[i] = int16(v)
	}
	return samples
}

func TestIsClapAcceptsImpulse(t *testing.T) {
	samples := impulseBlock(2048, 100, 20000)
	feats := Extract(samples)

	assert.True(t, IsClap(samples, feats.Peak))
}

func TestIsClapAcceptsEarlyImpulse(t *testing.T) {
	samples := impulseBlock(2048, 0, 20000)
	feats := Extract(samples)

	assert.True(t, IsClap(samples, feats.Peak))
}

func TestIsClapRejectsLateAttack(t *testing.T) {
	// Peak beyond 70% of the block is a ramp or sustained onset, not a clap.
	samples := impulseBlock(2048, 1900, 20000)
	feats := Extract(samples)

	assert.False(t, IsClap(samples, feats.Peak))
}

func TestIsClapRejectsSustainedTone(t *testing.T) {
	// A square wave holds its energy through the decay span.
	samples := make([]int16, 2048)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 20000
		} else {
			samples[i] = -20000
		}
	}
	feats := Extract(samples)

	assert.False(t, IsClap(samples, feats.Peak))
}

func TestIsClapRejectsLoudMusic(t *testing.T) {
	// Continuous sine at clap-level amplitude.
	samples := make([]int16, 2048)
	for i := range samples {
		samples[i] = int16(20000 * math.Sin(2*math.Pi*float64(i)/64))
	}
	feats := Extract(samples)

	assert.False(t, IsClap(samples, feats.Peak))
}

func TestIsClapDegenerateInput(t *testing.T) {
	assert.False(t, IsClap(nil, 0))
	assert.False(t, IsClap([]int16{}, 100))
	assert.False(t, IsClap([]int16{1, 2, 3}, 0))
}

func TestIsClapShortBlockSkipsDecayCheck(t *testing.T) {
	// Too little trailing data for the decay check; peak position decides.
	samples := []int16{20000, 10000, 5000}
	assert.True(t, IsClap(samples, 20000))
}
