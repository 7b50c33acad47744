package audio

import "math"

// Envelope shape limits for clap validation.
const (
	// maxPeakPosition is the fraction of the block past which a peak is
	// considered a late attack (sustained noise or a ramp, not an impulse).
	maxPeakPosition = 0.7
	// decaySpan is how many samples after the peak must exist before the
	// decay check applies.
	decaySpan = 100
	// decayTail is how many trailing samples of the span are averaged.
	decayTail = 50
	// maxDecayRatio is the upper bound on tail energy relative to the peak.
	maxDecayRatio = 0.5
)

// IsClap reports whether a block whose peak exceeded the detection threshold
// has the sharp-attack, quick-decay envelope of a hand clap. This is a cheap
// shape heuristic, not spectral analysis: enough to reject voices, music and
// sustained noise without per-block FFT cost.
func IsClap(samples []int16, peak float64) bool {
	if len(samples) == 0 || peak <= 0 {
		return false
	}

	peakIdx := 0
	var maxAbs float64
	for i, s := range samples {
		if abs := math.Abs(float64(s)); abs > maxAbs {
			maxAbs = abs
			peakIdx = i
		}
	}

	// Attack too late in the block.
	if float64(peakIdx) > maxPeakPosition*float64(len(samples)) {
		return false
	}

	// With enough trailing data, require the tail of the decay span to have
	// fallen well below the peak.
	if len(samples)-peakIdx-1 >= decaySpan {
		start := peakIdx + 1 + decaySpan - decayTail
		var sum float64
		for _, s := range samples[start : peakIdx+1+decaySpan] {
			sum += math.Abs(float64(s))
		}
		mean := sum / float64(decayTail)
		if mean/(peak+1) > maxDecayRatio {
			return false
		}
	}

	return true
}
