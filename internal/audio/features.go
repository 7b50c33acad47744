// Package audio provides signal processing for the clap detector: PCM block
// decoding, per-block feature extraction, ambient noise calibration and clap
// envelope validation.
package audio

import (
	"encoding/binary"
	"math"
)

// MaxSampleValue is the maximum absolute value for 16-bit signed audio.
const MaxSampleValue = 32768.0

// DecodeBlock converts n bytes of raw S16LE mono PCM into samples, appending
// to dst (reused between blocks to avoid per-iteration allocation).
func DecodeBlock(buf []byte, n int, dst []int16) []int16 {
	dst = dst[:0]
	for i := 0; i+1 < n; i += 2 {
		dst = append(dst, int16(binary.LittleEndian.Uint16(buf[i:])))
	}
	return dst
}

// Features holds per-block scalar features of a PCM block.
// Values are raw 16-bit amplitudes, not dB.
type Features struct {
	Peak float64 // maximum absolute amplitude
	RMS  float64 // root mean square amplitude
}

// Extract computes peak and RMS features over one block.
// A well-formed block always yields finite, non-negative values.
func Extract(samples []int16) Features {
	if len(samples) == 0 {
		return Features{}
	}

	var sumSquares, peak float64
	for _, s := range samples {
		v := float64(s)
		sumSquares += v * v
		if abs := math.Abs(v); abs > peak {
			peak = abs
		}
	}

	return Features{
		Peak: peak,
		RMS:  math.Sqrt(sumSquares / float64(len(samples))),
	}
}
