// Package testutil holds signal generators, measurements and assertions
// shared by the test suites.
package testutil

import (
	"math"
	"math/rand"
)

// DeterministicSine returns length samples of amplitude*sin(2*pi*freqHz*n/sampleRate).
func DeterministicSine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	w := 2 * math.Pi * freqHz / sampleRate
	for n := range out {
		out[n] = amplitude * math.Sin(w*float64(n))
	}
	return out
}

// DeterministicNoise returns uniform noise in [-amplitude, amplitude) drawn
// from a generator seeded with seed.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, length)
	for n := range out {
		out[n] = amplitude * (2*rng.Float64() - 1)
	}
	return out
}

// RMS returns the root mean square of x, or 0 for an empty slice.
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

// ZeroCrossingHz estimates the frequency of a clean tone from its rising
// zero crossings over the middle half of x. The edges are skipped so that
// filter warm-up does not count.
func ZeroCrossingHz(x []float64, sampleRate float64) float64 {
	lo, hi := len(x)/4, 3*len(x)/4
	if hi-lo < 2 {
		return 0
	}
	crossings := 0
	for i := lo + 1; i < hi; i++ {
		if x[i-1] < 0 && x[i] >= 0 {
			crossings++
		}
	}
	return float64(crossings) * sampleRate / float64(hi-lo)
}
