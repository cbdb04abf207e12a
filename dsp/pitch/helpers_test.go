package pitch

import (
	"math"
	"testing"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// binSine returns n samples of a sine that lands on bin outBin of an fftLen
// point transform after a shift by ratio.
func binSine(outBin, fftLen, n int, ratio, sampleRate float64) (input []float64, outFreq float64) {
	outFreq = float64(outBin) * sampleRate / float64(fftLen)
	inFreq := outFreq / ratio

	input = make([]float64, n)
	for i := range input {
		input[i] = 0.8 * math.Sin(2*math.Pi*inFreq*float64(i)/sampleRate)
	}
	return input, outFreq
}

func powerSpectrum(t *testing.T, x []float64) []float64 {
	t.Helper()

	plan, err := algofft.NewPlan64(len(x))
	if err != nil {
		t.Fatalf("NewPlan64(%d) error = %v", len(x), err)
	}

	in := make([]complex128, len(x))
	out := make([]complex128, len(x))
	for i, v := range x {
		in[i] = complex(v, 0)
	}
	if err := plan.Forward(out, in); err != nil {
		t.Fatalf("Forward() error = %v", err)
	}

	power := make([]float64, len(x)/2+1)
	for k := range power {
		re, im := real(out[k]), imag(out[k])
		power[k] = re*re + im*im
	}
	return power
}

// measureSNR transforms fftLen samples from the middle of out and compares
// the power within 10 bins of each target against everything else.
func measureSNR(t *testing.T, out []float64, sampleRate float64, fftLen int, targets ...float64) float64 {
	t.Helper()

	mid := max(len(out)/2-fftLen/2, 0)
	power := powerSpectrum(t, out[mid:mid+fftLen])

	const band = 10

	inBand := func(k int) bool {
		for _, f := range targets {
			bin := int(math.Round(f * float64(fftLen) / sampleRate))
			if k >= bin-band && k <= bin+band {
				return true
			}
		}
		return false
	}

	var sig, noise float64
	for k := 1; k < len(power); k++ {
		if inBand(k) {
			sig += power[k]
		} else {
			noise += power[k]
		}
	}
	if noise <= 1e-30 {
		return 100
	}
	return 10 * math.Log10(sig/noise)
}

func dominantFrequencyHz(t *testing.T, x []float64, sampleRate float64) float64 {
	t.Helper()

	power := powerSpectrum(t, x)
	best := 1
	for k := 2; k < len(power); k++ {
		if power[k] > power[best] {
			best = k
		}
	}
	return sampleRate * float64(best) / float64(len(x))
}

// autocorrelationFrequency estimates the fundamental of x from the lag with
// the highest normalized autocorrelation, refined by parabolic interpolation.
func autocorrelationFrequency(x []float64, sampleRate, minHz, maxHz float64) float64 {
	lagMin := max(int(math.Floor(sampleRate/maxHz)), 1)
	lagMax := min(int(math.Ceil(sampleRate/minHz)), len(x)-2)
	if lagMax <= lagMin {
		return 0
	}

	mean := 0.0
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))

	centered := make([]float64, len(x))
	for i, v := range x {
		centered[i] = v - mean
	}

	best, bestScore := lagMin, math.Inf(-1)
	for lag := lagMin; lag <= lagMax; lag++ {
		if s := autocorrelation(centered, lag); s > bestScore {
			best, bestScore = lag, s
		}
	}

	lag := float64(best)
	if best > lagMin && best < lagMax {
		s0 := autocorrelation(centered, best-1)
		s1 := bestScore
		s2 := autocorrelation(centered, best+1)
		if den := s0 - 2*s1 + s2; math.Abs(den) > 1e-12 {
			lag += 0.5 * (s0 - s2) / den
		}
	}
	return sampleRate / lag
}

func autocorrelation(x []float64, lag int) float64 {
	var dot, e0, e1 float64
	for i := range len(x) - lag {
		a, b := x[i], x[i+lag]
		dot += a * b
		e0 += a * a
		e1 += b * b
	}
	if e0 <= 1e-12 || e1 <= 1e-12 {
		return -1
	}
	return dot / math.Sqrt(e0*e1)
}
