package resample

import (
	"errors"
	"math"

	"github.com/cwbudde/wavpitch/dsp/window"
)

// profile holds the filter parameters of a Quality.
type profile struct {
	tapsPerPhase int
	cutoff       float64 // fraction of the Nyquist limit of the lower rate
	beta         float64 // Kaiser shape
}

var profiles = [qualityCount]profile{
	QualityFast:     {tapsPerPhase: 16, cutoff: 0.88, beta: 5.0},
	QualityBalanced: {tapsPerPhase: 32, cutoff: 0.92, beta: 7.5},
	QualityBest:     {tapsPerPhase: 64, cutoff: 0.96, beta: 9.0},
}

// design builds the Kaiser-windowed sinc lowpass for up/down and splits it
// into up polyphase branches. The DC gain of the prototype is up, so every
// branch has unity gain.
func design(up, down int, p profile) (phases [][]float64, nTaps int, err error) {
	nTaps = p.tapsPerPhase * up
	fc := 0.5 / float64(max(up, down)) * p.cutoff

	ideal := make([]float64, nTaps)
	center := 0.5 * float64(nTaps-1)
	for n := range ideal {
		ideal[n] = 2 * fc * sinc(2*fc*(float64(n)-center))
	}
	win := window.Generate(window.TypeKaiser, nTaps, window.WithAlpha(p.beta))
	taps, err := window.ApplyCoefficients(ideal, win)
	if err != nil {
		return nil, 0, err
	}

	var sum float64
	for _, v := range taps {
		sum += v
	}
	if sum == 0 {
		return nil, 0, errors.New("resample: designed zero-sum filter")
	}
	gain := float64(up) / sum

	phases = make([][]float64, up)
	for ph := range phases {
		for i := ph; i < nTaps; i += up {
			phases[ph] = append(phases[ph], taps[i]*gain)
		}
	}
	return phases, nTaps, nil
}

// approximateRatio returns the continued-fraction convergent of v with the
// largest denominator not above maxDen.
func approximateRatio(v float64, maxDen int) (num, den int) {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 1, 1
	}

	p0, q0 := 1, 0
	p1, q1 := int(math.Floor(v)), 1
	x := v
	for {
		frac := x - math.Floor(x)
		if frac < 1e-12 {
			break
		}
		x = 1 / frac
		a := int(math.Floor(x))
		p2, q2 := a*p1+p0, a*q1+q0
		if q2 > maxDen {
			break
		}
		p0, q0, p1, q1 = p1, q1, p2, q2
	}
	if p1 <= 0 {
		return 1, 1
	}
	g := gcd(p1, q1)
	return p1 / g, q1 / g
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	if a < 0 {
		a = -a
	}
	if a == 0 {
		return 1
	}
	return a
}

func sinc(x float64) float64 {
	if math.Abs(x) < 1e-12 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}
