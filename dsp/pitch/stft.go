package pitch

import (
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"

	"github.com/cwbudde/wavpitch/dsp/window"
)

// normFloorFraction bounds the overlap-add normalization from below, as a
// fraction of the steady-state squared window sum.
const normFloorFraction = 0.1

// vocoder holds the FFT plan, window and per-bin phase state of a phase
// vocoder. analyze fills mag and freq for one frame; the caller writes the
// upper half spectrum into synth and calls synthesize.
type vocoder struct {
	size int
	half int

	plan      *algofft.Plan[complex128]
	win       []float64
	winEnergy float64 // sum of squared window coefficients

	omega     []float64 // bin center frequency, rad/sample
	prevPhase []float64
	sumPhase  []float64

	spectrum []complex128
	synth    []complex128
	frame    []complex128

	mag  []float64
	freq []float64 // instantaneous frequency, rad/sample
}

func newVocoder(size int, wt window.Type) (*vocoder, error) {
	plan, err := algofft.NewPlan64(size)
	if err != nil {
		return nil, fmt.Errorf("pitch: FFT plan for %d points: %w", size, err)
	}

	win := window.Generate(wt, size, window.WithPeriodic())
	if len(win) != size {
		return nil, fmt.Errorf("pitch: cannot generate %v window of %d points", wt, size)
	}

	bins := size/2 + 1
	v := &vocoder{
		size:      size,
		half:      size / 2,
		plan:      plan,
		win:       win,
		omega:     make([]float64, bins),
		prevPhase: make([]float64, bins),
		sumPhase:  make([]float64, bins),
		spectrum:  make([]complex128, size),
		synth:     make([]complex128, size),
		frame:     make([]complex128, size),
		mag:       make([]float64, bins),
		freq:      make([]float64, bins),
	}
	for k := range v.omega {
		v.omega[k] = 2 * math.Pi * float64(k) / float64(size)
	}
	for _, w := range win {
		v.winEnergy += w * w
	}
	if v.winEnergy <= 0 {
		return nil, fmt.Errorf("pitch: %v window of %d points is all zero", wt, size)
	}
	return v, nil
}

func (v *vocoder) reset() {
	clear(v.prevPhase)
	clear(v.sumPhase)
}

// analyze windows the frame of input starting at pos, transforms it and
// derives magnitude and instantaneous frequency per bin from the phase
// advance over hop samples.
func (v *vocoder) analyze(input []float64, pos int, hop float64) error {
	for i := range v.size {
		v.spectrum[i] = complex(zeroAt(input, pos+i)*v.win[i], 0)
	}
	if err := v.plan.Forward(v.spectrum, v.spectrum); err != nil {
		return fmt.Errorf("pitch: forward FFT: %w", err)
	}

	for k := 0; k <= v.half; k++ {
		re, im := real(v.spectrum[k]), imag(v.spectrum[k])
		phase := math.Atan2(im, re)
		deviation := wrapPhase(phase - v.prevPhase[k] - v.omega[k]*hop)

		v.mag[k] = math.Hypot(re, im)
		v.freq[k] = v.omega[k] + deviation/hop
		v.prevPhase[k] = phase
	}
	return nil
}

// setBin writes bin k of the synthesis spectrum from a magnitude and the
// accumulated phase.
func (v *vocoder) setBin(k int, mag float64) {
	sin, cos := math.Sincos(v.sumPhase[k])
	v.synth[k] = complex(mag*cos, mag*sin)
}

// synthesize mirrors the synthesis spectrum to a Hermitian one, transforms it
// back and overlap-adds the windowed frame into out at pos. norm collects the
// squared window sum for the final normalization.
func (v *vocoder) synthesize(out, norm []float64, pos int) error {
	v.synth[0] = complex(real(v.synth[0]), 0)
	v.synth[v.half] = complex(real(v.synth[v.half]), 0)
	for k := 1; k < v.half; k++ {
		c := v.synth[k]
		v.synth[v.size-k] = complex(real(c), -imag(c))
	}

	if err := v.plan.Inverse(v.frame, v.synth); err != nil {
		return fmt.Errorf("pitch: inverse FFT: %w", err)
	}

	for i, w := range v.win {
		out[pos+i] += real(v.frame[i]) * w
		norm[pos+i] += w * w
	}
	return nil
}

// overlapAdd runs frames of input through analyze, shape and synthesize with
// the given hops and returns the normalized overlap-add result. Output
// sample 0 lines up with input sample 0.
//
// Lead-in and lead-out frames extend past both ends of the input so that
// every returned sample near the edges has the full frame overlap.
func (v *vocoder) overlapAdd(input []float64, inHop, outHop int, shape func(outHop float64)) ([]float64, error) {
	v.reset()

	minHop := min(inHop, outHop)
	lead := (v.size + minHop - 1) / minHop
	frames := 2*lead + 1 + (len(input)-1)/inHop
	n := (frames-1)*outHop + v.size
	out := make([]float64, n)
	norm := make([]float64, n)

	for f := range frames {
		if err := v.analyze(input, (f-lead)*inHop, float64(inHop)); err != nil {
			return nil, err
		}
		shape(float64(outHop))
		if err := v.synthesize(out, norm, f*outHop); err != nil {
			return nil, err
		}
	}

	floor := normFloorFraction * v.winEnergy / float64(outHop)
	for i, g := range norm {
		out[i] /= max(g, floor)
	}
	return out[lead*outHop:], nil
}

func wrapPhase(x float64) float64 {
	x = math.Mod(x+math.Pi, 2*math.Pi)
	if x < 0 {
		x += 2 * math.Pi
	}
	return x - math.Pi
}
