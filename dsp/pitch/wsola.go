package pitch

import (
	"fmt"
	"math"

	"github.com/cwbudde/wavpitch/dsp/interp"
)

// WSOLA timing defaults in milliseconds (SoundTouch's music preset). A long
// sequence window fits several beat cycles into the similarity search.
const (
	defaultSequenceMs = 82.0
	defaultOverlapMs  = 10.0
	defaultSearchMs   = 28.0
)

type msRange struct{ lo, hi float64 }

var (
	sequenceRange = msRange{20, 120}
	overlapRange  = msRange{4, 60}
	searchRange   = msRange{2, 40}
)

func (r msRange) check(name string, ms float64) error {
	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms < r.lo || ms > r.hi {
		return fmt.Errorf("pitch: %s must be in [%g, %g] ms: %f", name, r.lo, r.hi, ms)
	}
	return nil
}

// wsolaTiming is the user-facing part of the WSOLA configuration.
type wsolaTiming struct {
	sequenceMs float64
	overlapMs  float64
	searchMs   float64
}

// WSOLAOption tunes a WSOLAShifter at construction.
type WSOLAOption func(*wsolaTiming)

// WithSequence sets the sequence (segment) length in milliseconds.
func WithSequence(ms float64) WSOLAOption {
	return func(t *wsolaTiming) { t.sequenceMs = ms }
}

// WithOverlap sets the crossfade length in milliseconds.
func WithOverlap(ms float64) WSOLAOption {
	return func(t *wsolaTiming) { t.overlapMs = ms }
}

// WithSearch sets the similarity search radius in milliseconds.
func WithSearch(ms float64) WSOLAOption {
	return func(t *wsolaTiming) { t.searchMs = ms }
}

// WSOLAShifter stretches the signal in time with waveform-similarity
// overlap-add, then resamples the stretched signal back to the input length
// with 4-point Hermite interpolation. Stretching by r and squeezing by 1/r
// leaves the duration intact and multiplies every frequency by r.
//
// Shifts beyond MaxStageRatio run as several equal passes.
//
// It is mono, block-based and holds no state between calls.
type WSOLAShifter struct {
	ratioState
	timing wsolaTiming

	sequenceLen int
	overlapLen  int
	searchLen   int
	stepOut     int

	fadeIn  []float64
	fadeOut []float64
}

// NewWSOLAShifter returns a WSOLAShifter at ratio 1.
func NewWSOLAShifter(sampleRate float64, opts ...WSOLAOption) (*WSOLAShifter, error) {
	if err := checkSampleRate(sampleRate); err != nil {
		return nil, err
	}

	timing := wsolaTiming{
		sequenceMs: defaultSequenceMs,
		overlapMs:  defaultOverlapMs,
		searchMs:   defaultSearchMs,
	}
	for _, opt := range opts {
		opt(&timing)
	}
	if err := timing.check(); err != nil {
		return nil, err
	}

	w := &WSOLAShifter{
		ratioState: ratioState{sampleRate: sampleRate, ratio: 1},
		timing:     timing,
	}
	if err := w.rebuild(); err != nil {
		return nil, err
	}
	return w, nil
}

func (t wsolaTiming) check() error {
	if err := sequenceRange.check("sequence", t.sequenceMs); err != nil {
		return err
	}
	if err := overlapRange.check("overlap", t.overlapMs); err != nil {
		return err
	}
	return searchRange.check("search", t.searchMs)
}

// Sequence returns the sequence length in milliseconds.
func (w *WSOLAShifter) Sequence() float64 { return w.timing.sequenceMs }

// Overlap returns the crossfade length in milliseconds.
func (w *WSOLAShifter) Overlap() float64 { return w.timing.overlapMs }

// Search returns the similarity search radius in milliseconds.
func (w *WSOLAShifter) Search() float64 { return w.timing.searchMs }

// SetSampleRate updates the sample rate and recomputes the window lengths.
func (w *WSOLAShifter) SetSampleRate(sampleRate float64) error {
	if err := checkSampleRate(sampleRate); err != nil {
		return err
	}
	return w.update(func() { w.sampleRate = sampleRate })
}

// SetPitchRatio sets the pitch ratio.
func (w *WSOLAShifter) SetPitchRatio(ratio float64) error {
	if err := checkRatio(ratio); err != nil {
		return err
	}
	w.ratio = ratio
	return nil
}

// SetPitchSemitones sets the pitch shift in semitones.
func (w *WSOLAShifter) SetPitchSemitones(semitones float64) error {
	ratio, err := semitonesToRatio(semitones)
	if err != nil {
		return err
	}
	if err := w.SetPitchRatio(ratio); err != nil {
		return fmt.Errorf("pitch: %g semitones: %w", semitones, err)
	}
	return nil
}

// SetSequence sets the sequence length in milliseconds.
func (w *WSOLAShifter) SetSequence(ms float64) error {
	if err := sequenceRange.check("sequence", ms); err != nil {
		return err
	}
	return w.update(func() { w.timing.sequenceMs = ms })
}

// SetOverlap sets the crossfade length in milliseconds.
func (w *WSOLAShifter) SetOverlap(ms float64) error {
	if err := overlapRange.check("overlap", ms); err != nil {
		return err
	}
	return w.update(func() { w.timing.overlapMs = ms })
}

// SetSearch sets the similarity search radius in milliseconds.
func (w *WSOLAShifter) SetSearch(ms float64) error {
	if err := searchRange.check("search", ms); err != nil {
		return err
	}
	return w.update(func() { w.timing.searchMs = ms })
}

// Reset is a no-op; WSOLAShifter keeps no state between calls.
func (w *WSOLAShifter) Reset() {}

// Process returns a pitch-shifted copy of input with the same length.
func (w *WSOLAShifter) Process(input []float64) []float64 {
	if len(input) == 0 {
		return nil
	}
	if w.isIdentity() {
		return copyOf(input)
	}

	n, stage := w.stages()
	out := input
	for range n {
		out = hermiteFit(w.stretch(out, stage), len(input))
	}
	return out
}

// ProcessInPlace pitch-shifts buf in place.
func (w *WSOLAShifter) ProcessInPlace(buf []float64) {
	if len(buf) == 0 {
		return
	}
	copy(buf, w.Process(buf))
}

// update applies a change and rebuilds, restoring the previous state if the
// rebuild fails.
func (w *WSOLAShifter) update(apply func()) error {
	savedRate, savedTiming := w.sampleRate, w.timing
	apply()
	if err := w.rebuild(); err != nil {
		w.sampleRate, w.timing = savedRate, savedTiming
		_ = w.rebuild()
		return err
	}
	return nil
}

func (w *WSOLAShifter) rebuild() error {
	if w.timing.overlapMs >= w.timing.sequenceMs {
		return fmt.Errorf("pitch: overlap %g ms must be shorter than sequence %g ms",
			w.timing.overlapMs, w.timing.sequenceMs)
	}

	toSamples := func(ms float64, floor int) int {
		return max(int(math.Round(ms*0.001*w.sampleRate)), floor)
	}
	w.sequenceLen = toSamples(w.timing.sequenceMs, 32)
	w.overlapLen = toSamples(w.timing.overlapMs, 8)
	w.searchLen = toSamples(w.timing.searchMs, 1)

	if w.overlapLen >= w.sequenceLen {
		return fmt.Errorf("pitch: overlap of %d samples does not fit a %d sample sequence",
			w.overlapLen, w.sequenceLen)
	}
	w.stepOut = w.sequenceLen - w.overlapLen
	if w.stepOut < 4 {
		return fmt.Errorf("pitch: output hop too small: %d", w.stepOut)
	}

	w.fadeIn = make([]float64, w.overlapLen)
	w.fadeOut = make([]float64, w.overlapLen)
	for i := range w.overlapLen {
		t := float64(i) / float64(w.overlapLen-1)
		in := 0.5 - 0.5*math.Cos(math.Pi*t)
		w.fadeIn[i] = in
		w.fadeOut[i] = 1 - in
	}
	return nil
}

// stretch lengthens input by ratio. Each new sequence starts at the
// position near the nominal read point whose leading samples best match the
// continuation of the previous sequence, then crossfades over the overlap.
func (w *WSOLAShifter) stretch(input []float64, ratio float64) []float64 {
	targetLen := max(int(math.Round(float64(len(input))*ratio)), 1)
	inStep := max(float64(w.stepOut)/ratio, 1)

	out := make([]float64, (targetLen/w.stepOut+4)*w.stepOut+w.sequenceLen+1)
	for i := range w.sequenceLen {
		out[i] = zeroAt(input, i)
	}

	var (
		outLen    = w.sequenceLen
		readPos   = 0
		nominal   = inStep
		reference = make([]float64, w.overlapLen)
	)

	for outLen < targetLen+w.sequenceLen {
		for i := range reference {
			reference[i] = zeroAt(input, readPos+w.stepOut+i)
		}
		start := w.bestMatch(reference, input, int(math.Round(nominal)))

		fadeStart := outLen - w.overlapLen
		for i := range w.overlapLen {
			out[fadeStart+i] = out[fadeStart+i]*w.fadeOut[i] + zeroAt(input, start+i)*w.fadeIn[i]
		}
		for i := w.overlapLen; i < w.sequenceLen; i++ {
			out[fadeStart+i] = zeroAt(input, start+i)
		}

		outLen = fadeStart + w.sequenceLen
		readPos = start
		nominal += inStep

		if readPos > len(input)+w.sequenceLen && outLen >= targetLen {
			break
		}
	}

	return fitLength(out, targetLen)
}

// bestMatch returns the candidate start within the search radius of predicted
// with the highest normalized cross-correlation against reference.
func (w *WSOLAShifter) bestMatch(reference, input []float64, predicted int) int {
	refEnergy := tiny
	for _, v := range reference {
		refEnergy += v * v
	}

	best, bestScore := predicted, math.Inf(-1)
	for cand := predicted - w.searchLen; cand <= predicted+w.searchLen; cand++ {
		dot, energy := 0.0, tiny
		for i, rv := range reference {
			cv := zeroAt(input, cand+i)
			dot += rv * cv
			energy += cv * cv
		}
		if score := dot / math.Sqrt(refEnergy*energy); score > bestScore {
			best, bestScore = cand, score
		}
	}
	return best
}

// hermiteFit resamples input to exactly n samples, keeping both end points.
func hermiteFit(input []float64, n int) []float64 {
	if n <= 0 || len(input) == 0 {
		return nil
	}
	out := make([]float64, n)
	if n == 1 || len(input) == 1 {
		for i := range out {
			out[i] = input[0]
		}
		return out
	}

	step := float64(len(input)-1) / float64(n-1)
	for i := range out {
		out[i] = interp.Hermite4At(input, float64(i)*step)
	}
	return out
}

func zeroAt(x []float64, idx int) float64 {
	if idx < 0 || idx >= len(x) {
		return 0
	}
	return x[idx]
}
