package pitch

import (
	"fmt"
	"math"

	"github.com/cwbudde/wavpitch/dsp/resample"
	"github.com/cwbudde/wavpitch/dsp/window"
)

const (
	defaultFrameSize   = 1024
	defaultAnalysisHop = 256
	minFrameSize       = 64
)

type spectralConfig struct {
	frameSize   int
	analysisHop int
	window      window.Type
	quality     resample.Quality
}

func (c spectralConfig) check() error {
	if c.frameSize < minFrameSize || c.frameSize&(c.frameSize-1) != 0 {
		return fmt.Errorf("pitch: frame size must be a power of two >= %d: %d", minFrameSize, c.frameSize)
	}
	if c.analysisHop <= 0 || c.analysisHop >= c.frameSize {
		return fmt.Errorf("pitch: analysis hop must be in [1, %d): %d", c.frameSize, c.analysisHop)
	}
	if !c.window.Valid() {
		return fmt.Errorf("pitch: invalid window type %v", c.window)
	}
	return nil
}

// SpectralOption tunes a SpectralShifter at construction.
type SpectralOption func(*spectralConfig)

// WithFrameSize sets the FFT size. The analysis hop follows at a quarter of
// the frame unless WithAnalysisHop is also given.
func WithFrameSize(n int) SpectralOption {
	return func(c *spectralConfig) {
		c.frameSize = n
		c.analysisHop = max(n/4, 1)
	}
}

// WithAnalysisHop sets the analysis hop in samples.
func WithAnalysisHop(hop int) SpectralOption {
	return func(c *spectralConfig) { c.analysisHop = hop }
}

// WithWindow sets the STFT window.
func WithWindow(t window.Type) SpectralOption {
	return func(c *spectralConfig) { c.window = t }
}

// WithResampleQuality sets the quality of the duration-correction resampler.
func WithResampleQuality(q resample.Quality) SpectralOption {
	return func(c *spectralConfig) { c.quality = q }
}

// SpectralShifter is a phase-vocoder pitch shifter. It time-stretches by
// synthesisHop/stretchHop with identity phase locking (Laroche & Dolson
// 1999) and resamples the result back to the input duration, which moves
// every frequency by the same factor.
//
// The stretch hop is the analysis hop or less: it is chosen so that the hop
// ratio matches the pitch ratio closely and the synthesis hop never exceeds
// the analysis hop. Shifts beyond MaxStageRatio run as several equal passes.
//
// It is mono, one-shot buffer oriented and not safe for concurrent use.
type SpectralShifter struct {
	ratioState
	cfg          spectralConfig
	passes       int
	stretchHop   int
	synthesisHop int

	voc   *vocoder
	peaks []int
}

// NewSpectralShifter returns a SpectralShifter at ratio 1 with a 1024 point
// Hann window and a hop of 256 unless overridden.
func NewSpectralShifter(sampleRate float64, opts ...SpectralOption) (*SpectralShifter, error) {
	if err := checkSampleRate(sampleRate); err != nil {
		return nil, err
	}

	cfg := spectralConfig{
		frameSize:   defaultFrameSize,
		analysisHop: defaultAnalysisHop,
		window:      window.TypeHann,
		quality:     resample.QualityBalanced,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &SpectralShifter{ratioState: ratioState{sampleRate: sampleRate, ratio: 1}}
	if err := s.configure(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// EffectivePitchRatio returns the ratio actually realized, which is the hop
// ratio synthesisHop/stretchHop applied once per pass.
func (s *SpectralShifter) EffectivePitchRatio() float64 {
	return math.Pow(float64(s.synthesisHop)/float64(s.stretchHop), float64(s.passes))
}

// FrameSize returns the FFT size.
func (s *SpectralShifter) FrameSize() int { return s.cfg.frameSize }

// AnalysisHop returns the analysis hop in samples.
func (s *SpectralShifter) AnalysisHop() int { return s.cfg.analysisHop }

// StretchHop returns the analysis hop of the stretch, at most AnalysisHop.
func (s *SpectralShifter) StretchHop() int { return s.stretchHop }

// SynthesisHop returns the synthesis hop in samples.
func (s *SpectralShifter) SynthesisHop() int { return s.synthesisHop }

// WindowType returns the STFT window.
func (s *SpectralShifter) WindowType() window.Type { return s.cfg.window }

// ResampleQuality returns the duration-correction resampler quality.
func (s *SpectralShifter) ResampleQuality() resample.Quality { return s.cfg.quality }

// SetSampleRate updates the sample rate. Frame and hop sizes are in samples
// and do not change.
func (s *SpectralShifter) SetSampleRate(sampleRate float64) error {
	if err := checkSampleRate(sampleRate); err != nil {
		return err
	}
	s.sampleRate = sampleRate
	return nil
}

// SetPitchRatio sets the pitch ratio.
func (s *SpectralShifter) SetPitchRatio(ratio float64) error {
	if err := checkRatio(ratio); err != nil {
		return err
	}
	s.ratio = ratio
	s.updateHops()
	return nil
}

// SetPitchSemitones sets the pitch shift in semitones.
func (s *SpectralShifter) SetPitchSemitones(semitones float64) error {
	ratio, err := semitonesToRatio(semitones)
	if err != nil {
		return err
	}
	if err := s.SetPitchRatio(ratio); err != nil {
		return fmt.Errorf("pitch: %g semitones: %w", semitones, err)
	}
	return nil
}

// SetFrameSize sets the FFT size, a power of two >= 64. A hop that no longer
// fits the frame is reset to a quarter frame.
func (s *SpectralShifter) SetFrameSize(n int) error {
	cfg := s.cfg
	cfg.frameSize = n
	if cfg.analysisHop >= n {
		cfg.analysisHop = max(n/4, 1)
	}
	return s.configure(cfg)
}

// SetAnalysisHop sets the analysis hop in samples.
func (s *SpectralShifter) SetAnalysisHop(hop int) error {
	cfg := s.cfg
	cfg.analysisHop = hop
	return s.configure(cfg)
}

// SetWindowType sets the STFT window.
func (s *SpectralShifter) SetWindowType(t window.Type) error {
	cfg := s.cfg
	cfg.window = t
	return s.configure(cfg)
}

// SetResampleQuality sets the duration-correction resampler quality.
func (s *SpectralShifter) SetResampleQuality(q resample.Quality) {
	s.cfg.quality = q
}

// Reset clears the phase accumulators.
func (s *SpectralShifter) Reset() {
	if s.voc != nil {
		s.voc.reset()
	}
}

// Process returns a pitch-shifted copy of input with the same length. If the
// transform fails it returns an unmodified copy; use ProcessWithError to see
// the failure.
func (s *SpectralShifter) Process(input []float64) []float64 {
	out, err := s.ProcessWithError(input)
	if err != nil {
		return copyOf(input)
	}
	return out
}

// ProcessWithError is Process with the transform error reported.
func (s *SpectralShifter) ProcessWithError(input []float64) ([]float64, error) {
	if len(input) == 0 {
		return nil, nil
	}
	if s.isIdentity() {
		return copyOf(input), nil
	}

	out := input
	for range s.passes {
		var err error
		if out, err = s.stretchAndResample(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ProcessInPlace pitch-shifts buf in place.
func (s *SpectralShifter) ProcessInPlace(buf []float64) {
	copy(buf, s.Process(buf))
}

// ProcessInPlaceWithError is ProcessInPlace with the transform error
// reported. buf is untouched on error.
func (s *SpectralShifter) ProcessInPlaceWithError(buf []float64) error {
	out, err := s.ProcessWithError(buf)
	if err != nil {
		return err
	}
	copy(buf, out)
	return nil
}

func (s *SpectralShifter) configure(cfg spectralConfig) error {
	if err := cfg.check(); err != nil {
		return err
	}
	voc, err := newVocoder(cfg.frameSize, cfg.window)
	if err != nil {
		return err
	}

	s.cfg = cfg
	s.voc = voc
	s.peaks = make([]int, 0, voc.half+1)
	s.updateHops()
	return nil
}

// updateHops picks the stretch and synthesis hops of one pass. Candidate
// stretch hops run from the largest allowed down to half of it; the one whose
// rounded hop ratio is closest to the pass ratio wins, larger hops first.
func (s *SpectralShifter) updateHops() {
	passes, stage := s.stages()

	hi := s.cfg.analysisHop
	if stage > 1 {
		hi = max(int(float64(hi)/stage), 1)
	}
	lo := max(hi/2, 1)

	best, bestErr := hi, math.Inf(1)
	for h := hi; h >= lo; h-- {
		syn := max(math.Round(float64(h)*stage), 1)
		if e := math.Abs(syn/float64(h) - stage); e < bestErr-1e-12 {
			best, bestErr = h, e
		}
	}

	s.passes = passes
	s.stretchHop = best
	s.synthesisHop = max(int(math.Round(float64(best)*stage)), 1)
}

// stretchAndResample runs one pass: stretch by synthesisHop/stretchHop with
// identity phase locking, then resample by the inverse factor with the
// resampler delay compensated.
func (s *SpectralShifter) stretchAndResample(input []float64) ([]float64, error) {
	stretched, err := s.voc.overlapAdd(input, s.stretchHop, s.synthesisHop, s.lockPhases)
	if err != nil {
		return nil, err
	}
	if s.synthesisHop == s.stretchHop {
		return fitLength(stretched, len(input)), nil
	}

	shifted, err := resample.ConvertRate(stretched, float64(s.synthesisHop), float64(s.stretchHop),
		resample.WithQuality(s.cfg.quality))
	if err != nil {
		return nil, fmt.Errorf("pitch: duration correction: %w", err)
	}
	return fitLength(shifted, len(input)), nil
}

// lockPhases advances the phase of each spectral peak by its instantaneous
// frequency and keeps every other bin at its analysis phase offset from the
// nearest peak.
func (s *SpectralShifter) lockPhases(hop float64) {
	v := s.voc

	s.peaks = s.peaks[:0]
	for k := 1; k < v.half; k++ {
		if v.mag[k] >= v.mag[k-1] && v.mag[k] > v.mag[k+1] {
			s.peaks = append(s.peaks, k)
		}
	}

	if len(s.peaks) == 0 {
		for k := 0; k <= v.half; k++ {
			v.sumPhase[k] += v.freq[k] * hop
			v.setBin(k, v.mag[k])
		}
		return
	}

	for _, pk := range s.peaks {
		v.sumPhase[pk] += v.freq[pk] * hop
	}

	nearest := 0
	for k := 0; k <= v.half; k++ {
		for nearest+1 < len(s.peaks) && abs(s.peaks[nearest+1]-k) < abs(s.peaks[nearest]-k) {
			nearest++
		}
		if pk := s.peaks[nearest]; k != pk {
			v.sumPhase[k] = v.sumPhase[pk] + v.prevPhase[k] - v.prevPhase[pk]
		}
		v.setBin(k, v.mag[k])
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
