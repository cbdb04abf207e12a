package pitch

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/wavpitch/dsp/resample"
	"github.com/cwbudde/wavpitch/dsp/window"
)

// MaxStageRatio bounds the shift applied in one pass, in either direction.
// Larger shifts are split into equal passes, so any positive ratio works.
const MaxStageRatio = 4.0

const (
	identityEps = 1e-9
	tiny        = 1e-12
)

// ErrRatioOutOfRange reports a pitch ratio that is not positive and finite.
var ErrRatioOutOfRange = errors.New("pitch: ratio out of range")

// Shifter is the API shared by the interchangeable pitch shifters.
type Shifter interface {
	SampleRate() float64
	SetSampleRate(sampleRate float64) error

	PitchRatio() float64
	PitchSemitones() float64
	SetPitchRatio(ratio float64) error
	SetPitchSemitones(semitones float64) error

	Reset()
	Process(input []float64) []float64
	ProcessInPlace(buf []float64)
}

var (
	_ Shifter = (*WSOLAShifter)(nil)
	_ Shifter = (*SpectralShifter)(nil)
)

// Algorithm selects a Shifter implementation.
type Algorithm int

const (
	AlgorithmWSOLA Algorithm = iota
	AlgorithmSpectral
)

var algorithmNames = map[Algorithm]string{
	AlgorithmWSOLA:    "wsola",
	AlgorithmSpectral: "spectral",
}

func (a Algorithm) String() string {
	if name, ok := algorithmNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Algorithm(%d)", int(a))
}

// ParseAlgorithm maps "wsola" or "spectral" to an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for a, n := range algorithmNames {
		if n == key {
			return a, nil
		}
	}
	return AlgorithmWSOLA, fmt.Errorf("pitch: unknown algorithm %q (want wsola or spectral)", name)
}

// Settings selects and tunes a Shifter. Fields that only apply to the
// spectral shifter are ignored by WSOLA.
type Settings struct {
	Algorithm Algorithm
	Window    window.Type
	FrameSize int // 0 keeps the default
	Quality   resample.Quality
}

// DefaultSettings returns WSOLA with the spectral defaults filled in.
func DefaultSettings() Settings {
	return Settings{
		Algorithm: AlgorithmWSOLA,
		Window:    window.TypeHann,
		Quality:   resample.QualityBalanced,
	}
}

// New builds the configured Shifter for sampleRate with the given ratio.
func (st Settings) New(sampleRate, ratio float64) (Shifter, error) {
	var (
		s   Shifter
		err error
	)

	switch st.Algorithm {
	case AlgorithmWSOLA:
		s, err = NewWSOLAShifter(sampleRate)
	case AlgorithmSpectral:
		opts := []SpectralOption{
			WithWindow(st.Window),
			WithResampleQuality(st.Quality),
		}
		if st.FrameSize > 0 {
			opts = append(opts, WithFrameSize(st.FrameSize))
		}
		s, err = NewSpectralShifter(sampleRate, opts...)
	default:
		return nil, fmt.Errorf("pitch: unknown algorithm %v", st.Algorithm)
	}
	if err != nil {
		return nil, err
	}

	if err := s.SetPitchRatio(ratio); err != nil {
		return nil, err
	}
	return s, nil
}

// ratioState holds the sample rate and ratio common to every shifter.
type ratioState struct {
	sampleRate float64
	ratio      float64
}

// SampleRate returns the current sample rate in Hz.
func (r *ratioState) SampleRate() float64 { return r.sampleRate }

// PitchRatio returns the pitch ratio.
func (r *ratioState) PitchRatio() float64 { return r.ratio }

// PitchSemitones returns the current pitch shift in semitones.
func (r *ratioState) PitchSemitones() float64 { return 12.0 * math.Log2(r.ratio) }

func (r *ratioState) isIdentity() bool {
	return math.Abs(r.ratio-1) <= identityEps
}

// stages splits the ratio into n equal passes of at most MaxStageRatio (or
// at least 1/MaxStageRatio) each.
func (r *ratioState) stages() (n int, stage float64) {
	octaves := math.Abs(math.Log2(r.ratio)) / math.Log2(MaxStageRatio)
	n = max(1, int(math.Ceil(octaves-1e-9)))
	return n, math.Pow(r.ratio, 1/float64(n))
}

func checkSampleRate(sampleRate float64) error {
	if !isFinitePositive(sampleRate) {
		return fmt.Errorf("pitch: sample rate must be positive and finite: %f", sampleRate)
	}
	return nil
}

func checkRatio(ratio float64) error {
	if !isFinitePositive(ratio) {
		return fmt.Errorf("%w: %f is not positive and finite", ErrRatioOutOfRange, ratio)
	}
	return nil
}

func semitonesToRatio(semitones float64) (float64, error) {
	if math.IsNaN(semitones) || math.IsInf(semitones, 0) {
		return 0, fmt.Errorf("pitch: semitones must be finite: %f", semitones)
	}
	return math.Exp2(semitones / 12.0), nil
}

func copyOf(in []float64) []float64 {
	out := make([]float64, len(in))
	copy(out, in)
	return out
}

func fitLength(in []float64, n int) []float64 {
	out := make([]float64, n)
	copy(out, in)
	return out
}

func isFinitePositive(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
