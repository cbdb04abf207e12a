package resample

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrInvalidRatio reports a non-positive up or down factor.
	ErrInvalidRatio = errors.New("resample: invalid ratio")
	// ErrInvalidRate reports a non-positive or non-finite sample rate.
	ErrInvalidRate = errors.New("resample: invalid sample rate")
)

// Quality selects the anti-aliasing filter.
type Quality int

const (
	// QualityFast uses short filters.
	QualityFast Quality = iota
	// QualityBalanced is the default.
	QualityBalanced
	// QualityBest uses long filters with the widest passband.
	QualityBest

	qualityCount
)

var qualityNames = [qualityCount]string{"fast", "balanced", "best"}

// String returns the command-line name of q.
func (q Quality) String() string {
	if q >= 0 && q < qualityCount {
		return qualityNames[q]
	}
	return fmt.Sprintf("Quality(%d)", int(q))
}

// ParseQuality maps "fast", "balanced" or "best" to a Quality, ignoring case.
func ParseQuality(name string) (Quality, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for i, n := range qualityNames {
		if n == key {
			return Quality(i), nil
		}
	}
	return QualityBalanced, fmt.Errorf("resample: unknown quality %q (want %s)",
		name, strings.Join(qualityNames[:], ", "))
}

type config struct {
	quality Quality
	maxDen  int
}

// Option configures a Resampler.
type Option func(*config)

// WithQuality selects the filter quality. Unknown values fall back to
// QualityBalanced.
func WithQuality(q Quality) Option {
	return func(c *config) {
		if q >= 0 && q < qualityCount {
			c.quality = q
		}
	}
}

// WithMaxDenominator bounds the denominator NewForRates uses when it
// approximates a rate ratio. The default is 4096.
func WithMaxDenominator(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDen = n
		}
	}
}

func buildConfig(opts []Option) config {
	c := config{quality: QualityBalanced, maxDen: 4096}
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	return c
}

// Resampler converts a stream by the ratio up/down.
type Resampler struct {
	up, down int
	quality  Quality
	nTaps    int

	// phases[p][k] weights input sample next-k for output phase p.
	phases [][]float64
	span   int

	phase    int
	next     int // absolute input index the next output is anchored at
	consumed int
	tail     []float64 // last span-1 input samples
}

// NewRational returns a Resampler for the ratio up/down, reduced to lowest
// terms.
func NewRational(up, down int, opts ...Option) (*Resampler, error) {
	if up <= 0 || down <= 0 {
		return nil, ErrInvalidRatio
	}
	g := gcd(up, down)
	up, down = up/g, down/g

	cfg := buildConfig(opts)
	phases, nTaps, err := design(up, down, profiles[cfg.quality])
	if err != nil {
		return nil, err
	}

	r := &Resampler{
		up:      up,
		down:    down,
		quality: cfg.quality,
		nTaps:   nTaps,
		phases:  phases,
	}
	for _, p := range phases {
		r.span = max(r.span, len(p))
	}
	return r, nil
}

// NewForRates returns a Resampler from inRate to outRate, approximating the
// ratio by a fraction.
func NewForRates(inRate, outRate float64, opts ...Option) (*Resampler, error) {
	if !validRate(inRate) || !validRate(outRate) {
		return nil, ErrInvalidRate
	}
	up, down := approximateRatio(outRate/inRate, buildConfig(opts).maxDen)
	return NewRational(up, down, opts...)
}

// Resample converts a block by up/down with a fresh Resampler. The output
// is not delay compensated.
func Resample(input []float64, up, down int, opts ...Option) ([]float64, error) {
	r, err := NewRational(up, down, opts...)
	if err != nil {
		return nil, err
	}
	return r.Process(input), nil
}

// ConvertRate converts a complete signal from inRate to outRate. The result
// has round(len(input)*outRate/inRate) samples and is delay compensated.
// Equal rates return a copy.
func ConvertRate(input []float64, inRate, outRate float64, opts ...Option) ([]float64, error) {
	if !validRate(inRate) || !validRate(outRate) {
		return nil, ErrInvalidRate
	}
	if len(input) == 0 {
		return nil, nil
	}
	if inRate == outRate {
		return append([]float64(nil), input...), nil
	}

	r, err := NewForRates(inRate, outRate, opts...)
	if err != nil {
		return nil, err
	}

	delay := r.Delay()
	// Flush enough zeros through the filter to emit the delayed tail.
	pad := (delay*r.down+r.up-1)/r.up + 1
	padded := make([]float64, len(input)+pad)
	copy(padded, input)
	full := r.Process(padded)

	out := make([]float64, int(math.Round(float64(len(input))*outRate/inRate)))
	if delay < len(full) {
		copy(out, full[delay:])
	}
	return out, nil
}

// Process converts the next block of the stream.
func (r *Resampler) Process(input []float64) []float64 {
	if len(input) == 0 {
		return nil
	}

	buf := make([]float64, 0, len(r.tail)+len(input))
	buf = append(buf, r.tail...)
	buf = append(buf, input...)
	base := r.consumed - len(r.tail)
	end := r.consumed + len(input)

	out := make([]float64, 0, (len(input)*r.up)/r.down+1)
	for r.next < end {
		var y float64
		for k, c := range r.phases[r.phase] {
			j := r.next - k
			if j < base {
				break
			}
			y += c * buf[j-base]
		}
		out = append(out, y)

		r.phase += r.down
		r.next += r.phase / r.up
		r.phase %= r.up
	}

	r.consumed = end
	keep := min(max(r.span-1, 0), len(buf))
	r.tail = append(r.tail[:0], buf[len(buf)-keep:]...)
	return out
}

// Reset clears the stream state.
func (r *Resampler) Reset() {
	r.phase, r.next, r.consumed = 0, 0, 0
	r.tail = r.tail[:0]
}

// Ratio returns the reduced up and down factors.
func (r *Resampler) Ratio() (up, down int) { return r.up, r.down }

// Quality returns the filter quality.
func (r *Resampler) Quality() Quality { return r.quality }

// TapsPerPhase returns the length of the first polyphase branch.
func (r *Resampler) TapsPerPhase() int { return len(r.phases[0]) }

// Delay returns the filter group delay in output samples.
func (r *Resampler) Delay() int {
	return int(math.Round(0.5 * float64(r.nTaps-1) / float64(r.down)))
}

func validRate(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
