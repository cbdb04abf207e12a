package dither

import (
	"math"
	"math/rand/v2"
)

// Quantizer maps float samples to integer PCM of one channel. It keeps the
// noise-shaping error history, so each channel needs its own Quantizer.
type Quantizer struct {
	bits    int
	dt      DitherType
	shaping Preset
	rng     *rand.Rand

	// scale maps +1.0 to just below the top of the integer range, so that
	// v = floor(x*scale) and x = (v+0.5)/scale invert each other.
	scale  float64
	lo, hi int

	coeffs []float64
	errs   []float64 // ring of past errors; errs[last] is the newest
	last   int
}

// NewQuantizer returns a Quantizer. Without options it produces 16-bit
// output with triangular dither and 9th-order F-weighted noise shaping.
func NewQuantizer(opts ...Option) (*Quantizer, error) {
	cfg := config{
		bitDepth:   16,
		ditherType: DitherTriangular,
		shaping:    Preset9FC,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	q := &Quantizer{
		bits:    cfg.bitDepth,
		dt:      cfg.ditherType,
		shaping: cfg.shaping,
		rng:     cfg.rng,
		scale:   math.Exp2(float64(cfg.bitDepth-1)) - 0.5,
		coeffs:  presetCoeffs[cfg.shaping],
		errs:    make([]float64, cfg.shaping.Order()),
	}
	if q.rng == nil {
		q.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	q.lo = -int(math.Round(q.scale + 0.5))
	q.hi = int(math.Round(q.scale - 0.5))
	return q, nil
}

// Quantize converts one sample in [-1, +1] to an integer in the range of
// the bit depth.
func (q *Quantizer) Quantize(x float64) int {
	shaped := q.shape(q.scale * x)
	v := int(math.Floor(shaped + q.noise()))
	v = max(q.lo, min(q.hi, v))
	q.record(float64(v) - shaped)
	return v
}

// ProcessBlock quantizes src into dst, which must be at least as long.
func (q *Quantizer) ProcessBlock(dst []int, src []float64) {
	for i, x := range src {
		dst[i] = q.Quantize(x)
	}
}

// Decode returns the float sample an integer stands for. It inverts
// Quantize exactly when dither and shaping are off.
func (q *Quantizer) Decode(v int) float64 {
	return (float64(v) + 0.5) / q.scale
}

// Scale returns the factor between a [-1, +1] sample and the integer range.
func (q *Quantizer) Scale() float64 { return q.scale }

// Range returns the smallest and largest output values.
func (q *Quantizer) Range() (lo, hi int) { return q.lo, q.hi }

// BitDepth returns the target bit depth.
func (q *Quantizer) BitDepth() int { return q.bits }

// DitherType returns the noise distribution.
func (q *Quantizer) DitherType() DitherType { return q.dt }

// Shaping returns the noise-shaping preset.
func (q *Quantizer) Shaping() Preset { return q.shaping }

// Reset clears the error history.
func (q *Quantizer) Reset() {
	clear(q.errs)
	q.last = 0
}

// shape subtracts the weighted past errors from x.
func (q *Quantizer) shape(x float64) float64 {
	n := len(q.errs)
	for i, c := range q.coeffs {
		x -= c * q.errs[(q.last-i+n)%n]
	}
	return x
}

func (q *Quantizer) record(e float64) {
	if len(q.errs) == 0 {
		return
	}
	q.last = (q.last + 1) % len(q.errs)
	q.errs[q.last] = e
}

// noise returns one dither draw in LSB.
func (q *Quantizer) noise() float64 {
	switch q.dt {
	case DitherRectangular:
		return q.rng.Float64()*2 - 1
	case DitherTriangular:
		return q.rng.Float64() - q.rng.Float64()
	case DitherGaussian:
		return q.rng.NormFloat64()
	case DitherFastGaussian:
		var sum float64
		for range 6 {
			sum += q.rng.Float64()
		}
		return sum - 3
	default:
		return 0
	}
}
