package window

import (
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/algo-vecmath"
)

// Type identifies a window function.
type Type int

const (
	TypeRectangular Type = iota
	TypeHann
	TypeHamming
	TypeBlackman
	TypeBlackmanHarris4Term
	TypeKaiser
	TypeTukey

	typeCount
)

var typeNames = [typeCount]string{
	"rectangular", "hann", "hamming", "blackman", "blackman-harris", "kaiser", "tukey",
}

// defaultAlpha holds the shape parameter used when WithAlpha is not given.
// Only Kaiser (beta) and Tukey (taper fraction) read it.
var defaultAlpha = [typeCount]float64{
	TypeKaiser: 8.6,
	TypeTukey:  0.5,
}

var (
	hannCoeffs            = []float64{0.5, -0.5}
	hammingCoeffs         = []float64{0.54, -0.46}
	blackmanCoeffs        = []float64{0.42, -0.5, 0.08}
	blackmanHarris4Coeffs = []float64{0.35875, -0.48829, 0.14128, -0.01168}
)

// String returns the CLI name of the window type.
func (t Type) String() string {
	if t >= 0 && t < typeCount {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Valid reports whether t is a known window type.
func (t Type) Valid() bool {
	return t >= 0 && t < typeCount
}

// ParseType maps a window name such as "hann" or "blackman-harris" to a Type.
func ParseType(name string) (Type, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for i, n := range typeNames {
		if n == key {
			return Type(i), nil
		}
	}
	return TypeHann, fmt.Errorf("unknown window %q (want one of %s)", name, strings.Join(typeNames[:], ", "))
}

// Option configures window generation.
type Option func(*config)

type config struct {
	alpha    float64
	hasAlpha bool
	periodic bool
}

// WithAlpha configures alpha/beta parameters for parametric windows.
func WithAlpha(v float64) Option {
	return func(c *config) {
		if v >= 0 {
			c.alpha = v
			c.hasAlpha = true
		}
	}
}

// WithPeriodic configures periodic form (FFT framing) instead of symmetric form.
func WithPeriodic() Option {
	return func(c *config) {
		c.periodic = true
	}
}

// Generate returns window coefficients of the given length.
func Generate(t Type, length int, opts ...Option) []float64 {
	if length <= 0 {
		return nil
	}

	var cfg config
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if !cfg.hasAlpha && t.Valid() {
		cfg.alpha = defaultAlpha[t]
	}

	out := make([]float64, length)
	for i := range out {
		x := samplePosition(i, length, cfg.periodic)
		out[i] = evalWindow(t, x, cfg.alpha)
	}

	return out
}

// Apply multiplies buf in-place by the selected window.
func Apply(t Type, buf []float64, opts ...Option) {
	if len(buf) == 0 {
		return
	}

	coeffs := Generate(t, len(buf), opts...)
	if len(coeffs) != len(buf) {
		return
	}

	vecmath.MulBlockInPlace(buf, coeffs)
}

// ApplyCoefficients multiplies samples with coefficients and returns a new slice.
func ApplyCoefficients(samples, coeffs []float64) ([]float64, error) {
	if len(samples) != len(coeffs) {
		return nil, errMismatchedLength
	}

	out := make([]float64, len(samples))
	vecmath.MulBlock(out, samples, coeffs)

	return out, nil
}

func evalWindow(t Type, x, alpha float64) float64 {
	x = min(max(x, 0), 1)

	switch t {
	case TypeHann:
		return cosineSum(x, hannCoeffs)
	case TypeHamming:
		return cosineSum(x, hammingCoeffs)
	case TypeBlackman:
		return cosineSum(x, blackmanCoeffs)
	case TypeBlackmanHarris4Term:
		return cosineSum(x, blackmanHarris4Coeffs)
	case TypeKaiser:
		return kaiser(x, alpha)
	case TypeTukey:
		return tukey(x, alpha)
	default:
		return 1
	}
}

// cosineSum evaluates sum(c[k] * cos(2*pi*k*x)).
func cosineSum(x float64, c []float64) float64 {
	var sum float64
	for k := range c {
		sum += c[k] * math.Cos(2*math.Pi*float64(k)*x)
	}
	return sum
}

// samplePosition maps sample n of a size-point window to [0, 1]. The
// periodic form leaves out the closing sample.
func samplePosition(n, size int, periodic bool) float64 {
	switch {
	case size <= 1:
		return 0
	case periodic:
		return float64(n) / float64(size)
	default:
		return float64(n) / float64(size-1)
	}
}

func kaiser(x, beta float64) float64 {
	if beta <= 0 {
		return 1
	}
	r := 2*x - 1
	return besselI0(beta*math.Sqrt(max(0, 1-r*r))) / besselI0(beta)
}

// tukey is flat in the middle with cosine tapers covering alpha of the
// window. alpha >= 1 gives a Hann window.
func tukey(x, alpha float64) float64 {
	switch {
	case alpha <= 0:
		return 1
	case alpha >= 1:
		return cosineSum(x, hannCoeffs)
	}
	edge := min(x, 1-x)
	if edge >= alpha/2 {
		return 1
	}
	return 0.5 * (1 - math.Cos(2*math.Pi*edge/alpha))
}

// besselI0 sums the power series of the modified Bessel function of the
// first kind, order zero, until the terms stop contributing.
func besselI0(x float64) float64 {
	half := x / 2
	sum, term := 1.0, 1.0
	for k := 1; k < 500; k++ {
		f := half / float64(k)
		term *= f * f
		sum += term
		if term < sum*1e-16 {
			break
		}
	}
	return sum
}
