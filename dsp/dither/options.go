package dither

import (
	"fmt"
	"math/rand/v2"
)

const (
	minBitDepth = 1
	maxBitDepth = 32
)

type config struct {
	bitDepth   int
	ditherType DitherType
	shaping    Preset
	rng        *rand.Rand
}

// Option configures a [Quantizer].
type Option func(*config) error

// WithBitDepth sets the target bit depth, 1 to 32. The default is 16.
func WithBitDepth(bits int) Option {
	return func(cfg *config) error {
		if bits < minBitDepth || bits > maxBitDepth {
			return fmt.Errorf("dither: bit depth must be in [%d, %d]: %d", minBitDepth, maxBitDepth, bits)
		}
		cfg.bitDepth = bits
		return nil
	}
}

// WithDitherType sets the noise distribution. The default is
// [DitherTriangular].
func WithDitherType(dt DitherType) Option {
	return func(cfg *config) error {
		if !dt.Valid() {
			return fmt.Errorf("dither: invalid dither type: %d", int(dt))
		}
		cfg.ditherType = dt
		return nil
	}
}

// WithNoiseShaping sets the error-feedback filter. The default is
// [Preset9FC].
func WithNoiseShaping(p Preset) Option {
	return func(cfg *config) error {
		if !p.Valid() {
			return fmt.Errorf("dither: invalid noise-shaping preset: %d", int(p))
		}
		cfg.shaping = p
		return nil
	}
}

// WithRNG sets the noise source, for reproducible output.
func WithRNG(rng *rand.Rand) Option {
	return func(cfg *config) error {
		cfg.rng = rng
		return nil
	}
}
