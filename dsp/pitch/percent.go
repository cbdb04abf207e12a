package pitch

import (
	"errors"
	"fmt"
	"math"
)

// Comfort range for percentage shifts. Outside it the shifters still work
// but artifacts become clearly audible.
const (
	ComfortMinPercent = -50.0
	ComfortMaxPercent = 100.0
)

var (
	// ErrPercentNotFinite reports a NaN or infinite percentage.
	ErrPercentNotFinite = errors.New("pitch: percentage must be finite")
	// ErrPercentOutOfDomain reports a percentage <= -100, for which the
	// frequency ratio is zero or negative and the logarithm is undefined.
	ErrPercentOutOfDomain = errors.New("pitch: percentage must be greater than -100")
)

// ValidatePercent checks that p can be converted to a pitch ratio.
func ValidatePercent(p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return fmt.Errorf("%w: %v", ErrPercentNotFinite, p)
	}
	if p <= -100 {
		return fmt.Errorf("%w: %g", ErrPercentOutOfDomain, p)
	}
	return nil
}

// PercentToRatio converts a percentage change of frequency to a pitch ratio.
// +10 means 10% higher (ratio 1.1), -50 means one octave down (ratio 0.5).
func PercentToRatio(p float64) (float64, error) {
	if err := ValidatePercent(p); err != nil {
		return 0, err
	}
	return 1 + p/100, nil
}

// PercentToSemitones converts a percentage change of frequency to semitones:
// 12 * log2(1 + p/100).
func PercentToSemitones(p float64) (float64, error) {
	ratio, err := PercentToRatio(p)
	if err != nil {
		return 0, err
	}
	return 12 * math.Log2(ratio), nil
}

// SemitonesToPercent is the inverse of PercentToSemitones.
func SemitonesToPercent(semitones float64) float64 {
	return (math.Exp2(semitones/12) - 1) * 100
}

// InComfortRange reports whether p lies in [ComfortMinPercent, ComfortMaxPercent].
func InComfortRange(p float64) bool {
	return p >= ComfortMinPercent && p <= ComfortMaxPercent
}
