package dither

import (
	"fmt"
	"strings"
)

// DitherType selects the probability distribution of the dither noise.
type DitherType int

const (
	// DitherNone truncates without noise.
	DitherNone DitherType = iota
	// DitherRectangular adds uniform noise of ±1 LSB.
	DitherRectangular
	// DitherTriangular adds triangular (TPDF) noise, the usual choice.
	DitherTriangular
	// DitherGaussian adds normally distributed noise.
	DitherGaussian
	// DitherFastGaussian approximates Gaussian noise with a sum of six
	// uniform draws.
	DitherFastGaussian

	ditherTypeCount
)

var ditherTypeNames = [ditherTypeCount]string{
	"none", "rectangular", "triangular", "gaussian", "fast-gaussian",
}

// String returns the command-line name of the dither type.
func (dt DitherType) String() string {
	if dt.Valid() {
		return ditherTypeNames[dt]
	}
	return fmt.Sprintf("DitherType(%d)", int(dt))
}

// Valid reports whether dt is a known dither type.
func (dt DitherType) Valid() bool {
	return dt >= 0 && dt < ditherTypeCount
}

// ParseDitherType maps a name such as "triangular" to a DitherType.
// Matching ignores case and surrounding blanks.
func ParseDitherType(name string) (DitherType, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for i, n := range ditherTypeNames {
		if n == key {
			return DitherType(i), nil
		}
	}
	return DitherNone, fmt.Errorf("dither: unknown dither type %q (want one of %s)",
		name, strings.Join(ditherTypeNames[:], ", "))
}
