package dither

import (
	"fmt"
	"strings"
)

// Preset identifies a set of FIR noise-shaping coefficients.
type Preset int

const (
	PresetNone Preset = iota // flat error, no feedback
	PresetEFB                // first-order error feedback
	Preset2SC                // second-order highpass
	Preset3FC                // F-weighted, 3rd order
	Preset9FC                // F-weighted, 9th order

	presetCount
)

var presetNames = [presetCount]string{"none", "efb", "2sc", "3fc", "9fc"}

var presetCoeffs = [presetCount][]float64{
	PresetNone: nil,
	PresetEFB:  {1},
	Preset2SC:  {1.0, -0.5},
	Preset3FC:  {1.623, -0.982, 0.109},
	Preset9FC: {
		2.412, -3.370, 3.937, -4.174, 3.353,
		-2.205, 1.281, -0.569, 0.0847,
	},
}

// String returns the command-line name of the preset.
func (p Preset) String() string {
	if p.Valid() {
		return presetNames[p]
	}
	return fmt.Sprintf("Preset(%d)", int(p))
}

// Valid reports whether p is a known preset.
func (p Preset) Valid() bool {
	return p >= 0 && p < presetCount
}

// Order returns the number of past errors the preset feeds back.
func (p Preset) Order() int {
	if !p.Valid() {
		return 0
	}
	return len(presetCoeffs[p])
}

// ParsePreset maps a name such as "9fc" to a Preset, ignoring case.
func ParsePreset(name string) (Preset, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for i, n := range presetNames {
		if n == key {
			return Preset(i), nil
		}
	}
	return PresetNone, fmt.Errorf("dither: unknown noise-shaping preset %q (want one of %s)",
		name, strings.Join(presetNames[:], ", "))
}
