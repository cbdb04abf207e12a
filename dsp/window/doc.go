// Package window generates the tapering windows used by the spectral pitch
// shifter and the resampler's Kaiser filter design.
//
// Coefficients are produced by [Generate]; [WithPeriodic] selects the
// periodic (FFT framing) form. Multiplication is delegated to algo-vecmath.
package window
