// Package dither converts floating-point samples to integer PCM.
//
// A [Quantizer] scales [-1, +1] input onto the integer range of a bit depth,
// adds one LSB of dither noise drawn from a [DitherType] and feeds the
// quantization error back through an FIR filter selected by a [Preset].
// Output is always limited to the representable range.
package dither
