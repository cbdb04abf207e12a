// Package resample converts sample rates with a polyphase FIR filter.
//
// The anti-aliasing lowpass is a Kaiser-windowed sinc whose length and
// cutoff follow a [Quality]:
//
//	quality    taps/phase   nominal stopband
//	fast       16           ~55 dB
//	balanced   32           ~75 dB
//	best       64           ~90 dB
//
// [Resample] applies an integer up/down ratio to a block. [ConvertRate]
// converts a whole signal between two rates and compensates the filter
// delay, so output sample n lines up with time n/outRate. A [Resampler]
// keeps state between blocks for streaming use.
package resample
