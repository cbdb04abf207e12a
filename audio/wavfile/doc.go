// Package wavfile loads and saves linear PCM WAV files as de-interleaved
// float64 channels in [-1, +1].
//
// Decoding and encoding go through github.com/go-audio/wav. Integer PCM at
// 8, 16, 24 and 32 bits is supported, with either the plain PCM format tag
// or WAVE_FORMAT_EXTENSIBLE carrying a PCM subformat. Saving quantizes each channel with a
// [dither.Quantizer], so the output bit depth, dither and noise shaping are
// configurable.
package wavfile
