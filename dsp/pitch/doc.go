// Package pitch shifts the pitch of mono float64 buffers without changing
// their duration, and converts between the units used to describe a shift.
//
// Two interchangeable [Shifter] implementations are provided:
//   - [WSOLAShifter]: time-domain waveform-similarity overlap-add followed by
//     cubic resampling. Cheap and robust on percussive material.
//   - [SpectralShifter]: STFT phase vocoder. It time-stretches with identity
//     phase locking and resamples afterwards.
//
// Any positive finite ratio is accepted. Shifts of more than two octaves run
// as several equal passes of at most [MaxStageRatio].
//
// A shift is described as a ratio (2 = one octave up), in semitones, or as a
// percentage change of frequency. The conversions are
//
//	ratio     = 1 + percent/100
//	semitones = 12 * log2(ratio)
//
// so percentages must be greater than -100.
package pitch
