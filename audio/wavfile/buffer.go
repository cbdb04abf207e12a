package wavfile

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Buffer is decoded audio: one slice per channel, all of equal length.
type Buffer struct {
	SampleRate int
	BitDepth   int
	Channels   [][]float64
}

// NumChannels returns the channel count.
func (b *Buffer) NumChannels() int { return len(b.Channels) }

// Frames returns the number of samples per channel.
func (b *Buffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the playing time of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// Peak returns the largest absolute sample value across all channels.
func (b *Buffer) Peak() float64 {
	peak := 0.0
	for _, ch := range b.Channels {
		for _, v := range ch {
			peak = max(peak, math.Abs(v))
		}
	}
	return peak
}

// Level summarizes the loudness of a buffer over all channels.
type Level struct {
	Peak   float64
	PeakDB float64
	RMS    float64
	RMSDB  float64
}

// Level returns the peak and RMS of all samples. Silence reports -Inf dB.
func (b *Buffer) Level() Level {
	var (
		sum float64
		n   int
	)
	peak := 0.0
	for _, ch := range b.Channels {
		for _, v := range ch {
			peak = max(peak, math.Abs(v))
			sum += v * v
		}
		n += len(ch)
	}
	lv := Level{Peak: peak}
	if n > 0 {
		lv.RMS = math.Sqrt(sum / float64(n))
	}
	lv.PeakDB = ampToDB(lv.Peak)
	lv.RMSDB = ampToDB(lv.RMS)
	return lv
}

func ampToDB(a float64) float64 {
	if a == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(a)
}

// Validate checks that the buffer can be encoded.
func (b *Buffer) Validate() error {
	if b.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalid, b.SampleRate)
	}
	if len(b.Channels) == 0 {
		return fmt.Errorf("%w: no channels", ErrInvalid)
	}
	n := len(b.Channels[0])
	for i, ch := range b.Channels[1:] {
		if len(ch) != n {
			return fmt.Errorf("%w: channel %d has %d frames, channel 0 has %d", ErrInvalid, i+1, len(ch), n)
		}
	}
	return nil
}

// NormalizeMode selects how Normalize treats the peak level.
type NormalizeMode int

const (
	// NormalizeGuard scales down only when the peak exceeds the ceiling.
	NormalizeGuard NormalizeMode = iota
	// NormalizePeak always scales the peak to the ceiling.
	NormalizePeak
	// NormalizeNone leaves the samples alone; the encoder clips.
	NormalizeNone
)

var normalizeNames = []string{"guard", "peak", "none"}

func (m NormalizeMode) String() string {
	if m >= 0 && int(m) < len(normalizeNames) {
		return normalizeNames[m]
	}
	return fmt.Sprintf("NormalizeMode(%d)", int(m))
}

// ParseNormalizeMode maps "guard", "peak" or "none" to a NormalizeMode.
func ParseNormalizeMode(name string) (NormalizeMode, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for i, n := range normalizeNames {
		if n == key {
			return NormalizeMode(i), nil
		}
	}
	return NormalizeGuard, fmt.Errorf("wavfile: unknown normalize mode %q (want guard, peak or none)", name)
}

// Normalize applies a common gain to all channels according to mode and
// returns it. ceiling is the target peak in (0, 1]. Silent buffers are left
// untouched.
func (b *Buffer) Normalize(mode NormalizeMode, ceiling float64) (float64, error) {
	if !(ceiling > 0 && ceiling <= 1) {
		return 1, fmt.Errorf("wavfile: normalize ceiling must be in (0, 1]: %g", ceiling)
	}

	peak := b.Peak()
	gain := 1.0
	switch mode {
	case NormalizeNone:
		return 1, nil
	case NormalizeGuard:
		if peak > ceiling {
			gain = ceiling / peak
		}
	case NormalizePeak:
		if peak > 0 {
			gain = ceiling / peak
		}
	default:
		return 1, fmt.Errorf("wavfile: unknown normalize mode %v", mode)
	}

	if gain != 1 {
		for _, ch := range b.Channels {
			for i := range ch {
				ch[i] *= gain
			}
		}
	}
	return gain, nil
}
