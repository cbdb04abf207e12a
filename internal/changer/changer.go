// Package changer implements the single-file pitch change: load a WAV file,
// shift every channel by a percentage, and save the result.
package changer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/wavpitch/audio/wavfile"
	"github.com/cwbudde/wavpitch/dsp/dither"
	"github.com/cwbudde/wavpitch/dsp/pitch"
	"github.com/cwbudde/wavpitch/dsp/resample"
	"github.com/cwbudde/wavpitch/internal/console"
	"github.com/cwbudde/wavpitch/internal/ctxlog"
)

// ErrInputNotFound reports a missing input file.
var ErrInputNotFound = errors.New("input file does not exist")

// Options configures Change.
type Options struct {
	// Percent is the frequency change; +10 is 10% higher.
	Percent float64
	// Pitch selects and tunes the shifter.
	Pitch pitch.Settings
	// Normalize and Ceiling control the gain applied before saving.
	Normalize wavfile.NormalizeMode
	Ceiling   float64
	// BitDepth of the output; 0 keeps the input depth.
	BitDepth int
	// Dither and NoiseShaping are applied when quantizing the output.
	Dither       dither.DitherType
	NoiseShaping dither.Preset
	// SampleRate of the output; 0 keeps the input rate.
	SampleRate int
	// Printer receives the progress lines. nil discards them.
	Printer *console.Printer
}

// DefaultOptions returns the settings used when no flags are given.
func DefaultOptions() Options {
	return Options{
		Pitch:        pitch.DefaultSettings(),
		Normalize:    wavfile.NormalizeGuard,
		Ceiling:      1,
		Dither:       dither.DitherTriangular,
		NoiseShaping: dither.Preset9FC,
	}
}

// Result describes a completed change.
type Result struct {
	Semitones  float64
	Ratio      float64
	SampleRate int
	BitDepth   int
	Channels   int
	Frames     int
	Gain       float64

	// InputLevel is measured after decoding, OutputLevel before encoding.
	InputLevel  wavfile.Level
	OutputLevel wavfile.Level

	Elapsed time.Duration
}

// Change reads in, shifts its pitch by opts.Percent and writes out. Channels
// are processed independently and concurrently, each with its own shifter.
func Change(ctx context.Context, in, out string, opts Options) (*Result, error) {
	start := time.Now()
	logger := ctxlog.FromContext(ctx)
	p := opts.Printer
	if p == nil {
		p = console.Discard()
	}

	semitones, err := pitch.PercentToSemitones(opts.Percent)
	if err != nil {
		return nil, err
	}
	ratio, _ := pitch.PercentToRatio(opts.Percent)

	if _, err := os.Stat(in); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: '%s'", ErrInputNotFound, in)
		}
		return nil, fmt.Errorf("checking input: %w", err)
	}

	p.Infof("Loading audio file: %s", in)
	buf, err := wavfile.Load(in)
	if err != nil {
		return nil, err
	}
	inLevel := buf.Level()
	logger.Debug("Decoded input.", "path", in, "sample_rate", buf.SampleRate,
		"bit_depth", buf.BitDepth, "channels", buf.NumChannels(), "frames", buf.Frames(),
		"peak_db", inLevel.PeakDB, "rms_db", inLevel.RMSDB)

	p.Infof("Pitch change: %g%% (%.2f semitones)", opts.Percent, semitones)

	p.Infof("Applying pitch shift...")
	if err := shiftChannels(ctx, buf, ratio, opts.Pitch); err != nil {
		return nil, err
	}

	if opts.SampleRate > 0 && opts.SampleRate != buf.SampleRate {
		logger.Debug("Converting sample rate.", "from", buf.SampleRate, "to", opts.SampleRate,
			"quality", opts.Pitch.Quality)
		if err := convertRate(ctx, buf, opts.SampleRate, opts.Pitch.Quality); err != nil {
			return nil, err
		}
	}

	ceiling := opts.Ceiling
	if ceiling == 0 {
		ceiling = 1
	}
	gain, err := buf.Normalize(opts.Normalize, ceiling)
	if err != nil {
		return nil, err
	}
	outLevel := buf.Level()
	if gain != 1 {
		logger.Debug("Normalized output.", "mode", opts.Normalize, "gain", gain,
			"peak_db", outLevel.PeakDB)
	}

	saveOpts := []wavfile.SaveOption{
		wavfile.WithDither(opts.Dither),
		wavfile.WithNoiseShaping(opts.NoiseShaping),
	}
	if opts.BitDepth != 0 {
		saveOpts = append(saveOpts, wavfile.WithBitDepth(opts.BitDepth))
	}

	p.Infof("Saving output file: %s", out)
	if err := wavfile.Save(out, buf, saveOpts...); err != nil {
		return nil, err
	}

	res := &Result{
		Semitones:   semitones,
		Ratio:       ratio,
		SampleRate:  buf.SampleRate,
		BitDepth:    buf.BitDepth,
		Channels:    buf.NumChannels(),
		Frames:      buf.Frames(),
		Gain:        gain,
		InputLevel:  inLevel,
		OutputLevel: outLevel,
		Elapsed:     time.Since(start),
	}
	if opts.BitDepth != 0 {
		res.BitDepth = opts.BitDepth
	}

	p.Successf("Done! Pitch changed successfully.")
	logger.Info("Pitch changed.", "input", in, "output", out, "percent", opts.Percent,
		"semitones", semitones, "algorithm", opts.Pitch.Algorithm, "elapsed", res.Elapsed)
	return res, nil
}

// errorProcessor is implemented by shifters that can report transform
// failures instead of falling back to a copy.
type errorProcessor interface {
	ProcessWithError(input []float64) ([]float64, error)
}

func shiftChannels(ctx context.Context, buf *wavfile.Buffer, ratio float64, st pitch.Settings) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for ch := range buf.Channels {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			s, err := st.New(float64(buf.SampleRate), ratio)
			if err != nil {
				return err
			}

			if ep, ok := s.(errorProcessor); ok {
				shifted, err := ep.ProcessWithError(buf.Channels[ch])
				if err != nil {
					return fmt.Errorf("channel %d: %w", ch, err)
				}
				buf.Channels[ch] = shifted
				return nil
			}
			buf.Channels[ch] = s.Process(buf.Channels[ch])
			return nil
		})
	}
	return g.Wait()
}

func convertRate(ctx context.Context, buf *wavfile.Buffer, rate int, q resample.Quality) error {
	for ch, samples := range buf.Channels {
		if err := ctx.Err(); err != nil {
			return err
		}
		converted, err := resample.ConvertRate(samples, float64(buf.SampleRate), float64(rate),
			resample.WithQuality(q))
		if err != nil {
			return fmt.Errorf("channel %d: %w", ch, err)
		}
		buf.Channels[ch] = converted
	}
	buf.SampleRate = rate
	return nil
}
