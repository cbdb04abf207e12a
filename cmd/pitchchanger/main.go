// Command pitchchanger shifts the pitch of a WAV file by a percentage while
// keeping its duration.
//
// Usage:
//
//	pitchchanger [flags] <input_file> <output_file> <pitch_percentage>
//
// Examples:
//
//	pitchchanger input.wav output.wav 10
//	pitchchanger input.wav output.wav -10
//	pitchchanger --algorithm spectral --bit-depth 24 in.wav out.wav 5
//
// The percentage changes frequency: +100 is one octave up, -50 one octave
// down. Changes outside [-50, 100] ask for confirmation unless --yes is
// given.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/cwbudde/wavpitch/audio/wavfile"
	"github.com/cwbudde/wavpitch/dsp/dither"
	"github.com/cwbudde/wavpitch/dsp/pitch"
	"github.com/cwbudde/wavpitch/dsp/resample"
	"github.com/cwbudde/wavpitch/dsp/window"
	"github.com/cwbudde/wavpitch/internal/changer"
	"github.com/cwbudde/wavpitch/internal/cliutil"
	"github.com/cwbudde/wavpitch/internal/console"
	"github.com/cwbudde/wavpitch/internal/prompt"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	yesFlag       = "yes"
	algorithmFlag = "algorithm"
	windowFlag    = "window"
	frameSizeFlag = "frame-size"
	normalizeFlag = "normalize"
	ceilingFlag   = "ceiling"
	bitDepthFlag  = "bit-depth"
	ditherFlag    = "dither"
	shapingFlag   = "noise-shaping"
	rateFlag      = "rate"
	qualityFlag   = "quality"
)

func main() {
	ctx, stop := cliutil.WithSignals(context.Background())
	code := run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	errOut := console.New(stderr)

	envFile, explicit := cliutil.FlagValue(args[1:], cliutil.EnvFileFlag)
	if !explicit {
		envFile = ".env"
	}
	if err := cliutil.LoadEnv(envFile, explicit); err != nil {
		errOut.Errorf("%v", err)
		return 1
	}

	options, positional := cliutil.SplitArgs(args[1:], commandFlags())
	cmd := newCommand(positional, stdin, stdout, stderr)

	err := cmd.Run(ctx, append([]string{args[0]}, options...))
	var ee *cliutil.ExitError
	if err != nil && !errors.As(err, &ee) {
		errOut.Errorf("%v", err)
	}
	return cliutil.ExitCode(err)
}

// commandFlags returns every flag of the command, including the logging
// flags.
func commandFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:    yesFlag,
			Aliases: []string{"y"},
			Usage:   "Skip the confirmation for changes outside [-50, 100] percent",
			Sources: cli.EnvVars(cliutil.EnvVar(yesFlag)),
		},
		&cli.StringFlag{
			Name:    algorithmFlag,
			Usage:   "Pitch shifter (wsola, spectral)",
			Value:   pitch.AlgorithmWSOLA.String(),
			Sources: cli.EnvVars(cliutil.EnvVar(algorithmFlag)),
		},
		&cli.StringFlag{
			Name:    windowFlag,
			Usage:   "Analysis window of the spectral shifter",
			Value:   window.TypeHann.String(),
			Sources: cli.EnvVars(cliutil.EnvVar(windowFlag)),
		},
		&cli.IntFlag{
			Name:    frameSizeFlag,
			Usage:   "FFT frame size of the spectral shifter, a power of two (0 = 1024)",
			Sources: cli.EnvVars(cliutil.EnvVar(frameSizeFlag)),
		},
		&cli.StringFlag{
			Name:    normalizeFlag,
			Usage:   "Output gain: guard (only attenuate above the ceiling), peak, none",
			Value:   wavfile.NormalizeGuard.String(),
			Sources: cli.EnvVars(cliutil.EnvVar(normalizeFlag)),
		},
		&cli.FloatFlag{
			Name:    ceilingFlag,
			Usage:   "Peak ceiling for --normalize, in (0, 1]",
			Value:   1,
			Sources: cli.EnvVars(cliutil.EnvVar(ceilingFlag)),
		},
		&cli.IntFlag{
			Name:    bitDepthFlag,
			Usage:   "Output bit depth: 8, 16, 24 or 32 (0 = same as input)",
			Sources: cli.EnvVars(cliutil.EnvVar(bitDepthFlag)),
		},
		&cli.StringFlag{
			Name:    ditherFlag,
			Usage:   "Dither added when quantizing (none, rectangular, triangular, gaussian, fast-gaussian)",
			Value:   dither.DitherTriangular.String(),
			Sources: cli.EnvVars(cliutil.EnvVar(ditherFlag)),
		},
		&cli.StringFlag{
			Name:    shapingFlag,
			Usage:   "Noise-shaping filter applied when quantizing (none, efb, 2sc, 3fc, 9fc)",
			Value:   dither.Preset9FC.String(),
			Sources: cli.EnvVars(cliutil.EnvVar(shapingFlag)),
		},
		&cli.IntFlag{
			Name:    rateFlag,
			Usage:   "Output sample rate in Hz (0 = same as input)",
			Sources: cli.EnvVars(cliutil.EnvVar(rateFlag)),
		},
		&cli.StringFlag{
			Name:    qualityFlag,
			Usage:   "Resampler quality (fast, balanced, best)",
			Value:   resample.QualityBalanced.String(),
			Sources: cli.EnvVars(cliutil.EnvVar(qualityFlag)),
		},
		&cli.StringFlag{
			Name:  cliutil.EnvFileFlag,
			Usage: "Load environment variables from this file (default .env if present)",
		},
	}
	return append(flags, cliutil.LogFlags()...)
}

func newCommand(positional []string, stdin io.Reader, stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "pitchchanger",
		Usage:     "Change the pitch of a WAV file by a percentage",
		ArgsUsage: "<input_file> <output_file> <pitch_percentage>",
		Version:   version,
		Flags:     commandFlags(),
		Reader:    stdin,
		Writer:    stdout,
		ErrWriter: stderr,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return action(ctx, cmd, positional, stdin, stdout, stderr)
		},
	}
}

func action(ctx context.Context, cmd *cli.Command, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	out := console.New(stdout)
	errOut := console.New(stderr)

	ctx, logger, err := cliutil.Logger(ctx, cmd, stderr)
	if err != nil {
		errOut.Errorf("%v", err)
		return cliutil.Exit(1, "%v", err)
	}

	if len(args) != 3 {
		printUsage(out)
		return cliutil.Exit(1, "expected 3 arguments, got %d", len(args))
	}
	in, outPath := args[0], args[1]

	percent, err := cliutil.ParsePercent(args[2])
	if err != nil {
		errOut.Errorf("Pitch percentage must be a number.")
		return cliutil.Exit(1, "%v", err)
	}
	if err := pitch.ValidatePercent(percent); err != nil {
		errOut.Errorf("%v", err)
		return cliutil.Exit(1, "%v", err)
	}

	opts, err := optionsFromFlags(cmd)
	if err != nil {
		errOut.Errorf("%v", err)
		return cliutil.Exit(1, "%v", err)
	}
	opts.Percent = percent
	opts.Printer = out

	if _, err := os.Stat(in); errors.Is(err, fs.ErrNotExist) {
		errOut.Errorf("Input file '%s' does not exist.", in)
		return cliutil.Exit(1, "input file %s does not exist", in)
	}

	if !pitch.InComfortRange(percent) && !cmd.Bool(yesFlag) {
		out.Warnf("Extreme pitch changes may produce unexpected results.")
		ok, err := prompt.Confirm(ctx, stdin, stdout, "Continue anyway?")
		if err != nil {
			errOut.Errorf("%v", err)
			return cliutil.Exit(1, "%v", err)
		}
		if !ok {
			logger.Info("Declined extreme pitch change.", "percent", percent)
			return nil
		}
	}

	if _, err := changer.Change(ctx, in, outPath, opts); err != nil {
		errOut.Errorf("%v", err)
		return cliutil.Exit(1, "%v", err)
	}
	return nil
}

func optionsFromFlags(cmd *cli.Command) (changer.Options, error) {
	opts := changer.DefaultOptions()

	alg, err := pitch.ParseAlgorithm(cmd.String(algorithmFlag))
	if err != nil {
		return opts, err
	}
	win, err := window.ParseType(cmd.String(windowFlag))
	if err != nil {
		return opts, err
	}
	q, err := resample.ParseQuality(cmd.String(qualityFlag))
	if err != nil {
		return opts, err
	}
	norm, err := wavfile.ParseNormalizeMode(cmd.String(normalizeFlag))
	if err != nil {
		return opts, err
	}
	dt, err := dither.ParseDitherType(cmd.String(ditherFlag))
	if err != nil {
		return opts, err
	}
	shaping, err := dither.ParsePreset(cmd.String(shapingFlag))
	if err != nil {
		return opts, err
	}

	bits := int(cmd.Int(bitDepthFlag))
	if bits != 0 && !wavfile.SupportedBitDepth(bits) {
		return opts, fmt.Errorf("unsupported bit depth %d: want 8, 16, 24 or 32", bits)
	}
	rate := int(cmd.Int(rateFlag))
	if rate < 0 {
		return opts, fmt.Errorf("invalid sample rate %d", rate)
	}
	ceiling := cmd.Float(ceilingFlag)
	if !(ceiling > 0 && ceiling <= 1) {
		return opts, fmt.Errorf("ceiling must be in (0, 1], got %g", ceiling)
	}

	opts.Pitch = pitch.Settings{
		Algorithm: alg,
		Window:    win,
		FrameSize: int(cmd.Int(frameSizeFlag)),
		Quality:   q,
	}
	opts.Normalize = norm
	opts.Ceiling = ceiling
	opts.BitDepth = bits
	opts.Dither = dt
	opts.NoiseShaping = shaping
	opts.SampleRate = rate
	return opts, nil
}

func printUsage(p *console.Printer) {
	p.Printf("Usage: pitchchanger [flags] <input_file> <output_file> <pitch_percentage>")
	p.Printf("")
	p.Printf("Examples:")
	p.Printf("  pitchchanger input.wav output.wav 10    # Increase pitch by 10%%")
	p.Printf("  pitchchanger input.wav output.wav -10   # Decrease pitch by 10%%")
	p.Printf("")
	p.Printf("Run 'pitchchanger --help' for all flags.")
}
