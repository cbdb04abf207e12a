// Command batchrunner runs pitchchanger on every WAV file in a folder.
//
// Usage:
//
//	batchrunner [flags] <pitch_percentage>
//
// Files are read from ./inputs and written under the same name to
// ./outputs, which is created when missing. A failing file is reported and
// the run continues. Settings can also come from an HCL file (--config) and
// WAVPITCH_* environment variables, optionally loaded from a .env file.
package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/urfave/cli/v3"

	"github.com/cwbudde/wavpitch/internal/batch"
	"github.com/cwbudde/wavpitch/internal/cliutil"
	"github.com/cwbudde/wavpitch/internal/config"
	"github.com/cwbudde/wavpitch/internal/console"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	percentFlag    = "percent"
	inputDirFlag   = "input-dir"
	outputDirFlag  = "output-dir"
	changerFlag    = "changer"
	changerArgFlag = "changer-arg"
	configFlag     = "config"
	jobsFlag       = "jobs"
	timeoutFlag    = "timeout"
	strictFlag     = "strict"
)

func main() {
	ctx, stop := cliutil.WithSignals(context.Background())
	code := run(ctx, os.Args, os.Stdout, os.Stderr, nil)
	stop()
	os.Exit(code)
}

// run executes the command. command builds the per-file subprocess; nil
// means exec.CommandContext.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, command batch.CommandFunc) int {
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
	cmd := newCommand(positional, stdout, stderr, command)

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
		&cli.FloatFlag{
			Name:    percentFlag,
			Usage:   "Pitch change in percent, instead of the positional argument",
			Sources: cli.EnvVars(cliutil.EnvVar(percentFlag)),
		},
		&cli.StringFlag{
			Name:    inputDirFlag,
			Usage:   "Folder searched for .wav files",
			Value:   batch.DefaultInputDir,
			Sources: cli.EnvVars(cliutil.EnvVar(inputDirFlag)),
		},
		&cli.StringFlag{
			Name:    outputDirFlag,
			Usage:   "Folder receiving the changed files; created when missing",
			Value:   batch.DefaultOutputDir,
			Sources: cli.EnvVars(cliutil.EnvVar(outputDirFlag)),
		},
		&cli.StringFlag{
			Name:    changerFlag,
			Usage:   "pitchchanger executable (default: next to batchrunner, then PATH)",
			Sources: cli.EnvVars(cliutil.EnvVar(changerFlag)),
		},
		&cli.StringSliceFlag{
			Name:  changerArgFlag,
			Usage: "Extra flag passed to every pitchchanger run, repeatable (e.g. --changer-arg=--algorithm=spectral)",
		},
		&cli.StringFlag{
			Name:    configFlag,
			Aliases: []string{"c"},
			Usage:   "HCL configuration file",
			Sources: cli.EnvVars(cliutil.EnvVar(configFlag)),
		},
		&cli.IntFlag{
			Name:    jobsFlag,
			Aliases: []string{"j"},
			Usage:   "Files processed at the same time",
			Value:   1,
			Sources: cli.EnvVars(cliutil.EnvVar(jobsFlag)),
		},
		&cli.DurationFlag{
			Name:    timeoutFlag,
			Usage:   "Time limit per file (0 = none)",
			Sources: cli.EnvVars(cliutil.EnvVar(timeoutFlag)),
		},
		&cli.BoolFlag{
			Name:    strictFlag,
			Usage:   "Exit with status 1 when any file failed",
			Sources: cli.EnvVars(cliutil.EnvVar(strictFlag)),
		},
		&cli.StringFlag{
			Name:  cliutil.EnvFileFlag,
			Usage: "Load environment variables from this file (default .env if present)",
		},
	}
	return append(flags, cliutil.LogFlags()...)
}

func newCommand(positional []string, stdout, stderr io.Writer, command batch.CommandFunc) *cli.Command {
	return &cli.Command{
		Name:      "batchrunner",
		Usage:     "Change the pitch of every WAV file in a folder",
		ArgsUsage: "<pitch_percentage>",
		Version:   version,
		Flags:     commandFlags(),
		Writer:    stdout,
		ErrWriter: stderr,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return action(ctx, cmd, positional, stdout, stderr, command)
		},
	}
}

func action(ctx context.Context, cmd *cli.Command, args []string, stdout, stderr io.Writer, command batch.CommandFunc) error {
	out := console.New(stdout)
	errOut := console.New(stderr)
	fail := func(err error) error {
		errOut.Errorf("%v", err)
		return cliutil.Exit(1, "%v", err)
	}

	ctx, logger, err := cliutil.Logger(ctx, cmd, stderr)
	if err != nil {
		return fail(err)
	}

	if len(args) > 1 {
		printUsage(out)
		return cliutil.Exit(1, "expected 1 argument, got %d", len(args))
	}

	var settings config.Settings
	if path := cmd.String(configFlag); path != "" {
		s, err := config.Load(path, os.Environ())
		if err != nil {
			return fail(err)
		}
		settings = *s
		logger.Debug("Loaded configuration.", "path", path)
	}

	cfg := batch.DefaultConfig()
	cfg.Printer = out
	cfg.Command = command

	switch {
	case len(args) == 1:
		p, err := cliutil.ParsePercent(args[0])
		if err != nil {
			errOut.Errorf("Pitch percentage must be a number.")
			return cliutil.Exit(1, "%v", err)
		}
		cfg.Percent = p
	case cmd.IsSet(percentFlag):
		cfg.Percent = cmd.Float(percentFlag)
	case settings.Percentage != nil:
		cfg.Percent = *settings.Percentage
	default:
		printUsage(out)
		return cliutil.Exit(1, "missing pitch percentage")
	}

	cfg.InputDir = pick(cmd.IsSet(inputDirFlag), cmd.String(inputDirFlag), settings.InputDir, cfg.InputDir)
	cfg.OutputDir = pick(cmd.IsSet(outputDirFlag), cmd.String(outputDirFlag), settings.OutputDir, cfg.OutputDir)
	cfg.Changer = pick(cmd.IsSet(changerFlag), cmd.String(changerFlag), settings.Changer, "")
	cfg.Jobs = pick(cmd.IsSet(jobsFlag), int(cmd.Int(jobsFlag)), settings.Jobs, cfg.Jobs)
	cfg.Timeout = pick(cmd.IsSet(timeoutFlag), cmd.Duration(timeoutFlag), settings.Timeout, cfg.Timeout)
	cfg.Strict = pick(cmd.IsSet(strictFlag), cmd.Bool(strictFlag), settings.Strict, cfg.Strict)
	cfg.ChangerArgs = settings.ChangerArgs
	if cmd.IsSet(changerArgFlag) {
		cfg.ChangerArgs = cmd.StringSlice(changerArgFlag)
	}
	if cfg.Changer == "" {
		cfg.Changer = defaultChanger()
	}
	logger.Debug("Resolved settings.", "changer", cfg.Changer, "input_dir", cfg.InputDir,
		"output_dir", cfg.OutputDir, "jobs", cfg.Jobs, "timeout", cfg.Timeout, "strict", cfg.Strict)

	runner, err := batch.New(cfg)
	if err != nil {
		return fail(err)
	}
	report, err := runner.Run(ctx)
	if err != nil {
		return fail(err)
	}
	if err := report.Err(); err != nil {
		return fail(err)
	}
	return nil
}

// pick returns the flag value when the flag was given, else the config
// value when present, else def.
func pick[T any](flagSet bool, flagValue T, cfgValue *T, def T) T {
	switch {
	case flagSet:
		return flagValue
	case cfgValue != nil:
		return *cfgValue
	default:
		return def
	}
}

// defaultChanger looks for pitchchanger next to the running executable,
// then on PATH.
func defaultChanger() string {
	name := batch.DefaultChanger
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	if self, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(self), name)
		if info, err := os.Stat(sibling); err == nil && !info.IsDir() {
			return sibling
		}
	}
	if path, err := exec.LookPath(name); err == nil {
		return path
	}
	return name
}

func printUsage(p *console.Printer) {
	p.Printf("Usage: batchrunner [flags] <pitch_percentage>")
	p.Printf("Example: batchrunner 10")
	p.Printf("")
	p.Printf("Run 'batchrunner --help' for all flags.")
}
