// Package cliutil holds the pieces shared by the command-line tools: exit
// codes, argument preprocessing, logging flags, .env loading and signal
// handling.
package cliutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/cwbudde/wavpitch/internal/ctxlog"
)

// EnvPrefix prefixes every environment variable the tools read.
const EnvPrefix = "WAVPITCH_"

// Flag names shared by both tools.
const (
	LogLevelFlag  = "log-level"
	LogFormatFlag = "log-format"
	EnvFileFlag   = "env-file"
)

// ErrNotANumber reports a percentage argument that does not parse.
var ErrNotANumber = errors.New("pitch percentage must be a number")

// ExitError carries the process exit code out of a command action. Message,
// if set, has already been shown to the user.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Exit returns an *ExitError with the given code.
func Exit(code int, format string, a ...any) error {
	return &ExitError{Code: code, Message: fmt.Sprintf(format, a...)}
}

// ExitCode maps an error returned by cli.Command.Run to a process exit code:
// 0 for nil, the carried code for an *ExitError and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return 1
}

// EnvVar returns the environment variable name for a flag.
func EnvVar(flag string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

// LogFlags returns the --log-level and --log-format flags.
func LogFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     LogLevelFlag,
			Usage:    "Structured log level (" + strings.Join(ctxlog.Levels, ", ") + ")",
			Category: "logging",
			Value:    "warn",
			Sources:  cli.EnvVars(EnvVar(LogLevelFlag)),
		},
		&cli.StringFlag{
			Name:     LogFormatFlag,
			Usage:    "Structured log format (" + strings.Join(ctxlog.Formats, ", ") + ")",
			Category: "logging",
			Value:    "text",
			Sources:  cli.EnvVars(EnvVar(LogFormatFlag)),
		},
	}
}

// Logger builds the logger selected by the log flags of cmd and returns ctx
// carrying it.
func Logger(ctx context.Context, cmd *cli.Command, w io.Writer) (context.Context, *slog.Logger, error) {
	logger, err := ctxlog.New(w, cmd.String(LogLevelFlag), cmd.String(LogFormatFlag))
	if err != nil {
		return ctx, nil, err
	}
	return ctxlog.WithLogger(ctx, logger), logger, nil
}

// ParsePercent parses a percentage argument. NaN and infinities are
// rejected.
func ParsePercent(s string) (float64, error) {
	p, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, fmt.Errorf("%w: %q", ErrNotANumber, s)
	}
	return p, nil
}

// LoadEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is an
// error only when required is true.
func LoadEnv(path string, required bool) error {
	err := godotenv.Load(path)
	if err == nil || (!required && errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

// FlagValue scans raw command-line arguments for --name=value or
// --name value and reports the last value found. It is used for flags that
// must take effect before the arguments are parsed.
func FlagValue(args []string, name string) (string, bool) {
	var (
		value string
		found bool
	)
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			break
		}
		for _, prefix := range []string{"--", "-"} {
			switch {
			case a == prefix+name && i+1 < len(args):
				value, found = args[i+1], true
				i++
			case strings.HasPrefix(a, prefix+name+"="):
				value, found = strings.TrimPrefix(a, prefix+name+"="), true
			default:
				continue
			}
			break
		}
	}
	return value, found
}
