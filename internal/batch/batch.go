// Package batch runs the pitch changer once per WAV file in a directory and
// reports how many runs succeeded.
package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/wavpitch/dsp/pitch"
	"github.com/cwbudde/wavpitch/internal/console"
	"github.com/cwbudde/wavpitch/internal/ctxlog"
)

var (
	// ErrInputDirNotFound reports a missing input directory.
	ErrInputDirNotFound = errors.New("input folder not found")
	// ErrFailures is returned by Report.Err in strict mode when a file failed.
	ErrFailures = errors.New("batch: some files failed")
)

// Defaults used by DefaultConfig.
const (
	DefaultInputDir  = "inputs"
	DefaultOutputDir = "outputs"
	DefaultChanger   = "pitchchanger"
)

// CommandFunc builds the subprocess for one file. exec.CommandContext is the
// default; tests substitute their own.
type CommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// Config describes a batch run.
type Config struct {
	InputDir  string
	OutputDir string
	Percent   float64

	// Changer is the executable run per file as
	//
	//	Changer --yes [ChangerArgs...] -- <in> <out> <percent>
	Changer     string
	ChangerArgs []string

	// Jobs bounds the number of concurrent subprocesses; 1 is strictly
	// sequential.
	Jobs int
	// Timeout limits each subprocess; 0 disables it.
	Timeout time.Duration
	// Strict makes Report.Err fail when any file failed.
	Strict bool

	Printer *console.Printer
	Command CommandFunc
}

// DefaultConfig returns a sequential run from inputs/ to outputs/.
func DefaultConfig() Config {
	return Config{
		InputDir:  DefaultInputDir,
		OutputDir: DefaultOutputDir,
		Changer:   DefaultChanger,
		Jobs:      1,
	}
}

// Outcome is the result of one subprocess.
type Outcome struct {
	Name    string
	Input   string
	Output  string
	Err     error
	Log     string
	Elapsed time.Duration
}

// OK reports whether the subprocess exited with status 0.
func (o Outcome) OK() bool { return o.Err == nil }

// Report summarizes a run.
type Report struct {
	Total     int
	Succeeded int
	Failed    int
	Elapsed   time.Duration
	// OutputDir is the absolute output location.
	OutputDir string
	// Outcomes are in discovery order.
	Outcomes []Outcome

	strict bool
}

// Err returns an error wrapping ErrFailures if the run was strict and at
// least one file failed.
func (r *Report) Err() error {
	if r == nil || !r.strict || r.Failed == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d of %d", ErrFailures, r.Failed, r.Total)
}

// Runner executes a batch.
type Runner struct {
	cfg Config
	p   *console.Printer

	mu sync.Mutex
}

// New validates cfg and returns a Runner. Zero values for InputDir,
// OutputDir, Changer and Jobs are replaced by the defaults.
func New(cfg Config) (*Runner, error) {
	def := DefaultConfig()
	if cfg.InputDir == "" {
		cfg.InputDir = def.InputDir
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = def.OutputDir
	}
	if cfg.Changer == "" {
		cfg.Changer = def.Changer
	}
	if cfg.Jobs == 0 {
		cfg.Jobs = def.Jobs
	}
	if cfg.Jobs < 0 {
		return nil, fmt.Errorf("batch: jobs must be >= 1, got %d", cfg.Jobs)
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("batch: timeout must not be negative, got %s", cfg.Timeout)
	}
	if err := pitch.ValidatePercent(cfg.Percent); err != nil {
		return nil, err
	}
	if cfg.Command == nil {
		cfg.Command = exec.CommandContext
	}

	p := cfg.Printer
	if p == nil {
		p = console.Discard()
	}
	return &Runner{cfg: cfg, p: p}, nil
}

// Config returns the effective configuration.
func (r *Runner) Config() Config { return r.cfg }

// Run processes every WAV file in the input directory. A failing file is
// counted and reported; it does not stop the run. Run returns an error only
// when the run cannot start or ctx ends.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	logger := ctxlog.FromContext(ctx)
	cfg := r.cfg

	info, err := os.Stat(cfg.InputDir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("%w: '%s'. Please create it and add WAV files", ErrInputDirNotFound, cfg.InputDir)
	case err != nil:
		return nil, fmt.Errorf("batch: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("batch: '%s' is not a folder", cfg.InputDir)
	}

	if _, err := os.Stat(cfg.OutputDir); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return nil, fmt.Errorf("batch: creating output folder: %w", err)
		}
		r.p.Infof("Created '%s' folder.", cfg.OutputDir)
	}

	absOut, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}

	names, err := Discover(cfg.InputDir)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Total:     len(names),
		OutputDir: absOut,
		Outcomes:  make([]Outcome, len(names)),
		strict:    cfg.Strict,
	}
	if len(names) == 0 {
		r.p.Warnf("No WAV files found in '%s'.", cfg.InputDir)
		return report, nil
	}

	r.p.Rule()
	r.p.Bannerf("Starting Batch Processing")
	r.p.Printf("   - Total files: %d", len(names))
	r.p.Printf("   - Pitch change: %s%%", FormatPercent(cfg.Percent))
	r.p.Rule()

	start := time.Now()
	logger.Info("Starting batch.", "input_dir", cfg.InputDir, "output_dir", absOut,
		"files", len(names), "percent", cfg.Percent, "jobs", cfg.Jobs)

	var g errgroup.Group
	g.SetLimit(cfg.Jobs)
	for i, name := range names {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			o := r.process(ctx, i, len(names), name)

			r.mu.Lock()
			defer r.mu.Unlock()
			report.Outcomes[i] = o
			if o.OK() {
				report.Succeeded++
			} else {
				report.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()
	report.Elapsed = time.Since(start)

	if err := ctx.Err(); err != nil {
		logger.Warn("Batch interrupted.", "succeeded", report.Succeeded, "failed", report.Failed)
		return report, err
	}

	r.p.Printf("")
	r.p.Rule()
	r.p.Successf("All tasks completed.")
	r.p.Printf("   - Total duration: %.2fs", report.Elapsed.Seconds())
	r.p.Printf("   - Success: %d", report.Succeeded)
	r.p.Printf("   - Failed:  %d", report.Failed)
	r.p.Printf("   - Output location: %s", report.OutputDir)
	r.p.Rule()

	logger.Info("Batch finished.", "succeeded", report.Succeeded, "failed", report.Failed,
		"elapsed", report.Elapsed)
	return report, nil
}

// process runs the changer for one file and prints its status. With more
// than one job the status lines name the file, since runs interleave.
func (r *Runner) process(ctx context.Context, i, total int, name string) Outcome {
	cfg := r.cfg
	o := Outcome{
		Name:   name,
		Input:  filepath.Join(cfg.InputDir, name),
		Output: filepath.Join(cfg.OutputDir, name),
	}

	r.mu.Lock()
	r.p.Printf("")
	r.p.Printf("[%d/%d] Processing: %s ...", i+1, total, name)
	r.mu.Unlock()

	start := time.Now()
	o.Log, o.Err = r.runChanger(ctx, o.Input, o.Output)
	o.Elapsed = time.Since(start)

	suffix := ""
	if cfg.Jobs > 1 {
		suffix = " (" + name + ")"
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var exitErr *exec.ExitError
	switch {
	case o.Err == nil:
		r.p.Successf("   Success%s", suffix)
	case errors.As(o.Err, &exitErr) || errors.Is(o.Err, context.DeadlineExceeded):
		r.p.Failf("   Failed%s", suffix)
		r.p.Printf("      [Error Log]\n%s", o.Log)
	default:
		r.p.Failf("   Execution Error%s: %v", suffix, o.Err)
	}

	ctxlog.FromContext(ctx).Debug("Processed file.", "file", name, "ok", o.OK(),
		"elapsed", o.Elapsed, "error", o.Err)
	return o
}

// runChanger runs one subprocess and returns its captured stdout and stderr.
func (r *Runner) runChanger(ctx context.Context, in, out string) (string, error) {
	cfg := r.cfg
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	cmd := cfg.Command(ctx, cfg.Changer, ChangerArgs(cfg, in, out)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	log := strings.TrimRight(stdout.String(), "\n") + "\n" + strings.TrimRight(stderr.String(), "\n")
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("timed out after %s: %w", cfg.Timeout, context.DeadlineExceeded)
	}
	return log, err
}

// ChangerArgs returns the argument list passed to the changer for one file.
// The positional arguments follow "--" so negative percentages are not read
// as flags.
func ChangerArgs(cfg Config, in, out string) []string {
	args := make([]string, 0, len(cfg.ChangerArgs)+5)
	args = append(args, "--yes")
	args = append(args, cfg.ChangerArgs...)
	return append(args, "--", in, out, FormatPercent(cfg.Percent))
}

// FormatPercent formats p with the fewest digits that round-trip.
func FormatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
