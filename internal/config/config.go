// Package config reads the optional HCL file that supplies defaults for a
// batch run.
//
// Every attribute is optional:
//
//	input_dir    = "inputs"
//	output_dir   = "outputs/${env.USER}"
//	percentage   = 10
//	changer      = "./pitchchanger"
//	changer_args = ["--algorithm", "spectral"]
//	jobs         = 4
//	timeout      = "2m"
//	strict       = true
//
// Expressions can read the process environment through the env object.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// ErrNotFound reports a missing configuration file.
var ErrNotFound = errors.New("config: file not found")

// Settings holds the attributes present in a configuration file. Absent
// attributes are nil so callers can tell them apart from zero values.
type Settings struct {
	InputDir    *string
	OutputDir   *string
	Percentage  *float64
	Changer     *string
	ChangerArgs []string
	Jobs        *int
	Timeout     *time.Duration
	Strict      *bool
}

// hclFile is the decoding target for gohcl.
type hclFile struct {
	InputDir    *string  `hcl:"input_dir,optional"`
	OutputDir   *string  `hcl:"output_dir,optional"`
	Percentage  *float64 `hcl:"percentage,optional"`
	Changer     *string  `hcl:"changer,optional"`
	ChangerArgs []string `hcl:"changer_args,optional"`
	Jobs        *int     `hcl:"jobs,optional"`
	Timeout     *string  `hcl:"timeout,optional"`
	Strict      *bool    `hcl:"strict,optional"`
}

// Load reads and decodes the file at path. environ is a list of KEY=VALUE
// pairs, usually os.Environ(), exposed to expressions as env.KEY.
func Load(path string, environ []string) (*Settings, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, diags)
	}
	return decode(file, path, environ)
}

// Parse decodes configuration source held in memory. filename is only used
// in diagnostics.
func Parse(src []byte, filename string, environ []string) (*Settings, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("config: failed to parse %s: %w", filename, diags)
	}
	return decode(file, filename, environ)
}

func decode(file *hcl.File, filename string, environ []string) (*Settings, error) {
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": envObject(environ)},
	}

	var raw hclFile
	if diags := gohcl.DecodeBody(file.Body, evalCtx, &raw); diags.HasErrors() {
		return nil, fmt.Errorf("config: failed to decode %s: %w", filename, diags)
	}

	s := &Settings{
		InputDir:    raw.InputDir,
		OutputDir:   raw.OutputDir,
		Percentage:  raw.Percentage,
		Changer:     raw.Changer,
		ChangerArgs: raw.ChangerArgs,
		Jobs:        raw.Jobs,
		Strict:      raw.Strict,
	}

	if s.Jobs != nil && *s.Jobs < 1 {
		return nil, fmt.Errorf("config: %s: jobs must be at least 1, got %d", filename, *s.Jobs)
	}
	if raw.Timeout != nil {
		d, err := time.ParseDuration(*raw.Timeout)
		if err != nil {
			return nil, fmt.Errorf("config: %s: timeout: %w", filename, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("config: %s: timeout must not be negative: %s", filename, d)
		}
		s.Timeout = &d
	}
	return s, nil
}

// envObject turns KEY=VALUE pairs into a cty object. Later duplicates win.
func envObject(environ []string) cty.Value {
	vars := make(map[string]cty.Value, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vars[k] = cty.StringVal(v)
	}
	if len(vars) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(vars)
}
