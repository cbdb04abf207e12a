package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func helperCommand(ctx context.Context, name string, args ...string) *exec.Cmd {
	cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
	return cmd
}

// TestHelperProcess stands in for pitchchanger. Inputs named *fail* exit 1;
// others get "<changer> <args...>" written to the output path.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	args = args[1:]
	n := len(args)
	in, out := args[n-3], args[n-2]

	if strings.Contains(filepath.Base(in), "fail") {
		fmt.Fprintln(os.Stderr, "Error: cannot decode", in)
		os.Exit(1)
	}
	if err := os.WriteFile(out, []byte(strings.Join(args, " ")), 0o644); err != nil {
		os.Exit(2)
	}
}

type result struct {
	code   int
	stdout string
	stderr string
}

func invoke(t *testing.T, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"batchrunner"}, args...), &stdout, &stderr, helperCommand)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func makeInputs(t *testing.T, names ...string) (root, in, out string) {
	t.Helper()
	root = t.TempDir()
	in = filepath.Join(root, "inputs")
	out = filepath.Join(root, "outputs")
	require.NoError(t, os.Mkdir(in, 0o755))
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(in, n), []byte("RIFF"), 0o644))
	}
	return root, in, out
}

func readOutput(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRunDefaultsFromWorkingDirectory(t *testing.T) {
	root, _, out := makeInputs(t, "a.wav", "b_fail.wav")
	t.Chdir(root)

	res := invoke(t, "--changer", "fake-changer", "-10")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Created 'outputs' folder.")
	assert.Contains(t, res.stdout, "   - Pitch change: -10%")
	assert.Contains(t, res.stdout, "   - Success: 1")
	assert.Contains(t, res.stdout, "   - Failed:  1")
	assert.Contains(t, res.stdout, "Error: cannot decode")

	got := readOutput(t, filepath.Join(out, "a.wav"))
	assert.Equal(t, "fake-changer --yes -- "+
		filepath.Join("inputs", "a.wav")+" "+filepath.Join("outputs", "a.wav")+" -10", got)
}

func TestRunStrictFromDotEnv(t *testing.T) {
	root, _, _ := makeInputs(t, "a_fail.wav")
	t.Chdir(root)
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("WAVPITCH_STRICT=true\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("WAVPITCH_STRICT") })

	res := invoke(t, "--changer", "fake-changer", "10")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "1 of 1")
}

func TestRunConfigFile(t *testing.T) {
	root, in, out := makeInputs(t, "a.wav")
	t.Setenv("WAVPITCH_TEST_OUT", out)

	cfgPath := filepath.Join(root, "batch.hcl")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
input_dir    = %q
output_dir   = env.WAVPITCH_TEST_OUT
percentage   = 7.5
changer      = "from-config"
changer_args = ["--algorithm", "spectral"]
jobs         = 2
timeout      = "30s"
`, in)), 0o644))

	res := invoke(t, "--config", cfgPath)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "from-config --yes --algorithm spectral -- "+
		filepath.Join(in, "a.wav")+" "+filepath.Join(out, "a.wav")+" 7.5",
		readOutput(t, filepath.Join(out, "a.wav")))

	// Flags win over the file.
	res = invoke(t, "--config", cfgPath, "--changer", "from-flag", "--changer-arg=--bit-depth=24", "--percent", "3")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "from-flag --yes --bit-depth=24 -- "+
		filepath.Join(in, "a.wav")+" "+filepath.Join(out, "a.wav")+" 3",
		readOutput(t, filepath.Join(out, "a.wav")))

	res = invoke(t, "--config", filepath.Join(root, "missing.hcl"), "10")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "missing.hcl")
}

func TestRunErrors(t *testing.T) {
	root, in, out := makeInputs(t)

	res := invoke(t, "--input-dir", in, "--output-dir", out)
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stdout, "Usage: batchrunner [flags] <pitch_percentage>")

	res = invoke(t, "10", "20")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stdout, "Usage:")

	res = invoke(t, "--input-dir", in, "abc")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "Error: Pitch percentage must be a number.")

	missing := filepath.Join(root, "nope")
	res = invoke(t, "--input-dir", missing, "--output-dir", out, "10")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "'"+missing+"'")

	res = invoke(t, "--input-dir", in, "--output-dir", out, "--jobs", "-2", "10")
	assert.Equal(t, 1, res.code)

	res = invoke(t, "--input-dir", in, "--output-dir", out, "10")
	assert.Equal(t, 0, res.code)
	assert.Contains(t, res.stdout, "Warning: No WAV files found in '"+in+"'.")
}
