package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "navex", cmd.Use)
	assert.Contains(t, cmd.Long, "navigations")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"validate", "expand", "run", "test", "config"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		command string
		flags   []string
	}{
		{"expand", []string{"dialect"}},
		{"run", []string{"db", "driver", "max-queries"}},
		{"test", []string{"update", "filter"}},
	}

	cmd := NewRootCommand()
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{tt.command})
			require.NoError(t, err)
			for _, name := range tt.flags {
				assert.NotNil(t, sub.Flags().Lookup(name), "flag --%s", name)
			}
		})
	}
}

func TestRootInvalidFormat(t *testing.T) {
	dir := modelDirAbs(t)
	repoRoot(t)

	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "xml", "validate", dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestRootInvalidLogLevel(t *testing.T) {
	dir := modelDirAbs(t)
	repoRoot(t)
	t.Setenv("NAVEX_LOG_LEVEL", "loud")

	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"validate", dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid log level "loud"`)
}

func TestRootFormatFromConfig(t *testing.T) {
	dir := modelDirAbs(t)
	root := repoRoot(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "navex.yaml"), []byte("output:\n  format: json\n"), 0o644))

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"validate", dir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), `"status": "ok"`)
}

func TestRootVerboseLogsToStderr(t *testing.T) {
	dir := modelDirAbs(t)
	repoRoot(t)

	out := &bytes.Buffer{}
	diag := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(diag)
	cmd.SetArgs([]string{"--verbose", "validate", dir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "✓ Model valid")
	assert.Contains(t, diag.String(), "Found 1 CUE file(s)")
}

// modelDirAbs returns the shared model directory as an absolute path. Call
// it before changing the working directory.
func modelDirAbs(t *testing.T) string {
	t.Helper()
	abs, err := filepath.Abs(modelDir)
	require.NoError(t, err)
	return abs
}
