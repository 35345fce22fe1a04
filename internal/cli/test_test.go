package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeTest(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTestCommandSharedScenarios(t *testing.T) {
	out, err := executeTest(t, &RootOptions{Format: "text"}, scenarioDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ include_reference")
	assert.Contains(t, out, "✓ All scenarios passed")
	assert.Contains(t, out, "0 failed")
}

func TestTestCommandFilterJSON(t *testing.T) {
	out, err := executeTest(t, &RootOptions{Format: "json"}, "--filter", "include_*", scenarioDir)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 2, resp.Data.Passed)

	names := []string{resp.Data.Scenarios[0].Name, resp.Data.Scenarios[1].Name}
	assert.ElementsMatch(t, []string{"include_collection", "include_reference"}, names)
}

func TestTestCommandGoldenFiles(t *testing.T) {
	dir := copyScenarios(t, "include_reference", "count_through_navigation")
	goldenPath := filepath.Join(dir, "golden", "include_reference.golden")

	// --update records a snapshot per scenario.
	out, err := executeTest(t, &RootOptions{Format: "text"}, "--update", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "2 passed")
	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name":"include_reference"`)

	// A fresh run reproduces the snapshot.
	out, err = executeTest(t, &RootOptions{Format: "text"}, dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All scenarios passed")

	// Any drift fails the scenario.
	require.NoError(t, os.WriteFile(goldenPath, []byte(`{"scenario_name":"stale"}`), 0o644))
	diag := &bytes.Buffer{}
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text", Verbose: true})
	cmd.SetOut(buf)
	cmd.SetErr(diag)
	cmd.SetArgs([]string{dir})

	err = cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "✗ include_reference")
	assert.Contains(t, buf.String(), "trace does not match golden file")
	assert.Contains(t, buf.String(), "✓ count_through_navigation")
	assert.Contains(t, diag.String(), "golden diff")
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := copyScenarios(t)
	data, err := os.ReadFile(scenarioPath("count_through_navigation"))
	require.NoError(t, err)
	broken := bytes.Replace(data, []byte("value: 2"), []byte("value: 5"), 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), broken, 0o644))

	out, err := executeTest(t, &RootOptions{Format: "json"}, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
}

func TestTestCommandLoadFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("name: [unclosed"), 0o644))

	out, err := executeTest(t, &RootOptions{Format: "text"}, dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ bad.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandNoScenarios(t *testing.T) {
	out, err := executeTest(t, &RootOptions{Format: "text"}, t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandMissingDirectory(t *testing.T) {
	out, err := executeTest(t, &RootOptions{Format: "text"}, "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeNotFound+"]")
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yml", "notes.txt", "golden/a.yaml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yaml"), filepath.Join(dir, "b.yml")}, files)

	files, err = findScenarioFiles(dir, "b*")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.yml")}, files)

	_, err = findScenarioFiles(dir, "[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("scenarios", "golden", "include_reference.golden"),
		goldenFilePath(filepath.Join("scenarios", "include_reference.yaml")))
}
