package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/navex/internal/ir"
	"github.com/roach88/navex/internal/store"
)

func executeRun(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRunScenarioText(t *testing.T) {
	out, err := executeRun(t, "text", scenarioPath("where_through_navigation"))
	require.NoError(t, err)

	assert.Contains(t, out, "SQL:        SELECT")
	assert.Contains(t, out, `Value:      ["Hello","Generics"]`)
	assert.Contains(t, out, "Queries:    1")
	assert.Contains(t, out, "✓ where_through_navigation")
}

func TestRunScenarioJSON(t *testing.T) {
	out, err := executeRun(t, "json", scenarioPath("include_collection"))
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Name  string    `json:"name"`
			Pass  bool      `json:"pass"`
			Trace tracePlan `json:"trace"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "include_collection", resp.Data.Name)
	assert.True(t, resp.Data.Pass)
	assert.Equal(t, 2, resp.Data.Trace.Queries)
	assert.Contains(t, resp.Data.Trace.Includes[0], "Blog.Posts@")

	value, err := ir.UnmarshalIRValue(resp.Data.Trace.Value)
	require.NoError(t, err)
	rows, ok := value.(ir.IRArray)
	require.True(t, ok)
	assert.Len(t, rows, 2)
}

func TestRunExpectedErrorPasses(t *testing.T) {
	out, err := executeRun(t, "text", scenarioPath("single_multiple"))
	require.NoError(t, err)
	assert.Contains(t, out, "Error:      MULTIPLE_ELEMENTS")
	assert.Contains(t, out, "✓ single_multiple")
}

func TestRunMaxQueriesFlag(t *testing.T) {
	// Two statements are needed for the collection include.
	out, err := executeRun(t, "text", "--max-queries", "1", scenarioPath("include_collection"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenario include_collection failed")
	assert.Contains(t, out, "QUOTA_EXCEEDED")
	assert.Contains(t, out, "✗ include_collection")
}

func TestRunMissingScenario(t *testing.T) {
	out, err := executeRun(t, "text", "/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeScenario+"]")
}

func TestRunWithDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "navex.db")

	_, err := executeRun(t, "text", "--driver", "sqlite3", "--db", dbPath, scenarioPath("count_through_navigation"))
	require.NoError(t, err)

	// Fixtures stay in the database after the run.
	st, err := store.Open(store.DriverSQLite, dbPath)
	require.NoError(t, err)
	defer st.Close()

	rows, err := st.Query(context.Background(), `SELECT COUNT(*) AS "n" FROM "blogs"`)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ir.IRInt(2), rows[0]["n"])
}

func TestRunUnsupportedDriver(t *testing.T) {
	out, err := executeRun(t, "text", "--driver", "oracle", "--db", "x", scenarioPath("count_through_navigation"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeDatabase+"]")
}
