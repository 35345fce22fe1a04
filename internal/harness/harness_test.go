package harness

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/navex/internal/ir"
	"github.com/roach88/navex/internal/querysql"
	"github.com/roach88/navex/internal/store"
)

// scenarioDir holds the shared scenarios and the model they use.
var scenarioDir = filepath.Join("..", "..", "testdata", "scenarios")

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	scenario, err := LoadScenario(filepath.Join(scenarioDir, name+".yaml"))
	require.NoError(t, err)
	return scenario
}

func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join(scenarioDir, "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "scenario errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_TraceOfReferenceInclude(t *testing.T) {
	result, err := Run(loadTestScenario(t, "include_reference"))
	require.NoError(t, err)
	require.True(t, result.Pass, "scenario errors: %v", result.Errors)

	trace := result.Trace
	assert.Equal(t, []string{"Post.Blog@Inner"}, trace.Includes)
	assert.Equal(t, 1, trace.Joins)
	assert.Equal(t, 1, trace.Queries)
	assert.Contains(t, trace.SQL, "INNER JOIN")
	assert.Contains(t, trace.Expression, "Set<Blog>")
	assert.Empty(t, trace.Error)
}

func TestRun_ExpandsOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	result, err := Run(loadTestScenario(t, "include_collection"), WithLogger(logger))
	require.NoError(t, err)
	require.True(t, result.Pass, "scenario errors: %v", result.Errors)

	assert.Equal(t, 1, strings.Count(buf.String(), "query expanded"))
	assert.Equal(t, 2, result.Trace.Queries)
}

func TestRun_AssertionFailure(t *testing.T) {
	scenario := loadTestScenario(t, "count_through_navigation")
	scenario.Assertions = []Assertion{{Type: AssertValue, Value: 3}}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Expected: 3")
	assert.Equal(t, ir.IRInt(2), result.Trace.Value)
}

func TestRun_ErrorIsTraced(t *testing.T) {
	result, err := Run(loadTestScenario(t, "single_multiple"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "scenario errors: %v", result.Errors)
	assert.Equal(t, "MULTIPLE_ELEMENTS", result.Trace.ErrorCode)
	assert.Contains(t, result.Trace.Error, "operator=Single")
	assert.NotEmpty(t, result.Trace.SQL)
}

func TestRun_UnknownFixtureEntity(t *testing.T) {
	scenario := loadTestScenario(t, "count_through_navigation")
	scenario.Fixtures = map[string][]map[string]any{"Comment": {{"Id": 1}}}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `fixture for unknown entity "Comment"`)
}

func TestRun_WithStore(t *testing.T) {
	st, err := store.Open(store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer st.Close()

	result, err := Run(loadTestScenario(t, "where_through_navigation"), WithStore(st))
	require.NoError(t, err)
	assert.True(t, result.Pass, "scenario errors: %v", result.Errors)

	rows, err := st.Query(context.Background(), `SELECT COUNT(*) AS "n" FROM "posts"`)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ir.IRInt(3), rows[0]["n"])
}

func TestExpand(t *testing.T) {
	scenario := loadTestScenario(t, "where_through_navigation")

	sqlite, err := Expand(context.Background(), scenario)
	require.NoError(t, err)
	assert.Contains(t, sqlite.SQL, "?")
	assert.Equal(t, ir.IRArray{ir.IRString("Go")}, sqlite.Params)
	assert.Nil(t, sqlite.Value)
	assert.Equal(t, 0, sqlite.Queries)

	postgres, err := Expand(context.Background(), scenario, WithDialect(querysql.Postgres))
	require.NoError(t, err)
	assert.Contains(t, postgres.SQL, "$1")
	assert.Equal(t, sqlite.Expression, postgres.Expression)
}

func TestExpand_TranslationError(t *testing.T) {
	_, err := Expand(context.Background(), loadTestScenario(t, "invalid_include"))
	require.Error(t, err)
	assert.Equal(t, "INVALID_INCLUDE", ErrorCode(err))
}
