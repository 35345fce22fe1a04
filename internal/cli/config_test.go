package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// repoRoot creates a directory with a .git marker and changes into it.
func repoRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	t.Chdir(root)
	return root
}

func samePath(t *testing.T, want, got string) {
	t.Helper()
	// Resolve symlinks for comparison (macOS /var -> /private/var)
	wantPath, _ := filepath.EvalSymlinks(want)
	gotPath, _ := filepath.EvalSymlinks(got)
	assert.Equal(t, wantPath, gotPath)
}

func TestFindConfigFile_ExplicitPath(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("dialect: postgres"), 0o644))

	path, err := findConfigFile(tmpFile)
	require.NoError(t, err)
	assert.Equal(t, tmpFile, path)
}

func TestFindConfigFile_ExplicitPathNotFound(t *testing.T) {
	_, err := findConfigFile("/nonexistent/path/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestFindConfigFile_AutoDiscovery(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	configPath := filepath.Join(root, "navex.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("dialect: mysql"), 0o644))

	nested := filepath.Join(root, "deep", "nested")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	t.Chdir(nested)

	path, err := findConfigFile("")
	require.NoError(t, err)
	samePath(t, configPath, path)
}

func TestFindConfigFile_PrefersYamlOverYml(t *testing.T) {
	root := repoRoot(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "navex.yml"), []byte("dialect: mysql"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "navex.yaml"), []byte("dialect: postgres"), 0o644))

	path, err := findConfigFile("")
	require.NoError(t, err)
	samePath(t, filepath.Join(root, "navex.yaml"), path)
}

func TestFindConfigFile_StopsAtGitRoot(t *testing.T) {
	outer := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outer, "navex.yaml"), []byte("dialect: mysql"), 0o644))
	inner := filepath.Join(outer, "repo")
	require.NoError(t, os.MkdirAll(filepath.Join(inner, ".git"), 0o755))
	t.Chdir(inner)

	path, err := findConfigFile("")
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestLoadConfig_Defaults(t *testing.T) {
	repoRoot(t)

	cfg, configPath, err := LoadConfig("")
	require.NoError(t, err)
	assert.Empty(t, configPath)

	assert.Equal(t, "model", cfg.ModelDir)
	assert.Equal(t, "sqlite", cfg.Dialect)
	assert.Equal(t, 0, cfg.MaxQueries)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Empty(t, cfg.Database.DSN)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Telemetry.OTLPEndpoint)
	assert.Equal(t, "navex", cfg.Telemetry.Service)
	assert.Equal(t, "text", cfg.Output.Format)
}

func TestLoadConfig_FromFile(t *testing.T) {
	root := repoRoot(t)
	configPath := filepath.Join(root, "navex.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
model_dir: schema/model
dialect: postgres
max_queries: 4
database:
  driver: pgx
  dsn: postgres://localhost/navex
telemetry:
  otlp_endpoint: localhost:4317
`), 0o644))

	cfg, foundPath, err := LoadConfig("")
	require.NoError(t, err)
	samePath(t, configPath, foundPath)

	assert.Equal(t, "schema/model", cfg.ModelDir)
	assert.Equal(t, "postgres", cfg.Dialect)
	assert.Equal(t, 4, cfg.MaxQueries)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/navex", cfg.Database.DSN)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.OTLPEndpoint)

	// Defaults still apply for unset values
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Output.Format)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	root := repoRoot(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "navex.yaml"), []byte("dialect: mysql"), 0o644))

	t.Setenv("NAVEX_DIALECT", "postgres")
	t.Setenv("NAVEX_DATABASE_DSN", "file:env.db")
	t.Setenv("NAVEX_MAX_QUERIES", "7")

	cfg, _, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Dialect)
	assert.Equal(t, "file:env.db", cfg.Database.DSN)
	assert.Equal(t, 7, cfg.MaxQueries)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "navex.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dialect: [unclosed"), 0o644))

	_, _, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestConfigShow(t *testing.T) {
	root := repoRoot(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "navex.yaml"), []byte("dialect: mysql\n"), 0o644))

	t.Run("yaml", func(t *testing.T) {
		buf := &bytes.Buffer{}
		cmd := NewConfigCommand(&RootOptions{Format: "text"})
		cmd.SetOut(buf)
		cmd.SetArgs([]string{"show", "--source"})
		require.NoError(t, cmd.Execute())

		out := buf.String()
		assert.Contains(t, out, "Config file: ")
		assert.Contains(t, out, "navex.yaml")

		var shown Config
		body := out[bytes.Index(buf.Bytes(), []byte("\n\n"))+2:]
		require.NoError(t, yaml.Unmarshal([]byte(body), &shown))
		assert.Equal(t, "mysql", shown.Dialect)
		assert.Equal(t, "sqlite3", shown.Database.Driver)
	})

	t.Run("json", func(t *testing.T) {
		buf := &bytes.Buffer{}
		cmd := NewConfigCommand(&RootOptions{Format: "json"})
		cmd.SetOut(buf)
		cmd.SetArgs([]string{"show"})
		require.NoError(t, cmd.Execute())

		var resp struct {
			Status string           `json:"status"`
			Data   ConfigShowResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		assert.Equal(t, "ok", resp.Status)
		require.NotNil(t, resp.Data.Config)
		assert.Equal(t, "mysql", resp.Data.Config.Dialect)
		assert.Contains(t, resp.Data.Source, "navex.yaml")
	})
}
