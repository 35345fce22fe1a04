package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	maxWalkDepth = 25
)

// Config represents the navex configuration from navex.yaml.
type Config struct {
	// ModelDir is the default model directory for validate.
	ModelDir string `mapstructure:"model_dir" yaml:"model_dir" json:"model_dir"`

	// Dialect is the SQL dialect expand plans for.
	Dialect string `mapstructure:"dialect" yaml:"dialect" json:"dialect"`

	// MaxQueries caps statements per execution. Zero keeps the engine default.
	MaxQueries int `mapstructure:"max_queries" yaml:"max_queries" json:"max_queries"`

	Database  DatabaseConfig  `mapstructure:"database" yaml:"database" json:"database"`
	Log       LogConfig       `mapstructure:"log" yaml:"log" json:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry" json:"telemetry"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output" json:"output"`
}

// DatabaseConfig selects the store run executes against.
// An empty DSN means a fresh in-memory SQLite database per scenario.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver" json:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn" json:"dsn"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" json:"level"`
}

// TelemetryConfig holds tracing settings.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint" json:"otlp_endpoint"`
	Service      string `mapstructure:"service" yaml:"service" json:"service"`
}

// OutputConfig holds output settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// LoadConfig discovers and loads configuration with proper precedence:
// flags > env > config file > defaults.
//
// Returns the loaded config, the path to the config file (empty if none found),
// and any error encountered.
func LoadConfig(explicitConfigPath string) (*Config, string, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("NAVEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath, err := findConfigFile(explicitConfigPath)
	if err != nil {
		return nil, "", err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, configPath, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, configPath, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model_dir", "model")
	v.SetDefault("dialect", "sqlite")
	v.SetDefault("max_queries", 0)

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "")

	v.SetDefault("log.level", "info")

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service", "navex")

	v.SetDefault("output.format", "text")
}

// findConfigFile finds the config file to use.
// If explicitPath is provided, it validates the file exists.
// Otherwise, it walks up from cwd looking for navex.yaml or navex.yml,
// stopping at a .git directory or after maxWalkDepth levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}

	dir := cwd
	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range []string{"navex.yaml", "navex.yml"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		// Stop at the repository root
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil
}
