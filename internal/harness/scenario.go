package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a query scenario: a model, fixture rows, a query built
// from steps and assertions over the result.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario checks.
	Description string `yaml:"description"`

	// Model is the directory holding the CUE model definition.
	// Relative paths are resolved against the scenario file.
	Model string `yaml:"model"`

	// Fixtures maps entity names to the rows inserted before the query runs.
	Fixtures map[string][]map[string]any `yaml:"fixtures,omitempty"`

	// Query is the query under test.
	Query QuerySpec `yaml:"query"`

	// Assertions validate the trace and the materialized value.
	Assertions []Assertion `yaml:"assertions"`

	// CompilationID fixes the compilation id for deterministic traces.
	// If empty, defaults to "test-compilation".
	CompilationID string `yaml:"compilation_id,omitempty"`

	// MaxQueries overrides the per-execution statement quota when positive.
	MaxQueries int `yaml:"max_queries,omitempty"`
}

// QuerySpec is a query rooted at an entity set.
type QuerySpec struct {
	// From is the entity whose set starts the query.
	From string `yaml:"from"`

	// Steps are applied in order.
	Steps []Step `yaml:"steps,omitempty"`
}

// JoinSpec is the argument of a join or left_join step. The join result is
// a pair; later steps reach its sides through Outer and Inner.
type JoinSpec struct {
	Query    QuerySpec `yaml:"query"`
	OuterKey *Expr     `yaml:"outer_key"`
	InnerKey *Expr     `yaml:"inner_key"`
}

// Assertion validates the outcome of a scenario.
type Assertion struct {
	// Type specifies the assertion type:
	// - "row_count": the query returned Count elements
	// - "rows": elements match Rows in order (subset match per object)
	// - "value": the whole value equals Value
	// - "sql_contains": the generated SQL contains Text
	// - "expression_contains": the rewritten expression contains Text
	// - "include": an include of Navigation ("Post.Blog") was planned
	// - "joins": the expansion synthesised exactly Count joins
	// - "queries": exactly Count statements ran
	// - "error": the query failed with Code
	Type string `yaml:"type"`

	Count      int              `yaml:"count,omitempty"`
	Rows       []map[string]any `yaml:"rows,omitempty"`
	Value      any              `yaml:"value,omitempty"`
	Text       string           `yaml:"text,omitempty"`
	Navigation string           `yaml:"navigation,omitempty"`
	Code       string           `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertRowCount           = "row_count"
	AssertRows               = "rows"
	AssertValue              = "value"
	AssertSQLContains        = "sql_contains"
	AssertExpressionContains = "expression_contains"
	AssertInclude            = "include"
	AssertJoins              = "joins"
	AssertQueries            = "queries"
	AssertError              = "error"
)

// LoadScenario reads and parses a scenario YAML file. The model path is
// resolved against the scenario's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the model path relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Model != "" && !filepath.IsAbs(scenario.Model) && basePath != "" {
		scenario.Model = filepath.Join(basePath, scenario.Model)
	}
	if _, err := os.Stat(scenario.Model); err != nil {
		return nil, fmt.Errorf("invalid scenario: model directory not found: %s", scenario.Model)
	}
	return scenario, nil
}

// ParseScenario decodes a scenario without touching the file system.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Model == "" {
		return fmt.Errorf("model is required")
	}
	if err := validateQuery("query", &s.Query); err != nil {
		return err
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	if s.MaxQueries < 0 {
		return fmt.Errorf("max_queries must be non-negative")
	}
	return nil
}

func validateQuery(where string, q *QuerySpec) error {
	if q.From == "" {
		return fmt.Errorf("%s: from is required", where)
	}
	for i, step := range q.Steps {
		if step.Join != nil {
			if err := validateQuery(fmt.Sprintf("%s.steps[%d].%s.query", where, i, step.Op), &step.Join.Query); err != nil {
				return err
			}
		}
		if step.Other != nil {
			if err := validateQuery(fmt.Sprintf("%s.steps[%d].%s", where, i, step.Op), step.Other); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRowCount, AssertJoins, AssertQueries:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertRows:
		if a.Rows == nil {
			return fmt.Errorf("assertions[%d]: rows is required for rows", index)
		}
	case AssertValue:
	case AssertSQLContains, AssertExpressionContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for %s", index, a.Type)
		}
	case AssertInclude:
		if a.Navigation == "" {
			return fmt.Errorf("assertions[%d]: navigation is required for include", index)
		}
	case AssertError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for error", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
