package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/navex/internal/ir"
)

// GoldenDir is where golden files live, relative to the test's package.
const GoldenDir = "testdata/golden"

// Snapshot renders the trace of a scenario as canonical JSON. Equal
// traces give byte-identical snapshots.
func Snapshot(scenarioName string, t *Trace) ([]byte, error) {
	params := t.Params
	if params == nil {
		params = ir.IRArray{}
	}
	obj := ir.IRObject{
		"scenario_name": ir.IRString(scenarioName),
		"expression":    ir.IRString(t.Expression),
		"sql":           ir.IRString(t.SQL),
		"params":        params,
		"joins":         ir.IRInt(t.Joins),
		"queries":       ir.IRInt(t.Queries),
	}
	if len(t.Includes) > 0 {
		obj["includes"] = stringArray(t.Includes)
	}
	if len(t.Warnings) > 0 {
		obj["warnings"] = stringArray(t.Warnings)
	}
	if t.Value != nil {
		obj["value"] = t.Value
	}
	if t.Error != "" {
		obj["error"] = ir.IRString(t.Error)
	}
	if t.ErrorCode != "" {
		obj["error_code"] = ir.IRString(t.ErrorCode)
	}
	return ir.MarshalCanonical(obj)
}

func stringArray(ss []string) ir.IRArray {
	arr := make(ir.IRArray, len(ss))
	for i, s := range ss {
		arr[i] = ir.IRString(s)
	}
	return arr
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass; test failure (via
// goldie) occurs if the trace doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...goldie.Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result, opts...); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result, opts ...goldie.Option) error {
	t.Helper()

	data, err := Snapshot(scenarioName, &result.Trace)
	if err != nil {
		return err
	}

	g := goldie.New(t, append([]goldie.Option{
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	}, opts...)...)
	g.Assert(t, scenarioName, data)
	return nil
}
