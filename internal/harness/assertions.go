package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/navex/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Trace    *Trace // Trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.Trace != nil {
		fmt.Fprintf(&buf, "\nTrace:\n")
		fmt.Fprintf(&buf, "  expression: %s\n", e.Trace.Expression)
		if e.Trace.SQL != "" {
			fmt.Fprintf(&buf, "  sql: %s\n", e.Trace.SQL)
		}
		if e.Trace.Error != "" {
			fmt.Fprintf(&buf, "  error: %s\n", e.Trace.Error)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against the trace and returns
// the failure messages. A trace with an error fails every assertion except
// a matching "error" assertion.
func EvaluateAssertions(trace *Trace, assertions []Assertion) []string {
	var errs []string

	expectsError := slices.ContainsFunc(assertions, func(a Assertion) bool { return a.Type == AssertError })
	if trace.Error != "" && !expectsError {
		errs = append(errs, (&AssertionError{
			Type:     "execution",
			Expected: "query to succeed",
			Actual:   trace.Error,
			Trace:    trace,
		}).Error())
		return errs
	}

	for i, a := range assertions {
		if err := evaluateAssertion(trace, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(trace *Trace, a Assertion) error {
	switch a.Type {
	case AssertRowCount:
		return assertRowCount(trace, a)
	case AssertRows:
		return assertRows(trace, a)
	case AssertValue:
		return assertValue(trace, a)
	case AssertSQLContains:
		return assertContains(trace, a.Type, trace.SQL, a.Text)
	case AssertExpressionContains:
		return assertContains(trace, a.Type, trace.Expression, a.Text)
	case AssertInclude:
		return assertInclude(trace, a)
	case AssertJoins:
		return assertCount(trace, a.Type, "joins", a.Count, trace.Joins)
	case AssertQueries:
		return assertCount(trace, a.Type, "queries", a.Count, trace.Queries)
	case AssertError:
		return assertError(trace, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

func assertRowCount(trace *Trace, a Assertion) error {
	return assertCount(trace, a.Type, "rows", a.Count, len(trace.Rows()))
}

func assertCount(trace *Trace, typ, what string, expected, actual int) error {
	if expected != actual {
		return &AssertionError{
			Type:     typ,
			Expected: fmt.Sprintf("%d %s", expected, what),
			Actual:   fmt.Sprintf("%d %s", actual, what),
			Trace:    trace,
		}
	}
	return nil
}

// assertRows checks elements in order. Object elements use subset
// semantics: only the expected keys are compared, recursively.
func assertRows(trace *Trace, a Assertion) error {
	rows := trace.Rows()
	if len(rows) != len(a.Rows) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d rows", len(a.Rows)),
			Actual:   fmt.Sprintf("%d rows: %s", len(rows), canonical(rows)),
			Trace:    trace,
		}
	}
	for i, raw := range a.Rows {
		expected, err := ir.FromAny(map[string]any(raw))
		if err != nil {
			return fmt.Errorf("rows[%d]: %w", i, err)
		}
		if !matchValue(expected, rows[i]) {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("row %d matching %s", i, canonical(expected)),
				Actual:   canonical(rows[i]),
				Trace:    trace,
			}
		}
	}
	return nil
}

func assertValue(trace *Trace, a Assertion) error {
	expected, err := ir.FromAny(a.Value)
	if err != nil {
		return fmt.Errorf("value: %w", err)
	}
	actual := trace.Value
	if actual == nil {
		actual = ir.IRNull{}
	}
	if !matchValue(expected, actual) {
		return &AssertionError{
			Type:     a.Type,
			Expected: canonical(expected),
			Actual:   canonical(actual),
			Trace:    trace,
		}
	}
	return nil
}

func assertContains(trace *Trace, typ, haystack, needle string) error {
	if !strings.Contains(haystack, needle) {
		return &AssertionError{
			Type:     typ,
			Expected: fmt.Sprintf("text containing %q", needle),
			Actual:   haystack,
			Trace:    trace,
		}
	}
	return nil
}

func assertInclude(trace *Trace, a Assertion) error {
	for _, inc := range trace.Includes {
		nav, _, _ := strings.Cut(inc, "@")
		if nav == a.Navigation {
			return nil
		}
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("include of %s", a.Navigation),
		Actual:   fmt.Sprintf("includes %v", trace.Includes),
		Trace:    trace,
	}
}

func assertError(trace *Trace, a Assertion) error {
	if trace.Error == "" {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("error %s", a.Code),
			Actual:   "query succeeded",
			Trace:    trace,
		}
	}
	if trace.ErrorCode != a.Code && !strings.Contains(trace.Error, a.Code) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("error %s", a.Code),
			Actual:   trace.Error,
			Trace:    trace,
		}
	}
	return nil
}

// matchValue reports whether actual matches expected. Objects match when
// every expected key matches (extra keys in actual are ignored); arrays
// match element-wise and must have equal length.
func matchValue(expected, actual ir.IRValue) bool {
	switch exp := expected.(type) {
	case ir.IRObject:
		act, ok := actual.(ir.IRObject)
		if !ok {
			return false
		}
		for k, v := range exp {
			av, ok := act[k]
			if !ok {
				return false
			}
			if !matchValue(v, av) {
				return false
			}
		}
		return true
	case ir.IRArray:
		act, ok := actual.(ir.IRArray)
		if !ok || len(act) != len(exp) {
			return false
		}
		for i := range exp {
			if !matchValue(exp[i], act[i]) {
				return false
			}
		}
		return true
	case ir.IRNull:
		return ir.IsNull(actual)
	default:
		return expected == actual
	}
}

func canonical(v ir.IRValue) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
