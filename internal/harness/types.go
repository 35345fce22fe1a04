package harness

import "github.com/roach88/navex/internal/ir"

// Trace records what the engine did with a scenario's query.
// Every field is deterministic for a fixed compilation id.
type Trace struct {
	// Expression is the rewritten expression in expr.Format form.
	Expression string `json:"expression"`

	// SQL is the statement compiled for the main query.
	SQL string `json:"sql"`

	// Params are the bound parameters of SQL.
	Params ir.IRArray `json:"params"`

	// Includes lists planned include instructions as "Post.Blog@Inner".
	Includes []string `json:"includes,omitempty"`

	// Joins is the number of joins the expansion synthesised.
	Joins int `json:"joins"`

	// Warnings are portability warnings for the compiled query.
	Warnings []string `json:"warnings,omitempty"`

	// Value is the materialized result. Nil when execution failed.
	Value ir.IRValue `json:"value,omitempty"`

	// Queries is the number of statements run.
	Queries int `json:"queries"`

	// Error is the failure of the query, if any.
	Error string `json:"error,omitempty"`

	// ErrorCode is the code of Error when it carries one.
	ErrorCode string `json:"error_code,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all assertions hold.
	Pass bool `json:"pass"`

	// Trace describes the planned and executed query.
	Trace Trace `json:"trace"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Rows returns the result value as a list of elements. A terminal
// operator's single value counts as one element, a null as none.
func (t *Trace) Rows() ir.IRArray {
	switch v := t.Value.(type) {
	case nil, ir.IRNull:
		return ir.IRArray{}
	case ir.IRArray:
		return v
	default:
		return ir.IRArray{v}
	}
}
