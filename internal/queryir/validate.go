package queryir

import (
	"fmt"
)

// MaxPortableIdentifier is the longest column name every supported dialect
// keeps intact. PostgreSQL truncates identifiers to 63 bytes.
const MaxPortableIdentifier = 63

// ValidationResult contains portability analysis of a query.
//
// A portable query returns the same rows on SQLite, PostgreSQL and MySQL.
// Non-portable queries still compile and run; the warnings explain where
// engines may disagree.
type ValidationResult struct {
	// IsPortable indicates the query uses no dialect-dependent feature
	// and no engine-chosen row order.
	IsPortable bool

	// Warnings lists non-portable features used in the query.
	// Empty when IsPortable is true.
	Warnings []string
}

// Validate checks a query against the portability rules:
//  1. Skip, Take and First follow an ordering
//  2. Skip has a Take, since OFFSET without LIMIT is dialect-specific
//  3. Column names fit MaxPortableIdentifier
//  4. DefaultIfEmpty and set operations have unordered operands
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{
		warnings: []string{},
	}
	v.validateQuery(query)

	return ValidationResult{
		IsPortable: len(v.warnings) == 0,
		Warnings:   v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
}

// addWarning appends a warning message.
func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

// validateQuery recursively validates a query node.
func (v *validator) validateQuery(q Query) {
	if q == nil {
		v.addWarning("nil query - portability cannot be verified")
		return
	}

	switch query := q.(type) {
	case *Scan:
	case *Join:
		v.validateQuery(query.Left)
		v.validateQuery(query.Right)
		v.validateScalar(query.On)
	case *Filter:
		v.validateQuery(query.Source)
		v.validateScalar(query.Predicate)
	case *Project:
		v.validateQuery(query.Source)
		for _, p := range query.Projections {
			v.validateScalar(p.Value)
		}
		v.validateColumns(query.Columns())
	case *Order:
		v.validateQuery(query.Source)
		for _, k := range query.Keys {
			v.validateScalar(k.Value)
		}
	case *Slice:
		v.validateQuery(query.Source)
		if !ordered(query.Source) {
			v.addWarning("Skip/Take over unordered rows - engines may return different rows")
		}
		if query.Offset != nil && query.Limit == nil {
			v.addWarning("Skip without Take - OFFSET without LIMIT is dialect-specific")
		}
	case *Distinct:
		v.validateQuery(query.Source)
	case *DefaultIfEmpty:
		v.validateQuery(query.Source)
		if ordered(query.Source) {
			v.addWarning("DefaultIfEmpty over ordered rows - the ordering does not survive the outer join")
		}
	case *SetOp:
		v.validateQuery(query.Left)
		v.validateQuery(query.Right)
		if ordered(query.Left) || ordered(query.Right) {
			v.addWarning("%s operand is ordered - set operations do not keep operand order", query.Kind)
		}
	case *Terminal:
		v.validateQuery(query.Source)
		if query.Op.RowLimit() == 1 && !ordered(query.Source) {
			v.addWarning("%s over unordered rows - engines may return different rows", query.Op)
		}
	default:
		v.addWarning("Unknown query type: %T - portability cannot be verified", q)
	}

	switch q.(type) {
	case *Scan, *Join:
		v.validateColumns(q.Columns())
	}
}

func (v *validator) validateColumns(cols []string) {
	for _, c := range cols {
		if len(c) > MaxPortableIdentifier {
			v.addWarning("Column '%s' is longer than %d bytes - PostgreSQL truncates it", c, MaxPortableIdentifier)
		}
	}
}

// validateScalar descends into nested queries.
func (v *validator) validateScalar(s Scalar) {
	switch s := s.(type) {
	case nil, *Column, *Literal:
	case *Compare:
		v.validateScalar(s.Left)
		v.validateScalar(s.Right)
	case *Logical:
		v.validateScalar(s.Left)
		v.validateScalar(s.Right)
	case *Not:
		v.validateScalar(s.Operand)
	case *IsNull:
		v.validateScalar(s.Operand)
	case *In:
		v.validateScalar(s.Operand)
		for _, x := range s.Values {
			v.validateScalar(x)
		}
	case *Coalesce:
		v.validateScalar(s.Left)
		v.validateScalar(s.Right)
	case *Case:
		v.validateScalar(s.When)
		v.validateScalar(s.Then)
		v.validateScalar(s.Else)
	case *Exists:
		v.validateQuery(s.Query)
	case *CountOf:
		v.validateQuery(s.Query)
	case *Subquery:
		v.validateQuery(s.Query)
	default:
		v.addWarning("Unknown scalar type: %T - portability cannot be verified", s)
	}
}

// ordered reports whether the rows of q come out of an ordering that the
// operators above it keep.
func ordered(q Query) bool {
	switch q := q.(type) {
	case *Order:
		return true
	case *Filter:
		return ordered(q.Source)
	case *Project:
		return ordered(q.Source)
	case *Slice:
		return ordered(q.Source)
	case *Distinct:
		return ordered(q.Source)
	case *Join:
		return ordered(q.Left)
	default:
		return false
	}
}
