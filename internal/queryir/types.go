package queryir

import (
	"github.com/roach88/navex/internal/ir"
)

// Query is a relational operator producing rows of named columns.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in backend compilers.
//
// Query types:
//   - Scan: all columns of one table
//   - Join: inner or left join of two queries on key equality
//   - Filter, Project, Order, Slice, Distinct: single-source operators
//   - DefaultIfEmpty: one all-null row when the source is empty
//   - SetOp: UNION / UNION ALL / INTERSECT / EXCEPT
//   - Terminal: First, Single, Count, Any, All and the Sum, Min and Max
//     folds of a scalar column
//
// Column names are dotted row paths ("Outer.Inner.Name"). Columns returns
// them in output order.
type Query interface {
	queryNode() // Marker method - seals interface to this package
	Columns() []string
}

// Scalar is a value computed for each row.
//
// This is a sealed interface - only types in this package implement it.
type Scalar interface {
	scalarNode()
}

// ValueColumn is the column name of a scalar row and of Terminal
// aggregates.
const ValueColumn = "value"

// Scan reads every property column of one table.
//
// Semantics:
//
//	SELECT <fields> FROM <table>
type Scan struct {
	Table  string
	Fields []string
}

func (*Scan) queryNode() {}

func (q *Scan) Columns() []string { return q.Fields }

// JoinKind selects inner or left outer join.
type JoinKind string

const (
	JoinInner JoinKind = "INNER"
	JoinLeft  JoinKind = "LEFT"
)

// Join combines two queries. Output columns are the left columns under
// "Outer." followed by the right columns under "Inner.".
//
// Semantics:
//
//	SELECT l.c AS "Outer.c", ..., r.c AS "Inner.c", ...
//	FROM (<left>) AS l [LEFT] JOIN (<right>) AS r ON <on>
type Join struct {
	Kind                  JoinKind
	Left, Right           Query
	LeftAlias, RightAlias string
	On                    Scalar
}

func (*Join) queryNode() {}

func (q *Join) Columns() []string {
	var out []string
	for _, c := range q.Left.Columns() {
		out = append(out, "Outer."+c)
	}
	for _, c := range q.Right.Columns() {
		out = append(out, "Inner."+c)
	}
	return out
}

// Filter keeps the rows for which Predicate holds. Predicate reads the
// source through Alias.
type Filter struct {
	Source    Query
	Alias     string
	Predicate Scalar
}

func (*Filter) queryNode() {}

func (q *Filter) Columns() []string { return q.Source.Columns() }

// Projection is one output column of a Project.
type Projection struct {
	Name  string
	Value Scalar
}

// Project computes new columns from each source row.
type Project struct {
	Source      Query
	Alias       string
	Projections []Projection
}

func (*Project) queryNode() {}

func (q *Project) Columns() []string {
	out := make([]string, len(q.Projections))
	for i, p := range q.Projections {
		out[i] = p.Name
	}
	return out
}

// OrderKey is one sort key.
type OrderKey struct {
	Value      Scalar
	Descending bool
}

// Order sorts the source rows.
type Order struct {
	Source Query
	Alias  string
	Keys   []OrderKey
}

func (*Order) queryNode() {}

func (q *Order) Columns() []string { return q.Source.Columns() }

// Slice skips Offset rows and keeps at most Limit rows. Either may be nil.
type Slice struct {
	Source        Query
	Alias         string
	Offset, Limit Scalar
}

func (*Slice) queryNode() {}

func (q *Slice) Columns() []string { return q.Source.Columns() }

// Distinct removes duplicate rows.
type Distinct struct {
	Source Query
	Alias  string
}

func (*Distinct) queryNode() {}

func (q *Distinct) Columns() []string { return q.Source.Columns() }

// DefaultIfEmpty yields the source rows, or one row of nulls when there
// are none.
type DefaultIfEmpty struct {
	Source Query
	Alias  string
}

func (*DefaultIfEmpty) queryNode() {}

func (q *DefaultIfEmpty) Columns() []string { return q.Source.Columns() }

// SetOpKind selects the set operation.
type SetOpKind string

const (
	Union     SetOpKind = "UNION"
	UnionAll  SetOpKind = "UNION ALL"
	Intersect SetOpKind = "INTERSECT"
	Except    SetOpKind = "EXCEPT"
)

// SetOp combines two queries with the same columns.
type SetOp struct {
	Kind                  SetOpKind
	Left, Right           Query
	LeftAlias, RightAlias string
}

func (*SetOp) queryNode() {}

func (q *SetOp) Columns() []string { return q.Left.Columns() }

// TerminalOp is the operator ending a query.
type TerminalOp string

const (
	TerminalFirst           TerminalOp = "First"
	TerminalFirstOrDefault  TerminalOp = "FirstOrDefault"
	TerminalSingle          TerminalOp = "Single"
	TerminalSingleOrDefault TerminalOp = "SingleOrDefault"
	TerminalCount           TerminalOp = "Count"
	TerminalAny             TerminalOp = "Any"
	// TerminalAll holds when its source, the rows failing the predicate,
	// is empty.
	TerminalAll TerminalOp = "All"
	// TerminalSum, TerminalMin and TerminalMax fold the ValueColumn of a
	// scalar source. Sum of no rows is 0; Min and Max of no rows are null.
	TerminalSum TerminalOp = "Sum"
	TerminalMin TerminalOp = "Min"
	TerminalMax TerminalOp = "Max"
)

// IsAggregate reports whether the terminal yields one scalar value.
func (op TerminalOp) IsAggregate() bool {
	switch op {
	case TerminalCount, TerminalAny, TerminalAll, TerminalSum, TerminalMin, TerminalMax:
		return true
	default:
		return false
	}
}

// IsFold reports whether the terminal folds the values of its source.
func (op TerminalOp) IsFold() bool {
	return op == TerminalSum || op == TerminalMin || op == TerminalMax
}

// RowLimit returns the number of rows the terminal needs to fetch, or 0.
// Single fetches two rows so a second match can be reported.
func (op TerminalOp) RowLimit() int {
	switch op {
	case TerminalFirst, TerminalFirstOrDefault:
		return 1
	case TerminalSingle, TerminalSingleOrDefault:
		return 2
	default:
		return 0
	}
}

// Terminal ends a query.
type Terminal struct {
	Op     TerminalOp
	Source Query
	Alias  string
}

func (*Terminal) queryNode() {}

func (q *Terminal) Columns() []string {
	if q.Op.IsAggregate() {
		return []string{ValueColumn}
	}
	return q.Source.Columns()
}

// Column reads a column of the row bound to Alias.
type Column struct {
	Alias string
	Name  string
}

func (*Column) scalarNode() {}

// Literal is a constant. Non-null literals are always bound as
// parameters.
type Literal struct {
	Value ir.IRValue
}

func (*Literal) scalarNode() {}

// CompareOp is a comparison operator.
type CompareOp string

const (
	Eq CompareOp = "="
	Ne CompareOp = "<>"
	Lt CompareOp = "<"
	Le CompareOp = "<="
	Gt CompareOp = ">"
	Ge CompareOp = ">="
)

// Compare compares two scalars.
type Compare struct {
	Op          CompareOp
	Left, Right Scalar
}

func (*Compare) scalarNode() {}

// LogicalOp is AND or OR.
type LogicalOp string

const (
	And LogicalOp = "AND"
	Or  LogicalOp = "OR"
)

// Logical combines two predicates.
type Logical struct {
	Op          LogicalOp
	Left, Right Scalar
}

func (*Logical) scalarNode() {}

// Not negates a predicate.
type Not struct {
	Operand Scalar
}

func (*Not) scalarNode() {}

// IsNull tests a scalar for NULL.
type IsNull struct {
	Operand Scalar
}

func (*IsNull) scalarNode() {}

// In holds when Operand equals one of Values.
type In struct {
	Operand Scalar
	Values  []Scalar
}

func (*In) scalarNode() {}

// Coalesce returns Left unless it is NULL, else Right.
type Coalesce struct {
	Left, Right Scalar
}

func (*Coalesce) scalarNode() {}

// Case is CASE WHEN When THEN Then ELSE Else END.
type Case struct {
	When, Then, Else Scalar
}

func (*Case) scalarNode() {}

// Exists holds when Query yields at least one row.
type Exists struct {
	Query Query
}

func (*Exists) scalarNode() {}

// CountOf is the number of rows of Query.
type CountOf struct {
	Query Query
	Alias string
}

func (*CountOf) scalarNode() {}

// OrAll folds predicates with OR. It returns nil for no predicates.
func OrAll(preds ...Scalar) Scalar {
	var out Scalar
	for _, p := range preds {
		if out == nil {
			out = p
			continue
		}
		out = &Logical{Op: Or, Left: out, Right: p}
	}
	return out
}

// AndAll folds predicates with AND. It returns nil for no predicates.
func AndAll(preds ...Scalar) Scalar {
	var out Scalar
	for _, p := range preds {
		if out == nil {
			out = p
			continue
		}
		out = &Logical{Op: And, Left: out, Right: p}
	}
	return out
}

// Subquery reads Column from the first row of Query, or NULL when it has
// none.
type Subquery struct {
	Query  Query
	Alias  string
	Column string
}

func (*Subquery) scalarNode() {}
