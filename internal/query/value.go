package query

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/roach88/navex/internal/expr"
	"github.com/roach88/navex/internal/ir"
)

// Value is an expression inside a lambda: a row, a member of it, a literal
// or an operator over other values. Errors are carried along and surface
// from Query.Build.
type Value struct {
	node expr.Node
	err  error
}

// V wraps an expression node.
func V(n expr.Node) Value {
	return Value{node: n}
}

// Lit creates a literal from a Go value (string, int, int64, bool or nil).
func Lit(v any) Value {
	iv, err := ir.FromAny(v)
	if err != nil {
		return Value{err: fmt.Errorf("literal: %w", err)}
	}
	switch iv.(type) {
	case ir.IRString, ir.IRInt, ir.IRBool, ir.IRNull:
		return Value{node: expr.Const(iv)}
	default:
		return Value{err: fmt.Errorf("literal: %T is not a scalar", iv)}
	}
}

// Invalid returns a value carrying err. Front-ends use it to report a
// malformed expression through Query.Build.
func Invalid(err error) Value {
	return Value{err: err}
}

// Node returns the expression node, or nil when the value carries an
// error.
func (v Value) Node() expr.Node {
	return v.node
}

// Err returns the first error met while building v.
func (v Value) Err() error {
	return v.err
}

// Get reads a dotted member path ("Blog.Owner.Name").
func (v Value) Get(path string) Value {
	if v.err != nil {
		return v
	}
	if path == "" {
		return Value{err: fmt.Errorf("empty member path")}
	}
	n, err := expr.MemberPath(v.node, strings.Split(path, ".")...)
	if err != nil {
		return Value{err: err}
	}
	return Value{node: n}
}

func (v Value) binary(op expr.BinaryOp, o Value) Value {
	if v.err != nil {
		return v
	}
	if o.err != nil {
		return o
	}
	return Value{node: expr.NewBinary(op, v.node, o.node)}
}

func (v Value) Eq(o Value) Value       { return v.binary(expr.OpEqual, o) }
func (v Value) Ne(o Value) Value       { return v.binary(expr.OpNotEqual, o) }
func (v Value) Lt(o Value) Value       { return v.binary(expr.OpLessThan, o) }
func (v Value) Le(o Value) Value       { return v.binary(expr.OpLessOrEqual, o) }
func (v Value) Gt(o Value) Value       { return v.binary(expr.OpGreaterThan, o) }
func (v Value) Ge(o Value) Value       { return v.binary(expr.OpGreaterOrEqual, o) }
func (v Value) And(o Value) Value      { return v.binary(expr.OpAndAlso, o) }
func (v Value) Or(o Value) Value       { return v.binary(expr.OpOrElse, o) }
func (v Value) Coalesce(o Value) Value { return v.binary(expr.OpCoalesce, o) }

// IsNull tests v against null.
func (v Value) IsNull() Value {
	if v.err != nil {
		return v
	}
	return v.Eq(Value{node: expr.Null(v.node.Type())})
}

// IsNotNull tests v against null.
func (v Value) IsNotNull() Value {
	if v.err != nil {
		return v
	}
	return v.Ne(Value{node: expr.Null(v.node.Type())})
}

// Not negates a boolean value.
func (v Value) Not() Value {
	if v.err != nil {
		return v
	}
	return Value{node: expr.NewNot(v.node)}
}

// If builds test ? v : otherwise.
func If(test, then, otherwise Value) Value {
	for _, x := range []Value{test, then, otherwise} {
		if x.err != nil {
			return x
		}
	}
	return Value{node: expr.NewConditional(test.node, then.node, otherwise.node)}
}

// Field is one member of a projected object.
type Field struct {
	Name  string
	Value Value
}

// F is shorthand for a Field.
func F(name string, v Value) Field {
	return Field{Name: name, Value: v}
}

// Object builds an anonymous object; member order is kept.
func Object(fields ...Field) Value {
	names := make([]string, len(fields))
	args := make([]expr.Node, len(fields))
	for i, f := range fields {
		if f.Value.err != nil {
			return f.Value
		}
		names[i], args[i] = f.Name, f.Value.node
	}
	return Value{node: expr.NewObject(names, args)}
}

// Pair builds a transparent {Outer, Inner} pair.
func Pair(outer, inner Value) Value {
	if outer.err != nil {
		return outer
	}
	if inner.err != nil {
		return inner
	}
	return Value{node: expr.NewPair(outer.node, inner.node)}
}

// Any tests whether the sequence v (usually a collection navigation) has
// an element. A non-nil pred restricts the elements tested.
func (v Value) Any(pred func(Value) Value) Value {
	return v.aggregate(expr.OpAny, pred)
}

// All tests whether every element of the sequence v satisfies pred.
func (v Value) All(pred func(Value) Value) Value {
	if pred == nil {
		return Value{err: fmt.Errorf("All requires a predicate")}
	}
	return v.aggregate(expr.OpAll, pred)
}

// Count counts the elements of the sequence v. A non-nil pred restricts
// the elements counted.
func (v Value) Count(pred func(Value) Value) Value {
	return v.aggregate(expr.OpCount, pred)
}

// Sum adds the values picked by selector from the elements of v. A nil
// selector sums the elements themselves. Min and Max are alike.
func (v Value) Sum(selector func(Value) Value) Value {
	return v.aggregate(expr.OpSum, selector)
}

func (v Value) Min(selector func(Value) Value) Value {
	return v.aggregate(expr.OpMin, selector)
}

func (v Value) Max(selector func(Value) Value) Value {
	return v.aggregate(expr.OpMax, selector)
}

func (v Value) aggregate(op expr.Operator, pred func(Value) Value) Value {
	if v.err != nil {
		return v
	}
	if !v.node.Type().IsSequence() {
		return Value{err: fmt.Errorf("%s over %s, which is not a sequence", op, v.node.Type())}
	}
	args := []expr.Node{v.node}
	if pred != nil {
		l, err := lambda(v.node.Type().ElementType(), pred)
		if err != nil {
			return Value{err: err}
		}
		args = append(args, l)
	}
	return Value{node: expr.NewCall(op, args...)}
}

// lambda builds a one-parameter lambda over rows of type t.
func lambda(t *expr.Type, body func(Value) Value) (*expr.Lambda, error) {
	p := expr.NewParameter(paramName(t), t)
	b := body(V(p))
	if b.err != nil {
		return nil, b.err
	}
	if b.node == nil {
		return nil, fmt.Errorf("lambda body is empty")
	}
	return expr.NewLambda(b.node, p), nil
}

// paramName names a lambda parameter after its entity ("p" for Post).
func paramName(t *expr.Type) string {
	if t != nil && t.Kind == expr.TypeEntity {
		r := []rune(t.Entity.Name)
		return string(unicode.ToLower(r[0]))
	}
	return "t"
}
