package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/navex/internal/expr"
	"github.com/roach88/navex/internal/ir"
	"github.com/roach88/navex/internal/model"
)

// Query is an immutable query under construction.
type Query struct {
	node  expr.Node
	err   error
	final bool
}

// From starts a query over the entity set of entity.
func From(m *model.Model, entity string) *Query {
	if m == nil {
		return &Query{err: errors.New("nil model")}
	}
	e := m.FindEntityType(entity)
	if e == nil {
		return &Query{err: fmt.Errorf("unknown entity type %q", entity)}
	}
	return &Query{node: expr.NewEntitySet(e)}
}

// Of wraps an existing query expression.
func Of(n expr.Node) *Query {
	if n == nil {
		return &Query{err: errors.New("nil expression")}
	}
	return &Query{node: n, final: !n.Type().IsSequence()}
}

// Build returns the expression tree, or the first error met while building.
func (q *Query) Build() (expr.Node, error) {
	if q.err != nil {
		return nil, q.err
	}
	return q.node, nil
}

// MustBuild is like Build but panics on error.
// Use only in tests or when the query is known to be valid.
func (q *Query) MustBuild() expr.Node {
	n, err := q.Build()
	if err != nil {
		panic(err)
	}
	return n
}

// Err returns the first error met while building q.
func (q *Query) Err() error {
	return q.err
}

func (q *Query) elem() *expr.Type {
	return q.node.Type().ElementType()
}

// apply appends operator op with the given arguments.
func (q *Query) apply(op expr.Operator, args ...expr.Node) *Query {
	if q.err != nil {
		return q
	}
	if q.final {
		return &Query{err: fmt.Errorf("%s after a terminal operator", op)}
	}
	return &Query{
		node:  expr.NewCall(op, append([]expr.Node{q.node}, args...)...),
		final: op.IsCardinalityReducer() || op.IsAggregate(),
	}
}

// applyLambda appends op with a lambda over the query's element.
func (q *Query) applyLambda(op expr.Operator, body func(Value) Value) *Query {
	if q.err != nil {
		return q
	}
	l, err := lambda(q.elem(), body)
	if err != nil {
		return &Query{err: fmt.Errorf("%s: %w", op, err)}
	}
	return q.apply(op, l)
}

func (q *Query) Where(pred func(Value) Value) *Query {
	return q.applyLambda(expr.OpWhere, pred)
}

func (q *Query) Select(selector func(Value) Value) *Query {
	return q.applyLambda(expr.OpSelect, selector)
}

func (q *Query) OrderBy(key func(Value) Value) *Query {
	return q.applyLambda(expr.OpOrderBy, key)
}

func (q *Query) OrderByDescending(key func(Value) Value) *Query {
	return q.applyLambda(expr.OpOrderByDescending, key)
}

func (q *Query) ThenBy(key func(Value) Value) *Query {
	return q.applyLambda(expr.OpThenBy, key)
}

func (q *Query) ThenByDescending(key func(Value) Value) *Query {
	return q.applyLambda(expr.OpThenByDescending, key)
}

// Include eager-loads a dotted navigation path ("Posts.Author").
func (q *Query) Include(path string) *Query {
	return q.apply(expr.OpInclude, expr.Const(ir.IRString(path)))
}

// IncludeFunc eager-loads the navigation selected by nav.
func (q *Query) IncludeFunc(nav func(Value) Value) *Query {
	return q.applyLambda(expr.OpInclude, nav)
}

// ThenInclude continues the previous include. On a collection navigation
// nav receives the element type.
func (q *Query) ThenInclude(nav func(Value) Value) *Query {
	if q.err != nil {
		return q
	}
	prev, ok := q.node.(*expr.Call)
	if !ok || (prev.Op != expr.OpInclude && prev.Op != expr.OpThenInclude) {
		return &Query{err: errors.New("ThenInclude must follow Include or ThenInclude")}
	}
	t, err := includedType(prev)
	if err != nil {
		return &Query{err: err}
	}
	l, err := lambda(t, nav)
	if err != nil {
		return &Query{err: fmt.Errorf("ThenInclude: %w", err)}
	}
	return q.apply(expr.OpThenInclude, l)
}

// includedType is the type the lambda of a ThenInclude following c reads.
func includedType(c *expr.Call) (*expr.Type, error) {
	var t *expr.Type
	switch arg := c.Args[1].(type) {
	case *expr.Lambda:
		t = arg.Body.Type()
	case *expr.Constant:
		path, _ := arg.Value.(ir.IRString)
		cur := c.Source().Type().ElementType()
		for _, seg := range strings.Split(string(path), ".") {
			next, err := expr.MemberType(cur.ElementType(), seg)
			if err != nil {
				return nil, err
			}
			cur = next
		}
		t = cur
	}
	if t == nil {
		return nil, errors.New("cannot infer the included type")
	}
	return t.ElementType().AsNonNullable(), nil
}

func (q *Query) Skip(n int) *Query {
	return q.apply(expr.OpSkip, expr.Const(ir.IRInt(n)))
}

func (q *Query) Take(n int) *Query {
	return q.apply(expr.OpTake, expr.Const(ir.IRInt(n)))
}

func (q *Query) Distinct() *Query {
	return q.apply(expr.OpDistinct)
}

func (q *Query) DefaultIfEmpty() *Query {
	return q.apply(expr.OpDefaultIfEmpty)
}

func (q *Query) Union(other *Query) *Query {
	return q.setOp(expr.OpUnion, other)
}

func (q *Query) Concat(other *Query) *Query {
	return q.setOp(expr.OpConcat, other)
}

func (q *Query) Intersect(other *Query) *Query {
	return q.setOp(expr.OpIntersect, other)
}

func (q *Query) Except(other *Query) *Query {
	return q.setOp(expr.OpExcept, other)
}

func (q *Query) setOp(op expr.Operator, other *Query) *Query {
	if other.err != nil {
		return other
	}
	return q.apply(op, other.node)
}

// SelectMany flattens the collection navigation selected by nav, yielding
// its targets.
func (q *Query) SelectMany(nav func(Value) Value) *Query {
	return q.applyLambda(expr.OpSelectMany, nav)
}

// Join correlates q with inner on equal keys. A nil result keeps both rows
// as a transparent pair.
func (q *Query) Join(inner *Query, outerKey, innerKey func(Value) Value, result func(o, i Value) Value) *Query {
	return q.join(expr.OpJoin, inner, outerKey, innerKey, result)
}

// LeftJoin is Join keeping outer rows without a match; the inner row is
// null for them.
func (q *Query) LeftJoin(inner *Query, outerKey, innerKey func(Value) Value, result func(o, i Value) Value) *Query {
	return q.join(expr.OpLeftJoin, inner, outerKey, innerKey, result)
}

func (q *Query) join(op expr.Operator, inner *Query, outerKey, innerKey func(Value) Value, result func(o, i Value) Value) *Query {
	if q.err != nil {
		return q
	}
	if inner.err != nil {
		return inner
	}
	outer, err := lambda(q.elem(), outerKey)
	if err != nil {
		return &Query{err: fmt.Errorf("%s outer key: %w", op, err)}
	}
	ik, err := lambda(inner.elem(), innerKey)
	if err != nil {
		return &Query{err: fmt.Errorf("%s inner key: %w", op, err)}
	}

	innerType := inner.elem()
	if op == expr.OpLeftJoin {
		innerType = innerType.AsNullable()
	}
	o := expr.NewParameter(paramName(q.elem()), q.elem())
	i := expr.NewParameter(paramName(innerType)+"2", innerType)
	body := Pair(V(o), V(i))
	if result != nil {
		body = result(V(o), V(i))
	}
	if body.err != nil {
		return &Query{err: fmt.Errorf("%s result: %w", op, body.err)}
	}
	return q.apply(op, inner.node, outer, ik, expr.NewLambda(body.node, o, i))
}

// First and the other terminal operators end the query. A non-nil pred
// is applied as a filter first.
func (q *Query) First(pred func(Value) Value) *Query {
	return q.terminal(expr.OpFirst, pred)
}

func (q *Query) FirstOrDefault(pred func(Value) Value) *Query {
	return q.terminal(expr.OpFirstOrDefault, pred)
}

func (q *Query) Single(pred func(Value) Value) *Query {
	return q.terminal(expr.OpSingle, pred)
}

func (q *Query) SingleOrDefault(pred func(Value) Value) *Query {
	return q.terminal(expr.OpSingleOrDefault, pred)
}

func (q *Query) Any(pred func(Value) Value) *Query {
	return q.terminal(expr.OpAny, pred)
}

func (q *Query) Count(pred func(Value) Value) *Query {
	return q.terminal(expr.OpCount, pred)
}

func (q *Query) LongCount(pred func(Value) Value) *Query {
	return q.terminal(expr.OpLongCount, pred)
}

// Sum, Min and Max fold the values picked by selector, or the elements
// themselves when selector is nil.
func (q *Query) Sum(selector func(Value) Value) *Query {
	return q.terminal(expr.OpSum, selector)
}

func (q *Query) Min(selector func(Value) Value) *Query {
	return q.terminal(expr.OpMin, selector)
}

func (q *Query) Max(selector func(Value) Value) *Query {
	return q.terminal(expr.OpMax, selector)
}

func (q *Query) All(pred func(Value) Value) *Query {
	if pred == nil {
		return &Query{err: errors.New("All requires a predicate")}
	}
	return q.terminal(expr.OpAll, pred)
}

func (q *Query) terminal(op expr.Operator, pred func(Value) Value) *Query {
	if pred == nil {
		return q.apply(op)
	}
	return q.applyLambda(op, pred)
}
