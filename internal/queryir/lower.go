package queryir

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/navex/internal/expr"
	"github.com/roach88/navex/internal/ir"
	"github.com/roach88/navex/internal/navigation"
)

// ErrUnsupported is returned for expressions outside the relational
// fragment, such as an Include left in an expanded query.
var ErrUnsupported = errors.New("not expressible as a relational query")

// Lower translates an expanded query expression into a relational query.
//
// The expression must be the output of navigation expansion: entity sets,
// joins and the row operators over them. Navigations, Include and
// ThenInclude must already be gone.
//
// Every source row is addressed through a fresh alias (q0, q1, ...).
// Lambda parameters are resolved to the alias of the rows they range over;
// a parameter of an enclosing query makes the nested query correlated.
func Lower(n expr.Node) (Query, error) {
	l := &lowerer{}
	return l.query(n, scope{})
}

// ColumnName is the row column holding the value at path. The empty path
// names the whole row of a scalar query.
func ColumnName(path []string) string {
	if len(path) == 0 {
		return ValueColumn
	}
	return strings.Join(path, ".")
}

// NestColumn prefixes column c with member. A scalar row column becomes the
// member itself.
func NestColumn(member, c string) string {
	if c == ValueColumn {
		return member
	}
	return member + "." + c
}

// RowColumns lists the relative column paths of a row of type t: the
// properties of an entity, the fields of a pair or object, or the empty
// path for a scalar.
func RowColumns(t *expr.Type) ([][]string, error) {
	switch t.Kind {
	case expr.TypeScalar:
		return [][]string{nil}, nil
	case expr.TypeEntity:
		out := make([][]string, len(t.Entity.Properties))
		for i, p := range t.Entity.Properties {
			out[i] = []string{p.Name}
		}
		return out, nil
	case expr.TypePair, expr.TypeObject:
		var out [][]string
		for _, f := range t.Fields {
			sub, err := RowColumns(f.Type)
			if err != nil {
				return nil, err
			}
			for _, s := range sub {
				out = append(out, append([]string{f.Name}, s...))
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: a row cannot hold %s", ErrUnsupported, t)
	}
}

type scope map[*expr.Parameter]value

func (s scope) with(p *expr.Parameter, v value) scope {
	next := maps.Clone(s)
	next[p] = v
	return next
}

type lowerer struct {
	aliases int
}

func (l *lowerer) alias() string {
	a := "q" + strconv.Itoa(l.aliases)
	l.aliases++
	return a
}

func (l *lowerer) query(n expr.Node, sc scope) (Query, error) {
	switch n := n.(type) {
	case *expr.EntitySet:
		fields := make([]string, len(n.Entity.Properties))
		for i, p := range n.Entity.Properties {
			fields[i] = p.Name
		}
		return &Scan{Table: n.Entity.Table, Fields: fields}, nil
	case *expr.Call:
		return l.call(n, sc)
	default:
		return nil, fmt.Errorf("%w: %s is not a query", ErrUnsupported, expr.Format(n))
	}
}

func (l *lowerer) call(c *expr.Call, sc scope) (Query, error) {
	if c.Op.IsJoin() {
		return l.join(c, sc)
	}
	src, err := l.query(c.Source(), sc)
	if err != nil {
		return nil, err
	}
	elem := c.Source().Type().ElementType()

	switch op := c.Op; {
	case op == expr.OpWhere:
		alias := l.alias()
		pred, err := l.predicate(c, 1, alias, elem, sc)
		if err != nil {
			return nil, err
		}
		return &Filter{Source: src, Alias: alias, Predicate: pred}, nil

	case op == expr.OpSelect:
		alias := l.alias()
		lam, err := lambda(c, 1, 1)
		if err != nil {
			return nil, err
		}
		v, err := l.value(lam.Body, sc.with(lam.Param(), rowValue{alias: alias, typ: elem}))
		if err != nil {
			return nil, err
		}
		projections, err := flatten(v, nil)
		if err != nil {
			return nil, err
		}
		return &Project{Source: src, Alias: alias, Projections: projections}, nil

	case op.IsOrdering():
		key, err := l.orderKey(c, elem, sc)
		if err != nil {
			return nil, err
		}
		if prev, ok := src.(*Order); ok && op.IsThenBy() {
			return &Order{Source: prev.Source, Alias: prev.Alias, Keys: append(slices.Clone(prev.Keys), key(prev.Alias))}, nil
		}
		alias := l.alias()
		return &Order{Source: src, Alias: alias, Keys: []OrderKey{key(alias)}}, nil

	case op == expr.OpSkip || op == expr.OpTake:
		count, err := countArg(c)
		if err != nil {
			return nil, err
		}
		if prev, ok := src.(*Slice); ok && op == expr.OpTake && prev.Limit == nil {
			return &Slice{Source: prev.Source, Alias: prev.Alias, Offset: prev.Offset, Limit: count}, nil
		}
		s := &Slice{Source: src, Alias: l.alias()}
		if op == expr.OpSkip {
			s.Offset = count
		} else {
			s.Limit = count
		}
		return s, nil

	case op == expr.OpDistinct:
		return &Distinct{Source: src, Alias: l.alias()}, nil

	case op == expr.OpDefaultIfEmpty:
		return &DefaultIfEmpty{Source: src, Alias: l.alias()}, nil

	case op.IsSetOperation():
		if len(c.Args) != 2 {
			return nil, fmt.Errorf("%w: %s takes one argument", ErrUnsupported, op)
		}
		right, err := l.query(c.Args[1], sc)
		if err != nil {
			return nil, err
		}
		return &SetOp{Kind: setOpKinds[op], Left: src, Right: right, LeftAlias: l.alias(), RightAlias: l.alias()}, nil

	case op == expr.OpAll:
		alias := l.alias()
		pred, err := l.predicate(c, 1, alias, elem, sc)
		if err != nil {
			return nil, err
		}
		failing := &Filter{Source: src, Alias: alias, Predicate: &Not{Operand: pred}}
		return &Terminal{Op: TerminalAll, Source: failing, Alias: l.alias()}, nil

	case op.IsCardinalityReducer() || op.IsAggregate():
		if len(c.Args) != 1 {
			return nil, fmt.Errorf("%w: %s predicate was not expanded", ErrUnsupported, op)
		}
		top := TerminalOp(op)
		if op == expr.OpLongCount {
			top = TerminalCount
		}
		if top.IsFold() && !slices.Equal(src.Columns(), []string{ValueColumn}) {
			return nil, fmt.Errorf("%w: %s over rows that are not scalar", ErrUnsupported, op)
		}
		return &Terminal{Op: top, Source: src, Alias: l.alias()}, nil

	default:
		return nil, fmt.Errorf("%w: operator %s", ErrUnsupported, op)
	}
}

var setOpKinds = map[expr.Operator]SetOpKind{
	expr.OpUnion:     Union,
	expr.OpConcat:    UnionAll,
	expr.OpIntersect: Intersect,
	expr.OpExcept:    Except,
}

// join lowers Join and LeftJoin. The result selector of an expanded join
// builds the {Outer, Inner} pair; any other selector becomes a projection
// over the joined row.
func (l *lowerer) join(c *expr.Call, sc scope) (Query, error) {
	if len(c.Args) != 5 {
		return nil, fmt.Errorf("%w: %s takes four arguments", ErrUnsupported, c.Op)
	}
	left, err := l.query(c.Args[0], sc)
	if err != nil {
		return nil, err
	}
	right, err := l.query(c.Args[1], sc)
	if err != nil {
		return nil, err
	}
	outerKey, err := lambda(c, 2, 1)
	if err != nil {
		return nil, err
	}
	innerKey, err := lambda(c, 3, 1)
	if err != nil {
		return nil, err
	}
	result, err := lambda(c, 4, 2)
	if err != nil {
		return nil, err
	}

	j := &Join{Kind: JoinInner, Left: left, Right: right, LeftAlias: l.alias(), RightAlias: l.alias()}
	if c.Op == expr.OpLeftJoin {
		j.Kind = JoinLeft
	}
	outerElem := c.Args[0].Type().ElementType()
	innerElem := c.Args[1].Type().ElementType()

	ko, err := l.value(outerKey.Body, sc.with(outerKey.Param(), rowValue{alias: j.LeftAlias, typ: outerElem}))
	if err != nil {
		return nil, err
	}
	ki, err := l.value(innerKey.Body, sc.with(innerKey.Param(), rowValue{alias: j.RightAlias, typ: innerElem}))
	if err != nil {
		return nil, err
	}
	if j.On, err = equality(ko, ki); err != nil {
		return nil, err
	}

	o, i := result.Params[0], result.Params[1]
	if pair, ok := result.Body.(*expr.New); ok && pair.IsPair() && pair.Args[0] == expr.Node(o) && pair.Args[1] == expr.Node(i) {
		return j, nil
	}

	alias := l.alias()
	rs := sc.with(o, rowValue{alias: alias, path: []string{expr.OuterField}, typ: o.Type()}).
		with(i, rowValue{alias: alias, path: []string{expr.InnerField}, typ: i.Type()})
	v, err := l.value(result.Body, rs)
	if err != nil {
		return nil, err
	}
	projections, err := flatten(v, nil)
	if err != nil {
		return nil, err
	}
	return &Project{Source: j, Alias: alias, Projections: projections}, nil
}

func (l *lowerer) predicate(c *expr.Call, i int, alias string, elem *expr.Type, sc scope) (Scalar, error) {
	lam, err := lambda(c, i, 1)
	if err != nil {
		return nil, err
	}
	v, err := l.value(lam.Body, sc.with(lam.Param(), rowValue{alias: alias, typ: elem}))
	if err != nil {
		return nil, err
	}
	return scalarOf(v)
}

// orderKey lowers the key selector of an ordering call. The alias is bound
// late because ThenBy reuses the alias of the ordering it extends.
func (l *lowerer) orderKey(c *expr.Call, elem *expr.Type, sc scope) (func(string) OrderKey, error) {
	lam, err := lambda(c, 1, 1)
	if err != nil {
		return nil, err
	}
	placeholder := "\x00"
	v, err := l.value(lam.Body, sc.with(lam.Param(), rowValue{alias: placeholder, typ: elem}))
	if err != nil {
		return nil, err
	}
	s, err := scalarOf(v)
	if err != nil {
		return nil, err
	}
	return func(alias string) OrderKey {
		return OrderKey{Value: renameAlias(s, placeholder, alias), Descending: c.Op.IsDescending()}
	}, nil
}

// renameAlias rewrites the columns of alias from in s. Nested queries are
// left alone: they never see the placeholder alias of an ordering key
// except through correlation, which renameQuery covers.
func renameAlias(s Scalar, from, to string) Scalar {
	switch s := s.(type) {
	case *Column:
		if s.Alias == from {
			return &Column{Alias: to, Name: s.Name}
		}
		return s
	case *Compare:
		return &Compare{Op: s.Op, Left: renameAlias(s.Left, from, to), Right: renameAlias(s.Right, from, to)}
	case *Logical:
		return &Logical{Op: s.Op, Left: renameAlias(s.Left, from, to), Right: renameAlias(s.Right, from, to)}
	case *Not:
		return &Not{Operand: renameAlias(s.Operand, from, to)}
	case *IsNull:
		return &IsNull{Operand: renameAlias(s.Operand, from, to)}
	case *In:
		values := make([]Scalar, len(s.Values))
		for i, x := range s.Values {
			values[i] = renameAlias(x, from, to)
		}
		return &In{Operand: renameAlias(s.Operand, from, to), Values: values}
	case *Coalesce:
		return &Coalesce{Left: renameAlias(s.Left, from, to), Right: renameAlias(s.Right, from, to)}
	case *Case:
		return &Case{When: renameAlias(s.When, from, to), Then: renameAlias(s.Then, from, to), Else: renameAlias(s.Else, from, to)}
	case *Exists:
		return &Exists{Query: renameQuery(s.Query, from, to)}
	case *CountOf:
		return &CountOf{Query: renameQuery(s.Query, from, to), Alias: s.Alias}
	case *Subquery:
		return &Subquery{Query: renameQuery(s.Query, from, to), Alias: s.Alias, Column: s.Column}
	default:
		return s
	}
}

func renameQuery(q Query, from, to string) Query {
	switch q := q.(type) {
	case *Join:
		return &Join{Kind: q.Kind, Left: renameQuery(q.Left, from, to), Right: renameQuery(q.Right, from, to),
			LeftAlias: q.LeftAlias, RightAlias: q.RightAlias, On: renameAlias(q.On, from, to)}
	case *Filter:
		return &Filter{Source: renameQuery(q.Source, from, to), Alias: q.Alias, Predicate: renameAlias(q.Predicate, from, to)}
	case *Project:
		ps := make([]Projection, len(q.Projections))
		for i, p := range q.Projections {
			ps[i] = Projection{Name: p.Name, Value: renameAlias(p.Value, from, to)}
		}
		return &Project{Source: renameQuery(q.Source, from, to), Alias: q.Alias, Projections: ps}
	case *Order:
		keys := make([]OrderKey, len(q.Keys))
		for i, k := range q.Keys {
			keys[i] = OrderKey{Value: renameAlias(k.Value, from, to), Descending: k.Descending}
		}
		return &Order{Source: renameQuery(q.Source, from, to), Alias: q.Alias, Keys: keys}
	case *Slice:
		return &Slice{Source: renameQuery(q.Source, from, to), Alias: q.Alias, Offset: q.Offset, Limit: q.Limit}
	case *Distinct:
		return &Distinct{Source: renameQuery(q.Source, from, to), Alias: q.Alias}
	case *DefaultIfEmpty:
		return &DefaultIfEmpty{Source: renameQuery(q.Source, from, to), Alias: q.Alias}
	case *SetOp:
		return &SetOp{Kind: q.Kind, Left: renameQuery(q.Left, from, to), Right: renameQuery(q.Right, from, to),
			LeftAlias: q.LeftAlias, RightAlias: q.RightAlias}
	case *Terminal:
		return &Terminal{Op: q.Op, Source: renameQuery(q.Source, from, to), Alias: q.Alias}
	default:
		return q
	}
}

// value lowers a row-level expression.
func (l *lowerer) value(n expr.Node, sc scope) (value, error) {
	switch n := n.(type) {
	case *expr.Parameter:
		v, ok := sc[n]
		if !ok {
			return nil, fmt.Errorf("%w: parameter %s is not in scope", ErrUnsupported, n.Name)
		}
		return v, nil

	case *expr.Constant:
		if n.IsNull() {
			return nullValue{typ: n.Type()}, nil
		}
		return scalarValue{s: &Literal{Value: n.Value}}, nil

	case *expr.Member:
		target, err := l.value(n.Target, sc)
		if err != nil {
			return nil, err
		}
		return member(target, n.Name, n.Type())

	case *expr.Convert:
		return l.value(n.Operand, sc)

	case *expr.Not:
		s, err := l.scalar(n.Operand, sc)
		if err != nil {
			return nil, err
		}
		return scalarValue{s: &Not{Operand: s}}, nil

	case *expr.Binary:
		return l.binary(n, sc)

	case *expr.Conditional:
		return l.conditional(n, sc)

	case *expr.New:
		vs := make([]value, len(n.Args))
		for i, a := range n.Args {
			v, err := l.value(a, sc)
			if err != nil {
				return nil, err
			}
			vs[i] = v
		}
		return objectValue{members: n.Members, values: vs}, nil

	case *expr.Call:
		return l.subquery(n, sc)

	case *navigation.MaterializeCollection:
		owner, err := l.value(n.Owner, sc)
		if err != nil {
			return nil, err
		}
		keys := n.Query.OwnerKey
		vs := make([]value, len(keys))
		for i, k := range keys {
			p := n.Navigation.DeclaringEntity.FindProperty(k)
			if p == nil {
				return nil, fmt.Errorf("%w: %s has no key property %s", ErrUnsupported, n.Navigation.DeclaringEntity.Name, k)
			}
			v, err := member(owner, k, expr.PropertyType(p))
			if err != nil {
				return nil, err
			}
			vs[i] = v
		}
		return objectValue{members: keys, values: vs}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, expr.Format(n))
	}
}

func (l *lowerer) scalar(n expr.Node, sc scope) (Scalar, error) {
	v, err := l.value(n, sc)
	if err != nil {
		return nil, err
	}
	return scalarOf(v)
}

var compareOps = map[expr.BinaryOp]CompareOp{
	expr.OpLessThan:       Lt,
	expr.OpLessOrEqual:    Le,
	expr.OpGreaterThan:    Gt,
	expr.OpGreaterOrEqual: Ge,
}

func (l *lowerer) binary(n *expr.Binary, sc scope) (value, error) {
	left, err := l.value(n.Left, sc)
	if err != nil {
		return nil, err
	}
	right, err := l.value(n.Right, sc)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case expr.OpEqual, expr.OpNotEqual:
		eq, err := equality(left, right)
		if err != nil {
			return nil, err
		}
		if n.Op == expr.OpNotEqual {
			eq = negate(eq)
		}
		return scalarValue{s: eq}, nil
	case expr.OpAndAlso, expr.OpOrElse:
		ls, err := scalarOf(left)
		if err != nil {
			return nil, err
		}
		rs, err := scalarOf(right)
		if err != nil {
			return nil, err
		}
		op := And
		if n.Op == expr.OpOrElse {
			op = Or
		}
		return scalarValue{s: &Logical{Op: op, Left: ls, Right: rs}}, nil
	case expr.OpCoalesce:
		ls, err := scalarOf(left)
		if err != nil {
			return nil, err
		}
		rs, err := scalarOf(right)
		if err != nil {
			return nil, err
		}
		return scalarValue{s: &Coalesce{Left: ls, Right: rs}}, nil
	}

	op, ok := compareOps[n.Op]
	if !ok {
		return nil, fmt.Errorf("%w: operator %s", ErrUnsupported, n.Op)
	}
	ls, err := scalarOf(left)
	if err != nil {
		return nil, err
	}
	rs, err := scalarOf(right)
	if err != nil {
		return nil, err
	}
	return scalarValue{s: &Compare{Op: op, Left: ls, Right: rs}}, nil
}

// conditional lowers `test ? a : b`. The null guards produced for optional
// navigations (`x == null ? null : x.M`) reduce to x.M, since SQL already
// propagates NULL through a missing row.
func (l *lowerer) conditional(n *expr.Conditional, sc scope) (value, error) {
	if isNullGuard(n) {
		return l.value(n.IfFalse, sc)
	}
	if n.Type().Kind != expr.TypeScalar {
		return nil, fmt.Errorf("%w: conditional of %s", ErrUnsupported, n.Type())
	}
	test, err := l.scalar(n.Test, sc)
	if err != nil {
		return nil, err
	}
	a, err := l.scalar(n.IfTrue, sc)
	if err != nil {
		return nil, err
	}
	b, err := l.scalar(n.IfFalse, sc)
	if err != nil {
		return nil, err
	}
	return scalarValue{s: &Case{When: test, Then: a, Else: b}}, nil
}

func isNullGuard(n *expr.Conditional) bool {
	c, ok := n.IfTrue.(*expr.Constant)
	if !ok || !c.IsNull() {
		return false
	}
	test, ok := n.Test.(*expr.Binary)
	if !ok || test.Op != expr.OpEqual {
		return false
	}
	for _, side := range []expr.Node{test.Left, test.Right} {
		if k, ok := side.(*expr.Constant); ok && k.IsNull() {
			return true
		}
	}
	return false
}

// subquery lowers a query nested in a row expression. The enclosing scope
// stays visible, so the nested query may be correlated.
func (l *lowerer) subquery(c *expr.Call, sc scope) (value, error) {
	switch {
	case c.Op == expr.OpAny && len(c.Args) == 1:
		q, err := l.query(c.Source(), sc)
		if err != nil {
			return nil, err
		}
		return scalarValue{s: &Exists{Query: q}}, nil
	case (c.Op == expr.OpCount || c.Op == expr.OpLongCount) && len(c.Args) == 1:
		q, err := l.query(c.Source(), sc)
		if err != nil {
			return nil, err
		}
		return scalarValue{s: &CountOf{Query: q, Alias: l.alias()}}, nil
	case c.Op.IsValueAggregate() && len(c.Args) == 1:
		q, err := l.query(c, sc)
		if err != nil {
			return nil, err
		}
		return scalarValue{s: &Subquery{Query: q, Alias: l.alias(), Column: ValueColumn}}, nil
	case c.Op == expr.OpAll:
		q, err := l.query(c, sc)
		if err != nil {
			return nil, err
		}
		failing := q.(*Terminal).Source
		return scalarValue{s: &Not{Operand: &Exists{Query: failing}}}, nil
	case c.Op.IsCardinalityReducer() && len(c.Args) == 1:
		q, err := l.query(c.Source(), sc)
		if err != nil {
			return nil, err
		}
		one := &Slice{Source: q, Alias: l.alias(), Limit: &Literal{Value: ir.IRInt(1)}}
		return subqueryValue{q: one, alias: l.alias(), typ: c.Type()}, nil
	default:
		return nil, fmt.Errorf("%w: sequence %s used as a value", ErrUnsupported, expr.Format(c))
	}
}

// value is the lowered form of a row expression: a scalar, a part of the
// current row, an object built from values, or a row of a nested query.
type value interface {
	lowered()
}

type scalarValue struct{ s Scalar }

// rowValue is the part of the row of alias found at path.
type rowValue struct {
	alias string
	path  []string
	typ   *expr.Type
}

type nullValue struct{ typ *expr.Type }

type objectValue struct {
	members []string
	values  []value
}

// subqueryValue is the single row of a nested query. Only its scalar
// members can be read.
type subqueryValue struct {
	q     Query
	alias string
	path  []string
	typ   *expr.Type
}

func (scalarValue) lowered()   {}
func (rowValue) lowered()      {}
func (nullValue) lowered()     {}
func (objectValue) lowered()   {}
func (subqueryValue) lowered() {}

func member(v value, name string, t *expr.Type) (value, error) {
	switch v := v.(type) {
	case rowValue:
		return rowValue{alias: v.alias, path: append(slices.Clone(v.path), name), typ: t}, nil
	case subqueryValue:
		return subqueryValue{q: v.q, alias: v.alias, path: append(slices.Clone(v.path), name), typ: t}, nil
	case nullValue:
		return nullValue{typ: t}, nil
	case objectValue:
		for i, m := range v.members {
			if m == name {
				return v.values[i], nil
			}
		}
	}
	return nil, fmt.Errorf("%w: member %s of a scalar value", ErrUnsupported, name)
}

// scalarOf converts v into a scalar. Only scalar-typed values qualify.
func scalarOf(v value) (Scalar, error) {
	switch v := v.(type) {
	case scalarValue:
		return v.s, nil
	case rowValue:
		if v.typ.Kind == expr.TypeScalar {
			return &Column{Alias: v.alias, Name: ColumnName(v.path)}, nil
		}
		return nil, fmt.Errorf("%w: %s used as a scalar", ErrUnsupported, v.typ)
	case subqueryValue:
		if v.typ.Kind == expr.TypeScalar {
			return &Subquery{Query: v.q, Alias: v.alias, Column: ColumnName(v.path)}, nil
		}
		return nil, fmt.Errorf("%w: %s used as a scalar", ErrUnsupported, v.typ)
	case nullValue:
		return &Literal{Value: ir.IRNull{}}, nil
	default:
		return nil, fmt.Errorf("%w: object used as a scalar", ErrUnsupported)
	}
}

// components lists the scalars compared when testing v for equality. An
// entity is identified by its primary key.
func components(v value) ([]Scalar, error) {
	switch v := v.(type) {
	case rowValue:
		switch v.typ.Kind {
		case expr.TypeScalar:
			s, err := scalarOf(v)
			return []Scalar{s}, err
		case expr.TypeEntity:
			var out []Scalar
			for _, name := range v.typ.Entity.PrimaryKey.Names() {
				out = append(out, &Column{Alias: v.alias, Name: ColumnName(append(slices.Clone(v.path), name))})
			}
			return out, nil
		}
	case objectValue:
		var out []Scalar
		for _, mv := range v.values {
			cs, err := components(mv)
			if err != nil {
				return nil, err
			}
			out = append(out, cs...)
		}
		return out, nil
	case scalarValue, subqueryValue:
		s, err := scalarOf(v)
		return []Scalar{s}, err
	}
	return nil, fmt.Errorf("%w: cannot compare %T", ErrUnsupported, v)
}

// equality compares two values component by component. Comparing with
// null tests the first component, which for an entity is its key.
func equality(a, b value) (Scalar, error) {
	if _, ok := b.(nullValue); ok {
		a, b = b, a
	}
	if _, ok := a.(nullValue); ok {
		if _, ok := b.(nullValue); ok {
			return &Compare{Op: Eq, Left: &Literal{Value: ir.IRInt(1)}, Right: &Literal{Value: ir.IRInt(1)}}, nil
		}
		cs, err := components(b)
		if err != nil {
			return nil, err
		}
		return &IsNull{Operand: cs[0]}, nil
	}

	ac, err := components(a)
	if err != nil {
		return nil, err
	}
	bc, err := components(b)
	if err != nil {
		return nil, err
	}
	if len(ac) != len(bc) {
		return nil, fmt.Errorf("%w: comparing %d components with %d", ErrUnsupported, len(ac), len(bc))
	}
	preds := make([]Scalar, len(ac))
	for i := range ac {
		preds[i] = &Compare{Op: Eq, Left: ac[i], Right: bc[i]}
	}
	return AndAll(preds...), nil
}

func negate(s Scalar) Scalar {
	if n, ok := s.(*IsNull); ok {
		return &Not{Operand: n}
	}
	if c, ok := s.(*Compare); ok && c.Op == Eq {
		return &Compare{Op: Ne, Left: c.Left, Right: c.Right}
	}
	return &Not{Operand: s}
}

// flatten lists the columns of v, named by their path in the row.
func flatten(v value, path []string) ([]Projection, error) {
	switch v := v.(type) {
	case objectValue:
		var out []Projection
		for i, m := range v.members {
			sub, err := flatten(v.values[i], append(slices.Clone(path), m))
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
		return out, nil
	case rowValue, nullValue, subqueryValue:
		cols, err := RowColumns(typeOf(v))
		if err != nil {
			return nil, err
		}
		out := make([]Projection, len(cols))
		for i, rel := range cols {
			var s Scalar
			switch v := v.(type) {
			case rowValue:
				s = &Column{Alias: v.alias, Name: ColumnName(append(slices.Clone(v.path), rel...))}
			case subqueryValue:
				s = &Subquery{Query: v.q, Alias: v.alias, Column: ColumnName(append(slices.Clone(v.path), rel...))}
			default:
				s = &Literal{Value: ir.IRNull{}}
			}
			out[i] = Projection{Name: ColumnName(append(slices.Clone(path), rel...)), Value: s}
		}
		return out, nil
	default:
		s, err := scalarOf(v)
		if err != nil {
			return nil, err
		}
		return []Projection{{Name: ColumnName(path), Value: s}}, nil
	}
}

func typeOf(v value) *expr.Type {
	switch v := v.(type) {
	case rowValue:
		return v.typ
	case nullValue:
		return v.typ
	case subqueryValue:
		return v.typ
	}
	return nil
}

func lambda(c *expr.Call, i, arity int) (*expr.Lambda, error) {
	l := c.LambdaArg(i)
	if l == nil || len(l.Params) != arity {
		return nil, fmt.Errorf("%w: %s argument %d is not a lambda of %d parameters", ErrUnsupported, c.Op, i, arity)
	}
	return l, nil
}

func countArg(c *expr.Call) (Scalar, error) {
	if len(c.Args) != 2 {
		return nil, fmt.Errorf("%w: %s takes one argument", ErrUnsupported, c.Op)
	}
	k, ok := c.Args[1].(*expr.Constant)
	if !ok {
		return nil, fmt.Errorf("%w: %s count must be a constant", ErrUnsupported, c.Op)
	}
	if n, ok := k.Value.(ir.IRInt); !ok || n < 0 {
		return nil, fmt.Errorf("%w: %s count %s", ErrUnsupported, c.Op, expr.FormatValue(k.Value))
	}
	return &Literal{Value: k.Value}, nil
}
