package harness

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/navex/internal/model"
	"github.com/roach88/navex/internal/query"
)

// Step is one query operator. In YAML a step is either a bare operator
// name ("distinct", "first", "count") or a single-key mapping whose value
// is the operator's argument:
//
//	steps:
//	  - where: {eq: [Blog.Name, {lit: Go}]}
//	  - include: Blog.Owner
//	  - order_by: Title
//	  - take: 2
//	  - first
type Step struct {
	Op string

	// Expr is the lambda body of where, select, the orderings, then_include
	// and the optional predicate of terminal operators.
	Expr *Expr

	// Path is the dotted include path.
	Path string

	// N is the skip or take count.
	N int

	// Other is the second query of union, concat, intersect and except.
	Other *QuerySpec

	// Join is the argument of join and left_join.
	Join *JoinSpec
}

var stepArgs = map[string]string{
	"where":             "expr",
	"select":            "expr",
	"order_by":          "expr",
	"order_by_desc":     "expr",
	"then_by":           "expr",
	"then_by_desc":      "expr",
	"then_include":      "expr",
	"include":           "path",
	"skip":              "count",
	"take":              "count",
	"distinct":          "none",
	"default_if_empty":  "none",
	"select_many":       "expr",
	"union":             "query",
	"concat":            "query",
	"intersect":         "query",
	"except":            "query",
	"join":              "join",
	"left_join":         "join",
	"first":             "predicate",
	"first_or_default":  "predicate",
	"single":            "predicate",
	"single_or_default": "predicate",
	"any":               "predicate",
	"count":             "predicate",
	"long_count":        "predicate",
	"sum":               "predicate",
	"min":               "predicate",
	"max":               "predicate",
	"all":               "expr",
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Step) UnmarshalYAML(n *yaml.Node) error {
	var arg *yaml.Node
	switch n.Kind {
	case yaml.ScalarNode:
		s.Op = n.Value
	case yaml.MappingNode:
		if len(n.Content) != 2 {
			return fmt.Errorf("line %d: a step has exactly one operator", n.Line)
		}
		s.Op, arg = n.Content[0].Value, n.Content[1]
	default:
		return fmt.Errorf("line %d: a step is an operator name or a single-key mapping", n.Line)
	}

	kind, ok := stepArgs[s.Op]
	if !ok {
		return fmt.Errorf("line %d: unknown step %q", n.Line, s.Op)
	}
	if arg != nil && arg.ShortTag() == "!!null" {
		arg = nil
	}

	switch kind {
	case "none":
		if arg != nil {
			return fmt.Errorf("line %d: %s takes no argument", n.Line, s.Op)
		}
		return nil
	case "predicate":
		if arg == nil {
			return nil
		}
		s.Expr = &Expr{}
		return arg.Decode(s.Expr)
	}

	if arg == nil {
		return fmt.Errorf("line %d: %s requires an argument", n.Line, s.Op)
	}
	switch kind {
	case "expr":
		s.Expr = &Expr{}
		return arg.Decode(s.Expr)
	case "path":
		if arg.Kind != yaml.ScalarNode || arg.Value == "" {
			return fmt.Errorf("line %d: %s takes a dotted navigation path", arg.Line, s.Op)
		}
		s.Path = arg.Value
	case "count":
		if err := arg.Decode(&s.N); err != nil {
			return fmt.Errorf("line %d: %s: %w", arg.Line, s.Op, err)
		}
		if s.N < 0 {
			return fmt.Errorf("line %d: %s must be non-negative", arg.Line, s.Op)
		}
	case "query":
		s.Other = &QuerySpec{}
		return arg.Decode(s.Other)
	case "join":
		s.Join = &JoinSpec{}
		if err := arg.Decode(s.Join); err != nil {
			return err
		}
		if s.Join.OuterKey == nil || s.Join.InnerKey == nil {
			return fmt.Errorf("line %d: %s requires outer_key and inner_key", arg.Line, s.Op)
		}
	}
	return nil
}

// Build constructs the query described by q over model m.
func (q *QuerySpec) Build(m *model.Model) *query.Query {
	b := query.From(m, q.From)
	for _, s := range q.Steps {
		b = s.apply(m, b)
	}
	return b
}

func (s Step) apply(m *model.Model, q *query.Query) *query.Query {
	switch s.Op {
	case "where":
		return q.Where(s.Expr.Build)
	case "select":
		return q.Select(s.Expr.Build)
	case "order_by":
		return q.OrderBy(s.Expr.Build)
	case "order_by_desc":
		return q.OrderByDescending(s.Expr.Build)
	case "then_by":
		return q.ThenBy(s.Expr.Build)
	case "then_by_desc":
		return q.ThenByDescending(s.Expr.Build)
	case "include":
		return q.Include(s.Path)
	case "then_include":
		return q.ThenInclude(s.Expr.Build)
	case "skip":
		return q.Skip(s.N)
	case "take":
		return q.Take(s.N)
	case "distinct":
		return q.Distinct()
	case "default_if_empty":
		return q.DefaultIfEmpty()
	case "union":
		return q.Union(s.Other.Build(m))
	case "concat":
		return q.Concat(s.Other.Build(m))
	case "intersect":
		return q.Intersect(s.Other.Build(m))
	case "except":
		return q.Except(s.Other.Build(m))
	case "select_many":
		return q.SelectMany(s.Expr.Build)
	case "join":
		return q.Join(s.Join.Query.Build(m), s.Join.OuterKey.Build, s.Join.InnerKey.Build, nil)
	case "left_join":
		return q.LeftJoin(s.Join.Query.Build(m), s.Join.OuterKey.Build, s.Join.InnerKey.Build, nil)
	case "first":
		return q.First(s.predicate())
	case "first_or_default":
		return q.FirstOrDefault(s.predicate())
	case "single":
		return q.Single(s.predicate())
	case "single_or_default":
		return q.SingleOrDefault(s.predicate())
	case "any":
		return q.Any(s.predicate())
	case "count":
		return q.Count(s.predicate())
	case "long_count":
		return q.LongCount(s.predicate())
	case "sum":
		return q.Sum(s.predicate())
	case "min":
		return q.Min(s.predicate())
	case "max":
		return q.Max(s.predicate())
	case "all":
		return q.All(s.Expr.Build)
	default:
		return q
	}
}

func (s Step) predicate() func(query.Value) query.Value {
	if s.Expr == nil {
		return nil
	}
	return s.Expr.Build
}

// Expr is an expression over the current element, written in YAML:
//
//	Blog.Name                     member path ("." is the element itself)
//	5, true, null                 literal
//	{lit: Go}                     string literal
//	{eq: [Title, {lit: Hello}]}   comparison (eq ne lt le gt ge)
//	{and: [a, b, ...]}            logical (and or), coalesce
//	{not: e}, {is_null: e}, {not_null: e}
//	{if: [test, then, else]}
//	{object: {Title: Title, Blog: Blog.Name}}
//	{any: Posts}, {count: {of: Posts, where: e}}, {all: {of: Posts, where: e}}
//	{sum: {of: Posts, select: Rating}}, {min: ...}, {max: ...}
type Expr struct {
	Path   string
	Lit    any
	IsLit  bool
	Op     string
	Args   []*Expr
	Fields []string
	Where  *Expr
	Select *Expr
}

var exprArity = map[string]int{
	"eq": 2, "ne": 2, "lt": 2, "le": 2, "gt": 2, "ge": 2,
	"and": -2, "or": -2, "coalesce": -2,
	"not": 1, "is_null": 1, "not_null": 1,
	"if": 3,
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *Expr) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.ShortTag() == "!!str" {
			e.Path = n.Value
			return nil
		}
		e.IsLit = true
		return n.Decode(&e.Lit)
	case yaml.MappingNode:
		if len(n.Content) != 2 {
			return fmt.Errorf("line %d: an expression has exactly one operator", n.Line)
		}
	default:
		return fmt.Errorf("line %d: expected an expression", n.Line)
	}

	op, arg := n.Content[0].Value, n.Content[1]
	e.Op = op
	switch op {
	case "path":
		e.Op = ""
		return arg.Decode(&e.Path)
	case "lit":
		e.Op = ""
		e.IsLit = true
		if arg.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: lit takes a scalar", arg.Line)
		}
		return arg.Decode(&e.Lit)
	case "object":
		if arg.Kind != yaml.MappingNode {
			return fmt.Errorf("line %d: object takes a mapping", arg.Line)
		}
		for i := 0; i < len(arg.Content); i += 2 {
			field := &Expr{}
			if err := arg.Content[i+1].Decode(field); err != nil {
				return err
			}
			e.Fields = append(e.Fields, arg.Content[i].Value)
			e.Args = append(e.Args, field)
		}
		return nil
	case "any", "count", "all", "sum", "min", "max":
		return e.decodeAggregate(arg)
	}

	arity, ok := exprArity[op]
	if !ok {
		return fmt.Errorf("line %d: unknown operator %q", n.Line, op)
	}
	if arity == 1 {
		e.Args = []*Expr{{}}
		return arg.Decode(e.Args[0])
	}
	if err := arg.Decode(&e.Args); err != nil {
		return err
	}
	if (arity > 0 && len(e.Args) != arity) || (arity < 0 && len(e.Args) < -arity) {
		return fmt.Errorf("line %d: %s takes %d operands, got %d", arg.Line, op, abs(arity), len(e.Args))
	}
	return nil
}

// decodeAggregate reads "Posts", {of: Posts, where: e} or, for sum, min
// and max, {of: Posts, select: e}.
func (e *Expr) decodeAggregate(arg *yaml.Node) error {
	var of string
	switch arg.Kind {
	case yaml.ScalarNode:
		of = arg.Value
	case yaml.MappingNode:
		var spec struct {
			Of     string `yaml:"of"`
			Where  *Expr  `yaml:"where"`
			Select *Expr  `yaml:"select"`
		}
		if err := arg.Decode(&spec); err != nil {
			return err
		}
		of, e.Where, e.Select = spec.Of, spec.Where, spec.Select
	default:
		return fmt.Errorf("line %d: %s takes a path or {of, where}", arg.Line, e.Op)
	}
	if of == "" {
		return fmt.Errorf("line %d: %s requires a sequence path", arg.Line, e.Op)
	}
	if e.Op == "all" && e.Where == nil {
		return fmt.Errorf("line %d: all requires where", arg.Line)
	}
	switch e.Op {
	case "sum", "min", "max":
		if e.Where != nil {
			return fmt.Errorf("line %d: %s takes select, not where", arg.Line, e.Op)
		}
	default:
		if e.Select != nil {
			return fmt.Errorf("line %d: %s takes where, not select", arg.Line, e.Op)
		}
	}
	e.Args = []*Expr{{Path: of}}
	return nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Build evaluates e against the element v.
func (e *Expr) Build(v query.Value) query.Value {
	if e.IsLit {
		return query.Lit(e.Lit)
	}
	if e.Op == "" {
		if e.Path == "." || e.Path == "" {
			return v
		}
		return v.Get(strings.TrimPrefix(e.Path, "."))
	}

	args := make([]query.Value, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.Build(v)
	}
	var where, sel func(query.Value) query.Value
	if e.Where != nil {
		where = e.Where.Build
	}
	if e.Select != nil {
		sel = e.Select.Build
	}

	switch e.Op {
	case "eq":
		return args[0].Eq(args[1])
	case "ne":
		return args[0].Ne(args[1])
	case "lt":
		return args[0].Lt(args[1])
	case "le":
		return args[0].Le(args[1])
	case "gt":
		return args[0].Gt(args[1])
	case "ge":
		return args[0].Ge(args[1])
	case "and", "or", "coalesce":
		out := args[0]
		for _, a := range args[1:] {
			switch e.Op {
			case "and":
				out = out.And(a)
			case "or":
				out = out.Or(a)
			default:
				out = out.Coalesce(a)
			}
		}
		return out
	case "not":
		return args[0].Not()
	case "is_null":
		return args[0].IsNull()
	case "not_null":
		return args[0].IsNotNull()
	case "if":
		return query.If(args[0], args[1], args[2])
	case "object":
		fields := make([]query.Field, len(args))
		for i, a := range args {
			fields[i] = query.F(e.Fields[i], a)
		}
		return query.Object(fields...)
	case "any":
		return args[0].Any(where)
	case "count":
		return args[0].Count(where)
	case "all":
		return args[0].All(where)
	case "sum":
		return args[0].Sum(sel)
	case "min":
		return args[0].Min(sel)
	case "max":
		return args[0].Max(sel)
	}
	return query.Invalid(fmt.Errorf("unknown operator %q", e.Op))
}
