package expr

import (
	"fmt"
	"sync/atomic"

	"github.com/roach88/navex/internal/ir"
	"github.com/roach88/navex/internal/model"
)

// ID is the identity of an expression node. IDs are unique for the lifetime
// of the process; substitution compares IDs, never structure.
type ID uint64

var lastID atomic.Uint64

func nextID() ID {
	return ID(lastID.Add(1))
}

// Node is an expression tree node.
//
// This is a sealed interface. Types outside this package can only implement
// it by embedding ExtensionBase, which is how the navigation engine adds its
// own marker nodes.
type Node interface {
	ID() ID
	Type() *Type
	exprNode()
}

type base struct {
	id ID
}

func (b base) ID() ID  { return b.id }
func (base) exprNode() {}

func newBase() base { return base{id: nextID()} }

// EntitySet is the root of a query over all rows of an entity type.
type EntitySet struct {
	base
	Entity *model.EntityType
}

// NewEntitySet creates a query root.
func NewEntitySet(e *model.EntityType) *EntitySet {
	return &EntitySet{base: newBase(), Entity: e}
}

func (n *EntitySet) Type() *Type { return SequenceOf(EntityOf(n.Entity)) }

// Parameter is a lambda parameter.
type Parameter struct {
	base
	Name string
	typ  *Type
}

// NewParameter creates a parameter of type t.
func NewParameter(name string, t *Type) *Parameter {
	return &Parameter{base: newBase(), Name: name, typ: t}
}

func (n *Parameter) Type() *Type { return n.typ }

// Lambda is an anonymous function. Its Type is the type of its body.
type Lambda struct {
	base
	Params []*Parameter
	Body   Node
}

// NewLambda creates a lambda.
func NewLambda(body Node, params ...*Parameter) *Lambda {
	return &Lambda{base: newBase(), Params: params, Body: body}
}

func (n *Lambda) Type() *Type { return n.Body.Type() }

// Member reads a named member of Target.
type Member struct {
	base
	Target Node
	Name   string
	typ    *Type
}

// NewMember creates a member access with an explicit result type.
func NewMember(target Node, name string, t *Type) *Member {
	return &Member{base: newBase(), Target: target, Name: name, typ: t}
}

// MakeMember creates a member access whose type is resolved from the target.
func MakeMember(target Node, name string) (*Member, error) {
	t, err := MemberType(target.Type(), name)
	if err != nil {
		return nil, err
	}
	return NewMember(target, name, t), nil
}

// MemberPath applies MakeMember for every name in order.
func MemberPath(target Node, names ...string) (Node, error) {
	cur := target
	for _, name := range names {
		m, err := MakeMember(cur, name)
		if err != nil {
			return nil, err
		}
		cur = m
	}
	return cur, nil
}

func (n *Member) Type() *Type { return n.typ }

// Constant is a literal value.
type Constant struct {
	base
	Value ir.IRValue
	typ   *Type
}

// Const creates a literal. The type is inferred from the value; IRNull yields
// a nullable int unless a type is supplied with Null.
func Const(v ir.IRValue) *Constant {
	var t *Type
	switch v.(type) {
	case ir.IRString:
		t = StringType
	case ir.IRBool:
		t = BoolType
	case ir.IRNull:
		t = IntType.AsNullable()
	default:
		t = IntType
	}
	return &Constant{base: newBase(), Value: v, typ: t}
}

// Null creates a null literal of type t (made nullable).
func Null(t *Type) *Constant {
	return &Constant{base: newBase(), Value: ir.IRNull{}, typ: t.AsNullable()}
}

func (n *Constant) Type() *Type { return n.typ }

// IsNull reports whether the constant is the null literal.
func (n *Constant) IsNull() bool {
	_, ok := n.Value.(ir.IRNull)
	return ok
}

// BinaryOp is a binary operator.
type BinaryOp string

const (
	OpEqual          BinaryOp = "=="
	OpNotEqual       BinaryOp = "!="
	OpLessThan       BinaryOp = "<"
	OpLessOrEqual    BinaryOp = "<="
	OpGreaterThan    BinaryOp = ">"
	OpGreaterOrEqual BinaryOp = ">="
	OpAndAlso        BinaryOp = "&&"
	OpOrElse         BinaryOp = "||"
	OpCoalesce       BinaryOp = "??"
)

// Binary applies a binary operator.
type Binary struct {
	base
	Op          BinaryOp
	Left, Right Node
}

// NewBinary creates a binary expression.
func NewBinary(op BinaryOp, left, right Node) *Binary {
	return &Binary{base: newBase(), Op: op, Left: left, Right: right}
}

// Equal is shorthand for NewBinary(OpEqual, l, r).
func Equal(l, r Node) *Binary { return NewBinary(OpEqual, l, r) }

// AndAlso is shorthand for NewBinary(OpAndAlso, l, r).
func AndAlso(l, r Node) *Binary { return NewBinary(OpAndAlso, l, r) }

func (n *Binary) Type() *Type {
	if n.Op == OpCoalesce {
		return n.Right.Type()
	}
	return BoolType
}

// Not negates a boolean operand.
type Not struct {
	base
	Operand Node
}

// NewNot creates a negation.
func NewNot(operand Node) *Not {
	return &Not{base: newBase(), Operand: operand}
}

func (n *Not) Type() *Type { return BoolType }

// Convert changes the static type of Operand, typically lifting a scalar to
// its nullable form.
type Convert struct {
	base
	Operand Node
	typ     *Type
}

// NewConvert creates a conversion to t.
func NewConvert(operand Node, t *Type) *Convert {
	return &Convert{base: newBase(), Operand: operand, typ: t}
}

func (n *Convert) Type() *Type { return n.typ }

// Conditional is `Test ? IfTrue : IfFalse`.
type Conditional struct {
	base
	Test, IfTrue, IfFalse Node
}

// NewConditional creates a conditional expression.
func NewConditional(test, ifTrue, ifFalse Node) *Conditional {
	return &Conditional{base: newBase(), Test: test, IfTrue: ifTrue, IfFalse: ifFalse}
}

func (n *Conditional) Type() *Type {
	t := n.IfTrue.Type()
	if n.IfFalse.Type().Nullable {
		t = t.AsNullable()
	}
	return t
}

// New constructs an object. With members Outer and Inner and a pair type it
// is a transparent pair.
type New struct {
	base
	Members []string
	Args    []Node
	typ     *Type
}

// NewObject creates an anonymous object from parallel member names and values.
func NewObject(members []string, args []Node) *New {
	fields := make([]Field, len(members))
	for i, m := range members {
		fields[i] = Field{Name: m, Type: args[i].Type()}
	}
	return &New{base: newBase(), Members: members, Args: args, typ: ObjectOf(fields...)}
}

// NewPair creates a transparent pair {Outer, Inner}.
func NewPair(outer, inner Node) *New {
	return &New{
		base:    newBase(),
		Members: []string{OuterField, InnerField},
		Args:    []Node{outer, inner},
		typ:     PairOf(outer.Type(), inner.Type()),
	}
}

func (n *New) Type() *Type { return n.typ }

// IsPair reports whether the node builds a transparent pair.
func (n *New) IsPair() bool { return n.typ.Kind == TypePair }

// Arg returns the value bound to the named member, or nil.
func (n *New) Arg(member string) Node {
	for i, m := range n.Members {
		if m == member {
			return n.Args[i]
		}
	}
	return nil
}

// Call applies a query operator. Args[0] is always the source sequence.
type Call struct {
	base
	Op   Operator
	Args []Node
	typ  *Type
}

// NewCall creates an operator call, inferring its result type.
func NewCall(op Operator, args ...Node) *Call {
	return &Call{base: newBase(), Op: op, Args: args, typ: callType(op, args)}
}

func (n *Call) Type() *Type { return n.typ }

// Source returns the receiver sequence.
func (n *Call) Source() Node { return n.Args[0] }

// LambdaArg returns argument i as a lambda, or nil.
func (n *Call) LambdaArg(i int) *Lambda {
	if i >= len(n.Args) {
		return nil
	}
	l, _ := n.Args[i].(*Lambda)
	return l
}

// Extension is implemented by engine-private nodes. Children and
// WithChildren let generic rewrites traverse them.
type Extension interface {
	Node
	Children() []Node
	WithChildren(children []Node) Node
	Describe(format func(Node) string) string
}

// ExtensionBase supplies identity and type to extension nodes.
type ExtensionBase struct {
	id  ID
	typ *Type
}

// NewExtensionBase allocates a fresh identity for an extension node.
func NewExtensionBase(t *Type) ExtensionBase {
	return ExtensionBase{id: nextID(), typ: t}
}

func (e ExtensionBase) ID() ID      { return e.id }
func (e ExtensionBase) Type() *Type { return e.typ }
func (ExtensionBase) exprNode()     {}

// Lambda parameter helpers.

// Param returns the single parameter of l, panicking if l has a different arity.
func (n *Lambda) Param() *Parameter {
	if len(n.Params) != 1 {
		panic(fmt.Sprintf("expr: lambda has %d parameters, want 1", len(n.Params)))
	}
	return n.Params[0]
}
