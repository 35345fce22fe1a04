package navigation

import (
	"strings"

	"github.com/roach88/navex/internal/expr"
)

// Binding is a symbolic reference to data of a state: either a path-tree
// node or a custom root path. Bindings live only inside bound lambdas and
// pending selectors; they are unbound into member chains over the current
// row before any expression leaves the engine.
type Binding struct {
	expr.ExtensionBase

	// Node is the referenced path-tree node. Unused when Custom is set.
	Node NodeID

	// Custom is the referenced custom root path.
	Custom *PathMap

	state *State
}

func newNodeBinding(st *State, id NodeID) *Binding {
	a := st.arena
	n := a.Node(id)
	var t *expr.Type
	switch {
	case n.IsCollection():
		t = expr.SequenceOf(expr.EntityOf(n.Entity))
	case a.IsOptional(id):
		t = expr.EntityOf(n.Entity).AsNullable()
	default:
		t = expr.EntityOf(n.Entity)
	}
	return &Binding{ExtensionBase: expr.NewExtensionBase(t), Node: id, state: st}
}

func newCustomBinding(st *State, p *PathMap, t *expr.Type) *Binding {
	return &Binding{ExtensionBase: expr.NewExtensionBase(t), Node: NoParent, Custom: p, state: st}
}

// State returns the state the binding belongs to.
func (b *Binding) State() *State {
	return b.state
}

func (b *Binding) Children() []expr.Node { return nil }

func (b *Binding) WithChildren([]expr.Node) expr.Node { return b }

func (b *Binding) Describe(func(expr.Node) string) string {
	if b.Custom != nil {
		return "{" + strings.Join(append([]string{"row"}, b.Custom.Members()...), ".") + "}"
	}
	return "{" + b.state.arena.Describe(b.Node) + "}"
}

// bindLambda inlines l over the state's pending selector and folds member
// accesses through bindings. Navigations reached this way are added to the
// path tree (marked for include when forInclude is set).
func (x *expansion) bindLambda(st *State, l *expr.Lambda, forInclude bool) (expr.Node, error) {
	return x.bind(st, expr.Invoke(l, st.PendingSelector.Body), forInclude)
}

// bind folds member accesses in n, bottom-up:
//   - a navigation read from an entity binding becomes a binding to the
//     child node,
//   - a member read from a projected object becomes the member's value,
//   - a property read from a binding is kept, typed through the binding.
func (x *expansion) bind(st *State, n expr.Node, forInclude bool) (expr.Node, error) {
	return expr.TransformUp(n, func(n expr.Node) (expr.Node, error) {
		m, ok := n.(*expr.Member)
		if !ok {
			return n, nil
		}
		switch target := m.Target.(type) {
		case *expr.New:
			if v := target.Arg(m.Name); v != nil {
				return v, nil
			}
			return nil, unsupported("projection %s has no member %q", target.Type(), m.Name)
		case *Binding:
			return x.bindMember(target, m.Name, forInclude)
		default:
			return n, nil
		}
	})
}

func (x *expansion) bindMember(b *Binding, name string, forInclude bool) (expr.Node, error) {
	if b.Custom != nil {
		t, err := expr.MemberType(b.Type(), name)
		if err != nil {
			return nil, unsupported("%v", err)
		}
		return expr.NewMember(b, name, t), nil
	}

	st := b.state
	a := st.arena
	node := a.Node(b.Node)
	entity := node.Entity

	if node.IsCollection() && !forInclude {
		return nil, navigationError(ErrCodeUnsupported, node.Navigation,
			"member %q read from a collection navigation", name)
	}

	if nav := x.e.navigation(entity, name); nav != nil {
		child := a.GetOrAddChild(b.Node, nav, forInclude)
		return newNodeBinding(st, child), nil
	}
	if forInclude {
		return nil, invalidInclude(entity.Name + "." + name)
	}
	if entity.FindProperty(name) == nil {
		return nil, unknownMember(entity, name)
	}
	t, err := expr.MemberType(b.Type(), name)
	if err != nil {
		return nil, unsupported("%v", err)
	}
	return expr.NewMember(b, name, t), nil
}

// memberChain reads members from p in order, typing each step.
func memberChain(p expr.Node, members []string) (expr.Node, error) {
	n, err := expr.MemberPath(p, members...)
	if err != nil {
		return nil, unsupported("%v", err)
	}
	return n, nil
}
