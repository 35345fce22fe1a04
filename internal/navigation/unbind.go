package navigation

import (
	"github.com/roach88/navex/internal/expr"
)

// unbind replaces every binding in n with a member chain over the current
// row of the binding's state. Query operators found inside n are
// sub-queries; each is expanded on its own.
//
// All navigations the bindings reach must already be joined, so callers
// expand pending navigations first.
func (x *expansion) unbind(n expr.Node) (expr.Node, error) {
	switch n := n.(type) {
	case nil:
		return nil, nil
	case *Binding:
		return x.unbindBinding(n)
	case *expr.Call:
		return x.expandSubquery(n)
	}

	children := expr.Children(n)
	if len(children) == 0 {
		return n, nil
	}
	changed := false
	next := make([]expr.Node, len(children))
	for i, c := range children {
		r, err := x.unbind(c)
		if err != nil {
			return nil, err
		}
		next[i] = r
		if r != c {
			changed = true
		}
	}
	if !changed {
		return n, nil
	}
	return expr.Rebuild(n, next), nil
}

func (x *expansion) unbindBinding(b *Binding) (expr.Node, error) {
	st := b.state
	if b.Custom != nil {
		return memberChain(st.CurrentParameter, b.Custom.Members())
	}
	node := st.arena.Node(b.Node)
	switch {
	case node.IsCollection():
		return x.materialize(b)
	case node.materialized():
		return x.unbindNode(st, b.Node)
	default:
		return nil, navigationError(ErrCodeUnsupported, node.Navigation,
			"navigation %s is not joined", st.arena.Describe(b.Node))
	}
}

// unbindNode reads the data of a materialised node from the current row.
func (x *expansion) unbindNode(st *State, id NodeID) (expr.Node, error) {
	node := st.arena.Node(id)
	if !node.materialized() {
		return nil, navigationError(ErrCodeUnsupported, node.Navigation,
			"navigation %s is not joined", st.arena.Describe(id))
	}
	return memberChain(st.CurrentParameter, st.arena.Members(id))
}

// expandSubquery expands a query nested inside a lambda, such as a
// correlated Any or Count over a collection navigation.
func (x *expansion) expandSubquery(call *expr.Call) (expr.Node, error) {
	src, st, err := x.process(call)
	if err != nil {
		return nil, err
	}
	res, err := x.finalize(st, src, true)
	if err != nil {
		return nil, err
	}
	return res.Expression, nil
}

// rebind re-points the bindings of from in n at st. It is used when states
// are merged or re-typed.
func rebind(n expr.Node, from []*State, st *State) expr.Node {
	out, _ := expr.TransformUp(n, func(n expr.Node) (expr.Node, error) {
		b, ok := n.(*Binding)
		if !ok || !containsState(from, b.state) {
			return n, nil
		}
		if b.Custom != nil {
			return newCustomBinding(st, b.Custom, b.Type()), nil
		}
		return newNodeBinding(st, b.Node), nil
	})
	return out
}

func containsState(states []*State, st *State) bool {
	for _, s := range states {
		if s == st {
			return true
		}
	}
	return false
}
