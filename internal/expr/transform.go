package expr

import "fmt"

// Children returns the direct children of n in evaluation order.
// Lambda children are its parameters followed by its body.
func Children(n Node) []Node {
	switch n := n.(type) {
	case *EntitySet, *Parameter, *Constant:
		return nil
	case *Lambda:
		out := make([]Node, 0, len(n.Params)+1)
		for _, p := range n.Params {
			out = append(out, p)
		}
		return append(out, n.Body)
	case *Member:
		return []Node{n.Target}
	case *Binary:
		return []Node{n.Left, n.Right}
	case *Not:
		return []Node{n.Operand}
	case *Convert:
		return []Node{n.Operand}
	case *Conditional:
		return []Node{n.Test, n.IfTrue, n.IfFalse}
	case *New:
		return n.Args
	case *Call:
		return n.Args
	case Extension:
		return n.Children()
	default:
		panic(fmt.Sprintf("expr: unknown node type %T", n))
	}
}

// withChildren rebuilds n around new children. The result is a new node with
// a new identity.
func withChildren(n Node, c []Node) Node {
	switch n := n.(type) {
	case *EntitySet, *Parameter, *Constant:
		return n
	case *Lambda:
		params := make([]*Parameter, len(n.Params))
		for i, p := range n.Params {
			// A parameter replaced by another parameter rebinds the lambda;
			// any other replacement only affects the body.
			if np, ok := c[i].(*Parameter); ok {
				params[i] = np
			} else {
				params[i] = p
			}
		}
		return NewLambda(c[len(c)-1], params...)
	case *Member:
		return NewMember(c[0], n.Name, n.typ)
	case *Binary:
		return NewBinary(n.Op, c[0], c[1])
	case *Not:
		return NewNot(c[0])
	case *Convert:
		return NewConvert(c[0], n.typ)
	case *Conditional:
		return NewConditional(c[0], c[1], c[2])
	case *New:
		if n.IsPair() {
			return NewPair(c[0], c[1])
		}
		return NewObject(n.Members, c)
	case *Call:
		return NewCall(n.Op, c...)
	case Extension:
		return n.WithChildren(c)
	default:
		panic(fmt.Sprintf("expr: unknown node type %T", n))
	}
}

// Transform rewrites the tree rooted at n.
//
// f is called pre-order. When it returns (replacement, true) the replacement
// is used and its subtree is not visited. Otherwise children are transformed
// and the node is rebuilt only if at least one child changed, so untouched
// subtrees keep their identity.
func Transform(n Node, f func(Node) (Node, bool)) Node {
	if n == nil {
		return nil
	}
	if r, ok := f(n); ok {
		return r
	}

	children := Children(n)
	if len(children) == 0 {
		return n
	}

	changed := false
	next := make([]Node, len(children))
	for i, c := range children {
		next[i] = Transform(c, f)
		if next[i] != c {
			changed = true
		}
	}
	if !changed {
		return n
	}
	return withChildren(n, next)
}

// TransformUp rewrites the tree rooted at n bottom-up: children are rewritten
// first, then f is applied to the (possibly rebuilt) node. The first error
// returned by f aborts the rewrite.
func TransformUp(n Node, f func(Node) (Node, error)) (Node, error) {
	if n == nil {
		return nil, nil
	}
	children := Children(n)
	if len(children) > 0 {
		changed := false
		next := make([]Node, len(children))
		for i, c := range children {
			r, err := TransformUp(c, f)
			if err != nil {
				return nil, err
			}
			next[i] = r
			if r != c {
				changed = true
			}
		}
		if changed {
			n = withChildren(n, next)
		}
	}
	return f(n)
}

// Rebuild returns n with its children replaced. The result has a new identity
// unless n is a leaf.
func Rebuild(n Node, children []Node) Node {
	return withChildren(n, children)
}

// Replace substitutes every occurrence of the node with search's identity.
// It descends into lambdas; a lambda whose parameter is replaced by another
// parameter is rebound to it.
func Replace(root, search, replacement Node) Node {
	id := search.ID()
	return Transform(root, func(n Node) (Node, bool) {
		if n.ID() == id {
			return replacement, true
		}
		return nil, false
	})
}

// ReplaceMany substitutes several nodes by identity in one walk.
func ReplaceMany(root Node, replacements map[ID]Node) Node {
	if len(replacements) == 0 {
		return root
	}
	return Transform(root, func(n Node) (Node, bool) {
		if r, ok := replacements[n.ID()]; ok {
			return r, true
		}
		return nil, false
	})
}

// Invoke inlines a lambda: its parameters are replaced by args in its body.
func Invoke(l *Lambda, args ...Node) Node {
	if len(args) != len(l.Params) {
		panic(fmt.Sprintf("expr: invoking lambda of %d parameters with %d arguments", len(l.Params), len(args)))
	}
	m := make(map[ID]Node, len(args))
	for i, p := range l.Params {
		m[p.ID()] = args[i]
	}
	return ReplaceMany(l.Body, m)
}

// Walk visits n pre-order. Returning false from fn skips the node's children.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, fn)
	}
}

// Contains reports whether any node under n satisfies pred.
func Contains(n Node, pred func(Node) bool) bool {
	found := false
	Walk(n, func(x Node) bool {
		if found {
			return false
		}
		if pred(x) {
			found = true
			return false
		}
		return true
	})
	return found
}

// References reports whether p is used anywhere under n.
func References(n Node, p *Parameter) bool {
	id := p.ID()
	return Contains(n, func(x Node) bool { return x.ID() == id })
}
