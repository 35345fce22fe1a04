package navigation

import (
	"slices"
	"strings"

	"github.com/roach88/navex/internal/expr"
	"github.com/roach88/navex/internal/ir"
)

// CopyIncludeInformation recreates, below to, every child of from whose
// include is Pending, recursively. Copies carry the same navigation, have
// expansion Pending and include Pending. Nodes whose include is None,
// Complete or Dropped are not copied.
func CopyIncludeInformation(a *Arena, from, to NodeID) {
	for _, c := range slices.Clone(a.Node(from).Children) {
		child := a.Node(c)
		if child.Include != IncludePending {
			continue
		}
		copied := a.GetOrAddChild(to, child.Navigation, true)
		CopyIncludeInformation(a, c, copied)
	}
}

// processInclude handles Include(source, lambda) and Include(source, "A.B").
func (x *expansion) processInclude(st *State, call *expr.Call) error {
	owner := st.selectorBinding()
	if owner == nil {
		return &TranslationError{
			Code:    ErrCodeInvalidInclude,
			Message: "include applied to a query whose element is not an entity",
		}
	}
	if len(call.Args) != 2 {
		return unsupported("Include takes one argument, got %d", len(call.Args)-1)
	}

	switch arg := call.Args[1].(type) {
	case *expr.Constant:
		path, ok := arg.Value.(ir.IRString)
		if !ok {
			return invalidInclude(expr.Format(arg))
		}
		last, err := x.includePath(st, owner.Node, string(path))
		if err != nil {
			return err
		}
		st.PendingIncludeChain = newNodeBinding(st, last)
		return nil
	case *expr.Lambda:
		bound, err := x.bindLambda(st, arg, true)
		if err != nil {
			return err
		}
		return x.setIncludeChain(st, bound, owner.Node, expr.Format(arg))
	default:
		return invalidInclude(expr.Format(arg))
	}
}

// processThenInclude continues the include chain of the previous Include or
// ThenInclude. On a collection navigation the lambda reads the element.
func (x *expansion) processThenInclude(st *State, call *expr.Call) error {
	prev := st.PendingIncludeChain
	if prev == nil {
		return &TranslationError{Code: ErrCodeInvalidInclude, Message: "ThenInclude without a preceding Include"}
	}
	l := call.LambdaArg(1)
	if l == nil || len(l.Params) != 1 {
		return invalidInclude(expr.Format(call.Args[len(call.Args)-1]))
	}
	bound, err := x.bind(st, expr.Invoke(l, prev), true)
	if err != nil {
		return err
	}
	return x.setIncludeChain(st, bound, prev.Node, expr.Format(l))
}

func (x *expansion) setIncludeChain(st *State, bound expr.Node, from NodeID, text string) error {
	b, ok := bound.(*Binding)
	if !ok || b.Custom != nil || b.Node == from {
		return invalidInclude(text)
	}
	st.PendingIncludeChain = b
	return nil
}

// includePath resolves a dotted navigation path below owner, marking every
// step for include, and returns the last node.
func (x *expansion) includePath(st *State, owner NodeID, path string) (NodeID, error) {
	if path == "" {
		return 0, invalidInclude(path)
	}
	a := st.arena
	cur := owner
	for _, seg := range strings.Split(path, ".") {
		nav := x.e.navigation(a.Node(cur).Entity, seg)
		if nav == nil {
			return 0, invalidInclude(path)
		}
		cur = a.GetOrAddChild(cur, nav, true)
	}
	return cur, nil
}
