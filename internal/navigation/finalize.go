package navigation

import (
	"slices"

	"github.com/roach88/navex/internal/expr"
)

// finalize applies everything still pending on st to src and shapes the
// result. nested is set for sub-queries inside lambdas, whose includes are
// meaningless.
func (x *expansion) finalize(st *State, src expr.Node, nested bool) (*Result, error) {
	res := &Result{}
	reducer := st.PendingCardinalityReducer
	if reducer != nil && reducer.Op.IsAggregate() {
		res.Expression = expr.NewCall(reducer.Op, append([]expr.Node{src}, reducer.Args...)...)
		return res, nil
	}

	body := st.PendingSelector.Body
	if nested {
		x.dropIncludes(st)
	} else {
		x.resolveIncludes(st, body)
	}

	src, err := x.applyPendingOrderings(st, src)
	if err != nil {
		return nil, err
	}
	if src, err = x.expandPending(st, src); err != nil {
		return nil, err
	}
	for _, sm := range slices.Clone(st.SourceMappings) {
		if src, err = x.AddNavigationJoin(st, src, sm, sm.Root, true); err != nil {
			return nil, err
		}
	}

	includes, err := x.includeInstructions(st)
	if err != nil {
		return nil, err
	}
	phys, err := x.unbind(body)
	if err != nil {
		return nil, err
	}
	collections, err := projectedCollections(phys, nil)
	if err != nil {
		return nil, err
	}

	param := st.CurrentParameter
	b := st.selectorBinding()
	switch {
	case len(includes) > 0 && b != nil:
		// The element is an entity of the row; the row itself is kept so
		// included entities can be read next to it.
		res.ResultPath = st.arena.Members(b.Node)
	case len(includes) > 0:
		src = expr.NewCall(expr.OpSelect, src, expr.NewLambda(expr.NewPair(phys, param), param))
		res.ResultPath = []string{expr.OuterField}
		for i := range includes {
			includes[i].OwnerPath = prefixed(expr.InnerField, includes[i].OwnerPath)
			if includes[i].TargetPath != nil {
				includes[i].TargetPath = prefixed(expr.InnerField, includes[i].TargetPath)
			}
		}
	case phys != expr.Node(param):
		src = expr.NewCall(expr.OpSelect, src, expr.NewLambda(phys, param))
	}

	if reducer != nil {
		src = expr.NewCall(reducer.Op, append([]expr.Node{src}, reducer.Args...)...)
	}
	res.Expression = src
	res.Includes = includes
	res.Collections = collections
	return res, nil
}

// resolveIncludes drops includes that cannot reach the result: an include is
// honoured only when its owner is bound in the final selector or is itself
// an honoured include.
func (x *expansion) resolveIncludes(st *State, body expr.Node) {
	a := st.arena
	bound := map[NodeID]bool{}
	for _, b := range projectedBindings(st, body) {
		bound[b.Node] = true
	}

	honored := map[NodeID]bool{}
	for _, sm := range st.SourceMappings {
		for n := range a.Flatten(sm.Root) {
			if n.IsRoot() || n.Include != IncludePending {
				continue
			}
			if bound[n.Parent] || honored[n.Parent] {
				honored[n.ID] = true
				continue
			}
			a.dropInclude(n.ID)
			x.logger.Debug("include ignored",
				"path", a.Describe(n.ID),
				"reason", "owner not in projection")
		}
	}
}

// dropIncludes drops every pending include of st.
func (x *expansion) dropIncludes(st *State) {
	a := st.arena
	for _, sm := range st.SourceMappings {
		for n := range a.Flatten(sm.Root) {
			a.dropInclude(n.ID)
		}
	}
}

// includeInstructions lists the completed reference includes of st and
// builds the queries of its pending collection includes, owners first.
func (x *expansion) includeInstructions(st *State) ([]IncludeInstruction, error) {
	var out []IncludeInstruction
	for _, sm := range st.SourceMappings {
		if err := x.collectIncludes(st, sm.Root, &out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (x *expansion) collectIncludes(st *State, id NodeID, out *[]IncludeInstruction) error {
	a := st.arena
	for _, c := range a.Node(id).Children {
		child := a.Node(c)
		switch {
		case child.IsCollection():
			if child.Include != IncludePending {
				continue
			}
			q, err := x.collectionQuery(st, c)
			if err != nil {
				return err
			}
			a.completeInclude(c)
			*out = append(*out, IncludeInstruction{
				Navigation: child.Navigation,
				OwnerPath:  a.Members(id),
				Collection: q,
			})
			// Includes below a collection belong to its query.
			continue
		case child.Include == IncludeComplete:
			*out = append(*out, IncludeInstruction{
				Navigation: child.Navigation,
				OwnerPath:  a.Members(id),
				TargetPath: a.Members(c),
			})
		}
		if err := x.collectIncludes(st, c, out); err != nil {
			return err
		}
	}
	return nil
}

// projectedCollections finds the collection navigations of a physical
// selector. They may only appear as the selector itself or as members of
// projected objects.
func projectedCollections(n expr.Node, path []string) ([]ProjectedCollection, error) {
	switch n := n.(type) {
	case *MaterializeCollection:
		return []ProjectedCollection{{Path: slices.Clone(path), Query: n.Query}}, nil
	case *expr.New:
		var out []ProjectedCollection
		for i, m := range n.Members {
			sub, err := projectedCollections(n.Args[i], append(slices.Clone(path), m))
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
		return out, nil
	}
	if expr.Contains(n, isMaterialize) {
		return nil, unsupported("collection navigation used inside %s", expr.Format(n))
	}
	return nil, nil
}

// projectedBindings returns the node bindings of st that body yields as
// values. Bindings only read from, such as the target of a property
// access, are not projected.
func projectedBindings(st *State, body expr.Node) []*Binding {
	var out []*Binding
	expr.Walk(body, func(n expr.Node) bool {
		switch n := n.(type) {
		case *expr.Member:
			if _, ok := n.Target.(*Binding); ok {
				return false
			}
		case *Binding:
			if n.state == st && n.Custom == nil {
				out = append(out, n)
			}
		}
		return true
	})
	return out
}

func prefixed(head string, path []string) []string {
	return append([]string{head}, path...)
}
