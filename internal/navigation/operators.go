package navigation

import (
	"slices"
	"strings"

	"github.com/roach88/navex/internal/expr"
	"github.com/roach88/navex/internal/model"
)

func (x *expansion) processWhere(st *State, src expr.Node, l *expr.Lambda) (expr.Node, error) {
	body, err := x.bindLambda(st, l, false)
	if err != nil {
		return nil, err
	}
	return x.where(st, src, body)
}

// where emits a filter with a bound predicate, joining whatever it reaches
// first.
func (x *expansion) where(st *State, src expr.Node, pred expr.Node) (expr.Node, error) {
	src, err := x.expandPending(st, src)
	if err != nil {
		return nil, err
	}
	phys, err := x.unbind(pred)
	if err != nil {
		return nil, err
	}
	return expr.NewCall(expr.OpWhere, src, expr.NewLambda(phys, st.CurrentParameter)), nil
}

// processSelect composes the projection onto the pending selector. No join
// is made here: navigations reached only by the projection are joined when
// the selector is finally applied.
func (x *expansion) processSelect(st *State, l *expr.Lambda) error {
	body, err := x.bindLambda(st, l, false)
	if err != nil {
		return err
	}
	st.setSelector(body)
	st.ApplyPendingSelector = true
	return nil
}

// processOrderBy records an ordering. OrderBy replaces pending orderings,
// ThenBy extends them.
func (x *expansion) processOrderBy(st *State, op expr.Operator, l *expr.Lambda) error {
	body, err := x.bindLambda(st, l, false)
	if err != nil {
		return err
	}
	ordering := PendingOrdering{Op: op, KeySelector: body}
	if !op.IsThenBy() {
		st.PendingOrderings = []PendingOrdering{ordering}
		return nil
	}
	if len(st.PendingOrderings) == 0 {
		return unsupported("%s without a preceding OrderBy", op)
	}
	st.PendingOrderings = append(st.PendingOrderings, ordering)
	return nil
}

// applyPendingOrderings joins pending navigations and emits the recorded
// orderings in order.
func (x *expansion) applyPendingOrderings(st *State, src expr.Node) (expr.Node, error) {
	if len(st.PendingOrderings) == 0 {
		return src, nil
	}
	src, err := x.expandPending(st, src)
	if err != nil {
		return nil, err
	}
	for _, o := range st.PendingOrderings {
		key, err := x.unbind(o.KeySelector)
		if err != nil {
			return nil, err
		}
		src = expr.NewCall(o.Op, src, expr.NewLambda(key, st.CurrentParameter))
	}
	st.PendingOrderings = nil
	return src, nil
}

// project applies orderings and the pending selector to src. It returns the
// projected source and the bound selector that was applied.
func (x *expansion) project(st *State, src expr.Node) (expr.Node, expr.Node, error) {
	src, err := x.applyPendingOrderings(st, src)
	if err != nil {
		return nil, nil, err
	}
	src, err = x.expandPending(st, src)
	if err != nil {
		return nil, nil, err
	}
	body := st.PendingSelector.Body
	phys, err := x.unbind(body)
	if err != nil {
		return nil, nil, err
	}
	if expr.Contains(phys, isMaterialize) {
		return nil, nil, unsupported("a projected collection navigation must be the last operator")
	}
	if phys != expr.Node(st.CurrentParameter) {
		src = expr.NewCall(expr.OpSelect, src, expr.NewLambda(phys, st.CurrentParameter))
	}
	return src, body, nil
}

// reroot pushes the query built so far into a sub-query: the selector is
// applied and a new state is rooted at the projected rows. Includes marked
// on projected entities are copied to the new roots.
func (x *expansion) reroot(st *State, src expr.Node, optional bool) (expr.Node, *State, error) {
	src, body, err := x.project(st, src)
	if err != nil {
		return nil, nil, err
	}
	ns, err := x.rerootState(st, body, src.Type().ElementType(), optional)
	if err != nil {
		return nil, nil, err
	}
	return src, ns, nil
}

// rerootState builds the state of rows shaped like the physical form of
// body. Every entity binding of body becomes a new root at its member path;
// everything else is read from the row through one custom root.
func (x *expansion) rerootState(old *State, body expr.Node, elem *expr.Type, optional bool) (*State, error) {
	if optional {
		elem = elem.AsNullable()
	}
	base := "x"
	if elem.Kind == expr.TypeEntity {
		base = paramBase(elem.Entity)
	}
	ns := &State{arena: x.arena}
	ns.CurrentParameter = expr.NewParameter(x.names.fresh(base), elem)

	r := &rerooter{x: x, old: old, ns: ns, elem: elem, optional: optional}
	newBody, err := r.rebuild(body, nil)
	if err != nil {
		return nil, err
	}
	ns.setSelector(newBody)
	return ns, nil
}

type rerooter struct {
	x        *expansion
	old, ns  *State
	elem     *expr.Type
	optional bool
	custom   *Binding
}

func (r *rerooter) rebuild(n expr.Node, path []string) (expr.Node, error) {
	a := r.x.arena
	switch n := n.(type) {
	case *Binding:
		if n.state == r.old && n.Custom == nil && !a.Node(n.Node).IsCollection() {
			node := a.Node(n.Node)
			sm := &SourceMapping{RootEntityType: node.Entity}
			root := a.CreateRoot(sm, path)
			if r.optional || a.IsOptional(n.Node) {
				a.MarkOptional(root)
			}
			CopyIncludeInformation(a, n.Node, root)
			r.ns.SourceMappings = append(r.ns.SourceMappings, sm)
			return newNodeBinding(r.ns, root), nil
		}
	case *expr.New:
		args := make([]expr.Node, len(n.Args))
		for i, m := range n.Members {
			arg, err := r.rebuild(n.Args[i], append(slices.Clone(path), m))
			if err != nil {
				return nil, err
			}
			args[i] = arg
		}
		if n.IsPair() {
			return expr.NewPair(args[0], args[1]), nil
		}
		return expr.NewObject(n.Members, args), nil
	}

	if r.custom == nil {
		r.custom = newCustomBinding(r.ns, r.ns.addCustomRoot(), r.elem)
	}
	return memberChain(r.custom, path)
}

func (x *expansion) processDefaultIfEmpty(st *State, src expr.Node) (expr.Node, *State, error) {
	src, body, err := x.project(st, src)
	if err != nil {
		return nil, nil, err
	}
	src = expr.NewCall(expr.OpDefaultIfEmpty, src)
	ns, err := x.rerootState(st, body, src.Type().ElementType(), true)
	if err != nil {
		return nil, nil, err
	}
	return src, ns, nil
}

// processSetOperation combines two queries. Both operands must include the
// same navigations below their elements.
func (x *expansion) processSetOperation(st *State, src expr.Node, call *expr.Call) (expr.Node, *State, error) {
	if len(call.Args) != 2 {
		return nil, nil, unsupported("%s takes one argument", call.Op)
	}
	src2, st2, err := x.process(call.Args[1])
	if err != nil {
		return nil, nil, err
	}
	if r := st2.PendingCardinalityReducer; r != nil {
		return nil, nil, unsupported("%s operand ends with %s", call.Op, r.Op)
	}

	left, right := includeSignature(st), includeSignature(st2)
	if !slices.Equal(left, right) {
		return nil, nil, &TranslationError{
			Code: ErrCodeSetOperationIncludes,
			Message: "operands of " + string(call.Op) + " include different navigations: [" +
				strings.Join(left, ", ") + "] and [" + strings.Join(right, ", ") + "]",
		}
	}

	src, body, err := x.project(st, src)
	if err != nil {
		return nil, nil, err
	}
	src2, _, err = x.project(st2, src2)
	if err != nil {
		return nil, nil, err
	}
	out := expr.NewCall(call.Op, src, src2)
	ns, err := x.rerootState(st, body, out.Type().ElementType(), false)
	if err != nil {
		return nil, nil, err
	}
	return out, ns, nil
}

// includeSignature lists, sorted, the pending include paths below every
// entity bound in the state's selector, relative to that entity.
func includeSignature(st *State) []string {
	a := st.arena
	var out []string
	for _, b := range projectedBindings(st, st.PendingSelector.Body) {
		depth := len(a.Navigations(b.Node))
		for n := range a.Flatten(b.Node) {
			if n.ID == b.Node || n.Include != IncludePending {
				continue
			}
			var names []string
			for _, nav := range a.Navigations(n.ID)[depth:] {
				names = append(names, nav.Name)
			}
			out = append(out, strings.Join(names, "."))
		}
	}
	slices.Sort(out)
	return out
}

// processJoin handles an explicit Join or LeftJoin between two queries. The
// two-parameter result selector is composed over both pending selectors,
// and every materialised node moves under Outer or Inner.
func (x *expansion) processJoin(st *State, src expr.Node, call *expr.Call) (expr.Node, *State, error) {
	if len(call.Args) != 5 {
		return nil, nil, unsupported("%s takes four arguments", call.Op)
	}
	outerKey, err := lambdaArg(call, 2, 1)
	if err != nil {
		return nil, nil, err
	}
	innerKey, err := lambdaArg(call, 3, 1)
	if err != nil {
		return nil, nil, err
	}
	result, err := lambdaArg(call, 4, 2)
	if err != nil {
		return nil, nil, err
	}

	inSrc, in, err := x.process(call.Args[1])
	if err != nil {
		return nil, nil, err
	}
	if r := in.PendingCardinalityReducer; r != nil {
		return nil, nil, unsupported("%s inner query ends with %s", call.Op, r.Op)
	}
	if src, err = x.applyPendingOrderings(st, src); err != nil {
		return nil, nil, err
	}
	if inSrc, err = x.applyPendingOrderings(in, inSrc); err != nil {
		return nil, nil, err
	}

	left := call.Op == expr.OpLeftJoin
	a := x.arena
	if left {
		for _, sm := range in.SourceMappings {
			a.MarkOptional(sm.Root)
		}
		in.setSelector(rebind(in.PendingSelector.Body, []*State{in}, in))
	}

	ok, err := x.bindLambda(st, outerKey, false)
	if err != nil {
		return nil, nil, err
	}
	ik, err := x.bindLambda(in, innerKey, false)
	if err != nil {
		return nil, nil, err
	}
	if src, err = x.expandPending(st, src); err != nil {
		return nil, nil, err
	}
	if inSrc, err = x.expandPending(in, inSrc); err != nil {
		return nil, nil, err
	}
	ko, err := x.unbind(ok)
	if err != nil {
		return nil, nil, err
	}
	ki, err := x.unbind(ik)
	if err != nil {
		return nil, nil, err
	}
	ko, ki = coerceNullability(ko, ki)

	o, i := st.CurrentParameter, in.CurrentParameter
	resultInner := i
	if left {
		resultInner = expr.NewParameter(i.Name, i.Type().AsNullable())
	}
	out := expr.NewCall(call.Op, src, inSrc,
		expr.NewLambda(ko, o),
		expr.NewLambda(ki, i),
		expr.NewLambda(expr.NewPair(o, resultInner), o, resultInner),
	)

	a.apply(remapUnder(a, st.roots(), st.CustomRootMappings, Outer), st.CustomRootMappings)
	a.apply(remapUnder(a, in.roots(), in.CustomRootMappings, Inner), in.CustomRootMappings)

	merged := &State{
		arena:              x.arena,
		SourceMappings:     append(slices.Clone(st.SourceMappings), in.SourceMappings...),
		CustomRootMappings: append(slices.Clone(st.CustomRootMappings), in.CustomRootMappings...),
		CurrentParameter:   expr.NewParameter(x.names.fresh("t"), out.Type().ElementType()),
	}
	body := expr.Invoke(result,
		rebind(st.PendingSelector.Body, []*State{st}, merged),
		rebind(in.PendingSelector.Body, []*State{in}, merged),
	)
	body, err = x.bind(merged, body, false)
	if err != nil {
		return nil, nil, err
	}
	merged.setSelector(body)
	merged.ApplyPendingSelector = true
	return out, merged, nil
}

// processCardinalityReducer records First, Single and their OrDefault
// forms. A predicate argument is applied as a filter first.
func (x *expansion) processCardinalityReducer(st *State, src expr.Node, call *expr.Call) (expr.Node, error) {
	if len(call.Args) > 2 {
		return nil, unsupported("%s takes at most one argument", call.Op)
	}
	if len(call.Args) == 2 {
		l, err := lambdaArg(call, 1, 1)
		if err != nil {
			return nil, err
		}
		if src, err = x.processWhere(st, src, l); err != nil {
			return nil, err
		}
	}
	st.PendingCardinalityReducer = &CardinalityReducer{Op: call.Op}
	return src, nil
}

// processAggregate records Any, Count, LongCount or All, and hands Sum, Min
// and Max to processValueAggregate. Includes and orderings cannot affect a
// scalar result and are discarded. Any and Count predicates become filters;
// the All predicate stays on the operator.
func (x *expansion) processAggregate(st *State, src expr.Node, call *expr.Call) (expr.Node, error) {
	if len(call.Args) > 2 {
		return nil, unsupported("%s takes at most one argument", call.Op)
	}
	x.dropIncludes(st)
	st.PendingOrderings = nil
	if call.Op.IsValueAggregate() {
		return x.processValueAggregate(st, src, call)
	}

	reducer := &CardinalityReducer{Op: call.Op}
	if len(call.Args) == 2 {
		l, err := lambdaArg(call, 1, 1)
		if err != nil {
			return nil, err
		}
		if call.Op != expr.OpAll {
			if src, err = x.processWhere(st, src, l); err != nil {
				return nil, err
			}
		} else {
			body, err := x.bindLambda(st, l, false)
			if err != nil {
				return nil, err
			}
			if src, err = x.expandPending(st, src); err != nil {
				return nil, err
			}
			phys, err := x.unbind(body)
			if err != nil {
				return nil, err
			}
			reducer.Args = []expr.Node{expr.NewLambda(phys, st.CurrentParameter)}
		}
	} else if call.Op == expr.OpAll {
		return nil, unsupported("All requires a predicate")
	}
	st.PendingCardinalityReducer = reducer
	return src, nil
}

// processValueAggregate applies the optional value selector of Sum, Min or
// Max and projects the source to the scalar values being folded.
func (x *expansion) processValueAggregate(st *State, src expr.Node, call *expr.Call) (expr.Node, error) {
	if len(call.Args) == 2 {
		l, err := lambdaArg(call, 1, 1)
		if err != nil {
			return nil, err
		}
		if err := x.processSelect(st, l); err != nil {
			return nil, err
		}
	}
	src, _, err := x.project(st, src)
	if err != nil {
		return nil, err
	}
	elem := src.Type().ElementType()
	if elem.Kind != expr.TypeScalar {
		return nil, unsupported("%s over %s: select a scalar value", call.Op, elem)
	}
	if call.Op == expr.OpSum && elem.Scalar != model.KindInt {
		return nil, unsupported("Sum over %s", elem)
	}
	st.PendingCardinalityReducer = &CardinalityReducer{Op: call.Op}
	return src, nil
}

// processSelectMany flattens a collection navigation of each element into
// the sequence of its targets. It is an inner join from the owner to the
// target entity set on the navigation's keys, keeping the target.
func (x *expansion) processSelectMany(st *State, src expr.Node, call *expr.Call) (expr.Node, *State, error) {
	l, err := lambdaArg(call, 1, 1)
	if err != nil {
		return nil, nil, err
	}
	m, ok := l.Body.(*expr.Member)
	if !ok || m.Target.Type().Kind != expr.TypeEntity {
		return nil, nil, unsupported("SelectMany selector must read a collection navigation")
	}
	nav := x.e.navigation(m.Target.Type().Entity, m.Name)
	if nav == nil || !nav.IsCollection() {
		return nil, nil, unsupported("SelectMany selector must read a collection navigation")
	}

	target := nav.TargetType()
	inner := expr.NewParameter(paramBase(target), expr.EntityOf(target))
	outerKey, innerKey, err := joinKeys(nav, m.Target, false, inner)
	if err != nil {
		return nil, nil, err
	}
	result := expr.NewParameter(inner.Name, inner.Type())
	join := expr.NewCall(expr.OpJoin, call.Source(), expr.NewEntitySet(target),
		expr.NewLambda(outerKey, l.Param()),
		expr.NewLambda(innerKey, inner),
		expr.NewLambda(result, l.Param(), result),
	)
	return x.processJoin(st, src, join)
}

func isMaterialize(n expr.Node) bool {
	_, ok := n.(*MaterializeCollection)
	return ok
}
