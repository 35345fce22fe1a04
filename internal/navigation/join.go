package navigation

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/navex/internal/expr"
	"github.com/roach88/navex/internal/model"
)

// AddNavigationJoin joins the navigation of node id, and then of its
// reference children, into src.
//
// Expansion joins (include == false) materialise referenced nodes that are
// still Pending. Include joins materialise nodes whose include is Pending; a node
// that is already in the row only has its include marked Complete. Nodes
// that are already materialised are skipped, so calling this twice on the
// same node returns src unchanged the second time. Collection nodes are
// never joined.
func (x *expansion) AddNavigationJoin(st *State, src expr.Node, sm *SourceMapping, id NodeID, include bool) (expr.Node, error) {
	a := st.arena
	node := a.Node(id)
	if node.IsCollection() {
		return src, nil
	}

	var err error
	switch {
	case include && node.Include != IncludePending:
	case include && node.materialized():
		a.completeInclude(id)
	case !include && (node.materialized() || !node.referenced):
	default:
		src, err = x.join(st, src, sm, id, include)
		if err != nil {
			return nil, err
		}
	}

	for _, c := range slices.Clone(node.Children) {
		src, err = x.AddNavigationJoin(st, src, sm, c, include)
		if err != nil {
			return nil, err
		}
	}
	return src, nil
}

// expandPending joins every pending reference navigation of st, source
// mapping by source mapping.
func (x *expansion) expandPending(st *State, src expr.Node) (expr.Node, error) {
	var err error
	for _, sm := range slices.Clone(st.SourceMappings) {
		src, err = x.AddNavigationJoin(st, src, sm, sm.Root, false)
		if err != nil {
			return nil, err
		}
	}
	return src, nil
}

// join emits the join for one node and updates every path map of st.
func (x *expansion) join(st *State, src expr.Node, sm *SourceMapping, id NodeID, include bool) (expr.Node, error) {
	a := st.arena
	node := a.Node(id)
	nav := node.Navigation
	target := nav.TargetType()

	parent, err := x.unbindNode(st, node.Parent)
	if err != nil {
		return nil, err
	}
	optional := a.IsOptional(id)

	innerParam := expr.NewParameter(x.names.fresh(paramBase(target)), expr.EntityOf(target))
	outerKey, innerKey, err := joinKeys(nav, parent, a.IsOptional(node.Parent), innerParam)
	if err != nil {
		return nil, err
	}

	op := expr.OpJoin
	resultInner := innerParam
	if optional {
		op = expr.OpLeftJoin
		resultInner = expr.NewParameter(innerParam.Name, innerParam.Type().AsNullable())
	}
	outer := st.CurrentParameter
	call := expr.NewCall(op,
		src,
		expr.NewEntitySet(target),
		expr.NewLambda(outerKey, outer),
		expr.NewLambda(innerKey, innerParam),
		expr.NewLambda(expr.NewPair(outer, resultInner), outer, resultInner),
	)

	a.apply(remapAfterJoin(a, st.roots(), st.CustomRootMappings, id), st.CustomRootMappings)
	if include {
		a.completeInclude(id)
	} else {
		a.completeExpansion(id)
	}
	st.setParameter(expr.NewParameter(x.names.fresh("t"), call.Type().ElementType()))

	if err := x.countJoin(a.Describe(id)); err != nil {
		return nil, err
	}
	x.logger.Debug("navigation joined",
		"navigation", nav.String(),
		"path", a.Describe(id),
		"kind", string(op),
		"include", include,
		"to", node.ToMapping.String())
	x.span.AddEvent("navex.join", trace.WithAttributes(
		attribute.String("navigation", nav.String()),
		attribute.String("kind", string(op)),
		attribute.Bool("include", include),
	))
	return call, nil
}

// joinKeys builds the outer and inner key selectors of a navigation join.
// owner is the physical entity the navigation is read from; ownerOptional
// guards every owner read with a null check. Composite keys become tuples
// with members in declared key order on both sides.
func joinKeys(nav *model.Navigation, owner expr.Node, ownerOptional bool, inner expr.Node) (expr.Node, expr.Node, error) {
	outs, ins, err := keyComponents(nav, owner, ownerOptional, inner)
	if err != nil {
		return nil, nil, err
	}
	if len(outs) == 1 {
		return outs[0], ins[0], nil
	}
	names := make([]string, len(outs))
	for i := range names {
		names[i] = fmt.Sprintf("Item%d", i+1)
	}
	return expr.NewObject(names, outs), expr.NewObject(names, ins), nil
}

// keyComponents returns the paired key reads for a navigation, coerced to
// matching nullability.
func keyComponents(nav *model.Navigation, owner expr.Node, ownerOptional bool, inner expr.Node) ([]expr.Node, []expr.Node, error) {
	outerProps := nav.SourceKeyProperties()
	innerProps := nav.TargetKeyProperties()
	if len(outerProps) == 0 || len(innerProps) == 0 {
		return nil, nil, navigationError(ErrCodeNoKey, nav, "no key to join %s on", nav.TargetType().Name)
	}
	if len(outerProps) != len(innerProps) {
		return nil, nil, &model.ConfigError{
			Code:       model.ErrCodeKeyArityMismatch,
			Message:    fmt.Sprintf("%d key properties joined to %d", len(outerProps), len(innerProps)),
			Entity:     nav.DeclaringEntity.Name,
			Navigation: nav.Name,
		}
	}

	outs := make([]expr.Node, len(outerProps))
	ins := make([]expr.Node, len(innerProps))
	for i, op := range outerProps {
		ip := innerProps[i]
		if op.Kind != ip.Kind {
			return nil, nil, &model.ConfigError{
				Code:       model.ErrCodeKeyTypeMismatch,
				Message:    fmt.Sprintf("%s (%s) joined to %s (%s)", op, op.Kind, ip, ip.Kind),
				Entity:     nav.DeclaringEntity.Name,
				Navigation: nav.Name,
			}
		}
		o, err := expr.MakeMember(owner, op.Name)
		if err != nil {
			return nil, nil, unsupported("%v", err)
		}
		var out expr.Node = o
		if ownerOptional {
			out = expr.NewConditional(expr.Equal(owner, expr.Null(owner.Type())), expr.Null(o.Type()), o)
		}
		in, err := expr.MakeMember(inner, ip.Name)
		if err != nil {
			return nil, nil, unsupported("%v", err)
		}
		outs[i], ins[i] = coerceNullability(out, in)
	}
	return outs, ins, nil
}

// coerceNullability lifts the non-nullable side of a comparison to the
// nullable form of its type.
func coerceNullability(l, r expr.Node) (expr.Node, expr.Node) {
	lt, rt := l.Type(), r.Type()
	switch {
	case lt.Nullable && !rt.Nullable:
		return l, expr.NewConvert(r, rt.AsNullable())
	case rt.Nullable && !lt.Nullable:
		return expr.NewConvert(l, lt.AsNullable()), r
	default:
		return l, r
	}
}

// keyPredicate builds inner-key == owner-key for a correlated sub-query,
// one equality per key component.
func keyPredicate(nav *model.Navigation, owner expr.Node, ownerOptional bool, inner expr.Node) (expr.Node, error) {
	outs, ins, err := keyComponents(nav, owner, ownerOptional, inner)
	if err != nil {
		return nil, err
	}
	var pred expr.Node
	for i := range outs {
		eq := expr.Equal(ins[i], outs[i])
		if pred == nil {
			pred = eq
		} else {
			pred = expr.AndAlso(pred, eq)
		}
	}
	return pred, nil
}

// paramBase returns the parameter name used for rows of e.
func paramBase(e *model.EntityType) string {
	for _, r := range e.Name {
		return string(unicode.ToLower(r))
	}
	return "x"
}

// names hands out parameter names that are unique within one expansion.
type names struct {
	used map[string]int
}

func newNames() *names {
	return &names{used: make(map[string]int)}
}

// fresh returns base the first time and base1, base2, ... afterwards.
// Trailing digits are stripped from base, so names from different bases
// never collide.
func (n *names) fresh(base string) string {
	base = strings.TrimRightFunc(base, unicode.IsDigit)
	if base == "" {
		base = "x"
	}
	i := n.used[base]
	n.used[base] = i + 1
	if i == 0 {
		return base
	}
	return fmt.Sprintf("%s%d", base, i)
}
