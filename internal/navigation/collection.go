package navigation

import (
	"fmt"

	"github.com/roach88/navex/internal/expr"
	"github.com/roach88/navex/internal/model"
)

// MaterializeCollection marks a projected collection navigation. Its value
// is not computed by the row query: the row carries the owner's key, and
// the materialiser fills in the entities loaded by Query.
type MaterializeCollection struct {
	expr.ExtensionBase

	Navigation *model.Navigation

	// Owner is the physical owning entity in the current row.
	Owner expr.Node

	Query *CollectionQuery
}

func newMaterializeCollection(nav *model.Navigation, owner expr.Node, q *CollectionQuery) *MaterializeCollection {
	return &MaterializeCollection{
		ExtensionBase: expr.NewExtensionBase(expr.SequenceOf(expr.EntityOf(nav.TargetType()))),
		Navigation:    nav,
		Owner:         owner,
		Query:         q,
	}
}

func (m *MaterializeCollection) Children() []expr.Node { return []expr.Node{m.Owner} }

func (m *MaterializeCollection) WithChildren(c []expr.Node) expr.Node {
	return newMaterializeCollection(m.Navigation, c[0], m.Query)
}

func (m *MaterializeCollection) Describe(format func(expr.Node) string) string {
	return fmt.Sprintf("Materialize(%s, %s)", m.Navigation, format(m.Owner))
}

// materialize unbinds a projected collection navigation.
func (x *expansion) materialize(b *Binding) (expr.Node, error) {
	st := b.state
	node := st.arena.Node(b.Node)
	owner, err := x.unbindNode(st, node.Parent)
	if err != nil {
		return nil, err
	}
	q, err := x.collectionQuery(st, b.Node)
	if err != nil {
		return nil, err
	}
	return newMaterializeCollection(node.Navigation, owner, q), nil
}

// collectionQuery expands the query that loads the targets of collection
// node id. Includes marked below the node are carried into the new query.
func (x *expansion) collectionQuery(st *State, id NodeID) (*CollectionQuery, error) {
	a := st.arena
	nav := a.Node(id).Navigation
	target := nav.TargetType()

	sub := x.newRootState(target)
	sub.MaterializeCollectionNavigation = nav
	CopyIncludeInformation(a, id, sub.SourceMappings[0].Root)

	res, err := x.finalize(sub, expr.NewEntitySet(target), false)
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", nav, err)
	}
	return &CollectionQuery{
		Navigation: nav,
		OwnerKey:   propertyNames(nav.SourceKeyProperties()),
		TargetKey:  propertyNames(nav.TargetKeyProperties()),
		Result:     res,
	}, nil
}

// processCorrelated turns a collection navigation used as a query source
// into a sub-query over the target entity set filtered to the owner's rows.
func (x *expansion) processCorrelated(b *Binding) (expr.Node, *State, error) {
	outer := b.state
	a := outer.arena
	node := a.Node(b.Node)
	nav := node.Navigation

	owner, err := x.unbindNode(outer, node.Parent)
	if err != nil {
		return nil, nil, err
	}

	sub := x.newRootState(nav.TargetType())
	root := newNodeBinding(sub, sub.SourceMappings[0].Root)
	pred, err := keyPredicate(nav, owner, a.IsOptional(node.Parent), root)
	if err != nil {
		return nil, nil, err
	}
	src, err := x.where(sub, expr.NewEntitySet(nav.TargetType()), pred)
	if err != nil {
		return nil, nil, err
	}
	return src, sub, nil
}

func propertyNames(props []*model.Property) []string {
	out := make([]string, len(props))
	for i, p := range props {
		out[i] = p.Name
	}
	return out
}
