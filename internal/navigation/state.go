package navigation

import (
	"github.com/roach88/navex/internal/expr"
	"github.com/roach88/navex/internal/model"
)

// SourceMapping is one query root: an entity set, the source of a
// collection sub-query, or an entity-typed member of a re-rooted projection.
type SourceMapping struct {
	RootEntityType *model.EntityType
	Root           NodeID
}

// PendingOrdering is an ordering whose key has been bound but not yet
// emitted.
type PendingOrdering struct {
	Op          expr.Operator
	KeySelector expr.Node
}

// CardinalityReducer is a terminal operator captured while the query is
// rewritten and re-applied, unchanged, to the result.
type CardinalityReducer struct {
	Op expr.Operator

	// Args are the operator's arguments after the source, already
	// physical (the predicate of All).
	Args []expr.Node
}

// State is the mutable expansion state of one query (or sub-query).
type State struct {
	// CurrentParameter stands for the current physical row.
	CurrentParameter *expr.Parameter

	SourceMappings []*SourceMapping

	// PendingSelector is the logical element of the query expressed with
	// bindings. Its parameter is always CurrentParameter.
	PendingSelector      *expr.Lambda
	ApplyPendingSelector bool

	PendingOrderings          []PendingOrdering
	PendingIncludeChain       *Binding
	PendingCardinalityReducer *CardinalityReducer

	// CustomRootMappings locate rows, or parts of rows, that have no
	// SourceMapping, such as scalar projections that were re-rooted.
	CustomRootMappings []*PathMap

	// MaterializeCollectionNavigation is set on the state of a sub-query that
	// loads a collection navigation.
	MaterializeCollectionNavigation *model.Navigation

	arena *Arena
}

// Arena returns the arena holding the state's path trees.
func (s *State) Arena() *Arena {
	return s.arena
}

// roots returns the root ids of every source mapping in order.
func (s *State) roots() []NodeID {
	out := make([]NodeID, len(s.SourceMappings))
	for i, sm := range s.SourceMappings {
		out[i] = sm.Root
	}
	return out
}

// setParameter replaces the current row parameter. The pending selector is
// rebuilt around the new parameter; its body refers to rows only through
// bindings, so it needs no other change.
func (s *State) setParameter(p *expr.Parameter) {
	s.CurrentParameter = p
	s.PendingSelector = expr.NewLambda(s.PendingSelector.Body, p)
}

// setSelector replaces the pending selector body.
func (s *State) setSelector(body expr.Node) {
	s.PendingSelector = expr.NewLambda(body, s.CurrentParameter)
}

// addCustomRoot registers a path to a part of the row that has no
// SourceMapping. The returned pointer is updated by every later join.
func (s *State) addCustomRoot() *PathMap {
	p := &PathMap{}
	s.CustomRootMappings = append(s.CustomRootMappings, p)
	return p
}

// selectorBinding returns the pending selector body as a node binding, or
// nil when the element is not a single entity.
func (s *State) selectorBinding() *Binding {
	b, ok := s.PendingSelector.Body.(*Binding)
	if !ok || b.Custom != nil || s.arena.Node(b.Node).IsCollection() {
		return nil
	}
	return b
}
