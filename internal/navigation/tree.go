package navigation

import (
	"fmt"
	"iter"
	"strings"

	"github.com/roach88/navex/internal/model"
)

// NodeID addresses a PathNode in its Arena.
type NodeID int

// NoParent is the Parent of a root node.
const NoParent NodeID = -1

// ExpansionState tracks whether a node's navigation has been joined.
type ExpansionState uint8

const (
	ExpansionPending ExpansionState = iota
	ExpansionComplete
)

func (s ExpansionState) String() string {
	if s == ExpansionComplete {
		return "Complete"
	}
	return "Pending"
}

// IncludeState tracks whether a node must be loaded alongside its parent.
type IncludeState uint8

const (
	// IncludeNone means the node was never marked for eager loading.
	IncludeNone IncludeState = iota
	// IncludePending means the node is marked but not yet wired.
	IncludePending
	// IncludeComplete means the node's data is joined into the row (or
	// backed by a collection query) and an instruction was emitted.
	IncludeComplete
	// IncludeDropped means the include was discarded, either by an
	// aggregate terminal operator or because its owner is not part of the
	// final projection.
	IncludeDropped
)

func (s IncludeState) String() string {
	switch s {
	case IncludePending:
		return "Pending"
	case IncludeComplete:
		return "Complete"
	case IncludeDropped:
		return "Dropped"
	default:
		return "None"
	}
}

// PathNode is one navigation traversed from a query root, or the root
// itself (Navigation == nil).
type PathNode struct {
	ID         NodeID
	Navigation *model.Navigation
	Entity     *model.EntityType
	Expansion  ExpansionState
	Include    IncludeState

	// ToMapping locates the node's data in the current row.
	ToMapping PathMap

	// From is the member path, below ToMapping, at which a root was
	// introduced. Roots created for members of a projected object carry the
	// member names; everything else has an empty From.
	From []string

	Parent   NodeID
	Children []NodeID

	// optional is set on roots whose rows may be missing entirely, such as
	// the inner side of a left join or a DefaultIfEmpty source.
	optional bool

	// referenced is set once the node is reached by a member access rather
	// than only by an include path. Only referenced nodes are expanded.
	referenced bool
}

// IsRoot reports whether the node is a query root.
func (n *PathNode) IsRoot() bool {
	return n.Parent == NoParent
}

// IsCollection reports whether the node is reached through a collection
// navigation.
func (n *PathNode) IsCollection() bool {
	return n.Navigation != nil && n.Navigation.IsCollection()
}

// materialized reports whether the node's data is present in the row.
func (n *PathNode) materialized() bool {
	return n.Expansion == ExpansionComplete || n.Include == IncludeComplete
}

// Arena owns every PathNode of one expansion. Parents are indexes, never
// pointers.
type Arena struct {
	nodes []*PathNode
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Node returns the node with the given id.
func (a *Arena) Node(id NodeID) *PathNode {
	return a.nodes[id]
}

// Len returns the number of nodes in the arena.
func (a *Arena) Len() int {
	return len(a.nodes)
}

// CreateRoot creates the root node of sm and records it on sm.
//
// A root's data is the source row itself, so the root starts with
// expansion Complete and an empty path map. initialPath is the member path
// of the root inside the row, used when a projected object is re-rooted.
func (a *Arena) CreateRoot(sm *SourceMapping, initialPath []string) NodeID {
	id := NodeID(len(a.nodes))
	a.nodes = append(a.nodes, &PathNode{
		ID:        id,
		Entity:    sm.RootEntityType,
		Expansion: ExpansionComplete,
		From:      append([]string(nil), initialPath...),
		Parent:    NoParent,
	})
	sm.Root = id
	return id
}

// GetOrAddChild returns the child of parent reached through nav, creating
// it when missing. Lookup is by navigation identity under this exact parent.
// forInclude marks the child for eager loading; an existing child that was
// never included is upgraded to IncludePending. Without forInclude the child
// is marked as referenced.
func (a *Arena) GetOrAddChild(parent NodeID, nav *model.Navigation, forInclude bool) NodeID {
	p := a.nodes[parent]
	for _, c := range p.Children {
		child := a.nodes[c]
		if child.Navigation == nav {
			if forInclude && child.Include == IncludeNone {
				child.Include = IncludePending
			}
			if !forInclude {
				child.referenced = true
			}
			return c
		}
	}

	id := NodeID(len(a.nodes))
	child := &PathNode{
		ID:         id,
		Navigation: nav,
		Entity:     nav.TargetType(),
		Expansion:  ExpansionPending,
		Parent:     parent,
	}
	if forInclude {
		child.Include = IncludePending
	} else {
		child.referenced = true
	}
	a.nodes = append(a.nodes, child)
	p.Children = append(p.Children, id)
	return id
}

// Flatten yields every node of the subtree rooted at id, pre-order, children
// in insertion order.
func (a *Arena) Flatten(id NodeID) iter.Seq[*PathNode] {
	return func(yield func(*PathNode) bool) {
		a.walk(id, yield)
	}
}

func (a *Arena) walk(id NodeID, yield func(*PathNode) bool) bool {
	n := a.nodes[id]
	if !yield(n) {
		return false
	}
	for _, c := range n.Children {
		if !a.walk(c, yield) {
			return false
		}
	}
	return true
}

// IsOptional reports whether rows for the node may be missing: its
// navigation is optional, or any ancestor (including the root) is.
func (a *Arena) IsOptional(id NodeID) bool {
	for cur := a.nodes[id]; ; cur = a.nodes[cur.Parent] {
		if cur.IsRoot() {
			return cur.optional
		}
		if !cur.Navigation.IsRequired() {
			return true
		}
	}
}

// MarkOptional marks a root as possibly missing.
func (a *Arena) MarkOptional(root NodeID) {
	a.nodes[root].optional = true
}

// Root returns the root of the tree containing id.
func (a *Arena) Root(id NodeID) NodeID {
	for a.nodes[id].Parent != NoParent {
		id = a.nodes[id].Parent
	}
	return id
}

// Navigations returns the navigations from the root down to id.
func (a *Arena) Navigations(id NodeID) []*model.Navigation {
	var out []*model.Navigation
	for cur := a.nodes[id]; !cur.IsRoot(); cur = a.nodes[cur.Parent] {
		out = append(out, cur.Navigation)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Members returns the full member path of the node's data in the row.
func (a *Arena) Members(id NodeID) []string {
	n := a.nodes[id]
	return append(n.ToMapping.Members(), n.From...)
}

// Describe renders the node as Root.Nav1.Nav2 for logs and errors.
func (a *Arena) Describe(id NodeID) string {
	root := a.nodes[a.Root(id)]
	parts := []string{root.Entity.Name}
	for _, nav := range a.Navigations(id) {
		parts = append(parts, nav.Name)
	}
	return strings.Join(parts, ".")
}

func (a *Arena) completeExpansion(id NodeID) {
	a.nodes[id].Expansion = ExpansionComplete
}

func (a *Arena) completeInclude(id NodeID) {
	n := a.nodes[id]
	if n.Include != IncludePending {
		panic(fmt.Sprintf("navigation: include of %s is %s, want Pending", a.Describe(id), n.Include))
	}
	n.Include = IncludeComplete
}

func (a *Arena) dropInclude(id NodeID) {
	if n := a.nodes[id]; n.Include == IncludePending {
		n.Include = IncludeDropped
	}
}
