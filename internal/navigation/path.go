package navigation

import (
	"strings"

	"github.com/roach88/navex/internal/expr"
)

// Side selects one member of a transparent pair.
type Side uint8

const (
	Outer Side = iota
	Inner
)

func (s Side) String() string {
	if s == Inner {
		return expr.InnerField
	}
	return expr.OuterField
}

// PathMap addresses data inside the current nested pair shape, outermost
// member first. An empty PathMap addresses the whole row.
type PathMap []Side

// Prepend returns a new path with s in front. p is not modified.
func (p PathMap) Prepend(s Side) PathMap {
	out := make(PathMap, 0, len(p)+1)
	out = append(out, s)
	return append(out, p...)
}

// Members returns the member names that walk the path.
func (p PathMap) Members() []string {
	out := make([]string, len(p))
	for i, s := range p {
		out[i] = s.String()
	}
	return out
}

func (p PathMap) String() string {
	return "[" + strings.Join(p.Members(), " ") + "]"
}

// pathUpdate is the result of remapping paths after one join.
type pathUpdate struct {
	nodes  map[NodeID]PathMap
	custom []PathMap
}

// remapAfterJoin computes every path map that changes when joined is
// appended as the Inner side of a new pair. It reads the arena but does not
// modify it: the joined node moves to Inner :: old, every other node that is
// already materialised in one of roots moves to Outer :: old, and so does
// every custom root path.
func remapAfterJoin(a *Arena, roots []NodeID, custom []*PathMap, joined NodeID) pathUpdate {
	u := pathUpdate{nodes: make(map[NodeID]PathMap)}
	for _, root := range roots {
		for n := range a.Flatten(root) {
			switch {
			case n.ID == joined:
				u.nodes[n.ID] = n.ToMapping.Prepend(Inner)
			case n.materialized():
				u.nodes[n.ID] = n.ToMapping.Prepend(Outer)
			}
		}
	}
	u.custom = make([]PathMap, len(custom))
	for i, c := range custom {
		u.custom[i] = c.Prepend(Outer)
	}
	return u
}

// remapUnder computes the paths of every materialised node in roots, and of
// every custom path, after the whole current row is nested under side s.
// Explicit joins use it for each operand.
func remapUnder(a *Arena, roots []NodeID, custom []*PathMap, s Side) pathUpdate {
	u := pathUpdate{nodes: make(map[NodeID]PathMap)}
	for _, root := range roots {
		for n := range a.Flatten(root) {
			if n.materialized() {
				u.nodes[n.ID] = n.ToMapping.Prepend(s)
			}
		}
	}
	u.custom = make([]PathMap, len(custom))
	for i, c := range custom {
		u.custom[i] = c.Prepend(s)
	}
	return u
}

func (a *Arena) apply(u pathUpdate, custom []*PathMap) {
	for id, p := range u.nodes {
		a.nodes[id].ToMapping = p
	}
	for i, c := range custom {
		*c = u.custom[i]
	}
}
