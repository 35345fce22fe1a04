// Package navigation rewrites queries written over entities and their
// navigations into queries made only of joins over entity sets.
//
// The Expander walks a query expression operator by operator. Each query
// root gets a SourceMapping whose path tree records every navigation the
// query has traversed from that root. Lambdas are bound against the
// current state: member accesses through navigations become Binding nodes
// that reference path-tree nodes instead of physical fields. Before a
// bound lambda is emitted, every pending reference navigation is joined
// in (AddNavigationJoin) and the bindings are unbound into member chains
// over the current row.
//
// CRITICAL PATTERNS:
//
// Transparent pairs:
// Every join produces rows of shape {Outer, Inner}. A node's PathMap is the
// chain of Outer/Inner members that reaches its data in the current row.
// After a join the joined node lives at [Inner] and every node that was
// already materialised moves one level down under Outer.
//
// Monotonic states:
// Expansion goes Pending -> Complete. Include goes None -> Pending ->
// Complete or Dropped. Transitions never go back, and a node is joined at
// most once; traversing the same navigation again is a no-op.
//
// Collections are never joined inline:
// A collection navigation becomes a correlated sub-query when it is the
// source of another operator (Any, Count, Where, ...), or a
// MaterializeCollection marker backed by a separate query when it is
// projected or included.
//
// Concurrency:
// An Expander holds only configuration and is safe to share. Each Expand
// call owns its arena, states and parameter names.
package navigation
