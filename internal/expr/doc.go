// Package expr provides the typed expression tree that queries are written
// in and that navigation expansion rewrites.
//
// Every node carries an ID assigned at construction. Rewrites never mutate a
// node: Transform rebuilds only the spine above a change, and Replace finds
// its target by ID rather than by structure, so two structurally equal
// member accesses in different scopes are never confused.
//
// Query operators are Calls whose first argument is the source sequence.
// Joins produce transparent pairs (New nodes with Outer and Inner members),
// and nested pairs are addressed by chains of Outer/Inner member accesses.
package expr
