// Package engine runs navigation queries end to end.
//
// ARCHITECTURE:
//
// Execution Pipeline:
// 1. navigation.Expander rewrites navigations into joins
// 2. queryir.Lower turns the rewritten expression into a relational query
// 3. querysql.Compiler renders SQL for the store's dialect
// 4. store.Query runs it and returns flat rows
// 5. materialize rebuilds entities and applies includes
// 6. The terminal operator (First, Single, ...) reduces the elements
//
// Collection includes and projected collections carry their own expanded
// queries. The engine runs them on demand through the materializer, each
// at most once per execution.
//
// CRITICAL PATTERNS:
//
// Query Quota:
// One execution may issue at most WithMaxQueries statements. Collection
// queries nest, so a deep include graph multiplies statements; the quota
// turns that into an error.
//
// Deterministic Plans:
// Prepare performs no I/O. The same query against the same dialect
// always yields the same SQL, parameters and fingerprint.
package engine
