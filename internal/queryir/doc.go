// Package queryir provides the relational intermediate representation (IR)
// that expanded navigation queries are lowered to.
//
// QueryIR is the boundary between the expression engine and SQL backends.
// Navigation expansion produces expression trees whose only sources are
// entity sets and joins; Lower turns those trees into relational operators
// over named columns, and internal/querysql compiles the operators for a
// concrete dialect.
//
// ARCHITECTURE:
//
//	[query expression] -> [navigation expansion] -> [Lower] -> [Query IR] -> [querysql]
//
// ROW SHAPE:
//
// Every row is a flat list of columns named by their dotted path in the
// query element:
//
//	Post                    -> Id, Title, BlogId
//	Pair<Post, Blog>        -> Outer.Id, Outer.Title, Outer.BlogId, Inner.Id, Inner.Name
//	new { Title, Blog }     -> Title, Blog.Id, Blog.Name
//	string                  -> value
//
// The materializer rebuilds nested objects from these names.
//
// SEALED INTERFACES:
//
// Query and Scalar are sealed interfaces using the marker method pattern.
// Only types in this package can implement them, so backends can switch
// over every node type:
//
//	switch q := query.(type) {
//	case *Scan:
//	    // Handle table access
//	case *Join:
//	    // Handle join
//	default:
//	    // Impossible - compiler knows all Query types
//	}
//
// CRITICAL PATTERNS:
//
// IRValue Types Only:
// All literal values use ir.IRValue types (no floats). Backends bind every
// non-null literal as a parameter.
//
// Aliases:
// Each operator reading a source names the source rows with an alias that
// is unique within one Lower call. A lambda parameter of an enclosing query
// resolves to the enclosing alias, which is how correlated sub-queries are
// expressed.
//
// Null Propagation:
// Optional navigations are guarded with `x == null ? null : x.M` during
// expansion. SQL propagates NULL through a missing LEFT JOIN row, so Lower
// drops the guard and reads x.M directly.
package queryir
