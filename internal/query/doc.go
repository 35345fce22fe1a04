// Package query builds query expression trees with a fluent API.
//
//	q := query.From(m, "Post").
//		Where(func(p query.Value) query.Value { return p.Get("Blog.Name").Eq(query.Lit("Go")) }).
//		Include("Author").
//		OrderBy(func(p query.Value) query.Value { return p.Get("Title") })
//	node, err := q.Build()
//
// Builders are immutable: every method returns a new Query and leaves the
// receiver untouched. The first error (an unknown member, a bad literal)
// sticks to the Query and is reported by Build, so chains need no error
// checks in between.
package query
