// Package materialize rebuilds query results from flat database rows.
//
// A row comes back from the store keyed by dotted column paths
// ("Outer.Inner.Name"). The materializer walks the static type of the
// query element and turns each row into nested IRObjects: entities become
// objects of their properties, pairs and projected objects become objects
// of their members, scalars are read from their column.
//
// CRITICAL PATTERNS:
//
// Identity Resolution:
// Within one Materialize call an entity is created once per primary key.
// Every row that reads the same key shares the same IRObject, so included
// navigations attached through one row are visible from all of them.
//
// Null Entities:
// An entity whose key columns are all NULL did not match a left join and
// is materialized as IRNull.
//
// Bool Coercion:
// SQLite stores booleans as 0/1 integers. Columns typed bool are coerced
// back to IRBool from the model's property kind.
//
// Collections:
// Collection includes and projected collections are loaded with separate
// queries through a Loader and matched to owners by key. Each collection
// query runs at most once per Materialize call.
package materialize
