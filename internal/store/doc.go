// Package store executes compiled queries against SQLite or PostgreSQL and
// loads fixture rows for tests and scenarios.
//
// The store is deliberately thin: it creates one table per entity type,
// inserts rows given as IRObjects, and returns query results as flat
// IRObjects keyed by column alias ("Outer.Title"). Rebuilding nested
// objects is the materializer's job.
//
// # Drivers
//
//   - sqlite3: github.com/mattn/go-sqlite3 (cgo)
//   - pgx: github.com/jackc/pgx/v5/stdlib, also accepted as "postgres"
//
// # Critical Patterns
//
// Parameterized Values:
//   - Every value is bound as a query parameter, never interpolated
//   - Placeholders follow the dialect (? for SQLite, $n for PostgreSQL)
//
// Constrained Values:
//   - Driver values are converted with ir.FromDriver; floats are rejected
//   - SQLite has no boolean type, so bools come back as 0/1 integers
//
// # SQLite Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - One connection: ":memory:" databases are per connection
package store
