package store

import (
	"context"
	"fmt"

	"github.com/roach88/navex/internal/ir"
)

// Query executes a compiled query and returns its rows as flat IRObjects
// keyed by column name. Row order is the order the database returned.
//
// Returns an empty slice (not nil) when no rows match.
func (s *Store) Query(ctx context.Context, query string, args ...any) ([]ir.IRObject, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}

	out := []ir.IRObject{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", len(out), err)
		}

		obj := make(ir.IRObject, len(cols))
		for i, c := range cols {
			v, err := ir.FromDriver(vals[i])
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", len(out), c, err)
			}
			obj[c] = v
		}
		out = append(out, obj)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
