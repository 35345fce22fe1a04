package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/navex/internal/ir"
	"github.com/roach88/navex/internal/model"
	"github.com/roach88/navex/internal/querysql"
)

// CreateTables creates one table per entity type of m, with a column per
// property and the primary key. Existing tables are left alone.
//
// Foreign keys are not declared: fixtures may reference missing principals
// to exercise optional navigations.
func (s *Store) CreateTables(ctx context.Context, m *model.Model) error {
	for _, e := range m.EntityTypes() {
		if _, err := s.db.ExecContext(ctx, s.createTableSQL(e)); err != nil {
			return fmt.Errorf("create table %s: %w", e.Table, err)
		}
	}
	return nil
}

func (s *Store) createTableSQL(e *model.EntityType) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS " + s.quote(e.Table) + " (")
	for i, p := range e.Properties {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(s.quote(p.Name) + " " + s.columnType(p.Kind))
		if !p.Nullable {
			b.WriteString(" NOT NULL")
		}
	}
	if e.PrimaryKey != nil {
		keys := make([]string, len(e.PrimaryKey.Properties))
		for i, p := range e.PrimaryKey.Properties {
			keys[i] = s.quote(p.Name)
		}
		b.WriteString(", PRIMARY KEY (" + strings.Join(keys, ", ") + ")")
	}
	b.WriteString(")")
	return b.String()
}

func (s *Store) columnType(k model.ScalarKind) string {
	switch k {
	case model.KindInt:
		if s.dialect == querysql.Postgres {
			return "BIGINT"
		}
		return "INTEGER"
	case model.KindBool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

// Insert writes rows of entity e. Each row maps property names to values;
// missing properties are written as NULL and unknown keys are an error.
func (s *Store) Insert(ctx context.Context, e *model.EntityType, rows ...ir.IRObject) error {
	cols := make([]string, len(e.Properties))
	marks := make([]string, len(e.Properties))
	for i, p := range e.Properties {
		cols[i] = s.quote(p.Name)
		marks[i] = querysql.Placeholder(s.dialect, i+1)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.quote(e.Table), strings.Join(cols, ", "), strings.Join(marks, ", "))

	for n, row := range rows {
		for k := range row {
			if e.FindProperty(k) == nil {
				return fmt.Errorf("insert %s row %d: unknown property %q", e.Name, n, k)
			}
		}
		args := make([]any, len(e.Properties))
		for i, p := range e.Properties {
			v, err := ir.ToDriver(row[p.Name])
			if err != nil {
				return fmt.Errorf("insert %s row %d: %s: %w", e.Name, n, p.Name, err)
			}
			if v == nil && !p.Nullable {
				return fmt.Errorf("insert %s row %d: %s is required", e.Name, n, p.Name)
			}
			args[i] = v
		}
		if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("insert %s row %d: %w", e.Name, n, err)
		}
	}
	return nil
}

func (s *Store) quote(name string) string {
	return querysql.QuoteIdent(s.dialect, name)
}
