package querysql

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/navex/internal/ir"
	"github.com/roach88/navex/internal/queryir"
)

var (
	postFields = []string{"Id", "Title", "BlogId", "AuthorId"}
	blogFields = []string{"Id", "Name", "Slug", "Rating", "OwnerId"}
)

func posts() *queryir.Scan { return &queryir.Scan{Table: "posts", Fields: postFields} }
func blogs() *queryir.Scan { return &queryir.Scan{Table: "blogs", Fields: blogFields} }

func col(alias, name string) *queryir.Column { return &queryir.Column{Alias: alias, Name: name} }

func lit(v ir.IRValue) *queryir.Literal { return &queryir.Literal{Value: v} }

func eq(l, r queryir.Scalar) *queryir.Compare {
	return &queryir.Compare{Op: queryir.Eq, Left: l, Right: r}
}

// columns renders the pass-through select list of alias in SQLite quoting.
func columns(alias string, names []string) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf(`%s."%s" AS "%s"`, alias, n, n)
	}
	return strings.Join(parts, ", ")
}

func compile(t *testing.T, d Dialect, q queryir.Query) (string, []any) {
	t.Helper()
	sql, params, err := NewCompiler(d).Compile(q)
	require.NoError(t, err)
	return sql, params
}

func TestCompile_Scan(t *testing.T) {
	sql, params := compile(t, SQLite, posts())
	assert.Equal(t, "SELECT "+columns("s0", postFields)+` FROM "posts" AS s0`, sql)
	assert.Empty(t, params)
}

func TestCompile_FilterAndProjectShareSelect(t *testing.T) {
	query := &queryir.Project{
		Source: &queryir.Filter{
			Source:    posts(),
			Alias:     "q0",
			Predicate: eq(col("q0", "Title"), lit(ir.IRString("Go"))),
		},
		Alias:       "q1",
		Projections: []queryir.Projection{{Name: "value", Value: col("q1", "Title")}},
	}

	tests := []struct {
		dialect Dialect
		want    string
	}{
		{SQLite, `SELECT q0."Title" AS "value" FROM "posts" AS q0 WHERE (q0."Title" = ?)`},
		{Postgres, `SELECT q0."Title" AS "value" FROM "posts" AS q0 WHERE (q0."Title" = $1)`},
		{MySQL, "SELECT q0.`Title` AS `value` FROM `posts` AS q0 WHERE (q0.`Title` = ?)"},
	}

	for _, tt := range tests {
		t.Run(string(tt.dialect), func(t *testing.T) {
			sql, params := compile(t, tt.dialect, query)
			assert.Equal(t, tt.want, sql)

			// Verify parameterized query (no interpolation)
			assert.NotContains(t, sql, "Go")
			assert.Equal(t, []any{"Go"}, params)
		})
	}
}

func TestCompile_Paging(t *testing.T) {
	skip := &queryir.Slice{Source: posts(), Alias: "q0", Offset: lit(ir.IRInt(5))}
	from := ` FROM "posts" AS q0`

	tests := []struct {
		dialect Dialect
		want    string
	}{
		{SQLite, "SELECT " + columns("q0", postFields) + from + " LIMIT -1 OFFSET ?"},
		{Postgres, "SELECT " + columns("q0", postFields) + from + " OFFSET $1"},
	}
	for _, tt := range tests {
		t.Run(string(tt.dialect), func(t *testing.T) {
			sql, params := compile(t, tt.dialect, skip)
			assert.Equal(t, tt.want, sql)
			assert.Equal(t, []any{int64(5)}, params)
		})
	}

	t.Run("mysql", func(t *testing.T) {
		sql, _ := compile(t, MySQL, skip)
		assert.True(t, strings.HasSuffix(sql, " LIMIT 18446744073709551615 OFFSET ?"), sql)
	})

	t.Run("ordered limit and offset", func(t *testing.T) {
		query := &queryir.Slice{
			Source: &queryir.Order{Source: posts(), Alias: "q0", Keys: []queryir.OrderKey{{Value: col("q0", "Title")}}},
			Alias:  "q1",
			Offset: lit(ir.IRInt(5)),
			Limit:  lit(ir.IRInt(10)),
		}
		sql, params := compile(t, SQLite, query)
		assert.Equal(t, "SELECT "+columns("q0", postFields)+from+` ORDER BY q0."Title" ASC LIMIT ? OFFSET ?`, sql)
		assert.Equal(t, []any{int64(10), int64(5)}, params)
	})
}

func TestCompile_DerivedTableKeepsOrdering(t *testing.T) {
	query := &queryir.Project{
		Source: &queryir.Slice{
			Source: &queryir.Order{Source: posts(), Alias: "q0", Keys: []queryir.OrderKey{{Value: col("q0", "Title")}}},
			Alias:  "q1",
			Limit:  lit(ir.IRInt(10)),
		},
		Alias:       "q2",
		Projections: []queryir.Projection{{Name: "value", Value: col("q2", "Title")}},
	}

	sql, params := compile(t, SQLite, query)
	assert.Equal(t, `SELECT q2."Title" AS "value" FROM (SELECT `+columns("q0", postFields)+
		` FROM "posts" AS q0 ORDER BY q0."Title" ASC LIMIT ?) AS q2 ORDER BY q2."Title" ASC`, sql)
	assert.Equal(t, []any{int64(10)}, params)
}

func TestCompile_Joins(t *testing.T) {
	joinCols := `q0."Id" AS "Outer.Id", q0."Title" AS "Outer.Title", q0."BlogId" AS "Outer.BlogId", q0."AuthorId" AS "Outer.AuthorId", ` +
		`q1."Id" AS "Inner.Id", q1."Name" AS "Inner.Name", q1."Slug" AS "Inner.Slug", q1."Rating" AS "Inner.Rating", q1."OwnerId" AS "Inner.OwnerId"`

	join := func(kind queryir.JoinKind) *queryir.Join {
		return &queryir.Join{
			Kind: kind, Left: posts(), Right: blogs(),
			LeftAlias: "q0", RightAlias: "q1",
			On: eq(col("q0", "BlogId"), col("q1", "Id")),
		}
	}

	t.Run("inner join", func(t *testing.T) {
		sql, _ := compile(t, SQLite, join(queryir.JoinInner))
		assert.Equal(t, "SELECT "+joinCols+` FROM "posts" AS q0 INNER JOIN "blogs" AS q1 ON (q0."BlogId" = q1."Id")`, sql)
	})

	t.Run("filter over a join wraps it", func(t *testing.T) {
		query := &queryir.Filter{
			Source:    join(queryir.JoinLeft),
			Alias:     "q2",
			Predicate: eq(col("q2", "Inner.Name"), lit(ir.IRString("Go"))),
		}
		sql, params := compile(t, SQLite, query)
		assert.True(t, strings.HasPrefix(sql, `SELECT q2."Outer.Id" AS "Outer.Id", `), sql)
		assert.Contains(t, sql, "FROM (SELECT "+joinCols+
			` FROM "posts" AS q0 LEFT JOIN "blogs" AS q1 ON (q0."BlogId" = q1."Id")) AS q2 WHERE (q2."Inner.Name" = ?)`)
		assert.Equal(t, []any{"Go"}, params)
	})

	t.Run("ordered outer side", func(t *testing.T) {
		query := &queryir.Join{
			Kind: queryir.JoinInner,
			Left: &queryir.Order{Source: posts(), Alias: "q0", Keys: []queryir.OrderKey{
				{Value: col("q0", "Title"), Descending: true},
			}},
			Right:     blogs(),
			LeftAlias: "q1", RightAlias: "q2",
			On: eq(col("q1", "BlogId"), col("q2", "Id")),
		}
		sql, _ := compile(t, SQLite, query)
		assert.Contains(t, sql, `FROM (SELECT `+columns("q0", postFields)+` FROM "posts" AS q0 ORDER BY q0."Title" DESC) AS q1 INNER JOIN "blogs" AS q2`)
		assert.True(t, strings.HasSuffix(sql, `ORDER BY q1."Title" DESC`), sql)
	})
}

func TestCompile_Terminals(t *testing.T) {
	byTitle := &queryir.Order{Source: posts(), Alias: "q0", Keys: []queryir.OrderKey{{Value: col("q0", "Title")}}}

	t.Run("count folds into the filter", func(t *testing.T) {
		query := &queryir.Terminal{
			Op:     queryir.TerminalCount,
			Source: &queryir.Filter{Source: posts(), Alias: "q0", Predicate: eq(col("q0", "BlogId"), lit(ir.IRInt(1)))},
			Alias:  "q1",
		}
		sql, params := compile(t, SQLite, query)
		assert.Equal(t, `SELECT COUNT(*) AS "value" FROM "posts" AS q0 WHERE (q0."BlogId" = ?)`, sql)
		assert.Equal(t, []any{int64(1)}, params)
	})

	t.Run("any", func(t *testing.T) {
		sql, _ := compile(t, SQLite, &queryir.Terminal{Op: queryir.TerminalAny, Source: posts(), Alias: "q0"})
		assert.Equal(t, `SELECT CASE WHEN EXISTS (SELECT `+columns("s0", postFields)+
			` FROM "posts" AS s0) THEN 1 ELSE 0 END AS "value"`, sql)
	})

	t.Run("all", func(t *testing.T) {
		query := &queryir.Terminal{
			Op: queryir.TerminalAll,
			Source: &queryir.Filter{
				Source:    posts(),
				Alias:     "q0",
				Predicate: &queryir.Not{Operand: eq(col("q0", "BlogId"), lit(ir.IRInt(1)))},
			},
			Alias: "q1",
		}
		sql, _ := compile(t, SQLite, query)
		assert.Equal(t, `SELECT CASE WHEN NOT EXISTS (SELECT `+columns("q0", postFields)+
			` FROM "posts" AS q0 WHERE NOT ((q0."BlogId" = ?))) THEN 1 ELSE 0 END AS "value"`, sql)
	})

	t.Run("folds read the projection as a derived table", func(t *testing.T) {
		ids := &queryir.Project{
			Source:      posts(),
			Alias:       "q0",
			Projections: []queryir.Projection{{Name: queryir.ValueColumn, Value: col("q0", "Id")}},
		}
		for op, want := range map[queryir.TerminalOp]string{
			queryir.TerminalSum: `SELECT COALESCE(SUM(q1."value"), 0) AS "value" FROM (`,
			queryir.TerminalMin: `SELECT MIN(q1."value") AS "value" FROM (`,
			queryir.TerminalMax: `SELECT MAX(q1."value") AS "value" FROM (`,
		} {
			sql, _ := compile(t, SQLite, &queryir.Terminal{Op: op, Source: ids, Alias: "q1"})
			assert.True(t, strings.HasPrefix(sql, want), sql)
			assert.True(t, strings.HasSuffix(sql, `) AS q1`), sql)
		}
	})

	tests := []struct {
		op    queryir.TerminalOp
		limit int64
	}{
		{queryir.TerminalFirst, 1},
		{queryir.TerminalFirstOrDefault, 1},
		{queryir.TerminalSingle, 2},
		{queryir.TerminalSingleOrDefault, 2},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			sql, params := compile(t, SQLite, &queryir.Terminal{Op: tt.op, Source: byTitle, Alias: "q1"})
			assert.True(t, strings.HasSuffix(sql, `ORDER BY q0."Title" ASC LIMIT ?`), sql)
			assert.Equal(t, []any{tt.limit}, params)
		})
	}
}

func TestCompile_CorrelatedSubqueries(t *testing.T) {
	correlated := &queryir.Filter{
		Source:    posts(),
		Alias:     "q1",
		Predicate: eq(col("q1", "BlogId"), col("q0", "Id")),
	}
	correlatedSQL := `SELECT ` + columns("q1", postFields) + ` FROM "posts" AS q1 WHERE (q1."BlogId" = q0."Id")`

	t.Run("exists", func(t *testing.T) {
		query := &queryir.Filter{Source: blogs(), Alias: "q0", Predicate: &queryir.Exists{Query: correlated}}
		sql, _ := compile(t, SQLite, query)
		assert.Equal(t, `SELECT `+columns("q0", blogFields)+` FROM "blogs" AS q0 WHERE EXISTS (`+correlatedSQL+`)`, sql)
	})

	t.Run("count and scalar subquery", func(t *testing.T) {
		query := &queryir.Project{
			Source: blogs(),
			Alias:  "q0",
			Projections: []queryir.Projection{
				{Name: "PostCount", Value: &queryir.CountOf{Query: correlated, Alias: "q2"}},
				{Name: "Latest", Value: &queryir.Subquery{Query: correlated, Alias: "q3", Column: "Title"}},
			},
		}
		sql, _ := compile(t, SQLite, query)
		assert.Contains(t, sql, `(SELECT COUNT(*) FROM (`+correlatedSQL+`) AS q2) AS "PostCount"`)
		assert.Contains(t, sql, `(SELECT q3."Title" FROM (`+correlatedSQL+`) AS q3) AS "Latest"`)
	})

	t.Run("postgres placeholders follow text order", func(t *testing.T) {
		query := &queryir.Filter{
			Source: posts(),
			Alias:  "q0",
			Predicate: queryir.AndAll(
				eq(col("q0", "Title"), lit(ir.IRString("Go"))),
				&queryir.Exists{Query: &queryir.Filter{
					Source:    blogs(),
					Alias:     "q1",
					Predicate: eq(col("q1", "Name"), lit(ir.IRString("Blog"))),
				}},
			),
		}
		sql, params := compile(t, Postgres, query)
		assert.Contains(t, sql, `(q0."Title" = $1)`)
		assert.Contains(t, sql, `(q1."Name" = $2)`)
		assert.Equal(t, []any{"Go", "Blog"}, params)
	})
}

func TestCompile_RowOperators(t *testing.T) {
	t.Run("default if empty", func(t *testing.T) {
		sql, _ := compile(t, SQLite, &queryir.DefaultIfEmpty{Source: posts(), Alias: "q0"})
		assert.Equal(t, `SELECT `+columns("q0", postFields)+` FROM (SELECT 1 AS "_d") AS "_e" LEFT JOIN (SELECT `+
			columns("s0", postFields)+` FROM "posts" AS s0) AS q0 ON 1 = 1`, sql)
	})

	t.Run("union", func(t *testing.T) {
		sql, _ := compile(t, SQLite, &queryir.SetOp{Kind: queryir.Union, Left: posts(), Right: posts(), LeftAlias: "q0", RightAlias: "q1"})
		assert.Equal(t, `SELECT `+columns("q0", postFields)+` FROM (SELECT `+columns("s0", postFields)+` FROM "posts" AS s0) AS q0`+
			` UNION SELECT `+columns("q1", postFields)+` FROM (SELECT `+columns("s1", postFields)+` FROM "posts" AS s1) AS q1`, sql)
	})

	for _, kind := range []queryir.SetOpKind{queryir.Intersect, queryir.Except} {
		t.Run(string(kind), func(t *testing.T) {
			sql, _ := compile(t, SQLite, &queryir.SetOp{Kind: kind, Left: posts(), Right: posts(), LeftAlias: "q0", RightAlias: "q1"})
			assert.Contains(t, sql, `AS q0 `+string(kind)+` SELECT `)
		})
	}

	t.Run("key list", func(t *testing.T) {
		query := &queryir.Filter{
			Source: posts(),
			Alias:  "q0",
			Predicate: &queryir.In{
				Operand: col("q0", "BlogId"),
				Values:  []queryir.Scalar{lit(ir.IRInt(1)), lit(ir.IRInt(2))},
			},
		}
		sql, params := compile(t, SQLite, query)
		assert.True(t, strings.HasSuffix(sql, `WHERE q0."BlogId" IN (?, ?)`), sql)
		assert.Equal(t, []any{int64(1), int64(2)}, params)
	})

	t.Run("distinct projection", func(t *testing.T) {
		query := &queryir.Distinct{
			Source: &queryir.Project{
				Source:      posts(),
				Alias:       "q0",
				Projections: []queryir.Projection{{Name: "value", Value: col("q0", "Title")}},
			},
			Alias: "q1",
		}
		sql, _ := compile(t, SQLite, query)
		assert.Equal(t, `SELECT DISTINCT q0."Title" AS "value" FROM "posts" AS q0`, sql)
	})

	t.Run("null tests and coalesce", func(t *testing.T) {
		query := &queryir.Project{
			Source: &queryir.Filter{
				Source:    blogs(),
				Alias:     "q0",
				Predicate: &queryir.Not{Operand: &queryir.IsNull{Operand: col("q0", "OwnerId")}},
			},
			Alias: "q1",
			Projections: []queryir.Projection{
				{Name: "Rating", Value: &queryir.Coalesce{Left: col("q1", "Rating"), Right: lit(ir.IRInt(0))}},
				{Name: "Owner", Value: &queryir.Case{
					When: &queryir.IsNull{Operand: col("q1", "OwnerId")},
					Then: lit(ir.IRNull{}),
					Else: col("q1", "OwnerId"),
				}},
			},
		}
		sql, params := compile(t, SQLite, query)
		assert.Equal(t, `SELECT COALESCE(q0."Rating", ?) AS "Rating", `+
			`CASE WHEN q0."OwnerId" IS NULL THEN NULL ELSE q0."OwnerId" END AS "Owner" `+
			`FROM "blogs" AS q0 WHERE q0."OwnerId" IS NOT NULL`, sql)
		assert.Equal(t, []any{int64(0)}, params)
	})
}

func TestCompile_NilQuery(t *testing.T) {
	_, _, err := NewCompiler(SQLite).Compile(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil query")
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in      string
		want    Dialect
		wantErr bool
	}{
		{in: "sqlite", want: SQLite},
		{in: "sqlite3", want: SQLite},
		{in: "Postgres", want: Postgres},
		{in: "pgx", want: Postgres},
		{in: "mysql", want: MySQL},
		{in: "oracle", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := ParseDialect(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
		})
	}
}

func TestCheckSyntax(t *testing.T) {
	query := &queryir.Filter{
		Source:    posts(),
		Alias:     "q0",
		Predicate: eq(col("q0", "Title"), lit(ir.IRString("Go"))),
	}
	sql, _ := compile(t, MySQL, query)
	assert.NoError(t, CheckSyntax(sql))

	assert.Error(t, CheckSyntax("SELEC q0 FROM"))
}
