package queryir

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/navex/internal/expr"
	"github.com/roach88/navex/internal/ir"
	"github.com/roach88/navex/internal/model"
	"github.com/roach88/navex/internal/navigation"
	"github.com/roach88/navex/internal/testutil"
)

type fixture struct {
	t *testing.T
	m *model.Model
}

func newFixture(t *testing.T) *fixture {
	return &fixture{t: t, m: testutil.BloggingModel()}
}

func (f *fixture) set(entity string) *expr.EntitySet {
	return expr.NewEntitySet(f.m.MustEntityType(entity))
}

func (f *fixture) param(name, entity string) *expr.Parameter {
	return expr.NewParameter(name, expr.EntityOf(f.m.MustEntityType(entity)))
}

func (f *fixture) path(target expr.Node, names ...string) expr.Node {
	f.t.Helper()
	n, err := expr.MemberPath(target, names...)
	require.NoError(f.t, err)
	return n
}

func (f *fixture) lambda(entity string, body func(p *expr.Parameter) expr.Node) *expr.Lambda {
	p := f.param("x", entity)
	return expr.NewLambda(body(p), p)
}

// postBlogJoin builds Set<Post>.Join(Set<Blog>, p => p.BlogId, b => b.Id,
// (p, b) => new Pair(p, b)) and returns it with a parameter over its rows.
func (f *fixture) postBlogJoin(op expr.Operator) (*expr.Call, *expr.Parameter) {
	p, b := f.param("p", "Post"), f.param("b", "Blog")
	inner := b
	if op == expr.OpLeftJoin {
		inner = expr.NewParameter("b", b.Type().AsNullable())
	}
	j := expr.NewCall(op, f.set("Post"), f.set("Blog"),
		expr.NewLambda(f.path(p, "BlogId"), p),
		expr.NewLambda(f.path(b, "Id"), b),
		expr.NewLambda(expr.NewPair(p, inner), p, inner),
	)
	return j, expr.NewParameter("t", j.Type().ElementType())
}

func str(s string) *expr.Constant { return expr.Const(ir.IRString(s)) }
func num(n int64) *expr.Constant  { return expr.Const(ir.IRInt(n)) }

func lit(v ir.IRValue) *Literal { return &Literal{Value: v} }

func col(alias, name string) *Column { return &Column{Alias: alias, Name: name} }

func eq(l, r Scalar) *Compare { return &Compare{Op: Eq, Left: l, Right: r} }

var (
	postFields = []string{"Id", "Title", "BlogId", "AuthorId"}
	blogFields = []string{"Id", "Name", "Slug", "Rating", "OwnerId"}
)

func TestLowerScan(t *testing.T) {
	f := newFixture(t)
	q, err := Lower(f.set("Blog"))
	require.NoError(t, err)
	assert.Equal(t, &Scan{Table: "blogs", Fields: blogFields}, q)
	assert.Equal(t, blogFields, q.Columns())
}

func TestLowerWhereSelect(t *testing.T) {
	f := newFixture(t)
	query := expr.NewCall(expr.OpSelect,
		expr.NewCall(expr.OpWhere, f.set("Post"),
			f.lambda("Post", func(p *expr.Parameter) expr.Node { return expr.Equal(f.path(p, "Title"), str("Go")) })),
		f.lambda("Post", func(p *expr.Parameter) expr.Node { return f.path(p, "Title") }),
	)

	q, err := Lower(query)
	require.NoError(t, err)

	want := &Project{
		Source: &Filter{
			Source:    &Scan{Table: "posts", Fields: postFields},
			Alias:     "q0",
			Predicate: eq(col("q0", "Title"), lit(ir.IRString("Go"))),
		},
		Alias:       "q1",
		Projections: []Projection{{Name: ValueColumn, Value: col("q1", "Title")}},
	}
	assert.Equal(t, want, q)
	assert.Equal(t, []string{"value"}, q.Columns())
}

func TestLowerJoinRows(t *testing.T) {
	f := newFixture(t)
	j, row := f.postBlogJoin(expr.OpJoin)
	query := expr.NewCall(expr.OpSelect,
		expr.NewCall(expr.OpWhere, j, expr.NewLambda(expr.Equal(f.path(row, "Inner", "Name"), str("Go")), row)),
		expr.NewLambda(f.path(row, "Outer"), row),
	)

	q, err := Lower(query)
	require.NoError(t, err)

	project, ok := q.(*Project)
	require.True(t, ok)
	filter := project.Source.(*Filter)
	join := filter.Source.(*Join)

	assert.Equal(t, JoinInner, join.Kind)
	assert.Equal(t, eq(col("q0", "BlogId"), col("q1", "Id")), join.On)
	assert.Equal(t, []string{
		"Outer.Id", "Outer.Title", "Outer.BlogId", "Outer.AuthorId",
		"Inner.Id", "Inner.Name", "Inner.Slug", "Inner.Rating", "Inner.OwnerId",
	}, join.Columns())
	assert.Equal(t, eq(col("q2", "Inner.Name"), lit(ir.IRString("Go"))), filter.Predicate)
	assert.Equal(t, []Projection{
		{Name: "Id", Value: col("q3", "Outer.Id")},
		{Name: "Title", Value: col("q3", "Outer.Title")},
		{Name: "BlogId", Value: col("q3", "Outer.BlogId")},
		{Name: "AuthorId", Value: col("q3", "Outer.AuthorId")},
	}, project.Projections)
}

func TestLowerNullChecks(t *testing.T) {
	f := newFixture(t)
	j, row := f.postBlogJoin(expr.OpLeftJoin)
	inner := f.path(row, "Inner")

	t.Run("entity compared with null tests its key", func(t *testing.T) {
		q, err := Lower(expr.NewCall(expr.OpWhere, j,
			expr.NewLambda(expr.Equal(inner, expr.Null(inner.Type())), row)))
		require.NoError(t, err)

		filter := q.(*Filter)
		assert.Equal(t, JoinLeft, filter.Source.(*Join).Kind)
		assert.Equal(t, &IsNull{Operand: col("q2", "Inner.Id")}, filter.Predicate)
	})

	t.Run("not equal negates", func(t *testing.T) {
		q, err := Lower(expr.NewCall(expr.OpWhere, j,
			expr.NewLambda(expr.NewBinary(expr.OpNotEqual, inner, expr.Null(inner.Type())), row)))
		require.NoError(t, err)
		assert.Equal(t, &Not{Operand: &IsNull{Operand: col("q2", "Inner.Id")}}, q.(*Filter).Predicate)
	})

	t.Run("null guard reads through", func(t *testing.T) {
		name := f.path(row, "Inner", "Name")
		guard := expr.NewConditional(
			expr.Equal(inner, expr.Null(inner.Type())),
			expr.Null(name.Type()),
			name,
		)
		q, err := Lower(expr.NewCall(expr.OpSelect, j, expr.NewLambda(guard, row)))
		require.NoError(t, err)
		assert.Equal(t, []Projection{{Name: ValueColumn, Value: col("q2", "Inner.Name")}}, q.(*Project).Projections)
	})
}

func TestLowerCompositeEquality(t *testing.T) {
	f := newFixture(t)
	o, c := f.param("o", "Order"), f.param("c", "Customer")
	j := expr.NewCall(expr.OpJoin, f.set("Order"), f.set("Customer"),
		expr.NewLambda(expr.NewObject([]string{"Item1", "Item2"}, []expr.Node{
			f.path(o, "CustomerRegion"), f.path(o, "CustomerNumber"),
		}), o),
		expr.NewLambda(expr.NewObject([]string{"Item1", "Item2"}, []expr.Node{
			f.path(c, "Region"), f.path(c, "Number"),
		}), c),
		expr.NewLambda(expr.NewPair(o, c), o, c),
	)

	q, err := Lower(j)
	require.NoError(t, err)
	assert.Equal(t, &Logical{
		Op:    And,
		Left:  eq(col("q0", "CustomerRegion"), col("q1", "Region")),
		Right: eq(col("q0", "CustomerNumber"), col("q1", "Number")),
	}, q.(*Join).On)
}

func TestLowerCorrelatedSubqueries(t *testing.T) {
	f := newFixture(t)
	b := f.param("b", "Blog")
	posts := func() expr.Node {
		return expr.NewCall(expr.OpWhere, f.set("Post"),
			f.lambda("Post", func(p *expr.Parameter) expr.Node {
				return expr.Equal(f.path(p, "BlogId"), f.path(b, "Id"))
			}))
	}
	correlated := &Filter{
		Source:    &Scan{Table: "posts", Fields: postFields},
		Alias:     "q1",
		Predicate: eq(col("q1", "BlogId"), col("q0", "Id")),
	}

	t.Run("any becomes exists", func(t *testing.T) {
		q, err := Lower(expr.NewCall(expr.OpWhere, f.set("Blog"),
			expr.NewLambda(expr.NewCall(expr.OpAny, posts()), b)))
		require.NoError(t, err)
		assert.Equal(t, &Exists{Query: correlated}, q.(*Filter).Predicate)
	})

	t.Run("count in projection", func(t *testing.T) {
		body := expr.NewObject([]string{"Name", "PostCount"}, []expr.Node{
			f.path(b, "Name"),
			expr.NewCall(expr.OpCount, posts()),
		})
		q, err := Lower(expr.NewCall(expr.OpSelect, f.set("Blog"), expr.NewLambda(body, b)))
		require.NoError(t, err)
		assert.Equal(t, []Projection{
			{Name: "Name", Value: col("q0", "Name")},
			{Name: "PostCount", Value: &CountOf{Query: correlated, Alias: "q2"}},
		}, q.(*Project).Projections)
	})

	t.Run("first member becomes scalar subquery", func(t *testing.T) {
		first := expr.NewCall(expr.OpFirstOrDefault, posts())
		q, err := Lower(expr.NewCall(expr.OpSelect, f.set("Blog"),
			expr.NewLambda(f.path(first, "Title"), b)))
		require.NoError(t, err)
		assert.Equal(t, []Projection{{
			Name: ValueColumn,
			Value: &Subquery{
				Query:  &Slice{Source: correlated, Alias: "q2", Limit: lit(ir.IRInt(1))},
				Alias:  "q3",
				Column: "Title",
			},
		}}, q.(*Project).Projections)
	})
}

func TestLowerOrderingAndPaging(t *testing.T) {
	f := newFixture(t)
	title := f.lambda("Post", func(p *expr.Parameter) expr.Node { return f.path(p, "Title") })
	id := f.lambda("Post", func(p *expr.Parameter) expr.Node { return f.path(p, "Id") })

	t.Run("then by extends the ordering", func(t *testing.T) {
		q, err := Lower(expr.NewCall(expr.OpThenByDescending,
			expr.NewCall(expr.OpOrderBy, f.set("Post"), title), id))
		require.NoError(t, err)
		assert.Equal(t, &Order{
			Source: &Scan{Table: "posts", Fields: postFields},
			Alias:  "q0",
			Keys: []OrderKey{
				{Value: col("q0", "Title")},
				{Value: col("q0", "Id"), Descending: true},
			},
		}, q)
	})

	t.Run("take after skip shares the slice", func(t *testing.T) {
		q, err := Lower(expr.NewCall(expr.OpTake, expr.NewCall(expr.OpSkip, f.set("Post"), num(5)), num(10)))
		require.NoError(t, err)
		assert.Equal(t, &Slice{
			Source: &Scan{Table: "posts", Fields: postFields},
			Alias:  "q0",
			Offset: lit(ir.IRInt(5)),
			Limit:  lit(ir.IRInt(10)),
		}, q)
	})

	t.Run("skip after take wraps", func(t *testing.T) {
		q, err := Lower(expr.NewCall(expr.OpSkip, expr.NewCall(expr.OpTake, f.set("Post"), num(10)), num(5)))
		require.NoError(t, err)
		outer := q.(*Slice)
		assert.Nil(t, outer.Limit)
		assert.IsType(t, &Slice{}, outer.Source)
	})
}

func TestLowerTerminals(t *testing.T) {
	f := newFixture(t)

	t.Run("all filters failing rows", func(t *testing.T) {
		pred := f.lambda("Post", func(p *expr.Parameter) expr.Node { return expr.Equal(f.path(p, "BlogId"), num(1)) })
		q, err := Lower(expr.NewCall(expr.OpAll, f.set("Post"), pred))
		require.NoError(t, err)
		assert.Equal(t, &Terminal{
			Op: TerminalAll,
			Source: &Filter{
				Source:    &Scan{Table: "posts", Fields: postFields},
				Alias:     "q0",
				Predicate: &Not{Operand: eq(col("q0", "BlogId"), lit(ir.IRInt(1)))},
			},
			Alias: "q1",
		}, q)
		assert.Equal(t, []string{"value"}, q.Columns())
	})

	t.Run("first keeps the element columns", func(t *testing.T) {
		q, err := Lower(expr.NewCall(expr.OpFirst, f.set("Post")))
		require.NoError(t, err)
		assert.Equal(t, postFields, q.Columns())
		assert.Equal(t, 1, q.(*Terminal).Op.RowLimit())
	})

	t.Run("set operation kinds", func(t *testing.T) {
		for op, want := range map[expr.Operator]SetOpKind{
			expr.OpUnion:     Union,
			expr.OpConcat:    UnionAll,
			expr.OpIntersect: Intersect,
			expr.OpExcept:    Except,
		} {
			q, err := Lower(expr.NewCall(op, f.set("Post"), f.set("Post")))
			require.NoError(t, err)
			assert.Equal(t, want, q.(*SetOp).Kind, "operator %s", op)
		}
	})

	t.Run("long count is a count", func(t *testing.T) {
		q, err := Lower(expr.NewCall(expr.OpLongCount, f.set("Post")))
		require.NoError(t, err)
		assert.Equal(t, TerminalCount, q.(*Terminal).Op)
	})

	t.Run("sum folds the value column", func(t *testing.T) {
		ids := expr.NewCall(expr.OpSelect, f.set("Post"),
			f.lambda("Post", func(p *expr.Parameter) expr.Node { return f.path(p, "Id") }))
		q, err := Lower(expr.NewCall(expr.OpSum, ids))
		require.NoError(t, err)
		term := q.(*Terminal)
		assert.Equal(t, TerminalSum, term.Op)
		assert.True(t, term.Op.IsFold())
		assert.Equal(t, []string{ValueColumn}, term.Source.Columns())
		assert.Equal(t, []string{ValueColumn}, q.Columns())
	})

	t.Run("fold over entity rows", func(t *testing.T) {
		_, err := Lower(expr.NewCall(expr.OpMax, f.set("Post")))
		assert.ErrorIs(t, err, ErrUnsupported)
	})
}

func TestKeyFilter(t *testing.T) {
	posts := &Scan{Table: "posts", Fields: postFields}

	t.Run("single column", func(t *testing.T) {
		q := KeyFilter(posts, "k0", []string{"BlogId"}, []ir.IRArray{{ir.IRInt(1)}, {ir.IRInt(2)}})
		assert.Equal(t, &Filter{
			Source: posts,
			Alias:  "k0",
			Predicate: &In{
				Operand: col("k0", "BlogId"),
				Values:  []Scalar{lit(ir.IRInt(1)), lit(ir.IRInt(2))},
			},
		}, q)
	})

	t.Run("composite", func(t *testing.T) {
		q := KeyFilter(posts, "k0", []string{"BlogId", "AuthorId"}, []ir.IRArray{
			{ir.IRInt(1), ir.IRInt(7)},
			{ir.IRInt(2), ir.IRInt(8)},
		})
		assert.Equal(t, OrAll(
			AndAll(eq(col("k0", "BlogId"), lit(ir.IRInt(1))), eq(col("k0", "AuthorId"), lit(ir.IRInt(7)))),
			AndAll(eq(col("k0", "BlogId"), lit(ir.IRInt(2))), eq(col("k0", "AuthorId"), lit(ir.IRInt(8)))),
		), q.Predicate)
	})
}

func TestLowerProjectedCollection(t *testing.T) {
	f := newFixture(t)
	query := expr.NewCall(expr.OpSelect, f.set("Blog"),
		f.lambda("Blog", func(b *expr.Parameter) expr.Node { return f.path(b, "Posts") }))

	res, err := navigation.New(f.m,
		navigation.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		navigation.WithCompilationIDs(navigation.NewFixedGenerator()),
	).Expand(context.Background(), query)
	require.NoError(t, err)

	q, err := Lower(res.Expression)
	require.NoError(t, err)
	assert.Equal(t, []Projection{{Name: "Id", Value: col("q0", "Id")}}, q.(*Project).Projections)
}

func TestLowerRejects(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name  string
		query expr.Node
	}{
		{
			name: "include",
			query: expr.NewCall(expr.OpInclude, f.set("Post"),
				f.lambda("Post", func(p *expr.Parameter) expr.Node { return f.path(p, "Blog") })),
		},
		{
			name:  "non-constant take",
			query: expr.NewCall(expr.OpTake, f.set("Post"), f.set("Post")),
		},
		{
			name:  "negative skip",
			query: expr.NewCall(expr.OpSkip, f.set("Post"), num(-1)),
		},
		{
			name: "navigation left in a predicate",
			query: expr.NewCall(expr.OpWhere, f.set("Post"),
				f.lambda("Post", func(p *expr.Parameter) expr.Node { return f.path(p, "Blog") })),
		},
		{
			name:  "scalar used as a query",
			query: num(1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Lower(tt.query)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnsupported)
		})
	}
}

func TestRowColumns(t *testing.T) {
	f := newFixture(t)
	post := expr.EntityOf(f.m.MustEntityType("Post"))

	cols, err := RowColumns(expr.PairOf(expr.StringType, post))
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Outer"},
		{"Inner", "Id"}, {"Inner", "Title"}, {"Inner", "BlogId"}, {"Inner", "AuthorId"},
	}, cols)

	_, err = RowColumns(expr.SequenceOf(post))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestColumnNaming(t *testing.T) {
	assert.Equal(t, "value", ColumnName(nil))
	assert.Equal(t, "Outer.Id", ColumnName([]string{"Outer", "Id"}))
	assert.Equal(t, "Outer", NestColumn("Outer", ValueColumn))
	assert.Equal(t, "Outer.Id", NestColumn("Outer", "Id"))
}
