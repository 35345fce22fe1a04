package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/navex/internal/ir"
	"github.com/roach88/navex/internal/testutil"
)

func TestReplaceUsesIdentityNotStructure(t *testing.T) {
	m := testutil.BloggingModel()
	p := NewParameter("p", EntityOf(m.MustEntityType("Post")))

	first, err := MakeMember(p, "Title")
	require.NoError(t, err)
	second, err := MakeMember(p, "Title")
	require.NoError(t, err)

	body := AndAlso(
		Equal(first, Const(ir.IRString("a"))),
		Equal(second, Const(ir.IRString("a"))),
	)

	out := Replace(body, first, Const(ir.IRString("x")))
	assert.Equal(t, `(("x" == "a") && (p.Title == "a"))`, Format(out))
	assert.Equal(t, `((p.Title == "a") && (p.Title == "a"))`, Format(body), "input must not be mutated")
}

func TestTransformKeepsUntouchedSubtrees(t *testing.T) {
	m := testutil.BloggingModel()
	p := NewParameter("p", EntityOf(m.MustEntityType("Post")))
	title, err := MakeMember(p, "Title")
	require.NoError(t, err)
	id, err := MakeMember(p, "Id")
	require.NoError(t, err)

	left := Equal(title, Const(ir.IRString("a")))
	right := Equal(id, Const(ir.IRInt(1)))
	body := AndAlso(left, right)

	out := Replace(body, id, Const(ir.IRInt(2))).(*Binary)
	assert.NotEqual(t, body.ID(), out.ID())
	assert.Same(t, left, out.Left)
	assert.NotSame(t, right, out.Right)

	unchanged := Replace(body, NewParameter("q", IntType), Const(ir.IRInt(0)))
	assert.Same(t, body, unchanged)
}

func TestReplaceRebindsLambdaParameters(t *testing.T) {
	m := testutil.BloggingModel()
	postType := EntityOf(m.MustEntityType("Post"))
	p := NewParameter("p", postType)
	title, err := MakeMember(p, "Title")
	require.NoError(t, err)
	lambda := NewLambda(title, p)

	q := NewParameter("q", postType)
	out := Replace(lambda, p, q).(*Lambda)

	require.Len(t, out.Params, 1)
	assert.Same(t, q, out.Params[0])
	assert.Equal(t, "q => q.Title", Format(out))
}

func TestInvokeInlinesLambda(t *testing.T) {
	m := testutil.BloggingModel()
	postType := EntityOf(m.MustEntityType("Post"))
	p := NewParameter("p", postType)
	title, err := MakeMember(p, "Title")
	require.NoError(t, err)
	lambda := NewLambda(Equal(title, Const(ir.IRString("Go"))), p)

	src := NewParameter("row", PairOf(postType, EntityOf(m.MustEntityType("Blog"))))
	outer, err := MakeMember(src, OuterField)
	require.NoError(t, err)

	assert.Equal(t, `(row.Outer.Title == "Go")`, Format(Invoke(lambda, outer)))
}

func TestMemberTypeNullability(t *testing.T) {
	m := testutil.BloggingModel()
	post := EntityOf(m.MustEntityType("Post"))

	tests := []struct {
		name    string
		target  *Type
		member  string
		want    string
		wantErr bool
	}{
		{"property", post, "Title", "string", false},
		{"nullable property", post, "AuthorId", "int?", false},
		{"required reference", post, "Blog", "Blog", false},
		{"optional reference", post, "Author", "Person?", false},
		{"collection", EntityOf(m.MustEntityType("Blog")), "Posts", "Seq<Post>", false},
		{"through nullable entity", post.AsNullable(), "Title", "string?", false},
		{"pair side", PairOf(post, IntType), "Inner", "int", false},
		{"unknown member", post, "Body", "", true},
		{"scalar has no members", IntType, "X", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MemberType(tt.target, tt.member)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestCallTypes(t *testing.T) {
	m := testutil.BloggingModel()
	posts := NewEntitySet(m.MustEntityType("Post"))
	p := NewParameter("p", EntityOf(m.MustEntityType("Post")))
	title, err := MakeMember(p, "Title")
	require.NoError(t, err)

	assert.Equal(t, "Seq<Post>", NewCall(OpWhere, posts, NewLambda(Const(ir.IRBool(true)), p)).Type().String())
	assert.Equal(t, "Seq<string>", NewCall(OpSelect, posts, NewLambda(title, p)).Type().String())
	assert.Equal(t, "Post", NewCall(OpFirst, posts).Type().String())
	assert.Equal(t, "Post?", NewCall(OpFirstOrDefault, posts).Type().String())
	assert.Equal(t, "bool", NewCall(OpAny, posts).Type().String())
	assert.Equal(t, "int", NewCall(OpCount, posts).Type().String())
	assert.Equal(t, "Seq<Post?>", NewCall(OpDefaultIfEmpty, posts).Type().String())
}

func TestFormat(t *testing.T) {
	m := testutil.BloggingModel()
	posts := NewEntitySet(m.MustEntityType("Post"))
	p := NewParameter("p", EntityOf(m.MustEntityType("Post")))
	rating, err := MemberPath(p, "Blog", "Rating")
	require.NoError(t, err)

	q := NewCall(OpTake,
		NewCall(OpWhere, posts, NewLambda(NewNot(Equal(rating, Null(IntType))), p)),
		Const(ir.IRInt(3)))

	assert.Equal(t, "Set<Post>.Where(p => !(p.Blog.Rating == null)).Take(3)", Format(q))

	obj := NewObject([]string{"A", "B"}, []Node{Const(ir.IRInt(1)), Const(ir.IRBool(false))})
	assert.Equal(t, "new { A = 1, B = false }", Format(obj))
	assert.Equal(t, "{A: int, B: bool}", obj.Type().String())
}

func TestTypeEqual(t *testing.T) {
	m := testutil.BloggingModel()
	post := EntityOf(m.MustEntityType("Post"))
	blog := EntityOf(m.MustEntityType("Blog"))

	assert.True(t, PairOf(post, blog).Equal(PairOf(post, blog)))
	assert.False(t, PairOf(post, blog).Equal(PairOf(blog, post)))
	assert.False(t, IntType.Equal(IntType.AsNullable()))
	assert.True(t, IntType.Equal(IntType.AsNullable().AsNonNullable()))
}

func TestTransformUpFoldsChildrenFirst(t *testing.T) {
	body := AndAlso(
		Equal(Const(ir.IRInt(1)), Const(ir.IRInt(1))),
		NewNot(Const(ir.IRBool(false))),
	)

	var visited []string
	out, err := TransformUp(body, func(n Node) (Node, error) {
		visited = append(visited, Format(n))
		if _, ok := n.(*Not); ok {
			return Const(ir.IRBool(true)), nil
		}
		return n, nil
	})
	require.NoError(t, err)
	assert.Equal(t, `((1 == 1) && true)`, Format(out))
	assert.Equal(t, []string{"1", "1", "(1 == 1)", "false", "!false", `((1 == 1) && true)`}, visited)
}

func TestTransformUpStopsOnError(t *testing.T) {
	body := Equal(Const(ir.IRInt(1)), Const(ir.IRInt(2)))
	_, err := TransformUp(body, func(n Node) (Node, error) {
		if c, ok := n.(*Constant); ok && c.Value == ir.IRInt(2) {
			return nil, assert.AnError
		}
		return n, nil
	})
	require.ErrorIs(t, err, assert.AnError)
}
