package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/navex/internal/expr"
	"github.com/roach88/navex/internal/testutil"
)

func parseQuery(t *testing.T, src string) *QuerySpec {
	t.Helper()
	var q QuerySpec
	require.NoError(t, yaml.Unmarshal([]byte(src), &q))
	return &q
}

func TestQuerySpecBuild(t *testing.T) {
	m := testutil.BloggingModel()

	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "where order take",
			src: `
from: Post
steps:
  - where: {eq: [Title, {lit: Go}]}
  - order_by: Id
  - take: 2
`,
			want: `Set<Post>.Where(p => (p.Title == "Go")).OrderBy(p => p.Id).Take(2)`,
		},
		{
			name: "navigation path and null check",
			src: `
from: Post
steps:
  - where: {and: [{ne: [Blog.Name, {lit: Go}]}, {is_null: AuthorId}]}
`,
			want: `Set<Post>.Where(p => ((p.Blog.Name != "Go") && (p.AuthorId == null)))`,
		},
		{
			name: "include then include",
			src: `
from: Blog
steps:
  - include: Posts
  - then_include: Author
`,
			want: `Set<Blog>.Include("Posts").ThenInclude(p => p.Author)`,
		},
		{
			name: "collection any",
			src: `
from: Blog
steps:
  - where: {any: {of: Posts, where: {eq: [Title, {lit: Go}]}}}
`,
			want: `Set<Blog>.Where(b => b.Posts.Any(p => (p.Title == "Go")))`,
		},
		{
			name: "object keeps member order",
			src: `
from: Post
steps:
  - select: {object: {Title: Title, Blog: Blog.Name}}
`,
			want: `Set<Post>.Select(p => new { Title = p.Title, Blog = p.Blog.Name })`,
		},
		{
			name: "join keeps pair",
			src: `
from: Post
steps:
  - join:
      query: {from: Blog}
      outer_key: BlogId
      inner_key: Id
`,
			want: `Set<Post>.Join(Set<Blog>, p => p.BlogId, b => b.Id, (p, b2) => new Pair(p, b2))`,
		},
		{
			name: "bare terminal",
			src: `
from: Post
steps:
  - count
`,
			want: `Set<Post>.Count()`,
		},
		{
			name: "flatten a collection",
			src: `
from: Blog
steps:
  - select_many: Posts
`,
			want: `Set<Blog>.SelectMany(b => b.Posts)`,
		},
		{
			name: "intersect",
			src: `
from: Post
steps:
  - intersect: {from: Post}
`,
			want: `Set<Post>.Intersect(Set<Post>)`,
		},
		{
			name: "sum terminal",
			src: `
from: Post
steps:
  - sum: Id
`,
			want: `Set<Post>.Sum(p => p.Id)`,
		},
		{
			name: "max of a collection",
			src: `
from: Blog
steps:
  - where: {gt: [{max: {of: Posts, select: Id}}, 1]}
`,
			want: `Set<Blog>.Where(b => (b.Posts.Max(p => p.Id) > 1))`,
		},
		{
			name: "integer literal",
			src: `
from: Post
steps:
  - where: {gt: [BlogId, 1]}
`,
			want: `Set<Post>.Where(p => (p.BlogId > 1))`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := parseQuery(t, tt.src).Build(m).Build()
			require.NoError(t, err)
			assert.Equal(t, tt.want, expr.Format(n))
		})
	}
}

func TestStepDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{"unknown step", "from: Post\nsteps:\n  - shuffle\n", `unknown step "shuffle"`},
		{"missing argument", "from: Post\nsteps:\n  - where\n", "where requires an argument"},
		{"argument not allowed", "from: Post\nsteps:\n  - distinct: true\n", "distinct takes no argument"},
		{"negative take", "from: Post\nsteps:\n  - take: -1\n", "take must be non-negative"},
		{"two operators", "from: Post\nsteps:\n  - {skip: 1, take: 2}\n", "exactly one operator"},
		{"unknown operator", "from: Post\nsteps:\n  - where: {like: [Title, x]}\n", `unknown operator "like"`},
		{"comparison arity", "from: Post\nsteps:\n  - where: {eq: [Title]}\n", "eq takes 2 operands"},
		{"all without where", "from: Blog\nsteps:\n  - where: {all: Posts}\n", "all requires where"},
		{"sum with where", "from: Blog\nsteps:\n  - where: {gt: [{sum: {of: Posts, where: {gt: [Id, 1]}}}, 1]}\n", "sum takes select, not where"},
		{"any with select", "from: Blog\nsteps:\n  - where: {any: {of: Posts, select: Id}}\n", "any takes where, not select"},
		{"join without keys", "from: Post\nsteps:\n  - join: {query: {from: Blog}}\n", "requires outer_key and inner_key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q QuerySpec
			err := yaml.Unmarshal([]byte(tt.src), &q)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestQuerySpecBuildErrors(t *testing.T) {
	m := testutil.BloggingModel()

	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{"unknown entity", "from: Nope\n", `unknown entity type "Nope"`},
		{"unknown member", "from: Post\nsteps:\n  - where: {eq: [Nope, 1]}\n", `no member "Nope"`},
		{"float literal", "from: Post\nsteps:\n  - where: {eq: [Id, 1.5]}\n", "floats are not supported"},
		{"after terminal", "from: Post\nsteps:\n  - first\n  - take: 1\n", "Take after a terminal operator"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseQuery(t, tt.src).Build(m).Build()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
