package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xwb1989/sqlparser"

	"github.com/roach88/navex/internal/ir"
	"github.com/roach88/navex/internal/queryir"
)

// Dialect selects identifier quoting, placeholders and paging syntax.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

// ParseDialect validates a dialect name.
func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(s)); d {
	case SQLite, Postgres, MySQL:
		return d, nil
	case "sqlite3":
		return SQLite, nil
	case "pgx", "postgresql":
		return Postgres, nil
	default:
		return "", fmt.Errorf("unknown SQL dialect %q", s)
	}
}

// mysqlNoLimit is the row count MySQL documents for OFFSET without LIMIT.
const mysqlNoLimit = "18446744073709551615"

// Compiler compiles relational queries to parameterized SQL.
//
// CRITICAL: All values are parameterized (never interpolated). Only NULL
// is written as a keyword.
//
// Consecutive operators are folded into one SELECT when SQL clause order
// allows it (WHERE, then SELECT list, DISTINCT, ORDER BY, LIMIT). Anything
// else becomes a derived table. A derived table does not keep its ORDER
// BY, so orderings over plain columns are restated on the enclosing
// SELECT.
//
// A Compiler is stateless and safe for concurrent use.
type Compiler struct {
	Dialect Dialect
}

// NewCompiler creates a Compiler for dialect d.
func NewCompiler(d Dialect) *Compiler {
	return &Compiler{Dialect: d}
}

// Compile converts a query to SQL text and its bound parameters.
// Returns (sql, params, error) tuple.
func (c *Compiler) Compile(q queryir.Query) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}
	comp := &compilation{dialect: c.Dialect, renames: map[string]string{}}
	var w strings.Builder
	if err := comp.query(&w, q); err != nil {
		return "", nil, err
	}
	return w.String(), comp.params, nil
}

// CheckSyntax parses MySQL SQL text and reports the first syntax error.
func CheckSyntax(sql string) error {
	if _, err := sqlparser.Parse(sql); err != nil {
		return fmt.Errorf("invalid MySQL syntax: %w", err)
	}
	return nil
}

type compilation struct {
	dialect Dialect
	params  []any
	// renames maps the alias of an operator folded into its source's
	// SELECT to the alias that SELECT uses. Aliases are unique per query.
	renames map[string]string
	// scans numbers the aliases of scans read without any operator.
	scans int
}

// from is the FROM clause of a block.
type from interface{ isFrom() }

type tableFrom struct{ table string }

type derivedFrom struct{ b *block }

type joinFrom struct {
	kind                  queryir.JoinKind
	left, right           *block
	leftAlias, rightAlias string
	on                    queryir.Scalar
}

func (tableFrom) isFrom()   {}
func (derivedFrom) isFrom() {}
func (joinFrom) isFrom()    {}

// block is one SELECT under construction.
type block struct {
	from  from
	alias string

	where    []queryir.Scalar
	columns  []queryir.Projection
	distinct bool
	order    []queryir.OrderKey
	offset   queryir.Scalar
	limit    queryir.Scalar
	count    bool
	// fold is the Sum, Min or Max the block computes over the value
	// column of its derived source.
	fold queryir.TerminalOp

	// names are the output columns.
	names []string
	// sortedBy lists output columns the rows are ordered by, when the
	// ordering can be restated by an enclosing SELECT.
	sortedBy []sortColumn

	// compound blocks are rendered whole and never extended.
	compound func(w *strings.Builder) error
}

type sortColumn struct {
	name       string
	descending bool
}

func (b *block) bare() bool {
	_, ok := b.from.(tableFrom)
	return ok && len(b.where) == 0 && b.columns == nil && !b.distinct &&
		len(b.order) == 0 && b.offset == nil && b.limit == nil && !b.aggregated()
}

func (b *block) aggregated() bool {
	return b.count || b.fold != ""
}

// open reports whether the block still reads its source rows unchanged, so
// a filter, ordering or projection can be added to it.
func (b *block) open() bool {
	return b.compound == nil && b.columns == nil && !b.aggregated() && !b.distinct &&
		b.offset == nil && b.limit == nil
}

func (b *block) sliceable() bool {
	return b.compound == nil && !b.aggregated() && b.offset == nil && b.limit == nil
}

func (b *block) distinctable() bool {
	if b.compound != nil || b.aggregated() || b.distinct || b.offset != nil || b.limit != nil {
		return false
	}
	if b.columns != nil && len(b.order) > 0 {
		return false
	}
	for _, k := range b.order {
		if _, ok := k.Value.(*queryir.Column); !ok {
			return false
		}
	}
	return true
}

// adopt folds an operator reading its source through alias into b.
func (c *compilation) adopt(b *block, alias string) {
	switch b.alias {
	case "":
		b.alias = alias
	case alias:
	default:
		c.renames[alias] = b.alias
	}
}

func (c *compilation) resolve(alias string) string {
	for {
		next, ok := c.renames[alias]
		if !ok {
			return alias
		}
		alias = next
	}
}

// wrap makes b a derived table read through alias.
func (c *compilation) wrap(b *block, alias string) *block {
	out := &block{from: derivedFrom{b: b}, alias: alias, names: b.names, sortedBy: b.sortedBy}
	for _, s := range b.sortedBy {
		out.order = append(out.order, queryir.OrderKey{
			Value:      &queryir.Column{Alias: alias, Name: s.name},
			Descending: s.descending,
		})
	}
	return out
}

func (c *compilation) build(q queryir.Query) (*block, error) {
	switch q := q.(type) {
	case *queryir.Scan:
		return &block{from: tableFrom{table: q.Table}, names: q.Columns()}, nil

	case *queryir.Filter:
		b, err := c.build(q.Source)
		if err != nil {
			return nil, err
		}
		if !b.open() {
			b = c.wrap(b, q.Alias)
		} else {
			c.adopt(b, q.Alias)
		}
		b.where = append(b.where, q.Predicate)
		return b, nil

	case *queryir.Project:
		b, err := c.build(q.Source)
		if err != nil {
			return nil, err
		}
		if !b.open() {
			b = c.wrap(b, q.Alias)
		} else {
			c.adopt(b, q.Alias)
		}
		b.columns = q.Projections
		b.names = q.Columns()
		b.sortedBy = c.projectSorted(b, q.Projections)
		return b, nil

	case *queryir.Order:
		b, err := c.build(q.Source)
		if err != nil {
			return nil, err
		}
		if !b.open() {
			b = c.wrap(b, q.Alias)
		} else {
			c.adopt(b, q.Alias)
		}
		b.order = q.Keys
		b.sortedBy = nil
		for _, k := range q.Keys {
			col, ok := k.Value.(*queryir.Column)
			if !ok || c.resolve(col.Alias) != b.alias {
				b.sortedBy = nil
				break
			}
			b.sortedBy = append(b.sortedBy, sortColumn{name: col.Name, descending: k.Descending})
		}
		return b, nil

	case *queryir.Slice:
		b, err := c.build(q.Source)
		if err != nil {
			return nil, err
		}
		if !b.sliceable() {
			b = c.wrap(b, q.Alias)
		} else if b.alias == "" {
			b.alias = q.Alias
		}
		b.offset, b.limit = q.Offset, q.Limit
		return b, nil

	case *queryir.Distinct:
		b, err := c.build(q.Source)
		if err != nil {
			return nil, err
		}
		if !b.distinctable() {
			b = c.wrap(b, q.Alias)
		} else if b.alias == "" {
			b.alias = q.Alias
		}
		b.distinct = true
		return b, nil

	case *queryir.Join:
		return c.buildJoin(q)

	case *queryir.SetOp:
		return c.buildSetOp(q)

	case *queryir.DefaultIfEmpty:
		return c.buildDefaultIfEmpty(q)

	case *queryir.Terminal:
		return c.buildTerminal(q)

	default:
		return nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

// projectSorted carries the sort columns of b through a projection that
// copies them unchanged.
func (c *compilation) projectSorted(b *block, ps []queryir.Projection) []sortColumn {
	var out []sortColumn
	for _, s := range b.sortedBy {
		found := false
		for _, p := range ps {
			col, ok := p.Value.(*queryir.Column)
			if ok && col.Name == s.name && c.resolve(col.Alias) == b.alias {
				out = append(out, sortColumn{name: p.Name, descending: s.descending})
				found = true
				break
			}
		}
		if !found {
			return nil
		}
	}
	return out
}

func (c *compilation) buildJoin(q *queryir.Join) (*block, error) {
	left, err := c.build(q.Left)
	if err != nil {
		return nil, err
	}
	right, err := c.build(q.Right)
	if err != nil {
		return nil, err
	}
	b := &block{
		from:  joinFrom{kind: q.Kind, left: left, right: right, leftAlias: q.LeftAlias, rightAlias: q.RightAlias, on: q.On},
		names: q.Columns(),
	}
	for _, name := range left.names {
		b.columns = append(b.columns, queryir.Projection{
			Name:  queryir.NestColumn("Outer", name),
			Value: &queryir.Column{Alias: q.LeftAlias, Name: name},
		})
	}
	for _, name := range right.names {
		b.columns = append(b.columns, queryir.Projection{
			Name:  queryir.NestColumn("Inner", name),
			Value: &queryir.Column{Alias: q.RightAlias, Name: name},
		})
	}
	for _, s := range left.sortedBy {
		b.order = append(b.order, queryir.OrderKey{
			Value:      &queryir.Column{Alias: q.LeftAlias, Name: s.name},
			Descending: s.descending,
		})
		b.sortedBy = append(b.sortedBy, sortColumn{name: queryir.NestColumn("Outer", s.name), descending: s.descending})
	}
	return b, nil
}

func (c *compilation) buildSetOp(q *queryir.SetOp) (*block, error) {
	b := &block{names: q.Columns()}
	b.compound = func(w *strings.Builder) error {
		if err := c.selectAllFrom(w, q.Left, q.LeftAlias); err != nil {
			return err
		}
		w.WriteString(" " + string(q.Kind) + " ")
		return c.selectAllFrom(w, q.Right, q.RightAlias)
	}
	return b, nil
}

// selectAllFrom writes SELECT <columns> FROM (<q>) AS alias.
func (c *compilation) selectAllFrom(w *strings.Builder, q queryir.Query, alias string) error {
	w.WriteString("SELECT ")
	c.columnList(w, alias, q.Columns())
	w.WriteString(" FROM (")
	if err := c.query(w, q); err != nil {
		return err
	}
	w.WriteString(") AS " + alias)
	return nil
}

func (c *compilation) columnList(w *strings.Builder, alias string, names []string) {
	for i, name := range names {
		if i > 0 {
			w.WriteString(", ")
		}
		w.WriteString(alias + "." + c.quote(name) + " AS " + c.quote(name))
	}
}

// buildDefaultIfEmpty left joins the source to a single dummy row, which
// yields one row of NULLs when the source is empty.
func (c *compilation) buildDefaultIfEmpty(q *queryir.DefaultIfEmpty) (*block, error) {
	b := &block{names: q.Columns()}
	b.compound = func(w *strings.Builder) error {
		w.WriteString("SELECT ")
		c.columnList(w, q.Alias, q.Columns())
		w.WriteString(" FROM (SELECT 1 AS " + c.quote("_d") + ") AS " + c.quote("_e") + " LEFT JOIN (")
		if err := c.query(w, q.Source); err != nil {
			return err
		}
		w.WriteString(") AS " + q.Alias + " ON 1 = 1")
		return nil
	}
	return b, nil
}

func (c *compilation) buildTerminal(q *queryir.Terminal) (*block, error) {
	switch q.Op {
	case queryir.TerminalAny, queryir.TerminalAll:
		b := &block{names: q.Columns()}
		not := ""
		if q.Op == queryir.TerminalAll {
			not = "NOT "
		}
		b.compound = func(w *strings.Builder) error {
			w.WriteString("SELECT CASE WHEN " + not + "EXISTS (")
			if err := c.query(w, q.Source); err != nil {
				return err
			}
			w.WriteString(") THEN 1 ELSE 0 END AS " + c.quote(queryir.ValueColumn))
			return nil
		}
		return b, nil
	}

	b, err := c.build(q.Source)
	if err != nil {
		return nil, err
	}
	if q.Op == queryir.TerminalCount {
		if !b.open() {
			b = c.wrap(b, q.Alias)
		} else {
			c.adopt(b, q.Alias)
		}
		b.count = true
		b.order, b.sortedBy = nil, nil
		b.names = q.Columns()
		return b, nil
	}
	if q.Op.IsFold() {
		// The folded value is a projection of the source, so the source
		// is always read as a derived table.
		b = c.wrap(b, q.Alias)
		b.fold = q.Op
		b.order, b.sortedBy = nil, nil
		b.names = q.Columns()
		return b, nil
	}

	if !b.sliceable() {
		b = c.wrap(b, q.Alias)
	} else if b.alias == "" {
		b.alias = q.Alias
	}
	b.limit = &queryir.Literal{Value: ir.IRInt(q.Op.RowLimit())}
	return b, nil
}

// query writes the SQL of q.
func (c *compilation) query(w *strings.Builder, q queryir.Query) error {
	b, err := c.build(q)
	if err != nil {
		return err
	}
	if b.alias == "" && b.compound == nil {
		if _, ok := b.from.(tableFrom); ok {
			b.alias = "s" + strconv.Itoa(c.scans)
			c.scans++
		}
	}
	return c.render(w, b)
}

func (c *compilation) render(w *strings.Builder, b *block) error {
	if b.compound != nil {
		return b.compound(w)
	}

	w.WriteString("SELECT ")
	if b.distinct {
		w.WriteString("DISTINCT ")
	}
	switch {
	case b.count:
		w.WriteString("COUNT(*) AS " + c.quote(queryir.ValueColumn))
	case b.fold != "":
		col := b.alias + "." + c.quote(queryir.ValueColumn)
		switch b.fold {
		case queryir.TerminalSum:
			w.WriteString("COALESCE(SUM(" + col + "), 0)")
		case queryir.TerminalMin:
			w.WriteString("MIN(" + col + ")")
		default:
			w.WriteString("MAX(" + col + ")")
		}
		w.WriteString(" AS " + c.quote(queryir.ValueColumn))
	case b.columns != nil:
		for i, p := range b.columns {
			if i > 0 {
				w.WriteString(", ")
			}
			if err := c.scalar(w, p.Value); err != nil {
				return err
			}
			w.WriteString(" AS " + c.quote(p.Name))
		}
	default:
		c.columnList(w, b.alias, b.names)
	}

	w.WriteString(" FROM ")
	if err := c.from(w, b); err != nil {
		return err
	}

	if len(b.where) > 0 {
		w.WriteString(" WHERE ")
		if err := c.scalar(w, queryir.AndAll(b.where...)); err != nil {
			return err
		}
	}

	if len(b.order) > 0 {
		w.WriteString(" ORDER BY ")
		for i, k := range b.order {
			if i > 0 {
				w.WriteString(", ")
			}
			if err := c.scalar(w, k.Value); err != nil {
				return err
			}
			if k.Descending {
				w.WriteString(" DESC")
			} else {
				w.WriteString(" ASC")
			}
		}
	}
	return c.paging(w, b)
}

func (c *compilation) from(w *strings.Builder, b *block) error {
	switch f := b.from.(type) {
	case tableFrom:
		w.WriteString(c.quote(f.table) + " AS " + b.alias)
		return nil
	case derivedFrom:
		return c.fromItem(w, f.b, b.alias)
	case joinFrom:
		if err := c.fromItem(w, f.left, f.leftAlias); err != nil {
			return err
		}
		if f.kind == queryir.JoinLeft {
			w.WriteString(" LEFT JOIN ")
		} else {
			w.WriteString(" INNER JOIN ")
		}
		if err := c.fromItem(w, f.right, f.rightAlias); err != nil {
			return err
		}
		w.WriteString(" ON ")
		return c.scalar(w, f.on)
	default:
		return fmt.Errorf("unsupported FROM clause: %T", b.from)
	}
}

// fromItem writes a table reference, using the table name directly when b
// is an unfiltered scan.
func (c *compilation) fromItem(w *strings.Builder, b *block, alias string) error {
	if b.bare() {
		w.WriteString(c.quote(b.from.(tableFrom).table) + " AS " + alias)
		return nil
	}
	w.WriteByte('(')
	if err := c.render(w, b); err != nil {
		return err
	}
	w.WriteString(") AS " + alias)
	return nil
}

func (c *compilation) paging(w *strings.Builder, b *block) error {
	switch {
	case b.limit != nil:
		w.WriteString(" LIMIT ")
		if err := c.scalar(w, b.limit); err != nil {
			return err
		}
		if b.offset != nil {
			w.WriteString(" OFFSET ")
			return c.scalar(w, b.offset)
		}
	case b.offset != nil:
		switch c.dialect {
		case SQLite:
			w.WriteString(" LIMIT -1")
		case MySQL:
			w.WriteString(" LIMIT " + mysqlNoLimit)
		}
		w.WriteString(" OFFSET ")
		return c.scalar(w, b.offset)
	}
	return nil
}

func (c *compilation) scalar(w *strings.Builder, s queryir.Scalar) error {
	switch s := s.(type) {
	case *queryir.Column:
		w.WriteString(c.resolve(s.Alias) + "." + c.quote(s.Name))
	case *queryir.Literal:
		if ir.IsNull(s.Value) {
			w.WriteString("NULL")
			return nil
		}
		v, err := ir.ToDriver(s.Value)
		if err != nil {
			return err
		}
		c.params = append(c.params, v)
		w.WriteString(c.placeholder())
	case *queryir.Compare:
		w.WriteByte('(')
		if err := c.scalar(w, s.Left); err != nil {
			return err
		}
		w.WriteString(" " + string(s.Op) + " ")
		if err := c.scalar(w, s.Right); err != nil {
			return err
		}
		w.WriteByte(')')
	case *queryir.Logical:
		w.WriteByte('(')
		if err := c.scalar(w, s.Left); err != nil {
			return err
		}
		w.WriteString(" " + string(s.Op) + " ")
		if err := c.scalar(w, s.Right); err != nil {
			return err
		}
		w.WriteByte(')')
	case *queryir.Not:
		if n, ok := s.Operand.(*queryir.IsNull); ok {
			if err := c.scalar(w, n.Operand); err != nil {
				return err
			}
			w.WriteString(" IS NOT NULL")
			return nil
		}
		w.WriteString("NOT (")
		if err := c.scalar(w, s.Operand); err != nil {
			return err
		}
		w.WriteByte(')')
	case *queryir.IsNull:
		if err := c.scalar(w, s.Operand); err != nil {
			return err
		}
		w.WriteString(" IS NULL")
	case *queryir.In:
		if err := c.scalar(w, s.Operand); err != nil {
			return err
		}
		w.WriteString(" IN (")
		for i, x := range s.Values {
			if i > 0 {
				w.WriteString(", ")
			}
			if err := c.scalar(w, x); err != nil {
				return err
			}
		}
		w.WriteByte(')')
	case *queryir.Coalesce:
		w.WriteString("COALESCE(")
		if err := c.scalar(w, s.Left); err != nil {
			return err
		}
		w.WriteString(", ")
		if err := c.scalar(w, s.Right); err != nil {
			return err
		}
		w.WriteByte(')')
	case *queryir.Case:
		w.WriteString("CASE WHEN ")
		if err := c.scalar(w, s.When); err != nil {
			return err
		}
		w.WriteString(" THEN ")
		if err := c.scalar(w, s.Then); err != nil {
			return err
		}
		w.WriteString(" ELSE ")
		if err := c.scalar(w, s.Else); err != nil {
			return err
		}
		w.WriteString(" END")
	case *queryir.Exists:
		w.WriteString("EXISTS (")
		if err := c.query(w, s.Query); err != nil {
			return err
		}
		w.WriteByte(')')
	case *queryir.CountOf:
		w.WriteString("(SELECT COUNT(*) FROM (")
		if err := c.query(w, s.Query); err != nil {
			return err
		}
		w.WriteString(") AS " + s.Alias + ")")
	case *queryir.Subquery:
		w.WriteString("(SELECT " + s.Alias + "." + c.quote(s.Column) + " FROM (")
		if err := c.query(w, s.Query); err != nil {
			return err
		}
		w.WriteString(") AS " + s.Alias + ")")
	default:
		return fmt.Errorf("unsupported scalar type: %T", s)
	}
	return nil
}

func (c *compilation) quote(name string) string {
	return QuoteIdent(c.dialect, name)
}

func (c *compilation) placeholder() string {
	return Placeholder(c.dialect, len(c.params))
}

// QuoteIdent quotes an identifier for dialect d.
func QuoteIdent(d Dialect, name string) string {
	if d == MySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Placeholder returns the marker of the n-th (1-based) bound parameter.
func Placeholder(d Dialect, n int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}
