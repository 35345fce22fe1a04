package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/navex/internal/expr"
	"github.com/roach88/navex/internal/ir"
	"github.com/roach88/navex/internal/materialize"
	"github.com/roach88/navex/internal/model"
	"github.com/roach88/navex/internal/navigation"
	"github.com/roach88/navex/internal/queryir"
	"github.com/roach88/navex/internal/querysql"
	"github.com/roach88/navex/internal/store"
)

// Engine executes queries against one store and model.
//
// An Engine holds only configuration and is safe for concurrent use as
// long as the store is; every Execute call owns its own quota.
type Engine struct {
	store      *store.Store
	expander   *navigation.Expander
	compiler   *querysql.Compiler
	logger     *slog.Logger
	tracer     trace.Tracer
	maxQueries int
	dialect    querysql.Dialect

	expanderOpts []navigation.Option
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
// The expander logs through the same logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithTracer sets the tracer used for execution spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// WithMaxQueries sets the maximum statements per execution.
//
// Default: 100 statements (DefaultMaxQueries)
// Use WithMaxQueries(1) to forbid collection queries.
func WithMaxQueries(n int) Option {
	return func(e *Engine) {
		e.maxQueries = n
	}
}

// WithDialect compiles for d instead of the store's dialect. Engines
// without a store use it to plan queries for another database.
func WithDialect(d querysql.Dialect) Option {
	return func(e *Engine) {
		e.dialect = d
	}
}

// WithExpanderOptions passes options to the navigation expander.
func WithExpanderOptions(opts ...navigation.Option) Option {
	return func(e *Engine) {
		e.expanderOpts = append(e.expanderOpts, opts...)
	}
}

// New creates an Engine over store s for model m.
// Queries are compiled for the store's dialect.
func New(s *store.Store, m *model.Model, opts ...Option) *Engine {
	e := &Engine{
		store:      s,
		logger:     slog.Default(),
		tracer:     otel.Tracer("navex/engine"),
		maxQueries: DefaultMaxQueries,
	}
	for _, opt := range opts {
		opt(e)
	}

	dialect := e.dialect
	switch {
	case dialect != "":
	case s != nil:
		dialect = s.Dialect()
	default:
		dialect = querysql.SQLite
	}
	e.compiler = querysql.NewCompiler(dialect)

	expOpts := append([]navigation.Option{
		navigation.WithLogger(e.logger),
		navigation.WithTracer(e.tracer),
	}, e.expanderOpts...)
	e.expander = navigation.New(m, expOpts...)
	return e
}

// Expander returns the expander used by Prepare.
func (e *Engine) Expander() *navigation.Expander {
	return e.expander
}

// Plan is a query ready to run: the expansion result, its relational form
// and its SQL.
type Plan struct {
	Result      *navigation.Result
	Query       queryir.Query
	SQL         string
	Params      []any
	Fingerprint string
	Warnings    []string
}

// Execution is the outcome of running a query.
type Execution struct {
	Plan *Plan

	// Value is an IRArray for sequence queries and the single element or
	// aggregate for terminal operators.
	Value ir.IRValue

	// Digest identifies the materialized value.
	Digest string

	// Queries is the number of statements run, collection queries
	// included.
	Queries int
}

// Prepare expands and compiles query without touching the database.
func (e *Engine) Prepare(ctx context.Context, query expr.Node) (*Plan, error) {
	res, err := e.expander.Expand(ctx, query)
	if err != nil {
		return nil, err
	}
	return e.plan(res)
}

// plan lowers and compiles an expansion result.
func (e *Engine) plan(res *navigation.Result) (*Plan, error) {
	q, err := queryir.Lower(res.Expression)
	if err != nil {
		return nil, fmt.Errorf("lower: %w", newUnsupportedError(res.CompilationID, err))
	}
	return e.compile(res, q)
}

// collectionPlan plans the query of cq restricted to the targets whose
// key matches one of the owner keys.
func (e *Engine) collectionPlan(cq *navigation.CollectionQuery, keys []ir.IRArray) (*Plan, error) {
	res := cq.Result
	q, err := queryir.Lower(res.Expression)
	if err != nil {
		return nil, fmt.Errorf("lower: %w", newUnsupportedError(res.CompilationID, err))
	}
	columns := make([]string, len(cq.TargetKey))
	for i, k := range cq.TargetKey {
		columns[i] = queryir.ColumnName(append(slices.Clone(res.ResultPath), k))
	}
	return e.compile(res, queryir.KeyFilter(q, "k0", columns, keys))
}

func (e *Engine) compile(res *navigation.Result, q queryir.Query) (*Plan, error) {
	sql, params, err := e.compiler.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", newUnsupportedError(res.CompilationID, err))
	}

	bound := make(ir.IRArray, len(params))
	for i, p := range params {
		if bound[i], err = ir.FromDriver(p); err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i+1, err)
		}
	}
	fp, err := ir.QueryFingerprint(string(e.compiler.Dialect), sql, bound)
	if err != nil {
		return nil, err
	}

	warnings := queryir.Validate(q).Warnings
	if e.compiler.Dialect == querysql.MySQL {
		if err := querysql.CheckSyntax(sql); err != nil {
			warnings = append(warnings, err.Error())
		}
	}

	return &Plan{
		Result:      res,
		Query:       q,
		SQL:         sql,
		Params:      params,
		Fingerprint: fp,
		Warnings:    warnings,
	}, nil
}

// Execute prepares query, runs it and materializes the result.
func (e *Engine) Execute(ctx context.Context, query expr.Node) (*Execution, error) {
	return e.traced(ctx, func(ctx context.Context) (*Execution, error) {
		plan, err := e.Prepare(ctx, query)
		if err != nil {
			return nil, err
		}
		return e.execute(ctx, plan)
	})
}

// Run executes a plan made by Prepare and materializes the result. Callers
// that inspect the plan before running it prepare once and run that plan.
func (e *Engine) Run(ctx context.Context, plan *Plan) (*Execution, error) {
	if plan == nil || plan.Result == nil {
		return nil, errors.New("nil plan")
	}
	return e.traced(ctx, func(ctx context.Context) (*Execution, error) {
		return e.execute(ctx, plan)
	})
}

func (e *Engine) traced(ctx context.Context, fn func(context.Context) (*Execution, error)) (*Execution, error) {
	if e.store == nil {
		return nil, errors.New("engine has no store")
	}

	ctx, span := e.tracer.Start(ctx, "navex.execute")
	defer span.End()

	exec, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("navex.compilation_id", exec.Plan.Result.CompilationID),
		attribute.String("navex.fingerprint", exec.Plan.Fingerprint),
		attribute.Int("navex.queries", exec.Queries),
	)
	return exec, nil
}

func (e *Engine) execute(ctx context.Context, plan *Plan) (*Execution, error) {
	r := &run{
		engine: e,
		quota:  NewQueryQuota(e.maxQueries),
		logger: e.logger.With("compilation_id", plan.Result.CompilationID),
	}
	items, err := r.runPlan(ctx, plan)
	if err != nil {
		return nil, err
	}

	value, err := reduce(plan.Result, items)
	if err != nil {
		return nil, err
	}
	digest, err := ir.ResultDigest(ir.IRArray{value})
	if err != nil {
		return nil, err
	}

	r.logger.Info("query executed",
		"fingerprint", plan.Fingerprint,
		"queries", r.quota.Current())
	return &Execution{
		Plan:    plan,
		Value:   value,
		Digest:  digest,
		Queries: r.quota.Current(),
	}, nil
}

// run is the state of one Execute call. It loads collection queries for
// the materializer.
type run struct {
	engine *Engine
	quota  *QueryQuota
	logger *slog.Logger
}

// Load implements materialize.Loader. Only the targets of the given
// owner keys are read.
func (r *run) Load(ctx context.Context, q *navigation.CollectionQuery, keys []ir.IRArray) (ir.IRArray, error) {
	plan, err := r.engine.collectionPlan(q, keys)
	if err != nil {
		return nil, err
	}
	return r.runPlan(ctx, plan)
}

func (r *run) runPlan(ctx context.Context, plan *Plan) (ir.IRArray, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	if err := r.quota.Check(plan.Result.CompilationID); err != nil {
		return nil, err
	}

	for _, w := range plan.Warnings {
		r.logger.Warn("query not portable", "warning", w)
	}
	r.logger.Debug("running query", "sql", plan.SQL, "params", len(plan.Params))

	rows, err := r.engine.store.Query(ctx, plan.SQL, plan.Params...)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", plan.Fingerprint[:12], err)
	}
	items, err := materialize.Materialize(ctx, r, plan.Result, rows)
	if err != nil {
		return nil, fmt.Errorf("materialize: %w", err)
	}
	return items, nil
}

// reduce applies the terminal operator of res to its materialized
// elements. Sequence queries return the elements unchanged.
func reduce(res *navigation.Result, items ir.IRArray) (ir.IRValue, error) {
	call, ok := res.Expression.(*expr.Call)
	if !ok {
		return items, nil
	}

	id, op := res.CompilationID, string(call.Op)
	switch call.Op {
	case expr.OpCount, expr.OpLongCount, expr.OpAny, expr.OpAll, expr.OpSum:
		if len(items) != 1 {
			return nil, fmt.Errorf("%s returned %d rows", op, len(items))
		}
		return items[0], nil
	case expr.OpMin, expr.OpMax:
		if len(items) != 1 {
			return nil, fmt.Errorf("%s returned %d rows", op, len(items))
		}
		// MIN and MAX of no rows are NULL.
		if ir.IsNull(items[0]) && !call.Type().Nullable {
			return nil, NewCardinalityError(ErrCodeNoElements, id, op)
		}
		return items[0], nil
	case expr.OpFirst:
		if len(items) == 0 {
			return nil, NewCardinalityError(ErrCodeNoElements, id, op)
		}
		return items[0], nil
	case expr.OpFirstOrDefault:
		if len(items) == 0 {
			return ir.IRNull{}, nil
		}
		return items[0], nil
	case expr.OpSingle, expr.OpSingleOrDefault:
		switch {
		case len(items) > 1:
			return nil, NewCardinalityError(ErrCodeMultipleElements, id, op)
		case len(items) == 1:
			return items[0], nil
		case call.Op == expr.OpSingle:
			return nil, NewCardinalityError(ErrCodeNoElements, id, op)
		default:
			return ir.IRNull{}, nil
		}
	default:
		return items, nil
	}
}
