package navigation

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/navex/internal/expr"
	"github.com/roach88/navex/internal/model"
)

// Expander rewrites navigation accesses in queries over one model.
//
// An Expander holds only configuration and is safe for concurrent use;
// every Expand call owns its own state.
type Expander struct {
	model    *model.Model
	logger   *slog.Logger
	tracer   trace.Tracer
	ids      IDGenerator
	maxJoins int
}

// Option configures an Expander.
type Option func(*Expander)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Expander) {
		e.logger = l
	}
}

// WithTracer sets the tracer used for expansion spans.
// Default: the global otel tracer provider's "navex/navigation" tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Expander) {
		e.tracer = t
	}
}

// WithCompilationIDs sets the generator for compilation ids.
// Default: UUIDv7Generator.
func WithCompilationIDs(g IDGenerator) Option {
	return func(e *Expander) {
		e.ids = g
	}
}

// WithMaxJoins limits the joins one Expand call may synthesise.
// Default: DefaultMaxJoins. Zero or less disables the limit.
func WithMaxJoins(n int) Option {
	return func(e *Expander) {
		e.maxJoins = n
	}
}

// New creates an Expander for m.
func New(m *model.Model, opts ...Option) *Expander {
	e := &Expander{
		model:    m,
		logger:   slog.Default(),
		tracer:   otel.Tracer("navex/navigation"),
		ids:      UUIDv7Generator{},
		maxJoins: DefaultMaxJoins,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Model returns the model the expander was created with.
func (e *Expander) Model() *model.Model {
	return e.model
}

func (e *Expander) navigation(entity *model.EntityType, name string) *model.Navigation {
	if e.model != nil {
		return e.model.Navigation(entity, name)
	}
	return entity.FindNavigation(name)
}

// expansion is the state of one Expand call.
type expansion struct {
	ctx    context.Context
	e      *Expander
	arena  *Arena
	names  *names
	quota  *JoinQuota
	logger *slog.Logger
	span   trace.Span
}

// Expand rewrites query into joins over entity sets.
//
// The query's leaves must be entity sets; its operators are the Call
// operators of package expr. The context is checked between operators.
func (e *Expander) Expand(ctx context.Context, query expr.Node) (*Result, error) {
	id := e.ids.Generate()
	ctx, span := e.tracer.Start(ctx, "navex.expand",
		trace.WithAttributes(attribute.String("navex.compilation_id", id)))
	defer span.End()

	x := &expansion{
		ctx:    ctx,
		e:      e,
		arena:  NewArena(),
		names:  newNames(),
		quota:  NewJoinQuota(e.maxJoins),
		logger: e.logger.With("compilation_id", id),
		span:   span,
	}

	res, err := x.run(query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("expand %s: %w", expr.Format(query), err)
	}
	res.CompilationID = id
	res.Joins = x.quota.Current()

	span.SetAttributes(
		attribute.Int("navex.joins", res.Joins),
		attribute.Int("navex.includes", len(res.Includes)),
	)
	x.logger.Info("query expanded",
		"joins", res.Joins,
		"includes", len(res.Includes),
		"collections", len(res.Collections))
	return res, nil
}

func (x *expansion) run(query expr.Node) (*Result, error) {
	src, st, err := x.process(query)
	if err != nil {
		return nil, err
	}
	return x.finalize(st, src, false)
}

// newRootState creates the state of a query rooted at an entity set.
func (x *expansion) newRootState(e *model.EntityType) *State {
	st := &State{arena: x.arena}
	sm := &SourceMapping{RootEntityType: e}
	x.arena.CreateRoot(sm, nil)
	st.SourceMappings = []*SourceMapping{sm}
	st.CurrentParameter = expr.NewParameter(x.names.fresh(paramBase(e)), expr.EntityOf(e))
	st.PendingSelector = expr.NewLambda(newNodeBinding(st, sm.Root), st.CurrentParameter)
	return st
}

// process rewrites the operator chain ending at n and returns the physical
// source built so far with the state describing its rows.
func (x *expansion) process(n expr.Node) (expr.Node, *State, error) {
	if err := x.ctx.Err(); err != nil {
		return nil, nil, err
	}

	switch n := n.(type) {
	case *expr.EntitySet:
		return n, x.newRootState(n.Entity), nil
	case *Binding:
		if n.Custom != nil || !n.state.arena.Node(n.Node).IsCollection() {
			return nil, nil, unsupported("%s is not a query source", expr.Format(n))
		}
		return x.processCorrelated(n)
	case *expr.Call:
		return x.processCall(n)
	default:
		return nil, nil, unsupported("%s is not a query source", expr.Format(n))
	}
}

func (x *expansion) processCall(call *expr.Call) (expr.Node, *State, error) {
	src, st, err := x.process(call.Source())
	if err != nil {
		return nil, nil, err
	}
	if r := st.PendingCardinalityReducer; r != nil {
		return nil, nil, unsupported("%s after %s", call.Op, r.Op)
	}
	if call.Op != expr.OpThenInclude {
		st.PendingIncludeChain = nil
	}

	switch op := call.Op; {
	case op == expr.OpWhere:
		l, err := lambdaArg(call, 1, 1)
		if err != nil {
			return nil, nil, err
		}
		src, err = x.processWhere(st, src, l)
		return src, st, err

	case op == expr.OpSelect:
		l, err := lambdaArg(call, 1, 1)
		if err != nil {
			return nil, nil, err
		}
		return src, st, x.processSelect(st, l)

	case op.IsOrdering():
		l, err := lambdaArg(call, 1, 1)
		if err != nil {
			return nil, nil, err
		}
		return src, st, x.processOrderBy(st, op, l)

	case op == expr.OpInclude:
		return src, st, x.processInclude(st, call)

	case op == expr.OpThenInclude:
		return src, st, x.processThenInclude(st, call)

	case op == expr.OpSkip, op == expr.OpTake:
		if len(call.Args) != 2 {
			return nil, nil, unsupported("%s takes one argument", op)
		}
		src, st, err = x.reroot(st, src, false)
		if err != nil {
			return nil, nil, err
		}
		return expr.NewCall(op, src, call.Args[1]), st, nil

	case op == expr.OpDistinct:
		src, st, err = x.reroot(st, src, false)
		if err != nil {
			return nil, nil, err
		}
		return expr.NewCall(op, src), st, nil

	case op == expr.OpDefaultIfEmpty:
		return x.processDefaultIfEmpty(st, src)

	case op.IsSetOperation():
		return x.processSetOperation(st, src, call)

	case op.IsJoin():
		return x.processJoin(st, src, call)

	case op == expr.OpSelectMany:
		return x.processSelectMany(st, src, call)

	case op.IsCardinalityReducer():
		src, err = x.processCardinalityReducer(st, src, call)
		return src, st, err

	case op.IsAggregate():
		src, err = x.processAggregate(st, src, call)
		return src, st, err

	default:
		return nil, nil, unsupported("operator %s", op)
	}
}

// lambdaArg returns argument i of call as a lambda of arity params.
func lambdaArg(call *expr.Call, i, params int) (*expr.Lambda, error) {
	l := call.LambdaArg(i)
	if l == nil || len(l.Params) != params {
		return nil, unsupported("%s expects a %d-parameter lambda at argument %d", call.Op, params, i)
	}
	return l, nil
}
