package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/roach88/navex/internal/compiler"
	"github.com/roach88/navex/internal/engine"
	"github.com/roach88/navex/internal/expr"
	"github.com/roach88/navex/internal/ir"
	"github.com/roach88/navex/internal/model"
	"github.com/roach88/navex/internal/navigation"
	"github.com/roach88/navex/internal/querysql"
	"github.com/roach88/navex/internal/store"
)

// DefaultCompilationID is used when a scenario does not fix one.
const DefaultCompilationID = "test-compilation"

// Harness runs scenarios against one store.
type Harness struct {
	store   *store.Store
	logger  *slog.Logger
	dialect querysql.Dialect
}

// Option configures a Harness.
type Option func(*Harness)

// WithStore runs scenarios against s instead of a fresh in-memory SQLite
// database. Tables are created if missing and fixtures are inserted.
func WithStore(s *store.Store) Option {
	return func(h *Harness) {
		h.store = s
	}
}

// WithLogger sets the logger passed to the engine. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// WithDialect sets the dialect used by Expand. Default: sqlite.
func WithDialect(d querysql.Dialect) Option {
	return func(h *Harness) {
		h.dialect = d
	}
}

func newHarness(opts []Option) *Harness {
	h := &Harness{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		dialect: querysql.SQLite,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation unless
// WithStore is given. The compilation id is fixed so traces are
// reproducible.
//
// Execution flow:
// 1. Load and compile the CUE model
// 2. Create tables and insert fixtures
// 3. Build the query from its steps and execute it
// 4. Evaluate assertions against the trace
//
// Query failures are part of the trace, not errors: a scenario may expect
// one. The returned error reports scenarios that could not be set up.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	return RunContext(context.Background(), scenario, opts...)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	h := newHarness(opts)

	m, err := compiler.LoadDir(scenario.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}

	st := h.store
	if st == nil {
		st, err = store.Open(store.DriverSQLite, ":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
	}
	if err := st.CreateTables(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	if err := insertFixtures(ctx, st, m, scenario.Fixtures); err != nil {
		return nil, fmt.Errorf("failed to insert fixtures: %w", err)
	}

	eng := engine.New(st, m, h.engineOptions(scenario)...)
	result := NewResult()

	node, err := scenario.Query.Build(m).Build()
	if err != nil {
		recordError(&result.Trace, err)
	} else if plan, err := eng.Prepare(ctx, node); err != nil {
		recordError(&result.Trace, err)
	} else {
		result.Trace = planTrace(plan)
		exec, err := eng.Run(ctx, plan)
		if err != nil {
			recordError(&result.Trace, err)
		} else {
			result.Trace.Value = exec.Value
			result.Trace.Queries = exec.Queries
		}
	}

	h.logger.Info("scenario executed",
		"scenario", scenario.Name,
		"queries", result.Trace.Queries,
		"error_code", result.Trace.ErrorCode)

	for _, msg := range EvaluateAssertions(&result.Trace, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// Expand plans a scenario's query without running it.
func Expand(ctx context.Context, scenario *Scenario, opts ...Option) (*Trace, error) {
	h := newHarness(opts)

	m, err := compiler.LoadDir(scenario.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	node, err := scenario.Query.Build(m).Build()
	if err != nil {
		return nil, err
	}

	eng := engine.New(nil, m, append(h.engineOptions(scenario), engine.WithDialect(h.dialect))...)
	plan, err := eng.Prepare(ctx, node)
	if err != nil {
		return nil, err
	}
	t := planTrace(plan)
	return &t, nil
}

func (h *Harness) engineOptions(scenario *Scenario) []engine.Option {
	id := scenario.CompilationID
	if id == "" {
		id = DefaultCompilationID
	}
	opts := []engine.Option{
		engine.WithLogger(h.logger),
		engine.WithExpanderOptions(navigation.WithCompilationIDs(navigation.NewFixedGenerator(id))),
	}
	if scenario.MaxQueries > 0 {
		opts = append(opts, engine.WithMaxQueries(scenario.MaxQueries))
	}
	return opts
}

// insertFixtures inserts rows entity by entity in model order.
func insertFixtures(ctx context.Context, st *store.Store, m *model.Model, fixtures map[string][]map[string]any) error {
	names := make([]string, 0, len(fixtures))
	for name := range fixtures {
		if m.FindEntityType(name) == nil {
			return fmt.Errorf("fixture for unknown entity %q", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rows := make([]ir.IRObject, len(fixtures[name]))
		for i, raw := range fixtures[name] {
			v, err := ir.FromAny(map[string]any(raw))
			if err != nil {
				return fmt.Errorf("%s row %d: %w", name, i, err)
			}
			rows[i] = v.(ir.IRObject)
		}
		if err := st.Insert(ctx, m.FindEntityType(name), rows...); err != nil {
			return err
		}
	}
	return nil
}

func planTrace(plan *engine.Plan) Trace {
	params := make(ir.IRArray, len(plan.Params))
	for i, p := range plan.Params {
		v, err := ir.FromDriver(p)
		if err != nil {
			v = ir.IRString(fmt.Sprint(p))
		}
		params[i] = v
	}
	return Trace{
		Expression: expr.Format(plan.Result.Expression),
		SQL:        plan.SQL,
		Params:     params,
		Includes:   describeIncludes(plan.Result),
		Joins:      plan.Result.Joins,
		Warnings:   plan.Warnings,
	}
}

// describeIncludes renders include instructions as "Post.Blog@Inner" for
// references and "Blog.Posts@Outer[]" for collections.
func describeIncludes(res *navigation.Result) []string {
	var out []string
	for _, inc := range res.Includes {
		if inc.Collection != nil {
			out = append(out, fmt.Sprintf("%s@%s[]", inc.Navigation, strings.Join(inc.OwnerPath, ".")))
			continue
		}
		out = append(out, fmt.Sprintf("%s@%s", inc.Navigation, strings.Join(inc.TargetPath, ".")))
	}
	return out
}

func recordError(t *Trace, err error) {
	t.Error = err.Error()
	t.ErrorCode = ErrorCode(err)
}

// ErrorCode returns the code carried by err: a translation, runtime or
// model configuration code. Empty if err carries none.
func ErrorCode(err error) string {
	if code := navigation.TranslationErrorCodeOf(err); code != "" {
		return string(code)
	}
	if code := engine.RuntimeErrorCodeOf(err); code != "" {
		return string(code)
	}
	if code := model.ConfigErrorCodeOf(err); code != "" {
		return string(code)
	}
	return ""
}
