package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/querydeck/internal/ir"
	"github.com/roach88/querydeck/internal/metrics"
	"github.com/roach88/querydeck/internal/queryir"
	"github.com/roach88/querydeck/internal/schema"
)

// Target is the execution target: the one point of I/O.
type Target interface {
	// SubmitQuery runs q and returns rows in the order of q.Columns.
	SubmitQuery(ctx context.Context, q queryir.Select) ([][]ir.IRValue, error)

	// SubmitCount returns the number of rows q matches, ignoring its
	// columns, order, and page.
	SubmitCount(ctx context.Context, q queryir.Select) (int64, error)
}

// Executor submits validated queries to a Target.
//
// Thread-safety: an Executor is immutable after New and safe for
// concurrent use when its Target is.
type Executor struct {
	cat    *schema.Catalog
	target Target
	logger *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// New creates an Executor validating against cat and submitting to target.
func New(cat *schema.Catalog, target Target, opts ...Option) *Executor {
	e := &Executor{cat: cat, target: target, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the catalog queries are validated against.
func (e *Executor) Catalog() *schema.Catalog {
	return e.cat
}

// Fetch runs sel shaped by proj. A non-nil page replaces the query's own
// window; paging is applied after ordering.
func Fetch[T any](ctx context.Context, e *Executor, sel queryir.Select, proj queryir.Projection[T], page *queryir.PageRequest) ([]T, error) {
	if page != nil {
		sel = sel.Paged(*page)
	}
	return run(ctx, e, "fetch", sel, proj)
}

// FetchPage runs sel over the page window and counts every row matching
// its condition.
func FetchPage[T any](ctx context.Context, e *Executor, sel queryir.Select, proj queryir.Projection[T], page queryir.PageRequest) (queryir.PageResult[T], error) {
	if err := page.Validate(); err != nil {
		metrics.ObserveQuery("page", metrics.OutcomeInvalid, time.Now())
		return queryir.PageResult[T]{}, err
	}

	items, err := run(ctx, e, "page", sel.Paged(page), proj)
	if err != nil {
		return queryir.PageResult[T]{}, err
	}

	total, err := e.Count(ctx, sel)
	if err != nil {
		return queryir.PageResult[T]{}, err
	}

	return queryir.PageResult[T]{
		Items:  items,
		Total:  total,
		Offset: page.Offset,
		Limit:  page.Limit,
	}, nil
}

// FetchOne returns the single row sel matches. It fails with
// queryir.ErrNotFound when nothing matches and NON_UNIQUE_RESULT when more
// than one row does.
func FetchOne[T any](ctx context.Context, e *Executor, sel queryir.Select, proj queryir.Projection[T]) (T, error) {
	var zero T
	items, err := run(ctx, e, "one", sel.Paged(queryir.PageRequest{Limit: 2}), proj)
	if err != nil {
		return zero, err
	}
	switch len(items) {
	case 0:
		return zero, queryir.ErrNotFound
	case 1:
		return items[0], nil
	default:
		return zero, &queryir.QueryError{
			Code:    queryir.ErrCodeNonUniqueResult,
			Message: fmt.Sprintf("query on %s matched more than one row", sel.From.Name),
		}
	}
}

// FetchFirst returns the first row of sel in order, or queryir.ErrNotFound.
func FetchFirst[T any](ctx context.Context, e *Executor, sel queryir.Select, proj queryir.Projection[T]) (T, error) {
	var zero T
	items, err := run(ctx, e, "first", sel.Paged(queryir.PageRequest{Limit: 1}), proj)
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		return zero, queryir.ErrNotFound
	}
	return items[0], nil
}

// Count returns the number of rows (or groups) matching sel's condition.
// Columns, order, and page are ignored.
func (e *Executor) Count(ctx context.Context, sel queryir.Select) (int64, error) {
	start := time.Now()
	sel = sel.Unpaged()
	sel.Order = nil
	if len(sel.Columns) == 0 {
		sel = sel.Select(queryir.CountAll())
	}
	if err := queryir.Validate(e.cat, sel); err != nil {
		metrics.ObserveQuery("count", metrics.OutcomeInvalid, start)
		return 0, err
	}

	n, err := e.target.SubmitCount(ctx, sel)
	if err != nil {
		metrics.ObserveQuery("count", metrics.OutcomeError, start)
		return 0, &queryir.ExecutionError{Op: "count", Err: err}
	}
	metrics.ObserveQuery("count", metrics.OutcomeOK, start)
	e.logger.Debug("count submitted", "entity", sel.From.Name, "total", n)
	return n, nil
}

// run is the shared submission path: plan, validate, submit, map.
func run[T any](ctx context.Context, e *Executor, op string, sel queryir.Select, proj queryir.Projection[T]) ([]T, error) {
	start := time.Now()

	plan, err := proj.Plan(sel)
	if err != nil {
		metrics.ObserveQuery(op, metrics.OutcomeInvalid, start)
		return nil, err
	}
	if err := queryir.Validate(e.cat, plan.Query); err != nil {
		metrics.ObserveQuery(op, metrics.OutcomeInvalid, start)
		return nil, err
	}

	rows, err := e.target.SubmitQuery(ctx, plan.Query)
	if err != nil {
		metrics.ObserveQuery(op, metrics.OutcomeError, start)
		return nil, &queryir.ExecutionError{Op: "query", Err: err}
	}

	items := make([]T, 0, len(rows))
	for i, row := range rows {
		item, err := plan.Map(row)
		if err != nil {
			metrics.ObserveQuery(op, metrics.OutcomeError, start)
			return nil, fmt.Errorf("map row %d: %w", i, err)
		}
		items = append(items, item)
	}

	metrics.ObserveQuery(op, metrics.OutcomeOK, start)
	e.logger.Debug("query submitted",
		"op", op,
		"entity", sel.From.Name,
		"projection", proj.Kind(),
		"columns", len(plan.Query.Columns),
		"rows", len(items),
	)
	return items, nil
}
