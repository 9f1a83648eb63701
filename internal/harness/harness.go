package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/roach88/querydeck/internal/bulk"
	"github.com/roach88/querydeck/internal/executor"
	"github.com/roach88/querydeck/internal/ir"
	"github.com/roach88/querydeck/internal/model"
	"github.com/roach88/querydeck/internal/queryir"
	"github.com/roach88/querydeck/internal/repository"
	"github.com/roach88/querydeck/internal/schema"
	"github.com/roach88/querydeck/internal/search"
	"github.com/roach88/querydeck/internal/session"
	"github.com/roach88/querydeck/internal/store"
	"github.com/roach88/querydeck/internal/testutil"
)

// Harness holds the collaborators of one scenario run.
type Harness struct {
	cat     *schema.Catalog
	store   *store.Store
	cache   *session.Cache
	repo    *repository.Members
	clock   testutil.Sequence
	members map[string]int64
	logger  *slog.Logger
}

// Option configures a run.
type Option func(*Harness)

// WithLogger sets the logger shared by every collaborator. Default: a
// logger that discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// Run executes a scenario against a fresh in-memory store.
//
// Execution flow:
//  1. Open an in-memory store and seed it from scenario.Setup
//  2. Wire executor, coordinator, session cache, and repository; the
//     cache and the store journal both receive every invalidation signal
//  3. Run each step, recording it in the trace and checking its expect
//  4. Evaluate assertions
//
// Run returns an error only when the run itself could not proceed; failed
// expectations and assertions are reported in the Result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		cat:     schema.Default(),
		members: make(map[string]int64),
		logger:  testutil.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}

	st, err := store.Open(":memory:", h.cat)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()
	h.store = st

	if err := h.seed(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to seed: %w", err)
	}

	h.cache = session.New(session.WithLogger(h.logger))
	exec := executor.New(h.cat, st, executor.WithLogger(h.logger))
	coord := bulk.New(h.cat, st, bulk.Invalidators(h.cache, st),
		bulk.WithLogger(h.logger),
		bulk.WithIDGenerator(testutil.NewSignalIDs(scenario.SignalPrefix)),
	)
	if h.repo, err = repository.NewMembers(exec, coord, h.cache); err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		h.runStep(ctx, i, step, result)
	}

	for _, msg := range h.evaluateAssertions(ctx, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// seed saves the setup data and remembers member IDs by user name.
func (h *Harness) seed(ctx context.Context, setup Setup) error {
	teams, members := setup.Entities()
	if err := h.store.Seed(ctx, teams, members); err != nil {
		return err
	}
	for _, m := range members {
		if m.UserName != nil {
			h.members[*m.UserName] = m.ID
		}
	}
	return nil
}

// observation is what a step produced, in both checkable and traceable form.
type observation struct {
	trace    ir.IRValue
	rows     []string
	total    *int64
	affected *int64
	age      *int
	stats    *model.AgeStats
	averages []model.TeamAverage
}

func (h *Harness) runStep(ctx context.Context, i int, step Step, result *Result) {
	seq := h.clock.Next()
	obs, err := h.execute(ctx, step)

	outcome := OutcomeOK
	if err != nil {
		outcome = errorCode(err)
		result.AddTrace(step.Op, outcome, nil, seq)
	} else {
		result.AddTrace(step.Op, outcome, obs.trace, seq)
	}

	h.logger.Info("step completed", "step", i, "op", step.Op, "outcome", outcome)

	for _, msg := range checkExpect(step.Expect, obs, err, outcome) {
		result.AddError(fmt.Sprintf("steps[%d] (%s): %s", i, step.Op, msg))
	}
}

func (h *Harness) execute(ctx context.Context, step Step) (observation, error) {
	switch step.Op {
	case OpSearch:
		order, err := h.orderSpec(step.Order)
		if err != nil {
			return observation{}, err
		}
		var page *queryir.PageRequest
		if step.Page != nil {
			page = &queryir.PageRequest{Offset: step.Page.Offset, Limit: step.Page.Limit}
		}
		rows, err := h.repo.Search(ctx, step.Condition, order, page)
		if err != nil {
			return observation{}, err
		}
		return rowsObservation(rows), nil

	case OpSearchPage:
		order, err := h.orderSpec(step.Order)
		if err != nil {
			return observation{}, err
		}
		page, err := h.repo.SearchPage(ctx, step.Condition, order, queryir.PageRequest{Offset: step.Page.Offset, Limit: step.Page.Limit})
		if err != nil {
			return observation{}, err
		}
		obs := rowsObservation(page.Items)
		obs.total = &page.Total
		obs.trace = ir.IRObject{"rows": obs.trace, "total": ir.IRInt(page.Total)}
		return obs, nil

	case OpFind, OpFindFresh:
		find := h.repo.Find
		if step.Op == OpFindFresh {
			find = h.repo.FindFresh
		}
		m, err := find(ctx, h.members[step.Member])
		if err != nil {
			return observation{}, err
		}
		return observation{
			trace: ir.IRObject{"user_name": nameValue(m.UserName), "age": ir.IRInt(m.Age)},
			age:   &m.Age,
		}, nil

	case OpUpdate:
		n, err := h.repo.Update(ctx, h.assignments(step), h.where(step))
		if err != nil {
			return observation{}, err
		}
		return affectedObservation(n), nil

	case OpDelete:
		n, err := h.repo.Delete(ctx, h.where(step))
		if err != nil {
			return observation{}, err
		}
		return affectedObservation(n), nil

	case OpDirectUpdate:
		n, err := h.directUpdate(ctx, h.members[step.Member], step.Set)
		if err != nil {
			return observation{}, err
		}
		return affectedObservation(n), nil

	case OpStats:
		stats, err := h.repo.Stats(ctx)
		if err != nil {
			return observation{}, err
		}
		return observation{
			trace: ir.IRObject{
				"count": ir.IRInt(stats.Count),
				"sum":   ir.IRInt(stats.Sum),
				"avg":   ir.IRString(formatFloat(stats.Avg)),
				"max":   ir.IRInt(stats.Max),
				"min":   ir.IRInt(stats.Min),
			},
			stats: &stats,
		}, nil

	case OpTeamAverages:
		avgs, err := h.repo.TeamAverages(ctx)
		if err != nil {
			return observation{}, err
		}
		arr := make(ir.IRArray, len(avgs))
		for i, a := range avgs {
			arr[i] = ir.IRObject{"team_name": ir.IRString(a.TeamName), "avg_age": ir.IRString(formatFloat(a.AvgAge))}
		}
		return observation{trace: arr, averages: avgs}, nil

	default:
		return observation{}, fmt.Errorf("unknown op %q", step.Op)
	}
}

func rowsObservation(rows []model.MemberTeamDto) observation {
	names := make([]string, len(rows))
	arr := make(ir.IRArray, len(rows))
	for i, r := range rows {
		names[i] = r.UserName
		arr[i] = ir.IRString(r.UserName)
	}
	return observation{trace: arr, rows: names}
}

func affectedObservation(n int64) observation {
	return observation{trace: ir.IRObject{"affected": ir.IRInt(n)}, affected: &n}
}

// memberField resolves a member field name against the catalog. Unknown
// names resolve to a field without a kind, which validation rejects.
func (h *Harness) memberField(name string) queryir.Field {
	def, _ := h.cat.Field(model.EntityMember, name)
	qm := model.QMember
	return queryir.Field{Entity: model.EntityMember, Alias: qm.Ref.Alias, Name: name, Kind: def.Kind}
}

func (h *Harness) orderSpec(keys []OrderKey) (queryir.OrderSpec, error) {
	okeys := make([]queryir.OrderKey, 0, len(keys))
	for _, k := range keys {
		var field queryir.Expr = h.memberField(k.Field)
		if k.Field == "team.name" {
			field = model.QTeam.Name
		}
		key := queryir.Asc(field)
		if k.Desc {
			key = queryir.Desc(field)
		}
		switch k.Nulls {
		case "first":
			key = key.NullsFirst()
		case "last":
			key = key.NullsLast()
		}
		okeys = append(okeys, key)
	}
	return queryir.NewOrderSpec(h.cat, okeys...)
}

// where composes the mutation filter from the step's search inputs. A
// team_name input references the joined team and makes the mutation
// invalid.
func (h *Harness) where(step Step) queryir.Predicate {
	if step.Where.Empty() {
		return nil
	}
	return search.ComposeDefault(step.Where)
}

// assignments orders set then increment entries by field name.
func (h *Harness) assignments(step Step) []queryir.Assignment {
	var out []queryir.Assignment
	for _, name := range sortedKeys(step.Set) {
		out = append(out, h.memberField(name).Set(step.Set[name]))
	}
	for _, name := range sortedKeys(step.Increment) {
		f := h.memberField(name)
		out = append(out, f.Set(queryir.Add(f, step.Increment[name])))
	}
	return out
}

// directUpdate writes one member row without going through the
// coordinator, so no signal is emitted.
func (h *Harness) directUpdate(ctx context.Context, id int64, set map[string]any) (int64, error) {
	entity, _ := h.cat.Entity(model.EntityMember)
	var affected int64
	for _, name := range sortedKeys(set) {
		def, ok := entity.Fields[name]
		if !ok || def.Key {
			return 0, fmt.Errorf("direct_update: can not set %q", name)
		}
		res, err := h.store.DB().ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET %s = ? WHERE id = ?", entity.Table, def.Column),
			set[name], id,
		)
		if err != nil {
			return 0, fmt.Errorf("direct_update: %w", err)
		}
		if affected, err = res.RowsAffected(); err != nil {
			return 0, fmt.Errorf("direct_update: %w", err)
		}
	}
	return affected, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func nameValue(s *string) ir.IRValue {
	if s == nil {
		return ir.IRNull{}
	}
	return ir.IRString(*s)
}

// formatFloat renders floats for traces; canonical JSON has no floats.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// errorCode maps an operation error to the code scenarios expect.
func errorCode(err error) string {
	switch {
	case errors.Is(err, queryir.ErrNotFound):
		return "NOT_FOUND"
	case bulk.IsInvalidationFailed(err):
		return bulk.ErrCodeInvalidationFailed
	}
	if code := queryir.Code(err); code != "" {
		return string(code)
	}
	return "ERROR"
}
