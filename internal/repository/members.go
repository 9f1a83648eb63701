// Package repository exposes caller-facing member queries and bulk
// mutations. Results are DTOs or entities; result tuples stay internal.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/querydeck/internal/bulk"
	"github.com/roach88/querydeck/internal/executor"
	"github.com/roach88/querydeck/internal/model"
	"github.com/roach88/querydeck/internal/queryir"
	"github.com/roach88/querydeck/internal/search"
	"github.com/roach88/querydeck/internal/session"
)

// Members is the member repository.
type Members struct {
	exec  *executor.Executor
	coord *bulk.Coordinator
	cache *session.Cache
	m     model.MemberPath
	t     model.TeamPath

	searchRow queryir.Projection[model.MemberTeamDto]
	statsRow  queryir.Projection[model.AgeStats]
	avgRow    queryir.Projection[model.TeamAverage]
}

// NewMembers builds a repository over exec and coord. cache may be nil, in
// which case Find always reads through to the target. For Find to observe
// bulk mutations, cache must be among coord's invalidators.
func NewMembers(exec *executor.Executor, coord *bulk.Coordinator, cache *session.Cache) (*Members, error) {
	r := &Members{exec: exec, coord: coord, cache: cache, m: model.QMember, t: model.QTeam}

	var err error
	r.searchRow, err = queryir.Fields[model.MemberTeamDto](
		r.m.ID.As("memberId"),
		r.m.UserName,
		r.m.Age,
		r.m.TeamID,
		r.t.Name.As("teamName"),
	)
	if err != nil {
		return nil, fmt.Errorf("search projection: %w", err)
	}

	r.statsRow, err = queryir.Fields[model.AgeStats](
		queryir.As(queryir.CountAll(), "count"),
		queryir.As(queryir.Sum(r.m.Age), "sum"),
		queryir.As(queryir.Avg(r.m.Age), "avg"),
		queryir.As(queryir.Max(r.m.Age), "max"),
		queryir.As(queryir.Min(r.m.Age), "min"),
	)
	if err != nil {
		return nil, fmt.Errorf("stats projection: %w", err)
	}

	r.avgRow, err = queryir.Fields[model.TeamAverage](
		r.t.Name.As("teamName"),
		queryir.As(queryir.Avg(r.m.Age), "avgAge"),
	)
	if err != nil {
		return nil, fmt.Errorf("team average projection: %w", err)
	}
	return r, nil
}

// searchQuery is members left-joined to their team, filtered by cond.
func (r *Members) searchQuery(cond search.Condition, order queryir.OrderSpec) queryir.Select {
	return queryir.From(r.m.Ref).
		LeftJoin(r.m.Team, r.t.Ref.Alias).
		Where(search.Compose(cond, r.m, r.t)).
		OrderBySpec(order)
}

// Search returns the members matching cond in order. An absent input in
// cond places no constraint; a nil page returns every match.
func (r *Members) Search(ctx context.Context, cond search.Condition, order queryir.OrderSpec, page *queryir.PageRequest) ([]model.MemberTeamDto, error) {
	return executor.Fetch(ctx, r.exec, r.searchQuery(cond, order), r.searchRow, page)
}

// SearchPage is Search over one page plus the total number of matches.
func (r *Members) SearchPage(ctx context.Context, cond search.Condition, order queryir.OrderSpec, page queryir.PageRequest) (queryir.PageResult[model.MemberTeamDto], error) {
	return executor.FetchPage(ctx, r.exec, r.searchQuery(cond, order), r.searchRow, page)
}

// Find returns the member with id, from the session cache when present.
// It returns queryir.ErrNotFound when no such member exists.
func (r *Members) Find(ctx context.Context, id int64) (*model.Member, error) {
	if r.cache != nil {
		if v, ok := r.cache.Get(model.EntityMember, id); ok {
			if m, ok := v.(*model.Member); ok {
				return m, nil
			}
		}
	}
	return r.FindFresh(ctx, id)
}

// FindFresh loads the member with id from the target, bypassing and then
// refreshing the session cache. The cache is not refreshed when a member
// invalidation was delivered while the row was being read.
func (r *Members) FindFresh(ctx context.Context, id int64) (*model.Member, error) {
	var gen uint64
	if r.cache != nil {
		gen = r.cache.Generation(model.EntityMember)
	}
	sel := queryir.From(r.m.Ref).Where(r.m.ID.Eq(id))
	m, err := executor.FetchOne(ctx, r.exec, sel, model.MemberEntity(r.m))
	if err != nil {
		if errors.Is(err, queryir.ErrNotFound) && r.cache != nil {
			r.cache.Evict(model.EntityMember, id)
		}
		return nil, err
	}
	if r.cache != nil {
		r.cache.PutIfCurrent(model.EntityMember, id, &m, gen)
	}
	return &m, nil
}

// Update applies assignments to every member matching cond and returns
// the number of rows changed. A nil cond updates every member.
func (r *Members) Update(ctx context.Context, assignments []queryir.Assignment, cond queryir.Predicate) (int64, error) {
	return r.coord.Update(ctx, r.m.Ref, assignments, cond)
}

// Delete removes every member matching cond and returns the number of
// rows removed. A nil cond deletes every member.
func (r *Members) Delete(ctx context.Context, cond queryir.Predicate) (int64, error) {
	return r.coord.Delete(ctx, r.m.Ref, cond)
}

// Stats aggregates member ages. Sum, Max, and Min are zero when there are
// no members.
func (r *Members) Stats(ctx context.Context) (model.AgeStats, error) {
	return executor.FetchOne(ctx, r.exec, queryir.From(r.m.Ref), r.statsRow)
}

// TeamAverages returns the average member age of each team with members,
// ordered by team name.
func (r *Members) TeamAverages(ctx context.Context) ([]model.TeamAverage, error) {
	sel := queryir.From(r.m.Ref).
		Join(r.m.Team, r.t.Ref.Alias).
		GroupBy(r.t.Name).
		OrderBy(r.t.Name.Asc())
	return executor.Fetch(ctx, r.exec, sel, r.avgRow, nil)
}
