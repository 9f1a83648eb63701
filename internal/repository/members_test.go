package repository

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querydeck/internal/bulk"
	"github.com/roach88/querydeck/internal/executor"
	"github.com/roach88/querydeck/internal/ir"
	"github.com/roach88/querydeck/internal/model"
	"github.com/roach88/querydeck/internal/queryir"
	"github.com/roach88/querydeck/internal/schema"
	"github.com/roach88/querydeck/internal/search"
	"github.com/roach88/querydeck/internal/session"
	"github.com/roach88/querydeck/internal/store"
)

var (
	qm = model.QMember
	qt = model.QTeam
)

type fixture struct {
	repo    *Members
	store   *store.Store
	cache   *session.Cache
	coord   *bulk.Coordinator
	signals *bulk.Recorder
}

// newFixture wires a repository over a fresh store seeded with teamA
// (member1 10, member2 20) and teamB (member3 30, member4 40).
func newFixture(t *testing.T) fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	teamA, teamB := model.NewTeam("teamA"), model.NewTeam("teamB")
	require.NoError(t, s.Seed(context.Background(),
		[]*model.Team{teamA, teamB},
		[]*model.Member{
			model.NewMember("member1", 10, teamA),
			model.NewMember("member2", 20, teamA),
			model.NewMember("member3", 30, teamB),
			model.NewMember("member4", 40, teamB),
		},
	))

	cache := session.New(session.WithLogger(logger))
	rec := &bulk.Recorder{}
	cat := schema.Default()
	exec := executor.New(cat, s, executor.WithLogger(logger))
	coord := bulk.New(cat, s, bulk.Invalidators(cache, s, rec), bulk.WithLogger(logger))

	repo, err := NewMembers(exec, coord, cache)
	require.NoError(t, err)
	return fixture{repo: repo, store: s, cache: cache, coord: coord, signals: rec}
}

func ptr[T any](v T) *T { return &v }

func byAge(t *testing.T) queryir.OrderSpec {
	t.Helper()
	order, err := queryir.NewOrderSpec(schema.Default(), qm.Age.Asc())
	require.NoError(t, err)
	return order
}

func names(dtos []model.MemberTeamDto) []string {
	out := make([]string, len(dtos))
	for i, d := range dtos {
		out[i] = d.UserName
	}
	return out
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		cond search.Condition
		want []string
	}{
		{name: "no inputs", cond: search.Condition{}, want: []string{"member1", "member2", "member3", "member4"}},
		{name: "user name", cond: search.Condition{UserName: ptr("member2")}, want: []string{"member2"}},
		{name: "team name", cond: search.Condition{TeamName: ptr("teamB")}, want: []string{"member3", "member4"}},
		{name: "age range", cond: search.Condition{AgeGoe: ptr(15), AgeLoe: ptr(30)}, want: []string{"member2", "member3"}},
		{
			name: "every input",
			cond: search.Condition{TeamName: ptr("teamB"), AgeGoe: ptr(35), AgeLoe: ptr(40)},
			want: []string{"member4"},
		},
		{name: "no match", cond: search.Condition{UserName: ptr("nobody")}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.repo.Search(ctx, tt.cond, byAge(t), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestSearch_ProjectsTeam(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.repo.Search(ctx, search.Condition{UserName: ptr("member3")}, queryir.OrderSpec{}, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)

	dto := got[0]
	assert.NotZero(t, dto.MemberID)
	assert.Equal(t, 30, dto.Age)
	assert.Equal(t, "teamB", dto.TeamName)
	require.NotNil(t, dto.TeamID)
}

func TestSearch_MemberWithoutTeam(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.InsertMember(ctx, model.NewMember("loner", 50, nil)))

	got, err := f.repo.Search(ctx, search.Condition{AgeGoe: ptr(50)}, byAge(t), nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "loner", got[0].UserName)
	assert.Nil(t, got[0].TeamID)
	assert.Empty(t, got[0].TeamName)
}

func TestSearch_Paged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.repo.Search(ctx, search.Condition{}, byAge(t), &queryir.PageRequest{Offset: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"member2", "member3"}, names(got))
}

func TestSearchPage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	page, err := f.repo.SearchPage(ctx, search.Condition{AgeGoe: ptr(15)}, byAge(t), queryir.PageRequest{Offset: 0, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"member2", "member3"}, names(page.Items))
	assert.Equal(t, int64(3), page.Total)
	assert.True(t, page.HasNext())

	last, err := f.repo.SearchPage(ctx, search.Condition{AgeGoe: ptr(15)}, byAge(t), queryir.PageRequest{Offset: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"member4"}, names(last.Items))
	assert.False(t, last.HasNext())
}

func TestSearchPage_InvalidPage(t *testing.T) {
	f := newFixture(t)

	_, err := f.repo.SearchPage(context.Background(), search.Condition{}, byAge(t), queryir.PageRequest{Offset: -1, Limit: 2})
	require.Error(t, err)
	assert.Equal(t, queryir.ErrCodeInvalidPage, queryir.Code(err))
}

func findID(t *testing.T, f fixture, name string) int64 {
	t.Helper()
	got, err := f.repo.Search(context.Background(), search.Condition{UserName: ptr(name)}, queryir.OrderSpec{}, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	return got[0].MemberID
}

func TestFind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := findID(t, f, "member1")

	m, err := f.repo.Find(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "member1", m.Name())
	assert.Equal(t, 10, m.Age)
	assert.Equal(t, 1, f.cache.Len())

	again, err := f.repo.Find(ctx, id)
	require.NoError(t, err)
	assert.Same(t, m, again, "second Find is served by the cache")

	_, err = f.repo.Find(ctx, 9999)
	assert.ErrorIs(t, err, queryir.ErrNotFound)
}

func TestFind_StaleUntilInvalidated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := findID(t, f, "member1")

	held, err := f.repo.Find(ctx, id)
	require.NoError(t, err)

	// A write that bypasses the coordinator is invisible to the cache.
	_, err = f.store.DB().ExecContext(ctx, "UPDATE member SET age = 11 WHERE id = ?", id)
	require.NoError(t, err)

	cached, err := f.repo.Find(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 10, cached.Age, "cached read is stale")

	fresh, err := f.repo.FindFresh(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 11, fresh.Age)

	// A bulk update through the coordinator evicts the instance before
	// returning, so the next Find reloads.
	n, err := f.repo.Update(ctx, []queryir.Assignment{qm.Age.Set(queryir.Add(qm.Age, 1))}, qm.Age.Lt(28))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	reloaded, err := f.repo.Find(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 12, reloaded.Age)

	// Instances the caller still holds are not refreshed.
	assert.Equal(t, 10, held.Age)
}

// pausingTarget holds its first query result until release is closed,
// after signalling read.
type pausingTarget struct {
	*store.Store
	read    chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *pausingTarget) SubmitQuery(ctx context.Context, q queryir.Select) ([][]ir.IRValue, error) {
	rows, err := p.Store.SubmitQuery(ctx, q)
	p.once.Do(func() {
		close(p.read)
		<-p.release
	})
	return rows, err
}

func TestFind_ReadRacingUpdateDoesNotRefillCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := findID(t, f, "member1")

	target := &pausingTarget{Store: f.store, read: make(chan struct{}), release: make(chan struct{})}
	exec := executor.New(schema.Default(), target, executor.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	repo, err := NewMembers(exec, f.coord, f.cache)
	require.NoError(t, err)

	type result struct {
		m   *model.Member
		err error
	}
	done := make(chan result, 1)
	go func() {
		m, err := repo.Find(ctx, id)
		done <- result{m, err}
	}()

	<-target.read
	n, err := f.repo.Update(ctx, []queryir.Assignment{qm.Age.Set(queryir.Add(qm.Age, 1))}, qm.Age.Lt(28))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	close(target.release)

	racing := <-done
	require.NoError(t, racing.err)
	assert.Equal(t, 10, racing.m.Age, "the racing read observed the row before the update")
	_, cached := f.cache.Get(model.EntityMember, id)
	assert.False(t, cached, "a read overtaken by an invalidation is not cached")

	after, err := repo.Find(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 11, after.Age)
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.repo.Update(ctx, []queryir.Assignment{qm.UserName.Set("비회원")}, qm.Age.Lt(28))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := f.repo.Search(ctx, search.Condition{UserName: ptr("비회원")}, byAge(t), nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	sigs := f.signals.Signals()
	require.Len(t, sigs, 1)
	assert.Equal(t, queryir.MutationUpdate, sigs[0].Kind)
	assert.Equal(t, []string{"userName"}, sigs[0].Fields)
	assert.Equal(t, int64(2), sigs[0].Affected)

	journal, err := f.store.Journal(ctx, model.EntityMember, 0)
	require.NoError(t, err)
	require.Len(t, journal, 1)
	assert.Equal(t, sigs[0].ID, journal[0].ID)
}

func TestUpdate_InvalidAssignment(t *testing.T) {
	f := newFixture(t)

	_, err := f.repo.Update(context.Background(), []queryir.Assignment{qm.Age.Set("old")}, nil)
	require.Error(t, err)
	assert.Equal(t, queryir.ErrCodeInvalidMutation, queryir.Code(err))
	assert.Empty(t, f.signals.Signals())
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := findID(t, f, "member4")
	_, err := f.repo.Find(ctx, id)
	require.NoError(t, err)

	n, err := f.repo.Delete(ctx, qm.Age.Gt(18))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Zero(t, f.cache.Len())

	_, err = f.repo.Find(ctx, id)
	assert.ErrorIs(t, err, queryir.ErrNotFound)

	left, err := f.repo.Search(ctx, search.Condition{}, byAge(t), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"member1"}, names(left))
}

func TestStats(t *testing.T) {
	f := newFixture(t)

	stats, err := f.repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.AgeStats{Count: 4, Sum: 100, Avg: 25, Max: 40, Min: 10}, stats)
}

func TestStats_NoMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.repo.Delete(ctx, nil)
	require.NoError(t, err)

	stats, err := f.repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.AgeStats{}, stats)
}

func TestTeamAverages(t *testing.T) {
	f := newFixture(t)

	got, err := f.repo.TeamAverages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.TeamAverage{
		{TeamName: "teamA", AvgAge: 15},
		{TeamName: "teamB", AvgAge: 35},
	}, got)
}
