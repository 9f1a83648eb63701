package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querydeck/internal/ir"
	"github.com/roach88/querydeck/internal/model"
	"github.com/roach88/querydeck/internal/queryir"
)

var (
	qm = model.QMember
	qt = model.QTeam
)

func TestSubmitQuery_FilterAndOrder(t *testing.T) {
	s := createTestStore(t)
	seedMembers(t, s)

	q := queryir.From(qm.Ref).
		Select(qm.UserName, qm.Age).
		Where(qm.Age.Goe(20)).
		OrderBy(qm.Age.Desc())

	rows, err := s.SubmitQuery(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, [][]ir.IRValue{
		{ir.IRString("member4"), ir.IRInt(40)},
		{ir.IRString("member3"), ir.IRInt(30)},
		{ir.IRString("member2"), ir.IRInt(20)},
	}, rows)
}

func TestSubmitQuery_NullsLast(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedMembers(t, s)
	require.NoError(t, s.InsertMember(ctx, &model.Member{Age: 100}))
	require.NoError(t, s.InsertMember(ctx, model.NewMember("member5", 100, nil)))
	require.NoError(t, s.InsertMember(ctx, model.NewMember("member6", 100, nil)))

	q := queryir.From(qm.Ref).
		Select(qm.UserName).
		Where(qm.Age.Eq(100)).
		OrderBy(qm.Age.Desc(), qm.UserName.Asc().NullsLast())

	rows, err := s.SubmitQuery(ctx, q)
	require.NoError(t, err)

	assert.Equal(t, [][]ir.IRValue{
		{ir.IRString("member5")},
		{ir.IRString("member6")},
		{ir.IRNull{}},
	}, rows)
}

func TestSubmitQuery_Paged(t *testing.T) {
	s := createTestStore(t)
	seedMembers(t, s)

	page, err := queryir.NewPageRequest(1, 2)
	require.NoError(t, err)
	q := queryir.From(qm.Ref).
		Select(qm.UserName).
		OrderBy(qm.UserName.Desc()).
		Paged(page)

	rows, err := s.SubmitQuery(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, [][]ir.IRValue{{ir.IRString("member3")}, {ir.IRString("member2")}}, rows)
}

func TestSubmitQuery_EmptyResultIsNotNil(t *testing.T) {
	s := createTestStore(t)

	rows, err := s.SubmitQuery(context.Background(), queryir.From(qm.Ref).Select(qm.ID))
	require.NoError(t, err)

	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestSubmitQuery_Aggregates(t *testing.T) {
	s := createTestStore(t)
	seedMembers(t, s)

	q := queryir.From(qm.Ref).Select(
		queryir.CountAll(),
		queryir.Sum(qm.Age),
		queryir.Avg(qm.Age),
		queryir.Max(qm.Age),
		queryir.Min(qm.Age),
	)

	rows, err := s.SubmitQuery(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, [][]ir.IRValue{
		{ir.IRInt(4), ir.IRInt(100), ir.IRFloat(25), ir.IRInt(40), ir.IRInt(10)},
	}, rows)
}

func TestSubmitQuery_GroupByTeam(t *testing.T) {
	s := createTestStore(t)
	seedMembers(t, s)

	q := queryir.From(qm.Ref).
		Join(qm.Team, qt.Ref.Alias).
		Select(qt.Name, queryir.Avg(qm.Age)).
		GroupBy(qt.Name)

	rows, err := s.SubmitQuery(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, [][]ir.IRValue{
		{ir.IRString("teamA"), ir.IRFloat(15)},
		{ir.IRString("teamB"), ir.IRFloat(35)},
	}, rows)
}

func TestSubmitQuery_LeftJoinOnFilter(t *testing.T) {
	s := createTestStore(t)
	seedMembers(t, s)

	q := queryir.From(qm.Ref).
		LeftJoin(qm.Team, qt.Ref.Alias, qt.Name.Eq("teamA")).
		Select(qm.UserName, qt.Name)

	rows, err := s.SubmitQuery(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, [][]ir.IRValue{
		{ir.IRString("member1"), ir.IRString("teamA")},
		{ir.IRString("member2"), ir.IRString("teamA")},
		{ir.IRString("member3"), ir.IRNull{}},
		{ir.IRString("member4"), ir.IRNull{}},
	}, rows)
}

func TestSubmitQuery_ThetaJoin(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedMembers(t, s)
	require.NoError(t, s.InsertMember(ctx, model.NewMember("teamA", 0, nil)))
	require.NoError(t, s.InsertMember(ctx, model.NewMember("teamB", 0, nil)))

	q := queryir.From(qm.Ref).
		JoinOn(queryir.InnerJoin, qt.Ref, qm.UserName.Eq(qt.Name)).
		Select(qm.UserName)

	rows, err := s.SubmitQuery(ctx, q)
	require.NoError(t, err)

	assert.Equal(t, [][]ir.IRValue{{ir.IRString("teamA")}, {ir.IRString("teamB")}}, rows)
}

func TestSubmitQuery_Subqueries(t *testing.T) {
	s := createTestStore(t)
	seedMembers(t, s)
	ms := model.NewMemberPath("ms")

	oldest := queryir.From(qm.Ref).
		Select(qm.Age).
		Where(qm.Age.Eq(queryir.Sub(queryir.From(ms.Ref).Select(queryir.Max(ms.Age)))))
	rows, err := s.SubmitQuery(context.Background(), oldest)
	require.NoError(t, err)
	assert.Equal(t, [][]ir.IRValue{{ir.IRInt(40)}}, rows)

	older := queryir.From(qm.Ref).
		Select(qm.Age).
		Where(qm.Age.InQuery(queryir.From(ms.Ref).Select(ms.Age).Where(ms.Age.Gt(10))))
	rows, err = s.SubmitQuery(context.Background(), older)
	require.NoError(t, err)
	assert.Equal(t, [][]ir.IRValue{{ir.IRInt(20)}, {ir.IRInt(30)}, {ir.IRInt(40)}}, rows)
}

func TestSubmitQuery_CaseAndContains(t *testing.T) {
	s := createTestStore(t)
	seedMembers(t, s)

	label := queryir.CaseWhen(qm.Age.Eq(10), "열살").When(qm.Age.Eq(20), "스무살").Else("기타")
	q := queryir.From(qm.Ref).
		Select(label).
		Where(queryir.OrOf(qm.UserName.Contains("1"), qm.UserName.Contains("4")))

	rows, err := s.SubmitQuery(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, [][]ir.IRValue{{ir.IRString("열살")}, {ir.IRString("기타")}}, rows)
}

func TestSubmitCount(t *testing.T) {
	s := createTestStore(t)
	seedMembers(t, s)
	ctx := context.Background()

	n, err := s.SubmitCount(ctx, queryir.From(qm.Ref).Select(qm.ID).Where(qm.Age.Gt(15)))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	groups, err := s.SubmitCount(ctx, queryir.From(qm.Ref).
		Join(qm.Team, qt.Ref.Alias).
		Select(qt.Name, queryir.Avg(qm.Age)).
		GroupBy(qt.Name))
	require.NoError(t, err)
	assert.Equal(t, int64(2), groups)
}

func TestSubmitQuery_CompileError(t *testing.T) {
	s := createTestStore(t)

	bad := queryir.From(queryir.EntityRef{Name: "Club", Alias: "c"}).Select(qm.ID)
	_, err := s.SubmitQuery(context.Background(), bad)
	assert.Error(t, err)
}

func TestSqlValueToIR(t *testing.T) {
	tests := []struct {
		in   any
		want ir.IRValue
	}{
		{nil, ir.IRNull{}},
		{int64(7), ir.IRInt(7)},
		{2.5, ir.IRFloat(2.5)},
		{"member1", ir.IRString("member1")},
		{[]byte("teamA"), ir.IRString("teamA")},
		{true, ir.IRBool(true)},
	}
	for _, tt := range tests {
		got, err := sqlValueToIR(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := sqlValueToIR(struct{}{})
	assert.Error(t, err)
}
