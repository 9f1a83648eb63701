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

func TestInsertMember_SetsIDs(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	team := model.NewTeam("teamA")
	require.NoError(t, s.InsertTeam(ctx, team))
	m := model.NewMember("member1", 10, team)
	require.NoError(t, s.InsertMember(ctx, m))

	assert.NotZero(t, team.ID)
	assert.NotZero(t, m.ID)
	require.NotNil(t, m.TeamID)
	assert.Equal(t, team.ID, *m.TeamID)
}

func TestInsertMember_UnsavedTeam(t *testing.T) {
	s := createTestStore(t)

	err := s.InsertMember(context.Background(), model.NewMember("member1", 10, model.NewTeam("teamA")))
	assert.Error(t, err)
}

func TestSeed_LinksMembersToTeams(t *testing.T) {
	s := createTestStore(t)
	teams, members := seedMembers(t, s)

	rows, err := s.SubmitQuery(context.Background(), queryir.From(qm.Ref).Select(qm.TeamID))
	require.NoError(t, err)

	require.Len(t, rows, len(members))
	assert.Equal(t, ir.IRInt(teams[0].ID), rows[0][0])
	assert.Equal(t, ir.IRInt(teams[1].ID), rows[3][0])
}

func TestSubmitMutation_Update(t *testing.T) {
	s := createTestStore(t)
	seedMembers(t, s)
	ctx := context.Background()

	n, err := s.SubmitMutation(ctx, queryir.UpdateOf(qm.Ref, qm.Age.Lt(28), qm.UserName.Set("비회원")))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rows, err := s.SubmitQuery(ctx, queryir.From(qm.Ref).Select(qm.UserName))
	require.NoError(t, err)
	assert.Equal(t, [][]ir.IRValue{
		{ir.IRString("비회원")},
		{ir.IRString("비회원")},
		{ir.IRString("member3")},
		{ir.IRString("member4")},
	}, rows)
}

func TestSubmitMutation_ArithmeticUpdate(t *testing.T) {
	s := createTestStore(t)
	seedMembers(t, s)
	ctx := context.Background()

	n, err := s.SubmitMutation(ctx, queryir.UpdateOf(qm.Ref, nil, qm.Age.Set(queryir.Add(qm.Age, 1))))
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	rows, err := s.SubmitQuery(ctx, queryir.From(qm.Ref).Select(queryir.Sum(qm.Age)))
	require.NoError(t, err)
	assert.Equal(t, [][]ir.IRValue{{ir.IRInt(104)}}, rows)
}

func TestSubmitMutation_Delete(t *testing.T) {
	s := createTestStore(t)
	seedMembers(t, s)
	ctx := context.Background()

	n, err := s.SubmitMutation(ctx, queryir.DeleteOf(qm.Ref, qm.Age.Gt(18)))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	count, err := s.SubmitCount(ctx, queryir.From(qm.Ref).Select(qm.ID))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSubmitMutation_DeleteWithSubquery(t *testing.T) {
	s := createTestStore(t)
	seedMembers(t, s)
	ms := model.NewMemberPath("ms")

	below := queryir.DeleteOf(qm.Ref, qm.Age.Lt(queryir.Sub(queryir.From(ms.Ref).Select(queryir.Avg(ms.Age)))))
	n, err := s.SubmitMutation(context.Background(), below)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSubmitMutation_ConstraintViolation(t *testing.T) {
	s := createTestStore(t)
	seedMembers(t, s)

	_, err := s.SubmitMutation(context.Background(), queryir.UpdateOf(qm.Ref, nil, qm.TeamID.Set(999)))
	assert.Error(t, err, "foreign key violation must surface")
}
