package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querydeck/internal/model"
	"github.com/roach88/querydeck/internal/queryir"
	"github.com/roach88/querydeck/internal/schema"
)

func str(s string) *string { return &s }
func num(n int) *int       { return &n }

var (
	qm = model.QMember
	qt = model.QTeam
)

func TestCompose_SingleInputYieldsSingleLeaf(t *testing.T) {
	tests := []struct {
		name string
		cond Condition
		want queryir.Predicate
	}{
		{"user name", Condition{UserName: str("member1")}, qm.UserName.Eq("member1")},
		{"team name", Condition{TeamName: str("teamB")}, qt.Name.Eq("teamB")},
		{"age lower bound", Condition{AgeGoe: num(35)}, qm.Age.Goe(35)},
		{"age upper bound", Condition{AgeLoe: num(40)}, qm.Age.Loe(40)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComposeDefault(tt.cond))
		})
	}
}

func TestCompose_AllInputsAbsentFiltersNothing(t *testing.T) {
	var cond Condition
	require.True(t, cond.Empty())

	p := ComposeDefault(cond)

	assert.True(t, queryir.IsTrue(p), "empty condition must mean no filtering, got %#v", p)
	assert.False(t, NeedsTeamJoin(p, qt))
}

func TestCompose_ConjoinsPresentInputsInOrder(t *testing.T) {
	cond := Condition{TeamName: str("teamB"), AgeGoe: num(35), AgeLoe: num(40)}

	p := ComposeDefault(cond)

	assert.Equal(t, queryir.And{Predicates: []queryir.Predicate{
		qt.Name.Eq("teamB"),
		qm.Age.Goe(35),
		qm.Age.Loe(40),
	}}, p)
	assert.False(t, cond.Empty())
}

func TestCompose_NeverContainsNilOperands(t *testing.T) {
	// Every subset of the four inputs.
	for mask := 0; mask < 16; mask++ {
		var cond Condition
		if mask&1 != 0 {
			cond.UserName = str("member1")
		}
		if mask&2 != 0 {
			cond.TeamName = str("teamA")
		}
		if mask&4 != 0 {
			cond.AgeGoe = num(10)
		}
		if mask&8 != 0 {
			cond.AgeLoe = num(40)
		}

		p := ComposeDefault(cond)

		sel := queryir.From(qm.Ref).LeftJoin(qm.Team, qt.Ref.Alias).Select(qm.ID).Where(p)
		assert.NoError(t, queryir.Validate(schema.Default(), sel), "mask %04b", mask)
		if and, ok := p.(queryir.And); ok {
			for _, operand := range and.Predicates {
				assert.NotNil(t, operand, "mask %04b", mask)
			}
		}
	}
}

func TestCompose_CustomAliases(t *testing.T) {
	m, tm := model.NewMemberPath("mm"), model.NewTeamPath("tt")

	p := Compose(Condition{TeamName: str("teamA")}, m, tm)

	assert.Equal(t, tm.Name.Eq("teamA"), p)
	assert.True(t, NeedsTeamJoin(p, tm))
	assert.False(t, NeedsTeamJoin(p, qt))
}
