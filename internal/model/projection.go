package model

import (
	"github.com/roach88/querydeck/internal/queryir"
)

// MemberEntity projects whole members under p's alias. A fetch join on
// the team association populates Member.Team.
func MemberEntity(p MemberPath) queryir.Projection[Member] {
	proj := queryir.EntityOf(p.Columns(), func(t queryir.Tuple) (Member, error) {
		age, _ := t.Int(p.Age)
		id, _ := t.Int(p.ID)
		return Member{
			ID:       id,
			UserName: t.TextPtr(p.UserName),
			Age:      int(age),
			TeamID:   t.IntPtr(p.TeamID),
		}, nil
	})
	return proj.WithFetch(p.Team.Name, func(target queryir.EntityRef) ([]queryir.Expr, func(*Member, queryir.Tuple) error) {
		team := NewTeamPath(target.Alias)
		return team.Columns(), func(m *Member, t queryir.Tuple) error {
			id, ok := t.Int(team.ID)
			if !ok {
				return nil
			}
			m.Team = &Team{ID: id, Name: t.TextPtr(team.Name)}
			return nil
		}
	})
}

// TeamEntity projects whole teams under p's alias.
func TeamEntity(p TeamPath) queryir.Projection[Team] {
	return queryir.EntityOf(p.Columns(), func(t queryir.Tuple) (Team, error) {
		id, _ := t.Int(p.ID)
		return Team{ID: id, Name: t.TextPtr(p.Name)}, nil
	})
}
