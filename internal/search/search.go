// Package search turns optional search inputs into a filter predicate.
package search

import (
	"github.com/roach88/querydeck/internal/model"
	"github.com/roach88/querydeck/internal/queryir"
)

// Condition is a set of optional member search inputs. A nil field places
// no constraint on the result; it never excludes rows.
type Condition struct {
	UserName *string `json:"user_name,omitempty" yaml:"user_name,omitempty"`
	TeamName *string `json:"team_name,omitempty" yaml:"team_name,omitempty"`
	AgeGoe   *int    `json:"age_goe,omitempty" yaml:"age_goe,omitempty"`
	AgeLoe   *int    `json:"age_loe,omitempty" yaml:"age_loe,omitempty"`
}

// Empty reports whether no input is set.
func (c Condition) Empty() bool {
	return c.UserName == nil && c.TeamName == nil && c.AgeGoe == nil && c.AgeLoe == nil
}

// Compose builds the conjunction of the leaves for the present inputs,
// using m and t as the member and team paths.
//
// Each present input contributes exactly one leaf:
//
//	UserName -> m.userName = ?
//	TeamName -> t.name = ?
//	AgeGoe   -> m.age >= ?
//	AgeLoe   -> m.age <= ?
//
// A single leaf is returned as is. With no inputs the result is an empty
// And, which filters nothing.
//
// Compose is a pure function of its input.
func Compose(c Condition, m model.MemberPath, t model.TeamPath) queryir.Predicate {
	leaves := []queryir.Predicate{
		userNameEq(m, c.UserName),
		teamNameEq(t, c.TeamName),
		ageGoe(m, c.AgeGoe),
		ageLoe(m, c.AgeLoe),
	}
	return queryir.AndOf(leaves...)
}

// ComposeDefault is Compose with model.QMember and model.QTeam.
func ComposeDefault(c Condition) queryir.Predicate {
	return Compose(c, model.QMember, model.QTeam)
}

// NeedsTeamJoin reports whether p references the team alias of t, so the
// query must join the team association.
func NeedsTeamJoin(p queryir.Predicate, t model.TeamPath) bool {
	return queryir.References(p, t.Ref.Alias)
}

func userNameEq(m model.MemberPath, v *string) queryir.Predicate {
	if v == nil {
		return nil
	}
	return m.UserName.Eq(*v)
}

func teamNameEq(t model.TeamPath, v *string) queryir.Predicate {
	if v == nil {
		return nil
	}
	return t.Name.Eq(*v)
}

func ageGoe(m model.MemberPath, v *int) queryir.Predicate {
	if v == nil {
		return nil
	}
	return m.Age.Goe(*v)
}

func ageLoe(m model.MemberPath, v *int) queryir.Predicate {
	if v == nil {
		return nil
	}
	return m.Age.Loe(*v)
}
