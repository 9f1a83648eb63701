package model

import (
	"fmt"

	"github.com/roach88/querydeck/internal/ir"
)

// Team is a group of members.
type Team struct {
	ID   int64
	Name *string
}

// Member belongs to at most one team. Team is populated only when the
// association was fetch-joined; TeamID is always loaded.
type Member struct {
	ID       int64
	UserName *string
	Age      int
	TeamID   *int64
	Team     *Team
}

// NewTeam returns an unsaved team.
func NewTeam(name string) *Team {
	return &Team{Name: &name}
}

// NewMember returns an unsaved member of team (which may be nil).
func NewMember(userName string, age int, team *Team) *Member {
	m := &Member{UserName: &userName, Age: age}
	m.SetTeam(team)
	return m
}

// SetTeam assigns the member to team, keeping TeamID in step.
func (m *Member) SetTeam(team *Team) {
	m.Team = team
	m.TeamID = nil
	if team != nil && team.ID != 0 {
		id := team.ID
		m.TeamID = &id
	}
}

// Name returns the user name or "" when it is null.
func (m Member) Name() string {
	if m.UserName == nil {
		return ""
	}
	return *m.UserName
}

// State returns the member's field values keyed by catalog field name.
func (m Member) State() ir.IRObject {
	return ir.IRObject{
		"id":       ir.IRInt(m.ID),
		"userName": optString(m.UserName),
		"age":      ir.IRInt(m.Age),
		"teamId":   optInt(m.TeamID),
	}
}

func (m Member) String() string {
	return fmt.Sprintf("Member(id=%d, userName=%s, age=%d)", m.ID, strOrNull(m.UserName), m.Age)
}

// State returns the team's field values keyed by catalog field name.
func (t Team) State() ir.IRObject {
	return ir.IRObject{
		"id":   ir.IRInt(t.ID),
		"name": optString(t.Name),
	}
}

func (t Team) String() string {
	return fmt.Sprintf("Team(id=%d, name=%s)", t.ID, strOrNull(t.Name))
}

func optString(s *string) ir.IRValue {
	if s == nil {
		return ir.IRNull{}
	}
	return ir.IRString(*s)
}

func optInt(n *int64) ir.IRValue {
	if n == nil {
		return ir.IRNull{}
	}
	return ir.IRInt(*n)
}

func strOrNull(s *string) string {
	if s == nil {
		return "null"
	}
	return *s
}
