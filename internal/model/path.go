package model

import (
	"github.com/roach88/querydeck/internal/ir"
	"github.com/roach88/querydeck/internal/queryir"
)

// Entity names as declared in the catalog.
const (
	EntityMember = "Member"
	EntityTeam   = "Team"
)

// MemberPath holds the typed field references of Member under one alias.
type MemberPath struct {
	Ref      queryir.EntityRef
	ID       queryir.Field
	UserName queryir.Field
	Age      queryir.Field
	TeamID   queryir.Field
	Team     queryir.Association
}

// NewMemberPath binds Member to alias.
func NewMemberPath(alias string) MemberPath {
	field := func(name string, kind ir.Kind) queryir.Field {
		return queryir.Field{Entity: EntityMember, Alias: alias, Name: name, Kind: kind}
	}
	return MemberPath{
		Ref:      queryir.EntityRef{Name: EntityMember, Alias: alias},
		ID:       field("id", ir.KindInt),
		UserName: field("userName", ir.KindString),
		Age:      field("age", ir.KindInt),
		TeamID:   field("teamId", ir.KindInt),
		Team:     queryir.Association{Entity: EntityMember, Alias: alias, Name: "team", Target: EntityTeam},
	}
}

// Columns returns the entity columns in declaration order.
func (p MemberPath) Columns() []queryir.Expr {
	return []queryir.Expr{p.ID, p.UserName, p.Age, p.TeamID}
}

// TeamPath holds the typed field references of Team under one alias.
type TeamPath struct {
	Ref  queryir.EntityRef
	ID   queryir.Field
	Name queryir.Field
}

// NewTeamPath binds Team to alias.
func NewTeamPath(alias string) TeamPath {
	return TeamPath{
		Ref:  queryir.EntityRef{Name: EntityTeam, Alias: alias},
		ID:   queryir.Field{Entity: EntityTeam, Alias: alias, Name: "id", Kind: ir.KindInt},
		Name: queryir.Field{Entity: EntityTeam, Alias: alias, Name: "name", Kind: ir.KindString},
	}
}

// Columns returns the entity columns in declaration order.
func (p TeamPath) Columns() []queryir.Expr {
	return []queryir.Expr{p.ID, p.Name}
}

// Default aliases.
var (
	QMember = NewMemberPath("m")
	QTeam   = NewTeamPath("t")
)
