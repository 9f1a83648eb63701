package queryir

import (
	"github.com/roach88/querydeck/internal/ir"
	"github.com/roach88/querydeck/internal/schema"
)

var (
	memberRef = EntityRef{Name: "Member", Alias: "m"}
	teamRef   = EntityRef{Name: "Team", Alias: "t"}

	mID       = Field{Entity: "Member", Alias: "m", Name: "id", Kind: ir.KindInt}
	mUserName = Field{Entity: "Member", Alias: "m", Name: "userName", Kind: ir.KindString}
	mAge      = Field{Entity: "Member", Alias: "m", Name: "age", Kind: ir.KindInt}
	mTeamID   = Field{Entity: "Member", Alias: "m", Name: "teamId", Kind: ir.KindInt}
	mTeam     = Association{Entity: "Member", Alias: "m", Name: "team", Target: "Team"}

	tID   = Field{Entity: "Team", Alias: "t", Name: "id", Kind: ir.KindInt}
	tName = Field{Entity: "Team", Alias: "t", Name: "name", Kind: ir.KindString}
)

func catalog() *schema.Catalog {
	return schema.Default()
}

// memberSub aliases Member for subqueries.
func memberSub() (EntityRef, Field) {
	ref := EntityRef{Name: "Member", Alias: "ms"}
	return ref, Field{Entity: "Member", Alias: "ms", Name: "age", Kind: ir.KindInt}
}
