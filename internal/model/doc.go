// Package model declares the member/team domain: entity records, typed
// field paths used to build queries, and the DTO records query results are
// projected into.
//
// Paths mirror the catalog in internal/schema. QMember and QTeam are the
// default aliases; NewMemberPath binds the entity to another alias for
// subqueries and self joins:
//
//	ms := model.NewMemberPath("ms")
//	oldest := queryir.From(ms.Ref).Select(queryir.Max(ms.Age))
package model
