package queryir

import (
	"slices"
)

// MutationKind distinguishes set-based updates from deletes.
type MutationKind string

const (
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
)

// Assignment sets one field of every matched row.
type Assignment struct {
	Field Field
	Value Expr
}

// Mutation is a set-based update or delete of one entity.
//
// The filter may reference only the mutated entity; subqueries bring their
// own scope. A nil filter matches every row.
type Mutation struct {
	Kind        MutationKind
	Entity      EntityRef
	Assignments []Assignment
	Filter      Predicate
}

// UpdateOf builds an update of entity rows matching filter.
func UpdateOf(entity EntityRef, filter Predicate, assignments ...Assignment) Mutation {
	return Mutation{
		Kind:        MutationUpdate,
		Entity:      entity,
		Assignments: slices.Clone(assignments),
		Filter:      filter,
	}
}

// DeleteOf builds a delete of entity rows matching filter.
func DeleteOf(entity EntityRef, filter Predicate) Mutation {
	return Mutation{Kind: MutationDelete, Entity: entity, Filter: filter}
}

// AssignedFields returns the names of assigned fields in order.
func (m Mutation) AssignedFields() []string {
	names := make([]string, len(m.Assignments))
	for i, a := range m.Assignments {
		names[i] = a.Field.Name
	}
	return names
}
