package queryir

import (
	"slices"
)

// JoinKind selects inner or left outer join semantics.
type JoinKind string

const (
	InnerJoin JoinKind = "INNER"
	LeftJoin  JoinKind = "LEFT"
)

// Join brings another aliased entity into scope.
//
// A join either follows an association (Via set, On optional extra
// condition) or is a theta join on an explicit On predicate (Via nil).
type Join struct {
	Kind   JoinKind
	Target EntityRef
	Via    *Association
	On     Predicate
}

// Fetch reports whether the join eager-loads its association.
func (j Join) Fetch() bool {
	return j.Via != nil && j.Via.Fetch
}

// Select is a complete read query: condition, projection columns, grouping,
// ordering, and optional paging. Paging is applied after ordering.
//
// Select values are immutable; every builder method returns a copy, so a
// base query can be shared and extended freely.
//
// GroupFilter is the HAVING condition applied after Groups.
type Select struct {
	From        EntityRef
	Joins       []Join
	Columns     []Expr
	Filter      Predicate
	Groups      []Expr
	GroupFilter Predicate
	Order       []OrderKey
	Page        *PageRequest
}

// From starts a query rooted at entity.
func From(entity EntityRef) Select {
	return Select{From: entity}
}

// Join adds an inner join through an association. The target alias is the
// association's target entity bound to alias.
func (s Select) Join(via Association, alias string) Select {
	return s.addJoin(InnerJoin, via, alias, nil)
}

// LeftJoin adds a left outer join through an association, with optional
// extra join conditions.
func (s Select) LeftJoin(via Association, alias string, on ...Predicate) Select {
	return s.addJoin(LeftJoin, via, alias, on)
}

func (s Select) addJoin(kind JoinKind, via Association, alias string, on []Predicate) Select {
	j := Join{
		Kind:   kind,
		Target: EntityRef{Name: via.Target, Alias: alias},
		Via:    &via,
	}
	if len(on) > 0 {
		j.On = AndOf(on...)
	}
	s.Joins = append(slices.Clone(s.Joins), j)
	return s
}

// JoinOn adds a join on an explicit predicate without an association.
// With kind InnerJoin this is a theta join.
func (s Select) JoinOn(kind JoinKind, target EntityRef, on Predicate) Select {
	s.Joins = append(slices.Clone(s.Joins), Join{Kind: kind, Target: target, On: on})
	return s
}

// Where conjoins preds with the existing filter. Nil predicates are dropped,
// so optional conditions can be passed directly.
func (s Select) Where(preds ...Predicate) Select {
	s.Filter = AndOf(append([]Predicate{s.Filter}, preds...)...)
	if IsTrue(s.Filter) {
		s.Filter = nil
	}
	return s
}

// Select sets the projected columns.
func (s Select) Select(cols ...Expr) Select {
	s.Columns = slices.Clone(cols)
	return s
}

// GroupBy sets the grouping expressions.
func (s Select) GroupBy(exprs ...Expr) Select {
	s.Groups = slices.Clone(exprs)
	return s
}

// Having conjoins preds with the existing group filter.
func (s Select) Having(preds ...Predicate) Select {
	s.GroupFilter = AndOf(append([]Predicate{s.GroupFilter}, preds...)...)
	if IsTrue(s.GroupFilter) {
		s.GroupFilter = nil
	}
	return s
}

// OrderBy appends order keys. Keys are applied in the given order.
func (s Select) OrderBy(keys ...OrderKey) Select {
	s.Order = append(slices.Clone(s.Order), keys...)
	return s
}

// OrderBySpec appends the keys of a validated OrderSpec.
func (s Select) OrderBySpec(spec OrderSpec) Select {
	return s.OrderBy(spec.keys...)
}

// Paged sets the page window.
func (s Select) Paged(page PageRequest) Select {
	s.Page = &page
	return s
}

// Unpaged clears the page window.
func (s Select) Unpaged() Select {
	s.Page = nil
	return s
}

// Grouped reports whether the query aggregates rows by group.
func (s Select) Grouped() bool {
	return len(s.Groups) > 0
}

// Scope returns every entity reference visible to expressions in the query:
// the root followed by joins in declaration order.
func (s Select) Scope() []EntityRef {
	refs := make([]EntityRef, 0, 1+len(s.Joins))
	refs = append(refs, s.From)
	for _, j := range s.Joins {
		refs = append(refs, j.Target)
	}
	return refs
}

// FetchJoins returns joins that eager-load an association.
func (s Select) FetchJoins() []Join {
	var out []Join
	for _, j := range s.Joins {
		if j.Fetch() {
			out = append(out, j)
		}
	}
	return out
}
