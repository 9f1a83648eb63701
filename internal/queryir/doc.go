// Package queryir provides the abstract query representation used by
// querydeck: typed field references, filter conditions, projections,
// ordering, paging, and set-based mutations.
//
// ARCHITECTURE:
//
// Callers compose queries from typed paths; the executor validates them
// against the schema catalog and hands them to a backend compiler:
//
//	[field paths] → [queryir.Select / Mutation] → [querysql] → [SQLite]
//
// Nothing in this package performs I/O. Every composition error (unknown
// field, non-sortable order key, constructor arity mismatch, bad page
// window) is detected here, before the execution target is contacted.
//
// CONDITIONS:
//
// Predicates are immutable trees of Equals, Compare, Between, Contains,
// In, IsNull, And, and Or. AndOf and OrOf drop nil operands so optional
// search criteria compose without special cases:
//
//	cond := queryir.AndOf(
//	    nameOrNil,   // nil when the caller gave no name
//	    member.Age.Goe(20),
//	)
//
// An And with no operands filters nothing. Validation rejects nil
// operands that slip into And/Or built by hand.
//
// Predicates have a canonical ir encoding (EncodePredicate). Fingerprint
// hashes it so that cache invalidation signals identify the condition
// they were issued for.
//
// ORDERING:
//
// OrderSpec keys apply in declaration order with optional null placement.
// Backends must append a deterministic tiebreaker (the root entity key)
// so equal sort values never produce unstable pages.
//
// PROJECTIONS:
//
// A Projection shapes rows into values: whole entities (with optional
// fetch-joined associations), tuples, constructor calls, field
// assignment, or a single scalar. Constructor projections are strict and
// fail on arity or kind mismatch; field projections skip what does not
// match.
//
// IN-MEMORY EVALUATION:
//
// Eval applies a single-entity predicate to cached state using SQL
// three-valued logic, so identity-map caches can evict exactly the rows a
// bulk mutation touched.
package queryir
