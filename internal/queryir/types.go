package queryir

import (
	"github.com/roach88/querydeck/internal/ir"
)

// Expr is a value-producing expression: a column, a literal, or a value
// derived from them.
//
// This is a sealed interface - only types in this package implement it.
// The marker method enables exhaustive type switches in backend compilers.
type Expr interface {
	exprNode() // Marker method - seals interface to this package
}

// Predicate is a boolean filter condition (the ConditionExpression).
//
// This is a sealed interface - only types in this package implement it.
// Predicates are immutable once built; every combinator returns a new value.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// EntityRef names an entity and the alias it is bound to in a query.
// The same entity may appear under several aliases (subqueries, self joins).
type EntityRef struct {
	Name  string // Catalog entity name (e.g., "Member")
	Alias string // Query alias (e.g., "m")
}

// Field references a typed column of an aliased entity.
//
//	Field{Entity: "Member", Alias: "m", Name: "age", Kind: ir.KindInt}
//
// compiles to m.age's mapped column.
type Field struct {
	Entity string
	Alias  string
	Name   string
	Kind   ir.Kind
}

func (Field) exprNode() {}

// Ref returns the entity reference the field belongs to.
func (f Field) Ref() EntityRef {
	return EntityRef{Name: f.Entity, Alias: f.Alias}
}

// String renders the field as alias.name.
func (f Field) String() string {
	return f.Alias + "." + f.Name
}

// Association references a to-one association of an aliased entity.
// Fetch is the eager-load annotation: a join through a fetched association
// asks the projection to populate the associated record.
type Association struct {
	Entity string
	Alias  string
	Name   string
	Target string
	Fetch  bool
}

// Fetched returns a copy of the association annotated for eager loading.
func (a Association) Fetched() Association {
	a.Fetch = true
	return a
}

// Const is a literal value.
type Const struct {
	Value ir.IRValue
}

func (Const) exprNode() {}

// invalidLiteral carries a Go value that could not be converted to an
// ir.IRValue. Validation rejects it before any I/O.
type invalidLiteral struct {
	err error
}

func (invalidLiteral) exprNode() {}

// When is one branch of a searched CASE expression.
type When struct {
	Cond Predicate
	Then Expr
}

// Case is a searched CASE expression:
//
//	CASE WHEN <cond> THEN <then> ... ELSE <else> END
//
// Else may be nil, in which case unmatched rows produce NULL.
type Case struct {
	Whens []When
	Else  Expr
}

func (Case) exprNode() {}

// AggregateFunc names a SQL aggregate.
type AggregateFunc string

const (
	AggCount AggregateFunc = "COUNT"
	AggSum   AggregateFunc = "SUM"
	AggAvg   AggregateFunc = "AVG"
	AggMax   AggregateFunc = "MAX"
	AggMin   AggregateFunc = "MIN"
)

// Aggregate applies an aggregate function. A nil Arg with AggCount counts
// rows (COUNT(*)).
type Aggregate struct {
	Func AggregateFunc
	Arg  Expr
}

func (Aggregate) exprNode() {}

// ArithOp is a binary arithmetic operator.
type ArithOp string

const (
	OpAdd ArithOp = "+"
	OpSub ArithOp = "-"
	OpMul ArithOp = "*"
)

// Arith is a binary arithmetic expression (e.g., age + 1 in a bulk update).
type Arith struct {
	Left  Expr
	Op    ArithOp
	Right Expr
}

func (Arith) exprNode() {}

// Subquery is a scalar subquery. Query must project exactly one column.
type Subquery struct {
	Query Select
}

func (Subquery) exprNode() {}

// Alias names an expression for field-assignment projections.
type Alias struct {
	Expr Expr
	Name string
}

func (Alias) exprNode() {}

// CompareOp is a binary comparison operator.
type CompareOp string

const (
	OpEq CompareOp = "="
	OpNe CompareOp = "<>"
	OpLt CompareOp = "<"
	OpLe CompareOp = "<="
	OpGt CompareOp = ">"
	OpGe CompareOp = ">="
)

// Equals represents left = right. Right is usually a Const; a Field on the
// right expresses a theta join condition, a Subquery a correlated lookup.
type Equals struct {
	Left  Expr
	Right Expr
}

func (Equals) predicateNode() {}

// Compare represents left <op> right.
type Compare struct {
	Left  Expr
	Op    CompareOp
	Right Expr
}

func (Compare) predicateNode() {}

// Between represents expr BETWEEN low AND high (inclusive).
type Between struct {
	Expr Expr
	Low  Expr
	High Expr
}

func (Between) predicateNode() {}

// Contains matches string values containing Substring (case-sensitive).
type Contains struct {
	Expr      Expr
	Substring string
}

func (Contains) predicateNode() {}

// In represents expr IN (values...) or expr IN (subquery).
// Exactly one of Values or Sub is used; Sub takes precedence.
type In struct {
	Expr   Expr
	Values []Expr
	Sub    *Select
}

func (In) predicateNode() {}

// IsNull represents expr IS NULL, or IS NOT NULL when Negate is set.
type IsNull struct {
	Expr   Expr
	Negate bool
}

func (IsNull) predicateNode() {}

// And represents a conjunction of predicates.
// An empty And is vacuously true: it filters nothing.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or represents a disjunction of predicates.
// An empty Or is false; validation rejects it since no caller means that.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// IsTrue reports whether p is a condition that filters nothing: nil, or an
// And whose operands are all trivially true.
func IsTrue(p Predicate) bool {
	switch pred := p.(type) {
	case nil:
		return true
	case And:
		for _, sub := range pred.Predicates {
			if !IsTrue(sub) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
