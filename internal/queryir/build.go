package queryir

import (
	"github.com/roach88/querydeck/internal/ir"
)

// Lit wraps a Go value as a literal expression.
// Values that can not be represented (channels, structs) produce an
// expression that validation rejects with INVALID_CONDITION.
func Lit(v any) Expr {
	val, err := ir.FromGo(v)
	if err != nil {
		return invalidLiteral{err: err}
	}
	return Const{Value: val}
}

// operand accepts either an Expr or a plain Go value.
func operand(v any) Expr {
	if e, ok := v.(Expr); ok {
		return e
	}
	return Lit(v)
}

// Cmp builds left <op> right. Right may be an Expr or a Go value.
func Cmp(left Expr, op CompareOp, right any) Predicate {
	if op == OpEq {
		return Equals{Left: left, Right: operand(right)}
	}
	return Compare{Left: left, Op: op, Right: operand(right)}
}

// Eq is Cmp(left, OpEq, right).
func Eq(left Expr, right any) Predicate { return Cmp(left, OpEq, right) }

// Eq matches rows whose field equals v. v may be a Go value or an Expr
// (another field for theta joins, a Subquery).
func (f Field) Eq(v any) Predicate { return Cmp(f, OpEq, v) }

// Ne matches rows whose field differs from v. Null fields never match.
func (f Field) Ne(v any) Predicate { return Cmp(f, OpNe, v) }

func (f Field) Lt(v any) Predicate  { return Cmp(f, OpLt, v) }
func (f Field) Loe(v any) Predicate { return Cmp(f, OpLe, v) }
func (f Field) Gt(v any) Predicate  { return Cmp(f, OpGt, v) }
func (f Field) Goe(v any) Predicate { return Cmp(f, OpGe, v) }

// Between matches low <= field <= high.
func (f Field) Between(low, high any) Predicate {
	return Between{Expr: f, Low: operand(low), High: operand(high)}
}

// Contains matches string fields containing sub.
func (f Field) Contains(sub string) Predicate {
	return Contains{Expr: f, Substring: sub}
}

// In matches fields equal to any of vals.
func (f Field) In(vals ...any) Predicate {
	exprs := make([]Expr, len(vals))
	for i, v := range vals {
		exprs[i] = operand(v)
	}
	return In{Expr: f, Values: exprs}
}

// InQuery matches fields equal to any value of a single-column subquery.
func (f Field) InQuery(sub Select) Predicate {
	return In{Expr: f, Sub: &sub}
}

func (f Field) IsNull() Predicate    { return IsNull{Expr: f} }
func (f Field) IsNotNull() Predicate { return IsNull{Expr: f, Negate: true} }

func (f Field) Asc() OrderKey  { return Asc(f) }
func (f Field) Desc() OrderKey { return Desc(f) }

// As names the field for field-assignment projections.
func (f Field) As(name string) Expr { return As(f, name) }

// Set assigns v to the field in a bulk update. v may be an Expr such as
// Add(field, 1).
func (f Field) Set(v any) Assignment {
	return Assignment{Field: f, Value: operand(v)}
}

// AndOf conjoins preds. Nil operands are dropped and nested conjunctions
// flattened. A single remaining operand is returned unwrapped; none yields
// an empty And, which filters nothing.
func AndOf(preds ...Predicate) Predicate {
	out := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		switch pred := p.(type) {
		case nil:
			continue
		case And:
			out = append(out, pred.Predicates...)
		default:
			out = append(out, p)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return And{Predicates: out}
}

// OrOf disjoins preds, dropping nil operands. A single remaining operand is
// returned unwrapped; none yields nil (no condition). An operand that
// filters nothing makes the whole disjunction filter nothing, so OrOf
// returns an empty And in that case.
func OrOf(preds ...Predicate) Predicate {
	out := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		if p == nil {
			continue
		}
		if IsTrue(p) {
			return And{Predicates: []Predicate{}}
		}
		out = append(out, p)
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return Or{Predicates: out}
	}
}

// CaseBuilder accumulates WHEN branches of a searched CASE.
type CaseBuilder struct {
	whens []When
}

// CaseWhen starts a searched CASE expression.
func CaseWhen(cond Predicate, then any) CaseBuilder {
	return CaseBuilder{whens: []When{{Cond: cond, Then: operand(then)}}}
}

// When adds a branch.
func (b CaseBuilder) When(cond Predicate, then any) CaseBuilder {
	whens := make([]When, len(b.whens), len(b.whens)+1)
	copy(whens, b.whens)
	return CaseBuilder{whens: append(whens, When{Cond: cond, Then: operand(then)})}
}

// Else closes the expression with a default value.
func (b CaseBuilder) Else(v any) Expr {
	return Case{Whens: b.whens, Else: operand(v)}
}

// End closes the expression; unmatched rows produce NULL.
func (b CaseBuilder) End() Expr {
	return Case{Whens: b.whens}
}

// CountAll is COUNT(*).
func CountAll() Expr { return Aggregate{Func: AggCount} }

func Count(e Expr) Expr { return Aggregate{Func: AggCount, Arg: e} }
func Sum(e Expr) Expr   { return Aggregate{Func: AggSum, Arg: e} }
func Avg(e Expr) Expr   { return Aggregate{Func: AggAvg, Arg: e} }
func Max(e Expr) Expr   { return Aggregate{Func: AggMax, Arg: e} }
func Min(e Expr) Expr   { return Aggregate{Func: AggMin, Arg: e} }

// Add is left + right.
func Add(left Expr, right any) Expr {
	return Arith{Left: left, Op: OpAdd, Right: operand(right)}
}

// Subtract is left - right.
func Subtract(left Expr, right any) Expr {
	return Arith{Left: left, Op: OpSub, Right: operand(right)}
}

// Multiply is left * right.
func Multiply(left Expr, right any) Expr {
	return Arith{Left: left, Op: OpMul, Right: operand(right)}
}

// Sub wraps a single-column query as a scalar expression.
func Sub(q Select) Expr {
	return Subquery{Query: q}
}

// As names an expression.
func As(e Expr, name string) Expr {
	return Alias{Expr: e, Name: name}
}

// Unalias strips any Alias wrappers from e.
func Unalias(e Expr) Expr {
	for {
		a, ok := e.(Alias)
		if !ok {
			return e
		}
		e = a.Expr
	}
}
