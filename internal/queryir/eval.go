package queryir

import (
	"errors"
	"strings"

	"github.com/roach88/querydeck/internal/ir"
)

// ErrNotEvaluable is returned by Eval when a predicate needs more than one
// entity's state: other aliases, subqueries, or aggregates.
var ErrNotEvaluable = errors.New("queryir: predicate not evaluable in memory")

// Eval evaluates p against the field values of one entity instance bound
// to ref.Alias, using SQL three-valued logic: any comparison with NULL is
// unknown, and only a definite true matches.
//
// A nil predicate matches everything.
func Eval(p Predicate, ref EntityRef, state ir.IRObject) (bool, error) {
	if p == nil {
		return true, nil
	}
	e := evaluator{ref: ref, state: state}
	res, err := e.predicate(p)
	if err != nil {
		return false, err
	}
	return res == triTrue, nil
}

type tri int

const (
	triFalse tri = iota
	triTrue
	triUnknown
)

func triOf(b bool) tri {
	if b {
		return triTrue
	}
	return triFalse
}

type evaluator struct {
	ref   EntityRef
	state ir.IRObject
}

func (e evaluator) predicate(p Predicate) (tri, error) {
	switch pred := p.(type) {
	case Equals:
		return e.compare(pred.Left, OpEq, pred.Right)
	case Compare:
		return e.compare(pred.Left, pred.Op, pred.Right)
	case Between:
		low, err := e.compare(pred.Expr, OpGe, pred.Low)
		if err != nil {
			return triUnknown, err
		}
		high, err := e.compare(pred.Expr, OpLe, pred.High)
		if err != nil {
			return triUnknown, err
		}
		return and(low, high), nil
	case Contains:
		v, err := e.expr(pred.Expr)
		if err != nil {
			return triUnknown, err
		}
		s, ok := v.(ir.IRString)
		if !ok {
			return triUnknown, nil
		}
		return triOf(strings.Contains(string(s), pred.Substring)), nil
	case In:
		if pred.Sub != nil {
			return triUnknown, ErrNotEvaluable
		}
		res := triFalse
		for _, val := range pred.Values {
			r, err := e.compare(pred.Expr, OpEq, val)
			if err != nil {
				return triUnknown, err
			}
			res = or(res, r)
		}
		return res, nil
	case IsNull:
		v, err := e.expr(pred.Expr)
		if err != nil {
			return triUnknown, err
		}
		return triOf(ir.IsNull(v) != pred.Negate), nil
	case And:
		res := triTrue
		for _, sub := range pred.Predicates {
			r, err := e.predicate(sub)
			if err != nil {
				return triUnknown, err
			}
			res = and(res, r)
		}
		return res, nil
	case Or:
		res := triFalse
		for _, sub := range pred.Predicates {
			r, err := e.predicate(sub)
			if err != nil {
				return triUnknown, err
			}
			res = or(res, r)
		}
		return res, nil
	default:
		return triUnknown, ErrNotEvaluable
	}
}

func (e evaluator) compare(left Expr, op CompareOp, right Expr) (tri, error) {
	l, err := e.expr(left)
	if err != nil {
		return triUnknown, err
	}
	r, err := e.expr(right)
	if err != nil {
		return triUnknown, err
	}
	cmp, ok := ir.Compare(l, r)
	if !ok {
		return triUnknown, nil
	}
	switch op {
	case OpEq:
		return triOf(cmp == 0), nil
	case OpNe:
		return triOf(cmp != 0), nil
	case OpLt:
		return triOf(cmp < 0), nil
	case OpLe:
		return triOf(cmp <= 0), nil
	case OpGt:
		return triOf(cmp > 0), nil
	case OpGe:
		return triOf(cmp >= 0), nil
	default:
		return triUnknown, nil
	}
}

func (e evaluator) expr(x Expr) (ir.IRValue, error) {
	switch expr := x.(type) {
	case Field:
		if expr.Alias != e.ref.Alias || expr.Entity != e.ref.Name {
			return nil, ErrNotEvaluable
		}
		v, ok := e.state[expr.Name]
		if !ok {
			return nil, ErrNotEvaluable
		}
		if v == nil {
			return ir.IRNull{}, nil
		}
		return v, nil
	case Const:
		if expr.Value == nil {
			return ir.IRNull{}, nil
		}
		return expr.Value, nil
	case Alias:
		return e.expr(expr.Expr)
	case Arith:
		l, err := e.expr(expr.Left)
		if err != nil {
			return nil, err
		}
		r, err := e.expr(expr.Right)
		if err != nil {
			return nil, err
		}
		return arith(expr.Op, l, r), nil
	case Case:
		for _, w := range expr.Whens {
			res, err := e.predicate(w.Cond)
			if err != nil {
				return nil, err
			}
			if res == triTrue {
				return e.expr(w.Then)
			}
		}
		if expr.Else == nil {
			return ir.IRNull{}, nil
		}
		return e.expr(expr.Else)
	default:
		return nil, ErrNotEvaluable
	}
}

func arith(op ArithOp, l, r ir.IRValue) ir.IRValue {
	li, lInt := l.(ir.IRInt)
	ri, rInt := r.(ir.IRInt)
	if lInt && rInt {
		switch op {
		case OpAdd:
			return li + ri
		case OpSub:
			return li - ri
		case OpMul:
			return li * ri
		}
		return ir.IRNull{}
	}
	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if !lok || !rok {
		return ir.IRNull{}
	}
	switch op {
	case OpAdd:
		return ir.IRFloat(lf + rf)
	case OpSub:
		return ir.IRFloat(lf - rf)
	case OpMul:
		return ir.IRFloat(lf * rf)
	}
	return ir.IRNull{}
}

func toFloat(v ir.IRValue) (float64, bool) {
	switch n := v.(type) {
	case ir.IRInt:
		return float64(n), true
	case ir.IRFloat:
		return float64(n), true
	default:
		return 0, false
	}
}

func and(a, b tri) tri {
	switch {
	case a == triFalse || b == triFalse:
		return triFalse
	case a == triUnknown || b == triUnknown:
		return triUnknown
	default:
		return triTrue
	}
}

func or(a, b tri) tri {
	switch {
	case a == triTrue || b == triTrue:
		return triTrue
	case a == triUnknown || b == triUnknown:
		return triUnknown
	default:
		return triFalse
	}
}
