package queryir

import (
	"strconv"

	"github.com/roach88/querydeck/internal/ir"
)

// EncodeExpr renders e as an ir value tree. The encoding is deterministic
// and structural: equal expressions encode identically.
//
// Float literals are encoded as strings so the tree stays canonical.
func EncodeExpr(e Expr) ir.IRValue {
	switch expr := e.(type) {
	case nil:
		return ir.IRNull{}
	case Field:
		return ir.IRObject{
			"field":  ir.IRString(expr.Name),
			"entity": ir.IRString(expr.Entity),
			"alias":  ir.IRString(expr.Alias),
		}
	case Const:
		return ir.IRObject{"const": encodeValue(expr.Value)}
	case invalidLiteral:
		return ir.IRObject{"invalid": ir.IRString(expr.err.Error())}
	case Case:
		whens := make(ir.IRArray, len(expr.Whens))
		for i, w := range expr.Whens {
			whens[i] = ir.IRObject{
				"when": EncodePredicate(w.Cond),
				"then": EncodeExpr(w.Then),
			}
		}
		return ir.IRObject{"case": whens, "else": EncodeExpr(expr.Else)}
	case Aggregate:
		return ir.IRObject{"agg": ir.IRString(expr.Func), "arg": EncodeExpr(expr.Arg)}
	case Arith:
		return ir.IRObject{
			"arith": ir.IRString(expr.Op),
			"left":  EncodeExpr(expr.Left),
			"right": EncodeExpr(expr.Right),
		}
	case Subquery:
		return ir.IRObject{"subquery": EncodeSelect(expr.Query)}
	case Alias:
		return ir.IRObject{"as": ir.IRString(expr.Name), "expr": EncodeExpr(expr.Expr)}
	default:
		return ir.IRNull{}
	}
}

// EncodePredicate renders p as an ir value tree.
func EncodePredicate(p Predicate) ir.IRValue {
	switch pred := p.(type) {
	case nil:
		return ir.IRNull{}
	case Equals:
		return ir.IRObject{"op": ir.IRString("="), "left": EncodeExpr(pred.Left), "right": EncodeExpr(pred.Right)}
	case Compare:
		return ir.IRObject{"op": ir.IRString(pred.Op), "left": EncodeExpr(pred.Left), "right": EncodeExpr(pred.Right)}
	case Between:
		return ir.IRObject{
			"op":   ir.IRString("between"),
			"expr": EncodeExpr(pred.Expr),
			"low":  EncodeExpr(pred.Low),
			"high": EncodeExpr(pred.High),
		}
	case Contains:
		return ir.IRObject{"op": ir.IRString("contains"), "expr": EncodeExpr(pred.Expr), "substring": ir.IRString(pred.Substring)}
	case In:
		obj := ir.IRObject{"op": ir.IRString("in"), "expr": EncodeExpr(pred.Expr)}
		if pred.Sub != nil {
			obj["subquery"] = EncodeSelect(*pred.Sub)
		} else {
			values := make(ir.IRArray, len(pred.Values))
			for i, v := range pred.Values {
				values[i] = EncodeExpr(v)
			}
			obj["values"] = values
		}
		return obj
	case IsNull:
		return ir.IRObject{"op": ir.IRString("is_null"), "expr": EncodeExpr(pred.Expr), "negate": ir.IRBool(pred.Negate)}
	case And:
		return ir.IRObject{"op": ir.IRString("and"), "operands": encodePredicates(pred.Predicates)}
	case Or:
		return ir.IRObject{"op": ir.IRString("or"), "operands": encodePredicates(pred.Predicates)}
	default:
		return ir.IRNull{}
	}
}

// EncodeSelect renders a query as an ir value tree.
func EncodeSelect(s Select) ir.IRValue {
	joins := make(ir.IRArray, len(s.Joins))
	for i, j := range s.Joins {
		obj := ir.IRObject{
			"kind":   ir.IRString(j.Kind),
			"entity": ir.IRString(j.Target.Name),
			"alias":  ir.IRString(j.Target.Alias),
			"on":     EncodePredicate(j.On),
		}
		if j.Via != nil {
			obj["via"] = ir.IRString(j.Via.Alias + "." + j.Via.Name)
			obj["fetch"] = ir.IRBool(j.Via.Fetch)
		}
		joins[i] = obj
	}
	order := make(ir.IRArray, len(s.Order))
	for i, k := range s.Order {
		order[i] = ir.IRObject{
			"expr":  EncodeExpr(k.Expr),
			"dir":   ir.IRString(k.Direction),
			"nulls": ir.IRString(k.Nulls),
		}
	}
	obj := ir.IRObject{
		"from":    ir.IRString(s.From.Name),
		"alias":   ir.IRString(s.From.Alias),
		"joins":   joins,
		"columns": encodeExprs(s.Columns),
		"where":   EncodePredicate(s.Filter),
		"group":   encodeExprs(s.Groups),
		"having":  EncodePredicate(s.GroupFilter),
		"order":   order,
	}
	if s.Page != nil {
		obj["offset"] = ir.IRInt(s.Page.Offset)
		obj["limit"] = ir.IRInt(s.Page.Limit)
	}
	return obj
}

func encodeExprs(exprs []Expr) ir.IRArray {
	out := make(ir.IRArray, len(exprs))
	for i, e := range exprs {
		out[i] = EncodeExpr(e)
	}
	return out
}

func encodePredicates(preds []Predicate) ir.IRArray {
	out := make(ir.IRArray, len(preds))
	for i, p := range preds {
		out[i] = EncodePredicate(p)
	}
	return out
}

func encodeValue(v ir.IRValue) ir.IRValue {
	switch val := v.(type) {
	case ir.IRFloat:
		return ir.IRObject{"float": ir.IRString(strconv.FormatFloat(float64(val), 'g', -1, 64))}
	case ir.IRArray:
		out := make(ir.IRArray, len(val))
		for i, elem := range val {
			out[i] = encodeValue(elem)
		}
		return out
	case ir.IRObject:
		out := make(ir.IRObject, len(val))
		for k, elem := range val {
			out[k] = encodeValue(elem)
		}
		return out
	default:
		return v
	}
}

// ExprKey returns a stable identity for e, used to look up tuple columns.
// Structurally equal expressions share a key.
func ExprKey(e Expr) string {
	b, err := ir.MarshalCanonical(EncodeExpr(e))
	if err != nil {
		// Floats are the only canonical rejection and encodeValue strips them.
		panic(err)
	}
	return string(b)
}

// Fingerprint returns a content hash of p that is stable across processes.
// Equal predicates (same structure and literals) share a fingerprint.
func Fingerprint(p Predicate) (string, error) {
	return ir.Fingerprint(ir.DomainPredicate, EncodePredicate(p))
}

// QueryFingerprint returns a content hash of s.
func QueryFingerprint(s Select) (string, error) {
	return ir.Fingerprint(ir.DomainQuery, EncodeSelect(s))
}
