package queryir

// fieldsOf collects field references in e. Subqueries are not entered:
// their fields belong to their own scope.
func fieldsOf(e Expr) []Field {
	var out []Field
	walkExpr(e, func(f Field) { out = append(out, f) })
	return out
}

// PredicateFields collects field references in p, outside subqueries.
func PredicateFields(p Predicate) []Field {
	var out []Field
	walkPredicate(p, func(f Field) { out = append(out, f) })
	return out
}

func walkExpr(e Expr, visit func(Field)) {
	switch expr := e.(type) {
	case Field:
		visit(expr)
	case Case:
		for _, w := range expr.Whens {
			walkPredicate(w.Cond, visit)
			walkExpr(w.Then, visit)
		}
		walkExpr(expr.Else, visit)
	case Aggregate:
		walkExpr(expr.Arg, visit)
	case Arith:
		walkExpr(expr.Left, visit)
		walkExpr(expr.Right, visit)
	case Alias:
		walkExpr(expr.Expr, visit)
	}
}

func walkPredicate(p Predicate, visit func(Field)) {
	switch pred := p.(type) {
	case Equals:
		walkExpr(pred.Left, visit)
		walkExpr(pred.Right, visit)
	case Compare:
		walkExpr(pred.Left, visit)
		walkExpr(pred.Right, visit)
	case Between:
		walkExpr(pred.Expr, visit)
		walkExpr(pred.Low, visit)
		walkExpr(pred.High, visit)
	case Contains:
		walkExpr(pred.Expr, visit)
	case In:
		walkExpr(pred.Expr, visit)
		for _, v := range pred.Values {
			walkExpr(v, visit)
		}
	case IsNull:
		walkExpr(pred.Expr, visit)
	case And:
		for _, sub := range pred.Predicates {
			walkPredicate(sub, visit)
		}
	case Or:
		for _, sub := range pred.Predicates {
			walkPredicate(sub, visit)
		}
	}
}

// References reports whether p touches any field of the entity alias,
// outside subqueries.
func References(p Predicate, alias string) bool {
	for _, f := range PredicateFields(p) {
		if f.Alias == alias {
			return true
		}
	}
	return false
}
