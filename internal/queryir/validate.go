package queryir

import (
	"maps"

	"github.com/roach88/querydeck/internal/ir"
	"github.com/roach88/querydeck/internal/schema"
)

// Validate checks a query against the catalog before it is compiled.
//
// Rules:
//  1. Every entity, alias, field, and association must be declared
//  2. Field kinds must match the catalog
//  3. Compared operands must have comparable kinds
//  4. Conjunctions and disjunctions never contain nil operands
//  5. Order keys reference known, sortable fields
//  6. The page window, if any, is valid
//
// Validate is a pure function with no side effects.
func Validate(cat *schema.Catalog, sel Select) error {
	v := &validator{cat: cat, scope: map[string]string{}}
	_, err := v.validateSelect(sel)
	return err
}

// ValidateMutation checks a bulk update or delete against the catalog.
//
// In addition to the query rules, the filter may reference only the mutated
// entity, assignments must target non-key fields of that entity, and
// assigned values must be assignable to the field kind.
func ValidateMutation(cat *schema.Catalog, m Mutation) error {
	entity, ok := cat.Entity(m.Entity.Name)
	if !ok {
		return newError(ErrCodeUnknownField, m.Entity.Name, "unknown entity %q", m.Entity.Name)
	}
	if m.Entity.Alias == "" {
		return newError(ErrCodeInvalidMutation, m.Entity.Name, "entity alias is required")
	}

	v := &validator{cat: cat, scope: map[string]string{m.Entity.Alias: m.Entity.Name}, isolated: true}

	switch m.Kind {
	case MutationUpdate:
		if len(m.Assignments) == 0 {
			return newError(ErrCodeInvalidMutation, "", "update requires at least one assignment")
		}
	case MutationDelete:
		if len(m.Assignments) > 0 {
			return newError(ErrCodeInvalidMutation, "", "delete takes no assignments")
		}
	default:
		return newError(ErrCodeInvalidMutation, "", "unknown mutation kind %q", m.Kind)
	}

	seen := make(map[string]bool, len(m.Assignments))
	for _, a := range m.Assignments {
		if a.Field.Alias != m.Entity.Alias || a.Field.Entity != m.Entity.Name {
			return newError(ErrCodeInvalidMutation, a.Field.String(), "assignment targets %s, not %s", a.Field.Entity, m.Entity.Name)
		}
		def, ok := entity.Fields[a.Field.Name]
		if !ok {
			return newError(ErrCodeUnknownField, a.Field.String(), "unknown field %s.%s", m.Entity.Name, a.Field.Name)
		}
		if def.Key {
			return newError(ErrCodeInvalidMutation, a.Field.String(), "key field %s can not be assigned", a.Field.Name)
		}
		if seen[a.Field.Name] {
			return newError(ErrCodeInvalidMutation, a.Field.String(), "field %s assigned twice", a.Field.Name)
		}
		seen[a.Field.Name] = true

		if err := checkMutationScope(m.Entity, fieldsOf(a.Value)); err != nil {
			return err
		}
		kind, err := v.exprKind(a.Value)
		if err != nil {
			return err
		}
		if kind == ir.KindNull && !def.Nullable {
			return newError(ErrCodeInvalidMutation, a.Field.String(), "field %s is not nullable", a.Field.Name)
		}
		if !ir.Assignable(kind, def.Kind) {
			return newError(ErrCodeInvalidMutation, a.Field.String(), "can not assign %s to %s field %s", kind, def.Kind, a.Field.Name)
		}
	}

	if m.Filter != nil {
		if err := checkMutationScope(m.Entity, PredicateFields(m.Filter)); err != nil {
			return err
		}
		if err := v.validatePredicate(m.Filter); err != nil {
			return err
		}
	}
	return nil
}

func checkMutationScope(entity EntityRef, fields []Field) error {
	for _, f := range fields {
		if f.Alias != entity.Alias {
			return newError(ErrCodeInvalidMutation, f.String(), "mutation of %s can not reference %s", entity.Name, f.Alias)
		}
	}
	return nil
}

// validator carries the alias scope during traversal.
type validator struct {
	cat   *schema.Catalog
	scope map[string]string // alias -> entity name

	// isolated subqueries do not see the enclosing scope.
	isolated bool
}

// child returns a validator for a nested subquery.
func (v *validator) child() *validator {
	if v.isolated {
		return &validator{cat: v.cat, scope: map[string]string{}, isolated: true}
	}
	return &validator{cat: v.cat, scope: maps.Clone(v.scope)}
}

func (v *validator) bind(ref EntityRef) error {
	if ref.Alias == "" {
		return newError(ErrCodeUnknownField, ref.Name, "entity %s has no alias", ref.Name)
	}
	if _, ok := v.cat.Entity(ref.Name); !ok {
		return newError(ErrCodeUnknownField, ref.Name, "unknown entity %q", ref.Name)
	}
	if _, dup := v.scope[ref.Alias]; dup {
		return newError(ErrCodeUnknownField, ref.Alias, "alias %q is already bound", ref.Alias)
	}
	v.scope[ref.Alias] = ref.Name
	return nil
}

// validateSelect checks a query and returns the kinds of its columns.
func (v *validator) validateSelect(sel Select) ([]ir.Kind, error) {
	if err := v.bind(sel.From); err != nil {
		return nil, err
	}

	for _, j := range sel.Joins {
		if err := v.validateJoin(j); err != nil {
			return nil, err
		}
	}

	if len(sel.Columns) == 0 {
		return nil, newError(ErrCodeProjectionArityMismatch, "", "query projects no columns")
	}
	kinds := make([]ir.Kind, len(sel.Columns))
	for i, col := range sel.Columns {
		kind, err := v.exprKind(col)
		if err != nil {
			return nil, err
		}
		kinds[i] = kind
	}

	if sel.Filter != nil {
		if err := v.validatePredicate(sel.Filter); err != nil {
			return nil, err
		}
	}
	for _, g := range sel.Groups {
		if _, err := v.exprKind(g); err != nil {
			return nil, err
		}
	}
	if sel.GroupFilter != nil {
		if len(sel.Groups) == 0 {
			return nil, newError(ErrCodeInvalidCondition, "", "having requires group by")
		}
		if err := v.validatePredicate(sel.GroupFilter); err != nil {
			return nil, err
		}
	}

	for _, k := range sel.Order {
		if err := checkOrderKey(v.cat, k); err != nil {
			return nil, err
		}
		if _, err := v.exprKind(k.Expr); err != nil {
			return nil, err
		}
	}

	if sel.Page != nil {
		if err := sel.Page.Validate(); err != nil {
			return nil, err
		}
	}
	return kinds, nil
}

func (v *validator) validateJoin(j Join) error {
	switch j.Kind {
	case InnerJoin, LeftJoin:
	default:
		return newError(ErrCodeInvalidCondition, j.Target.Alias, "unknown join kind %q", j.Kind)
	}

	if j.Via != nil {
		owner, ok := v.scope[j.Via.Alias]
		if !ok || owner != j.Via.Entity {
			return newError(ErrCodeUnknownField, j.Via.Alias+"."+j.Via.Name, "association owner %s is not in scope", j.Via.Alias)
		}
		assoc, ok := v.cat.Association(j.Via.Entity, j.Via.Name)
		if !ok {
			return newError(ErrCodeUnknownField, j.Via.Alias+"."+j.Via.Name, "unknown association %s.%s", j.Via.Entity, j.Via.Name)
		}
		if assoc.Target != j.Target.Name {
			return newError(ErrCodeUnknownField, j.Via.Alias+"."+j.Via.Name, "association %s targets %s, not %s", j.Via.Name, assoc.Target, j.Target.Name)
		}
	} else if j.On == nil {
		return newError(ErrCodeInvalidCondition, j.Target.Alias, "join without association needs a condition")
	}

	if err := v.bind(j.Target); err != nil {
		return err
	}
	if j.On != nil {
		return v.validatePredicate(j.On)
	}
	return nil
}

func (v *validator) validatePredicate(p Predicate) error {
	switch pred := p.(type) {
	case nil:
		return newError(ErrCodeInvalidCondition, "", "nil condition operand")
	case Equals:
		return v.checkComparable(pred.Left, pred.Right)
	case Compare:
		switch pred.Op {
		case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		default:
			return newError(ErrCodeInvalidCondition, "", "unknown comparison %q", pred.Op)
		}
		return v.checkComparable(pred.Left, pred.Right)
	case Between:
		if err := v.checkComparable(pred.Expr, pred.Low); err != nil {
			return err
		}
		return v.checkComparable(pred.Expr, pred.High)
	case Contains:
		kind, err := v.exprKind(pred.Expr)
		if err != nil {
			return err
		}
		if kind != ir.KindString && kind != ir.KindNull {
			return newError(ErrCodeInvalidCondition, exprName(pred.Expr), "contains requires a string operand, got %s", kind)
		}
		return nil
	case In:
		if pred.Sub != nil {
			kinds, err := v.child().validateSelect(*pred.Sub)
			if err != nil {
				return err
			}
			if len(kinds) != 1 {
				return newError(ErrCodeInvalidCondition, exprName(pred.Expr), "IN subquery must project one column, got %d", len(kinds))
			}
			left, err := v.exprKind(pred.Expr)
			if err != nil {
				return err
			}
			return comparableKinds(exprName(pred.Expr), left, kinds[0])
		}
		if len(pred.Values) == 0 {
			return newError(ErrCodeInvalidCondition, exprName(pred.Expr), "IN list is empty")
		}
		for _, val := range pred.Values {
			if err := v.checkComparable(pred.Expr, val); err != nil {
				return err
			}
		}
		return nil
	case IsNull:
		_, err := v.exprKind(pred.Expr)
		return err
	case And:
		return v.validateOperands("conjunction", pred.Predicates)
	case Or:
		if len(pred.Predicates) == 0 {
			return newError(ErrCodeInvalidCondition, "", "empty disjunction")
		}
		return v.validateOperands("disjunction", pred.Predicates)
	default:
		return newError(ErrCodeInvalidCondition, "", "unsupported condition %T", p)
	}
}

// validateOperands rejects operands that filter nothing: only a top-level
// condition may be the empty And.
func (v *validator) validateOperands(kind string, preds []Predicate) error {
	for _, sub := range preds {
		if sub != nil && IsTrue(sub) {
			return newError(ErrCodeInvalidCondition, "", "%s operand filters nothing", kind)
		}
		if err := v.validatePredicate(sub); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) checkComparable(left, right Expr) error {
	lk, err := v.exprKind(left)
	if err != nil {
		return err
	}
	rk, err := v.exprKind(right)
	if err != nil {
		return err
	}
	return comparableKinds(exprName(left), lk, rk)
}

func comparableKinds(name string, a, b ir.Kind) error {
	if a == b || a == ir.KindNull || b == ir.KindNull {
		return nil
	}
	if isNumeric(a) && isNumeric(b) {
		return nil
	}
	return newError(ErrCodeInvalidCondition, name, "can not compare %s with %s", a, b)
}

func isNumeric(k ir.Kind) bool {
	return k == ir.KindInt || k == ir.KindFloat
}

// exprKind checks e and returns the kind of value it produces.
func (v *validator) exprKind(e Expr) (ir.Kind, error) {
	switch expr := e.(type) {
	case nil:
		return "", newError(ErrCodeInvalidCondition, "", "nil expression")
	case Field:
		entity, ok := v.scope[expr.Alias]
		if !ok {
			return "", newError(ErrCodeUnknownField, expr.String(), "alias %q is not in scope", expr.Alias)
		}
		if entity != expr.Entity {
			return "", newError(ErrCodeUnknownField, expr.String(), "alias %q is bound to %s, not %s", expr.Alias, entity, expr.Entity)
		}
		def, ok := v.cat.Field(expr.Entity, expr.Name)
		if !ok {
			return "", newError(ErrCodeUnknownField, expr.String(), "unknown field %s.%s", expr.Entity, expr.Name)
		}
		if expr.Kind != "" && expr.Kind != def.Kind {
			return "", newError(ErrCodeUnknownField, expr.String(), "field %s is %s, not %s", expr.Name, def.Kind, expr.Kind)
		}
		return def.Kind, nil
	case Const:
		kind := ir.KindOf(expr.Value)
		if kind == ir.KindArray || kind == ir.KindObject {
			return "", newError(ErrCodeInvalidCondition, "", "literal must be a scalar, got %s", kind)
		}
		return kind, nil
	case invalidLiteral:
		return "", newError(ErrCodeInvalidCondition, "", "invalid literal: %v", expr.err)
	case Case:
		if len(expr.Whens) == 0 {
			return "", newError(ErrCodeInvalidCondition, "", "CASE without WHEN")
		}
		result := ir.KindNull
		branches := make([]Expr, 0, len(expr.Whens)+1)
		for _, w := range expr.Whens {
			if err := v.validatePredicate(w.Cond); err != nil {
				return "", err
			}
			branches = append(branches, w.Then)
		}
		if expr.Else != nil {
			branches = append(branches, expr.Else)
		}
		for _, b := range branches {
			kind, err := v.exprKind(b)
			if err != nil {
				return "", err
			}
			if err := comparableKinds("case", result, kind); err != nil {
				return "", err
			}
			result = widen(result, kind)
		}
		return result, nil
	case Aggregate:
		return v.aggregateKind(expr)
	case Arith:
		lk, err := v.exprKind(expr.Left)
		if err != nil {
			return "", err
		}
		rk, err := v.exprKind(expr.Right)
		if err != nil {
			return "", err
		}
		for _, k := range []ir.Kind{lk, rk} {
			if !isNumeric(k) && k != ir.KindNull {
				return "", newError(ErrCodeInvalidCondition, exprName(expr.Left), "arithmetic requires numbers, got %s", k)
			}
		}
		return widen(lk, rk), nil
	case Subquery:
		kinds, err := v.child().validateSelect(expr.Query)
		if err != nil {
			return "", err
		}
		if len(kinds) != 1 {
			return "", newError(ErrCodeInvalidCondition, "", "scalar subquery must project one column, got %d", len(kinds))
		}
		return kinds[0], nil
	case Alias:
		if expr.Name == "" {
			return "", newError(ErrCodeInvalidCondition, "", "alias name is empty")
		}
		return v.exprKind(expr.Expr)
	default:
		return "", newError(ErrCodeInvalidCondition, "", "unsupported expression %T", e)
	}
}

func (v *validator) aggregateKind(agg Aggregate) (ir.Kind, error) {
	if agg.Arg == nil {
		if agg.Func != AggCount {
			return "", newError(ErrCodeInvalidCondition, "", "%s requires an argument", agg.Func)
		}
		return ir.KindInt, nil
	}
	if _, nested := Unalias(agg.Arg).(Aggregate); nested {
		return "", newError(ErrCodeInvalidCondition, "", "nested aggregate in %s", agg.Func)
	}
	argKind, err := v.exprKind(agg.Arg)
	if err != nil {
		return "", err
	}
	switch agg.Func {
	case AggCount:
		return ir.KindInt, nil
	case AggSum:
		if !isNumeric(argKind) {
			return "", newError(ErrCodeInvalidCondition, exprName(agg.Arg), "SUM requires a number, got %s", argKind)
		}
		return argKind, nil
	case AggAvg:
		if !isNumeric(argKind) {
			return "", newError(ErrCodeInvalidCondition, exprName(agg.Arg), "AVG requires a number, got %s", argKind)
		}
		return ir.KindFloat, nil
	case AggMax, AggMin:
		return argKind, nil
	default:
		return "", newError(ErrCodeInvalidCondition, "", "unknown aggregate %q", agg.Func)
	}
}

// widen returns the kind holding values of both a and b.
func widen(a, b ir.Kind) ir.Kind {
	switch {
	case a == ir.KindNull:
		return b
	case b == ir.KindNull:
		return a
	case a == ir.KindFloat || b == ir.KindFloat:
		if isNumeric(a) && isNumeric(b) {
			return ir.KindFloat
		}
	}
	return a
}

func exprName(e Expr) string {
	if f, ok := Unalias(e).(Field); ok {
		return f.String()
	}
	return ""
}
