package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/querydeck/internal/ir"
	"github.com/roach88/querydeck/internal/queryir"
	"github.com/roach88/querydeck/internal/schema"
)

// Compiler compiles queryir nodes to parameterized SQL for SQLite.
//
// CRITICAL: Every non-grouped query ends its ORDER BY with the root
// entity's key, every grouped query with its group keys, so equal sort
// values never produce unstable pages.
// CRITICAL: All values are parameterized (never interpolated).
//
// Compile assumes the query passed queryir.Validate; it still reports
// unknown fields rather than emitting broken SQL.
type Compiler struct {
	cat *schema.Catalog
}

// NewCompiler creates a compiler resolving fields through cat.
func NewCompiler(cat *schema.Catalog) *Compiler {
	return &Compiler{cat: cat}
}

// CompileSelect converts a query to SQL.
// Returns (sql, params, error) tuple.
func (c *Compiler) CompileSelect(q queryir.Select) (string, []any, error) {
	b := &builder{c: c}
	if err := b.selectQuery(q, false); err != nil {
		return "", nil, err
	}
	return b.sb.String(), b.params, nil
}

// CompileCount converts a query to a SQL count of its matching rows.
// Columns, ordering, and paging are ignored. Grouped queries count groups.
func (c *Compiler) CompileCount(q queryir.Select) (string, []any, error) {
	b := &builder{c: c}
	if q.Grouped() {
		b.write("SELECT COUNT(*) FROM (SELECT 1")
	} else {
		b.write("SELECT COUNT(*)")
	}
	if err := b.fromWhere(q); err != nil {
		return "", nil, err
	}
	if q.Grouped() {
		if err := b.grouping(q); err != nil {
			return "", nil, err
		}
		b.write(")")
	}
	return b.sb.String(), b.params, nil
}

// CompileMutation converts a bulk update or delete to SQL.
//
// Columns of the mutated entity are emitted unqualified: SQLite UPDATE and
// DELETE statements do not accept a table alias.
func (c *Compiler) CompileMutation(m queryir.Mutation) (string, []any, error) {
	entity, ok := c.cat.Entity(m.Entity.Name)
	if !ok {
		return "", nil, fmt.Errorf("unknown entity %q", m.Entity.Name)
	}

	b := &builder{c: c, unqualified: m.Entity.Alias}
	switch m.Kind {
	case queryir.MutationUpdate:
		if len(m.Assignments) == 0 {
			return "", nil, fmt.Errorf("update of %s has no assignments", m.Entity.Name)
		}
		b.write("UPDATE " + entity.Table + " SET ")
		for i, a := range m.Assignments {
			if i > 0 {
				b.write(", ")
			}
			def, ok := entity.Fields[a.Field.Name]
			if !ok {
				return "", nil, fmt.Errorf("unknown field %s.%s", m.Entity.Name, a.Field.Name)
			}
			b.write(def.Column + " = ")
			if err := b.expr(a.Value); err != nil {
				return "", nil, fmt.Errorf("compile assignment %s: %w", a.Field.Name, err)
			}
		}
	case queryir.MutationDelete:
		b.write("DELETE FROM " + entity.Table)
	default:
		return "", nil, fmt.Errorf("unsupported mutation kind: %q", m.Kind)
	}

	if !queryir.IsTrue(m.Filter) {
		b.write(" WHERE ")
		if err := b.predicate(m.Filter, false); err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
	}
	return b.sb.String(), b.params, nil
}

// builder accumulates SQL text and parameters in textual order.
type builder struct {
	c      *Compiler
	sb     strings.Builder
	params []any

	// unqualified is the alias whose columns are written without a prefix.
	unqualified string
}

func (b *builder) write(s string) {
	b.sb.WriteString(s)
}

func (b *builder) param(v ir.IRValue) error {
	p, err := irValueToParam(v)
	if err != nil {
		return err
	}
	b.sb.WriteByte('?')
	b.params = append(b.params, p)
	return nil
}

// selectQuery writes a full SELECT. Subqueries skip the mandatory
// tiebreaker: their row order is never observed.
func (b *builder) selectQuery(q queryir.Select, sub bool) error {
	if len(q.Columns) == 0 {
		return fmt.Errorf("query on %s has no columns", q.From.Name)
	}

	b.write("SELECT ")
	for i, col := range q.Columns {
		if i > 0 {
			b.write(", ")
		}
		if err := b.expr(col); err != nil {
			return fmt.Errorf("compile column %d: %w", i, err)
		}
	}

	if err := b.fromWhere(q); err != nil {
		return err
	}
	if err := b.grouping(q); err != nil {
		return err
	}
	if err := b.orderBy(q, sub); err != nil {
		return err
	}

	if q.Page != nil {
		b.write(" LIMIT ")
		if err := b.param(ir.IRInt(q.Page.Limit)); err != nil {
			return err
		}
		b.write(" OFFSET ")
		if err := b.param(ir.IRInt(q.Page.Offset)); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) fromWhere(q queryir.Select) error {
	root, ok := b.c.cat.Entity(q.From.Name)
	if !ok {
		return fmt.Errorf("unknown entity %q", q.From.Name)
	}
	b.write(" FROM " + root.Table + " " + q.From.Alias)

	for _, j := range q.Joins {
		if err := b.join(j); err != nil {
			return fmt.Errorf("compile join %s: %w", j.Target.Alias, err)
		}
	}

	if !queryir.IsTrue(q.Filter) {
		b.write(" WHERE ")
		if err := b.predicate(q.Filter, false); err != nil {
			return fmt.Errorf("compile filter: %w", err)
		}
	}
	return nil
}

func (b *builder) join(j queryir.Join) error {
	target, ok := b.c.cat.Entity(j.Target.Name)
	if !ok {
		return fmt.Errorf("unknown entity %q", j.Target.Name)
	}

	switch j.Kind {
	case queryir.InnerJoin:
		b.write(" INNER JOIN ")
	case queryir.LeftJoin:
		b.write(" LEFT JOIN ")
	default:
		return fmt.Errorf("unsupported join kind: %q", j.Kind)
	}
	b.write(target.Table + " " + j.Target.Alias + " ON ")

	hasVia := j.Via != nil
	if hasVia {
		assoc, ok := b.c.cat.Association(j.Via.Entity, j.Via.Name)
		if !ok {
			return fmt.Errorf("unknown association %s.%s", j.Via.Entity, j.Via.Name)
		}
		b.write(fmt.Sprintf("%s.%s = %s.%s", j.Via.Alias, assoc.Column, j.Target.Alias, assoc.References))
	}

	if !queryir.IsTrue(j.On) {
		if hasVia {
			b.write(" AND ")
		}
		return b.predicate(j.On, hasVia)
	}
	if !hasVia {
		b.write("1 = 1")
	}
	return nil
}

func (b *builder) grouping(q queryir.Select) error {
	if len(q.Groups) > 0 {
		b.write(" GROUP BY ")
		for i, g := range q.Groups {
			if i > 0 {
				b.write(", ")
			}
			if err := b.expr(g); err != nil {
				return fmt.Errorf("compile group %d: %w", i, err)
			}
		}
	}
	if !queryir.IsTrue(q.GroupFilter) {
		b.write(" HAVING ")
		if err := b.predicate(q.GroupFilter, false); err != nil {
			return fmt.Errorf("compile having: %w", err)
		}
	}
	return nil
}

// orderBy writes the caller's keys followed by the tiebreaker.
func (b *builder) orderBy(q queryir.Select, sub bool) error {
	keys := q.Order
	if !sub {
		keys = append(keys[:len(keys):len(keys)], b.tiebreaker(q)...)
	}
	if len(keys) == 0 {
		return nil
	}

	b.write(" ORDER BY ")
	for i, k := range keys {
		if i > 0 {
			b.write(", ")
		}
		if err := b.orderKey(k); err != nil {
			return fmt.Errorf("compile order key %d: %w", i, err)
		}
	}
	return nil
}

// tiebreaker returns the keys that make the order total. An ungrouped
// aggregate query yields one row and needs none.
func (b *builder) tiebreaker(q queryir.Select) []queryir.OrderKey {
	if !q.Grouped() && aggregateOnly(q.Columns) {
		return nil
	}
	if q.Grouped() {
		keys := make([]queryir.OrderKey, len(q.Groups))
		for i, g := range q.Groups {
			keys[i] = queryir.Asc(g)
		}
		return keys
	}

	root, ok := b.c.cat.Entity(q.From.Name)
	if !ok {
		return nil
	}
	key, ok := root.KeyField()
	if !ok {
		return nil
	}
	return []queryir.OrderKey{queryir.Asc(queryir.Field{
		Entity: q.From.Name,
		Alias:  q.From.Alias,
		Name:   key.Name,
		Kind:   key.Kind,
	})}
}

func aggregateOnly(columns []queryir.Expr) bool {
	for _, col := range columns {
		if _, ok := queryir.Unalias(col).(queryir.Aggregate); !ok {
			return false
		}
	}
	return len(columns) > 0
}

func (b *builder) orderKey(k queryir.OrderKey) error {
	if err := b.expr(queryir.Unalias(k.Expr)); err != nil {
		return err
	}
	if b.isText(k.Expr) {
		// COLLATE BINARY keeps text ordering identical across SQLite builds.
		b.write(" COLLATE BINARY")
	}
	switch k.Direction {
	case queryir.Descending:
		b.write(" DESC")
	default:
		b.write(" ASC")
	}
	switch k.Nulls {
	case queryir.NullsFirst:
		b.write(" NULLS FIRST")
	case queryir.NullsLast:
		b.write(" NULLS LAST")
	}
	return nil
}

func (b *builder) isText(e queryir.Expr) bool {
	f, ok := queryir.Unalias(e).(queryir.Field)
	if !ok {
		return false
	}
	def, ok := b.c.cat.Field(f.Entity, f.Name)
	return ok && def.Kind == ir.KindString
}

func (b *builder) column(f queryir.Field) error {
	def, ok := b.c.cat.Field(f.Entity, f.Name)
	if !ok {
		return fmt.Errorf("unknown field %s.%s", f.Entity, f.Name)
	}
	if f.Alias == b.unqualified {
		b.write(def.Column)
		return nil
	}
	b.write(f.Alias + "." + def.Column)
	return nil
}

// expr writes a value expression.
// CRITICAL: Literals are NEVER interpolated - always parameterized.
func (b *builder) expr(e queryir.Expr) error {
	switch expr := e.(type) {
	case queryir.Field:
		return b.column(expr)
	case queryir.Const:
		return b.param(expr.Value)
	case queryir.Case:
		b.write("CASE")
		for _, w := range expr.Whens {
			b.write(" WHEN ")
			if err := b.predicate(w.Cond, false); err != nil {
				return err
			}
			b.write(" THEN ")
			if err := b.expr(w.Then); err != nil {
				return err
			}
		}
		if expr.Else != nil {
			b.write(" ELSE ")
			if err := b.expr(expr.Else); err != nil {
				return err
			}
		}
		b.write(" END")
		return nil
	case queryir.Aggregate:
		if expr.Arg == nil {
			if expr.Func != queryir.AggCount {
				return fmt.Errorf("%s requires an argument", expr.Func)
			}
			b.write("COUNT(*)")
			return nil
		}
		b.write(string(expr.Func) + "(")
		if err := b.expr(expr.Arg); err != nil {
			return err
		}
		b.write(")")
		return nil
	case queryir.Arith:
		b.write("(")
		if err := b.expr(expr.Left); err != nil {
			return err
		}
		b.write(" " + string(expr.Op) + " ")
		if err := b.expr(expr.Right); err != nil {
			return err
		}
		b.write(")")
		return nil
	case queryir.Subquery:
		return b.subquery(expr.Query)
	case queryir.Alias:
		if err := b.expr(expr.Expr); err != nil {
			return err
		}
		b.write(" AS " + expr.Name)
		return nil
	default:
		return fmt.Errorf("unsupported expression type: %T", e)
	}
}

func (b *builder) subquery(q queryir.Select) error {
	saved := b.unqualified
	b.unqualified = ""
	defer func() { b.unqualified = saved }()

	b.write("(")
	if err := b.selectQuery(q, true); err != nil {
		return fmt.Errorf("compile subquery: %w", err)
	}
	b.write(")")
	return nil
}

// operand writes an expression used inside a predicate. Aliases are
// stripped: "AS" is only valid in a column list.
func (b *builder) operand(e queryir.Expr) error {
	return b.expr(queryir.Unalias(e))
}

// predicate writes a condition. nested wraps compound conditions in
// parentheses.
func (b *builder) predicate(p queryir.Predicate, nested bool) error {
	switch pred := p.(type) {
	case nil:
		b.write("1 = 1")
		return nil
	case queryir.Equals:
		return b.binary(pred.Left, "=", pred.Right)
	case queryir.Compare:
		return b.binary(pred.Left, string(pred.Op), pred.Right)
	case queryir.Between:
		if err := b.operand(pred.Expr); err != nil {
			return err
		}
		b.write(" BETWEEN ")
		if err := b.operand(pred.Low); err != nil {
			return err
		}
		b.write(" AND ")
		return b.operand(pred.High)
	case queryir.Contains:
		// instr is case-sensitive and needs no LIKE pattern escaping.
		b.write("instr(")
		if err := b.operand(pred.Expr); err != nil {
			return err
		}
		b.write(", ")
		if err := b.param(ir.IRString(pred.Substring)); err != nil {
			return err
		}
		b.write(") > 0")
		return nil
	case queryir.In:
		if err := b.operand(pred.Expr); err != nil {
			return err
		}
		b.write(" IN ")
		if pred.Sub != nil {
			return b.subquery(*pred.Sub)
		}
		b.write("(")
		for i, v := range pred.Values {
			if i > 0 {
				b.write(", ")
			}
			if err := b.operand(v); err != nil {
				return err
			}
		}
		b.write(")")
		return nil
	case queryir.IsNull:
		if err := b.operand(pred.Expr); err != nil {
			return err
		}
		if pred.Negate {
			b.write(" IS NOT NULL")
		} else {
			b.write(" IS NULL")
		}
		return nil
	case queryir.And:
		return b.compound(pred.Predicates, " AND ", "1 = 1", nested)
	case queryir.Or:
		return b.compound(pred.Predicates, " OR ", "1 = 0", nested)
	default:
		return fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (b *builder) binary(left queryir.Expr, op string, right queryir.Expr) error {
	if err := b.operand(left); err != nil {
		return err
	}
	b.write(" " + op + " ")
	return b.operand(right)
}

func (b *builder) compound(preds []queryir.Predicate, sep, empty string, nested bool) error {
	switch len(preds) {
	case 0:
		b.write(empty)
		return nil
	case 1:
		return b.predicate(preds[0], nested)
	}

	if nested {
		b.write("(")
	}
	for i, p := range preds {
		if i > 0 {
			b.write(sep)
		}
		if err := b.predicate(p, true); err != nil {
			return err
		}
	}
	if nested {
		b.write(")")
	}
	return nil
}

// irValueToParam converts an ir.IRValue to a Go native type for SQL parameter.
// Arrays and objects are not directly supported as SQL parameters.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case nil, ir.IRNull:
		return nil, nil
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRFloat:
		return float64(val), nil
	case ir.IRBool:
		return bool(val), nil
	case ir.IRArray:
		return nil, fmt.Errorf("IRArray cannot be used as SQL parameter directly")
	case ir.IRObject:
		return nil, fmt.Errorf("IRObject cannot be used as SQL parameter directly")
	default:
		return nil, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", v)
	}
}
