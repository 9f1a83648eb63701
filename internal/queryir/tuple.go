package queryir

import (
	"github.com/roach88/querydeck/internal/ir"
)

// Layout maps the projected columns of one query to their positions.
// It is built once per query and shared by every Tuple of the result.
type Layout struct {
	columns []Expr
	keys    map[string]int
	aliases map[string]int
}

// NewLayout indexes columns by expression identity and alias name.
// When an expression is projected twice, the first position wins.
func NewLayout(columns []Expr) *Layout {
	l := &Layout{
		columns: columns,
		keys:    make(map[string]int, len(columns)),
		aliases: make(map[string]int),
	}
	for i, col := range columns {
		l.index(ExprKey(col), i)
		if a, ok := col.(Alias); ok {
			if _, seen := l.aliases[a.Name]; !seen {
				l.aliases[a.Name] = i
			}
			l.index(ExprKey(Unalias(col)), i)
		}
	}
	return l
}

func (l *Layout) index(key string, i int) {
	if _, seen := l.keys[key]; !seen {
		l.keys[key] = i
	}
}

// Columns returns the projected expressions in order.
func (l *Layout) Columns() []Expr {
	return l.columns
}

// Tuple binds a result row to the layout.
func (l *Layout) Tuple(row []ir.IRValue) Tuple {
	return Tuple{layout: l, row: row}
}

// Tuple is one result row of a multi-column projection. Values are looked
// up by the expression that produced them, or by alias name.
type Tuple struct {
	layout *Layout
	row    []ir.IRValue
}

// Len returns the number of columns.
func (t Tuple) Len() int {
	return len(t.row)
}

// At returns the value at position i, or IRNull if out of range.
func (t Tuple) At(i int) ir.IRValue {
	if i < 0 || i >= len(t.row) || t.row[i] == nil {
		return ir.IRNull{}
	}
	return t.row[i]
}

// Values returns the raw row.
func (t Tuple) Values() []ir.IRValue {
	return t.row
}

// Get returns the value projected for e.
func (t Tuple) Get(e Expr) (ir.IRValue, bool) {
	if t.layout == nil {
		return nil, false
	}
	i, ok := t.layout.keys[ExprKey(e)]
	if !ok {
		return nil, false
	}
	return t.At(i), true
}

// Named returns the value projected under alias name.
func (t Tuple) Named(name string) (ir.IRValue, bool) {
	if t.layout == nil {
		return nil, false
	}
	i, ok := t.layout.aliases[name]
	if !ok {
		return nil, false
	}
	return t.At(i), true
}

// Text returns the string projected for e. ok is false when the column
// is absent, null, or not a string.
func (t Tuple) Text(e Expr) (string, bool) {
	v, _ := t.Get(e)
	s, ok := v.(ir.IRString)
	return string(s), ok
}

// TextPtr is Text for nullable columns.
func (t Tuple) TextPtr(e Expr) *string {
	if s, ok := t.Text(e); ok {
		return &s
	}
	return nil
}

// Int returns the integer projected for e.
func (t Tuple) Int(e Expr) (int64, bool) {
	v, _ := t.Get(e)
	n, ok := v.(ir.IRInt)
	return int64(n), ok
}

// IntPtr is Int for nullable columns.
func (t Tuple) IntPtr(e Expr) *int64 {
	if n, ok := t.Int(e); ok {
		return &n
	}
	return nil
}

// Float returns the number projected for e, widening integers.
func (t Tuple) Float(e Expr) (float64, bool) {
	v, _ := t.Get(e)
	return toFloat(v)
}
