package queryir

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/querydeck/internal/ir"
)

// ProjectionKind identifies how result rows are shaped.
type ProjectionKind string

const (
	ProjectEntity      ProjectionKind = "entity"
	ProjectTuple       ProjectionKind = "tuple"
	ProjectConstructor ProjectionKind = "constructor"
	ProjectFields      ProjectionKind = "fields"
	ProjectScalar      ProjectionKind = "scalar"
)

// Fetcher loads an eagerly fetched association into an entity. Given the
// join target it returns the extra columns to project and a function
// populating the entity from the row.
type Fetcher[T any] func(target EntityRef) (columns []Expr, apply func(*T, Tuple) error)

// Projection shapes query rows into values of T.
//
// Constructor projections are strict: the target's arity and parameter
// kinds must match the columns, checked before execution. Field
// projections are lenient: columns without a matching field are skipped
// and unmatched fields keep their zero value.
type Projection[T any] struct {
	kind    ProjectionKind
	columns []Expr
	mapRow  func(Tuple) (T, error)
	fetch   map[string]Fetcher[T]
	err     error
}

// Kind returns the projection variant.
func (p Projection[T]) Kind() ProjectionKind {
	return p.kind
}

// Columns returns the projected expressions, excluding fetched associations.
func (p Projection[T]) Columns() []Expr {
	return slices.Clone(p.columns)
}

// Err returns the composition error of the projection, if any.
func (p Projection[T]) Err() error {
	return p.err
}

// EntityOf projects whole entities. scan builds one entity from a row
// holding columns.
func EntityOf[T any](columns []Expr, scan func(Tuple) (T, error)) Projection[T] {
	p := Projection[T]{kind: ProjectEntity, columns: slices.Clone(columns), mapRow: scan}
	if len(columns) == 0 {
		p.err = newError(ErrCodeProjectionArityMismatch, "", "entity projection has no columns")
	}
	return p
}

// WithFetch registers how the association named assoc is eager-loaded.
func (p Projection[T]) WithFetch(assoc string, f Fetcher[T]) Projection[T] {
	fetch := maps.Clone(p.fetch)
	if fetch == nil {
		fetch = make(map[string]Fetcher[T])
	}
	fetch[assoc] = f
	p.fetch = fetch
	return p
}

// TupleOf projects rows as tuples of the given expressions.
func TupleOf(columns ...Expr) Projection[Tuple] {
	p := Projection[Tuple]{
		kind:    ProjectTuple,
		columns: slices.Clone(columns),
		mapRow:  func(t Tuple) (Tuple, error) { return t, nil },
	}
	if len(columns) == 0 {
		p.err = newError(ErrCodeProjectionArityMismatch, "", "tuple projection has no columns")
	}
	return p
}

// Scalar projects a single expression into T.
func Scalar[T any](e Expr) Projection[T] {
	p := Projection[T]{
		kind:    ProjectScalar,
		columns: []Expr{e},
		mapRow: func(t Tuple) (T, error) {
			var out T
			err := decodeInto(reflect.ValueOf(&out).Elem(), t.At(0))
			return out, err
		},
	}
	p.err = checkArgKinds([]reflect.Type{typeOf[T]()}, p.columns)
	return p
}

// Constructor projects each row by calling fn with one argument per column.
//
// fn must be a non-variadic function returning T, or (T, error). Its
// arity and parameter kinds are checked against the columns immediately;
// a mismatch fails with PROJECTION_ARITY_MISMATCH.
func Constructor[T any](fn any, columns ...Expr) (Projection[T], error) {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func {
		return Projection[T]{}, newError(ErrCodeProjectionArityMismatch, "", "constructor is %T, not a function", fn)
	}
	ft := fv.Type()
	if ft.IsVariadic() {
		return Projection[T]{}, newError(ErrCodeProjectionArityMismatch, "", "constructor must not be variadic")
	}
	if ft.NumIn() != len(columns) {
		return Projection[T]{}, newError(ErrCodeProjectionArityMismatch, "",
			"constructor takes %d arguments, projection has %d columns", ft.NumIn(), len(columns))
	}
	target := typeOf[T]()
	switch {
	case ft.NumOut() == 1:
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
	default:
		return Projection[T]{}, newError(ErrCodeProjectionArityMismatch, "", "constructor must return %s or (%s, error)", target, target)
	}
	if !ft.Out(0).AssignableTo(target) {
		return Projection[T]{}, newError(ErrCodeProjectionArityMismatch, "", "constructor returns %s, not %s", ft.Out(0), target)
	}

	params := make([]reflect.Type, ft.NumIn())
	for i := range params {
		params[i] = ft.In(i)
	}
	if err := checkArgKinds(params, columns); err != nil {
		return Projection[T]{}, err
	}

	mapRow := func(t Tuple) (T, error) {
		var out T
		args := make([]reflect.Value, len(params))
		for i, pt := range params {
			arg := reflect.New(pt).Elem()
			if err := decodeInto(arg, t.At(i)); err != nil {
				return out, fmt.Errorf("argument %d: %w", i, err)
			}
			args[i] = arg
		}
		results := fv.Call(args)
		if len(results) == 2 && !results[1].IsNil() {
			return out, results[1].Interface().(error)
		}
		reflect.ValueOf(&out).Elem().Set(results[0])
		return out, nil
	}
	return Projection[T]{kind: ProjectConstructor, columns: slices.Clone(columns), mapRow: mapRow}, nil
}

// Construct2 is a constructor projection whose arity is checked by the
// compiler. Parameter kinds are still checked against the columns.
func Construct2[A, B, T any](fn func(A, B) T, c1, c2 Expr) Projection[T] {
	columns := []Expr{c1, c2}
	return Projection[T]{
		kind:    ProjectConstructor,
		columns: columns,
		err:     checkArgKinds([]reflect.Type{typeOf[A](), typeOf[B]()}, columns),
		mapRow: func(t Tuple) (T, error) {
			var a A
			var b B
			if err := decodeAll(t, &a, &b); err != nil {
				var zero T
				return zero, err
			}
			return fn(a, b), nil
		},
	}
}

// Construct3 is Construct2 for three columns.
func Construct3[A, B, C, T any](fn func(A, B, C) T, c1, c2, c3 Expr) Projection[T] {
	columns := []Expr{c1, c2, c3}
	return Projection[T]{
		kind:    ProjectConstructor,
		columns: columns,
		err:     checkArgKinds([]reflect.Type{typeOf[A](), typeOf[B](), typeOf[C]()}, columns),
		mapRow: func(t Tuple) (T, error) {
			var a A
			var b B
			var c C
			if err := decodeAll(t, &a, &b, &c); err != nil {
				var zero T
				return zero, err
			}
			return fn(a, b, c), nil
		},
	}
}

// Construct5 is Construct2 for five columns.
func Construct5[A, B, C, D, E, T any](fn func(A, B, C, D, E) T, c1, c2, c3, c4, c5 Expr) Projection[T] {
	columns := []Expr{c1, c2, c3, c4, c5}
	return Projection[T]{
		kind:    ProjectConstructor,
		columns: columns,
		err: checkArgKinds([]reflect.Type{
			typeOf[A](), typeOf[B](), typeOf[C](), typeOf[D](), typeOf[E](),
		}, columns),
		mapRow: func(t Tuple) (T, error) {
			var a A
			var b B
			var c C
			var d D
			var e E
			if err := decodeAll(t, &a, &b, &c, &d, &e); err != nil {
				var zero T
				return zero, err
			}
			return fn(a, b, c, d, e), nil
		},
	}
}

// Fields projects rows by assigning each column to the struct field of T
// with the same name. A column's name is its alias, or the field name for
// a bare field reference. Struct fields match by `query` tag or by name,
// case-insensitively; a tag of "-" excludes the field.
//
// A matched field whose kind can not hold the column fails with
// PROJECTION_ARITY_MISMATCH. Unmatched columns are ignored.
func Fields[T any](columns ...Expr) (Projection[T], error) {
	rt := typeOf[T]()
	if rt.Kind() != reflect.Struct {
		return Projection[T]{}, newError(ErrCodeProjectionArityMismatch, "", "field projection needs a struct, got %s", rt)
	}

	type binding struct {
		column int
		field  []int
	}
	var bindings []binding
	for i, col := range columns {
		name := projectedName(col)
		if name == "" {
			continue
		}
		sf, ok := findField(rt, name)
		if !ok {
			continue
		}
		if kind, known := staticKind(col); known && !kindFits(kind, sf.Type) {
			return Projection[T]{}, newError(ErrCodeProjectionArityMismatch, name,
				"field %s.%s (%s) can not hold %s", rt.Name(), sf.Name, sf.Type, kind)
		}
		bindings = append(bindings, binding{column: i, field: sf.Index})
	}

	mapRow := func(t Tuple) (T, error) {
		var out T
		rv := reflect.ValueOf(&out).Elem()
		for _, b := range bindings {
			if err := decodeInto(rv.FieldByIndex(b.field), t.At(b.column)); err != nil {
				return out, fmt.Errorf("column %d: %w", b.column, err)
			}
		}
		return out, nil
	}
	return Projection[T]{kind: ProjectFields, columns: slices.Clone(columns), mapRow: mapRow}, nil
}

// Plan binds a projection to a query: the query's columns become the
// projection's columns plus those of fetched associations.
type Plan[T any] struct {
	Query  Select
	Layout *Layout
	mapRow func(Tuple) (T, error)
}

// Map converts one result row.
func (pl Plan[T]) Map(row []ir.IRValue) (T, error) {
	return pl.mapRow(pl.Layout.Tuple(row))
}

// Plan prepares sel for execution with this projection.
//
// A fetch join requires an entity projection with a Fetcher registered
// for the association; anything else fails with PROJECTION_ARITY_MISMATCH.
func (p Projection[T]) Plan(sel Select) (Plan[T], error) {
	if p.err != nil {
		return Plan[T]{}, p.err
	}
	if p.mapRow == nil {
		return Plan[T]{}, newError(ErrCodeProjectionArityMismatch, "", "empty projection")
	}

	columns := slices.Clone(p.columns)
	var appliers []func(*T, Tuple) error
	for _, j := range sel.FetchJoins() {
		if p.kind != ProjectEntity {
			return Plan[T]{}, newError(ErrCodeProjectionArityMismatch, j.Via.Name,
				"fetch join on %s requires an entity projection, got %s", j.Via.Name, p.kind)
		}
		fetch, ok := p.fetch[j.Via.Name]
		if !ok {
			return Plan[T]{}, newError(ErrCodeProjectionArityMismatch, j.Via.Name,
				"projection can not load association %s", j.Via.Name)
		}
		extra, apply := fetch(j.Target)
		columns = append(columns, extra...)
		appliers = append(appliers, apply)
	}

	base := p.mapRow
	mapRow := base
	if len(appliers) > 0 {
		mapRow = func(t Tuple) (T, error) {
			v, err := base(t)
			if err != nil {
				return v, err
			}
			for _, apply := range appliers {
				if err := apply(&v, t); err != nil {
					return v, err
				}
			}
			return v, nil
		}
	}

	return Plan[T]{
		Query:  sel.Select(columns...),
		Layout: NewLayout(columns),
		mapRow: mapRow,
	}, nil
}

var (
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	irValueType = reflect.TypeOf((*ir.IRValue)(nil)).Elem()
)

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func decodeAll(t Tuple, dsts ...any) error {
	for i, dst := range dsts {
		if err := decodeInto(reflect.ValueOf(dst).Elem(), t.At(i)); err != nil {
			return fmt.Errorf("column %d: %w", i, err)
		}
	}
	return nil
}

func checkArgKinds(params []reflect.Type, columns []Expr) error {
	for i, col := range columns {
		if col == nil {
			return newError(ErrCodeProjectionArityMismatch, "", "column %d is nil", i)
		}
		kind, known := staticKind(col)
		if known && !kindFits(kind, params[i]) {
			return newError(ErrCodeProjectionArityMismatch, exprName(col),
				"argument %d (%s) can not hold %s", i, params[i], kind)
		}
	}
	return nil
}

// projectedName is the name a column is assigned under.
func projectedName(e Expr) string {
	switch expr := e.(type) {
	case Alias:
		return expr.Name
	case Field:
		return expr.Name
	default:
		return ""
	}
}

func findField(rt reflect.Type, name string) (reflect.StructField, bool) {
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := sf.Tag.Get("query")
		if tag == "-" {
			continue
		}
		if tag == "" {
			tag = sf.Name
		}
		if strings.EqualFold(tag, name) {
			return sf, true
		}
	}
	return reflect.StructField{}, false
}

// staticKind infers the kind of e without a catalog. known is false when
// the kind depends on information the expression does not carry.
func staticKind(e Expr) (kind ir.Kind, known bool) {
	switch expr := e.(type) {
	case Field:
		return expr.Kind, expr.Kind != ""
	case Const:
		return ir.KindOf(expr.Value), true
	case Alias:
		return staticKind(expr.Expr)
	case Aggregate:
		switch expr.Func {
		case AggCount:
			return ir.KindInt, true
		case AggAvg:
			return ir.KindFloat, true
		default:
			return staticKind(expr.Arg)
		}
	case Arith:
		lk, lok := staticKind(expr.Left)
		rk, rok := staticKind(expr.Right)
		if !lok || !rok {
			return "", false
		}
		return widen(lk, rk), true
	case Case:
		result := ir.KindNull
		branches := make([]Expr, 0, len(expr.Whens)+1)
		for _, w := range expr.Whens {
			branches = append(branches, w.Then)
		}
		if expr.Else != nil {
			branches = append(branches, expr.Else)
		}
		for _, b := range branches {
			k, ok := staticKind(b)
			if !ok {
				return "", false
			}
			result = widen(result, k)
		}
		return result, true
	case Subquery:
		if len(expr.Query.Columns) == 1 {
			return staticKind(expr.Query.Columns[0])
		}
	}
	return "", false
}

// kindFits reports whether a Go value of type t can hold values of kind k.
func kindFits(k ir.Kind, t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface:
		return t.NumMethod() == 0 || t == irValueType
	case reflect.Pointer:
		return kindFits(k, t.Elem())
	}
	switch k {
	case ir.KindNull:
		return true
	case ir.KindString:
		return t.Kind() == reflect.String
	case ir.KindInt:
		return isInt(t.Kind()) || isFloat(t.Kind())
	case ir.KindFloat:
		return isFloat(t.Kind())
	case ir.KindBool:
		return t.Kind() == reflect.Bool
	default:
		return false
	}
}

func isInt(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

// decodeInto stores v in dst. Null leaves dst at its zero value.
func decodeInto(dst reflect.Value, v ir.IRValue) error {
	if dst.Kind() == reflect.Interface {
		switch {
		case ir.IsNull(v):
			return nil
		case dst.Type() == irValueType:
			dst.Set(reflect.ValueOf(v))
			return nil
		case dst.Type().NumMethod() == 0:
			dst.Set(reflect.ValueOf(ir.ToGo(v)))
			return nil
		default:
			return newError(ErrCodeProjectionArityMismatch, "", "can not decode into %s", dst.Type())
		}
	}
	if ir.IsNull(v) {
		return nil
	}
	if dst.Kind() == reflect.Pointer {
		elem := reflect.New(dst.Type().Elem())
		if err := decodeInto(elem.Elem(), v); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}

	switch val := v.(type) {
	case ir.IRString:
		if dst.Kind() == reflect.String {
			dst.SetString(string(val))
			return nil
		}
	case ir.IRInt:
		switch {
		case isInt(dst.Kind()):
			if dst.OverflowInt(int64(val)) {
				return newError(ErrCodeProjectionArityMismatch, "", "%d overflows %s", int64(val), dst.Type())
			}
			dst.SetInt(int64(val))
			return nil
		case isFloat(dst.Kind()):
			dst.SetFloat(float64(val))
			return nil
		case dst.Kind() == reflect.Bool:
			dst.SetBool(val != 0)
			return nil
		}
	case ir.IRFloat:
		if isFloat(dst.Kind()) {
			dst.SetFloat(float64(val))
			return nil
		}
	case ir.IRBool:
		if dst.Kind() == reflect.Bool {
			dst.SetBool(bool(val))
			return nil
		}
	}
	return newError(ErrCodeProjectionArityMismatch, "", "can not decode %s into %s", ir.KindOf(v), dst.Type())
}
