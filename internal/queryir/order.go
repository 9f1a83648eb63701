package queryir

import (
	"slices"

	"github.com/roach88/querydeck/internal/schema"
)

// Direction is the sort direction of an order key.
type Direction string

const (
	Ascending  Direction = "ASC"
	Descending Direction = "DESC"
)

// NullOrder places nulls relative to non-null values.
// NullsDefault defers to the target's native placement.
type NullOrder string

const (
	NullsDefault NullOrder = ""
	NullsFirst   NullOrder = "FIRST"
	NullsLast    NullOrder = "LAST"
)

// OrderKey is one sort key: an expression, a direction, and a null policy.
type OrderKey struct {
	Expr      Expr
	Direction Direction
	Nulls     NullOrder
}

// Asc sorts e ascending.
func Asc(e Expr) OrderKey {
	return OrderKey{Expr: e, Direction: Ascending}
}

// Desc sorts e descending.
func Desc(e Expr) OrderKey {
	return OrderKey{Expr: e, Direction: Descending}
}

// NullsFirst returns a copy of k placing nulls before all values.
func (k OrderKey) NullsFirst() OrderKey {
	k.Nulls = NullsFirst
	return k
}

// NullsLast returns a copy of k placing nulls after all values.
func (k OrderKey) NullsLast() OrderKey {
	k.Nulls = NullsLast
	return k
}

// OrderSpec is a validated, ordered list of order keys.
//
// Keys are applied in declaration order. A repeated key is kept as given;
// only its first occurrence affects the result.
type OrderSpec struct {
	keys []OrderKey
}

// NewOrderSpec validates keys against the catalog.
//
// Every field a key references must exist. A key that is a bare field must
// also be declared sortable. Fails with INVALID_SORT_FIELD otherwise.
func NewOrderSpec(cat *schema.Catalog, keys ...OrderKey) (OrderSpec, error) {
	for _, k := range keys {
		if err := checkOrderKey(cat, k); err != nil {
			return OrderSpec{}, err
		}
	}
	return OrderSpec{keys: slices.Clone(keys)}, nil
}

// Keys returns a copy of the keys.
func (o OrderSpec) Keys() []OrderKey {
	return slices.Clone(o.keys)
}

// Len returns the number of keys.
func (o OrderSpec) Len() int {
	return len(o.keys)
}

func checkOrderKey(cat *schema.Catalog, k OrderKey) error {
	if k.Expr == nil {
		return newError(ErrCodeInvalidSortField, "", "order key has no expression")
	}
	switch k.Direction {
	case Ascending, Descending:
	default:
		return newError(ErrCodeInvalidSortField, "", "unknown direction %q", k.Direction)
	}
	switch k.Nulls {
	case NullsDefault, NullsFirst, NullsLast:
	default:
		return newError(ErrCodeInvalidSortField, "", "unknown null order %q", k.Nulls)
	}

	if f, ok := Unalias(k.Expr).(Field); ok {
		def, known := cat.Field(f.Entity, f.Name)
		if !known {
			return newError(ErrCodeInvalidSortField, f.String(), "unknown field %s.%s", f.Entity, f.Name)
		}
		if !def.Sortable {
			return newError(ErrCodeInvalidSortField, f.String(), "field %s.%s is not sortable", f.Entity, f.Name)
		}
		return nil
	}

	for _, f := range fieldsOf(k.Expr) {
		if _, known := cat.Field(f.Entity, f.Name); !known {
			return newError(ErrCodeInvalidSortField, f.String(), "unknown field %s.%s", f.Entity, f.Name)
		}
	}
	return nil
}
