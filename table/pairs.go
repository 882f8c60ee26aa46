package table

import (
	"database/sql/driver"
	"reflect"
	"slices"
)

// Pair is a column and the value bound for it.
type Pair struct {
	Column string
	Value  any
}

// P returns a Pair.
func P(column string, value any) Pair {
	return Pair{Column: column, Value: value}
}

// Pairs is an ordered column/value mapping. The order of the pairs is the
// order of the rendered columns and of the bound values.
type Pairs []Pair

// FromMap returns the entries of m as Pairs sorted by column name, which
// keeps the rendered statement stable across calls.
func FromMap(m map[string]any) Pairs {
	ps := make(Pairs, 0, len(m))
	for c, v := range m {
		ps = append(ps, Pair{Column: c, Value: v})
	}
	slices.SortFunc(ps, func(a, b Pair) int {
		switch {
		case a.Column < b.Column:
			return -1
		case a.Column > b.Column:
			return 1
		}
		return 0
	})
	return ps
}

// Columns returns the column names in order.
func (ps Pairs) Columns() []string {
	cols := make([]string, len(ps))
	for i, p := range ps {
		cols[i] = p.Column
	}
	return cols
}

// Values returns the values in order.
func (ps Pairs) Values() []any {
	vals := make([]any, len(ps))
	for i, p := range ps {
		vals[i] = p.Value
	}
	return vals
}

// isNull reports whether v is sent to the database as NULL: nil, a nil
// pointer, map, slice or interface, or a driver.Valuer yielding nil.
func isNull(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			return true
		}
	}
	if vr, ok := v.(driver.Valuer); ok {
		dv, err := vr.Value()
		return err == nil && dv == nil
	}
	return false
}
