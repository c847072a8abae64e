package tabula

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Direction is a sort direction.
type Direction int

// Sort directions.
const (
	Asc Direction = iota
	Desc
)

// SortBy reorders the members by the value selector returns for each of
// them. The sort is stable. It does not affect the removed entities or
// the modification state of the members.
//
//	c.SortBy(func(e *tabula.Entity) any { return e.Get("title") }, tabula.Asc)
func (c *Collection) SortBy(selector func(*Entity) any, dir Direction) {
	type pair struct {
		key   any
		value any
	}
	pairs := make([]pair, len(c.order))
	for i, k := range c.order {
		pairs[i] = pair{key: k, value: selector(c.members[k])}
	}
	slices.SortStableFunc(pairs, func(a, b pair) int {
		if dir == Desc {
			return compareValues(b.value, a.value)
		}
		return compareValues(a.value, b.value)
	})
	for i, p := range pairs {
		c.order[i] = p.key
	}
}

// SortByField is SortBy on the value of a field.
func (c *Collection) SortByField(name string, dir Direction) error {
	if !c.table.HasColumn(name) && !c.table.IsDerived(name) {
		return &FieldNotDefinedError{Table: c.table.Name, Field: name}
	}
	c.SortBy(func(e *Entity) any {
		v, _ := e.Field(name)
		return v
	}, dir)
	return nil
}

// compareValues orders nil first, then numbers, strings, booleans and
// times by their natural order. Values of other or mixed types are
// compared by their string form.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if x, ok := toInt(a); ok {
		if y, ok := toInt(b); ok {
			return cmp.Compare(x, y)
		}
	}
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			return cmp.Compare(x, y)
		}
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			default:
				return 1
			}
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toInt(v any) (int64, bool) {
	switch k := identity(v).(type) {
	case int64:
		return k, true
	default:
		return 0, false
	}
}

func toFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	if i, ok := toInt(v); ok {
		return float64(i), true
	}
	return 0, false
}
