package sql

import (
	"slices"
	"strings"
)

// Predicate is a where predicate.
type Predicate struct {
	build func(*Builder)
}

// P creates a new predicate from a build function.
//
//	P(func(b *Builder) {
//		b.Ident("name").WriteString(" = ").Arg("a8m")
//	})
func P(fn func(*Builder)) *Predicate {
	return &Predicate{build: fn}
}

// EQ returns a "=" predicate. A nil value is compared with IS NULL.
func EQ(col string, value any) *Predicate {
	if value == nil {
		return IsNull(col)
	}
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" = ").Arg(value)
	})
}

// IsNull returns the `IS NULL` predicate.
func IsNull(col string) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" IS NULL")
	})
}

// In returns the `IN` predicate. An empty list never matches.
func In(col string, args ...any) *Predicate {
	return P(func(b *Builder) {
		if len(args) == 0 {
			b.WriteString("FALSE")
			return
		}
		b.Ident(col).WriteString(" IN (")
		for i, a := range args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.Arg(a)
		}
		b.WriteString(")")
	})
}

// And combines the non-nil predicates with AND. It returns nil if
// all of them are nil.
func And(preds ...*Predicate) *Predicate {
	preds = slices.DeleteFunc(slices.Clone(preds), func(p *Predicate) bool { return p == nil })
	switch len(preds) {
	case 0:
		return nil
	case 1:
		return preds[0]
	}
	return P(func(b *Builder) {
		for i, p := range preds {
			if i > 0 {
				b.WriteString(" AND ")
			}
			p.build(b)
		}
	})
}

// FieldsEQ returns the conjunction of equality predicates for the given
// column/value mapping, in column name order.
func FieldsEQ(fields map[string]any) *Predicate {
	cols := make([]string, 0, len(fields))
	for c := range fields {
		cols = append(cols, c)
	}
	slices.SortFunc(cols, strings.Compare)
	preds := make([]*Predicate, 0, len(cols))
	for _, c := range cols {
		preds = append(preds, EQ(c, fields[c]))
	}
	return And(preds...)
}
