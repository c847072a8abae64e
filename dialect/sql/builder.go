package sql

import (
	"strconv"
	"strings"

	"github.com/syssam/tabula/dialect"
)

// Querier wraps the basic Query method that is implemented
// by the different builders in this file.
type Querier interface {
	// Query returns the query representation of the element
	// and its arguments (if any).
	Query() (string, []any)
}

// Builder is the base query builder. It tracks the dialect, the
// bound arguments and the placeholder counter.
type Builder struct {
	sb      strings.Builder
	args    []any
	dialect string
}

// Dialect returns a DialectBuilder for creating statements for the given dialect.
//
//	b := sql.Dialect(dialect.Postgres)
//	query, args := b.Update("users").Set("name", "a8m").Where(sql.EQ("id", 1)).Query()
func Dialect(name string) *DialectBuilder {
	return &DialectBuilder{dialect: name}
}

// DialectBuilder prefixes all builders with a dialect.
type DialectBuilder struct {
	dialect string
}

// Insert creates an InsertBuilder for the configured dialect.
func (d *DialectBuilder) Insert(table string) *InsertBuilder {
	return &InsertBuilder{Builder: Builder{dialect: d.dialect}, table: table}
}

// Update creates an UpdateBuilder for the configured dialect.
func (d *DialectBuilder) Update(table string) *UpdateBuilder {
	return &UpdateBuilder{Builder: Builder{dialect: d.dialect}, table: table}
}

// Delete creates a DeleteBuilder for the configured dialect.
func (d *DialectBuilder) Delete(table string) *DeleteBuilder {
	return &DeleteBuilder{Builder: Builder{dialect: d.dialect}, table: table}
}

// Select creates a Selector for the configured dialect.
func (d *DialectBuilder) Select(columns ...string) *Selector {
	return &Selector{Builder: Builder{dialect: d.dialect}, columns: columns}
}

// WriteString appends s to the statement.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// Ident appends a quoted identifier. Qualified names ("t.c") are quoted
// part by part and "*" is left as is.
func (b *Builder) Ident(s string) *Builder {
	for i, part := range strings.Split(s, ".") {
		if i > 0 {
			b.sb.WriteByte('.')
		}
		if part == "*" {
			b.sb.WriteString(part)
			continue
		}
		b.sb.WriteString(QuoteIdent(b.dialect, part))
	}
	return b
}

// IdentComma appends the quoted identifiers separated by commas.
func (b *Builder) IdentComma(s ...string) *Builder {
	for i := range s {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.Ident(s[i])
	}
	return b
}

// Arg appends a placeholder for v, or writes v verbatim if it is Raw.
func (b *Builder) Arg(v any) *Builder {
	if r, ok := v.(Raw); ok {
		b.sb.WriteString(string(r))
		return b
	}
	b.args = append(b.args, v)
	if b.postgres() {
		b.sb.WriteString("$" + strconv.Itoa(len(b.args)))
	} else {
		b.sb.WriteByte('?')
	}
	return b
}

// Join appends the predicate p, binding its arguments to this builder.
func (b *Builder) Join(p *Predicate) *Builder {
	if p != nil {
		p.build(b)
	}
	return b
}

// Query returns the statement text and its arguments.
func (b *Builder) Query() (string, []any) {
	return b.sb.String(), b.args
}

// String returns the statement with all arguments inlined using Quote.
// It is meant for logging and must never be executed.
func (b *Builder) String() string {
	return Inline(b.dialect, b.sb.String(), b.args)
}

func (b *Builder) postgres() bool {
	return b.dialect == dialect.Postgres
}

// InsertBuilder is a builder for `INSERT INTO` statement.
type InsertBuilder struct {
	Builder
	table     string
	columns   []string
	values    []any
	returning []string
}

// Set appends a column and its value to the statement.
func (i *InsertBuilder) Set(column string, v any) *InsertBuilder {
	i.columns = append(i.columns, column)
	i.values = append(i.values, v)
	return i
}

// Returning adds the `RETURNING` clause to the insert statement.
// It is ignored by dialects other than Postgres.
func (i *InsertBuilder) Returning(columns ...string) *InsertBuilder {
	i.returning = columns
	return i
}

// Query returns query representation of an `INSERT INTO` statement.
func (i *InsertBuilder) Query() (string, []any) {
	i.WriteString("INSERT INTO ").Ident(i.table)
	switch {
	case len(i.columns) > 0:
		i.WriteString(" (").IdentComma(i.columns...).WriteString(") VALUES (")
		for j, v := range i.values {
			if j > 0 {
				i.WriteString(", ")
			}
			i.Arg(v)
		}
		i.WriteString(")")
	case i.dialect == dialect.MySQL:
		i.WriteString(" () VALUES ()")
	default:
		i.WriteString(" DEFAULT VALUES")
	}
	if len(i.returning) > 0 && i.postgres() {
		i.WriteString(" RETURNING ").IdentComma(i.returning...)
	}
	return i.Builder.Query()
}

// UpdateBuilder is a builder for `UPDATE` statement.
type UpdateBuilder struct {
	Builder
	table   string
	columns []string
	values  []any
	where   *Predicate
}

// Set sets a column to a given value.
func (u *UpdateBuilder) Set(column string, v any) *UpdateBuilder {
	u.columns = append(u.columns, column)
	u.values = append(u.values, v)
	return u
}

// Empty reports whether this builder does not contain any SET clause.
func (u *UpdateBuilder) Empty() bool {
	return len(u.columns) == 0
}

// Where adds a predicate to the statement, joined with AND.
func (u *UpdateBuilder) Where(p *Predicate) *UpdateBuilder {
	u.where = And(u.where, p)
	return u
}

// Query returns query representation of an `UPDATE` statement.
func (u *UpdateBuilder) Query() (string, []any) {
	u.WriteString("UPDATE ").Ident(u.table).WriteString(" SET ")
	for i, c := range u.columns {
		if i > 0 {
			u.WriteString(", ")
		}
		u.Ident(c).WriteString(" = ").Arg(u.values[i])
	}
	if u.where != nil {
		u.WriteString(" WHERE ").Join(u.where)
	}
	return u.Builder.Query()
}

// DeleteBuilder is a builder for `DELETE` statement.
type DeleteBuilder struct {
	Builder
	table string
	where *Predicate
}

// Where appends a where predicate to the statement, joined with AND.
func (d *DeleteBuilder) Where(p *Predicate) *DeleteBuilder {
	d.where = And(d.where, p)
	return d
}

// Query returns query representation of a `DELETE` statement.
func (d *DeleteBuilder) Query() (string, []any) {
	d.WriteString("DELETE FROM ").Ident(d.table)
	if d.where != nil {
		d.WriteString(" WHERE ").Join(d.where)
	}
	return d.Builder.Query()
}

// Selector is a builder for the `SELECT` statement.
type Selector struct {
	Builder
	columns []string
	from    string
	joins   []join
	where   *Predicate
	order   []string
	limit   *int
}

type join struct {
	table       string
	left, right string
}

// From sets the source table of the selector.
func (s *Selector) From(table string) *Selector {
	s.from = table
	return s
}

// Join appends an inner join on left = right.
func (s *Selector) Join(table, left, right string) *Selector {
	s.joins = append(s.joins, join{table: table, left: left, right: right})
	return s
}

// Where sets or appends the given predicate to the statement.
func (s *Selector) Where(p *Predicate) *Selector {
	s.where = And(s.where, p)
	return s
}

// OrderBy appends ordering columns. A column suffixed with " DESC" is
// ordered descending.
func (s *Selector) OrderBy(columns ...string) *Selector {
	s.order = append(s.order, columns...)
	return s
}

// Limit adds the `LIMIT` clause to the `SELECT` statement.
func (s *Selector) Limit(n int) *Selector {
	s.limit = &n
	return s
}

// Query returns query representation of a `SELECT` statement.
func (s *Selector) Query() (string, []any) {
	s.WriteString("SELECT ")
	if len(s.columns) == 0 {
		s.WriteString("*")
	}
	for i, c := range s.columns {
		if i > 0 {
			s.WriteString(", ")
		}
		if col, alias, ok := strings.Cut(c, " AS "); ok {
			s.Ident(col).WriteString(" AS ").WriteString(QuoteIdent(s.dialect, alias))
		} else {
			s.Ident(c)
		}
	}
	s.WriteString(" FROM ").Ident(s.from)
	for _, j := range s.joins {
		s.WriteString(" JOIN ").Ident(j.table).WriteString(" ON ").Ident(j.left).WriteString(" = ").Ident(j.right)
	}
	if s.where != nil {
		s.WriteString(" WHERE ").Join(s.where)
	}
	if len(s.order) > 0 {
		s.WriteString(" ORDER BY ")
		for i, c := range s.order {
			if i > 0 {
				s.WriteString(", ")
			}
			if col, ok := strings.CutSuffix(c, " DESC"); ok {
				s.Ident(col).WriteString(" DESC")
			} else {
				s.Ident(c)
			}
		}
	}
	if s.limit != nil {
		s.WriteString(" LIMIT ").WriteString(strconv.Itoa(*s.limit))
	}
	return s.Builder.Query()
}

// As returns a selected column renamed to alias. The alias is quoted
// as a whole, dots included.
func As(column, alias string) string {
	return column + " AS " + alias
}

// Desc adds the DESC suffix to the given column.
func Desc(column string) string {
	return column + " DESC"
}
