package tabula

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// State is the lifecycle state of an Entity.
type State int

const (
	// StateNew is the state of an entity not yet known to exist in storage.
	StateNew State = iota
	// StateInflated is the state of an entity loaded from, or successfully
	// written to, storage.
	StateInflated
	// StateDeleted is the state of an entity whose row was deleted.
	// Saving a deleted entity does nothing.
	StateDeleted
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateInflated:
		return "inflated"
	case StateDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type noKey struct{}

func (noKey) String() string { return "<no key>" }

// NoKey is the key id of entities whose table has no primary key.
var NoKey any = noKey{}

// Entity is one row of a table held in memory. It tracks the fields
// modified since the last save, along with their values before the first
// modification.
//
// Entities are not safe for concurrent use.
type Entity struct {
	table    *Table
	state    State
	fields   map[string]any
	modified map[string]any
	derived  map[string]any

	validated bool
	invalid   []*ValidationError

	related     map[string]*Entity
	collections map[string]*Collection
	colOrder    []string

	join   *joinState
	saving bool
}

// New returns an empty entity of the given table in the New state.
func New(table *Table) *Entity {
	table.init()
	return &Entity{
		table:    table,
		state:    StateNew,
		fields:   make(map[string]any, len(table.Columns)),
		modified: make(map[string]any),
		derived:  make(map[string]any),
	}
}

// NewWithFields returns a New entity with the given fields set (and
// therefore modified).
func NewWithFields(table *Table, fields map[string]any) (*Entity, error) {
	e := New(table)
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		if err := e.SetField(name, fields[name]); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Inflate returns an entity hydrated from a row, in the Inflated state.
// Columns of the table become fields, "table.column" keys become join
// fields and every other key becomes a derived field.
func Inflate(table *Table, row map[string]any) *Entity {
	e := New(table)
	e.state = StateInflated
	e.hydrate(row)
	return e
}

func (e *Entity) hydrate(row map[string]any) {
	for name, v := range row {
		switch {
		case e.table.HasColumn(name):
			e.fields[name] = v
		case strings.Contains(name, "."):
			jt, col, _ := strings.Cut(name, ".")
			if e.join == nil || e.join.table != jt {
				e.join = newJoinState(jt)
			}
			e.join.fields[col] = v
			e.join.persisted = true
		default:
			e.derived[name] = v
		}
	}
}

// Table returns the table of the entity.
func (e *Entity) Table() *Table { return e.table }

// State returns the lifecycle state of the entity.
func (e *Entity) State() State { return e.state }

// IsNew reports whether the entity is not yet known to exist in storage.
func (e *Entity) IsNew() bool { return e.state == StateNew }

// IsInflated reports whether the entity was loaded or saved.
func (e *Entity) IsInflated() bool { return e.state == StateInflated }

// IsDeleted reports whether the entity was deleted.
func (e *Entity) IsDeleted() bool { return e.state == StateDeleted }

// Field returns the value of a field. Unset fields are nil.
// Derived fields and "joinTable.column" join fields are also readable.
func (e *Entity) Field(name string) (any, error) {
	switch {
	case e.table.HasColumn(name):
		return e.fields[name], nil
	case e.table.IsDerived(name):
		return e.derived[name], nil
	}
	if v, ok := e.derived[name]; ok {
		return v, nil
	}
	if jt, col, ok := strings.Cut(name, "."); ok && e.join != nil && e.join.table == jt {
		return e.join.fields[col], nil
	}
	return nil, &FieldNotDefinedError{Table: e.table.Name, Field: name}
}

// Get is like Field but panics if the field is not defined. It is meant
// for typed accessors over a known table declaration.
func (e *Entity) Get(name string) any {
	v, err := e.Field(name)
	if err != nil {
		panic(err)
	}
	return v
}

// SetField sets the value of a field. The value the field had before its
// first modification since the last save is kept for OldFieldValue.
//
// Names of derived fields are stored as derived values, and
// "joinTable.column" names are routed to the join fields. Any other
// undeclared name is rejected with a FieldNotDefinedError.
func (e *Entity) SetField(name string, v any) error {
	if e.table.HasColumn(name) {
		if _, ok := e.modified[name]; !ok {
			e.modified[name] = e.fields[name]
		}
		e.fields[name] = v
		e.ClearValidationErrors()
		return nil
	}
	if e.table.IsDerived(name) {
		e.derived[name] = v
		return nil
	}
	if jt, col, ok := strings.Cut(name, "."); ok {
		if e.join == nil {
			e.join = newJoinState(jt)
		}
		if e.join.table == jt {
			return e.SetJoinField(col, v)
		}
	}
	return &FieldNotDefinedError{Table: e.table.Name, Field: name}
}

// Fields returns every declared column with its value.
func (e *Entity) Fields() map[string]any {
	fields := make(map[string]any, len(e.table.Columns))
	for _, c := range e.table.Columns {
		fields[c] = e.fields[c]
	}
	return fields
}

// FieldsWithoutPK returns the declared columns that are not part of the
// primary key.
func (e *Entity) FieldsWithoutPK() map[string]any {
	fields := e.Fields()
	for _, c := range e.table.PrimaryKey {
		delete(fields, c)
	}
	return fields
}

// Derived returns a derived field set by a custom load query.
func (e *Entity) Derived(name string) (any, bool) {
	v, ok := e.derived[name]
	return v, ok
}

// PK returns the primary key columns and their values.
func (e *Entity) PK() map[string]any {
	pk := make(map[string]any, len(e.table.PrimaryKey))
	for _, c := range e.table.PrimaryKey {
		pk[c] = e.fields[c]
	}
	return pk
}

// oldPK returns the primary key as it is in storage.
func (e *Entity) oldPK() map[string]any {
	pk := e.PK()
	for c := range pk {
		if old, ok := e.modified[c]; ok && e.state != StateNew {
			pk[c] = old
		}
	}
	return pk
}

// KeyID returns the identity of the entity: NoKey if the table has no
// primary key, the raw key value for a single column key, and the key
// values joined by "," for a composite key.
func (e *Entity) KeyID() any {
	switch pk := e.table.PrimaryKey; len(pk) {
	case 0:
		return NoKey
	case 1:
		return e.fields[pk[0]]
	default:
		parts := make([]string, len(pk))
		for i, c := range pk {
			if v := e.fields[c]; v != nil {
				parts[i] = fmt.Sprint(v)
			}
		}
		return strings.Join(parts, ",")
	}
}

// HasKeyID reports whether every primary key column has a value. A New
// entity must also have had every key column explicitly set, which tells
// a key assigned in memory apart from a key confirmed by storage.
func (e *Entity) HasKeyID() bool {
	if len(e.table.PrimaryKey) == 0 {
		return false
	}
	for _, c := range e.table.PrimaryKey {
		if e.fields[c] == nil {
			return false
		}
		if _, ok := e.modified[c]; !ok && e.state == StateNew {
			return false
		}
	}
	return true
}

// setKeyID assigns a key generated by storage and propagates it to the
// loaded children.
func (e *Entity) setKeyID(v any) {
	e.fields[e.table.PrimaryKey[0]] = v
	e.notifyChildrenOfKeyChange()
}

// notifyChildrenOfKeyChange rewrites the foreign key of every member of the
// loaded one-to-many collections.
func (e *Entity) notifyChildrenOfKeyChange() {
	key := e.KeyID()
	for _, name := range e.colOrder {
		c := e.collections[name]
		if c.relation.Kind != OneToMany {
			continue
		}
		for _, m := range c.members {
			m.setForeignKey(c.relation.ForeignKey, key)
		}
	}
}

// setForeignKey sets fk to key unless it already holds it.
func (e *Entity) setForeignKey(fk string, key any) {
	if cur := e.fields[fk]; cur != nil && identity(cur) == identity(key) {
		return
	}
	_ = e.SetField(fk, key)
}

// HasModifiedFields reports whether any field changed since the last save.
func (e *Entity) HasModifiedFields() bool {
	return len(e.modified) > 0
}

// IsModified reports whether the field changed since the last save.
func (e *Entity) IsModified(name string) bool {
	_, ok := e.modified[name]
	return ok
}

// ModifiedFields returns the modified fields with their values as of the
// last save.
func (e *Entity) ModifiedFields() map[string]any {
	return maps.Clone(e.modified)
}

// OldFieldValue returns the value the field had at the last save.
func (e *Entity) OldFieldValue(name string) (any, error) {
	if old, ok := e.modified[name]; ok {
		return old, nil
	}
	return e.Field(name)
}

// resetModified marks every field clean.
func (e *Entity) resetModified() {
	clear(e.modified)
}

// ValidateData runs the table's Validate hook once per dirty cycle and
// reports whether the entity is valid.
func (e *Entity) ValidateData() bool {
	if !e.validated {
		e.validated = true
		if e.table.Validate != nil {
			e.table.Validate(e)
		}
	}
	return len(e.invalid) == 0
}

// IsDataValid is an alias of ValidateData.
func (e *Entity) IsDataValid() bool {
	return e.ValidateData()
}

// InvalidateField records a validation problem for the field.
func (e *Entity) InvalidateField(name, message string) {
	e.invalid = append(e.invalid, &ValidationError{Name: name, Message: message})
}

// ValidationErrors returns the problems recorded by the last validation.
func (e *Entity) ValidationErrors() []*ValidationError {
	return slices.Clone(e.invalid)
}

// ClearValidationErrors forgets the recorded problems, so the next
// ValidateData call runs the hook again.
func (e *Entity) ClearValidationErrors() {
	e.invalid = nil
	e.validated = false
}

// Clone returns a New copy of the entity without its key, with every
// non-key field marked modified. Saving the copy inserts a new row.
func (e *Entity) Clone() *Entity {
	c := New(e.table)
	for _, col := range e.table.Columns {
		if e.table.IsPrimaryKey(col) {
			continue
		}
		if v, ok := e.fields[col]; ok {
			c.fields[col] = v
		}
		c.modified[col] = nil
	}
	return c
}

// String implements fmt.Stringer.
func (e *Entity) String() string {
	return fmt.Sprintf("%s(%v)[%s]", e.table.Name, e.KeyID(), e.state)
}
