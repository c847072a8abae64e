package tabula

import (
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/go-openapi/inflect"
	"gopkg.in/yaml.v3"
)

// KeyStrategy tells how the primary key of a new row is obtained.
type KeyStrategy string

const (
	// KeyAuto lets the database generate the key. It is read back after the
	// insert, through RETURNING on Postgres and the last insert id elsewhere.
	KeyAuto KeyStrategy = "auto"
	// KeyUUID assigns a random UUID string right before the insert.
	KeyUUID KeyStrategy = "uuid"
	// KeyManual expects the caller to set the key.
	KeyManual KeyStrategy = "manual"
)

// RelationKind is the kind of a relationship between two tables.
type RelationKind int

// Relationship kinds. RelationNone is the kind of a standalone Collection.
const (
	RelationNone RelationKind = iota
	BelongsTo
	OneToMany
	ManyToMany
)

var relationKindNames = map[RelationKind]string{
	RelationNone: "none",
	BelongsTo:    "belongs_to",
	OneToMany:    "one_to_many",
	ManyToMany:   "many_to_many",
}

// String implements fmt.Stringer.
func (k RelationKind) String() string {
	if s, ok := relationKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("RelationKind(%d)", int(k))
}

// MarshalYAML implements yaml.Marshaler.
func (k RelationKind) MarshalYAML() (any, error) {
	return k.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (k *RelationKind) UnmarshalYAML(node *yaml.Node) error {
	for kind, name := range relationKindNames {
		if node.Value == name {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("tabula: unknown relation kind %q", node.Value)
}

// Relation declares a named relationship from the table it belongs to
// (the owner) to a target table.
//
//   - BelongsTo: ForeignKey is a column of the owner referencing the target key.
//   - OneToMany: ForeignKey is a column of the target referencing the owner key.
//   - ManyToMany: rows are associated through JoinTable, whose JoinOwnerColumn
//     and JoinTargetColumn reference both keys. JoinColumns lists the extra
//     columns living only on the join table.
type Relation struct {
	Name             string       `yaml:"name"`
	Kind             RelationKind `yaml:"kind"`
	Target           string       `yaml:"target"`
	ForeignKey       string       `yaml:"foreign_key,omitempty"`
	JoinTable        string       `yaml:"join_table,omitempty"`
	JoinOwnerColumn  string       `yaml:"join_owner_column,omitempty"`
	JoinTargetColumn string       `yaml:"join_target_column,omitempty"`
	JoinColumns      []string     `yaml:"join_columns,omitempty"`
	OrderBy          []string     `yaml:"order_by,omitempty"`

	owner  *Table
	target *Table
}

// Owner returns the table declaring the relation.
func (r *Relation) Owner() *Table { return r.owner }

// TargetTable returns the resolved target table, or nil before the
// relation was resolved by a Schema.
func (r *Relation) TargetTable() *Table { return r.target }

func (r *Relation) hasJoinColumn(name string) bool {
	return slices.Contains(r.JoinColumns, name)
}

// Table declares the mapping of one database table. Tables are configuration
// data: they are declared once, shared by all entities of the table and must
// not be modified after first use.
type Table struct {
	Name       string      `yaml:"name"`
	Columns    []string    `yaml:"columns"`
	PrimaryKey []string    `yaml:"primary_key,omitempty"`
	Derived    []string    `yaml:"derived,omitempty"`
	Key        KeyStrategy `yaml:"key,omitempty"`
	Relations  []*Relation `yaml:"relations,omitempty"`

	// Validate is called by Entity.ValidateData once per dirty cycle.
	// It reports problems through Entity.InvalidateField.
	Validate func(e *Entity) `yaml:"-"`

	once      sync.Once
	columns   map[string]struct{}
	derived   map[string]struct{}
	relations map[string]*Relation
}

func (t *Table) init() {
	t.once.Do(func() {
		if t.Key == "" {
			t.Key = KeyAuto
		}
		t.columns = make(map[string]struct{}, len(t.Columns))
		for _, c := range t.Columns {
			t.columns[c] = struct{}{}
		}
		t.derived = make(map[string]struct{}, len(t.Derived))
		for _, c := range t.Derived {
			t.derived[c] = struct{}{}
		}
		t.relations = make(map[string]*Relation, len(t.Relations))
		for _, r := range t.Relations {
			r.owner = t
			t.relations[r.Name] = r
		}
	})
}

// HasColumn reports whether name is a declared column.
func (t *Table) HasColumn(name string) bool {
	t.init()
	_, ok := t.columns[name]
	return ok
}

// IsDerived reports whether name is a declared derived field.
func (t *Table) IsDerived(name string) bool {
	t.init()
	_, ok := t.derived[name]
	return ok
}

// IsPrimaryKey reports whether name is part of the primary key.
func (t *Table) IsPrimaryKey(name string) bool {
	return slices.Contains(t.PrimaryKey, name)
}

// Relation returns the relation with the given name.
func (t *Table) Relation(name string) (*Relation, error) {
	t.init()
	r, ok := t.relations[name]
	if !ok {
		return nil, &RelationNotDefinedError{Table: t.Name, Relation: name}
	}
	if r.target == nil {
		return nil, fmt.Errorf("tabula: relation %q of %q is not resolved, declare the tables in a Schema", name, t.Name)
	}
	return r, nil
}

// Schema is a set of tables whose relations were resolved against each other.
type Schema struct {
	tables map[string]*Table
}

// NewSchema resolves the relations of the given tables and fills in the
// default foreign key and join table names.
//
//	authors := &tabula.Table{
//	    Name:       "authors",
//	    Columns:    []string{"id", "name"},
//	    PrimaryKey: []string{"id"},
//	    Relations:  []*tabula.Relation{{Name: "books", Kind: tabula.OneToMany, Target: "books"}},
//	}
//	schema, err := tabula.NewSchema(authors, books)
func NewSchema(tables ...*Table) (*Schema, error) {
	s := &Schema{tables: make(map[string]*Table, len(tables))}
	for _, t := range tables {
		if t.Name == "" {
			return nil, fmt.Errorf("tabula: table without a name")
		}
		if _, ok := s.tables[t.Name]; ok {
			return nil, fmt.Errorf("tabula: duplicate table %q", t.Name)
		}
		t.init()
		for _, c := range t.PrimaryKey {
			if !t.HasColumn(c) {
				return nil, &FieldNotDefinedError{Table: t.Name, Field: c}
			}
		}
		s.tables[t.Name] = t
	}
	for _, t := range tables {
		for _, r := range t.Relations {
			if err := s.resolve(t, r); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

// LoadSchema decodes a YAML list of tables and resolves it.
//
//	- name: books
//	  columns: [id, title, author_id]
//	  primary_key: [id]
//	  relations:
//	    - {name: author, kind: belongs_to, target: authors}
//	    - {name: libraries, kind: many_to_many, target: libraries, join_columns: [joined_at]}
func LoadSchema(r io.Reader) (*Schema, error) {
	var tables []*Table
	if err := yaml.NewDecoder(r).Decode(&tables); err != nil {
		return nil, fmt.Errorf("tabula: decode schema: %w", err)
	}
	return NewSchema(tables...)
}

// Table returns the table with the given name, or nil.
func (s *Schema) Table(name string) *Table {
	return s.tables[name]
}

// Tables returns the tables of the schema sorted by name.
func (s *Schema) Tables() []*Table {
	ts := make([]*Table, 0, len(s.tables))
	for _, t := range s.tables {
		ts = append(ts, t)
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].Name < ts[j].Name })
	return ts
}

func (s *Schema) resolve(owner *Table, r *Relation) error {
	target, ok := s.tables[r.Target]
	if !ok {
		return fmt.Errorf("tabula: relation %q of %q: unknown target table %q", r.Name, owner.Name, r.Target)
	}
	single := func(t *Table) error {
		if len(t.PrimaryKey) != 1 {
			return fmt.Errorf("tabula: relation %q of %q requires a single column key on %q", r.Name, owner.Name, t.Name)
		}
		return nil
	}
	switch r.Kind {
	case BelongsTo:
		if err := single(target); err != nil {
			return err
		}
		if r.ForeignKey == "" {
			r.ForeignKey = foreignKey(target.Name)
		}
		if !owner.HasColumn(r.ForeignKey) {
			return &FieldNotDefinedError{Table: owner.Name, Field: r.ForeignKey}
		}
	case OneToMany:
		if err := single(owner); err != nil {
			return err
		}
		if r.ForeignKey == "" {
			r.ForeignKey = foreignKey(owner.Name)
		}
		if !target.HasColumn(r.ForeignKey) {
			return &FieldNotDefinedError{Table: target.Name, Field: r.ForeignKey}
		}
	case ManyToMany:
		if err := single(owner); err != nil {
			return err
		}
		if err := single(target); err != nil {
			return err
		}
		if r.JoinTable == "" {
			names := []string{owner.Name, target.Name}
			slices.Sort(names)
			r.JoinTable = strings.Join(names, "_")
		}
		if r.JoinOwnerColumn == "" {
			r.JoinOwnerColumn = foreignKey(owner.Name)
		}
		if r.JoinTargetColumn == "" {
			r.JoinTargetColumn = foreignKey(target.Name)
		}
	default:
		return fmt.Errorf("tabula: relation %q of %q has invalid kind %s", r.Name, owner.Name, r.Kind)
	}
	r.owner, r.target = owner, target
	return nil
}

// foreignKey returns the conventional foreign key column for a table,
// e.g. "author_id" for "authors".
func foreignKey(table string) string {
	return inflect.Underscore(inflect.Singularize(table)) + "_id"
}
