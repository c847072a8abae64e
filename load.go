package tabula

import (
	"context"
	"fmt"
	"maps"

	"github.com/jmoiron/sqlx"

	"github.com/syssam/tabula/dialect/sql"
)

// QueryOption configures a load operation.
type QueryOption func(*queryConfig)

type queryConfig struct {
	where    []*sql.Predicate
	order    []string
	limit    int
	registry *Registry
}

// Where restricts the load to rows whose column equals v.
func Where(column string, v any) QueryOption {
	return func(c *queryConfig) {
		c.where = append(c.where, sql.EQ(column, v))
	}
}

// WherePredicate restricts the load with a custom predicate.
func WherePredicate(p *sql.Predicate) QueryOption {
	return func(c *queryConfig) {
		c.where = append(c.where, p)
	}
}

// OrderBy orders the loaded rows. Use sql.Desc for descending columns.
func OrderBy(columns ...string) QueryOption {
	return func(c *queryConfig) {
		c.order = append(c.order, columns...)
	}
}

// Limit limits the number of loaded rows.
func Limit(n int) QueryOption {
	return func(c *queryConfig) {
		c.limit = n
	}
}

// WithRegistry makes the load return the instances already held by r for
// rows it has seen, and register the new ones.
func WithRegistry(r *Registry) QueryOption {
	return func(c *queryConfig) {
		c.registry = r
	}
}

func newQueryConfig(opts []QueryOption) *queryConfig {
	c := &queryConfig{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Find loads the row of table with the given key values, in primary key
// order. It returns a *NotFoundError if there is no such row.
func Find(ctx context.Context, ex Executor, table *Table, key ...any) (*Entity, error) {
	table.init()
	if len(key) != len(table.PrimaryKey) || len(key) == 0 {
		return nil, fmt.Errorf("tabula: find %s: expected %d key values, got %d", table.Name, len(table.PrimaryKey), len(key))
	}
	opts := []QueryOption{Limit(2)}
	for i, c := range table.PrimaryKey {
		opts = append(opts, Where(c, key[i]))
	}
	return findOne(ctx, ex, table, key, opts)
}

// FindWith is like Find and resolves the row through the registry.
func FindWith(ctx context.Context, ex Executor, r *Registry, table *Table, key ...any) (*Entity, error) {
	table.init()
	if len(key) == len(table.PrimaryKey) && len(key) == 1 {
		if e := r.Lookup(table, key[0]); e != nil {
			return e, nil
		}
	}
	e, err := Find(ctx, ex, table, key...)
	if err != nil {
		return nil, err
	}
	return r.resolve(e), nil
}

func findOne(ctx context.Context, ex Executor, table *Table, key []any, opts []QueryOption) (*Entity, error) {
	c, err := Query(ctx, ex, table, opts...)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		k := any(key)
		if len(key) == 1 {
			k = key[0]
		}
		return nil, &NotFoundError{Table: table.Name, Key: k}
	}
	return c.Entities()[0], nil
}

// Query loads the rows of table matching the options into a standalone
// collection.
func Query(ctx context.Context, ex Executor, table *Table, opts ...QueryOption) (*Collection, error) {
	table.init()
	cfg := newQueryConfig(opts)
	s := sql.Dialect(ex.Dialect()).Select().From(table.Name).Where(sql.And(cfg.where...)).OrderBy(cfg.order...)
	if cfg.limit > 0 {
		s.Limit(cfg.limit)
	}
	query, args := s.Query()
	c := NewCollection(table)
	if err := load(ctx, ex, table, query, args, cfg.registry, c.put); err != nil {
		return nil, err
	}
	return c, nil
}

// QueryRaw loads the rows returned by a custom query. Result columns that
// are not columns of the table become derived fields.
func QueryRaw(ctx context.Context, ex Executor, table *Table, query string, args []any, opts ...QueryOption) (*Collection, error) {
	table.init()
	if args == nil {
		args = []any{}
	}
	cfg := newQueryConfig(opts)
	c := NewCollection(table)
	if err := load(ctx, ex, table, query, args, cfg.registry, c.put); err != nil {
		return nil, err
	}
	return c, nil
}

// load runs the query and hands every inflated row to add.
func load(ctx context.Context, ex Executor, table *Table, query string, args []any, r *Registry, add func(*Entity)) error {
	log().DebugContext(ctx, "tabula: query", "table", table.Name, "statement", statement{ex.Dialect(), query, args})
	rows := &sql.Rows{}
	if err := ex.Query(ctx, query, args, rows); err != nil {
		return storageErr(table.Name, "select", err)
	}
	defer rows.Close()
	for rows.Next() {
		row := make(map[string]any)
		if err := sqlx.MapScan(rows, row); err != nil {
			return storageErr(table.Name, "select", err)
		}
		for k, v := range row {
			row[k] = normalize(v)
		}
		e := Inflate(table, row)
		if r != nil {
			e = r.resolve(e)
		}
		add(e)
	}
	if err := rows.Err(); err != nil {
		return storageErr(table.Name, "select", err)
	}
	return nil
}

// Reload reads the row of the entity again, discarding its modifications.
func (e *Entity) Reload(ctx context.Context, ex Executor) error {
	if !e.HasKeyID() {
		return ErrMissingKey
	}
	pk := e.oldPK()
	key := make([]any, len(e.table.PrimaryKey))
	for i, c := range e.table.PrimaryKey {
		key[i] = pk[c]
	}
	fresh, err := Find(ctx, ex, e.table, key...)
	if err != nil {
		return err
	}
	e.fields = fresh.fields
	e.derived = maps.Clone(fresh.derived)
	e.state = StateInflated
	e.resetModified()
	e.ClearValidationErrors()
	return nil
}

// Collection returns the collection of the named one-to-many or
// many-to-many relation. A relation that was neither loaded nor used
// yet gets a new empty collection, without querying storage.
func (e *Entity) Collection(name string) (*Collection, error) {
	if c, ok := e.collections[name]; ok {
		return c, nil
	}
	rel, err := e.table.Relation(name)
	if err != nil {
		return nil, err
	}
	if rel.Kind == BelongsTo {
		return nil, fmt.Errorf("tabula: relation %q of %s is not a collection", name, e.table.Name)
	}
	c := newOwnedCollection(e, rel)
	e.cacheCollection(name, c)
	return c, nil
}

func (e *Entity) cacheCollection(name string, c *Collection) {
	if e.collections == nil {
		e.collections = make(map[string]*Collection)
	}
	if _, ok := e.collections[name]; !ok {
		e.colOrder = append(e.colOrder, name)
	}
	e.collections[name] = c
}

// LoadCollection queries the members of the named relation and caches
// the loaded collection on the entity, replacing the cached one. An
// entity without a key id has no stored members: its cached collection
// is returned as is.
func (e *Entity) LoadCollection(ctx context.Context, ex Executor, name string, opts ...QueryOption) (*Collection, error) {
	rel, err := e.table.Relation(name)
	if err != nil {
		return nil, err
	}
	if rel.Kind == BelongsTo {
		return nil, fmt.Errorf("tabula: relation %q of %s is not a collection", name, e.table.Name)
	}
	if !e.HasKeyID() {
		return e.Collection(name)
	}
	cfg := newQueryConfig(opts)
	target := rel.target
	b := sql.Dialect(ex.Dialect())
	var s *sql.Selector
	switch rel.Kind {
	case OneToMany:
		s = b.Select().From(target.Name).Where(sql.EQ(rel.ForeignKey, e.KeyID()))
	case ManyToMany:
		cols := []string{target.Name + ".*"}
		for _, jc := range rel.JoinColumns {
			cols = append(cols, sql.As(rel.JoinTable+"."+jc, rel.JoinTable+"."+jc))
		}
		s = b.Select(cols...).From(target.Name).
			Join(rel.JoinTable, rel.JoinTable+"."+rel.JoinTargetColumn, target.Name+"."+target.PrimaryKey[0]).
			Where(sql.EQ(rel.JoinTable+"."+rel.JoinOwnerColumn, e.KeyID()))
	}
	s.Where(sql.And(cfg.where...))
	s.OrderBy(rel.OrderBy...).OrderBy(cfg.order...)
	if cfg.limit > 0 {
		s.Limit(cfg.limit)
	}
	query, args := s.Query()
	c := newOwnedCollection(e, rel)
	err = load(ctx, ex, target, query, args, nil, func(m *Entity) {
		if rel.Kind == ManyToMany {
			m.join = storedJoin(rel, e, m.join)
		}
		if r := cfg.registry; r != nil {
			if prev := r.resolve(m); prev != m {
				// The registered instance joins through this owner now,
				// unless it has pending changes on this very association.
				if j := prev.join; rel.Kind == ManyToMany && (j == nil || j.owner != e || j.relation != rel || j.status == NotJoined) {
					prev.join = m.join
				}
				m = prev
			}
		}
		c.put(m)
	})
	if err != nil {
		return nil, err
	}
	e.cacheCollection(name, c)
	return c, nil
}

// Related returns the parent of the named belongs-to relation, loading
// it on first use. It returns nil if the foreign key is not set.
func (e *Entity) Related(ctx context.Context, ex Executor, name string, opts ...QueryOption) (*Entity, error) {
	if p, ok := e.related[name]; ok {
		return p, nil
	}
	rel, err := e.table.Relation(name)
	if err != nil {
		return nil, err
	}
	if rel.Kind != BelongsTo {
		return nil, fmt.Errorf("tabula: relation %q of %s is not a belongs-to relation", name, e.table.Name)
	}
	fk := e.fields[rel.ForeignKey]
	if fk == nil {
		return nil, nil
	}
	var p *Entity
	if cfg := newQueryConfig(opts); cfg.registry != nil {
		p, err = FindWith(ctx, ex, cfg.registry, rel.target, fk)
	} else {
		p, err = Find(ctx, ex, rel.target, fk)
	}
	if err != nil {
		return nil, err
	}
	e.cacheRelated(name, p)
	return p, nil
}

// SetRelated sets the parent of the named belongs-to relation. The
// foreign key is set now if the parent has a key id, or when e is saved
// after the parent was inserted.
func (e *Entity) SetRelated(name string, p *Entity) error {
	rel, err := e.table.Relation(name)
	if err != nil {
		return err
	}
	if rel.Kind != BelongsTo {
		return fmt.Errorf("tabula: relation %q of %s is not a belongs-to relation", name, e.table.Name)
	}
	if p != nil && p.table != rel.target {
		return fmt.Errorf("tabula: relation %q of %s expects a %s entity, got %s", name, e.table.Name, rel.target.Name, p.table.Name)
	}
	e.cacheRelated(name, p)
	switch {
	case p == nil:
		return e.SetField(rel.ForeignKey, nil)
	case p.HasKeyID():
		e.setForeignKey(rel.ForeignKey, p.KeyID())
	}
	return nil
}

func (e *Entity) cacheRelated(name string, p *Entity) {
	if e.related == nil {
		e.related = make(map[string]*Entity)
	}
	e.related[name] = p
}
