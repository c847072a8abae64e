package tabula

import (
	"context"
	"fmt"
	"iter"
	"reflect"
	"slices"
	"sync/atomic"
)

// placeholder is the key of a member that has no key id yet.
type placeholder uint64

var placeholders atomic.Uint64

func nextPlaceholder() placeholder {
	return placeholder(placeholders.Add(1))
}

// Collection is an ordered set of entities of one table, addressed by key
// id. It tracks the entities removed since the last save. A collection
// created through Entity.Collection or Entity.LoadCollection also carries
// the relation to its owner.
//
// Collections are not safe for concurrent use.
type Collection struct {
	table    *Table
	owner    *Entity
	relation *Relation

	members map[any]*Entity
	order   []any
	index   map[*Entity]any
	removed []*Entity
}

// NewCollection returns an empty standalone collection.
func NewCollection(table *Table) *Collection {
	table.init()
	return &Collection{
		table:   table,
		members: make(map[any]*Entity),
		index:   make(map[*Entity]any),
	}
}

func newOwnedCollection(owner *Entity, rel *Relation) *Collection {
	c := NewCollection(rel.target)
	c.owner, c.relation = owner, rel
	return c
}

// Table returns the table of the members.
func (c *Collection) Table() *Table { return c.table }

// Owner returns the entity the collection was loaded from, or nil.
func (c *Collection) Owner() *Entity { return c.owner }

// Kind returns the kind of relation between the owner and the members.
func (c *Collection) Kind() RelationKind {
	if c.relation == nil {
		return RelationNone
	}
	return c.relation.Kind
}

// Relation returns the relation to the owner, or nil.
func (c *Collection) Relation() *Relation { return c.relation }

// Add adds e to the collection under its key id, replacing a member with
// the same key id. An entity without a key id is added under a unique
// placeholder key until it is saved.
//
// In a one-to-many collection the foreign key of e is set to the owner
// key. In a many-to-many collection e is stamped with the join table and
// its join row is written when e is saved.
func (c *Collection) Add(e *Entity) error {
	if e.table != c.table {
		return fmt.Errorf("tabula: cannot add %s entity to a %s collection", e.table.Name, c.table.Name)
	}
	if err := c.attach(e); err != nil {
		return err
	}
	if i := slices.Index(c.removed, e); i >= 0 {
		c.removed = slices.Delete(c.removed, i, i+1)
	}
	c.put(e)
	return nil
}

func (c *Collection) attach(e *Entity) error {
	switch c.Kind() {
	case OneToMany:
		if c.owner.HasKeyID() {
			e.setForeignKey(c.relation.ForeignKey, c.owner.KeyID())
		}
	case ManyToMany:
		return e.attachJoin(c.relation, c.owner)
	}
	return nil
}

// put stores e without stamping the relation.
func (c *Collection) put(e *Entity) {
	if _, ok := c.index[e]; ok && !e.HasKeyID() {
		return
	}
	key := c.keyOf(e)
	if old, ok := c.index[e]; ok && old != key {
		c.rekey(old, key)
		return
	}
	if prev, ok := c.members[key]; ok {
		delete(c.index, prev)
	} else {
		c.order = append(c.order, key)
	}
	c.members[key] = e
	c.index[e] = key
}

func (c *Collection) keyOf(e *Entity) any {
	if e.HasKeyID() {
		return identity(e.KeyID())
	}
	return nextPlaceholder()
}

// rekey moves the member stored under old to key, keeping its position.
// A different member already stored under key is dropped.
func (c *Collection) rekey(old, key any) {
	e := c.members[old]
	if prev, ok := c.members[key]; ok && prev != e {
		delete(c.index, prev)
		c.order = slices.DeleteFunc(c.order, func(k any) bool { return k == key })
	}
	delete(c.members, old)
	c.members[key] = e
	c.index[e] = key
	if i := slices.Index(c.order, old); i >= 0 {
		c.order[i] = key
	}
}

// Remove removes a member given as an entity or a key id. The removed
// entity is kept and saved with the collection, which deletes its join
// row in a many-to-many collection. Remove returns nil if the argument
// was not a member.
func (c *Collection) Remove(keyOrEntity any) *Entity {
	key, ok := c.lookup(keyOrEntity)
	if !ok {
		return nil
	}
	e := c.members[key]
	delete(c.members, key)
	delete(c.index, e)
	c.order = slices.DeleteFunc(c.order, func(k any) bool { return k == key })
	if c.Kind() == ManyToMany {
		e.detachJoin()
	}
	c.removed = append(c.removed, e)
	return e
}

// Get returns the member given as an entity or a key id, or nil.
func (c *Collection) Get(keyOrEntity any) *Entity {
	key, ok := c.lookup(keyOrEntity)
	if !ok {
		return nil
	}
	return c.members[key]
}

// Has reports whether the entity or key id is a member.
func (c *Collection) Has(keyOrEntity any) bool {
	_, ok := c.lookup(keyOrEntity)
	return ok
}

func (c *Collection) lookup(keyOrEntity any) (any, bool) {
	if e, ok := keyOrEntity.(*Entity); ok {
		key, ok := c.index[e]
		return key, ok
	}
	key := identity(keyOrEntity)
	if !hashable(key) {
		return nil, false
	}
	_, ok := c.members[key]
	return key, ok
}

// Len returns the number of members.
func (c *Collection) Len() int { return len(c.order) }

// IsEmpty reports whether the collection has no members.
func (c *Collection) IsEmpty() bool { return len(c.order) == 0 }

// Keys returns the member keys in order. Members without a key id are
// listed under their placeholder key.
func (c *Collection) Keys() []any {
	return slices.Clone(c.order)
}

// Entities returns the members in order.
func (c *Collection) Entities() []*Entity {
	es := make([]*Entity, len(c.order))
	for i, k := range c.order {
		es[i] = c.members[k]
	}
	return es
}

// All returns an iterator over the keys and members, in order.
func (c *Collection) All() iter.Seq2[any, *Entity] {
	return func(yield func(any, *Entity) bool) {
		for _, k := range slices.Clone(c.order) {
			e, ok := c.members[k]
			if ok && !yield(k, e) {
				return
			}
		}
	}
}

// Removed returns the entities removed since the last save.
func (c *Collection) Removed() []*Entity {
	return slices.Clone(c.removed)
}

// Save saves the members without a key id first, re-keying them under
// their new key id, then every other member, then the removed entities.
// It returns false if any of these saves returned false.
func (c *Collection) Save(ctx context.Context, ex Executor) (bool, error) {
	ok := true
	saved := make(map[*Entity]bool, len(c.order))
	for _, k := range slices.Clone(c.order) {
		e := c.members[k]
		if e == nil || e.HasKeyID() {
			continue
		}
		c.stamp(e)
		done, err := e.Save(ctx, ex)
		if err != nil {
			return false, err
		}
		saved[e] = true
		ok = ok && done
		if e.HasKeyID() {
			c.rekey(k, identity(e.KeyID()))
		}
	}
	for _, k := range slices.Clone(c.order) {
		e := c.members[k]
		if e == nil || saved[e] {
			continue
		}
		c.stamp(e)
		done, err := e.Save(ctx, ex)
		if err != nil {
			return false, err
		}
		ok = ok && done
	}
	for len(c.removed) > 0 {
		done, err := c.removed[0].Save(ctx, ex)
		if err != nil {
			return false, err
		}
		ok = ok && done
		c.removed = c.removed[1:]
	}
	c.removed = nil
	log().DebugContext(ctx, "tabula: collection saved", "table", c.table.Name, "members", len(c.order))
	return ok, nil
}

// stamp sets the foreign key of a one-to-many member, in case the owner
// key was set after the member was added.
func (c *Collection) stamp(e *Entity) {
	if c.Kind() == OneToMany && c.owner.HasKeyID() {
		e.setForeignKey(c.relation.ForeignKey, c.owner.KeyID())
	}
}

// identity returns the collection key of a key id. Integers of any type
// map to int64 and byte slices to strings, so that keys read from
// different drivers compare equal.
func identity(v any) any {
	switch v := v.(type) {
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		if v <= 1<<63-1 {
			return int64(v)
		}
		return v
	case []byte:
		return string(v)
	default:
		return v
	}
}

// hashable reports whether v can be used as a map key without panicking.
func hashable(v any) bool {
	return reflect.ValueOf(v).Comparable()
}

// normalize converts driver values into field values.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
