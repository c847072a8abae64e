package tabula

import (
	"github.com/golang/groupcache/lru"
)

// Registry is an identity map of loaded entities, keyed by table and key
// id. A registry belongs to one unit of work: create it, pass it to the
// load operations with WithRegistry and drop it when the work is done.
//
// A Registry is not safe for concurrent use.
type Registry struct {
	cache *lru.Cache
}

type registryKey struct {
	table string
	key   any
}

// NewRegistry returns a registry holding at most capacity entities,
// evicting the least recently used ones. Zero means no limit.
func NewRegistry(capacity int) *Registry {
	return &Registry{cache: lru.New(capacity)}
}

// Lookup returns the registered entity of table with the given key id.
func (r *Registry) Lookup(table *Table, key any) *Entity {
	key = identity(key)
	if !hashable(key) {
		return nil
	}
	v, ok := r.cache.Get(registryKey{table: table.Name, key: key})
	if !ok {
		return nil
	}
	return v.(*Entity)
}

// Register adds e to the registry. Entities without a key id are ignored.
func (r *Registry) Register(e *Entity) {
	if !e.HasKeyID() {
		return
	}
	r.cache.Add(registryKey{table: e.table.Name, key: identity(e.KeyID())}, e)
}

// Forget removes e from the registry.
func (r *Registry) Forget(e *Entity) {
	if !e.HasKeyID() {
		return
	}
	r.cache.Remove(registryKey{table: e.table.Name, key: identity(e.KeyID())})
}

// Len returns the number of registered entities.
func (r *Registry) Len() int {
	return r.cache.Len()
}

// Clear empties the registry.
func (r *Registry) Clear() {
	r.cache.Clear()
}

// resolve returns the registered instance of e's row, registering e if
// there is none. The registered instance is kept as is, with its
// pending modifications.
func (r *Registry) resolve(e *Entity) *Entity {
	if !e.HasKeyID() {
		return e
	}
	if prev := r.Lookup(e.table, e.KeyID()); prev != nil && prev.state != StateDeleted {
		return prev
	}
	r.Register(e)
	return e
}
