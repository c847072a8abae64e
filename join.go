package tabula

import (
	"context"
	"fmt"
	"maps"

	"github.com/syssam/tabula/dialect/sql"
)

// JoinStatus is the state of the join row associating a member of a
// many-to-many collection with the collection owner.
type JoinStatus int

const (
	// NotJoined means the join row needs no write.
	NotJoined JoinStatus = iota
	// NewJoin means the join row must be inserted.
	NewJoin
	// ModifiedJoin means extra join columns of an existing row changed.
	ModifiedJoin
	// JoinRemoved means the member was removed and the join row must be deleted.
	JoinRemoved
)

// String implements fmt.Stringer.
func (s JoinStatus) String() string {
	switch s {
	case NotJoined:
		return "not joined"
	case NewJoin:
		return "new join"
	case ModifiedJoin:
		return "modified join"
	case JoinRemoved:
		return "join removed"
	default:
		return fmt.Sprintf("JoinStatus(%d)", int(s))
	}
}

// joinState holds the join row of an entity reached through a many-to-many
// relation. owner is a non-owning reference, read only for its key.
type joinState struct {
	table     string
	relation  *Relation
	owner     *Entity
	fields    map[string]any
	modified  map[string]any
	status    JoinStatus
	persisted bool
}

func newJoinState(table string) *joinState {
	return &joinState{
		table:    table,
		fields:   make(map[string]any),
		modified: make(map[string]any),
	}
}

// JoinStatus returns the status of the entity's join row, NotJoined if
// the entity was not reached through a many-to-many relation.
func (e *Entity) JoinStatus() JoinStatus {
	if e.join == nil {
		return NotJoined
	}
	return e.join.status
}

// JoinTable returns the name of the join table the entity is stamped
// with, or "".
func (e *Entity) JoinTable() string {
	if e.join == nil {
		return ""
	}
	return e.join.table
}

// JoinField returns an extra column of the entity's join row.
func (e *Entity) JoinField(name string) (any, error) {
	if e.join == nil || (e.join.relation != nil && !e.join.relation.hasJoinColumn(name)) {
		return nil, &FieldNotDefinedError{Table: e.JoinTable(), Field: name}
	}
	return e.join.fields[name], nil
}

// JoinFields returns a copy of the extra columns of the entity's join row.
func (e *Entity) JoinFields() map[string]any {
	if e.join == nil {
		return nil
	}
	return maps.Clone(e.join.fields)
}

// SetJoinField sets an extra column of the entity's join row. An existing
// association becomes ModifiedJoin.
func (e *Entity) SetJoinField(name string, v any) error {
	j := e.join
	if j == nil || (j.relation != nil && !j.relation.hasJoinColumn(name)) {
		return &FieldNotDefinedError{Table: e.JoinTable(), Field: name}
	}
	if _, ok := j.modified[name]; !ok {
		j.modified[name] = j.fields[name]
	}
	j.fields[name] = v
	if j.status == NotJoined && j.persisted {
		j.status = ModifiedJoin
	}
	return nil
}

// attachJoin stamps the entity as a member of a many-to-many collection
// owned by owner.
func (e *Entity) attachJoin(rel *Relation, owner *Entity) error {
	j := e.join
	if j == nil || j.table != rel.JoinTable || (j.owner != nil && j.owner != owner) {
		j = newJoinState(rel.JoinTable)
	}
	for name := range j.fields {
		if !rel.hasJoinColumn(name) {
			return &FieldNotDefinedError{Table: rel.JoinTable, Field: name}
		}
	}
	j.relation, j.owner = rel, owner
	switch {
	case !j.persisted:
		j.status = NewJoin
	case len(j.modified) > 0:
		j.status = ModifiedJoin
	default:
		j.status = NotJoined
	}
	e.join = j
	return nil
}

// storedJoin returns the join state of a member read through rel: the
// join row exists and holds the columns hydrated into j.
func storedJoin(rel *Relation, owner *Entity, j *joinState) *joinState {
	if j == nil || j.table != rel.JoinTable {
		j = newJoinState(rel.JoinTable)
	}
	j.relation, j.owner = rel, owner
	j.persisted = true
	j.status = NotJoined
	clear(j.modified)
	return j
}

// detachJoin marks the join row of a removed member for deletion.
func (e *Entity) detachJoin() {
	if e.join == nil {
		return
	}
	if e.join.persisted {
		e.join.status = JoinRemoved
	} else {
		e.join.status = NotJoined
	}
}

// saveJoin writes the pending join row change. It is a no-op while the
// owner has no key id.
func (e *Entity) saveJoin(ctx context.Context, ex Executor) error {
	j := e.join
	if j == nil || j.relation == nil || j.status == NotJoined || !j.owner.HasKeyID() || !e.HasKeyID() {
		return nil
	}
	var (
		rel   = j.relation
		b     = sql.Dialect(ex.Dialect())
		where = sql.And(
			sql.EQ(rel.JoinOwnerColumn, j.owner.KeyID()),
			sql.EQ(rel.JoinTargetColumn, e.KeyID()),
		)
		op string
		q  sql.Querier
	)
	switch j.status {
	case NewJoin:
		ins := b.Insert(rel.JoinTable).
			Set(rel.JoinOwnerColumn, j.owner.KeyID()).
			Set(rel.JoinTargetColumn, e.KeyID())
		for _, c := range rel.JoinColumns {
			if v, ok := j.fields[c]; ok {
				ins.Set(c, v)
			}
		}
		op, q = "join insert", ins
	case ModifiedJoin:
		upd := b.Update(rel.JoinTable).Where(where)
		for _, c := range rel.JoinColumns {
			if _, ok := j.modified[c]; ok {
				upd.Set(c, j.fields[c])
			}
		}
		if upd.Empty() {
			j.status = NotJoined
			return nil
		}
		op, q = "join update", upd
	case JoinRemoved:
		op, q = "join delete", b.Delete(rel.JoinTable).Where(where)
	}
	if _, err := exec(ctx, ex, rel.JoinTable, op, q); err != nil {
		return err
	}
	j.persisted = j.status != JoinRemoved
	j.status = NotJoined
	clear(j.modified)
	return nil
}
