package tabula

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/syssam/tabula/dialect"
	"github.com/syssam/tabula/dialect/sql"
)

// Executor is the database capability set used by entities and
// collections. Both dialect.Driver and dialect.Tx implement it, so a
// cascading save runs inside a transaction when it is given one.
type Executor interface {
	dialect.ExecQuerier
	Dialect() string
}

var logger atomic.Pointer[slog.Logger]

// SetLogger sets the logger used to trace saves at debug level.
// A nil logger restores slog.Default.
func SetLogger(l *slog.Logger) {
	logger.Store(l)
}

func log() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return slog.Default()
}

// statement is a traced statement. Its arguments are inlined only when
// a handler formats it.
type statement struct {
	dialect string
	query   string
	args    []any
}

// LogValue implements slog.LogValuer.
func (s statement) LogValue() slog.Value {
	return slog.StringValue(sql.Inline(s.dialect, s.query, s.args))
}

// Save persists the entity and then, depth first, every collection loaded
// or created on it.
//
// It returns false without touching storage if the entity was deleted or
// fails validation. Storage errors abort the cascade and are returned as
// *StorageError. Entities written before the failure were marked clean,
// the others were not: callers needing atomicity pass a dialect.Tx and roll
// it back.
func (e *Entity) Save(ctx context.Context, ex Executor) (bool, error) {
	if e.state == StateDeleted {
		return false, nil
	}
	// A save reached again through a cycle of relations is completed by
	// the outer call.
	if e.saving {
		return true, nil
	}
	if !e.ValidateData() {
		return false, nil
	}
	e.saving = true
	defer func() { e.saving = false }()

	if ok, err := e.saveParents(ctx, ex); !ok || err != nil {
		return false, err
	}
	switch {
	case e.shouldInsert():
		// A stored row without a key id is only written again with changes.
		if e.state == StateInflated && !e.HasModifiedFields() {
			break
		}
		if err := e.insert(ctx, ex); err != nil {
			return false, err
		}
	default:
		if err := e.update(ctx, ex); err != nil {
			return false, err
		}
	}
	e.state = StateInflated
	if err := e.saveJoin(ctx, ex); err != nil {
		return false, err
	}
	ok := true
	for _, name := range e.colOrder {
		saved, err := e.collections[name].Save(ctx, ex)
		if err != nil {
			return false, err
		}
		ok = ok && saved
	}
	e.resetModified()
	e.ClearValidationErrors()
	return ok, nil
}

func (e *Entity) shouldInsert() bool {
	return !e.HasKeyID() || e.state == StateNew
}

// saveParents inserts the unsaved parents of belongs-to relations and
// copies their keys into the foreign keys of e.
func (e *Entity) saveParents(ctx context.Context, ex Executor) (bool, error) {
	for _, rel := range e.table.Relations {
		p, ok := e.related[rel.Name]
		if !ok || p == nil || rel.Kind != BelongsTo || p.state == StateDeleted {
			continue
		}
		if !p.saving && p.shouldInsert() {
			saved, err := p.Save(ctx, ex)
			if err != nil || !saved {
				return false, err
			}
		}
		if p.HasKeyID() {
			e.setForeignKey(rel.ForeignKey, p.KeyID())
		}
	}
	return true, nil
}

// insert writes the modified fields only, leaving the others to the
// column defaults.
func (e *Entity) insert(ctx context.Context, ex Executor) error {
	pk := e.table.PrimaryKey
	if e.table.Key == KeyUUID && len(pk) == 1 && e.fields[pk[0]] == nil {
		_ = e.SetField(pk[0], uuid.NewString())
	}
	b := sql.Dialect(ex.Dialect()).Insert(e.table.Name)
	for _, c := range e.table.Columns {
		if _, ok := e.modified[c]; ok {
			b.Set(c, e.fields[c])
		}
	}
	generated := len(pk) == 1 && e.fields[pk[0]] == nil
	if generated && ex.Dialect() == dialect.Postgres {
		b.Returning(pk[0])
		id, err := queryValue(ctx, ex, e.table.Name, "insert", b)
		if err != nil {
			return err
		}
		e.setKeyID(id)
		return nil
	}
	res, err := exec(ctx, ex, e.table.Name, "insert", b)
	if err != nil {
		return err
	}
	if generated {
		id, err := res.LastInsertId()
		if err != nil {
			return storageErr(e.table.Name, "insert", fmt.Errorf("last insert id: %w", err))
		}
		e.setKeyID(id)
	}
	return nil
}

// update writes the modified fields. Nothing is written if no field changed.
func (e *Entity) update(ctx context.Context, ex Executor) error {
	if !e.HasModifiedFields() {
		return nil
	}
	b := sql.Dialect(ex.Dialect()).Update(e.table.Name)
	for _, c := range e.table.Columns {
		if _, ok := e.modified[c]; ok {
			b.Set(c, e.fields[c])
		}
	}
	b.Where(sql.FieldsEQ(e.oldPK()))
	_, err := exec(ctx, ex, e.table.Name, "update", b)
	return err
}

// Delete deletes the row of the entity. It returns false, and does
// nothing, if the entity has no key id. Saving a deleted entity is a no-op.
func (e *Entity) Delete(ctx context.Context, ex Executor) (bool, error) {
	if !e.HasKeyID() {
		return false, nil
	}
	b := sql.Dialect(ex.Dialect()).Delete(e.table.Name).Where(sql.FieldsEQ(e.oldPK()))
	if _, err := exec(ctx, ex, e.table.Name, "delete", b); err != nil {
		return false, err
	}
	e.state = StateDeleted
	return true, nil
}

// exec runs the statement built by q and returns its result.
func exec(ctx context.Context, ex Executor, table, op string, q sql.Querier) (sql.Result, error) {
	query, args := q.Query()
	log().DebugContext(ctx, "tabula: exec", "table", table, "op", op, "statement", statement{ex.Dialect(), query, args})
	var res sql.Result
	if err := ex.Exec(ctx, query, args, &res); err != nil {
		return nil, storageErr(table, op, err)
	}
	return res, nil
}

// queryValue runs the statement built by q and scans the single value of
// its first row.
func queryValue(ctx context.Context, ex Executor, table, op string, q sql.Querier) (any, error) {
	query, args := q.Query()
	log().DebugContext(ctx, "tabula: query", "table", table, "op", op, "statement", statement{ex.Dialect(), query, args})
	rows := &sql.Rows{}
	if err := ex.Query(ctx, query, args, rows); err != nil {
		return nil, storageErr(table, op, err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, storageErr(table, op, err)
		}
		return nil, storageErr(table, op, sql.ErrNoRows)
	}
	var v any
	if err := rows.Scan(&v); err != nil {
		return nil, storageErr(table, op, err)
	}
	return normalize(v), nil
}
