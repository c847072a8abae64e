package tabula

import (
	"errors"
	"fmt"

	"github.com/syssam/tabula/dialect/sql/sqlgraph"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("tabula: entity not found")

	// ErrMissingKey is returned by operations that need a key id,
	// such as Reload, when the entity has none.
	ErrMissingKey = errors.New("tabula: entity has no key id")
)

// NotFoundError represents an error when a row is not found.
type NotFoundError struct {
	Table string
	Key   any
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tabula: %s not found (key=%v)", e.Table, e.Key)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// FieldNotDefinedError is returned when a field name that the table does
// not declare is read or written. It signals a mapping bug.
type FieldNotDefinedError struct {
	Table string
	Field string
}

// Error returns the error string.
func (e *FieldNotDefinedError) Error() string {
	return fmt.Sprintf("tabula: field %q is not defined on %s", e.Field, e.Table)
}

// IsFieldNotDefined returns true if the error is a FieldNotDefinedError.
func IsFieldNotDefined(err error) bool {
	var e *FieldNotDefinedError
	return errors.As(err, &e)
}

// RelationNotDefinedError is returned for unknown relationship names.
type RelationNotDefinedError struct {
	Table    string
	Relation string
}

// Error returns the error string.
func (e *RelationNotDefinedError) Error() string {
	return fmt.Sprintf("tabula: relation %q is not defined on %s", e.Relation, e.Table)
}

// ValidationError is one problem reported by a table's Validate hook.
// Validation errors never abort a save with an error: Save returns false
// and the problems are read back with Entity.ValidationErrors.
type ValidationError struct {
	Name    string // Field name
	Message string
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("tabula: validator failed for field %q: %s", e.Name, e.Message)
}

// StorageError wraps a failure reported by the database while writing or
// reading a table. It aborts the rest of a cascading save.
type StorageError struct {
	Table string // Table being written or read
	Op    string // insert, update, delete, select, join insert, ...
	Err   error  // Underlying driver error
}

// Error returns the error string.
func (e *StorageError) Error() string {
	return fmt.Sprintf("tabula: %s %s: %v", e.Op, e.Table, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Constraint returns the kind of constraint the statement violated.
func (e *StorageError) Constraint() sqlgraph.ConstraintKind {
	return sqlgraph.Classify(e.Err)
}

// IsStorageError returns true if the error is a StorageError.
func IsStorageError(err error) bool {
	var e *StorageError
	return errors.As(err, &e)
}

// IsConstraintError returns true if the error resulted from a database
// constraint violation.
func IsConstraintError(err error) bool {
	return sqlgraph.IsConstraintError(err)
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("tabula: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}

func storageErr(table, op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Table: table, Op: op, Err: err}
}
