// Package sqlgraph classifies errors reported by the SQL drivers.
package sqlgraph

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ConstraintKind identifies the constraint violated by a statement.
type ConstraintKind int

// Constraint kinds.
const (
	NoConstraint ConstraintKind = iota
	UniqueConstraint
	ForeignKeyConstraint
	CheckConstraint
	NotNullConstraint
)

// String implements fmt.Stringer.
func (k ConstraintKind) String() string {
	switch k {
	case UniqueConstraint:
		return "unique"
	case ForeignKeyConstraint:
		return "foreign key"
	case CheckConstraint:
		return "check"
	case NotNullConstraint:
		return "not null"
	default:
		return "none"
	}
}

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgNotNullViolation    = "23502"
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlBadNull                = 1048
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// Classify returns the constraint kind err resulted from, or NoConstraint.
func Classify(err error) ConstraintKind {
	if err == nil {
		return NoConstraint
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fromSQLState(pgErr.Code)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fromSQLState(string(pqErr.Code))
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry:
			return UniqueConstraint
		case mysqlForeignKeyParent, mysqlForeignKeyChild:
			return ForeignKeyConstraint
		case mysqlCheckConstraintViolate:
			return CheckConstraint
		case mysqlBadNull:
			return NotNullConstraint
		}
		return NoConstraint
	}
	// SQLite drivers only expose the message text.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return UniqueConstraint
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return ForeignKeyConstraint
	case strings.Contains(msg, "CHECK constraint failed"):
		return CheckConstraint
	case strings.Contains(msg, "NOT NULL constraint failed"):
		return NotNullConstraint
	}
	return NoConstraint
}

func fromSQLState(code string) ConstraintKind {
	switch code {
	case pgUniqueViolation:
		return UniqueConstraint
	case pgForeignKeyViolation:
		return ForeignKeyConstraint
	case pgCheckViolation:
		return CheckConstraint
	case pgNotNullViolation:
		return NotNullConstraint
	}
	return NoConstraint
}

// IsConstraintError returns true if the error resulted from a database constraint violation.
func IsConstraintError(err error) bool {
	return Classify(err) != NoConstraint
}

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
func IsUniqueConstraintError(err error) bool {
	return Classify(err) == UniqueConstraint
}

// IsForeignKeyConstraintError reports if the error resulted from a database foreign-key constraint violation.
func IsForeignKeyConstraintError(err error) bool {
	return Classify(err) == ForeignKeyConstraint
}

// IsCheckConstraintError reports if the error resulted from a database check constraint violation.
func IsCheckConstraintError(err error) bool {
	return Classify(err) == CheckConstraint
}
