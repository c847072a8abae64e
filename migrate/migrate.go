// Package migrate applies DDL migrations to the databases tabula works on.
// Tabula does not derive tables from declarations: the DDL is written by
// hand and versioned here.
package migrate

import (
	"database/sql"
	"fmt"

	sqlmigrate "github.com/rubenv/sql-migrate"

	"github.com/syssam/tabula/dialect"
)

// DefaultTable is the table recording the applied migrations.
const DefaultTable = "tabula_migrations"

// Migration is a single versioned schema change.
type Migration struct {
	ID   string
	Up   []string
	Down []string
}

// Migrator applies migrations to a database.
type Migrator struct {
	db      *sql.DB
	dialect string
	source  sqlmigrate.MigrationSource
	set     *sqlmigrate.MigrationSet
}

// Option configures a Migrator.
type Option func(*Migrator)

// WithTable sets the table recording the applied migrations.
func WithTable(name string) Option {
	return func(m *Migrator) {
		m.set.TableName = name
	}
}

// New returns a Migrator applying the given in-memory migrations.
func New(db *sql.DB, name string, migrations []Migration, opts ...Option) (*Migrator, error) {
	src := &sqlmigrate.MemoryMigrationSource{}
	for _, mg := range migrations {
		src.Migrations = append(src.Migrations, &sqlmigrate.Migration{Id: mg.ID, Up: mg.Up, Down: mg.Down})
	}
	return newMigrator(db, name, src, opts)
}

// NewFromDir returns a Migrator applying the .sql migrations found in dir.
func NewFromDir(db *sql.DB, name, dir string, opts ...Option) (*Migrator, error) {
	return newMigrator(db, name, sqlmigrate.FileMigrationSource{Dir: dir}, opts)
}

func newMigrator(db *sql.DB, name string, src sqlmigrate.MigrationSource, opts []Option) (*Migrator, error) {
	d, err := migrateDialect(name)
	if err != nil {
		return nil, err
	}
	m := &Migrator{
		db:      db,
		dialect: d,
		source:  src,
		set:     &sqlmigrate.MigrationSet{TableName: DefaultTable},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Up applies all pending migrations and returns how many were applied.
func (m *Migrator) Up() (int, error) {
	n, err := m.set.Exec(m.db, m.dialect, m.source, sqlmigrate.Up)
	if err != nil {
		return n, fmt.Errorf("migrate: up: %w", err)
	}
	return n, nil
}

// Down rolls back at most limit migrations, all of them if limit is 0.
func (m *Migrator) Down(limit int) (int, error) {
	n, err := m.set.ExecMax(m.db, m.dialect, m.source, sqlmigrate.Down, limit)
	if err != nil {
		return n, fmt.Errorf("migrate: down: %w", err)
	}
	return n, nil
}

// migrateDialect maps a tabula dialect to the sql-migrate dialect name.
func migrateDialect(name string) (string, error) {
	switch name {
	case dialect.SQLite:
		return "sqlite3", nil
	case dialect.Postgres:
		return "postgres", nil
	case dialect.MySQL:
		return "mysql", nil
	}
	return "", fmt.Errorf("migrate: unsupported dialect %q", name)
}
