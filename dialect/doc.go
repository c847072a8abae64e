// Package dialect defines the database capability set consumed by tabula.
//
// Entities and collections never open connections or transactions on their
// own. They are handed an ExecQuerier (a Driver or a Tx) by the caller and
// issue statements through it.
//
// # Dialect Constants
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// # Driver Interface
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// # Transaction Interface
//
//	type Tx interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Commit() error
//	    Rollback() error
//	    Dialect() string
//	}
//
// Wrapping a cascading save in a transaction is the caller's job:
//
//	tx, err := drv.Tx(ctx)
//	if err != nil {
//	    return err
//	}
//	if _, err := author.Save(ctx, tx); err != nil {
//	    return errors.Join(err, tx.Rollback())
//	}
//	return tx.Commit()
//
// # Sub-packages
//
//   - dialect/sql: database/sql driver, statement builders and value quoting
//   - dialect/sql/sqlgraph: constraint error classification
package dialect
