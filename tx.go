package tabula

import (
	"context"
	"errors"
	"fmt"

	"github.com/syssam/tabula/dialect"
)

// WithTx runs fn in a transaction of drv. The transaction is committed if
// fn returns nil, and rolled back if it returns an error or panics.
//
//	err := tabula.WithTx(ctx, drv, func(tx dialect.Tx) error {
//	    _, err := author.Save(ctx, tx)
//	    return err
//	})
//
// The in-memory state of the entities saved by fn is not rolled back.
func WithTx(ctx context.Context, drv dialect.Driver, fn func(tx dialect.Tx) error) (err error) {
	tx, err := drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("tabula: starting a transaction: %w", err)
	}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = errors.Join(err, &RollbackError{Err: rerr})
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("tabula: committing transaction: %w", err)
	}
	return nil
}
