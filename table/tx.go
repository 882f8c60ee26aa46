package table

import (
	"context"
	"fmt"

	"github.com/syssam/tableq"
	"github.com/syssam/tableq/dialect"
)

// WithTx runs the given function within a transaction.
// If the function returns an error, the transaction is rolled back.
// If the function panics, the transaction is rolled back and the panic is re-raised.
// Otherwise, the transaction is committed.
func WithTx(ctx context.Context, drv dialect.Driver, fn func(tx dialect.Tx) error) error {
	tx, err := drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("tableq: starting a transaction: %w", err)
	}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = fmt.Errorf("%w: %w", err, &tableq.RollbackError{Err: rerr})
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return tableq.NewQueryError("", "commit", err)
	}
	return nil
}

// WithTx runs fn with a copy of t bound to a new transaction, committed
// when fn returns nil.
//
//	err := orders.WithTx(ctx, func(ctx context.Context, tx *table.Table) error {
//	    if _, err := tx.Insert(ctx, table.Pairs{table.P("sku", sku)}); err != nil {
//	        return err
//	    }
//	    _, err := tx.Update(ctx, table.Pairs{table.P("state", "open")}, table.Pairs{table.P("sku", sku)})
//	    return err
//	})
func (t *Table) WithTx(ctx context.Context, fn func(ctx context.Context, tx *Table) error) error {
	drv, ok := t.drv.(dialect.Driver)
	if !ok {
		if _, ok := t.drv.(dialect.Tx); ok {
			return tableq.ErrTxStarted
		}
		return fmt.Errorf("tableq: %T does not support transactions", t.drv)
	}
	return WithTx(ctx, drv, func(tx dialect.Tx) error {
		return fn(ctx, t.Bind(tx))
	})
}

// inTx runs fn in a new transaction when t runs on a Driver, and directly
// when t is already bound to a transaction.
func (t *Table) inTx(ctx context.Context, fn func(ex dialect.ExecQuerier) error) error {
	drv, ok := t.drv.(dialect.Driver)
	if !ok {
		return fn(t.drv)
	}
	return WithTx(ctx, drv, func(tx dialect.Tx) error {
		return fn(tx)
	})
}
