// Package dbx provides tiny DB abstractions shared by stores:
// a minimal interface (DBTX) implemented by both *sql.DB and *sql.Tx,
// and helpers to run functions inside a transaction.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql used by our stores.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx is a transaction that can be ended exactly once.
type Tx interface {
	Commit() error
	Rollback() error
}

// Begin starts a transaction that is not tied to ctx cancellation.
// database/sql rolls a transaction back in the background once its context
// is done; detaching keeps ending the transaction under the caller's
// control, so a rollback has completed by the time an error is returned.
// Statements executed inside the transaction should still receive ctx.
func Begin(ctx context.Context, db *sql.DB, opts *sql.TxOptions) (*sql.Tx, error) {
	return db.BeginTx(context.WithoutCancel(ctx), opts)
}

// InTx calls begin, runs fn with the transaction and commits on success.
// It rolls back when fn returns an error, when fn panics (the panic is
// rethrown) and when ctx is done before the commit.
func InTx[T Tx](ctx context.Context, begin func(context.Context) (T, error), fn func(ctx context.Context, tx T) error) (err error) {
	tx, err := begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}

// WithTx begins a detached transaction on db, runs fn with a transactional
// handle, and then commits on success or rolls back on error/panic.
//
// Typical use:
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    // use tx instead of db
//	    _, err := tx.ExecContext(ctx, "UPDATE ...")
//	    return err
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) error {
	begin := func(ctx context.Context) (*sql.Tx, error) { return Begin(ctx, db, opts) }
	return InTx(ctx, begin, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, tx)
	})
}
