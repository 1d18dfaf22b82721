package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Beginner starts transactions. *pgxpool.Pool and *pgx.Conn satisfy it.
type Beginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// WithTx executes a function within a transaction using the RepeatableRead isolation level.
func WithTx(ctx context.Context, db Beginner, fn func(pgx.Tx) error) error {
	return WithTxOptions(ctx, db, pgx.TxOptions{IsoLevel: pgx.RepeatableRead}, fn)
}

// WithReadOnlyTx executes fn inside a read-only RepeatableRead transaction so every
// statement observes the same snapshot.
func WithReadOnlyTx(ctx context.Context, db Beginner, fn func(pgx.Tx) error) error {
	return WithTxOptions(ctx, db, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, fn)
}

// WithTxOptions executes fn within a transaction started with opts. The transaction is
// rolled back on every path that does not reach Commit.
func WithTxOptions(ctx context.Context, db Beginner, opts pgx.TxOptions, fn func(pgx.Tx) error) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

// Advisory lock keys. Each key guards one kind of writer.
const (
	LockKeySchema int64 = 0x706f735f736368 // "pos_sch"
	LockKeyLedger int64 = 0x706f735f6c6564 // "pos_led"
)

// Execer runs a statement without returning rows. pgx.Tx satisfies it.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// AdvisoryXactLock blocks until the transaction-scoped advisory lock for key is held.
// The lock is released when the surrounding transaction ends.
func AdvisoryXactLock(ctx context.Context, tx Execer, key int64) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", key); err != nil {
		return fmt.Errorf("platform/db: advisory lock %d: %w", key, err)
	}
	return nil
}
