// Package schema owns the structural lifecycle of the ledger store: creating the
// bills and bill_items tables on first use and rebuilding them when the schema
// version increases.
//
// Upgrades are destructive. Migrate drops both tables and recreates them, so every
// recorded bill is discarded when the version is bumped.
package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
)

var (
	// ErrDowngrade is returned when the stored schema is newer than the requested version.
	ErrDowngrade = errors.New("schema: stored version is newer than requested")
	// ErrInvalidVersion is returned for non-positive versions or non-increasing migrations.
	ErrInvalidVersion = errors.New("schema: invalid version")
)

// Executor runs DDL and single-row queries. pgx.Tx satisfies it.
type Executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Runner executes fn inside one transaction.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, ex Executor) error) error
}

// PoolRunner runs schema work on a pgx pool.
type PoolRunner struct {
	pool db.Beginner
}

// NewPoolRunner wraps a pool.
func NewPoolRunner(pool *pgxpool.Pool) *PoolRunner {
	return &PoolRunner{pool: pool}
}

// RunInTx implements Runner.
func (r *PoolRunner) RunInTx(ctx context.Context, fn func(ctx context.Context, ex Executor) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, tx)
	})
}

// Manager creates and migrates the ledger schema.
type Manager struct {
	runner Runner
	logger *slog.Logger
}

// NewManager constructs a schema manager.
func NewManager(runner Runner, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{runner: runner, logger: logger}
}

// Initialize ensures the schema exists at version. It is safe to call on every start:
// a matching stored version only re-runs the idempotent CREATE statements, an older
// one triggers a destructive rebuild, and a newer one fails with ErrDowngrade.
func (m *Manager) Initialize(ctx context.Context, version int) error {
	if version < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidVersion, version)
	}
	return m.runner.RunInTx(ctx, func(ctx context.Context, ex Executor) error {
		stored, err := m.lockAndRead(ctx, ex)
		if err != nil {
			return err
		}

		switch {
		case stored == 0:
			if err := execAll(ctx, ex, createStatements); err != nil {
				return err
			}
			if err := writeVersion(ctx, ex, version); err != nil {
				return err
			}
			m.logger.Info("schema created", slog.Int("version", version))
		case stored == version:
			if err := execAll(ctx, ex, createStatements); err != nil {
				return err
			}
			m.logger.Debug("schema up to date", slog.Int("version", version))
		case stored < version:
			if err := m.rebuild(ctx, ex, stored, version); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: stored %d, requested %d", ErrDowngrade, stored, version)
		}
		return nil
	})
}

// Migrate moves the schema from oldVersion to newVersion by dropping and recreating
// every ledger table. All rows are lost. The stored version must equal oldVersion.
func (m *Manager) Migrate(ctx context.Context, oldVersion, newVersion int) error {
	if oldVersion < 0 || newVersion <= oldVersion {
		return fmt.Errorf("%w: migrate %d -> %d", ErrInvalidVersion, oldVersion, newVersion)
	}
	return m.runner.RunInTx(ctx, func(ctx context.Context, ex Executor) error {
		stored, err := m.lockAndRead(ctx, ex)
		if err != nil {
			return err
		}
		if stored != oldVersion {
			return fmt.Errorf("%w: stored %d, migrate from %d", ErrInvalidVersion, stored, oldVersion)
		}
		return m.rebuild(ctx, ex, oldVersion, newVersion)
	})
}

// Rebuild drops and recreates the tables at the given version regardless of what is
// stored. Used by operators to wipe a terminal.
func (m *Manager) Rebuild(ctx context.Context, version int) error {
	if version < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidVersion, version)
	}
	return m.runner.RunInTx(ctx, func(ctx context.Context, ex Executor) error {
		stored, err := m.lockAndRead(ctx, ex)
		if err != nil {
			return err
		}
		return m.rebuild(ctx, ex, stored, version)
	})
}

// Version reports the stored schema version, or 0 when the store is uninitialised.
func (m *Manager) Version(ctx context.Context) (int, error) {
	var version int
	err := m.runner.RunInTx(ctx, func(ctx context.Context, ex Executor) error {
		if _, err := ex.Exec(ctx, createMetaTable); err != nil {
			return fmt.Errorf("schema: create meta table: %w", err)
		}
		v, err := readVersion(ctx, ex)
		if err != nil {
			return err
		}
		version = v
		return nil
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

func (m *Manager) lockAndRead(ctx context.Context, ex Executor) (int, error) {
	if err := db.AdvisoryXactLock(ctx, ex, db.LockKeySchema); err != nil {
		return 0, fmt.Errorf("schema: %w", err)
	}
	if _, err := ex.Exec(ctx, createMetaTable); err != nil {
		return 0, fmt.Errorf("schema: create meta table: %w", err)
	}
	return readVersion(ctx, ex)
}

func (m *Manager) rebuild(ctx context.Context, ex Executor, oldVersion, newVersion int) error {
	m.logger.Warn("schema rebuild discards all bills",
		slog.Int("from_version", oldVersion),
		slog.Int("to_version", newVersion),
	)
	if err := execAll(ctx, ex, dropStatements); err != nil {
		return err
	}
	if err := execAll(ctx, ex, createStatements); err != nil {
		return err
	}
	return writeVersion(ctx, ex, newVersion)
}

func readVersion(ctx context.Context, ex Executor) (int, error) {
	var version int
	err := ex.QueryRow(ctx, selectVersion).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("schema: read version: %w", err)
	}
	return version, nil
}

func writeVersion(ctx context.Context, ex Executor, version int) error {
	if _, err := ex.Exec(ctx, upsertVersion, version); err != nil {
		return fmt.Errorf("schema: write version: %w", err)
	}
	return nil
}

func execAll(ctx context.Context, ex Executor, statements []string) error {
	for _, stmt := range statements {
		if _, err := ex.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema: exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(stmt string) string {
	for i, r := range stmt {
		if r == '\n' {
			return stmt[:i]
		}
	}
	return stmt
}
