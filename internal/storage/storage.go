// Package storage implements the storage backend (C4): the SQLite-backed
// repository for dataset metadata, per-file documentation, and the FTS5
// search index, fronted by golang-migrate the way the teacher's
// internal/storage/migrate manages schema evolution. Backend is the only
// exported type; every operation takes a context and is safe for
// concurrent use.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/codequery/engine/internal/codequeryerr"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Config controls pool sizing and the query-level busy timeout. The spec's
// "fixed-size pool of connections protected by a FIFO wait with a bounded
// timeout" is realized as MaxOpenConns (database/sql's own pool) plus an
// admission semaphore in front of it, since database/sql already pools
// connections internally and a second, parallel pool would fight it.
type Config struct {
	MaxOpenConns  int
	QueueTimeout  time.Duration
	BusyTimeout   time.Duration
}

// DefaultConfig returns spec.md §5's documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns: 8,
		QueueTimeout: 5 * time.Second,
		BusyTimeout:  5 * time.Second,
	}
}

// Backend wraps the SQLite connection pool and admission semaphore.
type Backend struct {
	db   *sql.DB
	cfg  Config
	admit chan struct{}
}

// Open opens (and creates, if absent) the SQLite database at path, applies
// pragmas, runs migrations to the latest version, and returns a ready
// Backend. Callers must Close it.
func Open(ctx context.Context, path string, cfg Config) (*Backend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", codequeryerr.ErrStorage, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout.Milliseconds()),
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: apply pragma %q: %v", codequeryerr.ErrStorage, p, err)
		}
	}

	b := &Backend{
		db:    db,
		cfg:   cfg,
		admit: make(chan struct{}, cfg.MaxOpenConns),
	}

	if err := b.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return b, nil
}

// migrate applies every pending migration in migrations/, naming the
// golang-migrate bookkeeping table "schema_version" to match the logical
// schema table spec.md names.
func (b *Backend) migrate() error {
	driver, err := sqlite3.WithInstance(b.db, &sqlite3.Config{MigrationsTable: "schema_version"})
	if err != nil {
		return fmt.Errorf("%w: migration driver: %v", codequeryerr.ErrStorage, err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("%w: migration source: %v", codequeryerr.ErrStorage, err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("%w: migration instance: %v", codequeryerr.ErrStorage, err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("%w: apply migrations: %v", codequeryerr.ErrStorage, err)
	}
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		return fmt.Errorf("%w: close migration source: %v", codequeryerr.ErrStorage, srcErr)
	}
	if dbErr != nil {
		return fmt.Errorf("%w: close migration driver: %v", codequeryerr.ErrStorage, dbErr)
	}
	return nil
}

// Close releases the underlying connection pool.
func (b *Backend) Close() error {
	return b.db.Close()
}

// acquire blocks until an admission slot is free or cfg.QueueTimeout
// elapses, implementing the bounded FIFO wait spec.md §5 requires in front
// of the pool.
func (b *Backend) acquire(ctx context.Context) error {
	timeout := b.cfg.QueueTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	acqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case b.admit <- struct{}{}:
		return nil
	case <-acqCtx.Done():
		return fmt.Errorf("%w: pool admission timeout", codequeryerr.ErrStorage)
	}
}

func (b *Backend) release() {
	<-b.admit
}

// Tx is a scoped handle returned by Transaction, exposing the same
// operation surface as Backend but bound to a single *sql.Tx.
type Tx struct {
	tx *sql.Tx
}

// Transaction runs fn within a single SQLite transaction, committing on a
// nil return and rolling back otherwise. Used by insert_documentation_batch
// to satisfy P5 (fork/batch atomicity).
func (b *Backend) Transaction(ctx context.Context, fn func(*Tx) error) error {
	if err := b.acquire(ctx); err != nil {
		return err
	}
	defer b.release()

	sqlTx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", codequeryerr.ErrStorage, err)
	}
	if err := fn(&Tx{tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: commit transaction: %v", codequeryerr.ErrStorage, err)
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx, letting the operation
// functions in the other files of this package run against either.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (b *Backend) q() querier { return b.db }
func (t *Tx) q() querier      { return t.tx }
