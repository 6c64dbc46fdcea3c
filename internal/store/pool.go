// Package store provides a pooled handle over a single local SQLite
// database file, with a schema-creation procedure run once when the file is
// first created and a scoped-transaction helper used by every component
// that mutates more than one row at a time.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// ErrFrozen is returned by WithTx once Freeze has been called.
var ErrFrozen = errors.New("store: database frozen, writes disabled")

// SchemaFunc creates the tables/indexes for a fresh database file. It runs
// inside a transaction and only once per database path, ever.
type SchemaFunc func(tx *sql.Tx) error

// Pool is a single-writer connection handle over one SQLite file.
type Pool struct {
	path string
	db   *sql.DB

	mu     sync.RWMutex
	frozen bool
}

// Open opens (and if necessary creates) the database at path, running
// createSchema exactly once if the file did not previously exist.
//
// SQLite serializes writers itself; Open additionally sets a busy timeout
// and enables WAL so concurrent readers never block on an in-flight write.
func Open(path string, createSchema SchemaFunc) (*Pool, error) {
	isFirstTime := !fileExists(path)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set WAL %q: %w", path, err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=30000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set busy_timeout %q: %w", path, err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set foreign_keys %q: %w", path, err)
	}

	p := &Pool{path: path, db: db}

	if isFirstTime && createSchema != nil {
		if err := p.WithTx(createSchema); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: create schema %q: %w", path, err)
		}
	}
	return p, nil
}

// DB returns the underlying *sql.DB for read-only queries. Callers must not
// issue multi-row writes through it directly; use WithTx instead.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// WithTx runs fn inside a transaction that commits on a nil return and
// rolls back otherwise. It is the only way to perform a multi-row mutation
// anywhere in this module.
func (p *Pool) WithTx(fn func(tx *sql.Tx) error) error {
	p.mu.RLock()
	frozen := p.frozen
	p.mu.RUnlock()
	if frozen {
		return ErrFrozen
	}

	tx, err := p.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Freeze severs writes for an emergency shutdown. Subsequent WithTx calls
// fail loudly with ErrFrozen. Reads through DB() continue to work against
// whatever connection remains open.
func (p *Pool) Freeze() {
	p.mu.Lock()
	p.frozen = true
	p.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (p *Pool) Frozen() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.frozen
}

// Close closes the underlying database handle.
func (p *Pool) Close() error {
	return p.db.Close()
}

func fileExists(path string) bool {
	info, err := osStat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
