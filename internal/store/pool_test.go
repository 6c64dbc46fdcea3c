package store

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func createCounterSchema(tx *sql.Tx) error {
	_, err := tx.Exec(`CREATE TABLE counter (id INTEGER PRIMARY KEY, n INTEGER NOT NULL)`)
	return err
}

func TestOpenRunsSchemaOnlyOnFirstOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.sqlite3")

	calls := 0
	schema := func(tx *sql.Tx) error {
		calls++
		return createCounterSchema(tx)
	}

	p1, err := Open(path, schema)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	p1.Close()

	p2, err := Open(path, schema)
	if err != nil {
		t.Fatalf("re-Open: %v", err)
	}
	defer p2.Close()

	if calls != 1 {
		t.Fatalf("schema ran %d times, want 1", calls)
	}
}

func TestWithTxCommitsOnSuccessAndRollsBackOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.sqlite3")
	p, err := Open(path, createCounterSchema)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	if err := p.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO counter (id, n) VALUES (1, 10)`)
		return err
	}); err != nil {
		t.Fatalf("WithTx insert: %v", err)
	}

	wantErr := sql.ErrNoRows
	err = p.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO counter (id, n) VALUES (2, 20)`); err != nil {
			return err
		}
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("WithTx = %v, want %v", err, wantErr)
	}

	var count int
	if err := p.DB().QueryRow(`SELECT COUNT(*) FROM counter`).Scan(&count); err != nil {
		t.Fatalf("QueryRow: %v", err)
	}
	if count != 1 {
		t.Fatalf("counter rows = %d, want 1 (failed tx must roll back)", count)
	}
}

func TestFreezeRejectsFurtherWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.sqlite3")
	p, err := Open(path, createCounterSchema)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	if p.Frozen() {
		t.Fatal("expected a fresh pool to not be frozen")
	}
	p.Freeze()
	if !p.Frozen() {
		t.Fatal("expected Frozen() to report true after Freeze()")
	}

	err = p.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO counter (id, n) VALUES (1, 10)`)
		return err
	})
	if err != ErrFrozen {
		t.Fatalf("WithTx after Freeze = %v, want ErrFrozen", err)
	}
}
