// Package store implements the persistent document store for groupscribe.
// Bot clients, chats and message fragments live in a single SQLite database;
// multi-entity mutations run inside an explicit unit-of-work transaction.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Queryer is the unit-of-work handle threaded through every store call.
// Both *sql.DB and *sql.Tx satisfy it, so the same data-access code runs
// inside and outside a transaction without stashing transaction state
// anywhere.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store owns the SQLite connection.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// OpenMemory opens an in-memory database, used by tests.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}
	// A single connection keeps the in-memory database alive and visible
	// across the pool.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the raw connection as a Queryer for non-transactional reads.
func (s *Store) DB() Queryer { return s.db }

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

const txAttempts = 5

// ExecTx runs fn inside a transaction. Contention with another
// writer surfaces as a busy/locked error; the whole unit of work is retried
// a bounded number of times so concurrent admissions serialize instead of
// failing.
func (s *Store) ExecTx(ctx context.Context, fn func(q Queryer) error) error {
	var lastErr error
	for attempt := 0; attempt < txAttempts; attempt++ {
		err := s.runTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !isBusy(err) {
			return err
		}
		lastErr = err
		select {
		case <-time.After(time.Duration(attempt+1) * 20 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("transaction retries exhausted: %w", lastErr)
}

func (s *Store) runTx(ctx context.Context, fn func(q Queryer) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "busy") || strings.Contains(msg, "locked")
}
