// Package store is the durable, deduplicated request store. It owns the
// single requests table, the upsert/merge engine, and the maintenance
// passes (location-key backfill, signature dedup, canonicalization).
//
// The store is single-process and single-writer: every operation runs
// sequentially, each mutation inside one local transaction. Callers own
// the handle lifecycle: open at run start, Close on every exit path.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is the persisted timestamp form: RFC3339 UTC with a fixed
// nine-digit fraction so lexicographic order matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RequestStore is the SQLite-backed table of feed request records.
type RequestStore struct {
	db *sql.DB
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so row helpers can run
// inside or outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open creates the parent directory if needed, opens the SQLite database,
// applies pragmas, and runs migrations (including the in-place
// location_key column addition on older stores).
func Open(dbPath string) (*RequestStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &RequestStore{db: db}, nil
}

// enablePragmas sets SQLite pragmas for performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *RequestStore) Close() error {
	return s.db.Close()
}

// SnapshotTo writes a clean, self-contained copy of the database to
// destPath via VACUUM INTO, which is WAL-safe and runs to completion
// without blocking the handle. Any existing file at destPath is replaced.
func (s *RequestStore) SnapshotTo(ctx context.Context, destPath string) error {
	if dir := filepath.Dir(destPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create snapshot directory: %w", err)
		}
	}
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("replace snapshot file: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", destPath)); err != nil {
		return fmt.Errorf("vacuum into snapshot: %w", err)
	}
	return nil
}

// Count returns the number of live request records.
func (s *RequestStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM requests").Scan(&count)
	return count, err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func minTime(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}

func maxTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

// coalesce returns the first non-empty string: the first-writer-wins merge
// rule for attribution fields.
func coalesce(existing, incoming string) string {
	if existing != "" {
		return existing
	}
	return incoming
}
