// Package history persists a record of every finished call in a SQLite
// database so past calls can be listed from the CLI.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS calls (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	call_id     TEXT NOT NULL,
	method      TEXT NOT NULL,
	endpoint    TEXT NOT NULL,
	status      INTEGER NOT NULL DEFAULT 0,
	success     INTEGER NOT NULL,
	error_kind  TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	duration_us INTEGER NOT NULL,
	started_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_calls_started_at ON calls (started_at);
`

// Entry is one recorded call
type Entry struct {
	ID        int64
	CallID    string
	Method    string
	Endpoint  string
	Status    int
	Success   bool
	ErrorKind string
	Error     string
	Duration  time.Duration
	StartedAt time.Time
}

// Store is a SQLite-backed call log
type Store struct {
	db           *sql.DB
	path         string
	queryTimeout time.Duration
}

// Open opens (creating if needed) the history database at path. Both plain
// paths and sqlite:// or sqlite: prefixed paths are accepted.
func Open(path string) (*Store, error) {
	dsn, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db, path: dsn, queryTimeout: 30 * time.Second}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Insert stores e and returns its row id.
func (s *Store) Insert(ctx context.Context, e Entry) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO calls (call_id, method, endpoint, status, success, error_kind, error, duration_us, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.CallID, e.Method, e.Endpoint, e.Status, e.Success, e.ErrorKind, e.Error,
		e.Duration.Microseconds(), e.StartedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert failed: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to n entries, newest first. n <= 0 returns every entry.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := `SELECT id, call_id, method, endpoint, status, success, error_kind, error, duration_us, started_at
		FROM calls ORDER BY id DESC`
	args := []any{}
	if n > 0 {
		query += " LIMIT ?"
		args = append(args, n)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			e          Entry
			durationUs int64
		)
		if err := rows.Scan(&e.ID, &e.CallID, &e.Method, &e.Endpoint, &e.Status, &e.Success,
			&e.ErrorKind, &e.Error, &durationUs, &e.StartedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		e.Duration = time.Duration(durationUs) * time.Microsecond
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

// Clear deletes every entry and reports how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM calls`)
	if err != nil {
		return 0, fmt.Errorf("delete failed: %w", err)
	}
	return res.RowsAffected()
}

func parsePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	switch {
	case strings.HasPrefix(path, "sqlite://"):
		path = strings.TrimPrefix(path, "sqlite://")
	case strings.HasPrefix(path, "sqlite:"):
		path = strings.TrimPrefix(path, "sqlite:")
	case strings.Contains(path, "://"):
		return "", fmt.Errorf("unsupported history database: %s", path)
	}
	if path == "" {
		return "", fmt.Errorf("history database path is empty")
	}
	return path, nil
}
