package lisp

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const storeSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	op          TEXT    NOT NULL,
	source      TEXT    NOT NULL,
	output      TEXT    NOT NULL,
	result      TEXT    NOT NULL,
	errors      TEXT    NOT NULL,
	started_at  TEXT    NOT NULL,
	duration_ms INTEGER NOT NULL
)`

// Store keeps a persistent transcript of program runs in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// OpenStore opens (or creates) the transcript database at path.
// ":memory:" gives a private in-memory store.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	// An in-memory database exists per connection; pin the pool to one.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends t and sets t.ID.
func (s *Store) Record(t *Trace) error {
	errs, err := json.Marshal(t.Errors)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	res, err := s.db.Exec(
		`INSERT INTO runs (op, source, output, result, errors, started_at, duration_ms) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.Op, t.Source, t.Output, t.Result, string(errs), t.Timestamp, t.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	t.ID = id
	return nil
}

// Recent returns up to limit runs, oldest first. limit <= 0 means all.
func (s *Store) Recent(limit int) ([]Trace, error) {
	query := `SELECT id, op, source, output, result, errors, started_at, duration_ms FROM runs ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var traces []Trace
	for rows.Next() {
		var t Trace
		var errs string
		var ms int64
		if err := rows.Scan(&t.ID, &t.Op, &t.Source, &t.Output, &t.Result, &errs, &t.Timestamp, &ms); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(errs), &t.Errors); err != nil {
			return nil, fmt.Errorf("decode errors of run %d: %w", t.ID, err)
		}
		t.Duration = time.Duration(ms) * time.Millisecond
		traces = append(traces, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	// Reverse into chronological order.
	for i, j := 0, len(traces)-1; i < j; i, j = i+1, j-1 {
		traces[i], traces[j] = traces[j], traces[i]
	}
	return traces, nil
}

// Clear deletes every recorded run.
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM runs`); err != nil {
		return fmt.Errorf("clear runs: %w", err)
	}
	return nil
}
