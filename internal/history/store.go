// Package history is the append-only operation journal: every sync,
// status transition, verification round, completion recording, and
// failure is recorded in a SQLite database so an operator can audit
// what the pipeline did and when.
//
// History is supporting infrastructure, not core state — when the
// database cannot be opened the rest of the system keeps working and
// logs a warning. Uses modernc.org/sqlite (pure Go, no cgo).
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeNow is a package-level variable for testability.
var timeNow = time.Now

// Operation names recorded in the journal.
const (
	OpSync     = "sync"
	OpSchedule = "schedule"
	OpStatus   = "set_status"
	OpVerify   = "verify_round"
	OpDocument = "document"
	OpRepair   = "repair"
)

// Entry is one journal record.
type Entry struct {
	ID        int64  `json:"id"`
	Operation string `json:"operation"`
	TaskID    string `json:"task_id,omitempty"`
	Outcome   string `json:"outcome"` // "ok" or "failed"
	Detail    string `json:"detail,omitempty"`
	CreatedAt string `json:"created_at"`
}

// Store wraps the journal database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the journal at path, applying pragmas and the
// schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("history: create data dir: %w", err)
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("history: pragma %q: %w", p, err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS journal (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			operation  TEXT NOT NULL,
			task_id    TEXT,
			outcome    TEXT NOT NULL,
			detail     TEXT,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_journal_task    ON journal(task_id);
		CREATE INDEX IF NOT EXISTS idx_journal_created ON journal(created_at DESC);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: migration: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends one entry. Nil-receiver safe: callers may hold a nil
// store when history is disabled.
func (s *Store) Record(operation, taskID, outcome, detail string) error {
	if s == nil {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT INTO journal (operation, task_id, outcome, detail, created_at) VALUES (?, ?, ?, ?, ?)`,
		operation, nullable(taskID), outcome, nullable(detail),
		timeNow().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("history: record %s: %w", operation, err)
	}
	return nil
}

// Ok records a successful operation.
func (s *Store) Ok(operation, taskID, detail string) error {
	return s.Record(operation, taskID, "ok", detail)
}

// Failed records a failed operation.
func (s *Store) Failed(operation, taskID, detail string) error {
	return s.Record(operation, taskID, "failed", detail)
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, operation, COALESCE(task_id, ''), outcome, COALESCE(detail, ''), created_at
		 FROM journal ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query recent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Operation, &e.TaskID, &e.Outcome, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("history: scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ForTask returns all entries for one task, oldest first.
func (s *Store) ForTask(taskID string) ([]Entry, error) {
	if s == nil {
		return nil, nil
	}
	rows, err := s.db.Query(
		`SELECT id, operation, COALESCE(task_id, ''), outcome, COALESCE(detail, ''), created_at
		 FROM journal WHERE task_id = ? ORDER BY id ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("history: query task %s: %w", taskID, err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Operation, &e.TaskID, &e.Outcome, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("history: scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
