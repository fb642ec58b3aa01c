// Package history keeps a local log of applied updates in SQLite.
//
// The log is diagnostic: recording failures are reported to the caller so
// they can be logged, but an update is never rejected because its history
// row could not be written.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver" // SQLite driver for database/sql
	_ "github.com/ncruces/go-sqlite3/embed"  // Embed SQLite for cross-platform compatibility
)

const schema = `
CREATE TABLE IF NOT EXISTS updates (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	applied_at    TIMESTAMP NOT NULL,
	changed_paths TEXT NOT NULL,
	skipped_paths TEXT NOT NULL,
	commit_sha    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_updates_applied_at ON updates(applied_at DESC);
`

// Entry is one recorded update.
type Entry struct {
	ID           int64     `json:"id"`
	AppliedAt    time.Time `json:"applied_at"`
	ChangedPaths []string  `json:"changed_paths"`
	SkippedPaths []string  `json:"skipped_paths"`
	CommitSHA    string    `json:"commit_sha,omitempty"`
}

// Recorder owns the history database.
type Recorder struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}
	return &Recorder{db: db}, nil
}

// Close closes the underlying database.
func (r *Recorder) Close() error {
	return r.db.Close()
}

// Record appends an entry to the log. AppliedAt defaults to now when unset.
func (r *Recorder) Record(ctx context.Context, e Entry) error {
	if e.AppliedAt.IsZero() {
		e.AppliedAt = time.Now().UTC()
	}

	changed, err := json.Marshal(e.ChangedPaths)
	if err != nil {
		return fmt.Errorf("encode changed paths: %w", err)
	}
	skipped, err := json.Marshal(e.SkippedPaths)
	if err != nil {
		return fmt.Errorf("encode skipped paths: %w", err)
	}

	const q = `INSERT INTO updates (applied_at, changed_paths, skipped_paths, commit_sha) VALUES (?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, q, e.AppliedAt, string(changed), string(skipped), e.CommitSHA); err != nil {
		return fmt.Errorf("record update: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	const q = `SELECT id, applied_at, changed_paths, skipped_paths, commit_sha FROM updates ORDER BY applied_at DESC, id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var changed, skipped string
		if err := rows.Scan(&entry.ID, &entry.AppliedAt, &changed, &skipped, &entry.CommitSHA); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		if err := json.Unmarshal([]byte(changed), &entry.ChangedPaths); err != nil {
			return nil, fmt.Errorf("decode changed paths: %w", err)
		}
		if err := json.Unmarshal([]byte(skipped), &entry.SkippedPaths); err != nil {
			return nil, fmt.Errorf("decode skipped paths: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
