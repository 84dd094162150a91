// Package logsink provides the append-only structured log store. It lives in
// its own database with a lifecycle independent of the coordination store:
// losing log entries must never affect task state, and vice versa.
package logsink

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ShayCichocki/drover/pkg/models"
)

// Sink writes append-only log entries to its backing database.
type Sink struct {
	db      *sql.DB
	ownerID string
}

// Writer is the narrow interface consumed by the worker runner.
type Writer interface {
	Write(taskID string, level models.LogLevel, message string, metadata map[string]any) error
}

// Open opens (or creates) the log sink at the given path for the given
// owner identity.
func Open(path, ownerID string) (*Sink, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open log database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS log_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id TEXT NOT NULL,
			task_id TEXT,
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			timestamp DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_log_entries_task_id ON log_entries(task_id);
		CREATE INDEX IF NOT EXISTS idx_log_entries_level ON log_entries(level)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create log_entries table: %w", err)
	}

	return &Sink{db: db, ownerID: ownerID}, nil
}

// Write appends one log entry. An empty taskID records a worker-level entry.
func (s *Sink) Write(taskID string, level models.LogLevel, message string, metadata map[string]any) error {
	meta := metadata
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal log metadata: %w", err)
	}

	var tid any
	if taskID != "" {
		tid = taskID
	}

	_, err = s.db.Exec(`
		INSERT INTO log_entries (owner_id, task_id, level, message, metadata, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.ownerID, tid, string(level), message, string(raw), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert log entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first, optionally filtered by
// task. Used by the status command.
func (s *Sink) Recent(taskID string, limit int) ([]models.LogEntry, error) {
	query := `
		SELECT owner_id, COALESCE(task_id, ''), level, message, metadata, timestamp
		FROM log_entries
	`
	args := []any{}
	if taskID != "" {
		query += " WHERE task_id = ?"
		args = append(args, taskID)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query log entries: %w", err)
	}
	defer rows.Close()

	var entries []models.LogEntry
	for rows.Next() {
		var (
			e        models.LogEntry
			level    string
			meta, ts string
		)
		if err := rows.Scan(&e.OwnerID, &e.TaskID, &level, &e.Message, &meta, &ts); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		e.Level = models.LogLevel(level)
		if meta != "" {
			json.Unmarshal([]byte(meta), &e.Metadata)
		}
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			e.Timestamp = t
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Close closes the log database.
func (s *Sink) Close() error {
	return s.db.Close()
}

// Verify Sink implements Writer at compile time.
var _ Writer = (*Sink)(nil)
