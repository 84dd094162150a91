package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/drover/pkg/models"
)

// CreateTask inserts a new task. An empty ID is filled with a fresh UUID.
// Tasks are normally created by the task-intake front end; this exists for
// the CLI and for tests.
func (s *Store) CreateTask(t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure()

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = models.TaskStatusPending
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	meta, err := json.Marshal(metadataOrEmpty(t.Metadata))
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.conn.Exec(`
		INSERT INTO tasks (id, owner_id, title, description, status, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.OwnerID, t.Title, t.Description, string(t.Status), string(meta),
		formatTime(t.CreatedAt), formatTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}

	return nil
}

// GetTask retrieves a task by ID. Returns nil when no task matches.
func (s *Store) GetTask(id string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure()

	row := s.conn.QueryRow(`
		SELECT id, COALESCE(owner_id, ''), title, COALESCE(description, ''),
		       status, metadata, created_at, COALESCE(updated_at, created_at)
		FROM tasks
		WHERE id = ?
	`, id)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// ListRecent returns up to limit tasks, most recently touched first.
func (s *Store) ListRecent(limit int) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure()

	rows, err := s.conn.Query(`
		SELECT id, COALESCE(owner_id, ''), title, COALESCE(description, ''),
		       status, metadata, created_at, COALESCE(updated_at, created_at)
		FROM tasks
		ORDER BY COALESCE(updated_at, created_at) DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}

	return tasks, rows.Err()
}

// ClaimNext atomically assigns the most recently touched claimable task to
// the given worker and returns it. A task is claimable when it is pending
// and unowned, or when this same worker already holds it in a non-terminal
// state (crash recovery). Tasks claimed by other workers are invisible, so
// two workers can never execute the same task. Returns (nil, nil) when
// nothing is claimable.
func (s *Store) ClaimNext(workerID string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure()

	row := s.conn.QueryRow(`
		UPDATE tasks
		SET status = 'assigned', owner_id = ?1, updated_at = ?2
		WHERE id = (
			SELECT id FROM tasks
			WHERE (status = 'pending' AND (owner_id IS NULL OR owner_id = ''))
			   OR (owner_id = ?1 AND status IN ('assigned', 'in_progress'))
			ORDER BY COALESCE(updated_at, created_at) DESC
			LIMIT 1
		)
		RETURNING id, COALESCE(owner_id, ''), title, COALESCE(description, ''),
		          status, metadata, created_at, COALESCE(updated_at, created_at)
	`, workerID, formatTime(time.Now()))

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next task: %w", err)
	}
	return task, nil
}

// UpdateTaskStatus advances a task's status and merges metadata into the
// existing bag via JSON union. The merge is additive: existing keys not named
// in metadata survive. Zero matched rows and backward transitions are silent
// no-ops, so a finished task is never clobbered by a stale writer.
func (s *Store) UpdateTaskStatus(taskID string, status models.TaskStatus, metadata map[string]any) error {
	return s.Transaction(func(tx *sql.Tx) error {
		var (
			current models.TaskStatus
			raw     string
		)
		row := tx.QueryRow("SELECT status, metadata FROM tasks WHERE id = ?", taskID)
		if err := row.Scan(&current, &raw); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("read task %s: %w", taskID, err)
		}

		if !current.CanAdvanceTo(status) {
			return nil
		}

		merged, err := mergeMetadata(raw, metadata)
		if err != nil {
			return fmt.Errorf("merge metadata: %w", err)
		}

		_, err = tx.Exec(`
			UPDATE tasks SET status = ?, metadata = ?, updated_at = ? WHERE id = ?
		`, string(status), merged, formatTime(time.Now()), taskID)
		if err != nil {
			return fmt.Errorf("update task %s: %w", taskID, err)
		}
		return nil
	})
}

// UpdateTaskResponse stores the final human-readable result under the
// response metadata key, with bookkeeping for who wrote it and when. If the
// metadata write fails, it falls back to touching only the update timestamp.
func (s *Store) UpdateTaskResponse(taskID, ownerID, responseText string) error {
	now := time.Now()
	err := s.Transaction(func(tx *sql.Tx) error {
		var raw string
		row := tx.QueryRow("SELECT metadata FROM tasks WHERE id = ?", taskID)
		if err := row.Scan(&raw); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("read task %s: %w", taskID, err)
		}

		merged, err := mergeMetadata(raw, map[string]any{
			"response":            responseText,
			"last_worker":         ownerID,
			"response_updated_at": now.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return fmt.Errorf("merge metadata: %w", err)
		}

		_, err = tx.Exec(`
			UPDATE tasks SET metadata = ?, updated_at = ? WHERE id = ?
		`, merged, formatTime(now), taskID)
		if err != nil {
			return fmt.Errorf("update task %s: %w", taskID, err)
		}
		return nil
	})
	if err == nil {
		return nil
	}

	// Fallback: the response itself could not be stored; still record that
	// the task was touched.
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure()
	if _, touchErr := s.conn.Exec(`
		UPDATE tasks SET updated_at = ? WHERE id = ?
	`, formatTime(now), taskID); touchErr != nil {
		return fmt.Errorf("update task response: %w", err)
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanTask reads one task row in the canonical column order.
func scanTask(row scanner) (*models.Task, error) {
	var (
		t                    models.Task
		status, raw          string
		createdAt, updatedAt string
	)
	err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Description, &status, &raw, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	t.Status = models.TaskStatus(status)
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &t.Metadata); err != nil {
			// A corrupted bag must not hide the task; expose it empty.
			t.Metadata = nil
		}
	}
	if ts, err := parseTime(createdAt); err == nil {
		t.CreatedAt = ts
	}
	if ts, err := parseTime(updatedAt); err == nil {
		t.UpdatedAt = ts
	}

	return &t, nil
}

// mergeMetadata unions updates into the existing JSON bag. Existing keys not
// present in updates are preserved; updates win on conflict.
func mergeMetadata(existing string, updates map[string]any) (string, error) {
	bag := map[string]any{}
	if existing != "" {
		if err := json.Unmarshal([]byte(existing), &bag); err != nil {
			// Start fresh rather than failing the write on a corrupt bag.
			bag = map[string]any{}
		}
	}
	for k, v := range updates {
		bag[k] = v
	}

	out, err := json.Marshal(bag)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// metadataOrEmpty never returns nil, so the stored JSON is always an object.
func metadataOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
