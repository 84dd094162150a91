package store

import (
	"fmt"
	"time"

	"github.com/ShayCichocki/drover/pkg/models"
)

// progressSchema tags the insert variant compatible with the deployed
// task_progress table. Three historical namings of the percent column exist
// across deployments; the right one is picked once, not per call.
type progressSchema int

const (
	// progressSchemaUnknown means detection has not run or the table is absent.
	progressSchemaUnknown progressSchema = iota
	// progressSchemaPercent is the current schema (progress_percent column).
	progressSchemaPercent
	// progressSchemaLegacy is the older schema (percent column).
	progressSchemaLegacy
	// progressSchemaMinimal has no percent column at all.
	progressSchemaMinimal
)

// percentColumn returns the percent column name, or "" when the schema
// cannot record a percent.
func (p progressSchema) percentColumn() string {
	switch p {
	case progressSchemaPercent:
		return "progress_percent"
	case progressSchemaLegacy:
		return "percent"
	default:
		return ""
	}
}

// detectProgressSchema inspects the task_progress columns and returns the
// matching insert variant. Caller must hold the write lock.
func (s *Store) detectProgressSchema() progressSchema {
	rows, err := s.conn.Query("PRAGMA table_info(task_progress)")
	if err != nil {
		return progressSchemaUnknown
	}
	defer rows.Close()

	columns := map[string]bool{}
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			dflt       any
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &primaryKey); err != nil {
			continue
		}
		columns[name] = true
	}

	switch {
	case len(columns) == 0:
		return progressSchemaUnknown
	case columns["progress_percent"]:
		return progressSchemaPercent
	case columns["percent"]:
		return progressSchemaLegacy
	default:
		return progressSchemaMinimal
	}
}

// InsertProgress appends a progress event. A nil percent is the heartbeat
// sentinel. The insert uses the variant detected at migration time; callers
// treat failures as best-effort and must not let them abort finalization.
func (s *Store) InsertProgress(taskID, ownerID string, percent *int, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure()

	if s.progressInsert == progressSchemaUnknown {
		// Table may have appeared since open (external migration); retry once.
		s.progressInsert = s.detectProgressSchema()
	}

	now := formatTime(time.Now())

	switch s.progressInsert {
	case progressSchemaPercent, progressSchemaLegacy:
		query := fmt.Sprintf(`
			INSERT INTO task_progress (task_id, owner_id, %s, message, timestamp)
			VALUES (?, ?, ?, ?, ?)
		`, s.progressInsert.percentColumn())
		if _, err := s.conn.Exec(query, taskID, ownerID, percentArg(percent), message, now); err != nil {
			return fmt.Errorf("insert progress: %w", err)
		}
		return nil

	case progressSchemaMinimal:
		// No percent column in this deployment; record what we can.
		_, err := s.conn.Exec(`
			INSERT INTO task_progress (task_id, owner_id, message, timestamp)
			VALUES (?, ?, ?, ?)
		`, taskID, ownerID, message, now)
		if err != nil {
			return fmt.Errorf("insert progress (minimal): %w", err)
		}
		return nil

	default:
		return fmt.Errorf("task_progress table not present")
	}
}

// percentArg converts an optional percent to a driver-friendly value.
func percentArg(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

// MaxPercent returns the maximum non-null percent recorded for a task, which
// is its current progress. Returns 0 when the progress table or its percent
// column is absent in this deployment; it never fails.
func (s *Store) MaxPercent(taskID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure()

	schema := s.progressInsert
	if schema == progressSchemaUnknown {
		schema = s.detectProgressSchema()
	}

	col := schema.percentColumn()
	if col == "" {
		return 0
	}

	var max int
	query := fmt.Sprintf(`
		SELECT COALESCE(MAX(%s), 0) FROM task_progress WHERE task_id = ?
	`, col)
	if err := s.conn.QueryRow(query, taskID).Scan(&max); err != nil {
		return 0
	}
	return max
}

// ListProgress returns the recorded events for a task, oldest first.
func (s *Store) ListProgress(taskID string) ([]models.ProgressEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure()

	schema := s.progressInsert
	if schema == progressSchemaUnknown {
		schema = s.detectProgressSchema()
	}

	col := schema.percentColumn()
	if col == "" {
		col = "NULL"
	}

	query := fmt.Sprintf(`
		SELECT id, task_id, COALESCE(owner_id, ''), %s, COALESCE(message, ''), timestamp
		FROM task_progress
		WHERE task_id = ?
		ORDER BY id ASC
	`, col)

	rows, err := s.conn.Query(query, taskID)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()

	var events []models.ProgressEvent
	for rows.Next() {
		var (
			e       models.ProgressEvent
			percent *int
			ts      string
		)
		if err := rows.Scan(&e.ID, &e.TaskID, &e.OwnerID, &percent, &e.Message, &ts); err != nil {
			return nil, fmt.Errorf("scan progress event: %w", err)
		}
		e.Percent = percent
		if t, err := parseTime(ts); err == nil {
			e.Timestamp = t
		}
		events = append(events, e)
	}

	return events, rows.Err()
}
