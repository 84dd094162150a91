package store

import (
	"io"

	"github.com/ShayCichocki/drover/pkg/models"
)

// TaskStore handles task-related persistence operations.
type TaskStore interface {
	CreateTask(t *models.Task) error
	GetTask(id string) (*models.Task, error)
	ListRecent(limit int) ([]models.Task, error)
	ClaimNext(workerID string) (*models.Task, error)
	UpdateTaskStatus(taskID string, status models.TaskStatus, metadata map[string]any) error
	UpdateTaskResponse(taskID, ownerID, responseText string) error
}

// ProgressStore handles the append-only progress table.
type ProgressStore interface {
	InsertProgress(taskID, ownerID string, percent *int, message string) error
	MaxPercent(taskID string) int
	ListProgress(taskID string) ([]models.ProgressEvent, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Coordination defines the full coordination store surface. The worker
// runner depends on this interface rather than the concrete SQLite store.
type Coordination interface {
	io.Closer
	Migrator
	TaskStore
	ProgressStore
}

// Compile-time verification that Store implements all interfaces.
var (
	_ Coordination  = (*Store)(nil)
	_ Migrator      = (*Store)(nil)
	_ TaskStore     = (*Store)(nil)
	_ ProgressStore = (*Store)(nil)
)
