package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not been claimed.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusAssigned indicates a worker has claimed the task.
	TaskStatusAssigned TaskStatus = "assigned"
	// TaskStatusInProgress indicates the task is being executed.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusCompleted indicates the task finished successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusAssigned, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status ends an execution attempt.
// A terminal status never regresses back to pending or assigned.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// rank orders statuses along the forward-only progression.
func (s TaskStatus) rank() int {
	switch s {
	case TaskStatusPending:
		return 0
	case TaskStatusAssigned:
		return 1
	case TaskStatusInProgress:
		return 2
	case TaskStatusCompleted, TaskStatusFailed:
		return 3
	default:
		return -1
	}
}

// CanAdvanceTo reports whether a transition from s to next moves forward.
// Within one execution attempt a status only advances; completed and failed
// are both terminal and never give way to an earlier state.
func (s TaskStatus) CanAdvanceTo(next TaskStatus) bool {
	if !next.Valid() {
		return false
	}
	return next.rank() >= s.rank()
}

// Task represents a centrally stored unit of work claimed and executed by
// exactly one worker attempt.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// OwnerID identifies the worker that claimed the task, if any.
	OwnerID string `json:"owner_id,omitempty"`
	// Title is the short description of the task.
	Title string `json:"title"`
	// Description provides detailed information about the task.
	Description string `json:"description,omitempty"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Metadata is an open key/value bag. Updates merge additively.
	Metadata map[string]any `json:"metadata,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the task was last touched.
	UpdatedAt time.Time `json:"updated_at"`
}

// Prompt returns the text handed to the external task program: the
// description, falling back to the title, falling back to the task id.
func (t *Task) Prompt() string {
	if t.Description != "" {
		return t.Description
	}
	if t.Title != "" {
		return t.Title
	}
	return "Task " + t.ID
}
