package models

import "time"

// LogLevel classifies log entries.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warning"
	LogLevelError LogLevel = "error"
)

// LogEntry is an append-only observability record, independent of the
// Task/ProgressEvent lifecycle.
type LogEntry struct {
	// OwnerID identifies the worker that wrote the entry.
	OwnerID string `json:"owner_id"`
	// TaskID references a task when the entry relates to one.
	TaskID string `json:"task_id,omitempty"`
	// Level is the severity of the entry.
	Level LogLevel `json:"level"`
	// Message is the log text.
	Message string `json:"message"`
	// Metadata carries structured context.
	Metadata map[string]any `json:"metadata,omitempty"`
	// Timestamp is when the entry was written.
	Timestamp time.Time `json:"timestamp"`
}
