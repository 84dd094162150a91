package models

import "time"

// ProgressEvent is a timestamped record of task advancement. A nil Percent is
// a heartbeat sentinel ("still working"), distinct from a real measurement.
type ProgressEvent struct {
	// ID is the unique identifier for this event.
	ID int64 `json:"id"`
	// TaskID references the task this event belongs to.
	TaskID string `json:"task_id"`
	// OwnerID identifies the worker that recorded the event.
	OwnerID string `json:"owner_id"`
	// Percent is the measured progress in [0,100], or nil for a heartbeat.
	Percent *int `json:"percent,omitempty"`
	// Message is a human-readable note.
	Message string `json:"message,omitempty"`
	// Timestamp is when the event was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// Heartbeat returns true if the event carries no real measurement.
func (e *ProgressEvent) Heartbeat() bool {
	return e.Percent == nil
}

// MaxPercent returns the maximum non-nil percent across events, which is the
// current progress of a task. Heartbeats do not count.
func MaxPercent(events []ProgressEvent) int {
	max := 0
	for _, e := range events {
		if e.Percent != nil && *e.Percent > max {
			max = *e.Percent
		}
	}
	return max
}

// IntPtr returns a pointer to v. Convenience for building progress events.
func IntPtr(v int) *int {
	return &v
}
