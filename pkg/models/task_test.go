package models

import (
	"testing"
	"time"
)

func TestTaskStatus_Valid(t *testing.T) {
	tests := []struct {
		name   string
		status TaskStatus
		want   bool
	}{
		{"pending is valid", TaskStatusPending, true},
		{"assigned is valid", TaskStatusAssigned, true},
		{"in_progress is valid", TaskStatusInProgress, true},
		{"completed is valid", TaskStatusCompleted, true},
		{"failed is valid", TaskStatusFailed, true},
		{"empty string is invalid", TaskStatus(""), false},
		{"unknown status is invalid", TaskStatus("unknown"), false},
		{"typo status is invalid", TaskStatus("pendingg"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("TaskStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestTaskStatus_CanAdvanceTo(t *testing.T) {
	tests := []struct {
		name string
		from TaskStatus
		to   TaskStatus
		want bool
	}{
		{"pending to assigned", TaskStatusPending, TaskStatusAssigned, true},
		{"assigned to in_progress", TaskStatusAssigned, TaskStatusInProgress, true},
		{"in_progress to completed", TaskStatusInProgress, TaskStatusCompleted, true},
		{"in_progress to failed", TaskStatusInProgress, TaskStatusFailed, true},
		{"completed stays terminal", TaskStatusCompleted, TaskStatusPending, false},
		{"failed stays terminal", TaskStatusFailed, TaskStatusAssigned, false},
		{"completed to failed allowed as terminal peer", TaskStatusCompleted, TaskStatusFailed, true},
		{"same status is allowed", TaskStatusAssigned, TaskStatusAssigned, true},
		{"unknown target rejected", TaskStatusPending, TaskStatus("bogus"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanAdvanceTo(tt.to); got != tt.want {
				t.Errorf("%s.CanAdvanceTo(%s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestTaskStatus_Terminal(t *testing.T) {
	if !TaskStatusCompleted.Terminal() || !TaskStatusFailed.Terminal() {
		t.Error("completed and failed should be terminal")
	}
	if TaskStatusPending.Terminal() || TaskStatusAssigned.Terminal() || TaskStatusInProgress.Terminal() {
		t.Error("non-final statuses should not be terminal")
	}
}

func TestTask_Prompt(t *testing.T) {
	tests := []struct {
		name string
		task Task
		want string
	}{
		{"description wins", Task{ID: "t1", Title: "title", Description: "desc"}, "desc"},
		{"title fallback", Task{ID: "t1", Title: "title"}, "title"},
		{"id fallback", Task{ID: "t1"}, "Task t1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.task.Prompt(); got != tt.want {
				t.Errorf("Prompt() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMaxPercent(t *testing.T) {
	now := time.Now()
	events := []ProgressEvent{
		{TaskID: "t1", Percent: IntPtr(0), Timestamp: now},
		{TaskID: "t1", Percent: nil, Timestamp: now},
		{TaskID: "t1", Percent: IntPtr(50), Timestamp: now},
		{TaskID: "t1", Percent: nil, Timestamp: now},
	}

	if got := MaxPercent(events); got != 50 {
		t.Errorf("MaxPercent = %d, want 50", got)
	}

	if got := MaxPercent(nil); got != 0 {
		t.Errorf("MaxPercent(nil) = %d, want 0", got)
	}

	// Heartbeats alone never advance progress.
	hb := []ProgressEvent{{TaskID: "t1", Percent: nil}, {TaskID: "t1", Percent: nil}}
	if got := MaxPercent(hb); got != 0 {
		t.Errorf("MaxPercent(heartbeats) = %d, want 0", got)
	}
}

func TestProgressEvent_Heartbeat(t *testing.T) {
	e := ProgressEvent{TaskID: "t1"}
	if !e.Heartbeat() {
		t.Error("nil percent should be a heartbeat")
	}
	e.Percent = IntPtr(0)
	if e.Heartbeat() {
		t.Error("zero percent is a real measurement, not a heartbeat")
	}
}
