package logsink

import (
	"path/filepath"
	"testing"

	"github.com/ShayCichocki/drover/pkg/models"
)

func setupTestSink(t *testing.T) *Sink {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "logs.db"), "worker1")
	if err != nil {
		t.Fatalf("failed to open test sink: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestWriteAndRecent(t *testing.T) {
	s := setupTestSink(t)

	if err := s.Write("", models.LogLevelInfo, "worker started", nil); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := s.Write("t1", models.LogLevelInfo, "task picked", map[string]any{"title": "demo"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := s.Write("t1", models.LogLevelError, "task failed", nil); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	all, err := s.Recent("", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Recent returned %d entries, want 3", len(all))
	}
	// Newest first.
	if all[0].Message != "task failed" {
		t.Errorf("first entry = %q, want newest", all[0].Message)
	}
	if all[0].OwnerID != "worker1" {
		t.Errorf("OwnerID = %q, want worker1", all[0].OwnerID)
	}
}

func TestRecent_FilterByTask(t *testing.T) {
	s := setupTestSink(t)

	if err := s.Write("t1", models.LogLevelInfo, "for t1", nil); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := s.Write("t2", models.LogLevelInfo, "for t2", nil); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	entries, err := s.Recent("t1", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Recent returned %d entries, want 1", len(entries))
	}
	if entries[0].TaskID != "t1" {
		t.Errorf("TaskID = %q, want t1", entries[0].TaskID)
	}
}

func TestWrite_MetadataRoundTrip(t *testing.T) {
	s := setupTestSink(t)

	meta := map[string]any{"return_code": float64(2), "duration": "4.2s"}
	if err := s.Write("t1", models.LogLevelWarn, "run finished", meta); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	entries, err := s.Recent("t1", 1)
	if err != nil || len(entries) != 1 {
		t.Fatalf("Recent = (%v, %v)", entries, err)
	}
	if entries[0].Metadata["return_code"] != float64(2) {
		t.Errorf("Metadata[return_code] = %v, want 2", entries[0].Metadata["return_code"])
	}
	if entries[0].Level != models.LogLevelWarn {
		t.Errorf("Level = %q, want warning", entries[0].Level)
	}
}
