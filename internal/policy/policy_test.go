package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ShayCichocki/drover/pkg/models"
)

func TestResolve_Default(t *testing.T) {
	p := Default()

	tests := []struct {
		name      string
		exitCode  int
		artifacts int
		want      Outcome
	}{
		{"clean exit", 0, 0, Outcome{Percent: 100, Status: models.TaskStatusCompleted}},
		{"clean exit with artifacts", 0, 3, Outcome{Percent: 100, Status: models.TaskStatusCompleted}},
		{"failed with artifacts is partial", 2, 1, Outcome{Percent: 50, Status: models.TaskStatusFailed}},
		{"failed without artifacts", 2, 0, Outcome{Percent: 0, Status: models.TaskStatusFailed}},
		{"killed process without artifacts", -1, 0, Outcome{Percent: 0, Status: models.TaskStatusFailed}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Resolve(tt.exitCode, tt.artifacts); got != tt.want {
				t.Errorf("Resolve(%d, %d) = %+v, want %+v", tt.exitCode, tt.artifacts, got, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := "success_percent: 100\npartial_percent: 25\nfailure_percent: 0\npartial_needs_artifacts: false\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write policy file: %v", err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.PartialPercent != 25 {
		t.Errorf("PartialPercent = %d, want 25", p.PartialPercent)
	}
	// With the artifact gate off, any nonzero exit is partial.
	got := p.Resolve(1, 0)
	if got.Percent != 25 || got.Status != models.TaskStatusFailed {
		t.Errorf("Resolve(1, 0) = %+v, want 25/failed", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Error("expected error for missing policy file")
	}
}

func TestLoad_OutOfRangeFallsBackToDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("partial_percent: 400\n"), 0644); err != nil {
		t.Fatalf("write policy file: %v", err)
	}

	p, err := Load(path)
	if err == nil {
		t.Error("expected validation error for out-of-range percent")
	}
	if p != Default() {
		t.Errorf("Load returned %+v on invalid file, want defaults", p)
	}
}
