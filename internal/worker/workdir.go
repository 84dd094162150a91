package worker

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// WorkDir is the ephemeral filesystem scope owned by a single execution
// attempt. It is created at claim time and unconditionally removed at
// finalization, whatever the outcome.
type WorkDir struct {
	// Path is the attempt's root directory.
	Path string
	// ArtifactsDir is the nested scope the task program writes artifacts
	// into.
	ArtifactsDir string
}

// AllocateWorkDir creates a fresh work dir keyed by owner, task and attempt
// timestamp, with its artifacts sub-scope.
func AllocateWorkDir(root, ownerID, taskID string) (*WorkDir, error) {
	stamp := time.Now().UTC().Format("20060102_150405.000000000")
	path := filepath.Join(root, ownerID, taskID, stamp)

	artifacts := filepath.Join(path, "artifacts")
	if err := os.MkdirAll(artifacts, 0755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	return &WorkDir{Path: path, ArtifactsDir: artifacts}, nil
}

// SnapshotArtifacts returns the set of file names currently present in the
// artifacts scope. Directories are ignored.
func (w *WorkDir) SnapshotArtifacts() map[string]bool {
	snapshot := map[string]bool{}
	entries, err := os.ReadDir(w.ArtifactsDir)
	if err != nil {
		return snapshot
	}
	for _, e := range entries {
		if !e.IsDir() {
			snapshot[e.Name()] = true
		}
	}
	return snapshot
}

// NewArtifacts diffs a before snapshot against the current contents and
// returns the full paths of files produced since, in directory order.
func (w *WorkDir) NewArtifacts(before map[string]bool) []string {
	var produced []string
	for name := range w.SnapshotArtifacts() {
		if !before[name] {
			produced = append(produced, filepath.Join(w.ArtifactsDir, name))
		}
	}
	return produced
}

// Remove deletes the work dir recursively, including anything the task
// program left behind.
func (w *WorkDir) Remove() error {
	if err := os.RemoveAll(w.Path); err != nil {
		return fmt.Errorf("remove work dir %s: %w", w.Path, err)
	}
	return nil
}
