package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ShayCichocki/drover/pkg/models"
)

// tempStorePath returns a path to a temp database file.
func tempStorePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "coordination.db")
}

// setupTestStore creates a migrated temporary store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(tempStorePath(t))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	if err := s.Migrate(); err != nil {
		t.Fatalf("failed to migrate test store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestOpen(t *testing.T) {
	path := tempStorePath(t)
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if s.Path() != path {
		t.Errorf("Path() = %q, want %q", s.Path(), path)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("database file does not exist at %s", path)
	}
}

func TestOpen_CreatesParentDirectories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b", "coordination.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(filepath.Dir(path)); os.IsNotExist(err) {
		t.Errorf("parent directories not created")
	}
}

func TestMigrate(t *testing.T) {
	s, err := Open(tempStorePath(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if err := s.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	tables := []string{"schema_version", "tasks", "task_progress"}
	for _, table := range tables {
		var count int
		row := s.conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table)
		if err := row.Scan(&count); err != nil {
			t.Errorf("failed to check table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s does not exist", table)
		}
	}

	// Migrate is idempotent.
	if err := s.Migrate(); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}

	// Detection should have picked the current percent column.
	if s.progressInsert != progressSchemaPercent {
		t.Errorf("progressInsert = %v, want progressSchemaPercent", s.progressInsert)
	}
}

func TestCreateAndGetTask(t *testing.T) {
	s := setupTestStore(t)

	task := &models.Task{
		Title:       "compile report",
		Description: "gather inputs and build the weekly report",
		Metadata:    map[string]any{"source": "intake"},
	}
	if err := s.CreateTask(task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if task.ID == "" {
		t.Fatal("CreateTask did not assign an ID")
	}

	got, err := s.GetTask(task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetTask returned nil for existing task")
	}
	if got.Title != task.Title {
		t.Errorf("Title = %q, want %q", got.Title, task.Title)
	}
	if got.Status != models.TaskStatusPending {
		t.Errorf("Status = %q, want pending", got.Status)
	}
	if got.Metadata["source"] != "intake" {
		t.Errorf("Metadata[source] = %v, want intake", got.Metadata["source"])
	}
}

func TestGetTask_Missing(t *testing.T) {
	s := setupTestStore(t)

	got, err := s.GetTask("no-such-task")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got != nil {
		t.Errorf("GetTask = %+v, want nil", got)
	}
}

func TestClaimNext_AssignsPendingTask(t *testing.T) {
	s := setupTestStore(t)

	task := &models.Task{Title: "do the thing"}
	if err := s.CreateTask(task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	claimed, err := s.ClaimNext("worker1")
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if claimed == nil {
		t.Fatal("ClaimNext returned nil, want the pending task")
	}
	if claimed.ID != task.ID {
		t.Errorf("claimed ID = %q, want %q", claimed.ID, task.ID)
	}
	if claimed.Status != models.TaskStatusAssigned {
		t.Errorf("claimed status = %q, want assigned", claimed.Status)
	}
	if claimed.OwnerID != "worker1" {
		t.Errorf("claimed owner = %q, want worker1", claimed.OwnerID)
	}
}

func TestClaimNext_Empty(t *testing.T) {
	s := setupTestStore(t)

	claimed, err := s.ClaimNext("worker1")
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if claimed != nil {
		t.Errorf("ClaimNext = %+v, want nil on empty store", claimed)
	}
}

func TestClaimNext_ClaimedTaskInvisibleToOtherWorkers(t *testing.T) {
	s := setupTestStore(t)

	if err := s.CreateTask(&models.Task{Title: "contested"}); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	first, err := s.ClaimNext("worker1")
	if err != nil {
		t.Fatalf("first ClaimNext failed: %v", err)
	}
	if first == nil {
		t.Fatal("first ClaimNext returned nil")
	}

	second, err := s.ClaimNext("worker2")
	if err != nil {
		t.Fatalf("second ClaimNext failed: %v", err)
	}
	if second != nil {
		t.Errorf("worker2 claimed %q already held by worker1", second.ID)
	}
}

func TestClaimNext_ReclaimsOwnUnfinishedTask(t *testing.T) {
	s := setupTestStore(t)

	if err := s.CreateTask(&models.Task{Title: "interrupted"}); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	first, err := s.ClaimNext("worker1")
	if err != nil || first == nil {
		t.Fatalf("first ClaimNext = (%v, %v)", first, err)
	}

	// Simulating a crash and restart of the same worker: the task is still
	// assigned and must be offered again to its owner.
	again, err := s.ClaimNext("worker1")
	if err != nil {
		t.Fatalf("reclaim failed: %v", err)
	}
	if again == nil || again.ID != first.ID {
		t.Errorf("reclaim = %+v, want task %q", again, first.ID)
	}
}

func TestClaimNext_SkipsTerminalTasks(t *testing.T) {
	s := setupTestStore(t)

	task := &models.Task{Title: "finished already"}
	if err := s.CreateTask(task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if _, err := s.ClaimNext("worker1"); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if err := s.UpdateTaskStatus(task.ID, models.TaskStatusCompleted, nil); err != nil {
		t.Fatalf("UpdateTaskStatus failed: %v", err)
	}

	claimed, err := s.ClaimNext("worker1")
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if claimed != nil {
		t.Errorf("claimed completed task %q", claimed.ID)
	}
}

func TestUpdateTaskStatus_MergesMetadataAdditively(t *testing.T) {
	s := setupTestStore(t)

	task := &models.Task{Title: "merge me", Metadata: map[string]any{"origin": "intake", "priority": "low"}}
	if err := s.CreateTask(task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	err := s.UpdateTaskStatus(task.ID, models.TaskStatusInProgress, map[string]any{"priority": "high", "attempt": float64(1)})
	if err != nil {
		t.Fatalf("UpdateTaskStatus failed: %v", err)
	}

	got, err := s.GetTask(task.ID)
	if err != nil || got == nil {
		t.Fatalf("GetTask = (%v, %v)", got, err)
	}
	if got.Status != models.TaskStatusInProgress {
		t.Errorf("Status = %q, want in_progress", got.Status)
	}
	// Existing keys survive, updated keys win, new keys appear.
	if got.Metadata["origin"] != "intake" {
		t.Errorf("Metadata[origin] = %v, want intake", got.Metadata["origin"])
	}
	if got.Metadata["priority"] != "high" {
		t.Errorf("Metadata[priority] = %v, want high", got.Metadata["priority"])
	}
	if got.Metadata["attempt"] != float64(1) {
		t.Errorf("Metadata[attempt] = %v, want 1", got.Metadata["attempt"])
	}
}

func TestUpdateTaskStatus_NeverRegressesFromTerminal(t *testing.T) {
	s := setupTestStore(t)

	task := &models.Task{Title: "done deal"}
	if err := s.CreateTask(task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if err := s.UpdateTaskStatus(task.ID, models.TaskStatusCompleted, nil); err != nil {
		t.Fatalf("UpdateTaskStatus failed: %v", err)
	}

	// A stale writer trying to move the task back is a silent no-op.
	if err := s.UpdateTaskStatus(task.ID, models.TaskStatusPending, nil); err != nil {
		t.Fatalf("UpdateTaskStatus regression returned error: %v", err)
	}

	got, err := s.GetTask(task.ID)
	if err != nil || got == nil {
		t.Fatalf("GetTask = (%v, %v)", got, err)
	}
	if got.Status != models.TaskStatusCompleted {
		t.Errorf("Status = %q, want completed after attempted regression", got.Status)
	}
}

func TestUpdateTaskStatus_MissingTaskIsNoop(t *testing.T) {
	s := setupTestStore(t)

	if err := s.UpdateTaskStatus("ghost", models.TaskStatusFailed, nil); err != nil {
		t.Errorf("UpdateTaskStatus on missing task returned error: %v", err)
	}
}

func TestUpdateTaskResponse(t *testing.T) {
	s := setupTestStore(t)

	task := &models.Task{Title: "answer me"}
	if err := s.CreateTask(task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	if err := s.UpdateTaskResponse(task.ID, "worker1", "All done."); err != nil {
		t.Fatalf("UpdateTaskResponse failed: %v", err)
	}

	got, err := s.GetTask(task.ID)
	if err != nil || got == nil {
		t.Fatalf("GetTask = (%v, %v)", got, err)
	}
	if got.Metadata["response"] != "All done." {
		t.Errorf("Metadata[response] = %v, want %q", got.Metadata["response"], "All done.")
	}
	if got.Metadata["last_worker"] != "worker1" {
		t.Errorf("Metadata[last_worker] = %v, want worker1", got.Metadata["last_worker"])
	}
	if got.Metadata["response_updated_at"] == nil {
		t.Error("Metadata[response_updated_at] not recorded")
	}
}

func TestListRecent(t *testing.T) {
	s := setupTestStore(t)

	for _, title := range []string{"first", "second", "third"} {
		if err := s.CreateTask(&models.Task{Title: title}); err != nil {
			t.Fatalf("CreateTask failed: %v", err)
		}
	}

	tasks, err := s.ListRecent(2)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Errorf("ListRecent returned %d tasks, want 2", len(tasks))
	}
}
