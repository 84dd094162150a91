package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ShayCichocki/drover/internal/artifact"
	"github.com/ShayCichocki/drover/internal/exec"
	"github.com/ShayCichocki/drover/internal/logsink"
	"github.com/ShayCichocki/drover/internal/policy"
	"github.com/ShayCichocki/drover/internal/store"
	"github.com/ShayCichocki/drover/pkg/models"
)

// heartbeatAckTimeout bounds the wait for the heartbeat goroutine to
// acknowledge a stop before the work dir is torn down.
const heartbeatAckTimeout = 5 * time.Second

// Options configures a Runner. Store, OwnerID and Exec are required;
// Logs and Uploader are optional and disable their features when nil.
type Options struct {
	Store    store.Coordination
	Logs     logsink.Writer
	Uploader artifact.Uploader
	Exec     exec.CommandRunner
	Policy   policy.Policy
	Debug    *DebugLogger

	OwnerID      string
	PollInterval time.Duration
	RunTimeout   time.Duration
	WorkRoot     string
	TaskCommand  string
}

// Runner is the worker's poll-and-execute loop. One Runner owns one worker
// identity; it claims tasks from the coordination store, supervises the
// external task program, and finalizes outcomes. A failure in any single
// task never escapes the loop.
type Runner struct {
	store    store.Coordination
	logs     logsink.Writer
	uploader artifact.Uploader
	exec     exec.CommandRunner
	policy   policy.Policy
	debug    *DebugLogger

	ownerID      string
	pollInterval time.Duration
	runTimeout   time.Duration
	workRoot     string
	taskCommand  string

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a Runner from opts.
func New(opts Options) *Runner {
	debug := opts.Debug
	if debug == nil {
		debug = NopLogger()
	}
	return &Runner{
		store:        opts.Store,
		logs:         opts.Logs,
		uploader:     opts.Uploader,
		exec:         opts.Exec,
		policy:       opts.Policy,
		debug:        debug,
		ownerID:      opts.OwnerID,
		pollInterval: opts.PollInterval,
		runTimeout:   opts.RunTimeout,
		workRoot:     opts.WorkRoot,
		taskCommand:  opts.TaskCommand,
		stop:         make(chan struct{}),
	}
}

// Run polls for tasks until Stop is called or ctx is cancelled. Stop is
// cooperative: it is observed between iterations and during the idle sleep,
// never mid-task.
func (r *Runner) Run(ctx context.Context) error {
	r.debug.Log("worker %s polling every %s", r.ownerID, r.pollInterval)

	for {
		select {
		case <-r.stop:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		task, err := r.store.ClaimNext(r.ownerID)
		if err != nil {
			r.debug.Log("claim failed: %v", err)
			if !r.sleep(ctx) {
				return ctx.Err()
			}
			continue
		}
		if task == nil {
			if !r.sleep(ctx) {
				return ctx.Err()
			}
			continue
		}

		r.handleTask(ctx, task)
	}
}

// Stop asks the runner to exit after the current iteration. Safe to call
// more than once and from any goroutine.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
}

// sleep waits one poll interval, returning early on Stop or ctx
// cancellation. Returns false only when ctx was cancelled.
func (r *Runner) sleep(ctx context.Context) bool {
	timer := time.NewTimer(r.pollInterval)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-r.stop:
		return true
	case <-ctx.Done():
		return false
	}
}

// handleTask drives one claimed task through execution and finalization.
func (r *Runner) handleTask(ctx context.Context, task *models.Task) {
	r.debug.Log("claimed task %s (%s)", task.ID, task.Title)

	// Idempotence guard: a task that already reached 100% must never be
	// re-executed, only have its status reconciled.
	if r.store.MaxPercent(task.ID) >= 100 {
		r.debug.Log("task %s already at 100%%, reconciling status", task.ID)
		if err := r.store.UpdateTaskStatus(task.ID, models.TaskStatusCompleted, nil); err != nil {
			r.debug.Log("reconcile status for %s: %v", task.ID, err)
		}
		r.logLine(task.ID, models.LogLevelInfo, "task already completed, skipping re-execution", nil)
		return
	}

	wd, err := AllocateWorkDir(r.workRoot, r.ownerID, task.ID)
	if err != nil {
		r.failWithoutRun(task, fmt.Errorf("allocate work dir: %w", err))
		return
	}

	if err := r.store.UpdateTaskStatus(task.ID, models.TaskStatusInProgress, nil); err != nil {
		r.debug.Log("mark in_progress for %s: %v", task.ID, err)
	}
	if err := r.store.InsertProgress(task.ID, r.ownerID, models.IntPtr(0), "task picked up"); err != nil {
		r.debug.Log("initial progress for %s: %v", task.ID, err)
	}
	r.logLine(task.ID, models.LogLevelInfo, "task picked up", map[string]any{"workdir": wd.Path})

	hb := startHeartbeat(r.pollInterval, func() {
		if err := r.store.InsertProgress(task.ID, r.ownerID, nil, "working"); err != nil {
			r.debug.Log("heartbeat for %s: %v", task.ID, err)
		}
	})

	watcher := watchArtifacts(wd.ArtifactsDir, func(name string) {
		r.notifyArtifact(task.ID, name)
	})

	before := wd.SnapshotArtifacts()

	prompt := task.Prompt()
	result, runErr := r.exec.Run(ctx, exec.Command{
		Name: r.taskCommand,
		Args: []string{prompt},
		Dir:  wd.Path,
		Env: []string{
			"TASK_DESCRIPTION=" + prompt,
			"TASK_ID=" + task.ID,
			"WORKER_ID=" + r.ownerID,
			"WORKDIR=" + wd.Path,
		},
		Timeout: r.runTimeout,
	})

	watcher.Close()

	artifacts := wd.NewArtifacts(before)
	r.persistOutput(task.ID, result)

	var outcome policy.Outcome
	var response string
	switch {
	case runErr != nil:
		outcome = policy.Outcome{Percent: r.policy.FailurePercent, Status: models.TaskStatusFailed}
		response = fmt.Sprintf("task program failed to run: %v", runErr)
		r.debug.Log("run task %s: %v", task.ID, runErr)
	case result.TimedOut:
		outcome = r.policy.Resolve(result.ExitCode, len(artifacts))
		outcome.Status = models.TaskStatusFailed
		response = fmt.Sprintf("task timed out after %s", r.runTimeout)
	default:
		outcome = r.policy.Resolve(result.ExitCode, len(artifacts))
		response = ResolveResponse(result.Stdout, result.ExitCode, result.Duration, len(artifacts))
	}

	uploaded := r.uploadArtifacts(ctx, task.ID, artifacts)

	r.finalize(task.ID, outcome, response, finalMeta(result, runErr, len(artifacts), uploaded))

	if !hb.stopAndWait(heartbeatAckTimeout) {
		r.debug.Log("heartbeat for %s did not acknowledge stop", task.ID)
	}
	if err := wd.Remove(); err != nil {
		r.debug.Log("cleanup for %s: %v", task.ID, err)
	}
	r.debug.Log("task %s finalized: %s at %d%%", task.ID, outcome.Status, outcome.Percent)
}

// failWithoutRun finalizes a task that could not be started at all.
func (r *Runner) failWithoutRun(task *models.Task, cause error) {
	r.debug.Log("task %s failed before execution: %v", task.ID, cause)
	r.logLine(task.ID, models.LogLevelError, cause.Error(), nil)
	r.finalize(task.ID,
		policy.Outcome{Percent: r.policy.FailurePercent, Status: models.TaskStatusFailed},
		"task failed before execution: "+cause.Error(),
		map[string]any{"error": cause.Error()},
	)
}

// finalize records the outcome: final progress event, response text, then
// status. Each write is best-effort; a failed write is logged and the
// remaining writes still happen.
func (r *Runner) finalize(taskID string, outcome policy.Outcome, response string, metadata map[string]any) {
	message := "task " + string(outcome.Status)
	if err := r.store.InsertProgress(taskID, r.ownerID, models.IntPtr(outcome.Percent), message); err != nil {
		r.debug.Log("final progress for %s: %v", taskID, err)
	}
	if err := r.store.UpdateTaskResponse(taskID, r.ownerID, response); err != nil {
		r.debug.Log("record response for %s: %v", taskID, err)
	}
	if err := r.store.UpdateTaskStatus(taskID, outcome.Status, metadata); err != nil {
		r.debug.Log("final status for %s: %v", taskID, err)
	}
	level := models.LogLevelInfo
	if outcome.Status == models.TaskStatusFailed {
		level = models.LogLevelError
	}
	r.logLine(taskID, level, message, map[string]any{"percent": outcome.Percent})
}

// uploadArtifacts pushes each produced file to the artifact store. Uploads
// are independent: one failure is logged and the rest proceed. Returns the
// number of successful uploads.
func (r *Runner) uploadArtifacts(ctx context.Context, taskID string, paths []string) int {
	if r.uploader == nil || len(paths) == 0 {
		return 0
	}

	uploaded := 0
	for _, path := range paths {
		key, err := r.uploader.Upload(ctx, path)
		if err != nil {
			r.debug.Log("upload %s for task %s: %v", path, taskID, err)
			r.logLine(taskID, models.LogLevelWarn, "artifact upload failed: "+path, map[string]any{"error": err.Error()})
			continue
		}
		uploaded++
		if err := r.store.InsertProgress(taskID, r.ownerID, nil, "uploaded artifact: "+key); err != nil {
			r.debug.Log("record upload of %s: %v", key, err)
		}
		r.logLine(taskID, models.LogLevelInfo, "artifact uploaded: "+key, nil)
	}
	return uploaded
}

// persistOutput stores the captured program output in the log sink.
func (r *Runner) persistOutput(taskID string, result exec.Result) {
	if r.logs == nil {
		return
	}
	if result.Stdout != "" {
		r.logLine(taskID, models.LogLevelDebug, result.Stdout, map[string]any{"stream": "stdout"})
	}
	if result.Stderr != "" {
		r.logLine(taskID, models.LogLevelDebug, result.Stderr, map[string]any{"stream": "stderr"})
	}
}

// logLine writes to the log sink, discarding sink failures.
func (r *Runner) logLine(taskID string, level models.LogLevel, message string, metadata map[string]any) {
	if r.logs == nil {
		return
	}
	if err := r.logs.Write(taskID, level, message, metadata); err != nil {
		r.debug.Log("log sink write for %s: %v", taskID, err)
	}
}

func finalMeta(result exec.Result, runErr error, artifactCount, uploaded int) map[string]any {
	meta := map[string]any{
		"return_code":      result.ExitCode,
		"duration_seconds": result.Duration.Seconds(),
		"artifact_count":   artifactCount,
		"uploaded_count":   uploaded,
	}
	if result.TimedOut {
		meta["timed_out"] = true
	}
	if runErr != nil {
		meta["error"] = runErr.Error()
	}
	return meta
}
