package worker

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/ShayCichocki/drover/pkg/models"
)

// artifactWatcher reports files appearing in a task's artifacts directory
// while the task command runs. It is strictly best-effort: if the watcher
// cannot be created or attached, the task proceeds without it and artifacts
// are still picked up by the post-run directory diff.
type artifactWatcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// watchArtifacts starts watching dir and logs a line per new file through
// notify. Returns nil when watching is unavailable.
func watchArtifacts(dir string, notify func(name string)) *artifactWatcher {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil
	}

	aw := &artifactWatcher{
		watcher: watcher,
		done:    make(chan struct{}),
	}

	go func() {
		for {
			select {
			case <-aw.done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Create != 0 {
					notify(filepath.Base(event.Name))
				}
			case <-watcher.Errors:
				// Ignore errors, keep watching
			}
		}
	}()

	return aw
}

// Close stops the watcher. Safe on a nil receiver.
func (aw *artifactWatcher) Close() {
	if aw == nil {
		return
	}
	close(aw.done)
	aw.watcher.Close()
}

// notifyArtifact writes a best-effort "artifact produced" log entry.
func (r *Runner) notifyArtifact(taskID, name string) {
	if r.logs == nil {
		return
	}
	_ = r.logs.Write(taskID, models.LogLevelInfo, "artifact produced: "+name, nil)
}
