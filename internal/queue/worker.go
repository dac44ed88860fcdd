package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"taskqueue/internal/config"
	"taskqueue/internal/executor"
	"taskqueue/internal/fileutil"
	"taskqueue/internal/lockfile"
	"taskqueue/internal/logging"
	"taskqueue/internal/results"
	"taskqueue/internal/scanner"
	"taskqueue/internal/task"
)

// Worker drains one source's queue strictly in order. At most one task is in
// flight per worker.
type Worker struct {
	cfg    *config.Config
	source config.Source
	queue  *Queue
	locks  *lockfile.Manager
	exec   *executor.Executor
	store  *results.Store
	log    *slog.Logger
	name   string

	mu         sync.Mutex
	current    string
	cancelTask context.CancelFunc
}

// NewWorker wires a worker for source. A nil probe uses the local process
// table for stale-lock detection.
func NewWorker(cfg *config.Config, source config.Source, q *Queue, exec *executor.Executor, probe lockfile.LivenessProbe, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Worker{
		cfg:    cfg,
		source: source,
		queue:  q,
		locks:  lockfile.NewManager(source.PendingDir(), probe),
		exec:   exec,
		store:  results.NewStore(source.ResultsDir()),
		log: logging.WithComponent(logger, "worker").With(
			logging.String(logging.FieldSourceID, source.ID)),
		name: "worker-" + source.ID,
	}
}

// Queue returns the worker's queue.
func (w *Worker) Queue() *Queue {
	return w.queue
}

// Locks returns the worker's lock manager.
func (w *Worker) Locks() *lockfile.Manager {
	return w.locks
}

// Current returns the id of the task now executing, or "".
func (w *Worker) Current() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Cancel aborts taskID. A queued task is dropped; a running task has its
// context cancelled. Reports whether the id was known.
func (w *Worker) Cancel(taskID string) bool {
	if w.queue.Remove(taskID) {
		w.log.Info("queued task cancelled", logging.String(logging.FieldTaskID, taskID))
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == taskID && w.cancelTask != nil {
		w.cancelTask()
		return true
	}
	return false
}

// Abort cancels whatever task is currently executing. Used when a graceful
// shutdown exceeds its grace window.
func (w *Worker) Abort() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancelTask != nil {
		w.cancelTask()
	}
}

// Run processes queued documents until ctx is cancelled. The in-flight task
// is allowed to finish; callers enforce the shutdown grace with Abort.
func (w *Worker) Run(ctx context.Context) error {
	for {
		doc, ok := w.queue.Pop()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-w.queue.Wake():
				continue
			}
		}
		if ctx.Err() != nil {
			// Drained after shutdown began; leave the document for the
			// next daemon run.
			return ctx.Err()
		}
		w.process(doc)
	}
}

// process runs one document through lock, execute, archive, and result.
func (w *Worker) process(doc task.Document) {
	log := w.log.With(logging.String(logging.FieldTaskID, doc.ID))

	// The document may have been consumed or removed since it was queued.
	doc, ok, err := scanner.Stat(doc.Path, doc.SourceID)
	if err != nil {
		log.Warn("cannot stat task document", logging.Error(err))
		return
	}
	if !ok {
		return
	}

	rec, err := w.locks.Acquire(doc.ID, w.name, uuid.NewString())
	if err != nil {
		if errors.Is(err, lockfile.ErrLockHeld) {
			log.Info("task locked elsewhere, skipping", logging.Error(err))
			return
		}
		log.Error("lock acquisition failed", logging.Error(err))
		return
	}
	defer func() {
		if err := w.locks.Release(doc.ID); err != nil {
			log.Warn("lock release failed", logging.Error(err))
		}
	}()

	taskCtx, cancel := context.WithCancel(context.Background())
	w.mu.Lock()
	w.current = doc.ID
	w.cancelTask = cancel
	w.mu.Unlock()
	defer func() {
		cancel()
		w.mu.Lock()
		w.current = ""
		w.cancelTask = nil
		w.mu.Unlock()
	}()

	log.Info("task started", logging.String("worker", rec.Worker))
	outcome := w.exec.Execute(taskCtx, doc, w.source)
	w.finish(doc, outcome, log)
}

// finish archives the document and persists the result. Every outcome is
// terminal: the document leaves pending so no rescan or restart can pick it
// up again. Cancelled documents are archived alongside failed ones.
func (w *Worker) finish(doc task.Document, outcome executor.Outcome, log *slog.Logger) {
	switch outcome.Status {
	case task.StatusCompleted:
		dst := filepath.Join(w.source.CompletedDir(), doc.Name())
		if err := fileutil.MoveFile(doc.Path, dst); err != nil {
			log.Error("cannot archive completed task", logging.Error(err))
		}
	case task.StatusFailed:
		dst := filepath.Join(w.source.FailedDir(), doc.Name())
		if err := fileutil.MoveFile(doc.Path, dst); err != nil {
			log.Error("cannot move failed task", logging.Error(err))
		} else if err := w.writeErrorNote(doc, outcome); err != nil {
			log.Warn("cannot write error note", logging.Error(err))
		}
	case task.StatusCancelled:
		dst := filepath.Join(w.source.FailedDir(), doc.Name())
		if err := fileutil.MoveFile(doc.Path, dst); err != nil {
			log.Error("cannot archive cancelled task", logging.Error(err))
		}
	}

	res := results.Result{
		TaskID:      doc.ID,
		SourceID:    doc.SourceID,
		Status:      string(outcome.Status),
		Success:     outcome.Status == task.StatusCompleted,
		Attempts:    outcome.Attempts,
		StartedAt:   outcome.StartedAt,
		CompletedAt: outcome.CompletedAt,
		Duration:    outcome.Duration().Seconds(),
		ExitCode:    outcome.ExitCode,
		Stdout:      outcome.Stdout,
		Stderr:      outcome.Stderr,
	}
	if outcome.Err != nil {
		res.Error = outcome.Err.Error()
	}
	if err := w.store.Write(res); err != nil {
		log.Error("cannot persist result", logging.Error(err))
	}

	log.Info("task finished",
		logging.String("status", string(outcome.Status)),
		logging.Int("attempts", outcome.Attempts),
		logging.Duration("duration", outcome.Duration()))
}

// writeErrorNote leaves a human-readable failure summary beside the failed
// document.
func (w *Worker) writeErrorNote(doc task.Document, outcome executor.Outcome) error {
	body := fmt.Sprintf("task: %s\nfailed_at: %s\nattempts: %d\nexit_code: %d\nerror: %v\n",
		doc.ID,
		outcome.CompletedAt.Format(time.RFC3339),
		outcome.Attempts,
		outcome.ExitCode,
		outcome.Err)
	path := filepath.Join(w.source.FailedDir(), doc.ID+".error")
	return fileutil.WriteFileAtomic(path, []byte(body), 0o644)
}

// LoadBacklog scans the pending directory and enqueues every candidate not
// already queued or running. Returns how many documents were added.
func (w *Worker) LoadBacklog() (int, error) {
	docs, err := scanner.ListCandidates(w.source.PendingDir(), w.source.ID)
	if err != nil {
		return 0, err
	}
	added := 0
	current := w.Current()
	for _, doc := range docs {
		if doc.ID == current {
			continue
		}
		if w.queue.Enqueue(doc) {
			added++
		}
	}
	if added > 0 {
		w.log.Info("backlog loaded", logging.Int("added", added))
	}
	return added, nil
}

// ReclaimStale removes locks owned by dead processes in this source's
// pending directory.
func (w *Worker) ReclaimStale() ([]string, error) {
	reclaimed, err := w.locks.ReclaimStale()
	if err != nil {
		return reclaimed, err
	}
	for _, id := range reclaimed {
		w.log.Warn("reclaimed stale lock", logging.String(logging.FieldTaskID, id))
	}
	return reclaimed, nil
}

// Notify is the watcher callback: enqueue unless already queued or running.
func (w *Worker) Notify(doc task.Document) {
	if doc.ID == w.Current() {
		return
	}
	if _, err := os.Stat(doc.Path); err != nil {
		return
	}
	if w.queue.Enqueue(doc) {
		w.log.Info("task enqueued", logging.String(logging.FieldTaskID, doc.ID))
	}
}
