// Package executor runs the configured backend command against task
// documents. Execution is an error boundary: every failure mode is folded
// into the returned Outcome so the queue worker never has to distinguish
// panic-worthy errors from ordinary task failure.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"taskqueue/internal/config"
	"taskqueue/internal/fileutil"
	"taskqueue/internal/logging"
	"taskqueue/internal/task"
)

// outputLimit caps how much captured output a result carries.
const outputLimit = 32 * 1024

// Outcome is the terminal verdict for one task after all attempts.
type Outcome struct {
	Status      task.Status
	Attempts    int
	ExitCode    int
	Stdout      string
	Stderr      string
	Err         error
	StartedAt   time.Time
	CompletedAt time.Time
}

// Duration is the wall-clock span across all attempts.
func (o Outcome) Duration() time.Duration {
	return o.CompletedAt.Sub(o.StartedAt)
}

// Executor invokes the backend for task documents.
type Executor struct {
	cfg *config.Config
	log *slog.Logger
}

// New returns an executor bound to the loaded configuration.
func New(cfg *config.Config, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Executor{cfg: cfg, log: logging.WithComponent(logger, "executor")}
}

// Execute runs the backend against doc, retrying up to the configured
// attempt limit. A context cancellation mid-run yields StatusCancelled; an
// exhausted attempt budget yields StatusFailed.
func (e *Executor) Execute(ctx context.Context, doc task.Document, source config.Source) Outcome {
	out := Outcome{StartedAt: time.Now().UTC()}
	defer func() {
		out.CompletedAt = time.Now().UTC()
	}()

	log := e.log.With(
		logging.String(logging.FieldTaskID, doc.ID),
		logging.String(logging.FieldSourceID, doc.SourceID))

	maxAttempts := e.cfg.Queue.MaxAttempts
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out.Attempts = attempt
		if err := ctx.Err(); err != nil {
			out.Status = task.StatusCancelled
			out.Err = Wrap(ErrCancelled, "executor", "run", "cancelled before attempt", err)
			return out
		}

		res := e.runAttempt(ctx, doc, source, attempt)
		out.ExitCode = res.exitCode
		out.Stdout = res.stdout
		out.Stderr = res.stderr
		e.writeReport(doc, source, attempt, res)

		if res.err == nil {
			out.Status = task.StatusCompleted
			out.Err = nil
			log.Info("task completed",
				logging.Int("attempt", attempt),
				logging.Duration("duration", res.duration))
			return out
		}
		out.Err = res.err
		if errors.Is(res.err, ErrCancelled) {
			out.Status = task.StatusCancelled
			log.Info("task cancelled", logging.Int("attempt", attempt))
			return out
		}
		log.Warn("attempt failed",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", maxAttempts),
			logging.Int("exit_code", res.exitCode),
			logging.Error(res.err))
	}

	out.Status = task.StatusFailed
	return out
}

type attemptResult struct {
	exitCode int
	stdout   string
	stderr   string
	duration time.Duration
	err      error
}

func (e *Executor) runAttempt(ctx context.Context, doc task.Document, source config.Source, attempt int) attemptResult {
	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if timeout := e.cfg.BackendTimeout(); timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	args := append(append([]string{}, e.cfg.Backend.Args...), doc.Path)
	cmd := exec.CommandContext(runCtx, e.cfg.Backend.Command, args...)
	cmd.Dir = e.cfg.WorkspaceFor(source)
	cmd.Env = append(os.Environ(),
		"TASKQUEUE_TASK_ID="+doc.ID,
		"TASKQUEUE_SOURCE_ID="+doc.SourceID,
		fmt.Sprintf("TASKQUEUE_ATTEMPT=%d", attempt))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	err := cmd.Run()
	res := attemptResult{
		stdout:   truncate(stdout.String()),
		stderr:   truncate(stderr.String()),
		duration: time.Since(started),
		exitCode: exitCode(cmd, err),
	}
	switch {
	case err == nil:
	case ctx.Err() != nil:
		res.err = Wrap(ErrCancelled, "executor", "run", "backend interrupted", ctx.Err())
	case runCtx.Err() != nil:
		res.err = Wrap(ErrTimeout, "executor", "run",
			fmt.Sprintf("backend exceeded %s", e.cfg.BackendTimeout()), runCtx.Err())
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.err = Wrap(ErrExternalTool, "executor", "run",
				fmt.Sprintf("backend exited %d", res.exitCode), nil)
		} else {
			res.err = Wrap(ErrConfiguration, "executor", "run", "backend could not start", err)
		}
	}
	return res
}

// writeReport persists one attempt's captured output for later inspection.
// Report failures are logged and otherwise ignored.
func (e *Executor) writeReport(doc task.Document, source config.Source, attempt int, res attemptResult) {
	dir := source.ReportsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		e.log.Warn("cannot create reports dir", logging.Error(err))
		return
	}
	var body bytes.Buffer
	fmt.Fprintf(&body, "task: %s\nattempt: %d\nexit_code: %d\nduration: %s\n",
		doc.ID, attempt, res.exitCode, res.duration.Round(time.Millisecond))
	if res.err != nil {
		fmt.Fprintf(&body, "error: %v\n", res.err)
	}
	fmt.Fprintf(&body, "\n--- stdout ---\n%s\n--- stderr ---\n%s\n", res.stdout, res.stderr)

	path := filepath.Join(dir, fmt.Sprintf("%s.attempt-%d.log", doc.ID, attempt))
	if err := fileutil.WriteFileAtomic(path, body.Bytes(), 0o644); err != nil {
		e.log.Warn("cannot write attempt report", logging.Error(err))
	}
}

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}

func truncate(s string) string {
	if len(s) <= outputLimit {
		return s
	}
	return s[:outputLimit] + "\n[output truncated]"
}
