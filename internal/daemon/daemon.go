// Package daemon orchestrates the per-source pipelines: one queue, worker,
// and watcher per enabled source, plus the stale-lock sweeps and the single
// instance guard.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"taskqueue/internal/config"
	"taskqueue/internal/executor"
	"taskqueue/internal/logging"
	"taskqueue/internal/queue"
	"taskqueue/internal/watcher"
)

// ErrAlreadyRunning reports that another daemon holds the instance lock.
var ErrAlreadyRunning = errors.New("daemon already running")

// ErrNotRunning reports operations against a stopped daemon.
var ErrNotRunning = errors.New("daemon not running")

// ErrUnknownSource reports an operation against a source id that is not
// registered.
var ErrUnknownSource = errors.New("unknown source")

// Daemon owns the runtime for every enabled source.
type Daemon struct {
	cfg        *config.Config
	configPath string
	log        *slog.Logger
	exec       *executor.Executor
	instance   *flock.Flock

	mu      sync.Mutex
	running bool
	started time.Time
	ctx     context.Context
	cancel  context.CancelFunc
	sources map[string]*sourceRuntime
}

// sourceRuntime bundles the per-source pipeline.
type sourceRuntime struct {
	source config.Source
	worker *queue.Worker
	watch  *watcher.Watcher
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a daemon from the loaded configuration. configPath is where
// source add/remove operations persist their changes.
func New(cfg *config.Config, configPath string, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Daemon{
		cfg:        cfg,
		configPath: configPath,
		log:        logging.WithComponent(logger, "daemon"),
		exec:       executor.New(cfg, logger),
		instance:   flock.New(filepath.Join(cfg.Paths.RunDir, "daemon.lock")),
		sources:    make(map[string]*sourceRuntime),
	}
}

// InstanceLockPath returns the path of the single-instance lock file.
func (d *Daemon) InstanceLockPath() string {
	return d.instance.Path()
}

// Start claims the instance lock and brings up every enabled source.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return nil
	}

	if err := os.MkdirAll(d.cfg.Paths.RunDir, 0o755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}
	locked, err := d.instance.TryLock()
	if err != nil {
		return fmt.Errorf("instance lock: %w", err)
	}
	if !locked {
		return ErrAlreadyRunning
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.running = true
	d.started = time.Now().UTC()

	for _, src := range d.cfg.EnabledSources() {
		if err := d.startSourceLocked(src); err != nil {
			d.stopLocked()
			return err
		}
	}
	if interval := d.cfg.ReclaimInterval(); interval > 0 {
		go d.reclaimLoop(d.ctx, interval)
	}

	d.log.Info("daemon started",
		logging.Int("pid", os.Getpid()),
		logging.Int("sources", len(d.sources)))
	return nil
}

// startSourceLocked spins up the pipeline for one source. Callers hold d.mu.
func (d *Daemon) startSourceLocked(src config.Source) error {
	if _, exists := d.sources[src.ID]; exists {
		return fmt.Errorf("source %q already started", src.ID)
	}
	if err := src.EnsureLayout(); err != nil {
		return fmt.Errorf("source %q: %w", src.ID, err)
	}

	w := queue.NewWorker(d.cfg, src, queue.New(), d.exec, nil, d.log)

	// Locks from a previous crashed run block nothing once their owner is
	// gone.
	if _, err := w.ReclaimStale(); err != nil {
		d.log.Warn("startup lock sweep failed",
			logging.String(logging.FieldSourceID, src.ID),
			logging.Error(err))
	}
	if _, err := w.LoadBacklog(); err != nil {
		return fmt.Errorf("source %q backlog: %w", src.ID, err)
	}

	rt := &sourceRuntime{source: src, worker: w, done: make(chan struct{})}
	srcCtx, cancel := context.WithCancel(d.ctx)
	rt.cancel = cancel

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Run(srcCtx)
	}()

	if d.cfg.Watch.Enabled {
		rt.watch = watcher.New(watcher.Options{
			Dir:          src.PendingDir(),
			SourceID:     src.ID,
			Debounce:     d.cfg.DebounceWindow(),
			PollInterval: time.Duration(d.cfg.Watch.FallbackSeconds) * time.Second,
			Notify:       w.Notify,
			Logger:       d.log,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			rt.watch.Run(srcCtx)
		}()
	}
	go func() {
		wg.Wait()
		close(rt.done)
	}()

	d.sources[src.ID] = rt
	d.log.Info("source started",
		logging.String(logging.FieldSourceID, src.ID),
		logging.String("path", src.Path))
	return nil
}

// reclaimLoop periodically sweeps stale locks across all sources.
func (d *Daemon) reclaimLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, rt := range d.runtimes() {
				if _, err := rt.worker.ReclaimStale(); err != nil {
					d.log.Warn("periodic lock sweep failed",
						logging.String(logging.FieldSourceID, rt.source.ID),
						logging.Error(err))
				}
			}
		}
	}
}

func (d *Daemon) runtimes() []*sourceRuntime {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*sourceRuntime, 0, len(d.sources))
	for _, rt := range d.sources {
		out = append(out, rt)
	}
	return out
}

// Stop shuts the daemon down, letting in-flight tasks finish within the
// configured grace window before aborting them.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

func (d *Daemon) stopLocked() {
	if !d.running {
		return
	}
	d.log.Info("daemon stopping", logging.Duration("grace", d.cfg.ShutdownGrace()))
	d.cancel()

	grace := time.NewTimer(d.cfg.ShutdownGrace())
	defer grace.Stop()
	for _, rt := range d.sources {
		select {
		case <-rt.done:
		case <-grace.C:
			d.log.Warn("shutdown grace exceeded, aborting in-flight tasks")
			for _, rest := range d.sources {
				rest.worker.Abort()
			}
			for _, rest := range d.sources {
				<-rest.done
			}
			goto stopped
		}
	}
stopped:
	d.sources = make(map[string]*sourceRuntime)
	d.running = false
	if err := d.instance.Unlock(); err != nil {
		d.log.Warn("instance unlock failed", logging.Error(err))
	}
	d.log.Info("daemon stopped")
}

// Running reports whether Start has succeeded and Stop has not run.
func (d *Daemon) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// AddSource registers and starts a new source, persisting it to the config
// file.
func (d *Daemon) AddSource(src config.Source) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return ErrNotRunning
	}
	if _, exists := d.cfg.SourceByID(src.ID); exists {
		return fmt.Errorf("source %q already configured", src.ID)
	}

	d.cfg.Sources = append(d.cfg.Sources, src)
	if err := d.cfg.Validate(); err != nil {
		d.cfg.Sources = d.cfg.Sources[:len(d.cfg.Sources)-1]
		return err
	}
	if src.Enabled {
		if err := d.startSourceLocked(src); err != nil {
			d.cfg.Sources = d.cfg.Sources[:len(d.cfg.Sources)-1]
			return err
		}
	}
	if err := d.cfg.Save(d.configPath); err != nil {
		d.log.Warn("config save failed", logging.Error(err))
	}
	return nil
}

// RemoveSource stops a source's pipeline and drops it from the config file.
// Task documents on disk are left untouched.
func (d *Daemon) RemoveSource(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return ErrNotRunning
	}
	if _, exists := d.cfg.SourceByID(id); !exists {
		return fmt.Errorf("%w: %s", ErrUnknownSource, id)
	}

	if rt, ok := d.sources[id]; ok {
		rt.cancel()
		rt.worker.Abort()
		<-rt.done
		delete(d.sources, id)
	}
	kept := d.cfg.Sources[:0]
	for _, src := range d.cfg.Sources {
		if src.ID != id {
			kept = append(kept, src)
		}
	}
	d.cfg.Sources = kept
	if err := d.cfg.Save(d.configPath); err != nil {
		d.log.Warn("config save failed", logging.Error(err))
	}
	d.log.Info("source removed", logging.String(logging.FieldSourceID, id))
	return nil
}

// LoadBacklog rescans pending directories. An empty sourceID loads every
// active source. Returns documents added per source.
func (d *Daemon) LoadBacklog(sourceID string) (map[string]int, error) {
	if !d.Running() {
		return nil, ErrNotRunning
	}
	added := make(map[string]int)
	for _, rt := range d.runtimes() {
		if sourceID != "" && rt.source.ID != sourceID {
			continue
		}
		n, err := rt.worker.LoadBacklog()
		if err != nil {
			return added, err
		}
		added[rt.source.ID] = n
	}
	if sourceID != "" {
		if _, ok := added[sourceID]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSource, sourceID)
		}
	}
	return added, nil
}

// Cancel aborts a task in any source, or in the named source when sourceID
// is set. Reports whether the task was found.
func (d *Daemon) Cancel(sourceID, taskID string) (bool, error) {
	if !d.Running() {
		return false, ErrNotRunning
	}
	matched := false
	for _, rt := range d.runtimes() {
		if sourceID != "" && rt.source.ID != sourceID {
			continue
		}
		matched = true
		if rt.worker.Cancel(taskID) {
			return true, nil
		}
	}
	if sourceID != "" && !matched {
		return false, fmt.Errorf("%w: %s", ErrUnknownSource, sourceID)
	}
	return false, nil
}

// SourceStatus describes one source's pipeline.
type SourceStatus struct {
	ID       string   `json:"id"`
	Path     string   `json:"path"`
	Degraded bool     `json:"degraded"`
	Current  string   `json:"current,omitempty"`
	Queued   []string `json:"queued,omitempty"`
}

// Status is the daemon-wide snapshot served over IPC.
type Status struct {
	Running   bool           `json:"running"`
	PID       int            `json:"pid"`
	StartedAt time.Time      `json:"started_at"`
	Sources   []SourceStatus `json:"sources"`
}

// Status reports the current pipeline state for every active source.
func (d *Daemon) Status() Status {
	st := Status{
		Running: d.Running(),
		PID:     os.Getpid(),
	}
	d.mu.Lock()
	st.StartedAt = d.started
	d.mu.Unlock()

	for _, rt := range d.runtimes() {
		ss := SourceStatus{
			ID:      rt.source.ID,
			Path:    rt.source.Path,
			Current: rt.worker.Current(),
			Queued:  rt.worker.Queue().Snapshot(),
		}
		if rt.watch != nil {
			ss.Degraded = rt.watch.Degraded()
		}
		st.Sources = append(st.Sources, ss)
	}
	sort.Slice(st.Sources, func(i, j int) bool {
		return st.Sources[i].ID < st.Sources[j].ID
	})
	return st
}

// Worker returns the worker for a source id, for result and queue queries.
func (d *Daemon) Worker(sourceID string) (*queue.Worker, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rt, ok := d.sources[sourceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, sourceID)
	}
	return rt.worker, nil
}

// Config returns the daemon's configuration.
func (d *Daemon) Config() *config.Config {
	return d.cfg
}
