// Package watcher surfaces newly arrived task documents in a source's
// pending directory. It prefers filesystem notification and degrades to
// interval polling when a watch cannot be established.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"taskqueue/internal/logging"
	"taskqueue/internal/scanner"
	"taskqueue/internal/task"
)

// Notify receives a stable task document. Implementations must be safe for
// concurrent use; the watcher may deliver from multiple goroutines.
type Notify func(doc task.Document)

// Options configures a Watcher.
type Options struct {
	Dir      string
	SourceID string
	// Debounce is how long a file must keep the same size and mtime before
	// it is delivered.
	Debounce time.Duration
	// PollInterval is the scan cadence used when notification is
	// unavailable, and the safety-net rescan cadence otherwise.
	PollInterval time.Duration
	Notify       Notify
	Logger       *slog.Logger
}

// Watcher delivers stable pending documents to a Notify callback.
type Watcher struct {
	opts     Options
	log      *slog.Logger
	degraded atomic.Bool

	mu      sync.Mutex
	pending map[string]struct{}
}

// New returns a watcher. Run must be called to start delivery.
func New(opts Options) *Watcher {
	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}
	return &Watcher{
		opts:    opts,
		log:     logging.WithComponent(log, "watcher").With(logging.String(logging.FieldSourceID, opts.SourceID)),
		pending: make(map[string]struct{}),
	}
}

// Degraded reports whether the watcher is running on polling because the
// filesystem watch could not be established.
func (w *Watcher) Degraded() bool {
	return w.degraded.Load()
}

// Run watches until ctx is cancelled. It always performs an initial scan so
// documents that arrived before startup are delivered.
func (w *Watcher) Run(ctx context.Context) error {
	w.scan()

	fw, err := fsnotify.NewWatcher()
	if err == nil {
		err = fw.Add(w.opts.Dir)
	}
	if err != nil {
		w.degraded.Store(true)
		w.log.Warn("filesystem watch unavailable, polling instead",
			logging.Error(err),
			logging.Duration("interval", w.opts.PollInterval))
		if fw != nil {
			fw.Close()
		}
		return w.poll(ctx)
	}
	defer fw.Close()

	w.log.Info("watching for task documents", logging.String("dir", w.opts.Dir))

	// Low-cadence rescan catches events lost while the event buffer was
	// full and files moved in without generating a usable event.
	rescan := time.NewTicker(w.opts.PollInterval)
	defer rescan.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				w.degraded.Store(true)
				return w.poll(ctx)
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			if strings.HasPrefix(name, ".") {
				continue
			}
			if _, ok := task.ParseFilename(name); !ok {
				continue
			}
			w.settle(ctx, event.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				w.degraded.Store(true)
				return w.poll(ctx)
			}
			w.log.Warn("watch error", logging.Error(err))
		case <-rescan.C:
			w.scan()
		}
	}
}

// poll is the degraded loop: full directory scans at the poll interval.
func (w *Watcher) poll(ctx context.Context) error {
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.scan()
		}
	}
}

// scan delivers every stable candidate currently in the directory. The
// callback is responsible for deduplication, so redelivery is harmless.
func (w *Watcher) scan() {
	docs, err := scanner.ListCandidates(w.opts.Dir, w.opts.SourceID)
	if err != nil {
		w.log.Warn("scan failed", logging.Error(err))
		return
	}
	for _, doc := range docs {
		w.opts.Notify(doc)
	}
}

// settle waits until path has kept the same size and mtime for the debounce
// window, then delivers it. Concurrent settles for the same path collapse
// into one.
func (w *Watcher) settle(ctx context.Context, path string) {
	w.mu.Lock()
	if _, active := w.pending[path]; active {
		w.mu.Unlock()
		return
	}
	w.pending[path] = struct{}{}
	w.mu.Unlock()

	go func() {
		defer func() {
			w.mu.Lock()
			delete(w.pending, path)
			w.mu.Unlock()
		}()

		var lastSize int64 = -1
		var lastMod time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.opts.Debounce):
			}
			doc, ok, err := scanner.Stat(path, w.opts.SourceID)
			if err != nil {
				w.log.Warn("stat during settle failed", logging.Error(err), logging.String("path", path))
				return
			}
			if !ok {
				return
			}
			if doc.Size == lastSize && doc.ModTime.Equal(lastMod) {
				w.opts.Notify(doc)
				return
			}
			lastSize, lastMod = doc.Size, doc.ModTime
		}
	}()
}
