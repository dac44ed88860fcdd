package watcher_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"taskqueue/internal/task"
	"taskqueue/internal/watcher"
)

type recorder struct {
	mu   sync.Mutex
	seen []string
}

func (r *recorder) notify(doc task.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, doc.ID)
}

func (r *recorder) waitFor(t *testing.T, id string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		for _, got := range r.seen {
			if got == id {
				r.mu.Unlock()
				return
			}
		}
		r.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("never saw %s; got %v", id, r.snapshot())
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.seen))
	copy(out, r.seen)
	return out
}

func startWatcher(t *testing.T, dir string, rec *recorder) *watcher.Watcher {
	t.Helper()
	w := watcher.New(watcher.Options{
		Dir:          dir,
		SourceID:     "main",
		Debounce:     20 * time.Millisecond,
		PollInterval: 50 * time.Millisecond,
		Notify:       rec.notify,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w
}

func TestInitialScanDeliversBacklog(t *testing.T) {
	dir := t.TempDir()
	id := "task-20260101-120000-backlog"
	if err := os.WriteFile(filepath.Join(dir, id+".md"), []byte("body"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := &recorder{}
	startWatcher(t, dir, rec)
	rec.waitFor(t, id, 2*time.Second)
}

func TestNewFileDeliveredAfterSettle(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, dir, rec)

	id := "task-20260101-120001-arrival"
	if err := os.WriteFile(filepath.Join(dir, id+".md"), []byte("body"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	rec.waitFor(t, id, 3*time.Second)
}

func TestNonTaskFilesIgnored(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, dir, rec)

	for _, name := range []string{"notes.md", ".task-20260101-120000-x.lock", "task-bad.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	id := "task-20260101-120002-real"
	if err := os.WriteFile(filepath.Join(dir, id+".md"), []byte("body"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	rec.waitFor(t, id, 3*time.Second)

	for _, got := range rec.snapshot() {
		if got != id {
			t.Fatalf("unexpected delivery %q", got)
		}
	}
}

func TestPollingFallbackWhenDirMissingAtStart(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "pending")

	rec := &recorder{}
	w := startWatcher(t, dir, rec)

	// The watch target does not exist, so the watcher degrades to polling.
	deadline := time.Now().Add(time.Second)
	for !w.Degraded() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !w.Degraded() {
		t.Fatal("expected degraded mode for missing directory")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	id := "task-20260101-120003-late"
	if err := os.WriteFile(filepath.Join(dir, id+".md"), []byte("body"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	rec.waitFor(t, id, 3*time.Second)
}
