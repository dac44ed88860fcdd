package lockfile_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"taskqueue/internal/lockfile"
)

const testTaskID = "task-20260101-120000-demo"

func alwaysAlive(int) bool { return true }

func neverAlive(int) bool { return false }

func TestAcquireWritesRecord(t *testing.T) {
	m := lockfile.NewManager(t.TempDir(), alwaysAlive)

	rec, err := m.Acquire(testTaskID, "worker-1", "thread-1")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if rec.PID != os.Getpid() {
		t.Fatalf("expected own pid %d, got %d", os.Getpid(), rec.PID)
	}

	stored, err := m.Read(testTaskID)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if stored.TaskID != testTaskID || stored.Worker != "worker-1" || stored.ThreadID != "thread-1" {
		t.Fatalf("unexpected record: %#v", stored)
	}
	if time.Since(stored.StartedAt) > time.Minute {
		t.Fatalf("started_at not recent: %s", stored.StartedAt)
	}
}

func TestAcquireRefusesLiveOwner(t *testing.T) {
	m := lockfile.NewManager(t.TempDir(), alwaysAlive)

	if _, err := m.Acquire(testTaskID, "worker-1", "thread-1"); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	_, err := m.Acquire(testTaskID, "worker-2", "thread-2")
	if !errors.Is(err, lockfile.ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld, got %v", err)
	}
}

func TestAcquireReclaimsDeadOwner(t *testing.T) {
	m := lockfile.NewManager(t.TempDir(), neverAlive)

	if _, err := m.Acquire(testTaskID, "worker-1", "thread-1"); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	rec, err := m.Acquire(testTaskID, "worker-2", "thread-2")
	if err != nil {
		t.Fatalf("expected reclaim to succeed, got %v", err)
	}
	if rec.Worker != "worker-2" {
		t.Fatalf("expected new owner, got %q", rec.Worker)
	}
}

func TestAcquireReplacesCorruptLock(t *testing.T) {
	dir := t.TempDir()
	m := lockfile.NewManager(dir, alwaysAlive)

	lockPath := filepath.Join(dir, "."+testTaskID+".lock")
	if err := os.WriteFile(lockPath, []byte("not json"), 0o644); err != nil {
		t.Fatalf("seed corrupt lock: %v", err)
	}
	if _, err := m.Acquire(testTaskID, "worker-1", "thread-1"); err != nil {
		t.Fatalf("Acquire over corrupt lock failed: %v", err)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	m := lockfile.NewManager(t.TempDir(), alwaysAlive)

	if _, err := m.Acquire(testTaskID, "worker-1", "thread-1"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := m.Release(testTaskID); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := m.Release(testTaskID); err != nil {
		t.Fatalf("second Release should be a no-op, got %v", err)
	}
	if _, err := m.Read(testTaskID); !os.IsNotExist(err) {
		t.Fatalf("expected lock file gone, got %v", err)
	}
}

func TestReclaimStaleSweepsDeadLocksOnly(t *testing.T) {
	dir := t.TempDir()
	livePID := os.Getpid()
	probe := func(pid int) bool { return pid == livePID }
	m := lockfile.NewManager(dir, probe)

	liveID := "task-20260101-120000-live"
	if _, err := m.Acquire(liveID, "worker-1", "thread-1"); err != nil {
		t.Fatalf("Acquire live lock: %v", err)
	}

	deadID := "task-20260101-120001-dead"
	dead := lockfile.NewManager(dir, alwaysAlive)
	if _, err := dead.Acquire(deadID, "worker-2", "thread-2"); err != nil {
		t.Fatalf("Acquire dead lock: %v", err)
	}
	// Rewrite the dead lock so its pid does not match the live process.
	rec, err := dead.Read(deadID)
	if err != nil {
		t.Fatalf("Read dead lock: %v", err)
	}
	rec.PID = 999999
	if err := os.Remove(dead.Path(deadID)); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := os.WriteFile(dead.Path(deadID), mustJSON(t, rec), 0o644); err != nil {
		t.Fatalf("rewrite dead lock: %v", err)
	}

	// Stray files in the directory must be ignored.
	if err := os.WriteFile(filepath.Join(dir, "task-20260101-120002-doc.md"), []byte("x"), 0o644); err != nil {
		t.Fatalf("seed document: %v", err)
	}

	reclaimed, err := m.ReclaimStale()
	if err != nil {
		t.Fatalf("ReclaimStale failed: %v", err)
	}
	if len(reclaimed) != 1 || reclaimed[0] != deadID {
		t.Fatalf("expected only dead lock reclaimed, got %v", reclaimed)
	}
	if !m.Held(liveID) {
		t.Fatal("live lock should survive the sweep")
	}
}

func TestHeld(t *testing.T) {
	m := lockfile.NewManager(t.TempDir(), neverAlive)
	if m.Held(testTaskID) {
		t.Fatal("absent lock reported held")
	}
	if _, err := m.Acquire(testTaskID, "worker-1", "thread-1"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if m.Held(testTaskID) {
		t.Fatal("lock with dead owner reported held")
	}
}

func TestProcessExists(t *testing.T) {
	if !lockfile.ProcessExists(os.Getpid()) {
		t.Fatal("own pid should exist")
	}
	if lockfile.ProcessExists(0) {
		t.Fatal("pid 0 should not be reported alive")
	}
	if lockfile.ProcessExists(-1) {
		t.Fatal("negative pid should not be reported alive")
	}
}

func mustJSON(t *testing.T, rec *lockfile.Record) []byte {
	t.Helper()
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal record: %v", err)
	}
	return data
}
