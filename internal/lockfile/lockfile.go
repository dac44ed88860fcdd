// Package lockfile implements per-task advisory locks backed by JSON lock
// files living beside the task documents. A lock names the process that
// claimed the task; a lock whose process is gone is stale and may be
// reclaimed by any worker.
package lockfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"taskqueue/internal/task"
)

// ErrLockHeld reports that a live process already holds the task lock.
var ErrLockHeld = errors.New("task lock held by another worker")

// Record is the JSON body of a lock file.
type Record struct {
	TaskID    string    `json:"task_id"`
	Worker    string    `json:"worker"`
	ThreadID  string    `json:"thread_id"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
}

// LivenessProbe reports whether the process with the given pid is running.
type LivenessProbe func(pid int) bool

// Manager acquires and releases task locks within a single directory.
type Manager struct {
	dir   string
	alive LivenessProbe
}

// NewManager returns a manager for lock files under dir. A nil probe uses
// the local process table.
func NewManager(dir string, probe LivenessProbe) *Manager {
	if probe == nil {
		probe = ProcessExists
	}
	return &Manager{dir: dir, alive: probe}
}

// Path returns the lock file path for a task id.
func (m *Manager) Path(taskID string) string {
	return filepath.Join(m.dir, "."+taskID+".lock")
}

// Acquire claims the lock for taskID on behalf of the calling process. If an
// existing lock belongs to a dead process it is removed and the claim is
// retried once. Returns ErrLockHeld when a live owner exists.
func (m *Manager) Acquire(taskID, worker, threadID string) (*Record, error) {
	rec := &Record{
		TaskID:    taskID,
		Worker:    worker,
		ThreadID:  threadID,
		PID:       os.Getpid(),
		StartedAt: time.Now().UTC(),
	}
	for attempt := 0; attempt < 2; attempt++ {
		created, err := m.tryCreate(rec)
		if err != nil {
			return nil, err
		}
		if created {
			return rec, nil
		}
		owner, err := m.Read(taskID)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			// Unreadable lock file counts as stale.
			if removeErr := os.Remove(m.Path(taskID)); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, fmt.Errorf("remove corrupt lock for %s: %w", taskID, removeErr)
			}
			continue
		}
		if m.alive(owner.PID) {
			return nil, fmt.Errorf("%w: pid %d since %s", ErrLockHeld, owner.PID, owner.StartedAt.Format(time.RFC3339))
		}
		if err := os.Remove(m.Path(taskID)); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reclaim stale lock for %s: %w", taskID, err)
		}
	}
	return nil, fmt.Errorf("%w: lock for %s contested", ErrLockHeld, taskID)
}

func (m *Manager) tryCreate(rec *Record) (bool, error) {
	f, err := os.OpenFile(m.Path(rec.TaskID), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("create lock for %s: %w", rec.TaskID, err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		f.Close()
		os.Remove(m.Path(rec.TaskID))
		return false, fmt.Errorf("write lock for %s: %w", rec.TaskID, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(m.Path(rec.TaskID))
		return false, fmt.Errorf("close lock for %s: %w", rec.TaskID, err)
	}
	return true, nil
}

// Read returns the lock record for taskID.
func (m *Manager) Read(taskID string) (*Record, error) {
	data, err := os.ReadFile(m.Path(taskID))
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode lock for %s: %w", taskID, err)
	}
	return &rec, nil
}

// Release removes the lock for taskID. Releasing an absent lock is not an
// error.
func (m *Manager) Release(taskID string) error {
	if err := os.Remove(m.Path(taskID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release lock for %s: %w", taskID, err)
	}
	return nil
}

// Held reports whether a live process currently holds the lock for taskID.
func (m *Manager) Held(taskID string) bool {
	rec, err := m.Read(taskID)
	if err != nil {
		return false
	}
	return m.alive(rec.PID)
}

// ReclaimStale scans the directory and removes every lock whose owning
// process is gone. Returns the task ids whose locks were reclaimed.
func (m *Manager) ReclaimStale() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan locks in %s: %w", m.dir, err)
	}
	var reclaimed []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		taskID, ok := lockTaskID(entry.Name())
		if !ok {
			continue
		}
		rec, err := m.Read(taskID)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			// Corrupt lock files are treated as stale.
			if removeErr := os.Remove(m.Path(taskID)); removeErr == nil {
				reclaimed = append(reclaimed, taskID)
			}
			continue
		}
		if m.alive(rec.PID) {
			continue
		}
		if err := os.Remove(m.Path(taskID)); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return reclaimed, fmt.Errorf("remove stale lock %s: %w", entry.Name(), err)
		}
		reclaimed = append(reclaimed, taskID)
	}
	return reclaimed, nil
}

// lockTaskID extracts the task id from a lock file name.
func lockTaskID(name string) (string, bool) {
	if !strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".lock") {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(name, "."), ".lock")
	if !task.ValidID(id) {
		return "", false
	}
	return id, true
}

// ProcessExists probes the local process table with a null signal.
func ProcessExists(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	// EPERM means the process exists but belongs to another user.
	return errors.Is(err, unix.EPERM)
}
