package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"taskqueue/internal/config"
	"taskqueue/internal/task"
)

// SeedTask writes a pending task document for the source and returns it.
func SeedTask(t testing.TB, src config.Source, id string) task.Document {
	t.Helper()
	if !task.ValidID(id) {
		t.Fatalf("invalid task id %q", id)
	}
	path := filepath.Join(src.PendingDir(), id+task.Extension)
	body := fmt.Sprintf("# %s\n\nseeded at %s\n", id, time.Now().Format(time.RFC3339))
	if err := os.MkdirAll(src.PendingDir(), 0o755); err != nil {
		t.Fatalf("mkdir pending: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("seed task %s: %v", id, err)
	}
	return task.Document{ID: id, Path: path, SourceID: src.ID}
}

// TaskID builds a valid task id with the given ordinal baked into the
// timestamp so lexical order matches creation order.
func TaskID(ordinal int, slug string) string {
	ts := time.Date(2026, 1, 1, 9, 0, 0, 0, time.Local).Add(time.Duration(ordinal) * time.Second)
	return task.NewID(ts, slug)
}
