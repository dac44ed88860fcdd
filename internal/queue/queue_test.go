package queue_test

import (
	"testing"

	"taskqueue/internal/queue"
	"taskqueue/internal/task"
)

func doc(id string) task.Document {
	return task.Document{ID: id, Path: "/tmp/" + id + ".md", SourceID: "main"}
}

func TestEnqueuePopFIFO(t *testing.T) {
	q := queue.New()
	ids := []string{
		"task-20260101-090000-a",
		"task-20260101-090001-b",
		"task-20260101-090002-c",
	}
	for _, id := range ids {
		if !q.Enqueue(doc(id)) {
			t.Fatalf("Enqueue %s returned false", id)
		}
	}
	for _, want := range ids {
		got, ok := q.Pop()
		if !ok || got.ID != want {
			t.Fatalf("Pop: got %q ok=%v, want %q", got.ID, ok, want)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("Pop on empty queue should report false")
	}
}

func TestEnqueueDeduplicates(t *testing.T) {
	q := queue.New()
	if !q.Enqueue(doc("task-20260101-090000-a")) {
		t.Fatal("first Enqueue should succeed")
	}
	if q.Enqueue(doc("task-20260101-090000-a")) {
		t.Fatal("duplicate Enqueue should be rejected")
	}
	if q.Len() != 1 {
		t.Fatalf("expected length 1, got %d", q.Len())
	}
}

func TestRemove(t *testing.T) {
	q := queue.New()
	q.Enqueue(doc("task-20260101-090000-a"))
	q.Enqueue(doc("task-20260101-090001-b"))

	if !q.Remove("task-20260101-090000-a") {
		t.Fatal("Remove of queued id should succeed")
	}
	if q.Remove("task-20260101-090000-a") {
		t.Fatal("second Remove should report false")
	}
	got, ok := q.Pop()
	if !ok || got.ID != "task-20260101-090001-b" {
		t.Fatalf("unexpected head after Remove: %q ok=%v", got.ID, ok)
	}
	// A removed id can be enqueued again.
	if !q.Enqueue(doc("task-20260101-090000-a")) {
		t.Fatal("re-enqueue after Remove should succeed")
	}
}

func TestSnapshotPreservesOrder(t *testing.T) {
	q := queue.New()
	q.Enqueue(doc("task-20260101-090001-b"))
	q.Enqueue(doc("task-20260101-090000-a"))

	snap := q.Snapshot()
	if len(snap) != 2 || snap[0] != "task-20260101-090001-b" || snap[1] != "task-20260101-090000-a" {
		t.Fatalf("snapshot should preserve arrival order: %v", snap)
	}
}

func TestWakeSignalledOnEnqueue(t *testing.T) {
	q := queue.New()
	q.Enqueue(doc("task-20260101-090000-a"))
	select {
	case <-q.Wake():
	default:
		t.Fatal("expected wake signal after Enqueue")
	}
}
