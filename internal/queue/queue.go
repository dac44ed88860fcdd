// Package queue holds the per-source FIFO of pending task documents and the
// worker that drains it. Each source has exactly one worker, so tasks within
// a source never overlap; ordering follows the lexical filename sort, which
// matches the timestamp embedded in task ids.
package queue

import (
	"sync"

	"taskqueue/internal/task"
)

// Queue is a deduplicating FIFO of task documents for one source.
type Queue struct {
	mu    sync.Mutex
	ids   map[string]struct{}
	order []task.Document
	wake  chan struct{}
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{
		ids:  make(map[string]struct{}),
		wake: make(chan struct{}, 1),
	}
}

// Enqueue appends doc unless a document with the same id is already queued.
// Reports whether the document was added.
func (q *Queue) Enqueue(doc task.Document) bool {
	q.mu.Lock()
	if _, dup := q.ids[doc.ID]; dup {
		q.mu.Unlock()
		return false
	}
	q.ids[doc.ID] = struct{}{}
	q.order = append(q.order, doc)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// Pop removes and returns the oldest queued document.
func (q *Queue) Pop() (task.Document, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.order) == 0 {
		return task.Document{}, false
	}
	doc := q.order[0]
	q.order = q.order[1:]
	delete(q.ids, doc.ID)
	return doc, true
}

// Remove drops a queued document by id before it runs. Reports whether the
// id was queued.
func (q *Queue) Remove(taskID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.ids[taskID]; !ok {
		return false
	}
	delete(q.ids, taskID)
	for i, doc := range q.order {
		if doc.ID == taskID {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of queued documents.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

// Snapshot returns the queued ids in order.
func (q *Queue) Snapshot() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.order))
	for i, doc := range q.order {
		out[i] = doc.ID
	}
	return out
}

// Wake returns the channel a worker blocks on while the queue is empty.
func (q *Queue) Wake() <-chan struct{} {
	return q.wake
}
