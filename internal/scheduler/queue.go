package scheduler

import (
	"sort"
	"sync"
)

// Queue is the set of project paths waiting for the next sync batch.
// Membership is idempotent; enqueueing a path twice is a no-op.
type Queue struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	return &Queue{paths: make(map[string]struct{})}
}

// Add inserts a path, returning false when it was already queued
func (q *Queue) Add(path string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.paths[path]; ok {
		return false
	}
	q.paths[path] = struct{}{}
	return true
}

// Remove drops a path from the queue
func (q *Queue) Remove(path string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.paths, path)
}

// Has reports whether a path is queued
func (q *Queue) Has(path string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.paths[path]
	return ok
}

// Len returns the number of queued paths
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.paths)
}

// Drain atomically empties the queue and returns its contents sorted.
// Paths enqueued after the snapshot land in the next batch.
func (q *Queue) Drain() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	paths := make([]string, 0, len(q.paths))
	for path := range q.paths {
		paths = append(paths, path)
	}
	q.paths = make(map[string]struct{})

	sort.Strings(paths)
	return paths
}
