// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import "sync"

// Job asks the indexer to merge one document into its project's scope.
type Job struct {
	ProjectID  string
	DocumentID string
}

// Queue is a bounded hand-off between uploads and the indexer. Push never
// blocks; a full queue drops the job and the document stays pending until
// the indexer reconciles.
type Queue struct {
	mu     sync.RWMutex
	ch     chan Job
	closed bool
}

// NewQueue returns a queue holding at most size jobs.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{ch: make(chan Job, size)}
}

// Push enqueues j and reports whether it was accepted.
func (q *Queue) Push(j Job) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	select {
	case q.ch <- j:
		return true
	default:
		return false
	}
}

// Jobs returns the receive side of the queue.
func (q *Queue) Jobs() <-chan Job {
	return q.ch
}

// Len returns the number of queued jobs.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops accepting jobs. Queued jobs remain readable.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}
