// Package queue provides the FIFO that carries events, journal rows and load
// requests between goroutines.
package queue

import "sync"

// Queue is a mutex-guarded FIFO with a coalescing wake-up channel, so a consumer can
// select on new work next to its other channels.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	ready chan struct{}
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{ready: make(chan struct{}, 1)}
}

// Push appends items in order.
func (q *Queue[T]) Push(items ...T) {
	if len(items) == 0 {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, items...)
	q.mu.Unlock()
	q.notify()
}

// TryPush appends item unless the queue already holds limit items. A non-positive
// limit means unbounded.
func (q *Queue[T]) TryPush(limit int, item T) bool {
	q.mu.Lock()
	full := limit > 0 && len(q.items) >= limit
	if !full {
		q.items = append(q.items, item)
	}
	q.mu.Unlock()
	if full {
		return false
	}
	q.notify()
	return true
}

// Pop removes the oldest item.
func (q *Queue[T]) Pop() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return item, false
	}
	item = q.items[0]
	var zero T
	q.items[0] = zero // release for GC
	q.items = q.items[1:]
	return item, true
}

// Drain removes and returns everything queued, oldest first.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// Len is the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Ready fires after pushes. Several pushes can share one signal, so receivers drain
// until empty.
func (q *Queue[T]) Ready() <-chan struct{} {
	return q.ready
}

func (q *Queue[T]) notify() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
