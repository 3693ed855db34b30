package queue

import (
	"context"
	"sync"
)

// Queue is an unbounded thread-safe FIFO queue. Put never blocks, so it is safe to call while
// holding other locks.
type Queue[T any] struct {
	mu    sync.Mutex
	cond  *sync.Cond // used to wait for elements in the queue
	elems []T
}

// New creates a new queue.
func New[T any]() *Queue[T] {
	q := &Queue[T]{elems: make([]T, 0)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Put adds an element to the queue.
func (q *Queue[T]) Put(t T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.elems = append(q.elems, t)
	q.cond.Broadcast()
}

// TryGet removes and returns the head of the queue, if there is one.
func (q *Queue[T]) TryGet() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var t T
	if q.empty() {
		return t, false
	}
	t = q.elems[0]
	q.elems = q.elems[1:]
	return t, true
}

// GetWithContext removes and returns an element from the queue. If the queue is empty, it
// blocks until an element is available or the context is canceled.
func (q *Queue[T]) GetWithContext(ctx context.Context) (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			q.mu.Lock()
			q.cond.Broadcast()
			q.mu.Unlock()
		case <-done:
		}
	}()

	for q.empty() && ctx.Err() == nil {
		q.cond.Wait()
	}
	if !q.empty() {
		res := q.elems[0]
		q.elems = q.elems[1:]
		return res, nil
	}
	var t T
	return t, ctx.Err()
}

// RemoveIf drops every queued element for which drop returns true and reports how many were
// removed.
func (q *Queue[T]) RemoveIf(drop func(T) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.elems[:0]
	for _, e := range q.elems {
		if !drop(e) {
			kept = append(kept, e)
		}
	}
	removed := len(q.elems) - len(kept)
	var zero T
	for i := len(kept); i < len(q.elems); i++ {
		q.elems[i] = zero
	}
	q.elems = kept
	return removed
}

// Len returns the number of elements in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.elems)
}

func (q *Queue[T]) empty() bool {
	return len(q.elems) == 0
}
