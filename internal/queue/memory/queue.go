// Package memory provides an in-process work queue.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned by Dequeue once the queue is closed and drained.
var ErrClosed = errors.New("queue closed")

// Queue is a bounded in-memory FIFO with context-aware operations.
type Queue[T any] struct {
	ch      chan T
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue[T any](capacity int) *Queue[T] {
	return &Queue[T]{
		ch: make(chan T, max(capacity, 0)),
	}
}

// Enqueue pushes an item or returns if the context ends first.
func (q *Queue[T]) Enqueue(ctx context.Context, item T) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- item:
		return nil
	}
}

// Dequeue pops the next item, respecting context cancellation. Items queued
// before Close are still delivered; ErrClosed follows once drained.
func (q *Queue[T]) Dequeue(ctx context.Context) (T, error) {
	var zero T
	select {
	case <-ctx.Done():
		return zero, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case item, ok := <-q.ch:
		if !ok {
			return zero, ErrClosed
		}
		return item, nil
	}
}

// Len reports the number of buffered items.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Close stops intake. It is safe to call more than once.
func (q *Queue[T]) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
