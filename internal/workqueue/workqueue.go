// Package workqueue provides an unbounded FIFO queue that hands each item to exactly one consumer.
package workqueue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when pushing to or popping from a closed and drained queue.
var ErrClosed = errors.New("queue is closed")

// Queue is safe for use by multiple producers and consumers.
type Queue[T any] struct {
	m      sync.Mutex
	items  []T
	closed bool
	// closed and replaced on every push and on close to wake waiting consumers
	notifyC chan struct{}
}

// New returns an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		notifyC: make(chan struct{}),
	}
}

// Push appends v to the end of the queue.
func (q *Queue[T]) Push(v T) error {
	q.m.Lock()
	defer q.m.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, v)
	q.wakeup()
	return nil
}

// Pop removes the item at the front of the queue, waiting until one is available.
// Remaining items are still delivered after Close. ErrClosed is returned when the queue is closed and empty.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	for {
		q.m.Lock()
		if len(q.items) > 0 {
			v := q.items[0]
			var zero T
			q.items[0] = zero
			q.items = q.items[1:]
			q.m.Unlock()
			return v, nil
		}
		if q.closed {
			q.m.Unlock()
			var zero T
			return zero, ErrClosed
		}
		notifyC := q.notifyC
		q.m.Unlock()

		select {
		case <-notifyC:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Len returns the number of items waiting in the queue.
func (q *Queue[T]) Len() int {
	q.m.Lock()
	defer q.m.Unlock()
	return len(q.items)
}

// Close the queue for new items. Waiting consumers are woken up.
func (q *Queue[T]) Close() {
	q.m.Lock()
	defer q.m.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.wakeup()
}

func (q *Queue[T]) wakeup() {
	close(q.notifyC)
	q.notifyC = make(chan struct{})
}
