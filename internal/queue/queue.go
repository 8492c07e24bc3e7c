// Package queue provides a bounded buffered queue for notification deliveries with backpressure support
package queue

import (
	"context"
	"sync"

	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/obs"
	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/types"
)

// Queue represents a bounded buffered channel for deliveries
// When the queue is full, Enqueue blocks, providing backpressure
type Queue struct {
	items   chan *types.Delivery
	done    chan struct{}
	size    int
	metrics *obs.Metrics
	once    sync.Once
}

// NewQueue creates a new Queue with the specified buffer size
// The queue will block on Enqueue when full, providing backpressure
func NewQueue(size int, metrics *obs.Metrics) *Queue {
	q := &Queue{
		items:   make(chan *types.Delivery, size),
		done:    make(chan struct{}),
		size:    size,
		metrics: metrics,
	}

	// Initialize queue depth metric to 0
	if metrics != nil {
		metrics.NullifyQueueDepth()
	}

	return q
}

// Enqueue adds a delivery to the queue
// This operation blocks if the queue is full (backpressure)
// Returns an error if the context is cancelled or the queue is closed
func (q *Queue) Enqueue(ctx context.Context, d *types.Delivery) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.items <- d:
		// Update metrics after successful enqueue
		if q.metrics != nil {
			q.metrics.IncrementQueueDepth()
			q.metrics.IncrementNotificationsQueued()
		}
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue removes and returns a delivery from the queue
// This operation blocks if the queue is empty
// Returns ErrQueueClosed once the queue is closed and drained
func (q *Queue) Dequeue(ctx context.Context) (*types.Delivery, error) {
	select {
	case d := <-q.items:
		q.dequeued()
		return d, nil
	case <-q.done:
		// Drain whatever is still buffered before reporting closed
		select {
		case d := <-q.items:
			q.dequeued()
			return d, nil
		default:
			return nil, ErrQueueClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *Queue) dequeued() {
	// Update metrics after successful dequeue
	if q.metrics != nil {
		q.metrics.DecrementQueueDepth()
	}
}

// Depth returns the current number of deliveries in the queue
func (q *Queue) Depth() int {
	return len(q.items)
}

// Size returns the queue capacity
func (q *Queue) Size() int {
	return q.size
}

// Close marks the queue closed
// After closing, Enqueue fails with ErrQueueClosed; deliveries already
// buffered can still be dequeued. The item channel itself is never closed
// so a concurrent Enqueue cannot panic.
func (q *Queue) Close() {
	q.once.Do(func() {
		close(q.done)
	})
}

// Errors
var (
	ErrQueueClosed = &QueueError{msg: "queue is closed"}
)

// QueueError represents a queue operation error
type QueueError struct {
	msg string
}

func (e *QueueError) Error() string {
	return e.msg
}
