package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/queue"
	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/types"
)

// Async hands notifications to a bounded queue and returns as soon as they
// are buffered. A worker pool drains the queue into the downstream sink.
// Deliver blocks while the queue is full, until ctx is done.
type Async struct {
	queue      *queue.Queue
	maxRetries int
}

// NewAsync creates an Async sink on q. maxRetries is recorded on each
// delivery for dead-letter bookkeeping.
func NewAsync(q *queue.Queue, maxRetries int) *Async {
	return &Async{queue: q, maxRetries: maxRetries}
}

// Deliver enqueues n
func (a *Async) Deliver(ctx context.Context, n types.Notification) error {
	d := &types.Delivery{
		Notification: n,
		Meta: &types.DeliveryMeta{
			EnqueuedAt: time.Now(),
			MaxRetries: a.maxRetries,
		},
	}
	if err := a.queue.Enqueue(ctx, d); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}
