package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/obs"
	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func delivery(email string) *types.Delivery {
	return &types.Delivery{Notification: types.Notification{EmailAddress: email, HistoryID: "1"}}
}

func TestQueue_FIFO(t *testing.T) {
	t.Parallel()

	metrics := obs.NewMetrics("test", prometheus.NewRegistry())
	q := NewQueue(2, metrics)
	ctx := context.Background()

	if err := q.Enqueue(ctx, delivery("a@b.com")); err != nil {
		t.Fatalf("enqueue a: %v", err)
	}
	if err := q.Enqueue(ctx, delivery("c@d.com")); err != nil {
		t.Fatalf("enqueue c: %v", err)
	}
	if q.Depth() != 2 {
		t.Fatalf("expected depth 2, got %d", q.Depth())
	}
	if got := testutil.ToFloat64(metrics.QueueDepth); got != 2 {
		t.Fatalf("expected queue depth metric 2, got %v", got)
	}

	first, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if first.Notification.EmailAddress != "a@b.com" {
		t.Fatalf("expected a@b.com first, got %s", first.Notification.EmailAddress)
	}
	if got := testutil.ToFloat64(metrics.NotificationsQueuedTotal); got != 2 {
		t.Fatalf("expected 2 queued, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.QueueDepth); got != 1 {
		t.Fatalf("expected queue depth metric 1, got %v", got)
	}
}

func TestQueue_EnqueueBlocksWhenFull(t *testing.T) {
	t.Parallel()

	q := NewQueue(1, nil)
	if err := q.Enqueue(context.Background(), delivery("a@b.com")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := q.Enqueue(ctx, delivery("c@d.com"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded on full queue, got %v", err)
	}
}

func TestQueue_CloseDrainsThenReportsClosed(t *testing.T) {
	t.Parallel()

	q := NewQueue(2, nil)
	ctx := context.Background()
	if err := q.Enqueue(ctx, delivery("a@b.com")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	q.Close()
	q.Close()

	if err := q.Enqueue(ctx, delivery("c@d.com")); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed after close, got %v", err)
	}

	d, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("expected buffered delivery after close, got %v", err)
	}
	if d.Notification.EmailAddress != "a@b.com" {
		t.Fatalf("unexpected delivery %+v", d)
	}

	if _, err := q.Dequeue(ctx); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed on drained queue, got %v", err)
	}
}

func TestQueue_DequeueHonorsContext(t *testing.T) {
	t.Parallel()

	q := NewQueue(1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := q.Dequeue(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
