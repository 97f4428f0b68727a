package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nate-a11y/lrpbolt-sub001/internal/domain"
	"github.com/nate-a11y/lrpbolt-sub001/internal/queue"
)

func item(id string, p queue.Priority) queue.Item {
	return queue.Item{Kind: queue.KindNotify, ID: id, Priority: p}
}

func TestPriorityQueue_BasicEnqueueDequeue(t *testing.T) {
	q := queue.New()
	ctx := context.Background()

	if err := q.Enqueue(item("1", queue.PriorityNormal)); err != nil {
		t.Fatal(err)
	}

	got, ok := q.Dequeue(ctx)
	if !ok {
		t.Fatal("expected item, got nothing")
	}
	if got.ID != "1" || got.Kind != queue.KindNotify {
		t.Fatalf("unexpected item: %+v", got)
	}
}

// A high-priority item inserted after a normal one is still served first.
func TestPriorityQueue_HighBeforeNormal(t *testing.T) {
	q := queue.New()
	ctx := context.Background()

	_ = q.Enqueue(item("normal", queue.PriorityNormal))
	_ = q.Enqueue(item("high", queue.PriorityHigh))

	first, _ := q.Dequeue(ctx)
	if first.ID != "high" {
		t.Fatalf("expected high to be dequeued first, got %q", first.ID)
	}
}

func TestPriorityQueue_ContextCancellation(t *testing.T) {
	q := queue.New()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue(ctx)
		done <- ok
	}()

	cancel()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected ok=false after context cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not return after context cancellation")
	}
}

func TestPriorityQueue_ErrQueueFull(t *testing.T) {
	q := queue.NewWithCapacity(1, 1, 1)

	if err := q.Enqueue(item("a", queue.PriorityLow)); err != nil {
		t.Fatalf("unexpected error on empty queue: %v", err)
	}
	if err := q.Enqueue(item("b", queue.PriorityLow)); !errors.Is(err, domain.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if err := q.Enqueue(item("c", "urgent")); err == nil {
		t.Fatal("expected error for unknown priority")
	}
}

func TestPriorityQueue_ConcurrentEnqueueDequeue(t *testing.T) {
	q := queue.New()

	const producers = 5
	const itemsPerProducer = 100
	const total = producers * itemsPerProducer

	received := make(chan struct{}, total)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var consumerDone sync.WaitGroup
	consumerDone.Add(1)
	go func() {
		defer consumerDone.Done()
		for {
			_, ok := q.Dequeue(ctx)
			if !ok {
				return
			}
			received <- struct{}{}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < itemsPerProducer; j++ {
				_ = q.Enqueue(item("id", queue.PriorityNormal))
			}
		}()
	}
	wg.Wait()

	for i := 0; i < total; i++ {
		select {
		case <-received:
		case <-ctx.Done():
			t.Fatalf("timeout: only received %d/%d items", i, total)
		}
	}
	cancel()
	consumerDone.Wait()
}

func TestPriorityQueue_Depths(t *testing.T) {
	q := queue.New()

	_ = q.Enqueue(item("h", queue.PriorityHigh))
	_ = q.Enqueue(item("n1", queue.PriorityNormal))
	_ = q.Enqueue(item("n2", queue.PriorityNormal))
	_ = q.Enqueue(item("l", queue.PriorityLow))

	high, normal, low := q.Depths()
	if high != 1 || normal != 2 || low != 1 {
		t.Fatalf("unexpected depths: high=%d normal=%d low=%d", high, normal, low)
	}
}

func TestDefaultPriority(t *testing.T) {
	if queue.DefaultPriority(queue.KindSMS) != queue.PriorityHigh {
		t.Fatal("direct sms should be high priority")
	}
	if queue.DefaultPriority(queue.KindNotify) != queue.PriorityNormal {
		t.Fatal("ticket notifications should be normal priority")
	}
}
