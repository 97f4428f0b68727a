package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nate-a11y/lrpbolt-sub001/internal/queue"
)

// Processor handles one queued document. Returned errors are infrastructure
// failures; delivery outcomes are written onto the document itself.
type Processor interface {
	Process(ctx context.Context, id, eventID string) error
}

// Processors routes each queue kind to its pipeline.
type Processors map[queue.Kind]Processor

// Worker is a single goroutine that continuously pulls items from the
// priority queue and runs them through the matching pipeline.
type Worker struct {
	id         int
	q          *queue.PriorityQueue
	processors Processors
	logger     *zap.Logger

	// Hooks for metrics, injected by the pool so the worker stays metrics-agnostic.
	onDepth  func(high, normal, low int)
	onFailed func(kind queue.Kind)
}

// NewWorker constructs a worker. onDepth and onFailed are optional (nil = no-op).
func NewWorker(
	id int,
	q *queue.PriorityQueue,
	processors Processors,
	logger *zap.Logger,
	onDepth func(high, normal, low int),
	onFailed func(queue.Kind),
) *Worker {
	if onDepth == nil {
		onDepth = func(int, int, int) {}
	}
	if onFailed == nil {
		onFailed = func(queue.Kind) {}
	}
	return &Worker{
		id: id, q: q, processors: processors, logger: logger,
		onDepth: onDepth, onFailed: onFailed,
	}
}

// Run blocks until ctx is cancelled, processing one queue item per iteration.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started", zap.Int("id", w.id))
	for {
		item, ok := w.q.Dequeue(ctx)
		if !ok {
			w.logger.Info("worker stopping", zap.Int("id", w.id))
			return
		}
		w.onDepth(w.q.Depths())
		w.process(ctx, item)
	}
}

func (w *Worker) process(ctx context.Context, item queue.Item) {
	start := time.Now()
	log := w.logger.With(
		zap.String("kind", string(item.Kind)),
		zap.String("id", item.ID),
	)

	p, ok := w.processors[item.Kind]
	if !ok {
		log.Error("no processor for queue kind")
		w.onFailed(item.Kind)
		return
	}

	if err := p.Process(ctx, item.ID, item.EventID); err != nil {
		log.Error("processing failed", zap.Error(err))
		w.onFailed(item.Kind)
		return
	}
	log.Debug("processed", zap.Duration("elapsed", time.Since(start)))
}
