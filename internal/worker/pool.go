package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/nate-a11y/lrpbolt-sub001/internal/config"
	"github.com/nate-a11y/lrpbolt-sub001/internal/queue"
)

// MetricHooks carries the metric callback functions injected by main.
// Using a struct keeps the pool constructor signature clean.
type MetricHooks struct {
	OnDepth  func(high, normal, low int)
	OnFailed func(kind queue.Kind)
}

// Pool manages the lifecycle of all workers.
// All workers share the same priority queue; the queue's double-select
// pattern handles priority ordering internally.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
}

// NewPool creates cfg.Workers identical workers (at least one).
func NewPool(
	cfg *config.Config,
	q *queue.PriorityQueue,
	processors Processors,
	logger *zap.Logger,
	hooks MetricHooks,
) *Pool {
	total := cfg.Workers
	if total < 1 {
		total = 1
	}
	workers := make([]*Worker, total)

	for i := range workers {
		workers[i] = NewWorker(
			i, q, processors,
			logger.With(zap.Int("worker_id", i)),
			hooks.OnDepth,
			hooks.OnFailed,
		)
	}

	return &Pool{workers: workers}
}

// Start launches all workers as goroutines.
// Cancelling ctx triggers a graceful shutdown of the entire pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has returned after ctx is cancelled,
// so in-flight dispatches finish before shutdown.
func (p *Pool) Wait() {
	p.wg.Wait()
}
