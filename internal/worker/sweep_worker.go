package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nate-a11y/lrpbolt-sub001/internal/queue"
	"github.com/nate-a11y/lrpbolt-sub001/internal/repository"
)

const sweepBatch = 200

// SweepWorker recovers queue documents whose change notification was missed
// (listener down, queue full) by polling for rows still queued after a grace
// period and enqueueing them at low priority. The idempotency guard drops
// anything that was in fact already claimed.
type SweepWorker struct {
	items    repository.WorkItemRepository
	outbound repository.OutboundRepository
	q        *queue.PriorityQueue
	interval time.Duration
	grace    time.Duration
	logger   *zap.Logger

	// ids swept last round; a row is only re-enqueued once while it stays stale
	swept map[string]struct{}
}

func NewSweepWorker(
	items repository.WorkItemRepository,
	outbound repository.OutboundRepository,
	q *queue.PriorityQueue,
	interval, grace time.Duration,
	logger *zap.Logger,
) *SweepWorker {
	return &SweepWorker{
		items: items, outbound: outbound, q: q,
		interval: interval, grace: grace, logger: logger,
		swept: make(map[string]struct{}),
	}
}

// Run ticks every interval and sweeps stale rows.
// Stops cleanly when ctx is cancelled.
func (sw *SweepWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	sw.logger.Info("sweep worker started", zap.Duration("interval", sw.interval), zap.Duration("grace", sw.grace))

	for {
		select {
		case <-ctx.Done():
			sw.logger.Info("sweep worker stopping")
			return
		case <-ticker.C:
			sw.Sweep(ctx)
		}
	}
}

// Sweep runs one pass and returns how many rows were enqueued.
func (sw *SweepWorker) Sweep(ctx context.Context) int {
	cutoff := time.Now().UTC().Add(-sw.grace)
	var stale []queue.Item

	items, err := sw.items.FindStaleQueued(ctx, cutoff, sweepBatch)
	if err != nil {
		sw.logger.Error("sweep poll error", zap.String("kind", string(queue.KindNotify)), zap.Error(err))
	}
	for _, w := range items {
		stale = append(stale, queue.Item{Kind: queue.KindNotify, ID: w.ID, Priority: queue.PriorityLow})
	}

	msgs, err := sw.outbound.FindStaleQueued(ctx, cutoff, sweepBatch)
	if err != nil {
		sw.logger.Error("sweep poll error", zap.String("kind", string(queue.KindSMS)), zap.Error(err))
	}
	for _, m := range msgs {
		stale = append(stale, queue.Item{Kind: queue.KindSMS, ID: m.ID, Priority: queue.PriorityLow})
	}

	next := make(map[string]struct{}, len(stale))
	enqueued := 0
	for _, it := range stale {
		key := string(it.Kind) + "/" + it.ID
		if _, done := sw.swept[key]; done {
			next[key] = struct{}{}
			continue
		}
		if err := sw.q.Enqueue(it); err != nil {
			sw.logger.Warn("could not enqueue stale row", zap.String("id", it.ID), zap.Error(err))
			continue
		}
		next[key] = struct{}{}
		enqueued++
	}
	sw.swept = next

	if enqueued > 0 {
		sw.logger.Info("re-enqueued stale queue rows", zap.Int("count", enqueued))
	}
	return enqueued
}
