package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nate-a11y/lrpbolt-sub001/internal/domain"
	"github.com/nate-a11y/lrpbolt-sub001/internal/repository"
)

const retryBatch = 100

// Redeliverer re-sends one failed email or SMS target.
type Redeliverer interface {
	Redeliver(ctx context.Context, a *domain.DeliveryAttempt, tc domain.TicketContext) (string, error)
}

// AttemptReporter records the result of one redelivery.
type AttemptReporter interface {
	ReportAttempt(ctx context.Context, a *domain.DeliveryAttempt, sendErr error) domain.AttemptStatus
}

// RetryWorker polls for delivery attempts whose next_retry_at is in the
// past and redelivers them. Retry times live in the database, so they
// survive restarts. Parent work items keep their terminal status.
type RetryWorker struct {
	attempts repository.AttemptRepository
	items    repository.WorkItemRepository
	sender   Redeliverer
	reporter AttemptReporter
	interval time.Duration
	logger   *zap.Logger
}

func NewRetryWorker(
	attempts repository.AttemptRepository,
	items repository.WorkItemRepository,
	sender Redeliverer,
	reporter AttemptReporter,
	interval time.Duration,
	logger *zap.Logger,
) *RetryWorker {
	return &RetryWorker{
		attempts: attempts, items: items, sender: sender, reporter: reporter,
		interval: interval, logger: logger,
	}
}

// Run ticks every interval and redelivers any due attempts.
// Stops cleanly when ctx is cancelled.
func (rw *RetryWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	rw.logger.Info("retry worker started", zap.Duration("interval", rw.interval))

	for {
		select {
		case <-ctx.Done():
			rw.logger.Info("retry worker stopping")
			return
		case <-ticker.C:
			rw.RunOnce(ctx)
		}
	}
}

// RunOnce redelivers every attempt due now and returns how many were tried.
func (rw *RetryWorker) RunOnce(ctx context.Context) int {
	due, err := rw.attempts.FindDue(ctx, time.Now().UTC(), retryBatch)
	if err != nil {
		rw.logger.Error("retry poll error", zap.Error(err))
		return 0
	}

	delivered := 0
	for _, a := range due {
		if ctx.Err() != nil {
			break
		}
		err := rw.redeliver(ctx, a)
		if rw.reporter.ReportAttempt(ctx, a, err) == domain.AttemptDelivered {
			delivered++
		}
	}

	if len(due) > 0 {
		rw.logger.Info("redelivery pass", zap.Int("due", len(due)), zap.Int("delivered", delivered))
	}
	return len(due)
}

func (rw *RetryWorker) redeliver(ctx context.Context, a *domain.DeliveryAttempt) error {
	w, err := rw.items.GetByID(ctx, a.WorkItemID)
	if err != nil {
		return fmt.Errorf("load work item %s: %w", a.WorkItemID, err)
	}
	_, err = rw.sender.Redeliver(ctx, a, w.Context)
	return err
}
