// Package status writes dispatch outcomes back onto queue documents.
package status

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nate-a11y/lrpbolt-sub001/internal/domain"
	"github.com/nate-a11y/lrpbolt-sub001/internal/repository"
)

// Reporter performs the single terminal write for each queue document.
// Writes are best-effort: a failed write is logged and never retried.
type Reporter struct {
	items       repository.WorkItemRepository
	outbound    repository.OutboundRepository
	attempts    repository.AttemptRepository
	maxAttempts int
	backoff     []time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// New builds a Reporter. attempts may be nil, which disables per-target
// redelivery. backoff[i] is the delay before attempt i+2.
func New(
	items repository.WorkItemRepository,
	outbound repository.OutboundRepository,
	attempts repository.AttemptRepository,
	maxAttempts int,
	backoff []time.Duration,
	logger *zap.Logger,
) *Reporter {
	if len(backoff) == 0 {
		backoff = []time.Duration{time.Minute}
	}
	return &Reporter{
		items:       items,
		outbound:    outbound,
		attempts:    attempts,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ReportWorkItem marks the work item sent when dispatchErr is nil and error
// otherwise, storing the per-target outcomes either way. Failed email and
// SMS targets get a pending DeliveryAttempt. Returns the status written.
func (r *Reporter) ReportWorkItem(ctx context.Context, id string, report *domain.DispatchReport, dispatchErr error) domain.Status {
	log := r.logger.With(zap.String("work_item_id", id))
	now := r.now()

	var outcomes []domain.TargetOutcome
	if report != nil {
		outcomes = report.Outcomes
	}

	if dispatchErr == nil {
		if err := r.items.MarkSent(ctx, id, outcomes, now); err != nil {
			log.Error("failed to mark work item sent", zap.Error(err))
		}
		return domain.StatusSent
	}

	if err := r.items.MarkError(ctx, id, Describe(dispatchErr), outcomes, now); err != nil {
		log.Error("failed to mark work item error", zap.Error(err))
	}
	r.scheduleRedelivery(ctx, id, report.Failed(), now, log)
	return domain.StatusError
}

func (r *Reporter) scheduleRedelivery(ctx context.Context, id string, failed []domain.TargetOutcome, now time.Time, log *zap.Logger) {
	if r.attempts == nil || r.maxAttempts <= 1 {
		return
	}

	var pending []*domain.DeliveryAttempt
	for _, o := range failed {
		if o.Channel != domain.ChannelEmail && o.Channel != domain.ChannelSMS {
			continue
		}
		pending = append(pending, &domain.DeliveryAttempt{
			WorkItemID:  id,
			Channel:     o.Channel,
			Address:     o.To,
			Attempts:    1,
			MaxAttempts: r.maxAttempts,
			Status:      domain.AttemptPending,
			LastError:   o.Error,
			NextRetryAt: now.Add(r.delay(1)),
		})
	}
	if len(pending) == 0 {
		return
	}
	if err := r.attempts.CreateAttempts(ctx, pending); err != nil {
		log.Error("failed to record delivery attempts", zap.Int("count", len(pending)), zap.Error(err))
		return
	}
	log.Info("scheduled redelivery", zap.Int("targets", len(pending)))
}

// ReportAttempt records the result of one redelivery. The parent work item
// is never touched.
func (r *Reporter) ReportAttempt(ctx context.Context, a *domain.DeliveryAttempt, sendErr error) domain.AttemptStatus {
	log := r.logger.With(
		zap.String("attempt_id", a.ID),
		zap.String("work_item_id", a.WorkItemID),
		zap.String("channel", string(a.Channel)),
	)
	attempts := a.Attempts + 1

	if sendErr == nil {
		if err := r.attempts.MarkDelivered(ctx, a.ID, attempts, r.now()); err != nil {
			log.Error("failed to mark attempt delivered", zap.Error(err))
		}
		return domain.AttemptDelivered
	}

	msg := Describe(sendErr)
	if attempts >= a.MaxAttempts {
		if err := r.attempts.MarkExhausted(ctx, a.ID, attempts, msg); err != nil {
			log.Error("failed to mark attempt exhausted", zap.Error(err))
		}
		log.Warn("redelivery exhausted", zap.Int("attempts", attempts), zap.String("error", msg))
		return domain.AttemptExhausted
	}

	next := r.now().Add(r.delay(attempts))
	if err := r.attempts.Reschedule(ctx, a.ID, attempts, next, msg); err != nil {
		log.Error("failed to reschedule attempt", zap.Error(err))
	}
	return domain.AttemptPending
}

// delay is the wait after the given number of completed attempts, clamped
// to the last configured backoff.
func (r *Reporter) delay(completed int) time.Duration {
	idx := completed - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(r.backoff) {
		idx = len(r.backoff) - 1
	}
	return r.backoff[idx]
}

// ReportOutboundSent marks a direct SMS sent.
func (r *Reporter) ReportOutboundSent(ctx context.Context, id, providerName, providerMsgID string) {
	if err := r.outbound.MarkSent(ctx, id, providerName, providerMsgID, r.now()); err != nil {
		r.logger.Error("failed to mark outbound message sent", zap.String("outbound_id", id), zap.Error(err))
	}
}

// ReportOutboundError marks a direct SMS failed with a description of err.
func (r *Reporter) ReportOutboundError(ctx context.Context, id string, sendErr error) {
	if err := r.outbound.MarkError(ctx, id, Describe(sendErr), r.now()); err != nil {
		r.logger.Error("failed to mark outbound message error", zap.String("outbound_id", id), zap.Error(err))
	}
}
