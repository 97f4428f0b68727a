package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nate-a11y/lrpbolt-sub001/internal/domain"
	"github.com/nate-a11y/lrpbolt-sub001/internal/idempotency"
	"github.com/nate-a11y/lrpbolt-sub001/internal/provider"
	"github.com/nate-a11y/lrpbolt-sub001/internal/repository"
	"github.com/nate-a11y/lrpbolt-sub001/internal/status"
)

// Pipeline names. They namespace idempotency markers and label metrics.
const (
	PipelineNotifyQueue = "notifyQueue"
	PipelineOutbound    = "outboundMessages"
	PipelineTickets     = "ticketNotify"
)

// settleTimeout bounds the work done after a claim. That work runs on a
// context detached from the caller so that shutdown or a dropped request
// cannot leave a claimed item stuck in queued.
const settleTimeout = 2 * time.Minute

// settle returns the context used between a successful claim and the final
// status write.
func settle(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
}

// Dispatcher fans a ticket context out to resolved targets.
type Dispatcher interface {
	Dispatch(ctx context.Context, targets []domain.Target, tc domain.TicketContext) (*domain.DispatchReport, error)
}

// NotifyQueueProcessor runs one queued work item through the pipeline:
// claim, load, dispatch, report.
type NotifyQueueProcessor struct {
	guard       *idempotency.Guard
	items       repository.WorkItemRepository
	dispatcher  Dispatcher
	reporter    *status.Reporter
	logger      *zap.Logger
	onProcessed func(pipeline string, st domain.Status)
}

// NewNotifyQueueProcessor builds the processor. onProcessed is optional.
func NewNotifyQueueProcessor(
	guard *idempotency.Guard,
	items repository.WorkItemRepository,
	dispatcher Dispatcher,
	reporter *status.Reporter,
	logger *zap.Logger,
	onProcessed func(string, domain.Status),
) *NotifyQueueProcessor {
	if onProcessed == nil {
		onProcessed = func(string, domain.Status) {}
	}
	return &NotifyQueueProcessor{
		guard: guard, items: items, dispatcher: dispatcher,
		reporter: reporter, logger: logger, onProcessed: onProcessed,
	}
}

// Process handles work item id. Only claim and load failures are returned;
// delivery failures end up on the work item itself.
func (p *NotifyQueueProcessor) Process(ctx context.Context, id, eventID string) error {
	log := p.logger.With(zap.String("work_item_id", id))

	ok, err := p.guard.Claim(ctx, PipelineNotifyQueue+"/"+id, eventID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	ctx, cancel := settle(ctx)
	defer cancel()

	w, err := p.items.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn("work item vanished before processing")
		}
		return fmt.Errorf("load work item %s: %w", id, err)
	}
	if w.Status != domain.StatusQueued {
		log.Debug("work item already terminal", zap.String("status", string(w.Status)))
		return nil
	}

	targets := w.ParsedTargets()
	if dropped := len(w.Targets) - len(targets); dropped > 0 {
		log.Debug("dropped implausible targets", zap.Int("count", dropped))
	}

	report, dispatchErr := p.dispatcher.Dispatch(ctx, targets, w.Context)
	st := p.reporter.ReportWorkItem(ctx, id, report, dispatchErr)
	p.onProcessed(PipelineNotifyQueue, st)

	log.Info("work item processed",
		zap.String("status", string(st)),
		zap.Int("sent", report.Count(domain.OutcomeSent)),
		zap.Int("failed", report.Count(domain.OutcomeFailed)),
		zap.Int("skipped", report.Count(domain.OutcomeSkipped)),
	)
	return nil
}

// OutboundSMSProcessor delivers a directly enqueued SMS. It has no other
// channel to fall back to, so missing transport config is a terminal error.
type OutboundSMSProcessor struct {
	guard       *idempotency.Guard
	outbound    repository.OutboundRepository
	sms         provider.SMSSender
	reporter    *status.Reporter
	logger      *zap.Logger
	onProcessed func(pipeline string, st domain.Status)
}

func NewOutboundSMSProcessor(
	guard *idempotency.Guard,
	outbound repository.OutboundRepository,
	sms provider.SMSSender,
	reporter *status.Reporter,
	logger *zap.Logger,
	onProcessed func(string, domain.Status),
) *OutboundSMSProcessor {
	if onProcessed == nil {
		onProcessed = func(string, domain.Status) {}
	}
	return &OutboundSMSProcessor{
		guard: guard, outbound: outbound, sms: sms,
		reporter: reporter, logger: logger, onProcessed: onProcessed,
	}
}

// Process handles outbound message id.
func (p *OutboundSMSProcessor) Process(ctx context.Context, id, eventID string) error {
	log := p.logger.With(zap.String("outbound_id", id))

	ok, err := p.guard.Claim(ctx, PipelineOutbound+"/"+id, eventID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	ctx, cancel := settle(ctx)
	defer cancel()

	m, err := p.outbound.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load outbound message %s: %w", id, err)
	}
	if m.Status != domain.StatusQueued {
		log.Debug("outbound message already terminal", zap.String("status", string(m.Status)))
		return nil
	}

	if err := p.send(ctx, m); err != nil {
		log.Warn("sms delivery failed", zap.String("to", m.To), zap.Error(err))
		p.reporter.ReportOutboundError(ctx, id, err)
		p.onProcessed(PipelineOutbound, domain.StatusError)
		return nil
	}
	p.onProcessed(PipelineOutbound, domain.StatusSent)
	return nil
}

func (p *OutboundSMSProcessor) send(ctx context.Context, m *domain.OutboundMessage) error {
	if err := m.Check(); err != nil {
		return err
	}
	if missing := p.sms.Missing(); len(missing) > 0 {
		return &domain.MissingConfigError{Channel: domain.ChannelSMS, Vars: missing}
	}

	receipt, err := p.sms.Send(ctx, provider.SMSMessage{To: domain.NormalizePhone(m.To), Body: m.Body})
	if err != nil {
		return err
	}
	p.reporter.ReportOutboundSent(ctx, m.ID, provider.TwilioName, receipt.SID)
	return nil
}
