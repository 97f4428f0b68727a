package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nate-a11y/lrpbolt-sub001/internal/domain"
	"github.com/nate-a11y/lrpbolt-sub001/internal/idempotency"
	"github.com/nate-a11y/lrpbolt-sub001/internal/repository"
)

// Resolver expands recipient descriptors into emails and push tokens.
type Resolver interface {
	ResolveEmails(ctx context.Context, candidates []string) []string
	ResolveFCMTokens(ctx context.Context, emails []string) []string
}

// TicketNotifier turns a ticket write into a queued work item.
type TicketNotifier struct {
	guard    *idempotency.Guard
	resolver Resolver
	items    repository.WorkItemRepository
	logger   *zap.Logger
}

func NewTicketNotifier(
	guard *idempotency.Guard,
	resolver Resolver,
	items repository.WorkItemRepository,
	logger *zap.Logger,
) *TicketNotifier {
	return &TicketNotifier{guard: guard, resolver: resolver, items: items, logger: logger}
}

// HandleEvent resolves the event's recipients and creates a queued work item
// for them. It returns the new work item id, or "" when the event was a
// duplicate, did not warrant a notification, or resolved to nobody.
func (n *TicketNotifier) HandleEvent(ctx context.Context, ev domain.TicketEvent) (string, error) {
	if err := ev.Validate(); err != nil {
		return "", err
	}
	log := n.logger.With(zap.String("ticket_id", ev.TicketID), zap.String("kind", string(ev.Kind)))

	ok, err := n.guard.Claim(ctx, ev.DedupePath(), ev.EventID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}

	if !ev.ShouldNotify() {
		log.Debug("status unchanged, no notification")
		return "", nil
	}

	emails := n.resolver.ResolveEmails(ctx, ev.RecipientDescriptors())
	tokens := n.resolver.ResolveFCMTokens(ctx, emails)

	targets := make([]domain.RawTarget, 0, len(tokens)+len(emails)+len(ev.Phones))
	for _, tok := range tokens {
		targets = append(targets, domain.RawTarget{Type: domain.ChannelPush, To: tok})
	}
	for _, email := range emails {
		targets = append(targets, domain.RawTarget{Type: domain.ChannelEmail, To: email})
	}
	for _, phone := range ev.Phones {
		if t, err := domain.ParseTarget(domain.RawTarget{Type: domain.ChannelSMS, To: phone}); err == nil {
			targets = append(targets, domain.ToRaw(t))
		}
	}

	if len(targets) == 0 {
		log.Info("no deliverable recipients")
		return "", nil
	}

	w := &domain.WorkItem{Targets: targets, Context: ev.Context()}
	if err := n.items.Create(ctx, w); err != nil {
		return "", fmt.Errorf("create work item: %w", err)
	}

	log.Info("work item queued",
		zap.String("work_item_id", w.ID),
		zap.Int("emails", len(emails)),
		zap.Int("tokens", len(tokens)),
	)
	return w.ID, nil
}
