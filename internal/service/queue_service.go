package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nate-a11y/lrpbolt-sub001/internal/domain"
	"github.com/nate-a11y/lrpbolt-sub001/internal/repository"
)

// QueueService is the direct enqueue and read surface used by the HTTP API
// and the CLI. Processing is triggered by the row's change notification.
type QueueService struct {
	items    repository.WorkItemRepository
	outbound repository.OutboundRepository
	logger   *zap.Logger
}

func NewQueueService(
	items repository.WorkItemRepository,
	outbound repository.OutboundRepository,
	logger *zap.Logger,
) *QueueService {
	return &QueueService{items: items, outbound: outbound, logger: logger}
}

// EnqueueWorkItem validates and persists a work item with status queued.
// Targets are stored as given; implausible ones are dropped at dispatch.
func (s *QueueService) EnqueueWorkItem(ctx context.Context, req domain.CreateWorkItemRequest) (*domain.WorkItem, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	w := &domain.WorkItem{Targets: req.Targets, Context: req.Context}
	if w.Targets == nil {
		w.Targets = []domain.RawTarget{}
	}
	if err := s.items.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("persist work item: %w", err)
	}
	s.logger.Debug("work item enqueued", zap.String("work_item_id", w.ID), zap.Int("targets", len(w.Targets)))
	return w, nil
}

// EnqueueSMS validates and persists a direct SMS with status queued.
func (s *QueueService) EnqueueSMS(ctx context.Context, req domain.CreateSMSRequest) (*domain.OutboundMessage, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	m := &domain.OutboundMessage{
		To:      strings.TrimSpace(req.To),
		Body:    req.Body,
		Channel: domain.ChannelSMS,
	}
	if err := s.outbound.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("persist outbound message: %w", err)
	}
	s.logger.Debug("sms enqueued", zap.String("outbound_id", m.ID))
	return m, nil
}

func (s *QueueService) GetWorkItem(ctx context.Context, id string) (*domain.WorkItem, error) {
	return s.items.GetByID(ctx, id)
}

func (s *QueueService) GetOutbound(ctx context.Context, id string) (*domain.OutboundMessage, error) {
	return s.outbound.GetByID(ctx, id)
}

func (s *QueueService) ListWorkItems(ctx context.Context, filter domain.ListFilter) ([]*domain.WorkItem, int, error) {
	return s.items.List(ctx, filter)
}
