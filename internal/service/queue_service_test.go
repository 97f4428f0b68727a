package service_test

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/nate-a11y/lrpbolt-sub001/internal/domain"
	"github.com/nate-a11y/lrpbolt-sub001/internal/repository"
	"github.com/nate-a11y/lrpbolt-sub001/internal/service"
)

func newQueueService() (*service.QueueService, *repository.MockWorkItemRepository, *repository.MockOutboundRepository) {
	items := repository.NewMockWorkItemRepository()
	outbound := repository.NewMockOutboundRepository()
	return service.NewQueueService(items, outbound, zap.NewNop()), items, outbound
}

var validWorkItem = domain.CreateWorkItemRequest{
	Targets: []domain.RawTarget{{Type: domain.ChannelEmail, To: "a@b.com"}},
	Context: domain.TicketContext{Ticket: domain.Ticket{Title: "Broken van"}},
}

func TestQueueService_EnqueueWorkItem(t *testing.T) {
	svc, _, _ := newQueueService()
	ctx := context.Background()

	w, err := svc.EnqueueWorkItem(ctx, validWorkItem)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.ID == "" {
		t.Fatal("expected a non-empty ID")
	}
	if w.Status != domain.StatusQueued {
		t.Fatalf("expected status=queued, got %s", w.Status)
	}

	got, err := svc.GetWorkItem(ctx, w.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Targets) != 1 {
		t.Fatalf("expected 1 target, got %d", len(got.Targets))
	}
}

func TestQueueService_EnqueueWorkItem_MissingTitle(t *testing.T) {
	svc, _, _ := newQueueService()

	bad := validWorkItem
	bad.Context.Ticket.Title = "  "
	_, err := svc.EnqueueWorkItem(context.Background(), bad)
	if err != domain.ErrInvalidContext {
		t.Fatalf("expected ErrInvalidContext, got %v", err)
	}
}

func TestQueueService_EnqueueSMS(t *testing.T) {
	svc, _, _ := newQueueService()
	ctx := context.Background()

	m, err := svc.EnqueueSMS(ctx, domain.CreateSMSRequest{To: " +15551234567 ", Body: "Your ride is here"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Channel != domain.ChannelSMS || m.Status != domain.StatusQueued || m.To != "+15551234567" {
		t.Fatalf("unexpected message: %+v", m)
	}

	if _, err := svc.EnqueueSMS(ctx, domain.CreateSMSRequest{To: "+15551234567"}); err != domain.ErrMissingBody {
		t.Fatalf("expected ErrMissingBody, got %v", err)
	}
	if _, err := svc.GetOutbound(ctx, "missing"); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQueueService_ListWorkItems(t *testing.T) {
	svc, items, _ := newQueueService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.EnqueueWorkItem(ctx, validWorkItem); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	items.Put(&domain.WorkItem{ID: "sent-1", Status: domain.StatusSent})

	queued := domain.StatusQueued
	list, total, err := svc.ListWorkItems(ctx, domain.ListFilter{Status: &queued})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(list) != 3 {
		t.Fatalf("expected 3 queued items, got total=%d len=%d", total, len(list))
	}
}
