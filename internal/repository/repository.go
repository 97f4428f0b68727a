package repository

import (
	"context"
	"time"

	"github.com/nate-a11y/lrpbolt-sub001/internal/domain"
)

// WorkItemRepository persists the notification queue collection.
// The pgx implementation is in pg_work_item_repo.go.
// Tests use hand-written mocks (mock_*.go).
type WorkItemRepository interface {
	Create(ctx context.Context, w *domain.WorkItem) error
	GetByID(ctx context.Context, id string) (*domain.WorkItem, error)
	List(ctx context.Context, filter domain.ListFilter) ([]*domain.WorkItem, int, error)
	MarkSent(ctx context.Context, id string, outcomes []domain.TargetOutcome, at time.Time) error
	MarkError(ctx context.Context, id, errMsg string, outcomes []domain.TargetOutcome, at time.Time) error
	FindStaleQueued(ctx context.Context, olderThan time.Time, limit int) ([]*domain.WorkItem, error)
}

// OutboundRepository persists directly enqueued SMS messages.
type OutboundRepository interface {
	Create(ctx context.Context, m *domain.OutboundMessage) error
	GetByID(ctx context.Context, id string) (*domain.OutboundMessage, error)
	MarkSent(ctx context.Context, id, provider, providerMsgID string, at time.Time) error
	MarkError(ctx context.Context, id, errMsg string, at time.Time) error
	FindStaleQueued(ctx context.Context, olderThan time.Time, limit int) ([]*domain.OutboundMessage, error)
}

// MarkerStore creates idempotency markers. CreateMarker must fail with
// domain.ErrAlreadyClaimed when the key already exists.
type MarkerStore interface {
	CreateMarker(ctx context.Context, key string, at time.Time) error
}

// UserDirectory looks up users by opaque key. Missing users are
// domain.ErrNotFound.
type UserDirectory interface {
	GetUser(ctx context.Context, key string) (*domain.DirectoryUser, error)
}

// TokenDirectory holds push tokens. FindByEmails accepts at most
// MaxInQuery emails per call.
type TokenDirectory interface {
	FindByEmails(ctx context.Context, emails []string) ([]domain.TokenRecord, error)
	DeleteTokens(ctx context.Context, tokens []string) (int, error)
}

// MaxInQuery is the largest membership list a single token query may carry.
const MaxInQuery = 10

// AttemptRepository persists per-target redelivery records.
type AttemptRepository interface {
	CreateAttempts(ctx context.Context, attempts []*domain.DeliveryAttempt) error
	FindDue(ctx context.Context, now time.Time, limit int) ([]*domain.DeliveryAttempt, error)
	MarkDelivered(ctx context.Context, id string, attempts int, at time.Time) error
	Reschedule(ctx context.Context, id string, attempts int, next time.Time, errMsg string) error
	MarkExhausted(ctx context.Context, id string, attempts int, errMsg string) error
}
