package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nate-a11y/lrpbolt-sub001/internal/domain"
)

// MockWorkItemRepository is a hand-written, in-memory WorkItemRepository
// used in unit tests. No mock-generation library needed.
type MockWorkItemRepository struct {
	mu    sync.RWMutex
	items map[string]*domain.WorkItem

	// Optional error overrides, set in tests to simulate failure paths.
	CreateErr    error
	GetByIDErr   error
	MarkSentErr  error
	MarkErrorErr error
}

func NewMockWorkItemRepository() *MockWorkItemRepository {
	return &MockWorkItemRepository{items: make(map[string]*domain.WorkItem)}
}

func (m *MockWorkItemRepository) Create(_ context.Context, w *domain.WorkItem) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = now
	w.Status = domain.StatusQueued
	clone := *w
	m.items[w.ID] = &clone
	return nil
}

// Put stores an item as-is, bypassing Create's defaults.
func (m *MockWorkItemRepository) Put(w *domain.WorkItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *w
	m.items[w.ID] = &clone
}

func (m *MockWorkItemRepository) GetByID(_ context.Context, id string) (*domain.WorkItem, error) {
	if m.GetByIDErr != nil {
		return nil, m.GetByIDErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *w
	return &clone, nil
}

func (m *MockWorkItemRepository) List(_ context.Context, f domain.ListFilter) ([]*domain.WorkItem, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.WorkItem, 0, len(m.items))
	for _, w := range m.items {
		if f.Status != nil && w.Status != *f.Status {
			continue
		}
		clone := *w
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, len(result), nil
}

func (m *MockWorkItemRepository) MarkSent(_ context.Context, id string, outcomes []domain.TargetOutcome, at time.Time) error {
	if m.MarkSentErr != nil {
		return m.MarkSentErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	w.Status = domain.StatusSent
	w.Error = nil
	w.Outcomes = outcomes
	w.LastAttemptedAt = &at
	return nil
}

func (m *MockWorkItemRepository) MarkError(_ context.Context, id, errMsg string, outcomes []domain.TargetOutcome, at time.Time) error {
	if m.MarkErrorErr != nil {
		return m.MarkErrorErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	w.Status = domain.StatusError
	w.Error = &errMsg
	w.Outcomes = outcomes
	w.LastAttemptedAt = &at
	return nil
}

func (m *MockWorkItemRepository) FindStaleQueued(_ context.Context, olderThan time.Time, limit int) ([]*domain.WorkItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.WorkItem
	for _, w := range m.items {
		if w.Status == domain.StatusQueued && !w.CreatedAt.After(olderThan) && len(result) < limit {
			clone := *w
			result = append(result, &clone)
		}
	}
	return result, nil
}

// MockOutboundRepository is an in-memory OutboundRepository.
type MockOutboundRepository struct {
	mu       sync.RWMutex
	messages map[string]*domain.OutboundMessage

	CreateErr    error
	MarkSentErr  error
	MarkErrorErr error
}

func NewMockOutboundRepository() *MockOutboundRepository {
	return &MockOutboundRepository{messages: make(map[string]*domain.OutboundMessage)}
}

func (m *MockOutboundRepository) Create(_ context.Context, msg *domain.OutboundMessage) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Channel == "" {
		msg.Channel = domain.ChannelSMS
	}
	now := time.Now().UTC()
	msg.Status = domain.StatusQueued
	msg.CreatedAt, msg.UpdatedAt = now, now
	clone := *msg
	m.messages[msg.ID] = &clone
	return nil
}

// Put stores a message as-is, bypassing Create's defaults.
func (m *MockOutboundRepository) Put(msg *domain.OutboundMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *msg
	m.messages[msg.ID] = &clone
}

func (m *MockOutboundRepository) GetByID(_ context.Context, id string) (*domain.OutboundMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *msg
	return &clone, nil
}

func (m *MockOutboundRepository) MarkSent(_ context.Context, id, provider, providerMsgID string, at time.Time) error {
	if m.MarkSentErr != nil {
		return m.MarkSentErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return domain.ErrNotFound
	}
	msg.Status = domain.StatusSent
	msg.Provider = &provider
	msg.ProviderMessageID = &providerMsgID
	msg.SentAt = &at
	msg.LastTriedAt = &at
	msg.Error = nil
	return nil
}

func (m *MockOutboundRepository) MarkError(_ context.Context, id, errMsg string, at time.Time) error {
	if m.MarkErrorErr != nil {
		return m.MarkErrorErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return domain.ErrNotFound
	}
	msg.Status = domain.StatusError
	msg.Error = &errMsg
	msg.LastTriedAt = &at
	return nil
}

func (m *MockOutboundRepository) FindStaleQueued(_ context.Context, olderThan time.Time, limit int) ([]*domain.OutboundMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.OutboundMessage
	for _, msg := range m.messages {
		if msg.Status == domain.StatusQueued && !msg.CreatedAt.After(olderThan) && len(result) < limit {
			clone := *msg
			result = append(result, &clone)
		}
	}
	return result, nil
}
