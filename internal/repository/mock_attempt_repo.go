package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nate-a11y/lrpbolt-sub001/internal/domain"
)

// MockAttemptRepository is an in-memory AttemptRepository.
type MockAttemptRepository struct {
	mu       sync.RWMutex
	attempts map[string]*domain.DeliveryAttempt

	CreateErr error
}

func NewMockAttemptRepository() *MockAttemptRepository {
	return &MockAttemptRepository{attempts: make(map[string]*domain.DeliveryAttempt)}
}

func (m *MockAttemptRepository) CreateAttempts(_ context.Context, attempts []*domain.DeliveryAttempt) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for _, a := range attempts {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		if a.Status == "" {
			a.Status = domain.AttemptPending
		}
		a.CreatedAt, a.UpdatedAt = now, now
		clone := *a
		m.attempts[a.ID] = &clone
	}
	return nil
}

func (m *MockAttemptRepository) FindDue(_ context.Context, now time.Time, limit int) ([]*domain.DeliveryAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.DeliveryAttempt
	for _, a := range m.attempts {
		if a.Status == domain.AttemptPending && !a.NextRetryAt.After(now) && len(result) < limit {
			clone := *a
			result = append(result, &clone)
		}
	}
	return result, nil
}

func (m *MockAttemptRepository) MarkDelivered(_ context.Context, id string, attempts int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.attempts[id]; ok {
		a.Status = domain.AttemptDelivered
		a.Attempts = attempts
		a.LastError = ""
		a.UpdatedAt = at
	}
	return nil
}

func (m *MockAttemptRepository) Reschedule(_ context.Context, id string, attempts int, next time.Time, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.attempts[id]; ok {
		a.Attempts = attempts
		a.NextRetryAt = next
		a.LastError = errMsg
	}
	return nil
}

func (m *MockAttemptRepository) MarkExhausted(_ context.Context, id string, attempts int, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.attempts[id]; ok {
		a.Status = domain.AttemptExhausted
		a.Attempts = attempts
		a.LastError = errMsg
	}
	return nil
}

// All returns a snapshot of every stored attempt.
func (m *MockAttemptRepository) All() []*domain.DeliveryAttempt {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.DeliveryAttempt, 0, len(m.attempts))
	for _, a := range m.attempts {
		clone := *a
		out = append(out, &clone)
	}
	return out
}
