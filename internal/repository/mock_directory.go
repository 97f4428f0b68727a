package repository

import (
	"context"
	"sync"
	"time"

	"github.com/nate-a11y/lrpbolt-sub001/internal/domain"
)

// MockMarkerStore is an in-memory MarkerStore with create-if-absent semantics.
type MockMarkerStore struct {
	mu      sync.Mutex
	markers map[string]time.Time

	CreateErr error
}

func NewMockMarkerStore() *MockMarkerStore {
	return &MockMarkerStore{markers: make(map[string]time.Time)}
}

func (m *MockMarkerStore) CreateMarker(_ context.Context, key string, at time.Time) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.markers[key]; ok {
		return domain.ErrAlreadyClaimed
	}
	m.markers[key] = at
	return nil
}

// Has reports whether a marker exists for key.
func (m *MockMarkerStore) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.markers[key]
	return ok
}

// Len returns the number of markers created so far.
func (m *MockMarkerStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.markers)
}

// MockUserDirectory is an in-memory UserDirectory.
type MockUserDirectory struct {
	mu    sync.Mutex
	users map[string]domain.DirectoryUser
	calls []string

	// Errs maps a key to the error its lookup returns.
	Errs map[string]error
}

func NewMockUserDirectory() *MockUserDirectory {
	return &MockUserDirectory{
		users: make(map[string]domain.DirectoryUser),
		Errs:  make(map[string]error),
	}
}

func (d *MockUserDirectory) Add(key, email string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[key] = domain.DirectoryUser{Key: key, Email: email}
}

func (d *MockUserDirectory) GetUser(_ context.Context, key string) (*domain.DirectoryUser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, key)
	if err, ok := d.Errs[key]; ok {
		return nil, err
	}
	u, ok := d.users[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

// Calls returns the keys looked up so far.
func (d *MockUserDirectory) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// MockTokenDirectory is an in-memory TokenDirectory that records every query.
type MockTokenDirectory struct {
	mu      sync.Mutex
	records []domain.TokenRecord
	queries [][]string
	deleted []string

	FindErr error
}

func NewMockTokenDirectory(records ...domain.TokenRecord) *MockTokenDirectory {
	return &MockTokenDirectory{records: records}
}

func (d *MockTokenDirectory) FindByEmails(_ context.Context, emails []string) ([]domain.TokenRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queries = append(d.queries, append([]string(nil), emails...))
	if d.FindErr != nil {
		return nil, d.FindErr
	}

	want := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		want[e] = struct{}{}
	}
	var out []domain.TokenRecord
	for _, rec := range d.records {
		if _, ok := want[rec.Email]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (d *MockTokenDirectory) DeleteTokens(_ context.Context, tokens []string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	drop := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		drop[t] = struct{}{}
	}
	kept := d.records[:0]
	n := 0
	for _, rec := range d.records {
		if _, ok := drop[rec.TokenValue()]; ok {
			n++
			continue
		}
		kept = append(kept, rec)
	}
	d.records = kept
	d.deleted = append(d.deleted, tokens...)
	return n, nil
}

// Queries returns the email lists passed to FindByEmails, in call order.
func (d *MockTokenDirectory) Queries() [][]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]string(nil), d.queries...)
}

// Deleted returns every token passed to DeleteTokens.
func (d *MockTokenDirectory) Deleted() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.deleted...)
}
