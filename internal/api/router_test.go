package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nate-a11y/lrpbolt-sub001/internal/api"
	"github.com/nate-a11y/lrpbolt-sub001/internal/domain"
	"github.com/nate-a11y/lrpbolt-sub001/internal/queue"
	"github.com/nate-a11y/lrpbolt-sub001/internal/repository"
	"github.com/nate-a11y/lrpbolt-sub001/internal/service"
)

type stubProcessor struct {
	items   *repository.MockWorkItemRepository
	err     error
	eventID string
}

func (s *stubProcessor) Process(ctx context.Context, id, eventID string) error {
	s.eventID = eventID
	if s.err != nil {
		return s.err
	}
	w, err := s.items.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return s.items.MarkSent(ctx, w.ID, nil, w.CreatedAt)
}

type stubNotifier struct {
	id  string
	err error
	got domain.TicketEvent
}

func (s *stubNotifier) HandleEvent(_ context.Context, ev domain.TicketEvent) (string, error) {
	s.got = ev
	if s.err != nil {
		return "", s.err
	}
	if err := ev.Validate(); err != nil {
		return "", err
	}
	return s.id, nil
}

type pingErr struct{ err error }

func (p pingErr) Ping(context.Context) error { return p.err }

type fixture struct {
	srv      *httptest.Server
	items    *repository.MockWorkItemRepository
	outbound *repository.MockOutboundRepository
	proc     *stubProcessor
	notifier *stubNotifier
	q        *queue.PriorityQueue
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		items:    repository.NewMockWorkItemRepository(),
		outbound: repository.NewMockOutboundRepository(),
		notifier: &stubNotifier{id: "w-42"},
		q:        queue.New(),
	}
	f.proc = &stubProcessor{items: f.items}

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "test_total"}))

	h := api.NewRouter(api.Deps{
		Queue:    service.NewQueueService(f.items, f.outbound, zap.NewNop()),
		Process:  f.proc,
		Tickets:  f.notifier,
		DB:       pingErr{},
		Priority: f.q,
		Gatherer: reg,
	}, zap.NewNop())
	f.srv = httptest.NewServer(h)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestHealthAndReady(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, resp.Header.Get("X-Correlation-ID"))

	resp, _ = f.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReady_DatabaseDown(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := api.NewRouter(api.Deps{
		Queue:    service.NewQueueService(repository.NewMockWorkItemRepository(), repository.NewMockOutboundRepository(), zap.NewNop()),
		DB:       pingErr{err: errors.New("connection refused")},
		Priority: queue.New(),
		Gatherer: reg,
	}, zap.NewNop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCorrelationIDEchoed(t *testing.T) {
	f := newFixture(t)
	req, _ := http.NewRequest(http.MethodGet, f.srv.URL+"/health", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get("X-Correlation-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNotifyQueue_CreateGetList(t *testing.T) {
	f := newFixture(t)

	resp, created := f.do(t, http.MethodPost, "/api/v1/notify-queue",
		`{"targets":[{"type":"email","to":"a@x.com"}],"context":{"ticket":{"title":"Printer down"}}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "queued", created["status"])
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)

	resp, got := f.do(t, http.MethodGet, "/api/v1/notify-queue/"+id, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, id, got["id"])

	resp, list := f.do(t, http.MethodGet, "/api/v1/notify-queue?status=queued", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, list["total"])
}

func TestNotifyQueue_Errors(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/api/v1/notify-queue", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := f.do(t, http.MethodPost, "/api/v1/notify-queue", `{"targets":[],"context":{"ticket":{"title":"  "}}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body["error"], "title")

	resp, _ = f.do(t, http.MethodGet, "/api/v1/notify-queue/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/v1/notify-queue?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNotifyQueue_Process(t *testing.T) {
	f := newFixture(t)
	w := &domain.WorkItem{Context: domain.TicketContext{Ticket: domain.Ticket{Title: "T"}}}
	require.NoError(t, f.items.Create(context.Background(), w))

	req, _ := http.NewRequest(http.MethodPost, f.srv.URL+"/api/v1/notify-queue/"+w.ID+"/process", nil)
	req.Header.Set("X-Event-ID", "evt-9")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "evt-9", f.proc.eventID)
	got, err := f.items.GetByID(context.Background(), w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, got.Status)

	resp2, _ := f.do(t, http.MethodPost, "/api/v1/notify-queue/missing/process", "")
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestOutboundMessages(t *testing.T) {
	f := newFixture(t)

	resp, created := f.do(t, http.MethodPost, "/api/v1/outbound-messages", `{"to":"+15551234567","body":"Driver arriving"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "sms", created["channel"])
	id, _ := created["id"].(string)

	resp, got := f.do(t, http.MethodGet, "/api/v1/outbound-messages/"+id, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Driver arriving", got["body"])

	resp, _ = f.do(t, http.MethodPost, "/api/v1/outbound-messages", `{"to":"","body":"x"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestTicketEvents(t *testing.T) {
	f := newFixture(t)

	req, _ := http.NewRequest(http.MethodPost, f.srv.URL+"/api/v1/ticket-events",
		strings.NewReader(`{"ticket_id":"t1","kind":"created","ticket":{"title":"Leak"}}`))
	req.Header.Set("X-Event-ID", "evt-1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "evt-1", f.notifier.got.EventID)

	resp2, _ := f.do(t, http.MethodPost, "/api/v1/ticket-events", `{"ticket_id":"t1","ticket":{}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp2.StatusCode)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.q.Enqueue(queue.Item{Kind: queue.KindSMS, ID: "1", Priority: queue.PriorityHigh}))

	resp, body := f.do(t, http.MethodGet, "/api/v1/stats", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	depth := body["queue_depth"].(map[string]any)
	assert.EqualValues(t, 1, depth["high"])
	assert.EqualValues(t, 1, depth["total"])
}
