package service_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nate-a11y/lrpbolt-sub001/internal/config"
	"github.com/nate-a11y/lrpbolt-sub001/internal/dispatch"
	"github.com/nate-a11y/lrpbolt-sub001/internal/domain"
	"github.com/nate-a11y/lrpbolt-sub001/internal/idempotency"
	"github.com/nate-a11y/lrpbolt-sub001/internal/provider"
	"github.com/nate-a11y/lrpbolt-sub001/internal/repository"
	"github.com/nate-a11y/lrpbolt-sub001/internal/service"
	"github.com/nate-a11y/lrpbolt-sub001/internal/status"
)

type pipeline struct {
	proc     *service.NotifyQueueProcessor
	items    *repository.MockWorkItemRepository
	attempts *repository.MockAttemptRepository
	markers  *repository.MockMarkerStore
	email    *provider.MockEmailSender
	sms      *provider.MockSMSSender
	push     *provider.MockPushSender
	statuses []domain.Status
}

func newPipeline() *pipeline {
	p := &pipeline{
		items:    repository.NewMockWorkItemRepository(),
		attempts: repository.NewMockAttemptRepository(),
		markers:  repository.NewMockMarkerStore(),
		email:    &provider.MockEmailSender{},
		sms:      &provider.MockSMSSender{},
		push:     &provider.MockPushSender{},
	}
	logger := zap.NewNop()
	d := dispatch.New(
		dispatch.Senders{Push: p.push, Email: p.email, SMS: p.sms},
		nil, nil, nil, provider.NewRenderer("LRP"), logger, dispatch.Hooks{},
	)
	reporter := status.New(p.items, repository.NewMockOutboundRepository(), p.attempts, 3, []time.Duration{time.Minute}, logger)
	guard := idempotency.New(p.markers, service.PipelineNotifyQueue, logger, nil)
	p.proc = service.NewNotifyQueueProcessor(guard, p.items, d, reporter, logger,
		func(_ string, st domain.Status) { p.statuses = append(p.statuses, st) })
	return p
}

func (p *pipeline) enqueue(t *testing.T, targets []domain.RawTarget, ticket domain.Ticket) string {
	t.Helper()
	w := &domain.WorkItem{Targets: targets, Context: domain.TicketContext{Ticket: ticket}}
	require.NoError(t, p.items.Create(context.Background(), w))
	return w.ID
}

func TestNotifyQueue_EndToEndEmail(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()
	id := p.enqueue(t, []domain.RawTarget{{Type: "email", To: "a@b.com"}}, domain.Ticket{Title: "Broken van"})

	require.NoError(t, p.proc.Process(ctx, id, ""))

	require.Len(t, p.email.Sent, 1)
	assert.Equal(t, "[LRP] Broken van (open)", p.email.Sent[0].Subject)
	assert.Equal(t, "a@b.com", p.email.Sent[0].To)

	w, err := p.items.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, w.Status)
	assert.Nil(t, w.Error)
	assert.Equal(t, []domain.Status{domain.StatusSent}, p.statuses)
}

func TestNotifyQueue_DuplicateTriggerSkipped(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()
	id := p.enqueue(t, []domain.RawTarget{{Type: "email", To: "a@b.com"}}, domain.Ticket{Title: "Broken van"})

	require.NoError(t, p.proc.Process(ctx, id, "evt-1"))
	require.NoError(t, p.proc.Process(ctx, id, "evt-1"))

	assert.Len(t, p.email.Sent, 1, "second delivery of the same trigger must not send again")
	assert.True(t, p.markers.Has("__events/notifyQueue/notifyQueue__"+id))
}

func TestNotifyQueue_InvalidTargetsDropped(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()
	id := p.enqueue(t, []domain.RawTarget{
		{Type: "email", To: ""},
		{Type: "fax", To: "+15551234567"},
		{Type: "email", To: "not-an-address"},
	}, domain.Ticket{Title: "Broken van"})

	require.NoError(t, p.proc.Process(ctx, id, ""))

	assert.Empty(t, p.email.Attempts)
	assert.Zero(t, p.sms.Attempts)
	w, err := p.items.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, w.Status, "nothing to send is not a failure")
}

func TestNotifyQueue_PartialFailureMarksError(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()
	p.email.Fail = map[string]error{"two@lrp.com": errors.New("550 mailbox unavailable")}
	id := p.enqueue(t, []domain.RawTarget{
		{Type: "email", To: "one@lrp.com"},
		{Type: "email", To: "two@lrp.com"},
		{Type: "email", To: "three@lrp.com"},
	}, domain.Ticket{Title: "Broken van"})

	require.NoError(t, p.proc.Process(ctx, id, ""))

	assert.Equal(t, []string{"one@lrp.com", "two@lrp.com", "three@lrp.com"}, p.email.Attempts)
	w, err := p.items.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, w.Status)
	require.NotNil(t, w.Error)
	assert.Contains(t, *w.Error, "two@lrp.com")
	assert.Len(t, w.Outcomes, 3)

	pending := p.attempts.All()
	require.Len(t, pending, 1)
	assert.Equal(t, "two@lrp.com", pending[0].Address)
}

func TestNotifyQueue_TerminalItemNotReprocessed(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()
	p.items.Put(&domain.WorkItem{ID: "done", Status: domain.StatusSent,
		Targets: []domain.RawTarget{{Type: "email", To: "a@b.com"}}})

	require.NoError(t, p.proc.Process(ctx, "done", ""))
	assert.Empty(t, p.email.Attempts)
}

func TestNotifyQueue_MissingItem(t *testing.T) {
	p := newPipeline()
	err := p.proc.Process(context.Background(), "nope", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func newOutbound(twilio provider.SMSSender) (*service.OutboundSMSProcessor, *repository.MockOutboundRepository) {
	logger := zap.NewNop()
	outbound := repository.NewMockOutboundRepository()
	reporter := status.New(repository.NewMockWorkItemRepository(), outbound, nil, 0, nil, logger)
	guard := idempotency.New(repository.NewMockMarkerStore(), service.PipelineOutbound, logger, nil)
	return service.NewOutboundSMSProcessor(guard, outbound, twilio, reporter, logger, nil), outbound
}

func TestOutboundSMS_MissingConfig(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	twilio := provider.NewTwilioProvider(config.TwilioConfig{BaseURL: srv.URL}, time.Second)
	proc, outbound := newOutbound(twilio)
	ctx := context.Background()
	m := &domain.OutboundMessage{To: "+15551234567", Body: "Your ride is here"}
	require.NoError(t, outbound.Create(ctx, m))

	require.NoError(t, proc.Process(ctx, m.ID, ""))

	got, err := outbound.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, got.Status)
	require.NotNil(t, got.Error)
	for _, v := range []string{"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_FROM"} {
		assert.Contains(t, *got.Error, v)
	}
	assert.NotNil(t, got.LastTriedAt)
	assert.Zero(t, atomic.LoadInt32(&calls), "no network call without config")
}

func TestOutboundSMS_HappyPathAndRejection(t *testing.T) {
	var reject atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reject.Load() {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":21211,"message":"invalid To","status":400}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM123","status":"queued"}`))
	}))
	defer srv.Close()

	twilio := provider.NewTwilioProvider(config.TwilioConfig{
		AccountSID: "AC1", AuthToken: "tok", From: "MG42", BaseURL: srv.URL,
	}, time.Second)
	proc, outbound := newOutbound(twilio)
	ctx := context.Background()

	ok := &domain.OutboundMessage{To: "(555) 123-4567", Body: "Your ride is here"}
	require.NoError(t, outbound.Create(ctx, ok))
	require.NoError(t, proc.Process(ctx, ok.ID, ""))

	got, err := outbound.GetByID(ctx, ok.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, got.Status)
	require.NotNil(t, got.ProviderMessageID)
	assert.Equal(t, "SM123", *got.ProviderMessageID)
	assert.Equal(t, "twilio", *got.Provider)
	assert.NotNil(t, got.SentAt)

	reject.Store(true)
	bad := &domain.OutboundMessage{To: "+15551234567", Body: "x"}
	require.NoError(t, outbound.Create(ctx, bad))
	require.NoError(t, proc.Process(ctx, bad.ID, ""))

	got, err = outbound.GetByID(ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, got.Status)
	require.NotNil(t, got.Error)
	assert.JSONEq(t, `{"code":21211,"message":"invalid To","status":400}`, *got.Error)
}

func TestOutboundSMS_InvalidDocuments(t *testing.T) {
	sms := &provider.MockSMSSender{}
	proc, outbound := newOutbound(sms)
	ctx := context.Background()

	tests := []struct {
		name string
		msg  domain.OutboundMessage
		want string
	}{
		{"missing recipient", domain.OutboundMessage{ID: "m1", Body: "x", Channel: domain.ChannelSMS, Status: domain.StatusQueued}, domain.ErrMissingRecipient.Error()},
		{"missing body", domain.OutboundMessage{ID: "m2", To: "+15551234567", Channel: domain.ChannelSMS, Status: domain.StatusQueued}, domain.ErrMissingBody.Error()},
		{"wrong channel", domain.OutboundMessage{ID: "m3", To: "+15551234567", Body: "x", Channel: "email", Status: domain.StatusQueued}, domain.ErrUnsupportedChannel.Error()},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			outbound.Put(&tc.msg)
			require.NoError(t, proc.Process(ctx, tc.msg.ID, ""))

			got, err := outbound.GetByID(ctx, tc.msg.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.StatusError, got.Status)
			assert.Equal(t, tc.want, *got.Error)
		})
	}
	assert.Zero(t, sms.Attempts)
}

// ctxWorkItems fails status writes once their context is done, the way the
// pgx pool does.
type ctxWorkItems struct {
	*repository.MockWorkItemRepository
}

func (r ctxWorkItems) MarkSent(ctx context.Context, id string, outcomes []domain.TargetOutcome, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.MockWorkItemRepository.MarkSent(ctx, id, outcomes, at)
}

func (r ctxWorkItems) MarkError(ctx context.Context, id, errMsg string, outcomes []domain.TargetOutcome, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.MockWorkItemRepository.MarkError(ctx, id, errMsg, outcomes, at)
}

type ctxOutbound struct {
	*repository.MockOutboundRepository
}

func (r ctxOutbound) MarkSent(ctx context.Context, id, prov, providerMsgID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.MockOutboundRepository.MarkSent(ctx, id, prov, providerMsgID, at)
}

// cancelAfterEmail cancels the caller context right after a successful send.
type cancelAfterEmail struct {
	*provider.MockEmailSender
	cancel context.CancelFunc
}

func (s cancelAfterEmail) Send(ctx context.Context, msg provider.EmailMessage) error {
	err := s.MockEmailSender.Send(ctx, msg)
	s.cancel()
	return err
}

type cancelAfterSMS struct {
	*provider.MockSMSSender
	cancel context.CancelFunc
}

func (s cancelAfterSMS) Send(ctx context.Context, msg provider.SMSMessage) (*provider.SMSReceipt, error) {
	r, err := s.MockSMSSender.Send(ctx, msg)
	s.cancel()
	return r, err
}

func TestNotifyQueue_CallerCancelledAfterSendStillSettles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := zap.NewNop()
	items := ctxWorkItems{repository.NewMockWorkItemRepository()}
	email := &provider.MockEmailSender{}
	d := dispatch.New(
		dispatch.Senders{Push: &provider.MockPushSender{}, Email: cancelAfterEmail{email, cancel}, SMS: &provider.MockSMSSender{}},
		nil, nil, nil, provider.NewRenderer("LRP"), logger, dispatch.Hooks{},
	)
	reporter := status.New(items, repository.NewMockOutboundRepository(), nil, 0, nil, logger)
	guard := idempotency.New(repository.NewMockMarkerStore(), service.PipelineNotifyQueue, logger, nil)
	proc := service.NewNotifyQueueProcessor(guard, items, d, reporter, logger, nil)

	w := &domain.WorkItem{
		Targets: []domain.RawTarget{{Type: "email", To: "a@b.com"}},
		Context: domain.TicketContext{Ticket: domain.Ticket{Title: "Broken van"}},
	}
	require.NoError(t, items.Create(context.Background(), w))

	require.NoError(t, proc.Process(ctx, w.ID, "evt-1"))
	require.Error(t, ctx.Err())

	require.Len(t, email.Sent, 1)
	got, err := items.GetByID(context.Background(), w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, got.Status, "a claimed item must not stay queued")
}

func TestOutboundSMS_CallerCancelledAfterSendStillSettles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := zap.NewNop()
	outbound := ctxOutbound{repository.NewMockOutboundRepository()}
	reporter := status.New(repository.NewMockWorkItemRepository(), outbound, nil, 0, nil, logger)
	guard := idempotency.New(repository.NewMockMarkerStore(), service.PipelineOutbound, logger, nil)
	sms := &provider.MockSMSSender{}
	proc := service.NewOutboundSMSProcessor(guard, outbound, cancelAfterSMS{sms, cancel}, reporter, logger, nil)

	m := &domain.OutboundMessage{To: "+15551234567", Body: "Your ride is here"}
	require.NoError(t, outbound.Create(context.Background(), m))

	require.NoError(t, proc.Process(ctx, m.ID, "evt-1"))
	require.Error(t, ctx.Err())

	assert.Equal(t, 1, sms.Attempts)
	got, err := outbound.GetByID(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, got.Status)
}
