package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/nate-a11y/lrpbolt-sub001/internal/domain"
)

// MockPushSender records multicast calls. Results maps a token to the
// per-token error code the fake transport reports for it.
type MockPushSender struct {
	mu       sync.Mutex
	Disabled bool
	Err      error
	Results  map[string]string
	Calls    []PushMessage
}

func (m *MockPushSender) Enabled() bool { return !m.Disabled }

func (m *MockPushSender) SendMulticast(_ context.Context, msg PushMessage) (*MulticastResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, msg)
	if m.Err != nil {
		return nil, m.Err
	}
	res := &MulticastResult{}
	for i, tok := range msg.Tokens {
		tr := TokenResult{Token: tok, Error: m.Results[tok]}
		if tr.Error == "" {
			tr.MessageID = fmt.Sprintf("push-%d", i+1)
			res.Success++
		} else {
			res.Failure++
		}
		res.Results = append(res.Results, tr)
	}
	return res, nil
}

// MockEmailSender records sent email. Fail maps a recipient to the error
// returned for it.
type MockEmailSender struct {
	mu       sync.Mutex
	Disabled bool
	Fail     map[string]error
	Sent     []EmailMessage
	Attempts []string
}

func (m *MockEmailSender) Enabled() bool { return !m.Disabled }

func (m *MockEmailSender) Send(_ context.Context, msg EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Disabled {
		return domain.ErrChannelUnavailable
	}
	m.Attempts = append(m.Attempts, msg.To)
	if err := m.Fail[msg.To]; err != nil {
		return err
	}
	m.Sent = append(m.Sent, msg)
	return nil
}

// MockSMSSender records sent SMS. MissingVars makes it unconfigured.
type MockSMSSender struct {
	mu          sync.Mutex
	MissingVars []string
	Err         error
	Fail        map[string]error
	Sent        []SMSMessage
	Attempts    int
}

func (m *MockSMSSender) Enabled() bool { return len(m.MissingVars) == 0 }

func (m *MockSMSSender) Missing() []string { return m.MissingVars }

func (m *MockSMSSender) Send(_ context.Context, msg SMSMessage) (*SMSReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.MissingVars) > 0 {
		return nil, &domain.MissingConfigError{Channel: domain.ChannelSMS, Vars: m.MissingVars}
	}
	m.Attempts++
	if m.Err != nil {
		return nil, m.Err
	}
	if err := m.Fail[msg.To]; err != nil {
		return nil, err
	}
	m.Sent = append(m.Sent, msg)
	return &SMSReceipt{SID: fmt.Sprintf("SM%03d", len(m.Sent)), Status: "queued"}, nil
}

var (
	_ PushSender  = (*MockPushSender)(nil)
	_ EmailSender = (*MockEmailSender)(nil)
	_ SMSSender   = (*MockSMSSender)(nil)
)
