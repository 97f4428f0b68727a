package provider

import (
	"context"
	"encoding/json"
	"fmt"
)

// PushMessage is one multicast push notification.
type PushMessage struct {
	Tokens []string
	Title  string
	Body   string
	Data   map[string]string
}

// EmailMessage is one rendered email to a single recipient.
type EmailMessage struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// SMSMessage is one text message to a single destination.
type SMSMessage struct {
	To   string
	Body string
}

// SMSReceipt is the transport's acknowledgement of an accepted SMS.
type SMSReceipt struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// PushSender delivers push notifications in a single multicast call.
type PushSender interface {
	Enabled() bool
	SendMulticast(ctx context.Context, msg PushMessage) (*MulticastResult, error)
}

// EmailSender delivers one email. Send returns domain.ErrChannelUnavailable
// when the transport is not configured.
type EmailSender interface {
	Enabled() bool
	Send(ctx context.Context, msg EmailMessage) error
}

// SMSSender delivers one SMS. Send returns a *domain.MissingConfigError
// naming the absent variables when the transport is not configured.
type SMSSender interface {
	Enabled() bool
	Missing() []string
	Send(ctx context.Context, msg SMSMessage) (*SMSReceipt, error)
}

// TransportError is a non-success response from a delivery transport.
// Body holds the transport's error payload as received.
type TransportError struct {
	Provider   string
	StatusCode int
	Body       []byte
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// StructuredBody returns the payload when it is valid JSON.
func (e *TransportError) StructuredBody() (json.RawMessage, bool) {
	if len(e.Body) == 0 || !json.Valid(e.Body) {
		return nil, false
	}
	return json.RawMessage(e.Body), true
}
