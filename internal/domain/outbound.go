package domain

import (
	"strings"
	"time"
)

// OutboundMessage is a directly enqueued SMS. It bypasses target resolution.
type OutboundMessage struct {
	ID                string     `json:"id"`
	To                string     `json:"to"`
	Body              string     `json:"body"`
	Channel           Channel    `json:"channel"`
	Status            Status     `json:"status"`
	Provider          *string    `json:"provider,omitempty"`
	ProviderMessageID *string    `json:"providerMessageId,omitempty"`
	Error             *string    `json:"error,omitempty"`
	SentAt            *time.Time `json:"sentAt,omitempty"`
	LastTriedAt       *time.Time `json:"lastTriedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// Check reports why the message cannot be sent, or nil.
func (m *OutboundMessage) Check() error {
	if m.Channel != ChannelSMS {
		return ErrUnsupportedChannel
	}
	if strings.TrimSpace(m.To) == "" {
		return ErrMissingRecipient
	}
	if strings.TrimSpace(m.Body) == "" {
		return ErrMissingBody
	}
	return nil
}

// CreateSMSRequest is the inbound payload for a direct SMS enqueue.
type CreateSMSRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

func (r *CreateSMSRequest) Validate() error {
	if strings.TrimSpace(r.To) == "" {
		return ErrMissingRecipient
	}
	if strings.TrimSpace(r.Body) == "" {
		return ErrMissingBody
	}
	return nil
}
