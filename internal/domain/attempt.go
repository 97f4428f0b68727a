package domain

import (
	"fmt"
	"time"
)

// AttemptStatus tracks a per-target redelivery record.
type AttemptStatus string

const (
	AttemptPending   AttemptStatus = "pending"
	AttemptDelivered AttemptStatus = "delivered"
	AttemptExhausted AttemptStatus = "exhausted"
)

// DeliveryAttempt is the retryable sub-record created for every email or SMS
// target that failed during dispatch. The parent work item keeps its terminal
// status; only this record moves.
type DeliveryAttempt struct {
	ID          string        `json:"id"`
	WorkItemID  string        `json:"work_item_id"`
	Channel     Channel       `json:"channel"`
	Address     string        `json:"address"`
	Attempts    int           `json:"attempts"`
	MaxAttempts int           `json:"max_attempts"`
	Status      AttemptStatus `json:"status"`
	LastError   string        `json:"last_error,omitempty"`
	NextRetryAt time.Time     `json:"next_retry_at"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Target rebuilds the typed target for redelivery.
func (a *DeliveryAttempt) Target() (Target, error) {
	switch a.Channel {
	case ChannelEmail:
		return EmailTarget{Email: a.Address}, nil
	case ChannelSMS:
		return SMSTarget{Phone: a.Address}, nil
	default:
		return nil, fmt.Errorf("%w: %q is not redeliverable", ErrUnsupportedChannel, a.Channel)
	}
}

// Exhausted reports whether no further attempts are allowed.
func (a *DeliveryAttempt) Exhausted() bool {
	return a.Attempts >= a.MaxAttempts
}
