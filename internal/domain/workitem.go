package domain

import (
	"strings"
	"time"
)

// Status tracks the lifecycle of a queued work item or outbound message.
// queued is entered once at creation; sent and error are terminal.
type Status string

const (
	StatusQueued Status = "queued"
	StatusSent   Status = "sent"
	StatusError  Status = "error"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusQueued, StatusSent, StatusError:
		return true
	}
	return false
}

// DefaultTicketStatus is rendered when a ticket carries no status.
const DefaultTicketStatus = "open"

// Ticket is the human-readable content a notification is rendered from.
type Ticket struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status,omitempty"`
	Category    string `json:"category,omitempty"`
}

func (t Ticket) StatusOrDefault() string {
	if s := strings.TrimSpace(t.Status); s != "" {
		return s
	}
	return DefaultTicketStatus
}

// TicketContext is the {ticket, link} payload attached to a work item.
type TicketContext struct {
	Ticket Ticket `json:"ticket"`
	Link   string `json:"link,omitempty"`
}

// WorkItem is a queued notification request.
type WorkItem struct {
	ID              string          `json:"id"`
	Targets         []RawTarget     `json:"targets"`
	Context         TicketContext   `json:"context"`
	Status          Status          `json:"status"`
	Error           *string         `json:"error,omitempty"`
	Outcomes        []TargetOutcome `json:"outcomes,omitempty"`
	LastAttemptedAt *time.Time      `json:"last_attempted_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ParsedTargets returns the deliverable targets; implausible ones are dropped.
func (w *WorkItem) ParsedTargets() []Target {
	return ParseTargets(w.Targets)
}

// OutcomeResult is the result of one delivery attempt to one target.
type OutcomeResult string

const (
	OutcomeSent    OutcomeResult = "sent"
	OutcomeFailed  OutcomeResult = "failed"
	OutcomeSkipped OutcomeResult = "skipped"
)

// TargetOutcome records what happened to a single target during dispatch.
type TargetOutcome struct {
	Channel   Channel       `json:"channel"`
	To        string        `json:"to"`
	Result    OutcomeResult `json:"result"`
	MessageID string        `json:"message_id,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// DispatchReport collects the per-target outcomes of one dispatch.
type DispatchReport struct {
	Outcomes []TargetOutcome `json:"outcomes"`
}

func (r *DispatchReport) Add(o TargetOutcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// Failed returns the outcomes whose delivery attempt failed.
func (r *DispatchReport) Failed() []TargetOutcome {
	if r == nil {
		return nil
	}
	var failed []TargetOutcome
	for _, o := range r.Outcomes {
		if o.Result == OutcomeFailed {
			failed = append(failed, o)
		}
	}
	return failed
}

// Count returns how many outcomes have the given result.
func (r *DispatchReport) Count(result OutcomeResult) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, o := range r.Outcomes {
		if o.Result == result {
			n++
		}
	}
	return n
}

// CreateWorkItemRequest is the inbound payload for a direct enqueue.
type CreateWorkItemRequest struct {
	Targets []RawTarget   `json:"targets"`
	Context TicketContext `json:"context"`
}

func (r *CreateWorkItemRequest) Validate() error {
	if strings.TrimSpace(r.Context.Ticket.Title) == "" {
		return ErrInvalidContext
	}
	return nil
}

// ListFilter holds query parameters for paginated work item listing.
type ListFilter struct {
	Status *Status
	From   *time.Time
	To     *time.Time
	Page   int
	Limit  int
}
