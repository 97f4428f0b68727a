package domain

import "strings"

// TicketEventKind distinguishes ticket creation from later updates.
type TicketEventKind string

const (
	TicketCreated TicketEventKind = "created"
	TicketUpdated TicketEventKind = "updated"
)

// TicketEvent is a support ticket write that may fan out into a work item.
// Recipient fields hold RecipientDescriptors: literal emails or user keys.
type TicketEvent struct {
	EventID        string          `json:"event_id"`
	TicketID       string          `json:"ticket_id"`
	Kind           TicketEventKind `json:"kind"`
	Ticket         Ticket          `json:"ticket"`
	PreviousStatus string          `json:"previous_status,omitempty"`
	Assignee       string          `json:"assignee,omitempty"`
	CreatedBy      string          `json:"created_by,omitempty"`
	Watchers       []string        `json:"watchers,omitempty"`
	Recipients     []string        `json:"recipients,omitempty"`
	Phones         []string        `json:"phones,omitempty"`
	Link           string          `json:"link,omitempty"`
}

func (e *TicketEvent) Validate() error {
	if strings.TrimSpace(e.TicketID) == "" || strings.TrimSpace(e.Ticket.Title) == "" {
		return ErrInvalidEvent
	}
	return nil
}

// Path is the storage path of the ticket the event was raised for.
func (e *TicketEvent) Path() string {
	return "tickets/" + e.TicketID
}

// DedupePath is the claim path for the event. A ticket is created once, so
// creations dedupe on the ticket path; updates rely on the event id.
func (e *TicketEvent) DedupePath() string {
	if e.Kind == TicketUpdated {
		return ""
	}
	return e.Path()
}

// ShouldNotify is true for creations and for updates that changed status.
func (e *TicketEvent) ShouldNotify() bool {
	if e.Kind != TicketUpdated {
		return true
	}
	prev := Ticket{Status: e.PreviousStatus}
	return !strings.EqualFold(prev.StatusOrDefault(), e.Ticket.StatusOrDefault())
}

// RecipientDescriptors returns every non-empty descriptor once, in first-seen order.
func (e *TicketEvent) RecipientDescriptors() []string {
	all := make([]string, 0, 2+len(e.Watchers)+len(e.Recipients))
	all = append(all, e.Assignee, e.CreatedBy)
	all = append(all, e.Watchers...)
	all = append(all, e.Recipients...)

	seen := make(map[string]struct{}, len(all))
	out := make([]string, 0, len(all))
	for _, d := range all {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}

// Context builds the work item payload for this event.
func (e *TicketEvent) Context() TicketContext {
	t := e.Ticket
	if t.ID == "" {
		t.ID = e.TicketID
	}
	return TicketContext{Ticket: t, Link: e.Link}
}
