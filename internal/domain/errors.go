package domain

import (
	"errors"
	"strings"
)

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyClaimed     = errors.New("event already claimed")
	ErrQueueFull          = errors.New("queue is at capacity, try again later")
	ErrInvalidTarget      = errors.New("invalid target")
	ErrInvalidContext     = errors.New("context.ticket.title must not be empty")
	ErrMissingRecipient   = errors.New("missing recipient")
	ErrMissingBody        = errors.New("missing body")
	ErrUnsupportedChannel = errors.New("unsupported channel")
	ErrChannelUnavailable = errors.New("channel unavailable: transport not configured")
	ErrInvalidEvent       = errors.New("ticket event requires ticket_id and ticket.title")
)

// MissingConfigError names the environment variables a transport needs but
// did not receive.
type MissingConfigError struct {
	Channel Channel
	Vars    []string
}

func (e *MissingConfigError) Error() string {
	return "missing " + string(e.Channel) + " config: " + strings.Join(e.Vars, ", ")
}

// Is lets errors.Is(err, ErrChannelUnavailable) match a MissingConfigError.
func (e *MissingConfigError) Is(target error) bool {
	return target == ErrChannelUnavailable
}
