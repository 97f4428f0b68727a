package domain

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Channel is the delivery channel of a target.
type Channel string

const (
	ChannelPush  Channel = "fcm"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

func (c Channel) IsValid() bool {
	switch c {
	case ChannelPush, ChannelEmail, ChannelSMS:
		return true
	}
	return false
}

// Target is a resolved delivery address. The concrete types are PushTarget,
// EmailTarget and SMSTarget; callers switch on the type to dispatch.
type Target interface {
	Channel() Channel
	Address() string
	isTarget()
}

type PushTarget struct{ Token string }

type EmailTarget struct{ Email string }

type SMSTarget struct{ Phone string }

func (PushTarget) Channel() Channel  { return ChannelPush }
func (EmailTarget) Channel() Channel { return ChannelEmail }
func (SMSTarget) Channel() Channel   { return ChannelSMS }

func (t PushTarget) Address() string  { return t.Token }
func (t EmailTarget) Address() string { return t.Email }
func (t SMSTarget) Address() string   { return t.Phone }

func (PushTarget) isTarget()  {}
func (EmailTarget) isTarget() {}
func (SMSTarget) isTarget()   {}

// RawTarget is the loosely typed wire form stored on queue documents.
type RawTarget struct {
	Type Channel `json:"type"`
	To   string  `json:"to"`
}

var validate = validator.New()

// ParseTarget normalises a raw target and checks that its address is
// plausible for its type.
func ParseTarget(raw RawTarget) (Target, error) {
	to := strings.TrimSpace(raw.To)
	if to == "" {
		return nil, fmt.Errorf("%w: empty address", ErrInvalidTarget)
	}

	switch Channel(strings.ToLower(string(raw.Type))) {
	case ChannelPush:
		if strings.ContainsAny(to, " \t\r\n") || validate.Var(to, "printascii") != nil {
			return nil, fmt.Errorf("%w: malformed push token", ErrInvalidTarget)
		}
		return PushTarget{Token: to}, nil
	case ChannelEmail:
		email := strings.ToLower(to)
		if err := validate.Var(email, "required,email"); err != nil {
			return nil, fmt.Errorf("%w: %q is not an email address", ErrInvalidTarget, to)
		}
		return EmailTarget{Email: email}, nil
	case ChannelSMS:
		phone := NormalizePhone(to)
		if err := validate.Var(phone, "required,e164"); err != nil {
			return nil, fmt.Errorf("%w: %q is not a phone number", ErrInvalidTarget, to)
		}
		return SMSTarget{Phone: phone}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidTarget, raw.Type)
	}
}

// ParseTargets keeps the valid targets and silently drops the rest.
func ParseTargets(raws []RawTarget) []Target {
	targets := make([]Target, 0, len(raws))
	for _, raw := range raws {
		t, err := ParseTarget(raw)
		if err != nil {
			continue
		}
		targets = append(targets, t)
	}
	return targets
}

// ToRaw converts a typed target back to its wire form.
func ToRaw(t Target) RawTarget {
	return RawTarget{Type: t.Channel(), To: t.Address()}
}

// NormalizePhone strips formatting characters. Ten-digit numbers are assumed
// to be North American and get a +1 prefix.
func NormalizePhone(s string) string {
	s = strings.TrimSpace(s)
	plus := strings.HasPrefix(s, "+")

	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case digits == "":
		return ""
	case plus:
		return "+" + digits
	case len(digits) == 10:
		return "+1" + digits
	case len(digits) == 11 && digits[0] == '1':
		return "+" + digits
	default:
		return digits
	}
}
