package provider

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/nate-a11y/lrpbolt-sub001/internal/config"
	"github.com/nate-a11y/lrpbolt-sub001/internal/domain"
)

// Dialer is the part of *gomail.Dialer the email sender uses.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPProvider sends email through an SMTP relay. It is inert when host or
// credentials are missing.
type SMTPProvider struct {
	from   string
	dialer Dialer
}

func NewSMTPProvider(cfg config.SMTPConfig) *SMTPProvider {
	if !cfg.Enabled() {
		return &SMTPProvider{}
	}
	return NewSMTPProviderWithDialer(cfg.Sender(), gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass))
}

func NewSMTPProviderWithDialer(from string, d Dialer) *SMTPProvider {
	return &SMTPProvider{from: from, dialer: d}
}

func (p *SMTPProvider) Enabled() bool {
	return p.dialer != nil && p.from != ""
}

// Send delivers msg with a plain-text body and an HTML alternative.
// gomail has no context support, so ctx is only checked before dialing.
func (p *SMTPProvider) Send(ctx context.Context, msg EmailMessage) error {
	if !p.Enabled() {
		return fmt.Errorf("smtp: %w", domain.ErrChannelUnavailable)
	}
	if msg.To == "" {
		return domain.ErrMissingRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", p.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}

	if err := p.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

var _ EmailSender = (*SMTPProvider)(nil)
