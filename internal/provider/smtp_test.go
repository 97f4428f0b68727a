package provider_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/nate-a11y/lrpbolt-sub001/internal/config"
	"github.com/nate-a11y/lrpbolt-sub001/internal/domain"
	"github.com/nate-a11y/lrpbolt-sub001/internal/provider"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

func TestSMTPProvider_Send(t *testing.T) {
	d := &fakeDialer{}
	p := provider.NewSMTPProviderWithDialer("noreply@lrp.com", d)
	require.True(t, p.Enabled())

	err := p.Send(context.Background(), provider.EmailMessage{
		To:      "a@b.com",
		Subject: "[LRP] Broken van (open)",
		Text:    "plain",
		HTML:    "<p>html</p>",
	})
	require.NoError(t, err)
	require.Len(t, d.sent, 1)

	m := d.sent[0]
	assert.Equal(t, []string{"noreply@lrp.com"}, m.GetHeader("From"))
	assert.Equal(t, []string{"a@b.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"[LRP] Broken van (open)"}, m.GetHeader("Subject"))
}

func TestSMTPProvider_DialError(t *testing.T) {
	boom := errors.New("535 authentication failed")
	p := provider.NewSMTPProviderWithDialer("noreply@lrp.com", &fakeDialer{err: boom})

	err := p.Send(context.Background(), provider.EmailMessage{To: "a@b.com"})
	assert.ErrorIs(t, err, boom)
}

func TestSMTPProvider_Unconfigured(t *testing.T) {
	p := provider.NewSMTPProvider(config.SMTPConfig{Port: 587})
	assert.False(t, p.Enabled())

	err := p.Send(context.Background(), provider.EmailMessage{To: "a@b.com"})
	assert.ErrorIs(t, err, domain.ErrChannelUnavailable)
}
