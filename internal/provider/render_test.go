package provider_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nate-a11y/lrpbolt-sub001/internal/domain"
	"github.com/nate-a11y/lrpbolt-sub001/internal/provider"
)

func TestRenderer_Title(t *testing.T) {
	r := provider.NewRenderer("LRP")

	assert.Equal(t, "[LRP] Broken van (open)", r.Title(domain.Ticket{Title: "Broken van"}))
	assert.Equal(t, "[LRP] Broken van (closed)", r.Title(domain.Ticket{Title: "Broken van", Status: "closed"}))
}

func TestRenderer_Email(t *testing.T) {
	r := provider.NewRenderer("LRP")
	tc := domain.TicketContext{
		Ticket: domain.Ticket{Title: "Broken <van>", Description: "Mirror cracked", Category: "fleet"},
		Link:   "https://lrp.example/tickets/1",
	}

	msg, err := r.Email(tc, "a@b.com")
	require.NoError(t, err)

	assert.Equal(t, "a@b.com", msg.To)
	assert.Equal(t, "[LRP] Broken <van> (open)", msg.Subject)
	assert.Contains(t, msg.HTML, "Broken &lt;van&gt;")
	assert.Contains(t, msg.HTML, `href="https://lrp.example/tickets/1"`)
	assert.Contains(t, msg.Text, "Mirror cracked")
	assert.Contains(t, msg.Text, "Open ticket: https://lrp.example/tickets/1")
}

func TestRenderer_PushAndSMS(t *testing.T) {
	r := provider.NewRenderer("")
	tc := domain.TicketContext{
		Ticket: domain.Ticket{ID: "t1", Title: "Flat tire", Description: "Rear left", Status: "in progress"},
		Link:   "https://lrp.example/tickets/t1",
	}

	push := r.Push(tc, []string{"tok"})
	assert.Equal(t, "[LRP] Flat tire (in progress)", push.Title)
	assert.Equal(t, "Rear left", push.Body)
	assert.Equal(t, "t1", push.Data["ticketId"])

	sms := r.SMS(tc, "+15551234567")
	assert.Equal(t, "[LRP] Flat tire (in progress)\nhttps://lrp.example/tickets/t1", sms.Body)
}
