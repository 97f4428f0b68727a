package provider

import (
	"bytes"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/nate-a11y/lrpbolt-sub001/internal/domain"
)

const emailHTMLTemplate = `<div style="font-family:Arial,Helvetica,sans-serif;font-size:14px;color:#222">
  <h2 style="margin:0 0 8px">{{.Title}}</h2>
  <p style="margin:0 0 4px"><strong>Status:</strong> {{.Status}}{{if .Category}} &middot; <strong>Category:</strong> {{.Category}}{{end}}</p>
  {{if .Description}}<p style="white-space:pre-wrap">{{.Description}}</p>{{end}}
  {{if .Link}}<p><a href="{{.Link}}">Open ticket</a></p>{{end}}
</div>
`

const emailTextTemplate = `{{.Title}}
Status: {{.Status}}{{if .Category}} | Category: {{.Category}}{{end}}
{{if .Description}}
{{.Description}}
{{end}}{{if .Link}}
Open ticket: {{.Link}}
{{end}}`

var (
	emailHTML = htmltemplate.Must(htmltemplate.New("email_html").Parse(emailHTMLTemplate))
	emailText = texttemplate.Must(texttemplate.New("email_text").Parse(emailTextTemplate))
)

// Renderer turns a ticket context into channel messages.
type Renderer struct {
	brand string
}

func NewRenderer(brand string) *Renderer {
	if brand == "" {
		brand = "LRP"
	}
	return &Renderer{brand: brand}
}

type view struct {
	Title       string
	Description string
	Status      string
	Category    string
	Link        string
}

func newView(tc domain.TicketContext) view {
	return view{
		Title:       tc.Ticket.Title,
		Description: tc.Ticket.Description,
		Status:      tc.Ticket.StatusOrDefault(),
		Category:    tc.Ticket.Category,
		Link:        tc.Link,
	}
}

// Title is "[<brand>] <title> (<status>)". Push titles and email subjects
// both use it.
func (r *Renderer) Title(t domain.Ticket) string {
	return "[" + r.brand + "] " + t.Title + " (" + t.StatusOrDefault() + ")"
}

// Push builds the multicast message for tokens.
func (r *Renderer) Push(tc domain.TicketContext, tokens []string) PushMessage {
	msg := PushMessage{
		Tokens: tokens,
		Title:  r.Title(tc.Ticket),
		Body:   tc.Ticket.Description,
	}
	if tc.Ticket.ID != "" || tc.Link != "" {
		msg.Data = map[string]string{}
		if tc.Ticket.ID != "" {
			msg.Data["ticketId"] = tc.Ticket.ID
		}
		if tc.Link != "" {
			msg.Data["link"] = tc.Link
		}
	}
	return msg
}

// Email builds the per-recipient email.
func (r *Renderer) Email(tc domain.TicketContext, to string) (EmailMessage, error) {
	v := newView(tc)

	var html bytes.Buffer
	if err := emailHTML.Execute(&html, v); err != nil {
		return EmailMessage{}, err
	}
	var text bytes.Buffer
	if err := emailText.Execute(&text, v); err != nil {
		return EmailMessage{}, err
	}

	return EmailMessage{
		To:      to,
		Subject: r.Title(tc.Ticket),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

// SMS builds the per-recipient text message.
func (r *Renderer) SMS(tc domain.TicketContext, to string) SMSMessage {
	parts := []string{r.Title(tc.Ticket)}
	if tc.Link != "" {
		parts = append(parts, tc.Link)
	}
	return SMSMessage{To: to, Body: strings.Join(parts, "\n")}
}
