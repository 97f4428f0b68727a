package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nate-a11y/lrpbolt-sub001/internal/config"
	"github.com/nate-a11y/lrpbolt-sub001/internal/domain"
)

// messagingServicePrefix marks a sender id as a Twilio messaging service
// rather than a phone number.
const messagingServicePrefix = "MG"

// TwilioName is recorded as the provider of SMS sent through Twilio.
const TwilioName = "twilio"

// TwilioProvider sends SMS through the Twilio Messages REST API.
type TwilioProvider struct {
	cfg        config.TwilioConfig
	httpClient *http.Client
}

func NewTwilioProvider(cfg config.TwilioConfig, timeout time.Duration) *TwilioProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twilio.com"
	}
	return &TwilioProvider{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (p *TwilioProvider) Missing() []string { return p.cfg.Missing() }

func (p *TwilioProvider) Enabled() bool { return p.cfg.Enabled() }

// Send posts one message. Missing configuration is reported before any
// network call; a non-2xx response becomes a *TransportError carrying
// Twilio's JSON error body.
func (p *TwilioProvider) Send(ctx context.Context, msg SMSMessage) (*SMSReceipt, error) {
	if missing := p.Missing(); len(missing) > 0 {
		return nil, &domain.MissingConfigError{Channel: domain.ChannelSMS, Vars: missing}
	}

	form := url.Values{}
	form.Set("To", msg.To)
	form.Set("Body", msg.Body)
	if strings.HasPrefix(p.cfg.From, messagingServicePrefix) {
		form.Set("MessagingServiceSid", p.cfg.From)
	} else {
		form.Set("From", p.cfg.From)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(p.cfg.BaseURL, "/"), url.PathEscape(p.cfg.AccountSID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(p.cfg.AccountSID, p.cfg.AuthToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &TransportError{Provider: TwilioName, StatusCode: resp.StatusCode, Body: raw}
	}

	var receipt SMSReceipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if receipt.SID == "" {
		return nil, fmt.Errorf("twilio: response carried no message sid")
	}
	return &receipt, nil
}

var _ SMSSender = (*TwilioProvider)(nil)
