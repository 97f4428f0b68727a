package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/nate-a11y/lrpbolt-sub001/internal/config"
	"github.com/nate-a11y/lrpbolt-sub001/internal/domain"
)

const fcmScope = "https://www.googleapis.com/auth/firebase.messaging"

// maxErrorBody caps how much of a failed response is kept for diagnostics.
const maxErrorBody = 64 << 10

// Per-token error codes that mean the token will never work again. The
// first three come from the legacy API, the rest from HTTP v1.
var staleTokenErrors = map[string]bool{
	"NotRegistered":       true,
	"InvalidRegistration": true,
	"MismatchSenderId":    true,
	"UNREGISTERED":        true,
	"INVALID_ARGUMENT":    true,
	"SENDER_ID_MISMATCH":  true,
}

// IsStaleTokenError reports whether a per-token FCM error code means the
// token should be removed from the token directory.
func IsStaleTokenError(code string) bool {
	return staleTokenErrors[code]
}

// TokenResult is the per-token outcome inside a multicast response.
type TokenResult struct {
	Token     string
	MessageID string
	Error     string
}

// MulticastResult summarises one multicast call.
type MulticastResult struct {
	Success int
	Failure int
	Results []TokenResult
}

// StaleTokens returns the tokens the transport rejected permanently.
func (r *MulticastResult) StaleTokens() []string {
	if r == nil {
		return nil
	}
	var stale []string
	for _, res := range r.Results {
		if IsStaleTokenError(res.Error) {
			stale = append(stale, res.Token)
		}
	}
	return stale
}

// FCMProvider sends push notifications over FCM. With a server key it uses
// the legacy multicast endpoint; with a project id it uses HTTP v1, which
// takes one token per request and an OAuth2 bearer token.
type FCMProvider struct {
	endpoint  string
	serverKey string
	projectID string
	client    *http.Client
}

// NewFCMProvider builds the push sender. With a server key requests carry
// "Authorization: key=..." to the legacy endpoint. Otherwise the client
// authenticates with Google application default credentials and talks to
// the v1 API. When neither is available the returned provider is disabled.
func NewFCMProvider(ctx context.Context, cfg config.FCMConfig, timeout time.Duration, logger *zap.Logger) *FCMProvider {
	if cfg.ServerKey != "" {
		return NewFCMProviderWithClient(cfg.Endpoint, cfg.ServerKey, &http.Client{Timeout: timeout})
	}

	creds, err := google.FindDefaultCredentials(ctx, fcmScope)
	if err != nil {
		logger.Info("push channel disabled: no FCM credentials", zap.Error(err))
		return &FCMProvider{}
	}
	projectID := cfg.ProjectID
	if projectID == "" {
		projectID = creds.ProjectID
	}
	if projectID == "" {
		logger.Info("push channel disabled: FCM_PROJECT_ID unset and credentials carry no project")
		return &FCMProvider{}
	}

	client := oauth2.NewClient(ctx, creds.TokenSource)
	client.Timeout = timeout
	return NewFCMv1ProviderWithClient(cfg.BaseURL, projectID, client)
}

// NewFCMProviderWithClient uses client as-is against the legacy endpoint.
// Tests point endpoint at an httptest server.
func NewFCMProviderWithClient(endpoint, serverKey string, client *http.Client) *FCMProvider {
	return &FCMProvider{endpoint: endpoint, serverKey: serverKey, client: client}
}

// NewFCMv1ProviderWithClient targets the v1 send endpoint of projectID under
// baseURL. client must already attach the bearer token.
func NewFCMv1ProviderWithClient(baseURL, projectID string, client *http.Client) *FCMProvider {
	if baseURL == "" || projectID == "" {
		return &FCMProvider{}
	}
	return &FCMProvider{
		endpoint:  strings.TrimRight(baseURL, "/") + "/v1/projects/" + projectID + "/messages:send",
		projectID: projectID,
		client:    client,
	}
}

func (p *FCMProvider) Enabled() bool {
	return p.client != nil && p.endpoint != ""
}

type fcmRequest struct {
	RegistrationIDs []string          `json:"registration_ids"`
	Notification    fcmNotification   `json:"notification"`
	Data            map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		MessageID string `json:"message_id"`
		Error     string `json:"error"`
	} `json:"results"`
}

// SendMulticast delivers msg to every token in one request.
func (p *FCMProvider) SendMulticast(ctx context.Context, msg PushMessage) (*MulticastResult, error) {
	if !p.Enabled() {
		return nil, fmt.Errorf("fcm: %w", domain.ErrChannelUnavailable)
	}
	if len(msg.Tokens) == 0 {
		return &MulticastResult{}, nil
	}
	if p.projectID != "" {
		return p.sendV1(ctx, msg)
	}

	body, err := json.Marshal(fcmRequest{
		RegistrationIDs: msg.Tokens,
		Notification:    fcmNotification{Title: msg.Title, Body: msg.Body},
		Data:            msg.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.serverKey != "" {
		req.Header.Set("Authorization", "key="+p.serverKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &TransportError{Provider: "fcm", StatusCode: resp.StatusCode, Body: raw}
	}

	var fr fcmResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := &MulticastResult{Success: fr.Success, Failure: fr.Failure}
	for i, r := range fr.Results {
		tr := TokenResult{MessageID: r.MessageID, Error: r.Error}
		if i < len(msg.Tokens) {
			tr.Token = msg.Tokens[i]
		}
		out.Results = append(out.Results, tr)
	}
	return out, nil
}

type v1Request struct {
	Message v1Message `json:"message"`
}

type v1Message struct {
	Token        string            `json:"token"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type v1Response struct {
	Name string `json:"name"`
}

type v1ErrorResponse struct {
	Error struct {
		Status  string `json:"status"`
		Details []struct {
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

// sendV1 fans msg out one token at a time. Per-token rejections become
// TokenResult errors; an authentication failure aborts the whole send
// because no later token can succeed either.
func (p *FCMProvider) sendV1(ctx context.Context, msg PushMessage) (*MulticastResult, error) {
	out := &MulticastResult{}
	for _, tok := range msg.Tokens {
		tr, err := p.sendOneV1(ctx, tok, msg)
		if err != nil {
			return nil, err
		}
		if tr.Error == "" {
			out.Success++
		} else {
			out.Failure++
		}
		out.Results = append(out.Results, tr)
	}
	return out, nil
}

func (p *FCMProvider) sendOneV1(ctx context.Context, token string, msg PushMessage) (TokenResult, error) {
	tr := TokenResult{Token: token}
	body, err := json.Marshal(v1Request{Message: v1Message{
		Token:        token,
		Notification: fcmNotification{Title: msg.Title, Body: msg.Body},
		Data:         msg.Data,
	}})
	if err != nil {
		return tr, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return tr, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return tr, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return tr, &TransportError{Provider: "fcm", StatusCode: resp.StatusCode, Body: raw}
	}
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		tr.Error = v1ErrorCode(resp.StatusCode, raw)
		return tr, nil
	}

	var r v1Response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return tr, fmt.Errorf("decode response: %w", err)
	}
	tr.MessageID = r.Name
	return tr, nil
}

// v1ErrorCode prefers the FcmError detail code, then the canonical status,
// then the bare HTTP status.
func v1ErrorCode(status int, raw []byte) string {
	var er v1ErrorResponse
	if json.Unmarshal(raw, &er) == nil {
		for _, d := range er.Error.Details {
			if d.ErrorCode != "" {
				return d.ErrorCode
			}
		}
		if er.Error.Status != "" {
			return er.Error.Status
		}
	}
	return fmt.Sprintf("HTTP %d", status)
}

var _ PushSender = (*FCMProvider)(nil)
