package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dealpress/dealpress/app/rules"
)

// PublishResult is the outcome of one channel publish call.
type PublishResult struct {
	Success           bool
	ExternalMessageID string
}

// ChannelPublisher is the uniform capability the dispatcher sends through.
// Concrete channel SDKs (Telegram, Discord, Email) live behind
// implementations of this interface; the core never depends on which.
type ChannelPublisher interface {
	Publish(ctx context.Context, channel rules.RuleChannel, text, mediaURL string) (PublishResult, error)
}

// WebhookPublisher delivers copy as a JSON POST to the channel target URL.
// It is the generic transport used when no channel-specific publisher is
// wired in.
type WebhookPublisher struct {
	userAgent  string
	timeout    time.Duration
	httpClient *http.Client
}

var _ ChannelPublisher = (*WebhookPublisher)(nil)

func NewWebhookPublisher(userAgent string, timeout time.Duration) *WebhookPublisher {
	return &WebhookPublisher{
		userAgent:  userAgent,
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

type webhookPayload struct {
	Channel  string `json:"channel"`
	Text     string `json:"text"`
	MediaURL string `json:"media_url,omitempty"`
}

type webhookResponse struct {
	MessageID string `json:"message_id"`
}

func (p *WebhookPublisher) Publish(ctx context.Context, channel rules.RuleChannel, text, mediaURL string) (PublishResult, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	body, err := json.Marshal(webhookPayload{
		Channel:  channel.Type,
		Text:     text,
		MediaURL: mediaURL,
	})
	if err != nil {
		return PublishResult{}, fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, channel.Target, bytes.NewReader(body))
	if err != nil {
		return PublishResult{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return PublishResult{}, fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return PublishResult{}, fmt.Errorf("webhook error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed webhookResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	// Target may reply with an empty body; the message id is optional.
	_ = json.Unmarshal(data, &parsed)

	return PublishResult{Success: true, ExternalMessageID: parsed.MessageID}, nil
}
