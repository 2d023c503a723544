// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package alerting

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// WebhookChannel posts alerts as JSON to a generic webhook endpoint.
type WebhookChannel struct {
	name       string
	webhookURL string
	headers    map[string]string
	client     *http.Client
	enabled    bool
	now        func() time.Time
	mu         sync.RWMutex
}

// WebhookConfig configures the webhook channel.
type WebhookConfig struct {
	Name       string            `json:"name" koanf:"name" validate:"omitempty,slug"`
	WebhookURL string            `json:"webhook_url" koanf:"url" validate:"omitempty,url"`
	Headers    map[string]string `json:"headers,omitempty" koanf:"headers"`
	Enabled    bool              `json:"enabled" koanf:"enabled"`
	Timeout    time.Duration     `json:"timeout" koanf:"timeout"`
}

// WebhookPayload is the JSON body sent to the webhook endpoint.
type WebhookPayload struct {
	Alert     *SecurityAlert `json:"alert"`
	EventType string         `json:"event_type"` // security_alert
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source"` // riskguard
}

// NewWebhookChannel creates a webhook channel. The client timeout defaults
// to 10 seconds.
func NewWebhookChannel(config WebhookConfig) *WebhookChannel {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	name := config.Name
	if name == "" {
		name = "webhook"
	}

	headers := make(map[string]string, len(config.Headers))
	for k, v := range config.Headers {
		headers[k] = v
	}

	return &WebhookChannel{
		name:       name,
		webhookURL: config.WebhookURL,
		headers:    headers,
		enabled:    config.Enabled,
		now:        time.Now,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the channel name.
func (n *WebhookChannel) Name() string {
	return n.name
}

// Enabled returns whether this channel is enabled.
func (n *WebhookChannel) Enabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.enabled && n.webhookURL != ""
}

// SetEnabled enables or disables the channel.
func (n *WebhookChannel) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// SetHeaders replaces the custom headers.
func (n *WebhookChannel) SetHeaders(headers map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.headers = make(map[string]string, len(headers))
	for k, v := range headers {
		n.headers[k] = v
	}
}

// Send posts alert to the webhook. Responses with status 400 and above are
// errors.
func (n *WebhookChannel) Send(ctx context.Context, alert *SecurityAlert) error {
	n.mu.RLock()
	if !n.enabled || n.webhookURL == "" {
		n.mu.RUnlock()
		return nil
	}
	webhookURL := n.webhookURL
	headers := make(map[string]string, len(n.headers))
	for k, v := range n.headers {
		headers[k] = v
	}
	n.mu.RUnlock()

	payload := WebhookPayload{
		Alert:     alert,
		EventType: "security_alert",
		Timestamp: n.now().UTC(),
		Source:    "riskguard",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
