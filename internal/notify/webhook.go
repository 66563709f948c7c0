package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"bybit-sentinel/internal/config"
	"bybit-sentinel/internal/models"
)

// WebhookNotifier posts each signal as JSON to a configured URL.
type WebhookNotifier struct {
	url     string
	enabled bool
	client  *http.Client
}

var _ Channel = (*WebhookNotifier)(nil)

// NewWebhookNotifier creates a webhook channel.
func NewWebhookNotifier(cfg config.WebhookConfig) *WebhookNotifier {
	return &WebhookNotifier{
		url:     cfg.URL,
		enabled: cfg.Enabled && cfg.URL != "",
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the channel name.
func (w *WebhookNotifier) Name() string {
	return "webhook"
}

// IsEnabled reports whether the channel is configured for delivery.
func (w *WebhookNotifier) IsEnabled() bool {
	return w.enabled
}

// webhookPayload is the wire envelope. The signal rides along intact
// so receivers can consume the same shape the store persists.
type webhookPayload struct {
	Event  string        `json:"event"`
	SentAt time.Time     `json:"sent_at"`
	Signal models.Signal `json:"signal"`
}

// SendSignal posts the signal and fails on any non-2xx response.
func (w *WebhookNotifier) SendSignal(ctx context.Context, sig models.Signal) error {
	payload := webhookPayload{
		Event:  "signal." + string(sig.Stage),
		SentAt: time.Now().UTC(),
		Signal: sig,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "bybit-sentinel")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
