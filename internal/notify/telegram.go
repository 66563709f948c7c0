package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bybit-sentinel/internal/config"
	"bybit-sentinel/internal/models"
)

// TelegramNotifier sends signals through the Telegram bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	enabled  bool
	baseURL  string
	client   *http.Client
}

var _ Channel = (*TelegramNotifier)(nil)

// NewTelegramNotifier creates a Telegram channel.
func NewTelegramNotifier(cfg config.TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		enabled:  cfg.Enabled && cfg.BotToken != "" && cfg.ChatID != "",
		baseURL:  "https://api.telegram.org",
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the channel name.
func (t *TelegramNotifier) Name() string {
	return "telegram"
}

// IsEnabled reports whether token and chat are configured.
func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

// SendSignal renders the signal as an HTML message and posts it.
func (t *TelegramNotifier) SendSignal(ctx context.Context, sig models.Signal) error {
	payload := map[string]string{
		"chat_id":    t.chatID,
		"text":       formatTelegramMessage(sig),
		"parse_mode": "HTML",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Description string `json:"description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Description != "" {
			return fmt.Errorf("telegram API error: %s", apiErr.Description)
		}
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}
	return nil
}

// formatTelegramMessage renders the signal with a bold headline and
// the shared plain body, HTML-escaped for the bot API.
func formatTelegramMessage(sig models.Signal) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s <b>%s</b>\n", sideEmoji(sig.Side), escapeHTML(signalHeadline(sig))))
	sb.WriteString(escapeHTML(signalBody(sig)))
	return sb.String()
}

// escapeHTML escapes the characters the Telegram HTML parser treats
// specially.
func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
