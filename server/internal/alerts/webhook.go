package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/obsidianstack/seedmonitor/server/internal/config"
)

// Notifier delivers one message to one destination.
type Notifier interface {
	Notify(ctx context.Context, destination, title, body string) error
}

// WebhookNotifier posts notifications to every configured webhook.
type WebhookNotifier struct {
	webhooks []config.WebhookConfig
	client   *http.Client
}

// NewWebhookNotifier returns a notifier for hooks. client may be nil.
func NewWebhookNotifier(hooks []config.WebhookConfig, client *http.Client) *WebhookNotifier {
	if client == nil {
		client = &http.Client{}
	}
	return &WebhookNotifier{webhooks: hooks, client: client}
}

// Notify sends the message to all webhooks with a resolvable URL. The returned
// error joins every failed delivery.
func (n *WebhookNotifier) Notify(ctx context.Context, destination, title, body string) error {
	var errs []error
	for _, wh := range n.webhooks {
		url := wh.URL()
		if url == "" {
			slog.Warn("alerts: webhook url not set, skipping", "type", wh.Type, "url_env", wh.URLEnv)
			continue
		}

		var payload any
		switch wh.Type {
		case "slack":
			payload = slackPayload(wh, title, body)
		case "teams":
			payload = teamsPayload(title, body)
		case "http":
			payload = map[string]string{"destination": destination, "title": title, "body": body}
		default:
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		if err := n.post(ctx, url, payload); err != nil {
			errs = append(errs, fmt.Errorf("%s webhook: %w", wh.Type, err))
			continue
		}
		slog.Debug("alerts: webhook delivered", "type", wh.Type, "destination", destination)
	}
	return errors.Join(errs...)
}

func slackPayload(wh config.WebhookConfig, title, body string) map[string]string {
	p := map[string]string{
		"username": title,
		"text":     body,
	}
	if wh.Channel != "" {
		p["channel"] = wh.Channel
	}
	return p
}

func teamsPayload(title, body string) map[string]any {
	return map[string]any{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": "FF4F6A",
		"summary":    title,
		"title":      title,
		"text":       body,
	}
}

func (n *WebhookNotifier) post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// LogNotifier only logs. It is used when no webhook is configured.
type LogNotifier struct{}

// Notify logs the message at warn level.
func (LogNotifier) Notify(_ context.Context, destination, title, body string) error {
	slog.Warn("alerts: no webhook configured, alert logged only",
		"destination", destination, "title", title, "body", body)
	return nil
}

// NotifierFromConfig returns a WebhookNotifier for cfg, or a LogNotifier when
// cfg has no webhooks.
func NotifierFromConfig(cfg config.AlertsConfig) Notifier {
	if len(cfg.Webhooks) == 0 {
		return LogNotifier{}
	}
	return NewWebhookNotifier(cfg.Webhooks, nil)
}
