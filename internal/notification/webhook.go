package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tableflow/internal/config"
	"tableflow/internal/constants"
	"tableflow/pkg/retry"
)

type webhookBody struct {
	TenantID   string         `json:"tenant_id"`
	Channel    string         `json:"channel"`
	Recipients []string       `json:"recipients"`
	Message    string         `json:"message"`
	Data       map[string]any `json:"data,omitempty"`
}

// WebhookSender posts messages to an SMS or push gateway.
type WebhookSender struct {
	client    *http.Client
	url       string
	headers   map[string]string
	directory Directory
}

func NewWebhookSender(cfg config.WebhookConfig, directory Directory) *WebhookSender {
	timeout := constants.DefaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &WebhookSender{
		client:    &http.Client{Timeout: timeout},
		url:       cfg.URL,
		headers:   cfg.Headers,
		directory: directory,
	}
}

func (s *WebhookSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(webhookBody{
		TenantID:   msg.TenantID,
		Channel:    msg.Channel,
		Recipients: s.directory.Resolve(msg.Recipients),
		Message:    msg.Message,
		Data:       msg.Data,
	})
	if err != nil {
		return retry.NewFatalError(fmt.Errorf("failed to encode webhook body: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return retry.NewFatalError(fmt.Errorf("failed to build webhook request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= constants.HTTPStatusOKMin && resp.StatusCode < constants.HTTPStatusOKMax {
		return nil
	}
	err = fmt.Errorf("webhook returned status %d", resp.StatusCode)
	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusTooManyRequests {
		return retry.NewFatalError(err)
	}
	return err
}
