package delivery

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"

	"github.com/desertthunder/spotlake/internal/shared"
)

const userAgent = "spotlake/1.0"

// WebhookPayload is the JSON document posted by [WebhookDispatcher].
type WebhookPayload struct {
	From    string         `json:"from"`
	To      []string       `json:"to"`
	Subject string         `json:"subject"`
	Text    string         `json:"text,omitempty"`
	HTML    string         `json:"html,omitempty"`
	Images  []WebhookImage `json:"images,omitempty"`
	SentAt  time.Time      `json:"sent_at"`
}

// WebhookImage carries an inline image as base64.
type WebhookImage struct {
	ContentID   string `json:"content_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        string `json:"data"`
}

// WebhookDispatcher publishes messages as JSON to an HTTP endpoint.
type WebhookDispatcher struct {
	url    string
	client *http.Client
	logger *log.Logger
	now    func() time.Time
}

// NewWebhookDispatcher builds a dispatcher. client and logger may be nil.
func NewWebhookDispatcher(url string, client *http.Client, logger *log.Logger) *WebhookDispatcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &WebhookDispatcher{url: url, client: client, logger: logger, now: time.Now}
}

// Dispatch implements [Dispatcher]. Any non-2xx response is an error.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	payload := WebhookPayload{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		Text:    msg.Text,
		HTML:    msg.HTML,
		SentAt:  d.now().UTC(),
	}
	for _, img := range msg.Inline {
		payload.Images = append(payload.Images, WebhookImage{
			ContentID:   img.ContentID,
			Filename:    img.Filename,
			ContentType: img.ContentType,
			Data:        base64.StdEncoding.EncodeToString(img.Data),
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: webhook: %w", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		d.logger.Error("webhook rejected message", "status", resp.StatusCode)
		return fmt.Errorf("%w: webhook returned status %d: %s", shared.ErrServiceUnavailable, resp.StatusCode, string(respBody))
	}

	d.logger.Info("message published", "status", resp.StatusCode, "images", len(payload.Images))
	return nil
}
