package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

type webhookPayload struct {
	MachineID      string    `json:"machine_id"`
	Recipient      string    `json:"recipient_hint,omitempty"`
	Subject        string    `json:"subject"`
	Body           string    `json:"body"`
	Status         string    `json:"status"`
	NextRepairDate time.Time `json:"next_repair_date"`
}

// WebhookChannel posts notices as JSON to an HTTP endpoint.
type WebhookChannel struct {
	url    string
	client *http.Client
}

// NewWebhookChannel constructs a webhook channel. A nil client gets a 10s timeout.
func NewWebhookChannel(url string, client *http.Client) (*WebhookChannel, error) {
	if url == "" {
		return nil, errors.New("webhook channel: empty url")
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookChannel{url: url, client: client}, nil
}

func (w *WebhookChannel) Name() string { return "webhook" }

// Send posts the notice.
func (w *WebhookChannel) Send(ctx context.Context, n Notice) error {
	body, err := json.Marshal(webhookPayload{
		MachineID:      n.MachineID,
		Recipient:      n.RecipientHint,
		Subject:        n.Subject,
		Body:           n.Body,
		Status:         string(n.Band),
		NextRepairDate: n.NextRepairDate,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook channel: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook channel: non-2xx response %d", resp.StatusCode)
	}
	return nil
}
