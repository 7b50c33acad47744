// Package notify delivers gesture and mode-change notifications over the
// configured channels (webhook, log file).
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lumenlabs/claplight/internal/util"
)

// WebhookPayload represents the data sent to webhook endpoints.
type WebhookPayload struct {
	Event      string `json:"event"`
	Gesture    string `json:"gesture,omitempty"`
	Claps      int    `json:"claps,omitempty"`
	Mode       string `json:"mode,omitempty"`
	On         bool   `json:"on,omitempty"`
	Brightness int    `json:"brightness,omitempty"`
	Message    string `json:"message,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// SendModeWebhook notifies the configured webhook of a gesture-driven mode change.
func SendModeWebhook(webhookURL, gesture string, claps int, mode string, on bool, brightness int) error {
	return sendWebhook(webhookURL, &WebhookPayload{
		Event:      "mode_changed",
		Gesture:    gesture,
		Claps:      claps,
		Mode:       mode,
		On:         on,
		Brightness: brightness,
		Timestamp:  timestampUTC(),
	})
}

// SendTestWebhook sends a test webhook notification.
func SendTestWebhook(webhookURL string) error {
	if webhookURL == "" {
		return fmt.Errorf("webhook URL not configured")
	}

	return sendWebhook(webhookURL, &WebhookPayload{
		Event:     "test",
		Message:   "This is a test notification from claplight",
		Timestamp: timestampUTC(),
	})
}

// sendWebhook delivers a notification to the configured webhook endpoint.
func sendWebhook(webhookURL string, payload *WebhookPayload) error {
	if !util.IsConfigured(webhookURL) {
		return nil // Silently skip if not configured
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return util.WrapError("marshal payload", err)
	}

	client := &http.Client{Timeout: 10000 * time.Millisecond}
	resp, err := client.Post(webhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return util.WrapError("send webhook request", err)
	}
	defer util.SafeCloseFunc(resp.Body, "webhook response body")()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// timestampUTC returns the current time formatted for notification payloads.
func timestampUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
