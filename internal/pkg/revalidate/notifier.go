// Package revalidate notifies an external frontend that a rendered path has
// become stale. The frontend exposes a webhook that triggers regeneration of
// the named path.
package revalidate

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/selin/memoria/internal/pkg/logger"
)

// Notifier reports that the content behind a path has changed.
type Notifier interface {
	PathChanged(path string)
}

// WebhookNotifier posts path-changed events to a configured webhook URL.
// Delivery is fire and forget; failures are logged and never surfaced to the
// request that triggered them.
type WebhookNotifier struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

type pathChangedPayload struct {
	Path string `json:"path"`
}

// NewWebhookNotifier creates a notifier that posts to url. A non-positive
// timeout falls back to two seconds.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &WebhookNotifier{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// PathChanged delivers the event on a background goroutine.
func (n *WebhookNotifier) PathChanged(path string) {
	go n.deliver(path)
}

func (n *WebhookNotifier) deliver(path string) {
	body, err := json.Marshal(pathChangedPayload{Path: path})
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("Failed to encode revalidation payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("Failed to build revalidation request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Revalidation webhook unreachable")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		logger.Warn().Int("status", resp.StatusCode).Str("path", path).Msg("Revalidation webhook rejected event")
		return
	}
	logger.Debug().Str("path", path).Msg("Revalidation event delivered")
}

// NoopNotifier discards every event. Used when no webhook URL is configured.
type NoopNotifier struct{}

// PathChanged implements Notifier.
func (NoopNotifier) PathChanged(string) {}
