package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pressgen/pressgen/internal/interfaces"
	"github.com/ternarybob/arbor"
)

// DefaultCallbackTimeout bounds callback delivery when no timeout is configured.
const DefaultCallbackTimeout = 30 * time.Second

// HTTPNotifier delivers terminal-state notifications to the requester's
// callback endpoint as an authenticated JSON POST. The WordPress
// application password authenticates the worker to the receiving plugin.
type HTTPNotifier struct {
	httpClient *http.Client
	user       string
	password   string
	logger     arbor.ILogger
}

// NotifierOption configures the HTTPNotifier.
type NotifierOption func(*HTTPNotifier)

// WithNotifierTimeout sets a custom delivery timeout.
func WithNotifierTimeout(timeout time.Duration) NotifierOption {
	return func(n *HTTPNotifier) {
		n.httpClient.Timeout = timeout
	}
}

// WithNotifierHTTPClient sets a custom HTTP client.
func WithNotifierHTTPClient(httpClient *http.Client) NotifierOption {
	return func(n *HTTPNotifier) {
		n.httpClient = httpClient
	}
}

// NewHTTPNotifier creates a callback notifier authenticating with the given
// basic auth credentials.
func NewHTTPNotifier(user, password string, logger arbor.ILogger, opts ...NotifierOption) *HTTPNotifier {
	n := &HTTPNotifier{
		httpClient: &http.Client{
			Timeout: DefaultCallbackTimeout,
		},
		user:     user,
		password: password,
		logger:   logger,
	}

	for _, opt := range opts {
		opt(n)
	}

	return n
}

// Notify posts the notification to callbackURL. Any failure (missing URL,
// transport error, non-2xx response) is returned so the dispatcher can
// override the task's terminal status.
func (n *HTTPNotifier) Notify(ctx context.Context, callbackURL string, notification interfaces.CallbackNotification) error {
	if callbackURL == "" {
		return fmt.Errorf("callback URL is empty")
	}
	if n.user == "" || n.password == "" {
		return fmt.Errorf("missing callback credentials")
	}

	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to encode callback payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(n.user, n.password)

	n.logger.Debug().
		Str("task_id", notification.TaskID).
		Str("callback_url", callbackURL).
		Str("status", notification.Status).
		Msg("Sending callback notification")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("callback request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("callback returned status %d: %s", resp.StatusCode, string(respBody))
	}

	n.logger.Info().
		Str("task_id", notification.TaskID).
		Int("status_code", resp.StatusCode).
		Msg("Callback delivered")
	return nil
}
