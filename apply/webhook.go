package apply

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Dispatcher delivers one packaged request.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *Request) error
}

// WebhookConfig for a Webhook dispatcher.
type WebhookConfig struct {
	// URL receives POSTed requests. http and https only.
	URL string
	// Timeout per HTTP attempt. Default 10s.
	Timeout time.Duration
	// MaxAttempts per Dispatch call, with exponential backoff between.
	// Default 3.
	MaxAttempts int
	// Backoff is the base backoff, doubled per retry. Default 500ms.
	Backoff time.Duration
	Client  *http.Client
	Logger  *slog.Logger
}

// Webhook POSTs requests as JSON with bounded exponential-backoff retries.
type Webhook struct {
	cfg    WebhookConfig
	client *http.Client
	logger *slog.Logger
}

// NewWebhook validates the target URL at construction: scheme allowlist,
// non-empty host.
func NewWebhook(cfg WebhookConfig) (*Webhook, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("apply: webhook url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("apply: webhook url: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("apply: webhook url: missing host")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Webhook{cfg: cfg, client: client, logger: cfg.Logger}, nil
}

// Dispatch POSTs req, retrying transient failures (network errors and 5xx)
// with exponential backoff. 4xx responses fail immediately.
func (w *Webhook) Dispatch(ctx context.Context, req *Request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("apply: marshal request: %w", err)
	}
	backoff := w.cfg.Backoff
	var lastErr error
	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		lastErr = w.post(ctx, body)
		if lastErr == nil {
			return nil
		}
		if perm, ok := lastErr.(*permanentError); ok {
			return fmt.Errorf("apply: dispatch %s: %w", req.ID, perm.err)
		}
		w.logger.Warn("apply: dispatch attempt failed",
			"request", req.ID, "attempt", attempt, "error", lastErr)
		if attempt == w.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("apply: dispatch %s: %w", req.ID, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("apply: dispatch %s: %w", req.ID, lastErr)
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	hreq.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(hreq)
	if err != nil {
		return err
	}
	defer func() {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}()
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &permanentError{err: fmt.Errorf("status %d", resp.StatusCode)}
	default:
		return fmt.Errorf("status %d", resp.StatusCode)
	}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }
