package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/ppiankov/consentwatch/internal/model"
)

const (
	requestTimeout = 5 * time.Second
	maxRetries     = 3
)

var httpClient = &http.Client{Timeout: requestTimeout}

// retryDelay is the backoff unit between attempts.
var retryDelay = time.Second

// WebhookConfig defines a webhook destination.
type WebhookConfig struct {
	URL        string            `yaml:"url"        json:"url"`
	Format     string            `yaml:"format"     json:"format"` // "generic", "slack", "pagerduty"
	Categories []string          `yaml:"categories" json:"categories,omitempty"`
	Headers    map[string]string `yaml:"headers"    json:"headers,omitempty"`
}

func (c WebhookConfig) matches(category string) bool {
	if len(c.Categories) == 0 {
		return true
	}
	for _, cat := range c.Categories {
		if cat == category {
			return true
		}
	}
	return false
}

// Event is the payload sent to webhook endpoints.
type Event struct {
	Timestamp string         `json:"timestamp"`
	Category  string         `json:"category"`
	Message   string         `json:"message"`
	Severity  model.Severity `json:"severity"`
	Source    string         `json:"source"`
}

// NewEvent stamps a signal for delivery.
func NewEvent(sig model.Signal) Event {
	return Event{
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Category:  sig.Category,
		Message:   sig.Message,
		Severity:  sig.Severity,
		Source:    "consentwatch",
	}
}

// Webhooks fans signals out to matching webhook configurations.
// Delivery runs in goroutines and never blocks Notify.
type Webhooks struct {
	configs []WebhookConfig
	log     io.Writer
	wg      sync.WaitGroup
}

// NewWebhooks returns nil when configs is empty.
func NewWebhooks(configs []WebhookConfig, log io.Writer) *Webhooks {
	if len(configs) == 0 {
		return nil
	}
	if log == nil {
		log = os.Stderr
	}
	return &Webhooks{configs: configs, log: log}
}

func (w *Webhooks) Notify(_ context.Context, sig model.Signal) error {
	if w == nil {
		return nil
	}
	event := NewEvent(sig)
	for _, cfg := range w.configs {
		if !cfg.matches(sig.Category) {
			continue
		}
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), maxRetries*(requestTimeout+retryDelay*maxRetries))
			defer cancel()
			if err := Send(ctx, cfg, event); err != nil {
				fmt.Fprintf(w.log, "notify: webhook %s: %v\n", cfg.URL, err)
			}
		}()
	}
	return nil
}

// Wait blocks until every in-flight delivery has finished.
func (w *Webhooks) Wait() {
	if w != nil {
		w.wg.Wait()
	}
}

// Send posts an event to a webhook endpoint with retry on 5xx.
func Send(ctx context.Context, cfg WebhookConfig, event Event) error {
	body, err := FormatPayload(cfg.Format, event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * retryDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range cfg.Headers {
			req.Header.Set(k, v)
		}

		resp, err := httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return fmt.Errorf("webhook rejected: HTTP %d", resp.StatusCode)
		}
		lastErr = fmt.Errorf("webhook server error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("webhook failed after %d attempts: %w", maxRetries, lastErr)
}
