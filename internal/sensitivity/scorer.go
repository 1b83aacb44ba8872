// Package sensitivity scores free text with an external model and decides
// whether the warning banner should be shown.
package sensitivity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ppiankov/neurorouter"
)

// Scorer returns the raw JSON answer of a sensitivity model for text.
type Scorer interface {
	Score(ctx context.Context, text string) ([]byte, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, text string) ([]byte, error)

func (f ScorerFunc) Score(ctx context.Context, text string) ([]byte, error) { return f(ctx, text) }

// DefaultAPIURL is the OpenAI-compatible chat completions endpoint.
const DefaultAPIURL = "https://api.openai.com/v1/chat/completions"

const systemPrompt = `You evaluate the sensitivity of user-typed text on a scale of 0 to 100.
Sensitive content includes personal identifiers, contact details, financial, health,
biometric or government identity data, credentials and precise locations.

Return ONLY valid JSON, no markdown fences, no commentary:
{"score":<number 0-100>,"message":"<short warning for the user>","recommendation":"<optional advice>"}`

// ChatScorer calls an OpenAI-compatible chat completions API.
type ChatScorer struct {
	APIURL    string
	APIKey    string
	Model     string
	MaxTokens int
	Client    *http.Client
}

func (c *ChatScorer) Score(ctx context.Context, text string) ([]byte, error) {
	apiURL := c.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	maxTokens := c.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 200
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	body, err := json.Marshal(map[string]any{
		"model": c.Model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": text},
		},
		"max_tokens":  maxTokens,
		"temperature": 0,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("score request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("score HTTP 429: %w", neurorouter.ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode, body: truncate(strings.TrimSpace(string(respBody)), 200)}
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil || len(result.Choices) == 0 {
		return nil, &malformedError{msg: "empty score response"}
	}
	return []byte(cleanJSON(result.Choices[0].Message.Content)), nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string { return fmt.Sprintf("score HTTP %d: %s", e.code, e.body) }

// malformedError marks a 2xx answer whose envelope could not be read.
type malformedError struct{ msg string }

func (e *malformedError) Error() string { return e.msg }

// cleanJSON strips markdown fences and surrounding whitespace.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
