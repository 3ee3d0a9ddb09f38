// Package ai talks to the Gemini generateContent endpoint for the two
// judgment calls in the cycle: topical relevance and absurdity scoring.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrNotConfigured is returned when no API key is present. Callers fall
// back to their own defaults and make no outbound request.
var ErrNotConfigured = errors.New("gemini api key missing")

// Client is a minimal Gemini generateContent client. Calls share a
// rate limiter so relevance and scoring together stay inside the
// per-minute quota.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

// GenerateOptions bound a single completion request.
type GenerateOptions struct {
	Temperature     float64
	MaxOutputTokens int
	ResponseJSON    bool
	Timeout         time.Duration
}

// NewClient builds the client. An empty apiKey yields a client whose
// Generate always returns ErrNotConfigured.
func NewClient(apiKey, model string, log *slog.Logger) *Client {
	return &Client{
		baseURL: "https://generativelanguage.googleapis.com",
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(1), 2),
		log:     log,
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

// Generate sends one prompt and returns the first candidate's text.
func (c *Client) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	generationConfig := map[string]any{
		"temperature": opts.Temperature,
	}
	if opts.MaxOutputTokens > 0 {
		generationConfig["maxOutputTokens"] = opts.MaxOutputTokens
	}
	if opts.ResponseJSON {
		generationConfig["response_mime_type"] = "application/json"
	}

	body, err := json.Marshal(map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": generationConfig,
	})
	if err != nil {
		return "", fmt.Errorf("marshal gemini payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("gemini error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini response has no candidates")
	}

	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
