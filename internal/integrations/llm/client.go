// Package llm talks to an OpenAI-compatible chat completions endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"health-assistant/internal/domain"
)

const (
	DefaultBaseURL = "https://ai.gateway.lovable.dev/v1"
	DefaultModel   = "google/gemini-3-flash-preview"

	keyLookupTimeout = 10 * time.Second
)

type chatRequest struct {
	Model    string               `json:"model"`
	Messages []domain.ChatMessage `json:"messages"`
	Stream   bool                 `json:"stream,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("llm: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client is a focused client for chat completions, streamed or not.
type Client struct {
	baseURL    string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	keys       KeySource

	keyMu  sync.Mutex
	apiKey string
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if m := strings.TrimSpace(model); m != "" {
			c.model = m
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout bounds non-streaming calls. Streams are bounded by the caller's
// context only.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// NewClient creates a Client whose API key is resolved from keys on first use
// and reused for the lifetime of the process. A failed lookup is retried on
// the next call.
func NewClient(keys KeySource, opts ...Option) (*Client, error) {
	if keys == nil {
		return nil, errors.New("llm: key source must not be nil")
	}
	c := &Client{
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		httpClient: &http.Client{},
		keys:       keys,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Model() string {
	return c.model
}

// resolveAPIKey caches only a successful lookup. The lookup outlives the
// caller's cancellation so one aborted request cannot fail it for others.
func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()
	if c.apiKey != "" {
		return c.apiKey, nil
	}

	lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), keyLookupTimeout)
	defer cancel()
	key, err := c.keys.APIKey(lookupCtx)
	if err != nil {
		return "", err
	}
	c.apiKey = key
	return key, nil
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return http.DefaultClient
}

func chatURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/chat/completions"
	}
	return base + "/v1/chat/completions"
}

func (c *Client) newChatRequest(ctx context.Context, messages []domain.ChatMessage, stream bool) (*http.Request, string, error) {
	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return nil, "", err
	}

	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages, Stream: stream})
	if err != nil {
		return nil, "", fmt.Errorf("llm: marshal request: %w", err)
	}

	url := chatURL(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("llm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	return req, url, nil
}

// Complete returns the first choice of a single, non-streamed completion.
func (c *Client) Complete(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, url, err := c.newChatRequest(ctx, messages, false)
	if err != nil {
		return "", err
	}
	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return "", fmt.Errorf("llm: request failed: %w", err)
	}

	var payload chatResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}
	if len(payload.Choices) == 0 {
		return "", errors.New("llm: no choices in response")
	}
	return payload.Choices[0].Message.Content, nil
}

// Stream opens a streamed completion and returns the raw text/event-stream
// body. The caller must close it.
func (c *Client) Stream(ctx context.Context, messages []domain.ChatMessage) (io.ReadCloser, error) {
	req, url, err := c.newChatRequest(ctx, messages, true)
	if err != nil {
		return nil, err
	}
	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm: request failed: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		defer func() { _ = res.Body.Close() }()
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, fmt.Errorf("llm: request failed: %w", &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		})
	}
	return res.Body, nil
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
