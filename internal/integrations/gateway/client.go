// Package gateway is the client side of the hosted medical chat gateway.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"health-assistant/internal/domain"
)

const (
	ChatPath  = "/functions/v1/medical-chat"
	ReplyPath = "/api/chat/reply"

	defaultErrorMessage = "Failed to get response"
)

// Error is a non-2xx gateway answer. Message is the gateway's "error" field
// verbatim, or a generic text when the body carried none.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) HTTPStatusCode() int {
	return e.StatusCode
}

type replyResponse struct {
	Reply string `json:"reply"`
}

type Client struct {
	http         *resty.Client
	baseURL      string
	clientKey    string
	replyTimeout time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = resty.NewWithClient(hc)
		}
	}
}

// WithReplyTimeout bounds Reply calls. Streams are never cut by a timeout.
func WithReplyTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.replyTimeout = d
	}
}

func NewClient(baseURL, clientKey string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("gateway: base url must not be empty")
	}
	clientKey = strings.TrimSpace(clientKey)
	if clientKey == "" {
		return nil, errors.New("gateway: client key must not be empty")
	}
	c := &Client{http: resty.New(), baseURL: baseURL, clientKey: clientKey}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) request(ctx context.Context, msgs []domain.Message, lang domain.Language) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetAuthToken(c.clientKey).
		SetHeader("apikey", c.clientKey).
		SetHeader("Content-Type", "application/json").
		SetBody(domain.ChatRequest{Messages: domain.ToChatMessages(msgs), Language: lang})
}

// Stream posts the transcript and returns the raw text/event-stream body.
// The caller must close it.
func (c *Client) Stream(ctx context.Context, msgs []domain.Message, lang domain.Language) (io.ReadCloser, error) {
	resp, err := c.request(ctx, msgs, lang).
		SetHeader("Accept", "text/event-stream").
		SetDoNotParseResponse(true).
		Post(c.baseURL + ChatPath)
	if err != nil {
		return nil, fmt.Errorf("gateway: stream: %w", err)
	}
	body := resp.RawBody()
	if body == nil {
		return nil, &Error{StatusCode: resp.StatusCode(), Message: defaultErrorMessage}
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		defer func() { _ = body.Close() }()
		raw, _ := io.ReadAll(io.LimitReader(body, 64<<10))
		return nil, decodeError(resp.StatusCode(), raw)
	}
	return body, nil
}

// Reply asks for a single, complete answer.
func (c *Client) Reply(ctx context.Context, msgs []domain.Message, lang domain.Language) (string, error) {
	if c.replyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.replyTimeout)
		defer cancel()
	}
	resp, err := c.request(ctx, msgs, lang).Post(c.baseURL + ReplyPath)
	if err != nil {
		return "", fmt.Errorf("gateway: reply: %w", err)
	}
	if resp.IsError() {
		return "", decodeError(resp.StatusCode(), resp.Body())
	}
	var out replyResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("gateway: decode reply: %w", err)
	}
	return out.Reply, nil
}

// decodeError reads a JSON error body best-effort.
func decodeError(status int, raw []byte) *Error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(raw, &body)
	msg := strings.TrimSpace(body.Error)
	if msg == "" {
		msg = defaultErrorMessage
	}
	return &Error{StatusCode: status, Message: msg}
}
