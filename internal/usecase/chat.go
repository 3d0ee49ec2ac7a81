package usecase

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"health-assistant/internal/domain"
	"health-assistant/internal/logging"
)

const defaultMaxMessages = 100

// LLMClient is the upstream chat-completions endpoint.
type LLMClient interface {
	Complete(ctx context.Context, messages []domain.ChatMessage) (string, error)
	Stream(ctx context.Context, messages []domain.ChatMessage) (io.ReadCloser, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type notConfigured interface {
	NotConfigured() bool
}

// ChatInput is one gateway call. An unknown or empty Language means English.
type ChatInput struct {
	Messages []domain.ChatMessage
	Language string
}

// ChatService relays a conversation to the upstream model with the medical
// system prompt prepended.
type ChatService struct {
	llm         LLMClient
	maxMessages int
}

type ChatOption func(*ChatService)

func WithMaxMessages(n int) ChatOption {
	return func(s *ChatService) {
		if n > 0 {
			s.maxMessages = n
		}
	}
}

func NewChatService(llm LLMClient, opts ...ChatOption) (*ChatService, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	s := &ChatService{llm: llm, maxMessages: defaultMaxMessages}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// OpenStream returns the upstream event stream. The caller must close it.
func (s *ChatService) OpenStream(ctx context.Context, in ChatInput) (io.ReadCloser, error) {
	prompt, lang, err := s.prepare(in)
	if err != nil {
		return nil, err
	}
	body, err := s.llm.Stream(ctx, prompt)
	if err != nil {
		return nil, upstreamError(ctx, "stream", lang, err)
	}
	return body, nil
}

// Reply runs the same conversation without streaming.
func (s *ChatService) Reply(ctx context.Context, in ChatInput) (string, error) {
	prompt, lang, err := s.prepare(in)
	if err != nil {
		return "", err
	}
	answer, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		return "", upstreamError(ctx, "complete", lang, err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		logging.Ctx(ctx).Error().Str(logging.FieldLanguage, string(lang)).Msg("upstream returned an empty completion")
		return "", newError(ErrorUpstream, "empty_completion", nil)
	}
	return answer, nil
}

func (s *ChatService) prepare(in ChatInput) ([]domain.ChatMessage, domain.Language, error) {
	if len(in.Messages) == 0 {
		return nil, "", newError(ErrorInvalidInput, "no_messages", nil)
	}
	if len(in.Messages) > s.maxMessages {
		return nil, "", newError(ErrorInvalidInput, "too_many_messages", nil)
	}
	for _, m := range in.Messages {
		if m.Role != domain.RoleUser && m.Role != domain.RoleAssistant {
			return nil, "", newError(ErrorInvalidInput, "invalid_role", nil)
		}
		if reason := validateContent(m.Content); reason != "" {
			return nil, "", newError(ErrorInvalidInput, reason, nil)
		}
	}
	lang, _ := domain.ParseLanguage(in.Language)
	return buildPromptMessages(lang, in.Messages), lang, nil
}

// validateContent accepts plain text or a list of text and image parts,
// either typed or as decoded JSON.
func validateContent(content any) string {
	switch c := content.(type) {
	case nil:
		return "empty_content"
	case string:
		if strings.TrimSpace(c) == "" {
			return "empty_content"
		}
		return ""
	case []domain.ContentPart:
		if len(c) == 0 {
			return "empty_content"
		}
		for _, p := range c {
			url := ""
			if p.ImageURL != nil {
				url = p.ImageURL.URL
			}
			if !validPart(p.Type, p.Text, url) {
				return "invalid_content"
			}
		}
		return ""
	case []any:
		if len(c) == 0 {
			return "empty_content"
		}
		for _, raw := range c {
			part, ok := raw.(map[string]any)
			if !ok {
				return "invalid_content"
			}
			typ, _ := part["type"].(string)
			text, _ := part["text"].(string)
			url := ""
			if img, ok := part["image_url"].(map[string]any); ok {
				url, _ = img["url"].(string)
			}
			if !validPart(typ, text, url) {
				return "invalid_content"
			}
		}
		return ""
	default:
		return "invalid_content"
	}
}

func validPart(typ, text, url string) bool {
	switch typ {
	case domain.PartTypeText:
		return strings.TrimSpace(text) != ""
	case domain.PartTypeImageURL:
		return strings.TrimSpace(url) != ""
	default:
		return false
	}
}

func upstreamError(ctx context.Context, op string, lang domain.Language, err error) *Error {
	status, ok := upstreamStatusCode(err)
	logging.Ctx(ctx).Error().Err(err).
		Str("op", op).
		Int("upstream_status", status).
		Str(logging.FieldLanguage, string(lang)).
		Msg("AI gateway error")

	var cfgErr notConfigured
	switch {
	case errors.As(err, &cfgErr) && cfgErr.NotConfigured():
		return newError(ErrorInternal, reasonNotConfigured, err)
	case ok && status == http.StatusTooManyRequests:
		return newError(ErrorRateLimited, "upstream_rate_limited", err)
	case ok && status == http.StatusPaymentRequired:
		return newError(ErrorPaymentRequired, "upstream_credits_exhausted", err)
	case errors.Is(err, context.Canceled):
		return newError(ErrorInternal, "request_canceled", err)
	default:
		return newError(ErrorUpstream, "upstream_error", err)
	}
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
