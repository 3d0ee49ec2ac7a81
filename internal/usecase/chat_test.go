package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"health-assistant/internal/domain"
	"health-assistant/internal/integrations/llm"
)

type mockLLM struct {
	answer     string
	body       string
	err        error
	calls      int
	lastPrompt []domain.ChatMessage
}

func (m *mockLLM) Complete(_ context.Context, messages []domain.ChatMessage) (string, error) {
	m.calls++
	m.lastPrompt = messages
	return m.answer, m.err
}

func (m *mockLLM) Stream(_ context.Context, messages []domain.ChatMessage) (io.ReadCloser, error) {
	m.calls++
	m.lastPrompt = messages
	if m.err != nil {
		return nil, m.err
	}
	return io.NopCloser(strings.NewReader(m.body)), nil
}

func mustNewService(t *testing.T, m *mockLLM, opts ...ChatOption) *ChatService {
	t.Helper()
	s, err := NewChatService(m, opts...)
	require.NoError(t, err)
	return s
}

func userText(s string) domain.ChatMessage {
	return domain.ChatMessage{Role: domain.RoleUser, Content: s}
}

func requireCode(t *testing.T, err error, code ErrorCode, reason string) *Error {
	t.Helper()
	var ucErr *Error
	require.True(t, errors.As(err, &ucErr), "expected *usecase.Error, got %T", err)
	require.Equal(t, code, ucErr.Code)
	if reason != "" {
		require.Equal(t, reason, ucErr.Reason)
	}
	return ucErr
}

func TestNewChatService_NilClient(t *testing.T) {
	_, err := NewChatService(nil)
	require.Error(t, err)
}

func TestReply_PrependsSystemPromptWithLanguage(t *testing.T) {
	m := &mockLLM{answer: "  rest and fluids  "}
	s := mustNewService(t, m)

	history := []domain.ChatMessage{
		userText("I have a fever"),
		{Role: domain.RoleAssistant, Content: "How long?"},
		userText("Two days"),
	}
	answer, err := s.Reply(context.Background(), ChatInput{Messages: history, Language: "Tamil"})
	require.NoError(t, err)
	require.Equal(t, "rest and fluids", answer)

	require.Len(t, m.lastPrompt, 4)
	require.Equal(t, domain.RoleSystem, m.lastPrompt[0].Role)
	system := m.lastPrompt[0].Content.(string)
	require.Contains(t, system, "CRITICAL LANGUAGE INSTRUCTION: Respond ONLY in Tamil")
	require.Contains(t, system, "When to See a Doctor")
	require.Equal(t, history, m.lastPrompt[1:])
}

func TestReply_UnknownLanguageFallsBackToEnglish(t *testing.T) {
	m := &mockLLM{answer: "ok"}
	_, err := mustNewService(t, m).Reply(context.Background(), ChatInput{Messages: []domain.ChatMessage{userText("hi")}, Language: "klingon"})
	require.NoError(t, err)
	require.Contains(t, m.lastPrompt[0].Content.(string), "Respond ONLY in English")
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name   string
		msgs   []domain.ChatMessage
		reason string
	}{
		{"no messages", nil, "no_messages"},
		{"system role", []domain.ChatMessage{{Role: domain.RoleSystem, Content: "x"}}, "invalid_role"},
		{"blank text", []domain.ChatMessage{userText("   ")}, "empty_content"},
		{"nil content", []domain.ChatMessage{{Role: domain.RoleUser}}, "empty_content"},
		{"empty parts", []domain.ChatMessage{{Role: domain.RoleUser, Content: []domain.ContentPart{}}}, "empty_content"},
		{"image without url", []domain.ChatMessage{{Role: domain.RoleUser, Content: []domain.ContentPart{{Type: domain.PartTypeImageURL}}}}, "invalid_content"},
		{"unknown part", []domain.ChatMessage{{Role: domain.RoleUser, Content: []domain.ContentPart{{Type: "audio", Text: "x"}}}}, "invalid_content"},
		{"number content", []domain.ChatMessage{{Role: domain.RoleUser, Content: 42}}, "invalid_content"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := &mockLLM{answer: "x"}
			_, err := mustNewService(t, m).Reply(context.Background(), ChatInput{Messages: tc.msgs})
			requireCode(t, err, ErrorInvalidInput, tc.reason)
			require.Zero(t, m.calls)
		})
	}
}

func TestValidation_TooManyMessages(t *testing.T) {
	m := &mockLLM{answer: "x"}
	s := mustNewService(t, m, WithMaxMessages(2))
	msgs := []domain.ChatMessage{userText("a"), userText("b"), userText("c")}
	_, err := s.Reply(context.Background(), ChatInput{Messages: msgs})
	requireCode(t, err, ErrorInvalidInput, "too_many_messages")
}

func TestValidation_AcceptsImagePartsFromJSON(t *testing.T) {
	msg := domain.ToChatMessage(domain.Message{Role: domain.RoleUser, ImageURL: "https://img/1.png"})
	raw, err := json.Marshal(domain.ChatRequest{Messages: []domain.ChatMessage{msg}})
	require.NoError(t, err)

	var decoded domain.ChatRequest
	require.NoError(t, json.Unmarshal(raw, &decoded))

	m := &mockLLM{answer: "looks like eczema"}
	_, err = mustNewService(t, m).Reply(context.Background(), ChatInput{Messages: decoded.Messages})
	require.NoError(t, err)

	_, err = mustNewService(t, m).Reply(context.Background(), ChatInput{Messages: []domain.ChatMessage{msg}})
	require.NoError(t, err)
}

func TestValidation_RejectsMalformedJSONParts(t *testing.T) {
	var decoded domain.ChatRequest
	require.NoError(t, json.Unmarshal([]byte(`{"messages":[{"role":"user","content":[{"type":"image_url","image_url":{}}]}]}`), &decoded))
	_, err := mustNewService(t, &mockLLM{}).Reply(context.Background(), ChatInput{Messages: decoded.Messages})
	requireCode(t, err, ErrorInvalidInput, "invalid_content")

	var bare domain.ChatRequest
	require.NoError(t, json.Unmarshal([]byte(`{"messages":[{"role":"user","content":["text"]}]}`), &bare))
	_, err = mustNewService(t, &mockLLM{}).Reply(context.Background(), ChatInput{Messages: bare.Messages})
	requireCode(t, err, ErrorInvalidInput, "invalid_content")
}

func TestUpstreamStatusMapping(t *testing.T) {
	cases := []struct {
		status  int
		code    ErrorCode
		message string
	}{
		{http.StatusTooManyRequests, ErrorRateLimited, MessageRateLimited},
		{http.StatusPaymentRequired, ErrorPaymentRequired, MessagePaymentRequired},
		{http.StatusInternalServerError, ErrorUpstream, MessageUpstream},
		{http.StatusBadRequest, ErrorUpstream, MessageUpstream},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.status), func(t *testing.T) {
			upstream := fmt.Errorf("llm: request failed: %w", &llm.HTTPStatusError{StatusCode: tc.status, Body: "x"})
			s := mustNewService(t, &mockLLM{err: upstream})

			_, err := s.Reply(context.Background(), ChatInput{Messages: []domain.ChatMessage{userText("hi")}})
			ucErr := requireCode(t, err, tc.code, "")
			require.Equal(t, tc.message, ucErr.UserMessage())

			_, err = s.OpenStream(context.Background(), ChatInput{Messages: []domain.ChatMessage{userText("hi")}})
			requireCode(t, err, tc.code, "")
		})
	}
}

func TestUpstreamNetworkError(t *testing.T) {
	s := mustNewService(t, &mockLLM{err: errors.New("dial tcp: refused")})
	_, err := s.Reply(context.Background(), ChatInput{Messages: []domain.ChatMessage{userText("hi")}})
	requireCode(t, err, ErrorUpstream, "upstream_error")

	s = mustNewService(t, &mockLLM{err: context.Canceled})
	_, err = s.Reply(context.Background(), ChatInput{Messages: []domain.ChatMessage{userText("hi")}})
	requireCode(t, err, ErrorInternal, "request_canceled")
}

func TestUpstreamMissingKey(t *testing.T) {
	_, keyErr := llm.StaticKey("").APIKey(context.Background())
	s := mustNewService(t, &mockLLM{err: keyErr})

	_, err := s.Reply(context.Background(), ChatInput{Messages: []domain.ChatMessage{userText("hi")}})
	ucErr := requireCode(t, err, ErrorInternal, "llm_not_configured")
	require.Equal(t, MessageNotConfigured, ucErr.UserMessage())

	_, err = s.OpenStream(context.Background(), ChatInput{Messages: []domain.ChatMessage{userText("hi")}})
	requireCode(t, err, ErrorInternal, "llm_not_configured")

	s = mustNewService(t, &mockLLM{err: fmt.Errorf("llm: fetch token from paramstore: %w", errors.New("throttled"))})
	_, err = s.Reply(context.Background(), ChatInput{Messages: []domain.ChatMessage{userText("hi")}})
	requireCode(t, err, ErrorUpstream, "upstream_error")
}

func TestReply_EmptyCompletion(t *testing.T) {
	_, err := mustNewService(t, &mockLLM{answer: "  "}).Reply(context.Background(), ChatInput{Messages: []domain.ChatMessage{userText("hi")}})
	requireCode(t, err, ErrorUpstream, "empty_completion")
}

func TestOpenStream_ReturnsBody(t *testing.T) {
	m := &mockLLM{body: "data: [DONE]\n\n"}
	body, err := mustNewService(t, m).OpenStream(context.Background(), ChatInput{Messages: []domain.ChatMessage{userText("hi")}, Language: "hindi"})
	require.NoError(t, err)
	defer body.Close()

	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	require.Equal(t, "data: [DONE]\n\n", string(raw))
	require.Contains(t, m.lastPrompt[0].Content.(string), "Devanagari")
}

func TestErrorFormatting(t *testing.T) {
	var nilErr *Error
	require.Equal(t, "", nilErr.Error())
	require.Nil(t, nilErr.Unwrap())
	require.Equal(t, "", nilErr.UserMessage())

	e := newError(ErrorInvalidInput, "empty_content", nil)
	require.Equal(t, "usecase: INVALID_INPUT (empty_content)", e.Error())
	require.Equal(t, "Messages must not be empty.", e.UserMessage())
	require.Equal(t, "Invalid request.", newError(ErrorInvalidInput, "other", nil).UserMessage())

	inner := errors.New("boom")
	e = newError(ErrorInternal, "x", inner)
	require.ErrorIs(t, e, inner)
	require.Equal(t, MessageUpstream, e.UserMessage())
}
