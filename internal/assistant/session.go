// Package assistant drives one user's conversation: transcript, history,
// attachments and the streamed reply.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"health-assistant/internal/attachments"
	"health-assistant/internal/domain"
	"health-assistant/internal/logging"
	"health-assistant/internal/repository"
	"health-assistant/internal/stream"
)

var (
	ErrBusy         = errors.New("a message is already being sent")
	ErrEmptyMessage = errors.New("type a message or attach an image")
)

// Gateway streams an assistant reply for a transcript.
type Gateway interface {
	Stream(ctx context.Context, msgs []domain.Message, lang domain.Language) (io.ReadCloser, error)
}

type Uploader interface {
	Upload(ctx context.Context, userID string, img attachments.Image) (attachments.Upload, error)
}

// SendInput is one user turn. Image is optional.
type SendInput struct {
	Text  string
	Image *attachments.Image
}

type Session struct {
	gateway  Gateway
	uploader Uploader
	history  repository.Store
	userID   string
	now      func() time.Time

	busy atomic.Bool

	mu       sync.Mutex
	lang     domain.Language
	messages []domain.Message
}

type Option func(*Session)

// WithGateway enables live replies. Without it the session runs in local mode.
func WithGateway(g Gateway) Option {
	return func(s *Session) { s.gateway = g }
}

func WithUploader(u Uploader) Option {
	return func(s *Session) { s.uploader = u }
}

func WithHistory(store repository.Store) Option {
	return func(s *Session) { s.history = store }
}

// WithUser sets the signed-in user. Anonymous sessions are not persisted.
func WithUser(userID string) Option {
	return func(s *Session) { s.userID = strings.TrimSpace(userID) }
}

func WithLanguage(lang domain.Language) Option {
	return func(s *Session) { s.lang = lang }
}

func NewSession(opts ...Option) *Session {
	s := &Session{lang: domain.LanguageEnglish, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.uploader == nil {
		s.uploader = attachments.NewPipeline(nil)
	}
	if s.history == nil || s.userID == "" {
		s.history = nil
	}
	s.messages = []domain.Message{s.greeting()}
	return s
}

func (s *Session) LocalMode() bool {
	return s.gateway == nil
}

func (s *Session) Persistent() bool {
	return s.history != nil
}

func (s *Session) Busy() bool {
	return s.busy.Load()
}

func (s *Session) Language() domain.Language {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lang
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) greeting() domain.Message {
	return domain.Message{Role: domain.RoleAssistant, Content: s.lang.Info().Greeting}
}

// Load replaces the transcript with the stored history for the current
// language, or the greeting when there is none. On a read failure the
// greeting is shown and the error returned.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	lang := s.lang
	s.mu.Unlock()

	var (
		msgs []domain.Message
		err  error
	)
	if s.history != nil {
		msgs, err = s.history.List(ctx, s.userID, lang)
		if err != nil {
			logging.Ctx(ctx).Error().Err(err).Str(logging.FieldLanguage, string(lang)).Msg("failed to load chat history")
			err = fmt.Errorf("assistant: load history: %w", err)
			msgs = nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lang != lang {
		// Language changed while loading; that switch reloads.
		return err
	}
	if len(msgs) == 0 {
		s.messages = []domain.Message{s.greeting()}
	} else {
		s.messages = msgs
	}
	return err
}

// SetLanguage switches the conversation language and reloads its transcript.
func (s *Session) SetLanguage(ctx context.Context, lang domain.Language) error {
	if s.Busy() {
		return ErrBusy
	}
	s.mu.Lock()
	s.lang = lang
	s.mu.Unlock()
	return s.Load(ctx)
}

// Send runs one user turn. onUpdate receives the accumulated reply as it
// streams and may be nil. On a failure after partial content the partial
// reply stays in the transcript and the error is returned.
func (s *Session) Send(ctx context.Context, in SendInput, onUpdate func(content string)) (string, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" && in.Image == nil {
		return "", ErrEmptyMessage
	}
	if !s.busy.CompareAndSwap(false, true) {
		return "", ErrBusy
	}
	defer s.busy.Store(false)

	logger := logging.Ctx(ctx)
	lang := s.Language()

	user := domain.Message{Role: domain.RoleUser, Content: text, CreatedAt: s.now()}
	if in.Image != nil {
		up, err := s.uploader.Upload(ctx, s.userID, *in.Image)
		if err != nil {
			logger.Warn().Err(err).Msg("image upload failed, message not sent")
			return "", err
		}
		user.ImageURL = up.URL
		if user.Content == "" {
			user.Content = domain.DefaultImagePrompt
		}
	}

	transcript := s.appendMessage(user)
	s.persist(ctx, lang, user)

	if s.gateway == nil {
		reply := lang.Info().LocalNotice
		if user.ImageURL != "" {
			reply = domain.LocalImageNotice
		}
		s.finishReply(ctx, lang, reply)
		if onUpdate != nil {
			onUpdate(reply)
		}
		return reply, nil
	}

	body, err := s.gateway.Stream(ctx, transcript, lang)
	if err != nil {
		logger.Error().Err(err).Msg("chat request failed")
		return "", err
	}
	defer func() { _ = body.Close() }()

	placeholder := len(s.appendMessage(domain.Message{Role: domain.RoleAssistant})) - 1

	content, err := stream.Consume(ctx, body, func(content string) {
		s.setContent(placeholder, content)
		if onUpdate != nil {
			onUpdate(content)
		}
	})
	if err != nil {
		logger.Error().Err(err).Int("partial_bytes", len(content)).Msg("chat stream failed")
		if content == "" {
			s.removeMessage(placeholder)
		}
		return content, err
	}
	if content == "" {
		s.removeMessage(placeholder)
		return "", nil
	}

	s.setContent(placeholder, content)
	s.persist(ctx, lang, domain.Message{Role: domain.RoleAssistant, Content: content, CreatedAt: s.now()})
	return content, nil
}

func (s *Session) finishReply(ctx context.Context, lang domain.Language, reply string) {
	msg := domain.Message{Role: domain.RoleAssistant, Content: reply, CreatedAt: s.now()}
	s.appendMessage(msg)
	s.persist(ctx, lang, msg)
}

// appendMessage adds m and returns the resulting transcript.
func (s *Session) appendMessage(m domain.Message) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) setContent(i int, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < len(s.messages) {
		s.messages[i].Content = content
	}
}

func (s *Session) removeMessage(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < len(s.messages) {
		s.messages = append(s.messages[:i], s.messages[i+1:]...)
	}
}

// persist saves m for signed-in users. Failures are logged; the
// conversation carries on.
func (s *Session) persist(ctx context.Context, lang domain.Language, m domain.Message) {
	if s.history == nil {
		return
	}
	if err := s.history.Append(ctx, s.userID, lang, m); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("role", string(m.Role)).Msg("failed to save chat message")
	}
}
