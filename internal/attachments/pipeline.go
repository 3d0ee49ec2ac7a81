package attachments

import (
	"context"
	"strings"
	"time"

	"health-assistant/internal/logging"
)

// DefaultSignedURLTTL is how long an attachment link stays readable.
const DefaultSignedURLTTL = 365 * 24 * time.Hour

// ObjectStore is a private bucket. Put must not overwrite an existing key.
type ObjectStore interface {
	Put(ctx context.Context, key string, img Image) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Upload is a stored attachment. Key is empty in local mode.
type Upload struct {
	URL     string `json:"url"`
	Preview string `json:"preview"`
	Key     string `json:"key,omitempty"`
}

type Pipeline struct {
	store ObjectStore
	ttl   time.Duration
	now   func() time.Time
}

type PipelineOption func(*Pipeline)

func WithSignedURLTTL(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if d > 0 {
			p.ttl = d
		}
	}
}

func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPipeline builds a pipeline. A nil store means local mode: images are
// inlined as data URLs instead of uploaded.
func NewPipeline(store ObjectStore, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{store: store, ttl: DefaultSignedURLTTL, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) LocalMode() bool {
	return p.store == nil
}

// Upload checks identity and the image before any network call, then stores
// it and returns a long-lived signed link.
func (p *Pipeline) Upload(ctx context.Context, userID string, img Image) (Upload, error) {
	if strings.TrimSpace(userID) == "" {
		return Upload{}, ErrAuthRequired
	}
	if err := Validate(img); err != nil {
		return Upload{}, err
	}
	preview := Preview(img)
	logger := logging.Ctx(ctx)

	if p.store == nil {
		logger.Info().Msg("object storage not configured, using local image preview")
		return Upload{URL: DataURL(img), Preview: preview}, nil
	}

	key := ObjectKey(userID, img.Name, p.now())
	if err := p.store.Put(ctx, key, img); err != nil {
		logger.Error().Err(err).Str("key", key).Int("bytes", img.Size()).Msg("image upload failed")
		return Upload{}, classifyUpload(err)
	}
	url, err := p.store.SignedURL(ctx, key, p.ttl)
	if err != nil {
		logger.Error().Err(err).Str("key", key).Msg("signed url failed")
		return Upload{}, classifySign(err)
	}
	return Upload{URL: url, Preview: preview, Key: key}, nil
}
