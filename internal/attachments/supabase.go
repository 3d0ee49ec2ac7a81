package attachments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

type tokenKey struct{}

// WithAccessToken attaches the signed-in user's token so storage calls run
// under that user's bucket policies.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func accessToken(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

type storageError struct {
	StatusCode string `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

type signResponse struct {
	SignedURL string `json:"signedURL"`
}

// SupabaseStore talks to the Supabase storage REST API.
type SupabaseStore struct {
	http    *resty.Client
	baseURL string
	apiKey  string
	bucket  string
}

func NewSupabaseStore(baseURL, apiKey, bucket string, hc *http.Client) (*SupabaseStore, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("attachments: supabase url must not be empty")
	}
	if apiKey == "" {
		return nil, errors.New("attachments: supabase api key must not be empty")
	}
	if bucket == "" {
		return nil, errors.New("attachments: bucket must not be empty")
	}
	client := resty.New()
	if hc != nil {
		client = resty.NewWithClient(hc)
	}
	return &SupabaseStore{http: client, baseURL: baseURL, apiKey: apiKey, bucket: bucket}, nil
}

func (s *SupabaseStore) request(ctx context.Context) *resty.Request {
	token := accessToken(ctx)
	if token == "" {
		token = s.apiKey
	}
	return s.http.R().
		SetContext(ctx).
		SetHeader("apikey", s.apiKey).
		SetAuthToken(token).
		SetError(&storageError{})
}

func (s *SupabaseStore) objectPath(prefix, key string) string {
	return fmt.Sprintf("%s/storage/v1/object/%s%s/%s", s.baseURL, prefix, url.PathEscape(s.bucket), escapeKey(key))
}

func (s *SupabaseStore) Put(ctx context.Context, key string, img Image) error {
	resp, err := s.request(ctx).
		SetHeader("Content-Type", img.ContentType).
		SetHeader("Cache-Control", "3600").
		SetHeader("x-upsert", "false").
		SetBody(img.Data).
		Post(s.objectPath("", key))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return responseError(resp)
	}
	return nil
}

func (s *SupabaseStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	var out signResponse
	resp, err := s.request(ctx).
		SetBody(map[string]int64{"expiresIn": int64(ttl / time.Second)}).
		SetResult(&out).
		Post(s.objectPath("sign/", key))
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", responseError(resp)
	}
	if out.SignedURL == "" {
		return "", errors.New("storage returned no signed url")
	}
	if strings.HasPrefix(out.SignedURL, "http://") || strings.HasPrefix(out.SignedURL, "https://") {
		return out.SignedURL, nil
	}
	return s.baseURL + "/storage/v1" + out.SignedURL, nil
}

func responseError(resp *resty.Response) error {
	if e, ok := resp.Error().(*storageError); ok && e != nil {
		msg := strings.TrimSpace(e.Error + " " + e.Message)
		if msg != "" {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode(), msg)
		}
	}
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode(), http.StatusText(resp.StatusCode()))
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
