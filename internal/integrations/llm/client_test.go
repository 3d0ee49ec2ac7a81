package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"health-assistant/internal/domain"
)

// ---------------------------------------------------------------------------
// chatURL helper
// ---------------------------------------------------------------------------

func TestChatURL(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"https://ai.gateway.lovable.dev/v1", "https://ai.gateway.lovable.dev/v1/chat/completions"},
		{"https://api.openai.com/v1/", "https://api.openai.com/v1/chat/completions"},
		{"http://localhost:8080", "http://localhost:8080/v1/chat/completions"},
		{"", "https://ai.gateway.lovable.dev/v1/chat/completions"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, chatURL(tc.base), "base=%q", tc.base)
	}
}

// ---------------------------------------------------------------------------
// NewClient and key resolution
// ---------------------------------------------------------------------------

type fakeGetter struct {
	val   string
	err   error
	calls int
	asked string
}

func (f *fakeGetter) GetParameter(_ context.Context, name string) (string, error) {
	f.calls++
	f.asked = name
	return f.val, f.err
}

func TestNewClient_NilKeySource(t *testing.T) {
	_, err := NewClient(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "nil")
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(StaticKey("k"))
	require.NoError(t, err)
	require.Equal(t, DefaultBaseURL, c.baseURL)
	require.Equal(t, DefaultModel, c.Model())

	c, err = NewClient(StaticKey("k"), WithModel("  "), WithModel("other/model"))
	require.NoError(t, err)
	require.Equal(t, "other/model", c.Model())
}

func TestResolveAPIKey_FetchedOnce(t *testing.T) {
	g := &fakeGetter{val: `{"token":"sk-from-ssm"}`}
	c, err := NewClient(ParamKey{Getter: g, Name: "/medassist/llm-token"})
	require.NoError(t, err)

	key, err := c.resolveAPIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sk-from-ssm", key)
	require.Equal(t, "/medassist/llm-token", g.asked)

	_, _ = c.resolveAPIKey(context.Background())
	_, _ = c.resolveAPIKey(context.Background())
	require.Equal(t, 1, g.calls, "a resolved key is reused for the process lifetime")
}

type flakyGetter struct {
	failures int
	calls    int
}

func (f *flakyGetter) GetParameter(ctx context.Context, _ string) (string, error) {
	f.calls++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.calls <= f.failures {
		return "", errors.New("ssm: throttled")
	}
	return `{"token":"sk-recovered"}`, nil
}

func TestClient_Complete_RetriesFailedKeyLookup(t *testing.T) {
	var auth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = append(auth, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`)
	}))
	defer srv.Close()

	g := &flakyGetter{failures: 1}
	c, err := NewClient(ParamKey{Getter: g, Name: "/p"}, WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), nil)
	require.ErrorContains(t, err, "ssm: throttled")

	out, err := c.Complete(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, "ok", out)

	_, err = c.Complete(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 2, g.calls)
	require.Equal(t, []string{"Bearer sk-recovered", "Bearer sk-recovered"}, auth)
}

func TestResolveAPIKey_IgnoresCallerCancellation(t *testing.T) {
	g := &flakyGetter{}
	c, err := NewClient(ParamKey{Getter: g, Name: "/p"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	key, err := c.resolveAPIKey(ctx)
	require.NoError(t, err)
	require.Equal(t, "sk-recovered", key)
}

func TestStaticKey_Empty(t *testing.T) {
	_, err := StaticKey(" ").APIKey(context.Background())
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.True(t, cfgErr.NotConfigured())
}

func TestParamKey(t *testing.T) {
	cases := []struct {
		name    string
		key     ParamKey
		want    string
		wantErr string
	}{
		{name: "json token", key: ParamKey{Getter: &fakeGetter{val: `{"token":"sk-json"}`}, Name: "/p"}, want: "sk-json"},
		{name: "missing field", key: ParamKey{Getter: &fakeGetter{val: `{"other":"x"}`}, Name: "/p"}, wantErr: "API token is empty"},
		{name: "malformed", key: ParamKey{Getter: &fakeGetter{val: `{"broken`}, Name: "/p"}, wantErr: "unmarshal"},
		{name: "getter error", key: ParamKey{Getter: &fakeGetter{err: errors.New("ssm unavailable")}, Name: "/p"}, wantErr: "ssm unavailable"},
		{name: "nil getter", key: ParamKey{Name: "/p"}, wantErr: "nil"},
		{name: "empty name", key: ParamKey{Getter: &fakeGetter{}, Name: " "}, wantErr: "empty"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.key.APIKey(context.Background())
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

// ---------------------------------------------------------------------------
// Client.Complete
// ---------------------------------------------------------------------------

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{
		WithBaseURL(srv.URL),
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
	}, opts...)
	c, err := NewClient(StaticKey("sk-test"), opts...)
	require.NoError(t, err)
	return c
}

func TestClient_Complete_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, DefaultModel, req.Model)
		require.False(t, req.Stream)
		require.Len(t, req.Messages, 1)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c-1","choices":[{"index":0,"message":{"role":"assistant","content":"Drink water."}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	out, err := c.Complete(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	require.Equal(t, "Drink water.", out)
}

func TestClient_Complete_Errors(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "bad request", status: 400, body: `{"error":"bad"}`, wantErr: "unexpected status 400"},
		{name: "rate limited", status: 429, body: `{"error":"slow down"}`, wantErr: "429"},
		{name: "payment", status: 402, body: `{}`, wantErr: "402"},
		{name: "invalid json", status: 200, body: `not-json`, wantErr: "decode response"},
		{name: "no choices", status: 200, body: `{"choices":[]}`, wantErr: "no choices"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv).Complete(context.Background(), nil)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestClient_Complete_StatusIsDiscoverable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Complete(context.Background(), nil)
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusTooManyRequests, statusErr.HTTPStatusCode())
}

func TestClient_Complete_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithTimeout(50*time.Millisecond))
	_, err := c.Complete(context.Background(), nil)
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_Complete_NetworkError(t *testing.T) {
	c, err := NewClient(StaticKey("sk"), WithBaseURL("http://127.0.0.1:1"))
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "request failed")
}

func TestClient_Complete_KeyError(t *testing.T) {
	c, err := NewClient(ParamKey{Getter: &fakeGetter{err: errors.New("denied")}, Name: "/p"})
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), nil)
	require.ErrorContains(t, err, "denied")
}

// ---------------------------------------------------------------------------
// Client.Stream
// ---------------------------------------------------------------------------

func TestClient_Stream_ReturnsBody(t *testing.T) {
	const feed = "data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\ndata: [DONE]\n\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.True(t, req.Stream)
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(feed))
	}))
	defer srv.Close()

	body, err := newTestClient(t, srv).Stream(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	defer body.Close()
	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	require.Equal(t, feed, string(raw))
}

func TestClient_Stream_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":"no credits"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Stream(context.Background(), nil)
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusPaymentRequired, statusErr.StatusCode)
	require.Contains(t, statusErr.Body, "no credits")
}
