package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server, model string, opts ...Option) *Client {
	t.Helper()

	c, err := NewClient(context.Background(), "secret", model, append([]Option{WithBaseURL(srv.URL)}, opts...)...)
	require.NoError(t, err)
	return c
}

func TestClient_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("sends the prompt and joins the candidate parts", func(t *testing.T) {
		srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
			assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))

			var body struct {
				Contents []struct {
					Parts []struct {
						Text string `json:"text"`
					} `json:"parts"`
				} `json:"contents"`
			}
			if assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) &&
				assert.Len(t, body.Contents, 1) &&
				assert.Len(t, body.Contents[0].Parts, 1) {
				assert.Equal(t, "write a handler", body.Contents[0].Parts[0].Text)
			}

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"export "},{"text":"function handle() {}"}]},"finishReason":"STOP"}]}`))
		})

		code, err := newTestClient(t, srv, "gemini-test").Generate(ctx, "write a handler")

		require.NoError(t, err)
		assert.Equal(t, "export function handle() {}", code)
	})

	t.Run("empty model uses the default", func(t *testing.T) {
		srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1beta/models/"+DefaultModel+":generateContent", r.URL.Path)
			_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
		})

		code, err := newTestClient(t, srv, "").Generate(ctx, "prompt")

		require.NoError(t, err)
		assert.Equal(t, "ok", code)
	})

	t.Run("api errors carry status and message", func(t *testing.T) {
		srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`))
		})

		_, err := newTestClient(t, srv, "").Generate(ctx, "prompt")

		var apiErr genai.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusTooManyRequests, apiErr.Code)
		assert.Equal(t, "RESOURCE_EXHAUSTED", apiErr.Status)
		assert.Equal(t, "Resource has been exhausted", apiErr.Message)
	})

	t.Run("blocked prompt", func(t *testing.T) {
		srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
		})

		_, err := newTestClient(t, srv, "").Generate(ctx, "prompt")

		assert.ErrorIs(t, err, ErrEmptyResponse)
		assert.Contains(t, err.Error(), "SAFETY")
	})

	t.Run("candidate without text", func(t *testing.T) {
		srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[]},"finishReason":"MAX_TOKENS"}]}`))
		})

		_, err := newTestClient(t, srv, "").Generate(ctx, "prompt")

		assert.ErrorIs(t, err, ErrEmptyResponse)
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		})
		defer close(release)

		_, err := newTestClient(t, srv, "", WithTimeout(50*time.Millisecond)).Generate(ctx, "prompt")

		require.Error(t, err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})

	t.Run("cancelled context", func(t *testing.T) {
		srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		})

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := newTestClient(t, srv, "").Generate(cctx, "prompt")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
