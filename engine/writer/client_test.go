package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dnastudio/trendscout/engine/domain"
	"github.com/dnastudio/trendscout/engine/keys"
	"github.com/dnastudio/trendscout/pkg/fn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = fn.RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: time.Millisecond}

func newTestClient(t *testing.T, key string, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(keys.Static("gemini", key),
		WithBaseURL(srv.URL), WithHTTPClient(srv.Client()), WithRetry(fastRetry))
}

func geminiReply(w http.ResponseWriter, text string) {
	resp := map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{"parts": []any{map[string]any{"text": text}}},
		}},
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func TestGenerateJSON(t *testing.T) {
	c := newTestClient(t, "gk", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/"+DefaultModel+":generateContent", r.URL.Path)
		assert.Equal(t, "gk", r.Header.Get("x-goog-api-key"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "application/json", req.GenerationConfig.ResponseMimeType)
		require.NotNil(t, req.GenerationConfig.ResponseSchema)
		assert.Equal(t, "ARRAY", req.GenerationConfig.ResponseSchema.Type)
		assert.Equal(t, "hello", req.Contents[0].Parts[0].Text)

		geminiReply(w, `[{"title":"um"},{"title":"dois"}]`)
	})

	var out []titleItem
	require.NoError(t, c.GenerateJSON(context.Background(), "hello", titleListSchema, &out))
	assert.Equal(t, []titleItem{{"um"}, {"dois"}}, out)
}

func TestGenerateJSONRetriesTemporary(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, "gk", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"error":"overloaded"}`)
			return
		}
		geminiReply(w, `{"ok":true}`)
	})

	var out map[string]bool
	require.NoError(t, c.GenerateJSON(context.Background(), "p", nil, &out))
	assert.True(t, out["ok"])
	assert.Equal(t, int32(3), calls.Load())
}

func TestGenerateJSONNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, "gk", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"API key not valid"}`)
	})

	var out any
	err := c.GenerateJSON(context.Background(), "p", nil, &out)
	var ue *domain.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusBadRequest, ue.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerateJSONEmptyAndInvalid(t *testing.T) {
	c := newTestClient(t, "gk", func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Contents[0].Parts[0].Text == "blocked" {
			fmt.Fprint(w, `{"candidates":[],"promptFeedback":{"blockReason":"SAFETY"}}`)
			return
		}
		geminiReply(w, `not json`)
	})

	var out any
	err := c.GenerateJSON(context.Background(), "blocked", nil, &out)
	assert.ErrorIs(t, err, domain.ErrNoOutput)
	assert.Contains(t, err.Error(), "SAFETY")

	err = c.GenerateJSON(context.Background(), "bad", nil, &out)
	assert.ErrorIs(t, err, domain.ErrNoOutput)
}

func TestGenerateJSONMissingKey(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	var out any
	err := c.GenerateJSON(context.Background(), "p", nil, &out)
	assert.ErrorIs(t, err, domain.ErrNoAPIKey)
}

func TestValidateKey(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/models/"+DefaultModel, r.URL.Path)
		if r.Header.Get("x-goog-api-key") != "good" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, `{"name":"models/gemini-2.5-flash"}`)
	})

	require.NoError(t, c.ValidateKey(context.Background(), "good"))

	var ue *domain.UpstreamError
	require.ErrorAs(t, c.ValidateKey(context.Background(), "bad"), &ue)
	assert.Equal(t, http.StatusForbidden, ue.StatusCode)

	var ce *domain.ConfigError
	assert.True(t, errors.As(c.ValidateKey(context.Background(), " "), &ce))
}
