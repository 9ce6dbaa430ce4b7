package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skorokithakis/support-email-bot/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(model.AIConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "test-model",
	})
}

func TestCompleteReturnsMessageContent(t *testing.T) {
	var gotAuth string
	var gotPath string
	var gotReq apiRequest

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotReq)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "Here is your answer."}},
			},
		})
	})

	text, err := c.Complete(context.Background(), "customer question")
	require.NoError(t, err)
	assert.Equal(t, "Here is your answer.", text)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "test-model", gotReq.Model)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "customer question", gotReq.Messages[1].Content)
}

func TestCompleteAPIErrorIsCompletionError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "rate limited", "type": "rate_limit"},
		})
	})

	_, err := c.Complete(context.Background(), "question")
	require.Error(t, err)
	assert.True(t, IsCompletionError(err))
	assert.Contains(t, err.Error(), "rate limited")
}

func TestCompleteUnreachableServerIsCompletionError(t *testing.T) {
	c := New(model.AIConfig{
		APIKey:  "test-key",
		BaseURL: "http://127.0.0.1:1", // nothing listens here
		Model:   "test-model",
	})

	_, err := c.Complete(context.Background(), "question")
	require.Error(t, err)
	assert.True(t, IsCompletionError(err))
}

func TestCompleteNoChoicesIsCompletionError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	_, err := c.Complete(context.Background(), "question")
	require.Error(t, err)
	assert.True(t, IsCompletionError(err))
}

func TestVerify(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models/test-model" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	require.NoError(t, c.Verify(context.Background()))
}

func TestVerifyUnknownModel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	err := c.Verify(context.Background())
	require.Error(t, err)
	assert.True(t, IsCompletionError(err))
}
