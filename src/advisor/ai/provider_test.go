package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaudeComplete(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"text": "hello from claude"}},
		})
	}))
	defer srv.Close()

	client := NewClient(FactoryConfig{
		Provider:     "claude",
		APIKey:       "test-key",
		Endpoint:     srv.URL,
		Model:        "test-model",
		SystemPrompt: "persona",
	})
	out, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "hello from claude", out)
	assert.Equal(t, "test-model", gotBody["model"])
	assert.Equal(t, "persona", gotBody["system"])
}

func TestClaudeCompleteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate_limit_error"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(FactoryConfig{Provider: "claude", Endpoint: srv.URL})
	_, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, Options{})
	require.Error(t, err)
	assert.True(t, IsRateLimit(err))
}

func TestOpenAIComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "hello from openai"}},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(FactoryConfig{Provider: "openai", APIKey: "test-key", Endpoint: srv.URL})
	out, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "hello from openai", out)
}

func TestIsRateLimit(t *testing.T) {
	assert.False(t, IsRateLimit(nil))
	assert.False(t, IsRateLimit(errors.New("boom")))
	assert.True(t, IsRateLimit(errors.New("status 429")))
	assert.True(t, IsRateLimit(errors.New("rate_limit_error")))
}
