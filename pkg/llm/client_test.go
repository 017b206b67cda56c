package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"bents-assistant-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatSendsMessagesAndReturnsContent(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Use a sharp blade."},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	client := NewClient(config.LLMConfig{
		APIKey:     "secret",
		BaseURL:    srv.URL,
		Model:      "gpt-4o-mini",
		Generation: config.LLMGenerationConfig{Temperature: 0.2},
	})

	answer, err := client.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "rules"},
		{Role: RoleUser, Content: "How do I cut dados?"},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Use a sharp blade.", answer)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, RoleSystem, got.Messages[0].Role)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.2, *got.Temperature, 1e-9)
	assert.Nil(t, got.MaxTokens)
}

func TestChatExplicitParamsOverrideConfig(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"RELEVANT"}}]}`))
	}))
	defer srv.Close()

	client := NewClient(config.LLMConfig{BaseURL: srv.URL, Generation: config.LLMGenerationConfig{Temperature: 0.7}})
	zero := 0.0
	_, err := client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, &GenerationParams{Temperature: &zero})
	require.NoError(t, err)
	require.NotNil(t, got.Temperature)
	assert.Zero(t, *got.Temperature)
}

func TestChatEmptyChoicesIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	answer, err := NewClient(config.LLMConfig{BaseURL: srv.URL}).Chat(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, answer)
}

func TestChatLengthFinishReturnsPartialContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Start with a rip cut and then"},"finish_reason":"length"}]}`))
	}))
	defer srv.Close()

	answer, err := NewClient(config.LLMConfig{BaseURL: srv.URL}).Chat(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrLengthLimit)
	assert.Equal(t, "Start with a rip cut and then", answer)
}

func TestChatNon200IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(config.LLMConfig{BaseURL: srv.URL}).Chat(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
