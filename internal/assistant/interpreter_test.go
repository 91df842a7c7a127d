package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-slot-scheduling/internal/session"
)

func TestOpenAIInterpreterSendsHistory(t *testing.T) {
	var got openai.ChatCompletionRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Hola"},"finish_reason":"stop"}]}`))
	}))
	defer ts.Close()

	cfg := openai.DefaultConfig("sk-test")
	cfg.BaseURL = ts.URL + "/v1"
	in := NewOpenAIInterpreterWithConfig(cfg, "", "prompt de prueba")

	out, err := in.Interpret(context.Background(), []session.Message{
		{Role: "user", Content: "hola"},
		{Role: "tool", Content: "raro"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hola", out)

	assert.Equal(t, DefaultModel, got.Model)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Equal(t, "prompt de prueba", got.Messages[0].Content)
	assert.Equal(t, openai.ChatMessageRoleUser, got.Messages[2].Role)
}

func TestOpenAIInterpreterError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
	}))
	defer ts.Close()

	cfg := openai.DefaultConfig("sk-test")
	cfg.BaseURL = ts.URL + "/v1"
	in := NewOpenAIInterpreterWithConfig(cfg, "gpt-4o-mini", "")

	_, err := in.Interpret(context.Background(), []session.Message{{Role: "user", Content: "hola"}})
	require.Error(t, err)

	var apiErr *openai.APIError
	assert.ErrorAs(t, err, &apiErr)
}
