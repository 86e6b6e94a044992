package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ragtools/ragproxy/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChat(t *testing.T) {
	var received completionRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": "3"}},
			},
			"usage": map[string]any{
				"prompt_tokens":     12,
				"completion_tokens": 1,
				"total_tokens":      13,
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", nil)

	res, err := client.Chat(context.Background(), &llm.ChatRequest{
		Model: "m",
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "Add the numbers provided by the user."},
			{Role: llm.RoleUser, Content: "1 2"},
		},
		Temperature: 0.2,
	})
	require.NoError(t, err)

	assert.Equal(t, "m", received.Model)
	assert.False(t, received.Stream)
	assert.InDelta(t, 0.2, received.Temperature, 1e-9)

	assert.Equal(t, llm.RoleAssistant, res.Message.Role)
	assert.Equal(t, "3", res.Message.Content)
	require.NotNil(t, res.Usage)
	assert.Equal(t, 13, res.Usage.TotalTokens)
}

func TestChatOmitsUsageWhenAbsent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "hello"}},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", nil)

	res, err := client.Chat(context.Background(), &llm.ChatRequest{
		Model:    "m",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Nil(t, res.Usage)
}

func TestChatUnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", nil)

	_, err := client.Chat(context.Background(), &llm.ChatRequest{
		Model:    "m",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestChatMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>oops</html>"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", nil)

	_, err := client.Chat(context.Background(), &llm.ChatRequest{
		Model:    "m",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "200 OK")
	assert.Contains(t, err.Error(), "<html>oops</html>")
}

func TestChatNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", nil)

	_, err := client.Chat(context.Background(), &llm.ChatRequest{
		Model:    "m",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without choices")
}
