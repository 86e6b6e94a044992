package state

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrInitCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	config, err := LoadOrInit(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:11434", config.OllamaEndpoint)
	assert.Equal(t, "https://api.openai.com", config.OpenAIBaseURL)
	assert.Equal(t, "http://localhost:8000", config.ToolServerEndpoint)
	assert.Equal(t, ":8080", config.ListenAddress)
	assert.Equal(t, 10*time.Second, config.RetrievalTimeout)
	assert.Equal(t, DefaultRAGPrompt, config.RAGPrompt)
	assert.Equal(t, slog.LevelInfo, config.LogLevel)
}

func TestLoadOrInitEnvironmentOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	t.Setenv("OLLAMA_ENDPOINT", "http://daemon:11434")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	config, err := LoadOrInit(path)
	require.NoError(t, err)

	assert.Equal(t, "http://daemon:11434", config.OllamaEndpoint)
	assert.Equal(t, "sk-test", config.OpenAIKey)
}

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	config := DefaultConfig()
	config.ListenAddress = ":9999"
	config.LogLevel = slog.LevelDebug
	require.NoError(t, config.Store(path))

	read, err := ReadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", read.ListenAddress)
	assert.Equal(t, slog.LevelDebug, read.LogLevel)
}
