package state

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// OllamaEndpoint is the base URL of the local model daemon.
	OllamaEndpoint string `yaml:"ollamaEndpoint" env:"OLLAMA_ENDPOINT"`
	// OpenAIBaseURL is the base URL of the OpenAI-compatible endpoint.
	OpenAIBaseURL string `yaml:"openAiBaseUrl" env:"OPENAI_BASE_URL"`
	OpenAIKey     string `yaml:"openAiApiKey,omitempty" env:"OPENAI_API_KEY"`
	// ToolServerEndpoint is the base URL of the retrieval / tool service.
	ToolServerEndpoint string `yaml:"toolServerEndpoint" env:"TOOLSERVER_ENDPOINT"`

	// ListenAddress is the address the HTTP server binds to.
	ListenAddress string `yaml:"listenAddress" env:"LISTEN_ADDRESS"`

	// RetrievalTimeout bounds each call to the tool service.
	RetrievalTimeout time.Duration `yaml:"retrievalTimeout"`
	// CompletionTimeout bounds each call to a model backend. Completions
	// are slow, keep this generous.
	CompletionTimeout time.Duration `yaml:"completionTimeout"`

	Prometheus *PrometheusConfig `yaml:"prometheus,omitempty"`

	RAGPrompt string `yaml:"-"`

	LogLevel slog.Level `yaml:"logLevel"`
}

type PrometheusConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns the default config.
func DefaultConfig() *Config {
	return &Config{
		OllamaEndpoint:     "http://localhost:11434",
		OpenAIBaseURL:      "https://api.openai.com",
		ToolServerEndpoint: "http://localhost:8000",

		ListenAddress: ":8080",

		RetrievalTimeout:  10 * time.Second,
		CompletionTimeout: 120 * time.Second,

		Prometheus: &PrometheusConfig{
			Enabled: true,
		},

		RAGPrompt: DefaultRAGPrompt,

		LogLevel: slog.LevelInfo,
	}
}

// PopulateFromEnvironment populates the config with values from environment
// variables.
func (c *Config) PopulateFromEnvironment() error {
	return env.Parse(c)
}

// CreateConfigIfNotExists makes sure that a config file exists. If it doesn't,
// it is created and populated with the default config.
func CreateConfigIfNotExists(path string) error {
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		return nil
	}

	config := DefaultConfig()
	return config.Store(path)
}

// ReadConfig reads a config file from the specified path.
func ReadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil {
		return nil, err
	}

	return config, err
}

// Store stores the config in the specified path.
// Writes are atomic.
func (c *Config) Store(path string) error {
	file, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			file.Close()
			os.Remove(file.Name())
		}
	}()

	encoder := yaml.NewEncoder(file)
	if err := encoder.Encode(&c); err != nil {
		return err
	}

	if err := file.Sync(); err != nil {
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(file.Name(), path)
}

// LoadOrInit loads the config from the specified path, creating it with
// defaults first if it doesn't exist. Environment variables take precedence
// over file contents.
func LoadOrInit(path string) (*Config, error) {
	if err := CreateConfigIfNotExists(path); err != nil {
		return nil, err
	}

	config, err := ReadConfig(path)
	if err != nil {
		return nil, err
	}

	if err := config.PopulateFromEnvironment(); err != nil {
		return nil, err
	}

	return config, nil
}
