package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/ragtools/ragproxy/internal/chat"
	"github.com/ragtools/ragproxy/internal/llm"
	"github.com/ragtools/ragproxy/internal/llm/ollama"
	"github.com/ragtools/ragproxy/internal/llm/openai"
	"github.com/ragtools/ragproxy/internal/retrieval"
	"github.com/ragtools/ragproxy/internal/server"
	"github.com/ragtools/ragproxy/internal/state"
	"github.com/ragtools/ragproxy/internal/sysmon"
)

func run(ctx context.Context, config *state.Config) error {
	ollamaBase, err := url.Parse(config.OllamaEndpoint)
	if err != nil {
		slog.Error("Invalid ollama endpoint", slog.Any("error", err))
		return err
	}

	completionClient := &http.Client{Timeout: config.CompletionTimeout}
	clients := map[llm.Provider]llm.Client{
		llm.ProviderLocal: ollama.NewClient(ollamaBase, &ollama.Options{
			HTTPClient: completionClient,
		}),
		llm.ProviderOpenAICompatible: openai.NewClient(config.OpenAIBaseURL, config.OpenAIKey, &openai.Options{
			HTTPClient: completionClient,
		}),
	}

	fetcher := retrieval.NewClient(config.ToolServerEndpoint, &retrieval.Options{
		HTTPClient: &http.Client{Timeout: config.RetrievalTimeout},
	})

	var registry *prometheus.Registry
	var metrics *state.Metrics
	if config.Prometheus != nil && config.Prometheus.Enabled {
		metrics = state.NewMetrics()
		registry = prometheus.NewRegistry()
		registry.MustRegister(metrics)
	}

	orchestrator := chat.NewOrchestrator(clients, fetcher, &chat.Options{
		RAGPrompt: config.RAGPrompt,
		Metrics:   metrics,
	})

	handler, err := server.NewHandler(orchestrator, &server.Options{
		Probe:              sysmon.EndpointProbe(config.OllamaEndpoint+"/api/version", 800*time.Millisecond),
		ToolServerEndpoint: config.ToolServerEndpoint,
		MetricsRegistry:    registry,
	})
	if err != nil {
		slog.Error("Failed to create handler", slog.Any("error", err))
		return err
	}

	httpServer := &http.Server{
		Addr:              config.ListenAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		slog.Info("Listening", slog.String("address", config.ListenAddress))
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errs
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func main() {
	// A .env file is optional, but convenient during development
	_ = godotenv.Load()

	configPath, ok := os.LookupEnv("RAGPROXY_CONFIG")
	if !ok {
		configPath = "config.yaml"
	}

	config, err := state.LoadOrInit(configPath)
	if err != nil {
		slog.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.LogLevel,
	})))

	// Exit on SIGINT or SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		abort := make(chan os.Signal, 1)
		signal.Notify(abort, syscall.SIGINT, syscall.SIGTERM)
		caught := 0
		for {
			<-abort
			caught++
			if caught == 1 {
				slog.Info("Caught signal, exiting gracefully")
				cancel()
			} else {
				slog.Info("Caught signal, exiting now")
				os.Exit(1)
			}
		}
	}()

	if err := run(ctx, config); err != nil {
		slog.Error("Program was unsuccessful", slog.Any("error", err))
		os.Exit(1)
	}
}
