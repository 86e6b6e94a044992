package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ragtools/ragproxy/internal/llm"
	"github.com/ragtools/ragproxy/internal/retrieval"
	"github.com/ragtools/ragproxy/internal/state"
)

var (
	ErrNoMessages      = errors.New("messages must not be empty")
	ErrUnknownProvider = errors.New("unknown provider")
)

const (
	// temperature is fixed low for factual, context-grounded answering.
	// Deliberately not zero - fully greedy decoding degrades phrasing.
	temperature = 0.2

	defaultTopK       = 5
	defaultCollection = "default"
)

// ContextFetcher fetches document context for a question. Implemented by
// retrieval.Client.
type ContextFetcher interface {
	FetchContext(ctx context.Context, question string, k int, collection string) retrieval.Result
}

// Request is one inbound chat turn, carrying the full conversation so far.
type Request struct {
	Messages      []llm.Message `json:"messages"`
	Provider      llm.Provider  `json:"provider"`
	Model         string        `json:"model"`
	RAG           bool          `json:"rag"`
	RAGCollection string        `json:"ragCollection,omitempty"`
	RAGK          int           `json:"ragK,omitempty"`
}

// Response is the shaped result of a successfully dispatched chat turn.
type Response struct {
	Message   llm.Message `json:"message"`
	Usage     *llm.Usage  `json:"usage,omitempty"`
	LatencyMs int64       `json:"latencyMs"`
}

// Orchestrator routes chat requests to the backend matching the requested
// provider, optionally injecting retrieved document context first. It holds
// no cross-request state.
type Orchestrator struct {
	clients   map[llm.Provider]llm.Client
	retrieval ContextFetcher
	metrics   *state.Metrics
	prompt    string
}

type Options struct {
	// RAGPrompt overrides the grounding instruction prepended together
	// with retrieved context.
	RAGPrompt string
	Metrics   *state.Metrics
}

// NewOrchestrator returns a new Orchestrator dispatching to the specified
// clients. Retrieval is optional - without a fetcher, rag requests behave
// as if retrieval found nothing.
func NewOrchestrator(clients map[llm.Provider]llm.Client, fetcher ContextFetcher, options *Options) *Orchestrator {
	prompt := state.DefaultRAGPrompt
	var metrics *state.Metrics
	if options != nil {
		if options.RAGPrompt != "" {
			prompt = options.RAGPrompt
		}
		metrics = options.Metrics
	}

	return &Orchestrator{
		clients:   clients,
		retrieval: fetcher,
		metrics:   metrics,
		prompt:    prompt,
	}
}

// Handle validates the request, optionally fetches context, dispatches to
// the selected backend and shapes the response. Retrieval failures degrade
// to an unmodified conversation, they never fail the request.
func (o *Orchestrator) Handle(ctx context.Context, r *Request) (*Response, error) {
	start := time.Now()

	if len(r.Messages) == 0 {
		return nil, ErrNoMessages
	}

	client, ok := o.clients[r.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, r.Provider)
	}

	if o.metrics != nil {
		o.metrics.ChatRequests.Inc()
	}

	messages := r.Messages
	if hits := o.fetchContext(ctx, r); len(hits) > 0 {
		messages = injectContext(o.prompt, hits, messages)
		if o.metrics != nil {
			o.metrics.ContextInjections.Inc()
		}
	}

	res, err := client.Chat(ctx, &llm.ChatRequest{
		Model:       r.Model,
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		if o.metrics != nil {
			o.metrics.ChatErrors.Inc()
		}
		return nil, err
	}

	elapsed := time.Since(start)
	if o.metrics != nil {
		o.metrics.RequestDuration.Observe(elapsed.Seconds())
	}

	return &Response{
		Message:   res.Message,
		Usage:     res.Usage,
		LatencyMs: elapsed.Milliseconds(),
	}, nil
}

// fetchContext performs the conditional retrieval step. Returns nil when
// rag is off, the active turn is blank, or retrieval degraded.
func (o *Orchestrator) fetchContext(ctx context.Context, r *Request) []retrieval.Hit {
	if !r.RAG || o.retrieval == nil {
		return nil
	}

	question := strings.TrimSpace(r.Messages[len(r.Messages)-1].Content)
	if question == "" {
		return nil
	}

	k := r.RAGK
	if k == 0 {
		k = defaultTopK
	}
	collection := r.RAGCollection
	if collection == "" {
		collection = defaultCollection
	}

	result := o.retrieval.FetchContext(ctx, question, k, collection)
	if result.Degraded() {
		slog.Warn("Retrieval degraded, continuing without context", slog.Any("error", result.Err))
		if o.metrics != nil {
			o.metrics.RetrievalDegradations.Inc()
		}
		return nil
	}

	return result.Hits
}

// injectContext prepends the grounding instruction and the concatenated hit
// texts as two system messages. The original messages are never mutated.
func injectContext(prompt string, hits []retrieval.Hit, messages []llm.Message) []llm.Message {
	var builder strings.Builder
	builder.WriteString("Context:\n")
	for i, hit := range hits {
		if i > 0 {
			builder.WriteString("\n\n")
		}
		fmt.Fprintf(&builder, "[%d] %s:\n%s", i+1, hit.Source(i+1), hit.Text)
	}

	injected := make([]llm.Message, 0, len(messages)+2)
	injected = append(injected,
		llm.Message{Role: llm.RoleSystem, Content: prompt},
		llm.Message{Role: llm.RoleSystem, Content: builder.String()},
	)
	return append(injected, messages...)
}
