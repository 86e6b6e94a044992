package ollama

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
	"github.com/ragtools/ragproxy/internal/llm"
)

var _ llm.Client = (*Client)(nil)

type Client struct {
	client    *ollama.Client
	keepAlive time.Duration
}

type Options struct {
	KeepAlive time.Duration
	// HTTPClient overrides the transport, e.g. to set a timeout.
	HTTPClient *http.Client
}

func NewClient(base *url.URL, options *Options) *Client {
	keepAlive := time.Duration(0)
	httpClient := &http.Client{}
	if options != nil {
		keepAlive = options.KeepAlive
		if options.HTTPClient != nil {
			httpClient = options.HTTPClient
		}
	}

	return &Client{
		client:    ollama.NewClient(base, httpClient),
		keepAlive: keepAlive,
	}
}

// Chat implements llm.Client.
func (c *Client) Chat(ctx context.Context, r *llm.ChatRequest) (*llm.ChatResponse, error) {
	messages := make([]ollama.Message, len(r.Messages))
	for i, m := range r.Messages {
		messages[i] = ollama.Message{
			Role:    string(m.Role),
			Content: m.Content,
		}
	}

	stream := false
	keepAlive := ollama.Duration{Duration: 0}
	if c.keepAlive > 0 {
		keepAlive = ollama.Duration{Duration: c.keepAlive}
	}

	req := &ollama.ChatRequest{
		Model:     r.Model,
		Messages:  messages,
		Stream:    &stream,
		KeepAlive: &keepAlive,
		Options: map[string]any{
			"temperature": r.Temperature,
		},
	}

	responses := make([]ollama.ChatResponse, 0)
	err := c.client.Chat(ctx, req, func(res ollama.ChatResponse) error {
		responses = append(responses, res)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var builder strings.Builder
	for _, res := range responses {
		builder.WriteString(res.Message.Content)
	}

	// The daemon reports eval counters on the final response. Usage is
	// omitted entirely when no counters were reported.
	var usage *llm.Usage
	if len(responses) > 0 {
		last := responses[len(responses)-1]
		if last.PromptEvalCount > 0 || last.EvalCount > 0 {
			usage = &llm.Usage{
				PromptTokens:     last.PromptEvalCount,
				CompletionTokens: last.EvalCount,
				TotalTokens:      last.PromptEvalCount + last.EvalCount,
			}
		}
	}

	return &llm.ChatResponse{
		Message: llm.Message{

			// Assume assistant role
			Role:    llm.RoleAssistant,
			Content: builder.String(),
		},
		Usage: usage,
	}, nil
}
