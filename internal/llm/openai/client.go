package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ragtools/ragproxy/internal/llm"
)

// DefaultBaseURL is used when no endpoint is configured.
const DefaultBaseURL = "https://api.openai.com"

// maxBodyExcerpt bounds how much of an unexpected response body is carried
// in error messages.
const maxBodyExcerpt = 512

var _ llm.Client = (*Client)(nil)

// Client performs requests towards an OpenAI-compatible chat completions API.
type Client struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

type Options struct {
	// HTTPClient overrides the transport, e.g. to set a timeout.
	HTTPClient *http.Client
}

// NewClient returns a new Client for the specified endpoint, using the
// specified API key.
func NewClient(baseURL string, apiKey string, options *Options) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := &http.Client{}
	if options != nil && options.HTTPClient != nil {
		httpClient = options.HTTPClient
	}

	return &Client{
		client:  httpClient,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// completionRequest defines a request using the chat completions API.
type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

// completionResponse defines the response for a completionRequest.
type completionResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int    `json:"created"`
	Model   string `json:"model"`
	// Choices holds possible choices for completions.
	// Typically only one choice is provided.
	Choices []completionChoice `json:"choices"`
	Usage   *llm.Usage         `json:"usage"`
}

// completionChoice defines one possible completion choice.
type completionChoice struct {
	Index        int         `json:"index"`
	Message      llm.Message `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// Chat implements llm.Client.
func (c *Client) Chat(ctx context.Context, r *llm.ChatRequest) (*llm.ChatResponse, error) {
	body, err := json.Marshal(&completionRequest{
		Model:       r.Model,
		Messages:    r.Messages,
		Temperature: r.Temperature,
		Stream:      false,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("got unexpected status: %s: %s", res.Status, excerpt(raw))
	}

	var response completionResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, fmt.Errorf("got malformed response (status %s): %s", res.Status, excerpt(raw))
	}

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("got response without choices (status %s): %s", res.Status, excerpt(raw))
	}

	message := response.Choices[0].Message
	if message.Role == "" {
		message.Role = llm.RoleAssistant
	}

	return &llm.ChatResponse{
		Message: message,
		Usage:   response.Usage,
	}, nil
}

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxBodyExcerpt {
		s = s[:maxBodyExcerpt] + "…"
	}
	return s
}
