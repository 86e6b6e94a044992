package llm

import "context"

type Client interface {
	Chat(context.Context, *ChatRequest) (*ChatResponse, error)
}

type ChatRequest struct {
	Model    string
	Messages []Message
	// Temperature controls randomness. Lowering results in less random
	// completions.
	Temperature float64
}

type ChatResponse struct {
	Message Message
	// Usage holds token accounting when the backend reports it.
	Usage *Usage
}

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// Usage holds token accounting normalized across backends.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Role string

const (
	// RoleSystem specifies that the message is from the system itself.
	RoleSystem Role = "system"
	// RoleAssistant specifies that the message is from the assistant / LLM.
	RoleAssistant Role = "assistant"
	// RoleUser specifies that the message is from an end-user.
	RoleUser Role = "user"
	// RoleTool specifies that the message holds a tool invocation result.
	RoleTool Role = "tool"
)

// Provider identifies a model-serving backend protocol.
type Provider string

const (
	// ProviderLocal is a local Ollama-protocol daemon.
	ProviderLocal Provider = "local"
	// ProviderOpenAICompatible is any endpoint speaking the OpenAI chat
	// completions API.
	ProviderOpenAICompatible Provider = "openai-compatible"
)
