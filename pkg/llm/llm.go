// Package llm is a minimal client for OpenAI-compatible chat APIs
// (OpenAI, Ollama, vLLM, Together, Groq, etc.) plus the structured
// reply format the conversation loop expects.
package llm

import "context"

// Role defines message roles in a conversation.
type Role string

const (
	// RoleSystem is for system instructions.
	RoleSystem Role = "system"

	// RoleUser is for user messages.
	RoleUser Role = "user"

	// RoleAssistant is for assistant responses.
	RoleAssistant Role = "assistant"
)

// Message represents a chat message in a conversation.
type Message struct {
	Role    Role
	Content string
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ChatRequest is a chat completion request.
type ChatRequest struct {
	// Model overrides the configured default when set.
	Model string

	// Messages is the conversation, system prompt first.
	Messages []Message

	// MaxTokens caps the completion length (0 = config default).
	MaxTokens int

	// Temperature overrides the default when > 0.
	Temperature float64
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatResponse is a chat completion result.
type ChatResponse struct {
	Message      Message
	FinishReason string
	Usage        Usage
	Model        string
	LatencyMs    int64
}

// Provider generates chat completions.
type Provider interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	Health(ctx context.Context) error
	Close() error
}
