// Package llm provides the narrow chat-completion interface the core uses
// for intent classification, tool selection, and answer synthesis, plus the
// Gemini-backed implementation and a rate-limited wrapper.
package llm

import (
	"context"
	"time"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ImagePart is inline image content attached to a message, used by the
// vision-conditioned synthesis path.
type ImagePart struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"` // base64, without data-URI prefix
}

// Message is one chat turn.
type Message struct {
	Role    Role        `json:"role"`
	Content string      `json:"content,omitempty"`
	Images  []ImagePart `json:"images,omitempty"`
}

// ChatRequest is a completion request.
type ChatRequest struct {
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Usage reports token consumption for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is a completion result.
type ChatResponse struct {
	Content      string    `json:"content"`
	FinishReason string    `json:"finish_reason,omitempty"`
	Model        string    `json:"model,omitempty"`
	Usage        Usage     `json:"usage"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

// Provider is the unified chat-completion interface. Implementations must
// honor ctx cancellation and deadlines; every call the core issues carries
// an explicit timeout.
type Provider interface {
	// Name returns the provider name.
	Name() string
	// Completion performs a single chat completion.
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}
