// Package llm defines the Provider interface for language model backends.
//
// The brain uses two of them: a local model for small talk and a cloud model
// for everything the intent table does not claim. Both are driven through
// the same non-streaming Complete call with the conversation so far.
//
// Implementors must be safe for concurrent use and must return promptly when
// the supplied context is cancelled.
package llm

import (
	"context"
	"errors"
)

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse is returned when the backend answers without any choice.
var ErrEmptyResponse = errors.New("llm: empty response")

// Message is one turn of a conversation.
type Message struct {
	// Role is one of RoleSystem, RoleUser or RoleAssistant.
	Role string

	Content string
}

// Usage holds token accounting reported by the backend, when it reports any.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a reply.
// Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation history. The last message is the
	// user turn being answered.
	Messages []Message

	// SystemPrompt is sent ahead of Messages when non-empty.
	SystemPrompt string

	// Temperature in [0, 2]. Zero leaves the provider default.
	Temperature float64

	// MaxTokens caps the reply length. Zero leaves the provider default.
	MaxTokens int
}

// CompletionResponse is the full reply of a Complete call.
type CompletionResponse struct {
	Content string
	Usage   Usage
}

// Provider is the abstraction over any language model backend.
type Provider interface {
	// Complete sends req and waits for the full reply. It returns an error
	// when the request fails or ctx ends first.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name identifies the backend in logs and metrics, e.g. "openai/gpt-4o-mini".
	Name() string
}
