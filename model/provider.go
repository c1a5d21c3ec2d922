package model

import (
	"context"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// FinishReason is the provider's signal for whether a response is final
// content or a request for tool execution.
type FinishReason string

const (
	FinishContent   FinishReason = "content"
	FinishToolCalls FinishReason = "tool_calls"
)

// Completion is the outcome of one provider call. Either Content is the
// final answer (FinishContent) or ToolCalls lists the requested tools in
// the order the provider returned them (FinishToolCalls).
type Completion struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason FinishReason
}

// StreamCallback is called for each chunk of a streamed response.
// Tool calls are delivered through the same callback with an empty chunk.
type StreamCallback func(chunk string, toolCalls []ToolCall) error

// Provider abstracts LLM provider implementations (Ollama, OpenAI,
// OpenRouter, Anthropic) using provider-agnostic types.
//
// This interface lives in the model package (not provider) to avoid
// import cycles: provider implementations import model, and the agent
// package can use the interface without importing provider.
type Provider interface {
	// Complete sends messages plus tool specs and blocks for the full
	// response. The provider decides whether to answer or request tools.
	Complete(ctx context.Context, messages []Message, tools []mcptypes.Tool) (*Completion, error)

	// Stream sends messages and streams content deltas via callback,
	// returning the accumulated completion once the feed ends.
	Stream(ctx context.Context, messages []Message, tools []mcptypes.Tool, callback StreamCallback) (*Completion, error)

	// ListModels returns available models for this provider.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// GetModel returns the currently selected model name (InternalName
	// for API calls, with vendor prefix for OpenRouter).
	GetModel() string

	// GetDisplayName returns the model name formatted for UI display.
	GetDisplayName() string

	// SetModel changes the active model.
	SetModel(model string)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}

// ModelInfo describes one model a provider can serve.
type ModelInfo struct {
	Name         string // Display name (vendor prefix stripped for OpenRouter)
	InternalName string // Name used in API calls
	Size         int64  // Bytes on disk (Ollama only, 0 elsewhere)
	Provider     string // Owning provider ID
}
