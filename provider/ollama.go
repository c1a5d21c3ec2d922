package provider

import (
	"context"
	"fmt"
	"strings"

	"agentloop/mcp"
	"agentloop/model"
	"agentloop/ollama"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
)

// OllamaProvider wraps ollama.Client to implement the model.Provider interface.
//
// This provider handles all type conversions between the engine's
// provider-agnostic types and Ollama's specific API types: model.Message to
// api.Message, mcptypes.Tool to api.Tool, and api.ToolCall to model.ToolCall.
// Ollama issues no tool call IDs, so the conversion layer synthesizes them.
type OllamaProvider struct {
	client *ollama.Client
}

// NewOllamaProvider builds a provider over a local Ollama server. Empty
// baseURL and model fall back to the client's defaults. Errors if the URL
// cannot be parsed.
func NewOllamaProvider(baseURL, model string) (*OllamaProvider, error) {
	client, err := ollama.NewClient(baseURL, model)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}
	return &OllamaProvider{client: client}, nil
}

// Complete implements model.Provider.Complete by streaming internally and
// discarding the intermediate deltas.
func (p *OllamaProvider) Complete(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (*model.Completion, error) {
	return p.Stream(ctx, messages, tools, nil)
}

// Stream implements model.Provider.Stream with type conversions.
//
// The Ollama API always streams; each response chunk may carry a content
// delta, tool calls, or both. Content deltas are forwarded through the
// callback as they arrive and tool calls are collected for the returned
// completion.
func (p *OllamaProvider) Stream(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) (*model.Completion, error) {
	ollamaMessages := ConvertToOllamaMessages(messages)

	var ollamaTools []api.Tool
	if len(tools) > 0 {
		ollamaTools = mcp.ToolsForOllama(tools)
	}

	var content strings.Builder
	var toolCalls []model.ToolCall

	ollamaCallback := func(chunk string, ollamaCalls []api.ToolCall) error {
		if len(ollamaCalls) > 0 {
			converted := ConvertToProviderToolCalls(ollamaCalls)
			toolCalls = append(toolCalls, converted...)
			if callback != nil {
				if err := callback("", converted); err != nil {
					return err
				}
			}
		}
		if chunk != "" {
			content.WriteString(chunk)
			if callback != nil {
				return callback(chunk, nil)
			}
		}
		return nil
	}

	if err := p.client.ChatWithTools(ctx, ollamaMessages, ollamaTools, ollamaCallback); err != nil {
		return nil, fmt.Errorf("ollama chat failed: %w", err)
	}

	completion := &model.Completion{
		Content:      content.String(),
		ToolCalls:    toolCalls,
		FinishReason: model.FinishContent,
	}
	if len(toolCalls) > 0 {
		completion.FinishReason = model.FinishToolCalls
	}
	return completion, nil
}

// The remaining methods pass straight through to the client. Local model
// names carry no vendor prefix, so the display name matches the model name.

func (p *OllamaProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	return p.client.ListModels(ctx)
}

func (p *OllamaProvider) GetModel() string {
	return p.client.GetModel()
}

func (p *OllamaProvider) GetDisplayName() string {
	return p.client.GetModel()
}

func (p *OllamaProvider) SetModel(model string) {
	p.client.SetModel(model)
}

func (p *OllamaProvider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}
