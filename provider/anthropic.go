package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"agentloop/mcp"
	"agentloop/model"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// AnthropicProvider implements the model.Provider interface using
// Anthropic's official API via the official Anthropic Go SDK.
type AnthropicProvider struct {
	client  *anthropic.Client
	model   anthropic.Model
	baseURL string
	apiKey  string
}

// NewAnthropicProvider builds a provider against the Anthropic API. An empty
// baseURL or model falls back to the defaults; the API key is mandatory.
func NewAnthropicProvider(baseURL, apiKey, model string) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	m := anthropic.Model(model)
	if model == "" {
		m = anthropic.ModelClaudeSonnet4_5_20250929
	}

	client := anthropic.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &AnthropicProvider{
		client:  &client,
		model:   m,
		baseURL: baseURL,
		apiKey:  apiKey,
	}, nil
}

// buildMessageParams assembles the request shared by Complete and Stream.
func (p *AnthropicProvider) buildMessageParams(messages []model.Message, tools []mcptypes.Tool) anthropic.MessageNewParams {
	anthropicMessages, systemBlocks := convertToAnthropicMessages(messages)

	// Tool instructions lead the system blocks so they outrank any
	// user-supplied system prompt.
	if len(tools) > 0 {
		preamble := anthropic.TextBlockParam{Text: buildToolInstructions(tools)}
		systemBlocks = append([]anthropic.TextBlockParam{preamble}, systemBlocks...)
	}

	params := anthropic.MessageNewParams{
		Model:     p.model,
		Messages:  anthropicMessages,
		MaxTokens: 4096, // the API requires an explicit cap
	}
	if len(systemBlocks) > 0 {
		params.System = systemBlocks
	}
	if len(tools) > 0 {
		params.Tools = mcp.ToolsForAnthropic(tools)
	}
	return params
}

// Complete implements model.Provider.Complete with a blocking request.
func (p *AnthropicProvider) Complete(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (*model.Completion, error) {
	params := p.buildMessageParams(messages, tools)

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("Anthropic completion error: %w", err)
	}

	return completionFromAnthropicMessage(*msg), nil
}

// Stream implements model.Provider.Stream with streaming support.
func (p *AnthropicProvider) Stream(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) (*model.Completion, error) {
	params := p.buildMessageParams(messages, tools)

	stream := p.client.Messages.NewStreaming(ctx, params)

	// Accumulate message
	msg := anthropic.Message{}

	for stream.Next() {
		event := stream.Current()

		if err := msg.Accumulate(event); err != nil {
			return nil, fmt.Errorf("error accumulating message: %w", err)
		}

		// Forward text deltas as they arrive
		switch eventVariant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if callback != nil {
					if err := callback(deltaVariant.Text, nil); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("Anthropic streaming error: %w", err)
	}

	return completionFromAnthropicMessage(msg), nil
}

// completionFromAnthropicMessage flattens a response message's content
// blocks into a provider-agnostic completion. Text blocks concatenate into
// Content; tool_use blocks become tool calls carrying the API's call IDs.
func completionFromAnthropicMessage(msg anthropic.Message) *model.Completion {
	var content strings.Builder
	var toolCalls []model.ToolCall

	for _, block := range msg.Content {
		switch blockVariant := block.AsAny().(type) {
		case anthropic.TextBlock:
			content.WriteString(blockVariant.Text)
		case anthropic.ToolUseBlock:
			var args map[string]any
			malformed := false
			if len(blockVariant.Input) > 0 {
				if err := json.Unmarshal(blockVariant.Input, &args); err != nil {
					malformed = true
				}
			}
			toolCalls = append(toolCalls, model.ToolCall{
				ID:        blockVariant.ID,
				Name:      blockVariant.Name,
				Arguments: args,
				Malformed: malformed,
			})
		}
	}

	completion := &model.Completion{
		Content:      content.String(),
		ToolCalls:    toolCalls,
		FinishReason: model.FinishContent,
	}
	if len(toolCalls) > 0 {
		completion.FinishReason = model.FinishToolCalls
	}
	return completion
}

// knownClaudeModels is the curated catalog ListModels returns; the Anthropic
// API has no model listing endpoint.
var knownClaudeModels = []anthropic.Model{
	anthropic.ModelClaudeSonnet4_5_20250929,
	anthropic.ModelClaude3_5Haiku20241022,
	anthropic.ModelClaude_3_Opus_20240229,
	anthropic.ModelClaude_3_Haiku_20240307,
}

func (p *AnthropicProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	result := make([]model.ModelInfo, 0, len(knownClaudeModels))
	for _, m := range knownClaudeModels {
		result = append(result, model.ModelInfo{
			Name:         string(m),
			InternalName: string(m),
			Provider:     "anthropic",
		})
	}
	return result, nil
}

func (p *AnthropicProvider) GetModel() string {
	return string(p.model)
}

// GetDisplayName matches GetModel; Anthropic names carry no vendor prefix.
func (p *AnthropicProvider) GetDisplayName() string {
	return string(p.model)
}

func (p *AnthropicProvider) SetModel(model string) {
	p.model = anthropic.Model(model)
}

// Ping sends a one-token message; the API has no health endpoint.
func (p *AnthropicProvider) Ping(ctx context.Context) error {
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return fmt.Errorf("Anthropic ping failed: %w", err)
	}
	return nil
}

// convertToAnthropicMessages converts engine messages to Anthropic format.
// Returns the message array and any system prompt found.
//
// Assistant messages carrying tool calls become assistant messages with
// tool_use blocks; tool result messages become user messages with a
// tool_result block bound to the originating tool_use ID, as the Anthropic
// API requires.
func convertToAnthropicMessages(messages []model.Message) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var systemBlocks []anthropic.TextBlockParam
	anthropicMsgs := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			// Anthropic uses a separate system parameter, not in messages array
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{
				Text: msg.Content,
			})

		case model.RoleUser:
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)),
			)

		case model.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    call.ID,
						Name:  call.Name,
						Input: call.Arguments,
					},
				})
			}
			if len(blocks) == 0 {
				blocks = append(blocks, anthropic.NewTextBlock(""))
			}
			anthropicMsgs = append(anthropicMsgs, anthropic.NewAssistantMessage(blocks...))

		case model.RoleTool:
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewUserMessage(anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false)),
			)

		default:
			// Default to user message
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)),
			)
		}
	}

	return anthropicMsgs, systemBlocks
}
