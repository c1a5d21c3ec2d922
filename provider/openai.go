package provider

import (
	"context"
	"fmt"

	"agentloop/mcp"
	"agentloop/model"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIProvider implements the model.Provider interface using OpenAI's
// official API via the official OpenAI Go SDK.
type OpenAIProvider struct {
	client  openai.Client
	model   string
	baseURL string
	apiKey  string
}

// NewOpenAIProvider builds a provider against the OpenAI API. An empty
// baseURL or model falls back to the defaults; the API key is mandatory.
func NewOpenAIProvider(baseURL, apiKey, model string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &OpenAIProvider{
		client: openai.NewClient(
			option.WithBaseURL(baseURL),
			option.WithAPIKey(apiKey),
		),
		model:   model,
		baseURL: baseURL,
		apiKey:  apiKey,
	}, nil
}

// buildChatParams assembles the request shared by Complete and Stream.
func (p *OpenAIProvider) buildChatParams(messages []model.Message, tools []mcptypes.Tool) openai.ChatCompletionNewParams {
	withInstructions := messages
	if len(tools) > 0 {
		preamble := model.Message{
			Role:    model.RoleSystem,
			Content: buildToolInstructions(tools),
		}
		withInstructions = append([]model.Message{preamble}, messages...)
	}

	params := openai.ChatCompletionNewParams{
		Messages: ConvertToOpenAIMessages(withInstructions),
		Model:    openai.ChatModel(p.model),
	}
	if len(tools) > 0 {
		params.Tools = mcp.ToolsForOpenAI(tools)
	}
	return params
}

// Complete implements model.Provider.Complete with a blocking request.
func (p *OpenAIProvider) Complete(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (*model.Completion, error) {
	params := p.buildChatParams(messages, tools)

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("OpenAI completion error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI returned no choices")
	}

	return completionFromOpenAIMessage(resp.Choices[0].Message, nil), nil
}

// Stream implements model.Provider.Stream with streaming support.
func (p *OpenAIProvider) Stream(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) (*model.Completion, error) {
	params := p.buildChatParams(messages, tools)

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	acc := openai.ChatCompletionAccumulator{}

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		// Send content delta
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			if callback != nil {
				if err := callback(chunk.Choices[0].Delta.Content, nil); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("OpenAI streaming error: %w", err)
	}
	if len(acc.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI returned no choices")
	}

	return completionFromOpenAIMessage(acc.Choices[0].Message, nil), nil
}

// completionFromOpenAIMessage converts an accumulated or blocking response
// message into a provider-agnostic completion. nameConv rewrites tool names
// when the upstream required sanitized ones (OpenRouter); nil means keep
// them as-is. Tool call IDs come straight from the API, with a fallback to
// leak detection when the model emitted the call as content instead.
func completionFromOpenAIMessage(msg openai.ChatCompletionMessage, nameConv func(string) string) *model.Completion {
	completion := &model.Completion{
		Content:      msg.Content,
		FinishReason: model.FinishContent,
	}

	for _, call := range msg.ToolCalls {
		name := call.Function.Name
		if nameConv != nil {
			name = nameConv(name)
		}
		args, argsErr := ParseToolArguments(call.Function.Arguments)
		completion.ToolCalls = append(completion.ToolCalls, model.ToolCall{
			ID:        call.ID,
			Name:      name,
			Arguments: args,
			Malformed: argsErr != nil,
		})
	}

	// Safety check: recover leaked tool calls if none came via the API
	if len(completion.ToolCalls) == 0 {
		leaked := ParseLeakedJSONToolCalls(msg.Content)
		if len(leaked) == 0 {
			leaked = ParseLeakedXMLToolCalls(msg.Content)
		}
		if len(leaked) > 0 {
			if nameConv != nil {
				for i := range leaked {
					leaked[i].Name = nameConv(leaked[i].Name)
				}
			}
			completion.ToolCalls = leaked
			completion.Content = ""
		}
	}

	if len(completion.ToolCalls) > 0 {
		completion.FinishReason = model.FinishToolCalls
	}
	return completion
}

// ListModels returns the account's model catalog. OpenAI reports neither
// sizes nor vendor prefixes, so display and internal names match.
func (p *OpenAIProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list OpenAI models: %w", err)
	}

	result := make([]model.ModelInfo, 0, len(page.Data))
	for _, m := range page.Data {
		result = append(result, model.ModelInfo{
			Name:         m.ID,
			InternalName: m.ID,
			Provider:     "openai",
		})
	}
	return result, nil
}

func (p *OpenAIProvider) GetModel() string {
	return p.model
}

// GetDisplayName matches GetModel; OpenAI names carry no vendor prefix.
func (p *OpenAIProvider) GetDisplayName() string {
	return p.model
}

func (p *OpenAIProvider) SetModel(model string) {
	p.model = model
}

// Ping verifies reachability and credentials by listing models.
func (p *OpenAIProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx); err != nil {
		return fmt.Errorf("OpenAI ping failed: %w", err)
	}
	return nil
}
