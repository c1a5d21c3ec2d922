package provider

import (
	"context"
	"fmt"
	"strings"

	"agentloop/config"
	"agentloop/mcp"
	"agentloop/model"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenRouterProvider implements the model.Provider interface using OpenAI's
// official Go SDK. It connects to OpenRouter's API which is 100%
// OpenAI-compatible.
type OpenRouterProvider struct {
	client  openai.Client
	model   string
	baseURL string
	apiKey  string
}

const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel   = "meta-llama/llama-3.2-90b-instruct"
)

// NewOpenRouterProvider builds a provider against the OpenRouter API. An
// empty baseURL or model falls back to the defaults; the API key is
// mandatory.
func NewOpenRouterProvider(baseURL, apiKey, model string) (*OpenRouterProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenRouter API key is required")
	}
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	if model == "" {
		model = defaultOpenRouterModel
	}

	return &OpenRouterProvider{
		client: openai.NewClient(
			option.WithBaseURL(baseURL),
			option.WithAPIKey(apiKey),
		),
		model:   model,
		baseURL: baseURL,
		apiKey:  apiKey,
	}, nil
}

// shouldSkipToolInstructions reports whether explicit tool prompting harms
// this model. Qwen models understand tools natively and leak XML when
// prompted, so they get the tool specs without the instruction preamble.
func shouldSkipToolInstructions(modelName string) bool {
	return strings.Contains(strings.ToLower(modelName), "qwen")
}

// OpenRouter restricts tool names to ^[a-zA-Z0-9_-]{1,64}$, which rules out
// the dotted server namespacing. Dots become "__" on the way out and are
// restored when a call comes back.

func convertToolNamesForOpenRouter(tools []mcptypes.Tool) []mcptypes.Tool {
	converted := make([]mcptypes.Tool, len(tools))
	for i, tool := range tools {
		converted[i] = tool
		converted[i].Name = strings.ReplaceAll(tool.Name, ".", "__")
	}
	return converted
}

func convertToolNameFromOpenRouter(toolName string) string {
	return strings.ReplaceAll(toolName, "__", ".")
}

// buildChatParams assembles the request shared by Complete and Stream,
// applying OpenRouter's tool name restrictions and the per-model tool
// instruction policy.
func (p *OpenRouterProvider) buildChatParams(messages []model.Message, tools []mcptypes.Tool) openai.ChatCompletionNewParams {
	withInstructions := messages
	if len(tools) > 0 {
		skip := shouldSkipToolInstructions(p.model)
		if config.DebugLog != nil {
			config.DebugLog.Printf("[OpenRouter] model %q: tool instructions skipped=%v", p.model, skip)
		}
		if !skip {
			preamble := model.Message{
				Role:    model.RoleSystem,
				Content: buildToolInstructions(tools),
			}
			withInstructions = append([]model.Message{preamble}, messages...)
		}
	}

	params := openai.ChatCompletionNewParams{
		Messages: ConvertToOpenAIMessages(withInstructions),
		Model:    openai.ChatModel(p.model),
	}
	if len(tools) > 0 {
		params.Tools = mcp.ToolsForOpenAI(convertToolNamesForOpenRouter(tools))
	}
	return params
}

// Complete implements model.Provider.Complete with a blocking request.
func (p *OpenRouterProvider) Complete(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (*model.Completion, error) {
	params := p.buildChatParams(messages, tools)

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("OpenRouter completion error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("OpenRouter returned no choices")
	}

	return completionFromOpenAIMessage(resp.Choices[0].Message, convertToolNameFromOpenRouter), nil
}

// Stream implements model.Provider.Stream with streaming support.
func (p *OpenRouterProvider) Stream(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) (*model.Completion, error) {
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
		return nil, fmt.Errorf("OpenRouter streaming error: %w", err)
	}
	if len(acc.Choices) == 0 {
		return nil, fmt.Errorf("OpenRouter returned no choices")
	}

	return completionFromOpenAIMessage(acc.Choices[0].Message, convertToolNameFromOpenRouter), nil
}

// ListModels returns the catalog with vendor prefixes stripped from the
// display names. OpenRouter reports no model sizes.
func (p *OpenRouterProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list OpenRouter models: %w", err)
	}

	result := make([]model.ModelInfo, 0, len(page.Data))
	for _, m := range page.Data {
		result = append(result, model.ModelInfo{
			Name:         stripProviderPrefix(m.ID),
			InternalName: m.ID,
			Provider:     "openrouter",
		})
	}
	return result, nil
}

// GetModel returns the full vendor-prefixed name used on the wire,
// e.g. "qwen/qwen3-coder:free".
func (p *OpenRouterProvider) GetModel() string {
	return p.model
}

// GetDisplayName returns the model name without the vendor prefix.
func (p *OpenRouterProvider) GetDisplayName() string {
	return stripProviderPrefix(p.model)
}

func (p *OpenRouterProvider) SetModel(model string) {
	p.model = model
}

// Ping verifies reachability and credentials by listing models.
func (p *OpenRouterProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx); err != nil {
		return fmt.Errorf("OpenRouter ping failed: %w", err)
	}
	return nil
}

// stripProviderPrefix drops the vendor segment of an OpenRouter model ID:
// "meta-llama/llama-3.2-90b-instruct" becomes "llama-3.2-90b-instruct".
func stripProviderPrefix(modelName string) string {
	if _, after, found := strings.Cut(modelName, "/"); found {
		return after
	}
	return modelName
}
