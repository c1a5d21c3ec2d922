package provider

import (
	"encoding/json"
	"fmt"

	"agentloop/model"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"
)

// ConvertToOllamaMessages converts engine model.Message to Ollama api.Message.
//
// Assistant messages that carried tool calls keep them, converted back to
// Ollama's format, so the model sees its own prior requests. Tool result
// messages map to role "tool"; Ollama correlates results by position, so
// the ToolCallID is not sent on the wire.
//
// Note: The Timestamp and Rendered fields from model.Message are not
// preserved, as the Ollama API does not support them. Timestamps are
// managed at the conversation layer, not the provider layer.
func ConvertToOllamaMessages(messages []model.Message) []api.Message {
	result := make([]api.Message, len(messages))
	for i, msg := range messages {
		result[i] = api.Message{
			Role:    msg.Role,
			Content: msg.Content,
		}
		if len(msg.ToolCalls) > 0 {
			result[i].ToolCalls = ConvertFromProviderToolCalls(msg.ToolCalls)
		}
	}
	return result
}

// ConvertFromOllamaMessages converts Ollama api.Message to engine model.Message.
//
// The Timestamp field is not set (will be zero value) because Ollama API
// messages don't include timestamp information. The Rendered field is also
// not set and should be populated by the UI layer when needed.
func ConvertFromOllamaMessages(messages []api.Message) []model.Message {
	result := make([]model.Message, len(messages))
	for i, msg := range messages {
		result[i] = model.Message{
			Role:      msg.Role,
			Content:   msg.Content,
			ToolCalls: ConvertToProviderToolCalls(msg.ToolCalls),
		}
	}
	return result
}

// ConvertToOpenAIMessages converts engine messages to OpenAI chat format.
// Used by both the OpenAI and OpenRouter providers.
//
// Assistant messages carrying tool calls become assistant messages with a
// tool_calls block; tool result messages become tool messages bound to
// their originating call ID. Arguments are re-serialized to JSON since the
// OpenAI API transports them as a string.
func ConvertToOpenAIMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))
		case model.RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				result = append(result, openai.AssistantMessage(msg.Content))
				continue
			}
			assistant := openai.ChatCompletionAssistantMessageParam{
				ToolCalls: convertToOpenAIToolCalls(msg.ToolCalls),
			}
			if msg.Content != "" {
				assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(msg.Content),
				}
			}
			result = append(result, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case model.RoleTool:
			result = append(result, openai.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			// Unknown roles degrade to user messages
			result = append(result, openai.UserMessage(msg.Content))
		}
	}

	return result
}

// convertToOpenAIToolCalls converts engine tool calls to the OpenAI
// assistant-message tool_calls parameter format.
func convertToOpenAIToolCalls(calls []model.ToolCall) []openai.ChatCompletionMessageToolCallUnionParam {
	result := make([]openai.ChatCompletionMessageToolCallUnionParam, len(calls))
	for i, call := range calls {
		argsJSON, err := json.Marshal(call.Arguments)
		if err != nil {
			argsJSON = []byte("{}")
		}
		result[i] = openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: call.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      call.Name,
					Arguments: string(argsJSON),
				},
			},
		}
	}
	return result
}

// ParseToolArguments parses a JSON arguments string into a map. Used by
// the OpenAI and OpenRouter providers for tool call parsing. An empty
// string means no arguments; any other payload that does not parse is an
// error the caller must surface (the call gets marked malformed, never
// silently executed with empty arguments).
func ParseToolArguments(argsJSON string) (map[string]any, error) {
	if argsJSON == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return nil, fmt.Errorf("unparsable tool arguments: %w", err)
	}
	return args, nil
}

// ConvertToProviderToolCalls converts Ollama api.ToolCall to provider-agnostic
// model.ToolCall.
//
// Ollama does not issue call identifiers, so each converted call gets a
// synthesized UUID. The agent loop relies on these IDs to pair results with
// their announcements.
//
// Returns nil if the input is nil or empty, maintaining the same nil
// semantics as the Ollama API.
func ConvertToProviderToolCalls(ollamaCalls []api.ToolCall) []model.ToolCall {
	if len(ollamaCalls) == 0 {
		return nil
	}

	result := make([]model.ToolCall, len(ollamaCalls))
	for i, call := range ollamaCalls {
		result[i] = model.ToolCall{
			ID:        uuid.NewString(),
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		}
	}
	return result
}

// ConvertFromProviderToolCalls converts provider-agnostic model.ToolCall to
// Ollama api.ToolCall. The ID is dropped since Ollama has no field for it.
//
// Returns nil if the input is nil or empty, maintaining the same nil semantics.
func ConvertFromProviderToolCalls(providerCalls []model.ToolCall) []api.ToolCall {
	if len(providerCalls) == 0 {
		return nil
	}

	result := make([]api.ToolCall, len(providerCalls))
	for i, call := range providerCalls {
		result[i] = api.ToolCall{
			Function: api.ToolCallFunction{
				Name:      call.Name,
				Arguments: call.Arguments,
			},
		}
	}
	return result
}
