package mcp

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"
)

// Tool specs travel through the engine as mcptypes.Tool. Each provider
// SDK wants its own wire shape for the same JSON Schema, so the three
// converters below translate a spec slice right before the API call.

// ToolsForOllama translates tool specs into the Ollama API tool format.
func ToolsForOllama(specs []mcptypes.Tool) []api.Tool {
	tools := make([]api.Tool, 0, len(specs))

	for _, spec := range specs {
		tools = append(tools, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  ollamaParameters(spec.InputSchema),
			},
		})
	}

	return tools
}

func ollamaParameters(schema mcptypes.ToolInputSchema) api.ToolFunctionParameters {
	params := api.ToolFunctionParameters{
		Type:       schema.Type,
		Required:   schema.Required,
		Properties: make(map[string]api.ToolProperty, len(schema.Properties)),
	}
	if schema.Defs != nil {
		params.Defs = schema.Defs
	}

	for name, value := range schema.Properties {
		params.Properties[name] = ollamaProperty(value)
	}

	return params
}

// ollamaProperty maps one JSON Schema property onto api.ToolProperty.
// Anything that is not already a map is round-tripped through JSON,
// which covers structs coming from typed server SDKs.
func ollamaProperty(value any) api.ToolProperty {
	var prop api.ToolProperty

	m, ok := value.(map[string]any)
	if !ok {
		raw, err := json.Marshal(value)
		if err != nil {
			return prop
		}
		if err := json.Unmarshal(raw, &m); err != nil {
			return prop
		}
	}

	// "type" may be a single string or a list of alternatives.
	switch t := m["type"].(type) {
	case string:
		prop.Type = api.PropertyType{t}
	case []string:
		prop.Type = api.PropertyType(t)
	case []any:
		names := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok {
				names = append(names, s)
			}
		}
		prop.Type = api.PropertyType(names)
	}

	if desc, ok := m["description"].(string); ok {
		prop.Description = desc
	}
	if enum, ok := m["enum"].([]any); ok {
		prop.Enum = enum
	}
	if items, ok := m["items"]; ok {
		prop.Items = items
	}
	if anyOf, ok := m["anyOf"].([]any); ok {
		alts := make([]api.ToolProperty, 0, len(anyOf))
		for _, alt := range anyOf {
			alts = append(alts, ollamaProperty(alt))
		}
		prop.AnyOf = alts
	}

	return prop
}

// ToolsForOpenAI translates tool specs into the OpenAI function-tool
// format. OpenRouter speaks the same API and shares this path.
func ToolsForOpenAI(specs []mcptypes.Tool) []openai.ChatCompletionToolUnionParam {
	if len(specs) == 0 {
		return nil
	}

	tools := make([]openai.ChatCompletionToolUnionParam, len(specs))
	for i, spec := range specs {
		// Both sides are JSON Schema; only the envelope differs.
		params := openai.FunctionParameters{
			"type":       spec.InputSchema.Type,
			"properties": spec.InputSchema.Properties,
		}
		if len(spec.InputSchema.Required) > 0 {
			params["required"] = spec.InputSchema.Required
		}
		if spec.InputSchema.Defs != nil {
			params["$defs"] = spec.InputSchema.Defs
		}

		tools[i] = openai.ChatCompletionFunctionTool(
			openai.FunctionDefinitionParam{
				Name:        spec.Name,
				Description: openai.String(spec.Description),
				Parameters:  params,
			},
		)
	}

	return tools
}

// ToolsForAnthropic translates tool specs into Anthropic's tool-use
// format.
func ToolsForAnthropic(specs []mcptypes.Tool) []anthropic.ToolUnionParam {
	if len(specs) == 0 {
		return nil
	}

	tools := make([]anthropic.ToolUnionParam, len(specs))
	for i, spec := range specs {
		// Schema type defaults to "object" when omitted.
		schema := anthropic.ToolInputSchemaParam{
			Properties: spec.InputSchema.Properties,
		}
		if len(spec.InputSchema.Required) > 0 {
			schema.Required = spec.InputSchema.Required
		}
		if spec.InputSchema.Defs != nil {
			schema.ExtraFields = map[string]any{"$defs": spec.InputSchema.Defs}
		}

		tools[i] = anthropic.ToolUnionParamOfTool(schema, spec.Name)
		if spec.Description != "" {
			tools[i].OfTool.Description = anthropic.String(spec.Description)
		}
	}

	return tools
}
