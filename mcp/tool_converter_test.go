package mcp

import (
	"testing"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
)

func weatherSpec() mcptypes.Tool {
	return mcptypes.Tool{
		Name:        "get_weather",
		Description: "Get current weather",
		InputSchema: mcptypes.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"city": map[string]any{
					"type":        "string",
					"description": "City name",
				},
				"units": map[string]any{
					"type": "string",
					"enum": []any{"metric", "imperial"},
				},
			},
			Required: []string{"city"},
		},
	}
}

func TestToolsForOllama(t *testing.T) {
	tests := []struct {
		name  string
		specs []mcptypes.Tool
		want  int
	}{
		{name: "no specs", specs: nil, want: 0},
		{name: "one spec", specs: []mcptypes.Tool{weatherSpec()}, want: 1},
		{
			name: "two specs keep order",
			specs: []mcptypes.Tool{
				{Name: "first", InputSchema: mcptypes.ToolInputSchema{Type: "object"}},
				{Name: "second", InputSchema: mcptypes.ToolInputSchema{Type: "object"}},
			},
			want: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToolsForOllama(tt.specs)
			if len(got) != tt.want {
				t.Fatalf("expected %d tools, got %d", tt.want, len(got))
			}
			for i, tool := range got {
				if tool.Type != "function" {
					t.Errorf("tool %d: type = %q, want function", i, tool.Type)
				}
				if tool.Function.Name != tt.specs[i].Name {
					t.Errorf("tool %d: name = %q, want %q", i, tool.Function.Name, tt.specs[i].Name)
				}
			}
		})
	}
}

func TestToolsForOllamaSchema(t *testing.T) {
	got := ToolsForOllama([]mcptypes.Tool{weatherSpec()})
	params := got[0].Function.Parameters

	if params.Type != "object" {
		t.Errorf("parameters type = %q, want object", params.Type)
	}
	if len(params.Required) != 1 || params.Required[0] != "city" {
		t.Errorf("required = %v, want [city]", params.Required)
	}

	city, ok := params.Properties["city"]
	if !ok {
		t.Fatal("city property not found")
	}
	if len(city.Type) != 1 || city.Type[0] != "string" {
		t.Errorf("city type = %v, want [string]", city.Type)
	}
	if city.Description != "City name" {
		t.Errorf("city description = %q", city.Description)
	}

	units, ok := params.Properties["units"]
	if !ok {
		t.Fatal("units property not found")
	}
	if len(units.Enum) != 2 {
		t.Errorf("units enum = %v, want 2 values", units.Enum)
	}
}

func TestOllamaProperty(t *testing.T) {
	tests := []struct {
		name  string
		input any
		check func(t *testing.T, prop api.ToolProperty)
	}{
		{
			name:  "type list",
			input: map[string]any{"type": []any{"string", "number"}},
			check: func(t *testing.T, prop api.ToolProperty) {
				if len(prop.Type) != 2 {
					t.Errorf("type = %v, want 2 alternatives", prop.Type)
				}
			},
		},
		{
			name: "array with items",
			input: map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			check: func(t *testing.T, prop api.ToolProperty) {
				if prop.Items == nil {
					t.Error("items not carried over")
				}
			},
		},
		{
			name: "anyOf union",
			input: map[string]any{
				"anyOf": []any{
					map[string]any{"type": "string"},
					map[string]any{"type": "number"},
				},
			},
			check: func(t *testing.T, prop api.ToolProperty) {
				if len(prop.AnyOf) != 2 {
					t.Errorf("anyOf = %v, want 2 alternatives", prop.AnyOf)
				}
			},
		},
		{
			name:  "non-map value round-trips through json",
			input: struct{ Type string `json:"type"` }{Type: "boolean"},
			check: func(t *testing.T, prop api.ToolProperty) {
				if len(prop.Type) != 1 || prop.Type[0] != "boolean" {
					t.Errorf("type = %v, want [boolean]", prop.Type)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, ollamaProperty(tt.input))
		})
	}
}

func TestToolsForOpenAI(t *testing.T) {
	if got := ToolsForOpenAI(nil); got != nil {
		t.Errorf("expected nil for empty specs, got %v", got)
	}

	got := ToolsForOpenAI([]mcptypes.Tool{weatherSpec()})
	if len(got) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(got))
	}
	fn := got[0].OfFunction
	if fn == nil {
		t.Fatal("expected a function tool")
	}
	if fn.Function.Name != "get_weather" {
		t.Errorf("name = %q, want get_weather", fn.Function.Name)
	}
	if _, ok := fn.Function.Parameters["required"]; !ok {
		t.Error("required fields not carried over")
	}
}

func TestToolsForAnthropic(t *testing.T) {
	if got := ToolsForAnthropic(nil); got != nil {
		t.Errorf("expected nil for empty specs, got %v", got)
	}

	got := ToolsForAnthropic([]mcptypes.Tool{weatherSpec()})
	if len(got) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(got))
	}
	tool := got[0].OfTool
	if tool == nil {
		t.Fatal("expected OfTool to be populated")
	}
	if tool.Name != "get_weather" {
		t.Errorf("name = %q, want get_weather", tool.Name)
	}
	if len(tool.InputSchema.Required) != 1 {
		t.Errorf("required = %v, want [city]", tool.InputSchema.Required)
	}
}
