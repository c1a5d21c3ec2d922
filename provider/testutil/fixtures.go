// Package testutil provides shared fixtures and a configurable mock provider
// for backend tests.
package testutil

import (
	"time"

	"agentloop/model"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// SingleUserMessage wraps content in a one-message user conversation.
func SingleUserMessage(content string) []model.Message {
	return []model.Message{
		{Role: model.RoleUser, Content: content, Timestamp: time.Now()},
	}
}

// TestMCPTools returns two small tool specs with required string parameters,
// enough to exercise tool conversion and prompt assembly.
func TestMCPTools() []mcptypes.Tool {
	return []mcptypes.Tool{
		{
			Name:        "get_weather",
			Description: "Look up current conditions for a city",
			InputSchema: mcptypes.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"location": map[string]any{
						"type":        "string",
						"description": "City name, optionally with region",
					},
				},
				Required: []string{"location"},
			},
		},
		{
			Name:        "run_query",
			Description: "Run a read-only SQL query",
			InputSchema: mcptypes.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"sql": map[string]any{
						"type":        "string",
						"description": "The SELECT statement to execute",
					},
				},
				Required: []string{"sql"},
			},
		},
	}
}
