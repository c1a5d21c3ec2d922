package mcp

import (
	"context"
	"fmt"
	"strings"

	"agentloop/tool"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// RegisterTools registers every tool of the manager's active servers
// into the engine registry, so server tools and builtin tools dispatch
// through the same path. The registered names keep their
// "<serverID>.<tool>" namespace.
func RegisterTools(ctx context.Context, m *Manager, reg *tool.Registry) error {
	tools, err := m.Tools(ctx)
	if err != nil {
		return fmt.Errorf("failed to collect server tools: %w", err)
	}

	for _, spec := range tools {
		name := spec.Name
		handler := func(ctx context.Context, args map[string]any) (string, error) {
			result, err := m.ExecuteTool(ctx, name, args)
			if err != nil {
				return "", err
			}
			return FlattenResult(result)
		}

		if err := reg.Register(spec, handler); err != nil {
			return fmt.Errorf("failed to register server tool %s: %w", name, err)
		}
	}

	return nil
}

// FlattenResult reduces a CallToolResult to the plain text the model
// sees as the tool's output. Non-text content blocks are summarized by
// type rather than dropped silently.
func FlattenResult(result *mcptypes.CallToolResult) (string, error) {
	if result == nil {
		return "", fmt.Errorf("empty tool result")
	}

	var parts []string
	for _, content := range result.Content {
		switch c := content.(type) {
		case mcptypes.TextContent:
			parts = append(parts, c.Text)
		case mcptypes.ImageContent:
			parts = append(parts, fmt.Sprintf("[image: %s]", c.MIMEType))
		default:
			parts = append(parts, fmt.Sprintf("[%T]", content))
		}
	}

	text := strings.Join(parts, "\n")
	if result.IsError {
		return "", fmt.Errorf("%s", text)
	}
	return text, nil
}
