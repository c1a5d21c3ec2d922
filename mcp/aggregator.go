package mcp

import (
	"context"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// ToolAggregator exposes the tools of all running servers under
// namespaced names ("<serverID>.<tool>") so two servers can offer
// tools with the same base name.
type ToolAggregator struct {
	processManager *ProcessManager
}

func NewToolAggregator(pm *ProcessManager) *ToolAggregator {
	return &ToolAggregator{processManager: pm}
}

// GetToolsForServers collects the namespaced tool lists of the given
// servers. Servers whose tools cannot be fetched are skipped rather than
// failing the whole listing.
func (ta *ToolAggregator) GetToolsForServers(ctx context.Context, serverIDs []string) ([]mcptypes.Tool, error) {
	var all []mcptypes.Tool
	for _, id := range serverIDs {
		tools, err := ta.processManager.GetTools(id)
		if err != nil {
			continue
		}
		for _, tool := range tools {
			namespaced := tool
			namespaced.Name = id + "." + tool.Name
			all = append(all, namespaced)
		}
	}
	return all, nil
}

// ExecuteTool routes a namespaced call to the owning server and runs the
// bare-named tool there.
func (ta *ToolAggregator) ExecuteTool(ctx context.Context, toolName string, args map[string]any) (*mcptypes.CallToolResult, error) {
	serverID, bareName := splitToolName(toolName)

	client, err := ta.processManager.GetClient(serverID)
	if err != nil {
		return nil, err
	}

	req := mcptypes.CallToolRequest{}
	req.Params.Name = bareName
	req.Params.Arguments = args
	return client.CallTool(ctx, req)
}

// splitToolName separates "<serverID>.<tool>" on the first dot; a name
// without a dot has no server prefix.
func splitToolName(name string) (serverID, tool string) {
	before, after, found := strings.Cut(name, ".")
	if !found {
		return "", name
	}
	return before, after
}
