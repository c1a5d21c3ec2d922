package provider

import (
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// buildToolInstructions renders the execution guidance injected as a
// system message whenever tools are attached. Without it, several
// models narrate the tool they would use instead of calling it.
func buildToolInstructions(tools []mcptypes.Tool) string {
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}

	var b strings.Builder
	b.WriteString("Available tools: ")
	b.WriteString(strings.Join(names, ", "))
	b.WriteString("\n\n")
	b.WriteString("When a request needs a tool, pick it and call it directly.\n")
	b.WriteString("If a required parameter is missing, ask for that parameter and nothing else.\n")
	b.WriteString("Never describe the call you are about to make, list the tools, ")
	b.WriteString("or ask what the user would like you to do.\n\n")
	b.WriteString("For example, \"Read Dockerfile\" means call read_file(\"Dockerfile\") ")
	b.WriteString("immediately, not \"I can read files for you.\"")

	return b.String()
}
