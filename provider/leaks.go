package provider

import (
	"encoding/json"
	"regexp"
	"strings"

	"agentloop/model"

	"github.com/google/uuid"
)

// Some OpenRouter-hosted models ignore the tools API and emit the call as
// plain text instead, either as a bare JSON object or wrapped in
// <tool_call> XML tags (qwen-style). These parsers recover such leaked
// calls from the accumulated content so the turn can still execute them.

var xmlToolCallPattern = regexp.MustCompile(`(?s)<tool_call>\s*(\{.*?\})\s*</tool_call>`)

// leakedCall matches the JSON shape models emit when leaking a tool call
// into content: {"name": "...", "arguments": {...}}.
type leakedCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ParseLeakedJSONToolCalls scans content for a bare JSON tool call.
// Returns nil if the content is not a single JSON object naming a tool.
func ParseLeakedJSONToolCalls(content string) []model.ToolCall {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return nil
	}

	var call leakedCall
	if err := json.Unmarshal([]byte(trimmed), &call); err != nil || call.Name == "" {
		return nil
	}

	return []model.ToolCall{{
		ID:        uuid.NewString(),
		Name:      call.Name,
		Arguments: call.Arguments,
	}}
}

// ParseLeakedXMLToolCalls scans content for <tool_call>{...}</tool_call>
// blocks and parses the embedded JSON. Blocks that fail to parse are
// skipped rather than failing the whole scan.
func ParseLeakedXMLToolCalls(content string) []model.ToolCall {
	matches := xmlToolCallPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}

	var calls []model.ToolCall
	for _, match := range matches {
		var call leakedCall
		if err := json.Unmarshal([]byte(match[1]), &call); err != nil || call.Name == "" {
			continue
		}
		calls = append(calls, model.ToolCall{
			ID:        uuid.NewString(),
			Name:      call.Name,
			Arguments: call.Arguments,
		})
	}
	return calls
}
