package model

import "time"

// Role values for Message. Tool results use RoleTool and must carry the
// ToolCallID of the call they answer.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents one entry in a conversation. Messages are immutable
// once appended to a conversation; insertion order is causal order.
type Message struct {
	Role      string
	Content   string
	Rendered  string // Cached rendered markdown (UI layer only)
	Timestamp time.Time

	// ToolCalls is set on assistant messages that request tool execution.
	// The slice order is the order the provider returned the calls.
	ToolCalls []ToolCall

	// ToolCallID is set on tool messages and matches the ID of a
	// previously announced ToolCall.
	ToolCallID string
}

// ToolCall is a provider-issued request to execute a named capability.
// ID is opaque and unique within a turn. For providers that do not issue
// call ids the provider layer synthesizes one.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any

	// Malformed marks a call whose argument payload could not be
	// parsed. The executor answers it with an invalid-arguments error
	// result instead of running the handler.
	Malformed bool
}

// ToolResult pairs 1:1 with a ToolCall. Payload is the text handed back
// to the provider, including error text for failed executions.
type ToolResult struct {
	ToolCallID string
	Payload    string
}

// NewToolResultMessage builds the tool message recording one result.
func NewToolResultMessage(res ToolResult) Message {
	return Message{
		Role:       RoleTool,
		Content:    res.Payload,
		ToolCallID: res.ToolCallID,
		Timestamp:  time.Now(),
	}
}
