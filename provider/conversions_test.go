package provider

import (
	"testing"
	"time"

	"github.com/ollama/ollama/api"

	"agentloop/model"
)

func TestConvertToOllamaMessages(t *testing.T) {
	input := []model.Message{
		{Role: "user", Content: "Hello", Timestamp: time.Now()},
		{Role: "assistant", Content: "Hi there", Timestamp: time.Now()},
		{Role: "user", Content: "How are you?"},
	}

	got := ConvertToOllamaMessages(input)
	if len(got) != len(input) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(input))
	}
	for i, msg := range got {
		if msg.Role != input[i].Role || msg.Content != input[i].Content {
			t.Errorf("message %d: got {%q, %q}, want {%q, %q}",
				i, msg.Role, msg.Content, input[i].Role, input[i].Content)
		}
	}

	if got := ConvertToOllamaMessages(nil); len(got) != 0 {
		t.Errorf("nil input: got %d messages, want 0", len(got))
	}
}

func TestConvertFromOllamaMessages(t *testing.T) {
	input := []api.Message{
		{Role: "user", Content: "Question 1"},
		{Role: "assistant", Content: "Answer 1"},
	}

	got := ConvertFromOllamaMessages(input)
	if len(got) != len(input) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(input))
	}
	for i, msg := range got {
		if msg.Role != input[i].Role || msg.Content != input[i].Content {
			t.Errorf("message %d: got {%q, %q}, want {%q, %q}",
				i, msg.Role, msg.Content, input[i].Role, input[i].Content)
		}
	}
}

func TestMessagesRoundTrip(t *testing.T) {
	original := []model.Message{
		{Role: "user", Content: "Test message"},
		{Role: "assistant", Content: "Response"},
	}

	back := ConvertFromOllamaMessages(ConvertToOllamaMessages(original))
	if len(back) != len(original) {
		t.Fatalf("length mismatch: got %d, want %d", len(back), len(original))
	}
	for i := range back {
		if back[i].Role != original[i].Role || back[i].Content != original[i].Content {
			t.Errorf("message %d changed: got {%q, %q}, want {%q, %q}",
				i, back[i].Role, back[i].Content, original[i].Role, original[i].Content)
		}
	}
}

func TestConvertToProviderToolCalls(t *testing.T) {
	if got := ConvertToProviderToolCalls(nil); got != nil {
		t.Errorf("nil input: got %v, want nil", got)
	}
	if got := ConvertToProviderToolCalls([]api.ToolCall{}); got != nil {
		t.Errorf("empty input: got %v, want nil", got)
	}

	input := []api.ToolCall{
		{Function: api.ToolCallFunction{Name: "search", Arguments: map[string]any{"query": "golang"}}},
		{Function: api.ToolCallFunction{Name: "calculate", Arguments: map[string]any{"expr": "2+2"}}},
	}

	got := ConvertToProviderToolCalls(input)
	if len(got) != len(input) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(input))
	}

	seen := make(map[string]bool)
	for i, call := range got {
		if call.Name != input[i].Function.Name {
			t.Errorf("call %d name: got %q, want %q", i, call.Name, input[i].Function.Name)
		}
		if len(call.Arguments) != len(input[i].Function.Arguments) {
			t.Errorf("call %d arguments: got %d keys, want %d",
				i, len(call.Arguments), len(input[i].Function.Arguments))
		}
		// Ollama issues no call IDs, so the conversion must synthesize
		// a unique one per call
		if call.ID == "" {
			t.Errorf("call %d has no synthesized ID", i)
		}
		if seen[call.ID] {
			t.Errorf("call %d reuses ID %q", i, call.ID)
		}
		seen[call.ID] = true
	}
}

func TestConvertFromProviderToolCalls(t *testing.T) {
	if got := ConvertFromProviderToolCalls(nil); got != nil {
		t.Errorf("nil input: got %v, want nil", got)
	}

	input := []model.ToolCall{
		{Name: "read_file", Arguments: map[string]any{"path": "/tmp/test.txt"}},
		{Name: "write_file", Arguments: map[string]any{"path": "/tmp/out.txt", "content": "data"}},
	}

	got := ConvertFromProviderToolCalls(input)
	if len(got) != len(input) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(input))
	}
	for i, call := range got {
		if call.Function.Name != input[i].Name {
			t.Errorf("call %d name: got %q, want %q", i, call.Function.Name, input[i].Name)
		}
		if len(call.Function.Arguments) != len(input[i].Arguments) {
			t.Errorf("call %d arguments: got %d keys, want %d",
				i, len(call.Function.Arguments), len(input[i].Arguments))
		}
	}
}

func TestConvertToOllamaMessagesCarriesToolCalls(t *testing.T) {
	messages := []model.Message{
		{
			Role: "assistant",
			ToolCalls: []model.ToolCall{
				{ID: "call-1", Name: "read_log", Arguments: map[string]any{"path": "/var/log/app.log"}},
			},
		},
		{Role: "tool", Content: "connection refused", ToolCallID: "call-1"},
	}

	result := ConvertToOllamaMessages(messages)

	if len(result) != 2 {
		t.Fatalf("length mismatch: got %d, want 2", len(result))
	}
	if len(result[0].ToolCalls) != 1 {
		t.Fatalf("assistant message lost tool calls: got %d, want 1", len(result[0].ToolCalls))
	}
	if result[0].ToolCalls[0].Function.Name != "read_log" {
		t.Errorf("tool call name: got %q, want %q", result[0].ToolCalls[0].Function.Name, "read_log")
	}
	if result[1].Role != "tool" || result[1].Content != "connection refused" {
		t.Errorf("tool result message changed: got {%q, %q}", result[1].Role, result[1].Content)
	}
}

func TestConvertToOpenAIMessagesToolCycle(t *testing.T) {
	messages := []model.Message{
		{Role: "user", Content: "What does the error log say?"},
		{
			Role: "assistant",
			ToolCalls: []model.ToolCall{
				{ID: "call_abc", Name: "read_log", Arguments: map[string]any{"path": "/var/log/app.log"}},
			},
		},
		{Role: "tool", Content: "connection refused", ToolCallID: "call_abc"},
	}

	result := ConvertToOpenAIMessages(messages)

	if len(result) != 3 {
		t.Fatalf("length mismatch: got %d, want 3", len(result))
	}
	if result[1].OfAssistant == nil {
		t.Fatal("assistant tool call message did not map to an assistant param")
	}
	calls := result[1].OfAssistant.ToolCalls
	if len(calls) != 1 {
		t.Fatalf("assistant param lost tool calls: got %d, want 1", len(calls))
	}
	if calls[0].OfFunction == nil {
		t.Fatal("tool call is not a function call param")
	}
	if calls[0].OfFunction.ID != "call_abc" {
		t.Errorf("tool call ID: got %q, want %q", calls[0].OfFunction.ID, "call_abc")
	}
	if calls[0].OfFunction.Function.Name != "read_log" {
		t.Errorf("tool call name: got %q, want %q", calls[0].OfFunction.Function.Name, "read_log")
	}
	if result[2].OfTool == nil {
		t.Fatal("tool result message did not map to a tool param")
	}
	if result[2].OfTool.ToolCallID != "call_abc" {
		t.Errorf("tool result call ID: got %q, want %q", result[2].OfTool.ToolCallID, "call_abc")
	}
}

func TestParseToolArguments(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKeys int
		wantErr  bool
	}{
		{"valid object", `{"path": "/tmp/a", "limit": 5}`, 2, false},
		{"empty object", `{}`, 0, false},
		{"empty string", ``, 0, false},
		{"invalid json", `not json`, 0, true},
		{"truncated object", `{"x":`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := ParseToolArguments(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error for the unparsable payload")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if args == nil {
				t.Fatal("ParseToolArguments returned nil map")
			}
			if len(args) != tt.wantKeys {
				t.Errorf("got %d keys, want %d", len(args), tt.wantKeys)
			}
		})
	}
}
