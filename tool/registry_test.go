package tool

import (
	"context"
	"errors"
	"fmt"
	"testing"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

func searchSpec() mcptypes.Tool {
	return mcptypes.Tool{
		Name:        "search",
		Description: "Search the knowledge base",
		InputSchema: mcptypes.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query",
				},
			},
			Required: []string{"query"},
		},
	}
}

func echoHandler(ctx context.Context, args map[string]any) (string, error) {
	return fmt.Sprintf("result for %v", args["query"]), nil
}

func TestRegisterDuplicate(t *testing.T) {
	registry := NewRegistry()

	if err := registry.Register(searchSpec(), echoHandler); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	err := registry.Register(searchSpec(), echoHandler)
	if !errors.Is(err, ErrDuplicateTool) {
		t.Fatalf("expected ErrDuplicateTool, got %v", err)
	}
	// Registry state unchanged after the failed call.
	if registry.Len() != 1 {
		t.Fatalf("expected 1 tool after duplicate register, got %d", registry.Len())
	}
}

func TestInvoke(t *testing.T) {
	tests := []struct {
		name    string
		tool    string
		args    map[string]any
		wantErr error
		want    string
	}{
		{
			name: "valid invocation",
			tool: "search",
			args: map[string]any{"query": "golang"},
			want: "result for golang",
		},
		{
			name:    "unknown tool",
			tool:    "nonexistent",
			args:    map[string]any{},
			wantErr: ErrUnknownTool,
		},
		{
			name:    "missing required argument",
			tool:    "search",
			args:    map[string]any{"q": "golang"},
			wantErr: ErrInvalidArguments,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewRegistry()
			if err := registry.Register(searchSpec(), echoHandler); err != nil {
				t.Fatalf("register failed: %v", err)
			}

			payload, err := registry.Invoke(context.Background(), tt.tool, tt.args)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if payload != tt.want {
				t.Errorf("expected %q, got %q", tt.want, payload)
			}
		})
	}
}

func TestInvokeWrapsHandlerErrors(t *testing.T) {
	registry := NewRegistry()
	spec := searchSpec()
	failing := func(ctx context.Context, args map[string]any) (string, error) {
		return "", fmt.Errorf("backend unreachable")
	}
	if err := registry.Register(spec, failing); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	_, err := registry.Invoke(context.Background(), "search", map[string]any{"query": "x"})
	if !errors.Is(err, ErrToolExecutionFailed) {
		t.Fatalf("expected ErrToolExecutionFailed, got %v", err)
	}
}

func TestSpecsSorted(t *testing.T) {
	registry := NewRegistry()
	names := []string{"zeta", "alpha", "mid"}
	for _, name := range names {
		spec := mcptypes.Tool{Name: name, InputSchema: mcptypes.ToolInputSchema{Type: "object"}}
		if err := registry.Register(spec, echoHandler); err != nil {
			t.Fatalf("register %s failed: %v", name, err)
		}
	}

	specs := registry.Specs()
	want := []string{"alpha", "mid", "zeta"}
	for i, name := range want {
		if specs[i].Name != name {
			t.Errorf("spec %d: expected %q, got %q", i, name, specs[i].Name)
		}
	}
}
