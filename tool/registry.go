// Package tool maps tool names to executable capabilities and their
// declared parameter schemas. The registry is populated at startup and
// read-only afterward, so concurrent turns can share one instance.
package tool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

var (
	// ErrDuplicateTool is returned when registering a name twice.
	ErrDuplicateTool = errors.New("duplicate tool")

	// ErrUnknownTool is returned when invoking an unregistered name.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidArguments is returned when arguments fail schema validation.
	ErrInvalidArguments = errors.New("invalid tool arguments")

	// ErrToolExecutionFailed wraps errors returned by a tool handler.
	ErrToolExecutionFailed = errors.New("tool execution failed")
)

// Handler executes one tool call and returns the text payload handed back
// to the model. Handlers run synchronously relative to the calling turn.
type Handler func(ctx context.Context, args map[string]any) (string, error)

type entry struct {
	spec    mcptypes.Tool
	handler Handler
}

// Registry holds the closed set of tools known at startup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]entry)}
}

// Register adds a tool under spec.Name. Registering the same name twice
// fails with ErrDuplicateTool and leaves the registry unchanged.
func (r *Registry) Register(spec mcptypes.Tool, handler Handler) error {
	if spec.Name == "" {
		return fmt.Errorf("%w: empty tool name", ErrInvalidArguments)
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler for %q", ErrInvalidArguments, spec.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[spec.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, spec.Name)
	}
	r.tools[spec.Name] = entry{spec: spec, handler: handler}
	return nil
}

// Specs returns the registered tool specs sorted by name, for building
// outbound provider requests.
func (r *Registry) Specs() []mcptypes.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]mcptypes.Tool, 0, len(r.tools))
	for _, e := range r.tools {
		specs = append(specs, e.spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Invoke validates args against the registered schema and runs the
// handler. It blocks until the handler completes, errors, or the context
// expires; the caller decides how to surface failures to the model.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	if err := validateArguments(e.spec, args); err != nil {
		return "", err
	}

	payload, err := e.handler(ctx, args)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrToolExecutionFailed, name, err)
	}
	return payload, nil
}

// validateArguments checks that every required key of the tool's input
// schema is present. Deep JSON Schema validation is the provider's job;
// the registry only guards the contract the handlers rely on.
func validateArguments(spec mcptypes.Tool, args map[string]any) error {
	for _, key := range spec.InputSchema.Required {
		if _, ok := args[key]; !ok {
			return fmt.Errorf("%w: %s: missing required argument %q", ErrInvalidArguments, spec.Name, key)
		}
	}
	return nil
}
