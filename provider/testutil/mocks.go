package testutil

import (
	"context"

	"agentloop/model"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// MockProvider satisfies model.Provider. Each method delegates to the
// matching hook field when set and otherwise falls back to a canned
// response, so tests override only the behavior under test.
type MockProvider struct {
	CompleteFunc   func(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (*model.Completion, error)
	StreamFunc     func(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) (*model.Completion, error)
	ListModelsFunc func(ctx context.Context) ([]model.ModelInfo, error)
	PingFunc       func(ctx context.Context) error

	currentModel string
}

func NewMockProvider(modelName string) *MockProvider {
	return &MockProvider{currentModel: modelName}
}

func (m *MockProvider) Complete(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (*model.Completion, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, messages, tools)
	}
	return &model.Completion{Content: "Mock response", FinishReason: model.FinishContent}, nil
}

func (m *MockProvider) Stream(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) (*model.Completion, error) {
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, messages, tools, callback)
	}
	if callback != nil {
		if err := callback("Mock response", nil); err != nil {
			return nil, err
		}
	}
	return &model.Completion{Content: "Mock response", FinishReason: model.FinishContent}, nil
}

func (m *MockProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	if m.ListModelsFunc != nil {
		return m.ListModelsFunc(ctx)
	}
	return []model.ModelInfo{
		{Name: "mock-model-1", Size: 1000},
		{Name: "mock-model-2", Size: 2000},
	}, nil
}

func (m *MockProvider) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

func (m *MockProvider) GetModel() string { return m.currentModel }

// GetDisplayName matches GetModel; the mock does no prefix stripping.
func (m *MockProvider) GetDisplayName() string { return m.currentModel }

func (m *MockProvider) SetModel(name string) { m.currentModel = name }
