package provider_test

import (
	"context"
	"testing"
	"time"

	"agentloop/model"
	"agentloop/provider/testutil"
)

var _ model.Provider = (*testutil.MockProvider)(nil)

// TestProviderContract exercises the behavior every backend must share.
// Live backends need real endpoints, so the contract runs against the mock;
// the compile-time assertion above covers interface conformance.
func TestProviderContract(t *testing.T) {
	p := testutil.NewMockProvider("test-model")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("Complete", func(t *testing.T) {
		completion, err := p.Complete(ctx, testutil.SingleUserMessage("Hello"), nil)
		if err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
		if completion == nil {
			t.Fatal("Complete() returned nil completion")
		}
		if completion.FinishReason == model.FinishContent && completion.Content == "" {
			t.Error("Complete() returned content finish with empty content")
		}
	})

	t.Run("Stream", func(t *testing.T) {
		var received string
		completion, err := p.Stream(ctx, testutil.SingleUserMessage("What's the weather?"), testutil.TestMCPTools(),
			func(chunk string, toolCalls []model.ToolCall) error {
				received += chunk
				return nil
			})
		if err != nil {
			t.Fatalf("Stream() error = %v", err)
		}
		if completion == nil {
			t.Fatal("Stream() returned nil completion")
		}
		if completion.FinishReason == model.FinishContent && received == "" {
			t.Error("Stream() delivered no chunks before a content finish")
		}
	})

	t.Run("ModelManagement", func(t *testing.T) {
		if p.GetModel() == "" {
			t.Error("GetModel() returned empty string")
		}
		p.SetModel("new-test-model")
		if got := p.GetModel(); got != "new-test-model" {
			t.Errorf("GetModel() after SetModel = %q, want %q", got, "new-test-model")
		}
	})

	t.Run("HealthCheck", func(t *testing.T) {
		if err := p.Ping(ctx); err != nil {
			t.Errorf("Ping() error = %v", err)
		}
	})
}
