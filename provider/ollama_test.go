package provider

import (
	"agentloop/model"
	"testing"
)

// TestProvidersImplementInterface is a compile-time check that every
// concrete provider implements the Provider interface. This test will fail
// to compile if the interface is not satisfied.
func TestProvidersImplementInterface(t *testing.T) {
	var _ model.Provider = (*OllamaProvider)(nil)
	var _ model.Provider = (*OpenAIProvider)(nil)
	var _ model.Provider = (*OpenRouterProvider)(nil)
	var _ model.Provider = (*AnthropicProvider)(nil)
}

// Note: Integration tests that require a running Ollama server are out of
// scope here. The contract tests in interface_test.go cover the interface
// behavior through the mock provider.
