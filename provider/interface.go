// Package provider implements LLM backends behind the model.Provider
// interface: a local Ollama server via its API client, and OpenAI,
// OpenRouter, and Anthropic via their official SDKs. The agent loop and the
// UI only see model.Provider (which lives in the model package to avoid
// import cycles), so a new backend is one implementation plus a factory row.
//
// All translation between engine types and wire types happens here, in
// conversions.go. Tool call identifiers are kept where the upstream API
// issues them (OpenAI, OpenRouter, Anthropic) and synthesized as UUIDs where
// it does not (Ollama, and calls recovered from leaked content).
//
// Construction goes through the factory:
//
//	p, err := provider.NewProvider(provider.Config{
//	    Type:    provider.ProviderTypeOllama,
//	    BaseURL: "http://localhost:11434",
//	    Model:   "llama3.1",
//	})
package provider

// ProviderType identifies the provider implementation.
type ProviderType string

const (
	ProviderTypeOllama     ProviderType = "ollama"
	ProviderTypeOpenRouter ProviderType = "openrouter"
	ProviderTypeOpenAI     ProviderType = "openai"
	ProviderTypeAnthropic  ProviderType = "anthropic"
)

// Config holds provider-specific configuration.
type Config struct {
	Type    ProviderType
	BaseURL string
	Model   string
	APIKey  string // For OpenAI/OpenRouter/Anthropic (unused for Ollama)
}
