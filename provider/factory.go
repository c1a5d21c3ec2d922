package provider

import (
	"fmt"

	"agentloop/model"
)

// constructors maps each provider type to its backend constructor. Adding a
// backend means adding a row here plus the matching Config/credential
// plumbing.
var constructors = map[ProviderType]func(cfg Config) (model.Provider, error){
	ProviderTypeOllama: func(cfg Config) (model.Provider, error) {
		return NewOllamaProvider(cfg.BaseURL, cfg.Model)
	},
	ProviderTypeOpenRouter: func(cfg Config) (model.Provider, error) {
		return NewOpenRouterProvider(cfg.BaseURL, cfg.APIKey, cfg.Model)
	},
	ProviderTypeOpenAI: func(cfg Config) (model.Provider, error) {
		return NewOpenAIProvider(cfg.BaseURL, cfg.APIKey, cfg.Model)
	},
	ProviderTypeAnthropic: func(cfg Config) (model.Provider, error) {
		return NewAnthropicProvider(cfg.BaseURL, cfg.APIKey, cfg.Model)
	},
}

// NewProvider builds a backend from its configuration. It is the single
// entry point for constructing providers; callers never reach for the
// backend-specific constructors directly.
func NewProvider(cfg Config) (model.Provider, error) {
	construct, ok := constructors[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
	return construct(cfg)
}

// MapProviderIDToType translates a user-facing provider ID from the config
// file into a ProviderType. IDs match the type constants today; unknown IDs
// pass through unchanged so NewProvider reports them.
func MapProviderIDToType(id string) ProviderType {
	return ProviderType(id)
}
