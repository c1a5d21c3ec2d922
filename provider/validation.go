package provider

import (
	"context"
	"fmt"

	"agentloop/config"
	"agentloop/model"
	"agentloop/ollama"
)

// Validate checks a provider's credentials by creating it and calling
// Ping(). Used by the startup health check before fetching models.
func Validate(ctx context.Context, providerID, baseURL, apiKey string) error {
	providerType := MapProviderIDToType(providerID)

	p, err := NewProvider(Config{
		Type:    providerType,
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   "",
	})
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	if err := p.Ping(ctx); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}

	if config.Debug {
		config.DebugLog.Printf("[Provider] Provider %s ping successful", providerID)
	}

	return nil
}

// FetchModels lists the models a single provider can serve. Ollama is
// special-cased because it is reachable without an API key.
func FetchModels(ctx context.Context, providerID, baseURL, apiKey, ollamaURL string) ([]model.ModelInfo, error) {
	var models []model.ModelInfo

	switch providerID {
	case "ollama":
		client, err := ollama.NewClient(ollamaURL, "")
		if err != nil {
			return nil, err
		}

		modelInfos, err := client.ListModels(ctx)
		if err != nil {
			return nil, err
		}

		for i := range modelInfos {
			modelInfos[i].Provider = "ollama"
			modelInfos[i].InternalName = modelInfos[i].Name
		}

		models = modelInfos

	default:
		providerType := MapProviderIDToType(providerID)
		p, err := NewProvider(Config{
			Type:    providerType,
			BaseURL: baseURL,
			APIKey:  apiKey,
			Model:   "",
		})
		if err != nil {
			return nil, err
		}

		fetched, err := p.ListModels(ctx)
		if err != nil {
			return nil, err
		}

		models = fetched
	}

	if config.Debug {
		config.DebugLog.Printf("[Provider] Fetched %d models from provider %s", len(models), providerID)
	}

	return models, nil
}
