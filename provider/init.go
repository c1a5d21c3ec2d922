package provider

import (
	"agentloop/config"
	"agentloop/model"
)

// InitializeProviders builds every provider the configuration enables,
// keyed by provider id. Ollama is always attempted first so the app can
// run fully local; failures are logged and skipped rather than fatal,
// which leaves a partial map when some cloud key is bad.
func InitializeProviders(cfg *config.Config) map[string]model.Provider {
	providers := make(map[string]model.Provider)

	if p := initOllama(cfg); p != nil {
		providers["ollama"] = p
		if config.Debug {
			config.DebugLog.Printf("[Provider] Initialized Ollama provider")
		}
	} else if config.Debug {
		config.DebugLog.Printf("[Provider] Ollama unavailable, continuing without local models")
	}

	for _, pc := range cfg.Providers {
		if !pc.Enabled || pc.ID == "ollama" {
			continue
		}

		apiKey := ""
		if cfg.CredentialStore != nil {
			apiKey = cfg.CredentialStore.Get(pc.ID)
		}

		p, err := NewProvider(Config{
			Type:    MapProviderIDToType(pc.ID),
			BaseURL: pc.BaseURL,
			APIKey:  apiKey,
		})
		if err != nil {
			if config.Debug {
				config.DebugLog.Printf("[Provider] Skipping provider %s: %v", pc.ID, err)
			}
			continue
		}

		providers[pc.ID] = p
		if config.Debug {
			config.DebugLog.Printf("[Provider] Initialized provider %s", pc.ID)
		}
	}

	return providers
}

// initOllama returns nil when the local daemon config is unusable,
// leaving the app in cloud-only (or offline) mode.
func initOllama(cfg *config.Config) model.Provider {
	p, err := NewProvider(Config{
		Type:    ProviderTypeOllama,
		BaseURL: cfg.OllamaURL(),
		Model:   cfg.Model(),
	})
	if err != nil {
		if config.Debug {
			config.DebugLog.Printf("[Provider] Ollama provider creation failed: %v", err)
		}
		return nil
	}
	return p
}
