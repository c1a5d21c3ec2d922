package config

import (
	"fmt"
)

// providerDefaults carries the static facts about each supported
// provider id.
var providerDefaults = map[string]struct {
	Name    string
	BaseURL string
}{
	"ollama":     {Name: "Ollama"},
	"openrouter": {Name: "OpenRouter", BaseURL: "https://openrouter.ai/api/v1"},
	"anthropic":  {Name: "Anthropic", BaseURL: "https://api.anthropic.com"},
	"openai":     {Name: "OpenAI", BaseURL: "https://api.openai.com/v1"},
}

// UpdateProviderField updates a single provider configuration field
// and persists it. API keys go to the credential store; everything
// else lands in the user config.
//
// Fields:
//   - ollama: "host", "enabled"
//   - cloud providers: "apikey", "enabled"
func UpdateProviderField(dataDir, providerID, fieldName, value string) error {
	if _, known := providerDefaults[providerID]; !known {
		return fmt.Errorf("unknown provider: %s", providerID)
	}

	if fieldName == "apikey" {
		if providerID == "ollama" {
			return fmt.Errorf("unknown field for ollama: %s", fieldName)
		}
		return storeProviderKey(dataDir, providerID, value)
	}

	cfg, err := LoadUserConfig(dataDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch fieldName {
	case "host":
		if providerID != "ollama" {
			return fmt.Errorf("unknown field for %s: %s", providerID, fieldName)
		}
		cfg.Ollama.Host = value
		// Keep the [[providers]] entry in sync.
		for i := range cfg.Providers {
			if cfg.Providers[i].ID == "ollama" {
				cfg.Providers[i].BaseURL = value
				break
			}
		}

	case "enabled":
		setProviderEnabled(cfg, providerID, value == "true")

	default:
		return fmt.Errorf("unknown field for %s: %s", providerID, fieldName)
	}

	if err := SaveUserConfig(cfg, dataDir); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// storeProviderKey writes an API key into the credential store. The
// user config file is not touched.
func storeProviderKey(dataDir, providerID, key string) error {
	fullCfg, err := Load()
	if err != nil {
		return fmt.Errorf("failed to load full config for credential update: %w", err)
	}
	if fullCfg.CredentialStore == nil {
		return nil
	}

	if err := fullCfg.CredentialStore.Set(providerID, key); err != nil {
		return fmt.Errorf("failed to set API key: %w", err)
	}
	if err := fullCfg.CredentialStore.Save(dataDir); err != nil {
		return fmt.Errorf("failed to persist credentials: %w", err)
	}
	return nil
}

// setProviderEnabled flips the enabled flag, adding the provider entry
// with its defaults when it is not listed yet.
func setProviderEnabled(cfg *UserConfig, providerID string, enabled bool) {
	for i := range cfg.Providers {
		if cfg.Providers[i].ID == providerID {
			cfg.Providers[i].Enabled = enabled
			return
		}
	}

	defaults := providerDefaults[providerID]
	cfg.Providers = append(cfg.Providers, ProviderConfig{
		ID:      providerID,
		Name:    defaults.Name,
		Enabled: enabled,
		BaseURL: defaults.BaseURL,
	})
}
