package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ServerConfigEntry defines one MCP tool server in servers.toml.
//
// Local servers run as child processes over stdio and need Command
// (plus optional Args). Remote servers set Transport to "sse" or
// "http" and need URL; Auth selects how the connection authenticates.
type ServerConfigEntry struct {
	Enabled       bool              `toml:"enabled"`
	Command       string            `toml:"command,omitempty"`
	Args          []string          `toml:"args,omitempty"`
	Transport     string            `toml:"transport,omitempty"` // "stdio" (default), "sse", "http"
	URL           string            `toml:"url,omitempty"`
	Auth          string            `toml:"auth,omitempty"`           // "none" (default), "bearer", "oauth"
	Config        map[string]string `toml:"config,omitempty"`         // Non-sensitive OR all values if plaintext
	SensitiveKeys []string          `toml:"sensitive_keys,omitempty"` // Keys stored in CredentialStore
}

type ServersConfig struct {
	Servers map[string]ServerConfigEntry `toml:"servers"`
}

func LoadServersConfig(dataDir string) (*ServersConfig, error) {
	serversConfigPath := filepath.Join(dataDir, "servers.toml")

	if _, err := os.Stat(serversConfigPath); os.IsNotExist(err) {
		return &ServersConfig{
			Servers: make(map[string]ServerConfigEntry),
		}, nil
	}

	var config ServersConfig
	if _, err := toml.DecodeFile(serversConfigPath, &config); err != nil {
		return nil, fmt.Errorf("failed to decode servers config: %w", err)
	}

	if config.Servers == nil {
		config.Servers = make(map[string]ServerConfigEntry)
	}

	return &config, nil
}

func SaveServersConfig(dataDir string, config *ServersConfig) error {
	serversConfigPath := filepath.Join(dataDir, "servers.toml")

	// Data dir should already exist with correct perms from config.Load()
	// But ensure it exists just in case (0700 - user-only access)
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Create file with secure permissions (0600 - may contain API keys)
	f, err := os.OpenFile(serversConfigPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create servers config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to encode servers config: %w", err)
	}

	return nil
}

func (sc *ServersConfig) GetServerEnabled(serverID string) bool {
	entry, exists := sc.Servers[serverID]
	if !exists {
		return false
	}
	return entry.Enabled
}

func (sc *ServersConfig) SetServerEnabled(serverID string, enabled bool) {
	if sc.Servers == nil {
		sc.Servers = make(map[string]ServerConfigEntry)
	}

	entry, exists := sc.Servers[serverID]
	if !exists {
		entry = ServerConfigEntry{
			Config: make(map[string]string),
		}
	}

	entry.Enabled = enabled
	sc.Servers[serverID] = entry
}

func (sc *ServersConfig) GetServerConfig(serverID string) map[string]string {
	entry, exists := sc.Servers[serverID]
	if !exists {
		return make(map[string]string)
	}

	if entry.Config == nil {
		return make(map[string]string)
	}

	return entry.Config
}

func (sc *ServersConfig) SetServerConfig(serverID string, config map[string]string) {
	if sc.Servers == nil {
		sc.Servers = make(map[string]ServerConfigEntry)
	}

	entry, exists := sc.Servers[serverID]
	if !exists {
		entry = ServerConfigEntry{
			Enabled: false,
		}
	}

	entry.Config = config
	sc.Servers[serverID] = entry
}

func (sc *ServersConfig) DeleteServer(serverID string) {
	if sc.Servers == nil {
		return
	}
	delete(sc.Servers, serverID)
}

// EnabledServers returns the IDs of all enabled servers in stable order.
func (sc *ServersConfig) EnabledServers() []string {
	ids := make([]string, 0, len(sc.Servers))
	for id, entry := range sc.Servers {
		switch {
		case entry.Enabled:
			ids = append(ids, id)
		}
	}
	return ids
}

// isSensitiveKey determines if a key contains sensitive data
func isSensitiveKey(key string) bool {
	upperKey := strings.ToUpper(key)
	sensitiveWords := []string{"KEY", "TOKEN", "SECRET", "PASSWORD", "AUTH", "CREDENTIAL", "BEARER"}
	for _, word := range sensitiveWords {
		switch {
		case strings.Contains(upperKey, word):
			return true
		}
	}
	return false
}

// SaveServerConfigSecure saves server config with proper security handling
func SaveServerConfigSecure(cfg *Config, dataDir string, serversConfig *ServersConfig, serverID string, configValues map[string]string) error {
	switch cfg.Security.CredentialStorage {
	case string(SecuritySSHKey):
		// Separate sensitive from non-sensitive
		sensitiveKeys := []string{}
		plaintextConfig := make(map[string]string)

		for key, value := range configValues {
			isSensitive := isSensitiveKey(key)
			switch {
			case isSensitive:
				// Store in CredentialStore (encrypted)
				if err := cfg.CredentialStore.SetServer(serverID, key, value); err != nil {
					return fmt.Errorf("failed to save sensitive key %s: %w", key, err)
				}
				sensitiveKeys = append(sensitiveKeys, key)
			default:
				// Store in plaintext TOML
				plaintextConfig[key] = value
			}
		}

		// Save config entry, preserving the non-config fields
		entry := serversConfig.Servers[serverID]
		entry.Enabled = serversConfig.GetServerEnabled(serverID)
		entry.Config = plaintextConfig
		entry.SensitiveKeys = sensitiveKeys
		serversConfig.Servers[serverID] = entry

		// Save encrypted credentials
		return cfg.CredentialStore.Save(dataDir)

	case string(SecurityPlainText):
		// Store everything in plaintext
		entry := serversConfig.Servers[serverID]
		entry.Enabled = serversConfig.GetServerEnabled(serverID)
		entry.Config = configValues
		entry.SensitiveKeys = []string{} // Empty - using plaintext
		serversConfig.Servers[serverID] = entry
		return nil

	default:
		return fmt.Errorf("unknown security method: %s", cfg.Security.CredentialStorage)
	}
}

// LoadServerConfigSecure loads server config with proper security handling
func LoadServerConfigSecure(cfg *Config, serversConfig *ServersConfig, serverID string) (map[string]string, error) {
	entry, exists := serversConfig.Servers[serverID]
	switch {
	case !exists:
		return make(map[string]string), nil
	}

	result := make(map[string]string)

	// Load plaintext config
	for key, value := range entry.Config {
		result[key] = value
	}

	// Load sensitive keys from CredentialStore (only if using encryption)
	switch cfg.Security.CredentialStorage {
	case string(SecuritySSHKey):
		for _, key := range entry.SensitiveKeys {
			value := cfg.CredentialStore.GetServer(serverID, key)
			switch {
			case value == "":
				continue
			}
			result[key] = value
		}
	case string(SecurityPlainText):
		// All values already in Config, nothing more to load
	default:
		return nil, fmt.Errorf("unknown security method: %s", cfg.Security.CredentialStorage)
	}

	return result, nil
}
