package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
}

type OllamaConfig struct {
	Host         string `toml:"host"`
	DefaultModel string `toml:"default_model"`
}

// ProviderConfig describes one model provider entry in the user config.
type ProviderConfig struct {
	ID      string `toml:"id"`
	Name    string `toml:"name,omitempty"`
	Enabled bool   `toml:"enabled"`
	BaseURL string `toml:"base_url,omitempty"`
}

// AgentConfig holds the turn-execution limits.
type AgentConfig struct {
	MaxToolCycles      int `toml:"max_tool_cycles"`
	ToolTimeoutSeconds int `toml:"tool_timeout_seconds"`
}

// PushoverConfig enables push notifications for questions the assistant
// cannot answer. The user key and API token live in the credential
// store under "pushover_user" and "pushover_token".
type PushoverConfig struct {
	Enabled  bool   `toml:"enabled"`
	UserKey  string `toml:"-"`
	APIToken string `toml:"-"`
}

// SecurityConfig selects how API credentials are stored at rest.
type SecurityConfig struct {
	CredentialStorage string `toml:"credential_storage,omitempty"` // "plaintext" or "ssh_key"
	SSHKeyPath        string `toml:"ssh_key_path,omitempty"`
}

type UserConfig struct {
	Ollama              OllamaConfig     `toml:"ollama"`
	DefaultProvider     string           `toml:"default_provider,omitempty"`
	DefaultSystemPrompt string           `toml:"default_system_prompt,omitempty"`
	ServersEnabled      bool             `toml:"servers_enabled"`
	Providers           []ProviderConfig `toml:"providers,omitempty"`
	Agent               AgentConfig      `toml:"agent,omitempty"`
	Pushover            PushoverConfig   `toml:"pushover,omitempty"`
	Security            SecurityConfig   `toml:"security,omitempty"`
}

type Config struct {
	DataDirectory       string
	OllamaHost          string
	DefaultModel        string
	DefaultProvider     string
	DefaultSystemPrompt string
	ServersEnabled      bool
	Providers           []ProviderConfig
	Agent               AgentConfig
	Pushover            PushoverConfig
	Security            SecurityConfig
	CredentialStore     *CredentialStore
}

var Debug = false
var DebugLog *log.Logger

func (c *Config) OllamaURL() string {
	return c.OllamaHost
}

func (c *Config) Model() string {
	return c.DefaultModel
}

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// ToolTimeout returns the per-call timeout as a duration. Zero means
// no timeout.
func (c *Config) ToolTimeout() time.Duration {
	return time.Duration(c.Agent.ToolTimeoutSeconds) * time.Second
}

func (c *Config) applyEnvOverrides() {
	if host := os.Getenv("AGENTLOOP_OLLAMA_HOST"); host != "" {
		c.OllamaHost = host
	}
	if model := os.Getenv("AGENTLOOP_OLLAMA_MODEL"); model != "" {
		c.DefaultModel = model
	}
	if dataDir := os.Getenv("AGENTLOOP_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
	if provider := os.Getenv("AGENTLOOP_PROVIDER"); provider != "" {
		c.DefaultProvider = provider
	}
	if user := os.Getenv("AGENTLOOP_PUSHOVER_USER"); user != "" {
		c.Pushover.UserKey = user
		c.Pushover.Enabled = true
	}
	if token := os.Getenv("AGENTLOOP_PUSHOVER_TOKEN"); token != "" {
		c.Pushover.APIToken = token
	}
}

func CheckDebug() bool {
	debug := os.Getenv("AGENTLOOP_DEBUG")
	return debug == "true" || debug == "1"
}

func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	Debug = true
	logPath := filepath.Join(dataDir, "debug.log")

	// Create debug log with secure permissions (0600 - may contain sensitive debug info)
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return
	}

	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (AGENTLOOP_DEBUG=%s) ===", os.Getenv("AGENTLOOP_DEBUG"))
	DebugLog.Printf("Log path: %s", logPath)
}

func HasAllEnvVars() bool {
	return os.Getenv("AGENTLOOP_OLLAMA_HOST") != "" &&
		os.Getenv("AGENTLOOP_OLLAMA_MODEL") != "" &&
		os.Getenv("AGENTLOOP_DATA_DIR") != ""
}

func HasAnyEnvVar() bool {
	return os.Getenv("AGENTLOOP_OLLAMA_HOST") != "" ||
		os.Getenv("AGENTLOOP_OLLAMA_MODEL") != "" ||
		os.Getenv("AGENTLOOP_DATA_DIR") != ""
}

func GetMissingEnvVar() string {
	if os.Getenv("AGENTLOOP_OLLAMA_HOST") == "" {
		return "AGENTLOOP_OLLAMA_HOST"
	}
	if os.Getenv("AGENTLOOP_OLLAMA_MODEL") == "" {
		return "AGENTLOOP_OLLAMA_MODEL"
	}
	if os.Getenv("AGENTLOOP_DATA_DIR") == "" {
		return "AGENTLOOP_DATA_DIR"
	}
	return ""
}

// applyUserConfig copies the resolved user config into the runtime config.
func (c *Config) applyUserConfig(userCfg *UserConfig) {
	c.OllamaHost = userCfg.Ollama.Host
	c.DefaultModel = userCfg.Ollama.DefaultModel
	c.DefaultProvider = userCfg.DefaultProvider
	c.DefaultSystemPrompt = userCfg.DefaultSystemPrompt
	c.ServersEnabled = userCfg.ServersEnabled
	c.Providers = userCfg.Providers
	c.Pushover = userCfg.Pushover
	c.Security = userCfg.Security

	if userCfg.Agent.MaxToolCycles > 0 {
		c.Agent.MaxToolCycles = userCfg.Agent.MaxToolCycles
	}
	if userCfg.Agent.ToolTimeoutSeconds > 0 {
		c.Agent.ToolTimeoutSeconds = userCfg.Agent.ToolTimeoutSeconds
	}
}

func Load() (*Config, error) {
	cfg := &Config{
		DataDirectory:   "~/.local/share/agentloop",
		OllamaHost:      "http://localhost:11434",
		DefaultModel:    "llama3.1:latest",
		DefaultProvider: "ollama",
		Agent: AgentConfig{
			MaxToolCycles:      10,
			ToolTimeoutSeconds: 60,
		},
		Security: SecurityConfig{
			CredentialStorage: string(SecurityPlainText),
		},
	}

	settingsPath := GetSettingsFilePath()
	settingsExist := FileExists(settingsPath)

	if !settingsExist && HasAllEnvVars() {
		cfg.applyEnvOverrides()
	} else {
		systemCfg, err := LoadSystemConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load system config: %w", err)
		}
		cfg.DataDirectory = systemCfg.DataDirectory

		dataDir := cfg.DataDir()
		userCfg, err := LoadUserConfig(dataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
		cfg.applyUserConfig(userCfg)
		cfg.applyEnvOverrides()
	}

	if cfg.Security.CredentialStorage == "" {
		cfg.Security.CredentialStorage = string(SecurityPlainText)
	}

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// Ensure data directory has correct permissions (fix if needed)
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to set data directory permissions: %w", err)
	}

	keyPath := ExpandPath(cfg.Security.SSHKeyPath)
	if keyPath == "" && cfg.Security.CredentialStorage == string(SecuritySSHKey) {
		// No key configured: fall back to the first usable key in ~/.ssh.
		if found, err := FindSSHKeys(); err == nil && len(found) > 0 {
			keyPath = found[0]
		}
	}

	store := NewCredentialStore(SecurityMethod(cfg.Security.CredentialStorage), keyPath)
	if err := store.Load(dataDir); err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	cfg.CredentialStore = store

	if cfg.Pushover.UserKey == "" {
		cfg.Pushover.UserKey = store.Get("pushover_user")
	}
	if cfg.Pushover.APIToken == "" {
		cfg.Pushover.APIToken = store.Get("pushover_token")
	}

	return cfg, nil
}
