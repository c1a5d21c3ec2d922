package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestExpandPath(t *testing.T) {
	home := GetHomeDir()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"tilde prefix", "~/data", filepath.Join(home, "data")},
		{"absolute unchanged", "/var/lib/agentloop", "/var/lib/agentloop"},
		{"empty unchanged", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandPath(tt.input); got != tt.want {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("AGENTLOOP_OLLAMA_HOST", "http://gpu-box:11434")
	t.Setenv("AGENTLOOP_OLLAMA_MODEL", "qwen2.5:14b")
	t.Setenv("AGENTLOOP_DATA_DIR", "/tmp/agentloop-test")
	t.Setenv("AGENTLOOP_PROVIDER", "openrouter")

	cfg := &Config{
		OllamaHost:      "http://localhost:11434",
		DefaultModel:    "llama3.1:latest",
		DataDirectory:   "~/.local/share/agentloop",
		DefaultProvider: "ollama",
	}
	cfg.applyEnvOverrides()

	if cfg.OllamaHost != "http://gpu-box:11434" {
		t.Errorf("OllamaHost = %q", cfg.OllamaHost)
	}
	if cfg.DefaultModel != "qwen2.5:14b" {
		t.Errorf("DefaultModel = %q", cfg.DefaultModel)
	}
	if cfg.DataDirectory != "/tmp/agentloop-test" {
		t.Errorf("DataDirectory = %q", cfg.DataDirectory)
	}
	if cfg.DefaultProvider != "openrouter" {
		t.Errorf("DefaultProvider = %q", cfg.DefaultProvider)
	}
}

func TestHasAllEnvVars(t *testing.T) {
	t.Setenv("AGENTLOOP_OLLAMA_HOST", "http://localhost:11434")
	t.Setenv("AGENTLOOP_OLLAMA_MODEL", "llama3.1:latest")
	t.Setenv("AGENTLOOP_DATA_DIR", "")

	if HasAllEnvVars() {
		t.Error("HasAllEnvVars should be false with AGENTLOOP_DATA_DIR unset")
	}
	if !HasAnyEnvVar() {
		t.Error("HasAnyEnvVar should be true with two vars set")
	}
	if got := GetMissingEnvVar(); got != "AGENTLOOP_DATA_DIR" {
		t.Errorf("GetMissingEnvVar = %q, want AGENTLOOP_DATA_DIR", got)
	}
}

func TestToolTimeout(t *testing.T) {
	cfg := &Config{Agent: AgentConfig{ToolTimeoutSeconds: 45}}
	if got := cfg.ToolTimeout(); got != 45*time.Second {
		t.Errorf("ToolTimeout = %v, want 45s", got)
	}

	cfg = &Config{}
	if got := cfg.ToolTimeout(); got != 0 {
		t.Errorf("ToolTimeout with no setting = %v, want 0", got)
	}
}

func TestUserConfigRoundTrip(t *testing.T) {
	dataDir := t.TempDir()

	cfg := DefaultUserConfig()
	cfg.DefaultProvider = "anthropic"
	cfg.DefaultSystemPrompt = "You are terse."
	cfg.Agent.MaxToolCycles = 4
	cfg.Providers = []ProviderConfig{
		{ID: "anthropic", Name: "Anthropic", Enabled: true, BaseURL: "https://api.anthropic.com"},
	}

	if err := SaveUserConfig(cfg, dataDir); err != nil {
		t.Fatalf("SaveUserConfig failed: %v", err)
	}

	loaded, err := LoadUserConfig(dataDir)
	if err != nil {
		t.Fatalf("LoadUserConfig failed: %v", err)
	}

	if loaded.DefaultProvider != "anthropic" {
		t.Errorf("DefaultProvider = %q", loaded.DefaultProvider)
	}
	if loaded.DefaultSystemPrompt != "You are terse." {
		t.Errorf("DefaultSystemPrompt = %q", loaded.DefaultSystemPrompt)
	}
	if loaded.Agent.MaxToolCycles != 4 {
		t.Errorf("MaxToolCycles = %d", loaded.Agent.MaxToolCycles)
	}
	if len(loaded.Providers) != 1 || !loaded.Providers[0].Enabled {
		t.Errorf("Providers = %+v", loaded.Providers)
	}

	// The config file should exist with restrictive permissions.
	info, err := os.Stat(filepath.Join(dataDir, "config.toml"))
	if err != nil {
		t.Fatalf("config.toml missing: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config.toml permissions = %o, want 0600", perm)
	}
}

func TestKeybindingActionLookup(t *testing.T) {
	kb := DefaultKeybindings()

	if got := kb.GetActionKey("quit"); got != "alt+q" {
		t.Errorf("quit = %q, want alt+q", got)
	}
	if got := kb.GetActionKey("half_page_down"); got != "alt+J" {
		t.Errorf("half_page_down = %q, want alt+J", got)
	}
	if got := kb.GetActionKey("no_such_action"); got != "" {
		t.Errorf("unknown action = %q, want empty", got)
	}

	kb.Actions = map[string]string{"quit": "ctrl+shift+q"}
	if got := kb.GetActionKey("quit"); got != "ctrl+shift+q" {
		t.Errorf("override quit = %q, want ctrl+shift+q", got)
	}
}
