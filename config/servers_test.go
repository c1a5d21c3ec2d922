package config

import (
	"sort"
	"testing"
)

func TestServersConfigRoundTrip(t *testing.T) {
	dataDir := t.TempDir()

	cfg := &ServersConfig{
		Servers: map[string]ServerConfigEntry{
			"filesystem": {
				Enabled: true,
				Command: "npx",
				Args:    []string{"-y", "@modelcontextprotocol/server-filesystem", "/tmp"},
			},
			"linear": {
				Enabled:   false,
				Transport: "sse",
				URL:       "https://mcp.linear.app/sse",
				Auth:      "oauth",
			},
		},
	}

	if err := SaveServersConfig(dataDir, cfg); err != nil {
		t.Fatalf("SaveServersConfig failed: %v", err)
	}

	loaded, err := LoadServersConfig(dataDir)
	if err != nil {
		t.Fatalf("LoadServersConfig failed: %v", err)
	}

	fs, ok := loaded.Servers["filesystem"]
	if !ok {
		t.Fatal("filesystem server missing after reload")
	}
	if !fs.Enabled || fs.Command != "npx" || len(fs.Args) != 3 {
		t.Errorf("filesystem entry corrupted: %+v", fs)
	}

	linear, ok := loaded.Servers["linear"]
	if !ok {
		t.Fatal("linear server missing after reload")
	}
	if linear.Transport != "sse" || linear.URL != "https://mcp.linear.app/sse" || linear.Auth != "oauth" {
		t.Errorf("linear entry corrupted: %+v", linear)
	}
}

func TestLoadServersConfigMissingFile(t *testing.T) {
	loaded, err := LoadServersConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadServersConfig on empty dir failed: %v", err)
	}
	if loaded.Servers == nil {
		t.Fatal("Servers map should be initialized")
	}
	if len(loaded.Servers) != 0 {
		t.Errorf("expected no servers, got %d", len(loaded.Servers))
	}
}

func TestEnabledServers(t *testing.T) {
	cfg := &ServersConfig{
		Servers: map[string]ServerConfigEntry{
			"a": {Enabled: true},
			"b": {Enabled: false},
			"c": {Enabled: true},
		},
	}

	ids := cfg.EnabledServers()
	sort.Strings(ids)
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "c" {
		t.Errorf("EnabledServers = %v, want [a c]", ids)
	}
}

func TestSetServerEnabledPreservesConfig(t *testing.T) {
	cfg := &ServersConfig{}
	cfg.SetServerConfig("github", map[string]string{"GITHUB_HOST": "github.com"})
	cfg.SetServerEnabled("github", true)

	if !cfg.GetServerEnabled("github") {
		t.Error("server should be enabled")
	}
	if got := cfg.GetServerConfig("github")["GITHUB_HOST"]; got != "github.com" {
		t.Errorf("config value lost: got %q", got)
	}
}

func TestIsSensitiveKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"GITHUB_TOKEN", true},
		{"api_key", true},
		{"client_secret", true},
		{"PASSWORD", true},
		{"AUTH_HEADER", true},
		{"GITHUB_HOST", false},
		{"workspace", false},
		{"timeout", false},
	}

	for _, tt := range tests {
		if got := isSensitiveKey(tt.key); got != tt.want {
			t.Errorf("isSensitiveKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}
