package config

import (
	"path/filepath"
	"testing"
)

func TestCredentialStorePlainTextRoundTrip(t *testing.T) {
	dataDir := t.TempDir()

	store := NewCredentialStore(SecurityPlainText, "")
	if err := store.Set("openrouter", "sk-or-test-123"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set("pushover_token", "azkq7"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Save(dataDir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded := NewCredentialStore(SecurityPlainText, "")
	if err := reloaded.Load(dataDir); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := reloaded.Get("openrouter"); got != "sk-or-test-123" {
		t.Errorf("Get(openrouter) = %q, want sk-or-test-123", got)
	}
	if got := reloaded.Get("pushover_token"); got != "azkq7" {
		t.Errorf("Get(pushover_token) = %q, want azkq7", got)
	}
	if got := reloaded.Get("missing"); got != "" {
		t.Errorf("Get(missing) = %q, want empty", got)
	}
}

func TestCredentialStoreLoadMissingFile(t *testing.T) {
	store := NewCredentialStore(SecurityPlainText, "")
	if err := store.Load(t.TempDir()); err != nil {
		t.Fatalf("Load of empty data dir should not fail: %v", err)
	}
	if got := store.Get("anything"); got != "" {
		t.Errorf("Get on empty store = %q, want empty", got)
	}
}

func TestCredentialStoreServerKeys(t *testing.T) {
	store := NewCredentialStore(SecurityPlainText, "")

	if err := store.SetServer("github", "GITHUB_TOKEN", "ghp_abc"); err != nil {
		t.Fatalf("SetServer failed: %v", err)
	}
	if err := store.SetServer("github", "GITHUB_HOST", "github.com"); err != nil {
		t.Fatalf("SetServer failed: %v", err)
	}
	if err := store.SetServer("jira", "JIRA_TOKEN", "jt-1"); err != nil {
		t.Fatalf("SetServer failed: %v", err)
	}

	if got := store.GetServer("github", "GITHUB_TOKEN"); got != "ghp_abc" {
		t.Errorf("GetServer = %q, want ghp_abc", got)
	}

	if err := store.DeleteServerAll("github"); err != nil {
		t.Fatalf("DeleteServerAll failed: %v", err)
	}
	if got := store.GetServer("github", "GITHUB_TOKEN"); got != "" {
		t.Errorf("GetServer after delete = %q, want empty", got)
	}
	if got := store.GetServer("jira", "JIRA_TOKEN"); got != "jt-1" {
		t.Errorf("DeleteServerAll removed another server's key: got %q", got)
	}
}

func TestCredentialsFilePermissions(t *testing.T) {
	dataDir := t.TempDir()

	store := NewCredentialStore(SecurityPlainText, "")
	if err := store.Set("openai", "sk-test"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Save(dataDir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	path := filepath.Join(dataDir, "credentials.toml")
	if !FileExists(path) {
		t.Fatalf("credentials file not written at %s", path)
	}
}
