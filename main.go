package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"agentloop/agent"
	"agentloop/config"
	"agentloop/mcp"
	"agentloop/model"
	"agentloop/provider"
	"agentloop/sink"
	"agentloop/storage"
	"agentloop/tool"
	"agentloop/ui"
)

const (
	Version = "v0.01.00"
	License = "Apache-2.0"
)

func main() {
	checkMode := flag.Bool("check", false, "validate configured providers and exit")
	flag.Parse()

	if err := run(*checkMode); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runCheck validates every configured provider and prints what each
// one can serve. Exits non-zero if any enabled provider is unreachable.
func runCheck(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var failed bool

	models, err := provider.FetchModels(ctx, "ollama", "", "", cfg.OllamaURL())
	if err != nil {
		fmt.Printf("ollama: unreachable (%v)\n", err)
		failed = true
	} else {
		fmt.Printf("ollama: ok, %d models\n", len(models))
	}

	for _, pc := range cfg.Providers {
		if !pc.Enabled || pc.ID == "ollama" {
			continue
		}

		apiKey := ""
		if cfg.CredentialStore != nil {
			apiKey = cfg.CredentialStore.Get(pc.ID)
		}

		if err := provider.Validate(ctx, pc.ID, pc.BaseURL, apiKey); err != nil {
			fmt.Printf("%s: %v\n", pc.ID, err)
			failed = true
			continue
		}

		models, err := provider.FetchModels(ctx, pc.ID, pc.BaseURL, apiKey, "")
		if err != nil {
			fmt.Printf("%s: connected, but model listing failed (%v)\n", pc.ID, err)
			failed = true
			continue
		}
		fmt.Printf("%s: ok, %d models\n", pc.ID, len(models))
	}

	if failed {
		return fmt.Errorf("one or more providers failed validation")
	}
	return nil
}

func run(checkMode bool) error {
	// Validate environment variables first
	if config.HasAnyEnvVar() && !config.HasAllEnvVars() {
		return fmt.Errorf("missing environment variable: %s\n\n"+
			"When using environment variables, all 3 must be set:\n"+
			"  • AGENTLOOP_OLLAMA_HOST\n"+
			"  • AGENTLOOP_OLLAMA_MODEL\n"+
			"  • AGENTLOOP_DATA_DIR",
			config.GetMissingEnvVar())
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize debug logging after config is loaded
	config.InitDebugLog(cfg.DataDir())

	if checkMode {
		return runCheck(cfg)
	}

	// Clean up old tmp dir in cache directory (crash recovery)
	if err := config.CleanupTempDir(); err != nil && config.DebugLog != nil {
		config.DebugLog.Printf("Warning: failed to cleanup old temp directory: %v", err)
	}
	if err := config.CreateTempDir(); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() {
		if err := config.CleanupTempDir(); err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("Warning: failed to cleanup temp directory on exit: %v", err)
		}
	}()

	sessionStorage, err := storage.NewSessionStorage(cfg.DataDir())
	if err != nil {
		return fmt.Errorf("failed to initialize session storage: %w", err)
	}

	// Single-instance enforcement
	isLocked, runningPID, err := sessionStorage.CheckInstanceLock()
	if err != nil {
		return fmt.Errorf("failed to check instance lock: %w", err)
	}
	if isLocked {
		return fmt.Errorf("another agentloop instance is already running (PID %d)", runningPID)
	}
	if err := sessionStorage.LockInstance(); err != nil {
		return fmt.Errorf("failed to lock instance: %w", err)
	}
	defer func() {
		if err := sessionStorage.UnlockInstance(); err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("Warning: failed to unlock instance: %v", err)
		}
	}()

	// Side effects: pushover delivery (optional) + durable question ledger
	var notifier sink.Notifier
	if cfg.Pushover.Enabled {
		n, err := sink.NewPushoverNotifier(cfg.Pushover.UserKey, cfg.Pushover.APIToken)
		if err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("Warning: pushover disabled: %v", err)
			}
		} else {
			notifier = n
		}
	}

	ledger, err := sink.NewLedger(cfg.DataDir())
	if err != nil {
		return fmt.Errorf("failed to open question ledger: %w", err)
	}
	defer ledger.Close()

	effects := sink.NewHub(notifier, ledger)

	registry := tool.NewRegistry()
	if err := tool.RegisterBuiltins(registry, effects); err != nil {
		return fmt.Errorf("failed to register builtin tools: %w", err)
	}

	// External tool servers (optional)
	var mcpManager *mcp.Manager
	if cfg.ServersEnabled {
		mcpManager = mcp.NewManager(cfg)

		startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := mcpManager.StartEnabledServers(startCtx)
		cancel()
		if err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("Warning: tool servers unavailable: %v", err)
			}
		} else {
			regCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := mcp.RegisterTools(regCtx, mcpManager, registry); err != nil && config.DebugLog != nil {
				config.DebugLog.Printf("Warning: failed to register server tools: %v", err)
			}
			cancel()
			for id, serverErr := range mcpManager.FailedServers() {
				if config.DebugLog != nil {
					config.DebugLog.Printf("Warning: server %s failed to start: %v", id, serverErr)
				}
			}
		}

		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := mcpManager.Shutdown(stopCtx); err != nil && config.DebugLog != nil {
				config.DebugLog.Printf("Warning: server shutdown: %v", err)
			}
		}()
	}

	// Providers
	providers := provider.InitializeProviders(cfg)
	if len(providers) == 0 {
		return fmt.Errorf("no model provider available; check Ollama or configure a cloud provider")
	}

	prov := selectProvider(providers, cfg.DefaultProvider)
	if prov == nil {
		return fmt.Errorf("default provider %q is not configured", cfg.DefaultProvider)
	}

	// Resume last session if it exists and is not held by another instance
	var lastSession *storage.Session
	if lastSessionID, err := sessionStorage.LoadCurrentSessionID(); err == nil {
		sessionLocked, lockErr := sessionStorage.CheckSessionLock(lastSessionID)
		if lockErr == nil && !sessionLocked {
			lastSession, _ = sessionStorage.Load(lastSessionID)
		}
	}
	if lastSession == nil {
		lastSession = &storage.Session{}
	}
	if lastSession.ID != "" {
		if err := sessionStorage.LockSession(lastSession.ID); err == nil {
			defer func() { _ = sessionStorage.UnlockSession(lastSession.ID) }()
		}
	}

	switch {
	case lastSession.Model != "":
		prov.SetModel(lastSession.Model)
	case cfg.Model() != "":
		prov.SetModel(cfg.Model())
	}

	executor := agent.New(prov, registry, agent.Options{
		MaxCycles:      cfg.Agent.MaxToolCycles,
		PerCallTimeout: cfg.ToolTimeout(),
	})

	keys, err := config.LoadKeybindings(cfg.DataDir())
	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("Warning: keybindings config invalid, using defaults: %v", err)
		}
		keys = config.DefaultKeybindings()
	}

	view := ui.NewChatView(cfg, executor, prov, sessionStorage, lastSession, keys)
	if err := ui.Run(view); err != nil {
		return fmt.Errorf("error running agentloop: %w", err)
	}

	return nil
}

// selectProvider picks the configured default, falling back to Ollama,
// then to any initialized provider.
func selectProvider(providers map[string]model.Provider, defaultID string) model.Provider {
	if defaultID != "" {
		if p, ok := providers[defaultID]; ok && p != nil {
			return p
		}
	}
	if p, ok := providers["ollama"]; ok && p != nil {
		return p
	}
	for _, p := range providers {
		if p != nil {
			return p
		}
	}
	return nil
}
