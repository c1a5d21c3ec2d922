package mcp

import (
	"context"
	"fmt"
	"sync"

	globalconfig "agentloop/config"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// Manager is the facade the rest of the application talks to. It reads
// the server definitions from servers.toml, starts the enabled ones,
// and exposes their tools under namespaced names.
type Manager struct {
	cfg        *globalconfig.Config
	processes  *ProcessManager
	aggregator *ToolAggregator

	mu     sync.RWMutex
	active []string
	failed map[string]error
}

func NewManager(cfg *globalconfig.Config) *Manager {
	pm := NewProcessManager(cfg.DataDir(), cfg)
	return &Manager{
		cfg:        cfg,
		processes:  pm,
		aggregator: NewToolAggregator(pm),
		failed:     make(map[string]error),
	}
}

// StartEnabledServers starts every enabled server from servers.toml.
// Individual failures are recorded (see FailedServers) rather than
// aborting startup, so one broken server doesn't take out the rest.
func (m *Manager) StartEnabledServers(ctx context.Context) error {
	serversCfg, err := globalconfig.LoadServersConfig(m.cfg.DataDir())
	if err != nil {
		return fmt.Errorf("failed to load servers config: %w", err)
	}

	for _, serverID := range serversCfg.EnabledServers() {
		entry := serversCfg.Servers[serverID]

		values, err := globalconfig.LoadServerConfigSecure(m.cfg, serversCfg, serverID)
		if err != nil {
			m.recordFailure(serverID, err)
			continue
		}

		serverCfg := ServerConfig{
			ID:        serverID,
			Command:   entry.Command,
			Args:      entry.Args,
			Env:       values,
			Transport: entry.Transport,
			ServerURL: entry.URL,
			AuthType:  entry.Auth,
		}

		if err := m.processes.StartServer(ctx, serverCfg); err != nil {
			if globalconfig.DebugLog != nil {
				globalconfig.DebugLog.Printf("[MCP] Manager: server '%s' failed to start: %v", serverID, err)
			}
			m.recordFailure(serverID, err)
			continue
		}

		m.mu.Lock()
		m.active = append(m.active, serverID)
		m.mu.Unlock()

		if globalconfig.DebugLog != nil {
			globalconfig.DebugLog.Printf("[MCP] Manager: server '%s' started", serverID)
		}
	}

	return nil
}

func (m *Manager) recordFailure(serverID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[serverID] = err
}

// ActiveServers returns the IDs of servers that started successfully.
func (m *Manager) ActiveServers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, len(m.active))
	copy(ids, m.active)
	return ids
}

// FailedServers returns startup errors keyed by server ID.
func (m *Manager) FailedServers() map[string]error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	failed := make(map[string]error, len(m.failed))
	for id, err := range m.failed {
		failed[id] = err
	}
	return failed
}

// Tools returns the namespaced tools of all active servers.
func (m *Manager) Tools(ctx context.Context) ([]mcptypes.Tool, error) {
	return m.aggregator.GetToolsForServers(ctx, m.ActiveServers())
}

// ExecuteTool dispatches a namespaced tool call to the owning server.
func (m *Manager) ExecuteTool(ctx context.Context, toolName string, args map[string]any) (*mcptypes.CallToolResult, error) {
	return m.aggregator.ExecuteTool(ctx, toolName, args)
}

// Shutdown stops all running servers.
func (m *Manager) Shutdown(ctx context.Context) error {
	return m.processes.Shutdown(ctx)
}
