package mcp

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	globalconfig "agentloop/config"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// debugf logs to the shared debug log when one is configured.
func debugf(format string, args ...any) {
	if globalconfig.DebugLog != nil {
		globalconfig.DebugLog.Printf("[MCP] "+format, args...)
	}
}

// ProcessManager owns the lifecycle of tool server connections: child
// processes for stdio servers and transports for remote ones.
type ProcessManager struct {
	processes map[string]*ServerProcess
	dataDir   string
	config    *globalconfig.Config
	mu        sync.RWMutex
}

func NewProcessManager(dataDir string, cfg *globalconfig.Config) *ProcessManager {
	return &ProcessManager{
		processes: make(map[string]*ServerProcess),
		dataDir:   dataDir,
		config:    cfg,
	}
}

// StartServer connects to one server, performs the protocol handshake, and
// caches its tool list. A config with a ServerURL is remote; anything else
// spawns a local child over stdio.
func (pm *ProcessManager) StartServer(ctx context.Context, config ServerConfig) error {
	pm.mu.Lock()
	if proc := pm.processes[config.ID]; proc != nil && proc.Running {
		pm.mu.Unlock()
		return fmt.Errorf("server %s already running", config.ID)
	}
	pm.mu.Unlock()

	isRemote := config.ServerURL != ""

	var mcpClient *client.Client
	var cmd *exec.Cmd
	var err error
	if isRemote {
		mcpClient, err = pm.createRemoteClient(ctx, config)
		if err != nil {
			return fmt.Errorf("failed to connect to remote server %s: %w", config.ID, err)
		}
		debugf("connected to remote server %q at %s (auth: %s)", config.ID, config.ServerURL, config.AuthType)
	} else {
		mcpClient, cmd, err = pm.createLocalClient(ctx, config)
		if err != nil {
			return fmt.Errorf("failed to start local server %s: %w", config.ID, err)
		}
	}

	initReq := mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: "2025-06-18",
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    "agentloop",
				Version: "1.0.0",
			},
		},
	}
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		return fmt.Errorf("failed to initialize server %s: %w", config.ID, err)
	}

	toolsResult, err := mcpClient.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("failed to list tools for %s: %w", config.ID, err)
	}

	pm.mu.Lock()
	pm.processes[config.ID] = &ServerProcess{
		ID:        config.ID,
		Name:      config.ID,
		Process:   cmd, // nil for remote
		Client:    mcpClient,
		Tools:     toolsResult.Tools,
		Running:   true,
		IsRemote:  isRemote,
		ServerURL: config.ServerURL,
	}
	pm.mu.Unlock()

	return nil
}

// StopServer removes a server from the registry, closes its client, and
// kills the child process if the close hangs or fails.
func (pm *ProcessManager) StopServer(ctx context.Context, serverID string) error {
	pm.mu.Lock()
	proc, exists := pm.processes[serverID]
	if !exists {
		pm.mu.Unlock()
		return fmt.Errorf("server %s not found", serverID)
	}
	// Unregister first so no new calls reach a half-closed client.
	proc.Running = false
	delete(pm.processes, serverID)
	pm.mu.Unlock()

	clientClosed := false
	if proc.Client != nil {
		closeCtx, cancel := context.WithTimeout(ctx, 1*time.Second)
		defer cancel()

		debugf("stopping %q, waiting up to 1s for client close", serverID)

		done := make(chan error, 1)
		go func() { done <- proc.Client.Close() }()

		select {
		case err := <-done:
			clientClosed = err == nil
		case <-closeCtx.Done():
			// close is hanging; fall through to the kill
		}
	}

	if !clientClosed && !proc.IsRemote && proc.Process != nil && proc.Process.Process != nil {
		debugf("killing %q (pid %d)", serverID, proc.Process.Process.Pid)
		if err := proc.Process.Process.Kill(); err != nil {
			debugf("kill %q: %v", serverID, err)
		}
	}

	debugf("server %q stopped", serverID)
	return nil
}

func (pm *ProcessManager) GetClient(serverID string) (*client.Client, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	proc, exists := pm.processes[serverID]
	if !exists || !proc.Running {
		return nil, fmt.Errorf("server %s not running", serverID)
	}
	return proc.Client, nil
}

func (pm *ProcessManager) GetTools(serverID string) ([]mcptypes.Tool, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	proc, exists := pm.processes[serverID]
	if !exists || !proc.Running {
		return nil, fmt.Errorf("server %s not running", serverID)
	}
	return proc.Tools, nil
}

// RefreshTools re-fetches a server's tool list, replacing the cached one.
func (pm *ProcessManager) RefreshTools(ctx context.Context, serverID string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	proc, exists := pm.processes[serverID]
	if !exists || !proc.Running {
		return fmt.Errorf("server %s not running", serverID)
	}

	toolsResult, err := proc.Client.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("failed to refresh tools: %w", err)
	}
	proc.Tools = toolsResult.Tools
	return nil
}

// RunningServers returns the IDs of all running servers.
func (pm *ProcessManager) RunningServers() []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	ids := make([]string, 0, len(pm.processes))
	for id, proc := range pm.processes {
		if proc.Running {
			ids = append(ids, id)
		}
	}
	return ids
}

// Shutdown stops every server concurrently and aggregates any errors.
func (pm *ProcessManager) Shutdown(ctx context.Context) error {
	pm.mu.Lock()
	serverIDs := make([]string, 0, len(pm.processes))
	for id := range pm.processes {
		serverIDs = append(serverIDs, id)
	}
	pm.mu.Unlock()

	debugf("shutting down %d servers", len(serverIDs))

	var wg sync.WaitGroup
	errChan := make(chan error, len(serverIDs))
	for _, serverID := range serverIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := pm.StopServer(ctx, id); err != nil {
				debugf("shutdown of %q: %v", id, err)
				errChan <- err
			}
		}(serverID)
	}
	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// createRemoteClient picks the transport and auth flavor for a remote
// server. SSE is the default transport.
func (pm *ProcessManager) createRemoteClient(ctx context.Context, config ServerConfig) (*client.Client, error) {
	tr := config.Transport
	if tr == "" {
		tr = "sse"
	}

	switch tr {
	case "http", "streamable-http":
		return pm.createStreamableHTTPClient(ctx, config)
	case "sse":
		switch config.AuthType {
		case "oauth":
			return pm.createOAuthClient(ctx, config)
		case "headers", "none", "":
			return pm.createHeadersClient(ctx, config)
		default:
			return nil, fmt.Errorf("unknown auth type: %s", config.AuthType)
		}
	default:
		return nil, fmt.Errorf("unknown transport type: %s", tr)
	}
}

// createHeadersClient builds an SSE client whose env entries are sent as
// request headers; with no entries that amounts to no auth.
func (pm *ProcessManager) createHeadersClient(ctx context.Context, config ServerConfig) (*client.Client, error) {
	var opts []transport.ClientOption
	if len(config.Env) > 0 {
		headers := make(map[string]string, len(config.Env))
		for key, value := range config.Env {
			headers[key] = value
		}
		opts = append(opts, transport.WithHeaders(headers))
	}

	mcpClient, err := client.NewSSEMCPClient(config.ServerURL, opts...)
	if err != nil {
		return nil, err
	}

	// The transport must be started before Initialize/ListTools.
	if err := mcpClient.GetTransport().Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start SSE transport: %w", err)
	}

	debugf("started SSE transport for %s (auth: %s)", config.ID, config.AuthType)
	return mcpClient, nil
}

// createOAuthClient builds an SSE client that authenticates via OAuth with
// PKCE. Tokens persist through the credential store's encryption settings;
// without a recognized storage method they live only in memory.
func (pm *ProcessManager) createOAuthClient(ctx context.Context, config ServerConfig) (*client.Client, error) {
	clientID := config.Env["OAUTH_CLIENT_ID"]
	redirectURI := config.Env["OAUTH_REDIRECT_URI"]
	if clientID == "" {
		return nil, fmt.Errorf("OAUTH_CLIENT_ID required for OAuth auth")
	}
	if redirectURI == "" {
		return nil, fmt.Errorf("OAUTH_REDIRECT_URI required for OAuth auth")
	}

	var scopes []string
	if s := config.Env["OAUTH_SCOPES"]; s != "" {
		scopes = strings.Split(s, ",")
	}

	var tokenStore transport.TokenStore
	switch pm.config.Security.CredentialStorage {
	case string(globalconfig.SecuritySSHKey):
		tokenStore = globalconfig.NewFileTokenStore(
			config.ID,
			pm.dataDir,
			globalconfig.SecuritySSHKey,
			pm.config.CredentialStore.GetEncryptionManager(),
		)
	case string(globalconfig.SecurityPlainText):
		tokenStore = globalconfig.NewFileTokenStore(
			config.ID,
			pm.dataDir,
			globalconfig.SecurityPlainText,
			nil,
		)
	default:
		tokenStore = transport.NewMemoryTokenStore()
	}

	mcpClient, err := client.NewOAuthSSEClient(config.ServerURL, client.OAuthConfig{
		ClientID:     clientID,
		ClientSecret: config.Env["OAUTH_CLIENT_SECRET"],
		RedirectURI:  redirectURI,
		Scopes:       scopes,
		TokenStore:   tokenStore,
		PKCEEnabled:  true,
	})
	if err != nil {
		return nil, err
	}

	if err := mcpClient.GetTransport().Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start SSE transport: %w", err)
	}

	debugf("created OAuth client for %s (client_id: %s, scopes: %v)", config.ID, clientID, scopes)
	return mcpClient, nil
}

// createStreamableHTTPClient builds a streamable-HTTP client; env entries
// become request headers as with the SSE headers client.
func (pm *ProcessManager) createStreamableHTTPClient(ctx context.Context, config ServerConfig) (*client.Client, error) {
	var opts []transport.StreamableHTTPCOption
	if len(config.Env) > 0 {
		headers := make(map[string]string, len(config.Env))
		for key, value := range config.Env {
			headers[key] = value
		}
		opts = append(opts, transport.WithHTTPHeaders(headers))
	}

	mcpClient, err := client.NewStreamableHttpClient(config.ServerURL, opts...)
	if err != nil {
		return nil, err
	}

	if err := mcpClient.GetTransport().Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start HTTP transport: %w", err)
	}

	debugf("started streamable HTTP transport for %s", config.ID)
	return mcpClient, nil
}

// createLocalClient spawns a stdio server as a child process. The command
// hook captures the exec.Cmd so StopServer can kill a hung child.
func (pm *ProcessManager) createLocalClient(ctx context.Context, config ServerConfig) (*client.Client, *exec.Cmd, error) {
	debugf("starting local server %q: %s %v", config.ID, config.Command, config.Args)

	var captured *exec.Cmd
	cmdFunc := func(ctx context.Context, command string, env []string, args []string) (*exec.Cmd, error) {
		cmd := exec.CommandContext(ctx, command, args...)
		cmd.Env = env
		captured = cmd
		return cmd, nil
	}

	mcpClient, err := client.NewStdioMCPClientWithOptions(
		config.Command,
		configToEnv(config.Env, config.Config),
		config.Args,
		transport.WithCommandFunc(cmdFunc),
	)
	if err != nil {
		return nil, nil, err
	}

	if captured != nil && captured.Process != nil {
		debugf("local server %q running with pid %d", config.ID, captured.Process.Pid)
	}
	return mcpClient, captured, nil
}

// configToEnv layers the server's env and config values over the current
// process environment, keeping PATH and friends intact.
func configToEnv(envMap, configMap map[string]string) []string {
	env := os.Environ()
	for k, v := range envMap {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	for k, v := range configMap {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}
