package mcp

import (
	"os/exec"

	"github.com/mark3labs/mcp-go/client"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// ServerProcess tracks one running MCP tool server.
type ServerProcess struct {
	ID        string
	Name      string
	Process   *exec.Cmd // nil for remote servers
	Client    *client.Client
	Tools     []mcptypes.Tool
	Running   bool
	IsRemote  bool
	ServerURL string
	Error     error
}

// ServerConfig is everything needed to start one tool server.
// Local servers run Command over stdio; remote servers connect to
// ServerURL using the configured transport and auth.
type ServerConfig struct {
	ID        string
	Command   string
	Args      []string
	Env       map[string]string // extra env vars (local) or headers (remote)
	Config    map[string]string // resolved user config values, exported as env vars
	Transport string            // "stdio" (default when ServerURL empty), "sse", "http"
	ServerURL string
	AuthType  string // "none", "headers", "oauth"
}
