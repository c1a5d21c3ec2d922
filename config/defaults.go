package config

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: "~/.local/share/agentloop",
	}
}

func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		Ollama: OllamaConfig{
			Host:         "http://localhost:11434",
			DefaultModel: "llama3.1:latest",
		},
		DefaultProvider: "ollama",
		ServersEnabled:  false,
		Agent: AgentConfig{
			MaxToolCycles:      10,
			ToolTimeoutSeconds: 60,
		},
		Security: SecurityConfig{
			CredentialStorage: string(SecurityPlainText),
		},
	}
}

func GenerateSystemConfigTemplate() string {
	return `# agentloop System Configuration
# Location: ~/.config/agentloop/settings.toml
# This file uses TOML format: https://toml.io

# Directory where sessions and user config are stored
data_directory = "~/.local/share/agentloop"
`
}

func GenerateUserConfigTemplate() string {
	return `# agentloop User Configuration
# Location: <data_directory>/config.toml
# This file uses TOML format: https://toml.io

# Provider used when starting a new session: "ollama", "openrouter",
# "openai" or "anthropic". Cloud providers need an API key in the
# credential store and an entry in the [[providers]] list below.
default_provider = "ollama"

# Default system prompt for new sessions (optional)
# Example: "You are a helpful coding assistant."
default_system_prompt = ""

# External tool servers (disabled by default)
# Enable to use MCP servers for extended tool capabilities,
# configured in <data_directory>/servers.toml
servers_enabled = false

[ollama]
# Ollama server URL
host = "http://localhost:11434"

# Default model to use when starting a new session
default_model = "llama3.1:latest"

[agent]
# Maximum model-call cycles per turn before the turn is aborted
max_tool_cycles = 10

# Timeout in seconds for each model call and each tool execution
tool_timeout_seconds = 60

[pushover]
# Push a notification when the assistant logs a question it cannot
# answer. The user key and API token are read from the credential
# store ("pushover_user" / "pushover_token").
enabled = false

[security]
# How API credentials are stored: "plaintext" or "ssh_key"
credential_storage = "plaintext"

# Example cloud provider entry:
# [[providers]]
# id = "openrouter"
# name = "OpenRouter"
# enabled = true
# base_url = "https://openrouter.ai/api/v1"
`
}
