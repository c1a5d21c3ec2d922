// Package ollama wraps the Ollama HTTP API behind a small client used
// by the provider layer.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"agentloop/model"

	"github.com/ollama/ollama/api"
)

const (
	defaultBaseURL = "http://localhost:11434"
	defaultModel   = "llama3.1:latest"
	pingTimeout    = 5 * time.Second
)

type Client struct {
	client  *api.Client
	model   string
	baseURL string
}

type StreamCallback func(chunk string, toolCalls []api.ToolCall) error

func NewClient(baseURL, modelName string) (*Client, error) {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if modelName == "" {
		modelName = defaultModel
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	return &Client{
		client:  api.NewClient(parsed, http.DefaultClient),
		model:   modelName,
		baseURL: baseURL,
	}, nil
}

// ChatWithTools streams a chat completion, invoking callback for every
// response chunk. Tool definitions may be nil.
func (c *Client) ChatWithTools(ctx context.Context, messages []api.Message, tools []api.Tool, callback StreamCallback) error {
	stream := true
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Tools:    tools,
		Stream:   &stream,
	}

	return c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		if callback == nil {
			return nil
		}
		return callback(resp.Message.Content, resp.Message.ToolCalls)
	})
}

func (c *Client) Chat(ctx context.Context, messages []api.Message, callback StreamCallback) error {
	return c.ChatWithTools(ctx, messages, nil, callback)
}

func (c *Client) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	resp, err := c.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	models := make([]model.ModelInfo, len(resp.Models))
	for i, m := range resp.Models {
		models[i] = model.ModelInfo{
			Name:     m.Name,
			Size:     m.Size,
			Provider: "ollama",
			// Ollama uses the same name for display and API.
			InternalName: m.Name,
		}
	}
	return models, nil
}

func (c *Client) SetModel(modelName string) {
	c.model = modelName
}

func (c *Client) GetModel() string {
	return c.model
}

// Ping checks daemon reachability with a short deadline.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	_, err := c.client.List(ctx)
	return err
}

// toolSupport maps model-name prefixes to whether that family handles
// Ollama's tool-calling API. Ordered most specific first so llama3.2
// is not swallowed by the generic llama3 entry. Curated from Ollama
// docs and community testing.
var toolSupport = []struct {
	prefix    string
	supported bool
}{
	{"llama3.3", true},
	{"llama3.2", true},
	{"llama3.1", true},
	{"llama3-gradient", false},
	{"command-r", true},
	{"qwen", true},
	{"mistral", true},
	{"nemotron", true},
	{"granite3", true},
	{"codellama", false},
	{"llama3", false},
	{"deepseek", false},
	{"phi", false},
	{"gemma", false},
}

// ModelSupportsToolCalling reports whether a model name is known to
// handle tool calls. Unknown families default to false.
func ModelSupportsToolCalling(modelName string) bool {
	modelName = strings.ToLower(modelName)
	for _, entry := range toolSupport {
		if strings.HasPrefix(modelName, entry.prefix) {
			return entry.supported
		}
	}
	return false
}

// SupportsToolCalling reports tool support for the client's current model.
func (c *Client) SupportsToolCalling() bool {
	return ModelSupportsToolCalling(c.model)
}
