package provider_test

import (
	"context"
	"fmt"
	"log"

	"agentloop/model"
	"agentloop/provider"
)

func ExampleNewProvider() {
	p, err := provider.NewProvider(provider.Config{
		Type:    provider.ProviderTypeOllama,
		BaseURL: "http://localhost:11434",
		Model:   "llama3.1",
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%T\n", p)
	// Output: *provider.OllamaProvider
}

func ExampleNewOllamaProvider() {
	p, err := provider.NewOllamaProvider("http://localhost:11434", "llama3.1")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(p.GetModel())
	p.SetModel("llama3.2:latest")
	fmt.Println(p.GetModel())

	// Output:
	// llama3.1
	// llama3.2:latest
}

// ExampleOllamaProvider_Stream shows incremental consumption of a reply. It
// needs a running Ollama server, so it has no expected output and is only
// compiled.
func ExampleOllamaProvider_Stream() {
	p, err := provider.NewOllamaProvider("http://localhost:11434", "llama3.1")
	if err != nil {
		log.Fatal(err)
	}

	messages := []model.Message{
		{Role: model.RoleUser, Content: "Hello! How are you?"},
	}

	completion, err := p.Stream(context.Background(), messages, nil,
		func(chunk string, toolCalls []model.ToolCall) error {
			fmt.Print(chunk)
			return nil
		})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("\nfinished: %s\n", completion.FinishReason)
}

// ExampleOllamaProvider_Complete shows a blocking completion and how to tell
// a text answer from a tool request. Needs a running server, compiled only.
func ExampleOllamaProvider_Complete() {
	p, err := provider.NewOllamaProvider("http://localhost:11434", "llama3.1")
	if err != nil {
		log.Fatal(err)
	}

	messages := []model.Message{
		{Role: model.RoleUser, Content: "What's the weather in San Francisco?"},
	}

	completion, err := p.Complete(context.Background(), messages, nil)
	if err != nil {
		log.Fatal(err)
	}

	if completion.FinishReason == model.FinishToolCalls {
		for _, call := range completion.ToolCalls {
			fmt.Printf("tool requested: %s %v\n", call.Name, call.Arguments)
		}
		return
	}
	fmt.Println(completion.Content)
}

// ExampleOllamaProvider_Ping shows a connectivity check before starting a
// session. Needs a running server, compiled only.
func ExampleOllamaProvider_Ping() {
	p, err := provider.NewOllamaProvider("http://localhost:11434", "llama3.1")
	if err != nil {
		log.Fatal(err)
	}

	if err := p.Ping(context.Background()); err != nil {
		fmt.Println("server unreachable:", err)
		return
	}
	fmt.Println("server reachable")
}

func ExampleConfig() {
	for _, cfg := range []provider.Config{
		{Type: provider.ProviderTypeOllama, BaseURL: "http://localhost:11434", Model: "llama3.1"},
		{Type: provider.ProviderTypeOpenAI, BaseURL: "https://api.openai.com/v1", Model: "gpt-4o-mini", APIKey: "sk-..."},
		{Type: provider.ProviderTypeAnthropic, BaseURL: "https://api.anthropic.com", Model: "claude-sonnet-4-5-20250929", APIKey: "sk-ant-..."},
	} {
		fmt.Println(cfg.Type)
	}

	// Output:
	// ollama
	// openai
	// anthropic
}
