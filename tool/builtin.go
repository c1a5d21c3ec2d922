package tool

import (
	"context"
	"fmt"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"agentloop/config"
	"agentloop/sink"
)

// RegisterBuiltins adds the assistant's built-in tools to the registry.
// Each handler closes over the SideEffects handle passed in here, so no
// tool reaches for ambient package state to find its collaborators.
func RegisterBuiltins(registry *Registry, effects sink.SideEffects) error {
	builtins := []struct {
		spec    mcptypes.Tool
		handler Handler
	}{
		{pushSpec(), pushHandler(effects)},
		{recordUnknownQuestionSpec(), recordUnknownQuestionHandler(effects)},
		{recordUserDetailsSpec(), recordUserDetailsHandler(effects)},
	}

	for _, b := range builtins {
		if err := registry.Register(b.spec, b.handler); err != nil {
			return err
		}
	}
	return nil
}

func pushSpec() mcptypes.Tool {
	return mcptypes.Tool{
		Name:        "push",
		Description: "Send a brief text message as a push notification to the site owner",
		InputSchema: mcptypes.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"message": map[string]any{
					"type":        "string",
					"description": "The short text message to push",
				},
			},
			Required: []string{"message"},
		},
	}
}

// pushHandler delivers a notification. Delivery failure is reported as
// tool result text, never as a handler error: a dropped notification
// must not derail the conversation turn.
func pushHandler(effects sink.SideEffects) Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		message, _ := args["message"].(string)
		if err := effects.Notify(ctx, message); err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Tool] push failed: %v", err)
			}
			return "Push notification failed", nil
		}
		return "Push notification sent", nil
	}
}

func recordUnknownQuestionSpec() mcptypes.Tool {
	return mcptypes.Tool{
		Name:        "record_unknown_question",
		Description: "Record a question that could not be answered, so the site owner can follow up",
		InputSchema: mcptypes.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"question": map[string]any{
					"type":        "string",
					"description": "The question that could not be answered",
				},
			},
			Required: []string{"question"},
		},
	}
}

func recordUnknownQuestionHandler(effects sink.SideEffects) Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		question, _ := args["question"].(string)

		id, err := effects.RecordUnanswered(ctx, question)
		if err != nil {
			return "", fmt.Errorf("recording question: %w", err)
		}

		// Notification is best effort; the durable record is what matters.
		if err := effects.Notify(ctx, fmt.Sprintf("Unanswered question recorded: %s", question)); err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Tool] record_unknown_question notify failed: %v", err)
			}
		}

		return fmt.Sprintf("Question recorded with id %s", id), nil
	}
}

func recordUserDetailsSpec() mcptypes.Tool {
	return mcptypes.Tool{
		Name:        "record_user_details",
		Description: "Record that a visitor shared contact details and wants to get in touch",
		InputSchema: mcptypes.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"email": map[string]any{
					"type":        "string",
					"description": "The visitor's email address",
				},
				"name": map[string]any{
					"type":        "string",
					"description": "The visitor's name, if provided",
				},
				"notes": map[string]any{
					"type":        "string",
					"description": "Any context about the conversation worth keeping",
				},
			},
			Required: []string{"email"},
		},
	}
}

func recordUserDetailsHandler(effects sink.SideEffects) Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		email, _ := args["email"].(string)
		name, _ := args["name"].(string)
		notes, _ := args["notes"].(string)
		if name == "" {
			name = "someone"
		}

		message := fmt.Sprintf("New contact: %s (%s)", name, email)
		if notes != "" {
			message += " - " + notes
		}

		if err := effects.Notify(ctx, message); err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Tool] record_user_details notify failed: %v", err)
			}
			return "Contact details noted, but the notification could not be delivered", nil
		}
		return "Contact details recorded", nil
	}
}
