// Package agent drives conversation turns: it calls the model provider,
// dispatches requested tools through the registry, feeds results back,
// and repeats until the provider produces a final answer.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agentloop/config"
	"agentloop/conversation"
	"agentloop/model"
	"agentloop/stream"
	"agentloop/tool"
)

var (
	// ErrModelUnavailable wraps provider failures (network, rate limit,
	// provider-side errors). The conversation stays usable for a retry.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrTurnBudgetExceeded is returned when a turn needs more
	// tool-execution cycles than Options.MaxCycles allows.
	ErrTurnBudgetExceeded = errors.New("turn budget exceeded")

	// ErrTimeout is returned when a provider call or tool execution
	// exceeds Options.PerCallTimeout. Only the in-flight cycle aborts.
	ErrTimeout = errors.New("call timed out")

	// ErrCancelled is returned when the caller cancels a running turn.
	ErrCancelled = errors.New("turn cancelled")
)

// Options bound one turn's resource usage.
type Options struct {
	// MaxCycles caps model-call cycles per turn. 0 means unbounded, any
	// other value must be >= 1.
	MaxCycles int

	// PerCallTimeout applies to each provider call and each tool
	// invocation. 0 disables the per-call deadline.
	PerCallTimeout time.Duration

	// StreamBuffer is the snapshot channel capacity for StreamTurn.
	// 0 uses stream.DefaultBuffer.
	StreamBuffer int
}

// Executor runs turns against one provider with one tool registry. It is
// safe for concurrent use across independent conversations; the
// per-conversation busy flag serializes turns on the same history.
//
// Side-effecting collaborators are not held here: tools receive their
// sink.SideEffects handle when they are registered, so the executor
// stays ignorant of notification transports and ledgers.
type Executor struct {
	provider model.Provider
	registry *tool.Registry
	opts     Options
}

// New creates a turn executor.
func New(provider model.Provider, registry *tool.Registry, opts Options) *Executor {
	return &Executor{
		provider: provider,
		registry: registry,
		opts:     opts,
	}
}

// RunTurn executes one full turn and returns the final assistant
// message. The caller appends the user message beforehand.
func (e *Executor) RunTurn(ctx context.Context, conv *conversation.Store) (model.Message, error) {
	if err := conv.Acquire(); err != nil {
		return model.Message{}, err
	}
	defer conv.Release()

	return e.runLoop(ctx, conv, nil)
}

// StreamTurn executes one full turn, streaming the content of the final
// answer through the returned bridge. Tool-calling cycles run to
// completion between streamed content; the caller reads snapshots from
// the bridge and may cancel it at any point.
func (e *Executor) StreamTurn(ctx context.Context, conv *conversation.Store) (*stream.Bridge, error) {
	if err := conv.Acquire(); err != nil {
		return nil, err
	}

	bridge := stream.NewBridge(ctx, e.opts.StreamBuffer)
	go func() {
		defer conv.Release()
		_, err := e.runLoop(bridge.Context(), conv, bridge)
		bridge.Finish(err)
	}()
	return bridge, nil
}

// runLoop is the turn state machine. With a nil bridge each cycle uses
// the provider's blocking call; with a bridge, cycles stream and content
// deltas are forwarded as snapshots.
func (e *Executor) runLoop(ctx context.Context, conv *conversation.Store, bridge *stream.Bridge) (model.Message, error) {
	for cycle := 1; ; cycle++ {
		if e.opts.MaxCycles > 0 && cycle > e.opts.MaxCycles {
			return model.Message{}, fmt.Errorf("%w: %d cycles", ErrTurnBudgetExceeded, e.opts.MaxCycles)
		}
		if err := ctx.Err(); err != nil {
			return model.Message{}, turnErr(ctx, err)
		}

		completion, err := e.callModel(ctx, conv.Snapshot(), bridge)
		if err != nil {
			return model.Message{}, err
		}

		if completion.FinishReason != model.FinishToolCalls || len(completion.ToolCalls) == 0 {
			final := model.Message{
				Role:      model.RoleAssistant,
				Content:   completion.Content,
				Timestamp: time.Now(),
			}
			if err := conv.Append(final); err != nil {
				return model.Message{}, err
			}
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Agent] turn done after %d cycle(s), %d chars", cycle, len(completion.Content))
			}
			return final, nil
		}

		if config.DebugLog != nil {
			config.DebugLog.Printf("[Agent] cycle %d: %d tool call(s)", cycle, len(completion.ToolCalls))
		}

		results, err := e.executeTools(ctx, completion.ToolCalls)
		if err != nil {
			return model.Message{}, err
		}

		// Announcement and results are appended together, after every
		// handler finished: an aborted cycle leaves no half-written pair.
		announcement := model.Message{
			Role:      model.RoleAssistant,
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
			Timestamp: time.Now(),
		}
		if err := conv.Append(announcement); err != nil {
			return model.Message{}, err
		}
		for _, res := range results {
			if err := conv.Append(model.NewToolResultMessage(res)); err != nil {
				return model.Message{}, err
			}
		}
	}
}

// callModel performs one provider call with the per-call deadline,
// streaming through the bridge when one is attached.
func (e *Executor) callModel(ctx context.Context, messages []model.Message, bridge *stream.Bridge) (*model.Completion, error) {
	callCtx := ctx
	if e.opts.PerCallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.opts.PerCallTimeout)
		defer cancel()
	}

	specs := e.registry.Specs()

	var completion *model.Completion
	var err error
	if bridge != nil {
		completion, err = e.provider.Stream(callCtx, messages, specs, func(chunk string, toolCalls []model.ToolCall) error {
			if chunk == "" {
				return nil
			}
			return bridge.Push(chunk)
		})
	} else {
		completion, err = e.provider.Complete(callCtx, messages, specs)
	}

	if err != nil {
		switch {
		case ctx.Err() != nil:
			return nil, turnErr(ctx, err)
		case errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded:
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		}
	}
	return completion, nil
}

// executeTools runs one response's tool calls in announcement order.
// Registry-level failures (unknown tool, bad arguments, handler errors)
// become error-text results so the model can react; a timeout or
// cancellation aborts the cycle and discards everything collected so far.
func (e *Executor) executeTools(ctx context.Context, calls []model.ToolCall) ([]model.ToolResult, error) {
	results := make([]model.ToolResult, 0, len(calls))

	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return nil, turnErr(ctx, err)
		}

		payload, err := e.invokeOne(ctx, call)
		if err != nil {
			return nil, err
		}

		// A finished tool whose turn was cancelled mid-execution: the
		// result is discarded with the cycle.
		if err := ctx.Err(); err != nil {
			return nil, turnErr(ctx, err)
		}
		results = append(results, model.ToolResult{ToolCallID: call.ID, Payload: payload})
	}
	return results, nil
}

func (e *Executor) invokeOne(ctx context.Context, call model.ToolCall) (string, error) {
	// A call whose argument payload never parsed is answered like any
	// other invalid-arguments failure; the handler does not run.
	if call.Malformed {
		err := fmt.Errorf("%w: unparsable argument payload", tool.ErrInvalidArguments)
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Agent] tool %s failed: %v", call.Name, err)
		}
		return fmt.Sprintf("Error executing %s: %v", call.Name, err), nil
	}

	callCtx := ctx
	if e.opts.PerCallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.opts.PerCallTimeout)
		defer cancel()
	}

	payload, err := e.registry.Invoke(callCtx, call.Name, call.Arguments)
	if err == nil {
		return payload, nil
	}

	if ctx.Err() == nil && callCtx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("%w: tool %s", ErrTimeout, call.Name)
	}

	// Recoverable tool failures are surfaced to the model as the tool's
	// result text rather than aborting the turn.
	switch {
	case errors.Is(err, tool.ErrUnknownTool),
		errors.Is(err, tool.ErrInvalidArguments),
		errors.Is(err, tool.ErrToolExecutionFailed):
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Agent] tool %s failed: %v", call.Name, err)
		}
		return fmt.Sprintf("Error executing %s: %v", call.Name, err), nil
	default:
		return "", err
	}
}

// turnErr maps a context error onto the turn-level taxonomy.
func turnErr(ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrCancelled, err)
}
