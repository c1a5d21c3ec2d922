package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"agentloop/conversation"
	"agentloop/model"
	"agentloop/tool"
)

// scriptedProvider replays a fixed sequence of completions, one per
// model call, optionally streaming content through the callback first.
type scriptedProvider struct {
	mu        sync.Mutex
	script    []model.Completion
	calls     int
	failWith  error
	chunkSize int // deltas per Stream call; 0 streams the whole content at once
	blockFor  time.Duration
}

func (p *scriptedProvider) next() (*model.Completion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return nil, p.failWith
	}
	if p.calls >= len(p.script) {
		return nil, fmt.Errorf("script exhausted after %d calls", p.calls)
	}
	c := p.script[p.calls]
	p.calls++
	return &c, nil
}

func (p *scriptedProvider) Complete(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (*model.Completion, error) {
	if p.blockFor > 0 {
		select {
		case <-time.After(p.blockFor):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p.next()
}

func (p *scriptedProvider) Stream(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) (*model.Completion, error) {
	c, err := p.next()
	if err != nil {
		return nil, err
	}
	if c.FinishReason == model.FinishContent && callback != nil {
		size := p.chunkSize
		if size <= 0 {
			size = len(c.Content)
		}
		for i := 0; i < len(c.Content); i += size {
			end := i + size
			if end > len(c.Content) {
				end = len(c.Content)
			}
			if err := callback(c.Content[i:end], nil); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

func (p *scriptedProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) { return nil, nil }
func (p *scriptedProvider) GetModel() string                                          { return "scripted" }
func (p *scriptedProvider) GetDisplayName() string                                    { return "scripted" }
func (p *scriptedProvider) SetModel(string)                                           {}
func (p *scriptedProvider) Ping(ctx context.Context) error                            { return nil }

func toolCycle(calls ...model.ToolCall) model.Completion {
	return model.Completion{FinishReason: model.FinishToolCalls, ToolCalls: calls}
}

func finalAnswer(text string) model.Completion {
	return model.Completion{FinishReason: model.FinishContent, Content: text}
}

func newTestRegistry(t *testing.T) *tool.Registry {
	t.Helper()
	registry := tool.NewRegistry()
	spec := mcptypes.Tool{
		Name:        "lookup",
		Description: "Look something up",
		InputSchema: mcptypes.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"key": map[string]any{"type": "string"},
			},
			Required: []string{"key"},
		},
	}
	handler := func(ctx context.Context, args map[string]any) (string, error) {
		return fmt.Sprintf("value for %v", args["key"]), nil
	}
	if err := registry.Register(spec, handler); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	return registry
}

func newConversation(t *testing.T, userMessage string) *conversation.Store {
	t.Helper()
	conv := conversation.New()
	if err := conv.Append(model.Message{Role: model.RoleUser, Content: userMessage}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	return conv
}

func TestRunTurnTermination(t *testing.T) {
	const cycles = 3

	var script []model.Completion
	for i := 0; i < cycles; i++ {
		script = append(script, toolCycle(model.ToolCall{
			ID: fmt.Sprintf("call-%d", i), Name: "lookup", Arguments: map[string]any{"key": fmt.Sprintf("k%d", i)},
		}))
	}
	script = append(script, finalAnswer("all done"))

	provider := &scriptedProvider{script: script}
	exec := New(provider, newTestRegistry(t), Options{})
	conv := newConversation(t, "go look things up")

	final, err := exec.RunTurn(context.Background(), conv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final.Content != "all done" {
		t.Errorf("final content: %q", final.Content)
	}
	if provider.calls != cycles+1 {
		t.Errorf("expected %d model calls, got %d", cycles+1, provider.calls)
	}
	// user + (assistant announcement + tool result) per cycle + final
	wantLen := 1 + cycles*2 + 1
	if conv.Len() != wantLen {
		t.Errorf("expected %d messages, got %d", wantLen, conv.Len())
	}
	if conv.Outstanding() != 0 {
		t.Errorf("turn left %d unresolved tool calls", conv.Outstanding())
	}
}

func TestRunTurnBudgetExceeded(t *testing.T) {
	const cycles = 3

	var script []model.Completion
	for i := 0; i < cycles; i++ {
		script = append(script, toolCycle(model.ToolCall{
			ID: fmt.Sprintf("call-%d", i), Name: "lookup", Arguments: map[string]any{"key": "k"},
		}))
	}
	script = append(script, finalAnswer("late answer"))

	exec := New(&scriptedProvider{script: script}, newTestRegistry(t), Options{MaxCycles: cycles - 1})
	conv := newConversation(t, "question")

	_, err := exec.RunTurn(context.Background(), conv)
	if !errors.Is(err, ErrTurnBudgetExceeded) {
		t.Fatalf("expected ErrTurnBudgetExceeded, got %v", err)
	}
}

func TestToolResultOrderingMatchesAnnouncement(t *testing.T) {
	calls := []model.ToolCall{
		{ID: "first", Name: "lookup", Arguments: map[string]any{"key": "a"}},
		{ID: "second", Name: "lookup", Arguments: map[string]any{"key": "b"}},
		{ID: "third", Name: "lookup", Arguments: map[string]any{"key": "c"}},
	}
	provider := &scriptedProvider{script: []model.Completion{toolCycle(calls...), finalAnswer("done")}}
	exec := New(provider, newTestRegistry(t), Options{})
	conv := newConversation(t, "multi")

	if _, err := exec.RunTurn(context.Background(), conv); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var resultIDs []string
	for _, msg := range conv.Snapshot() {
		if msg.Role == model.RoleTool {
			resultIDs = append(resultIDs, msg.ToolCallID)
		}
	}
	want := []string{"first", "second", "third"}
	if len(resultIDs) != len(want) {
		t.Fatalf("expected %d tool results, got %d", len(want), len(resultIDs))
	}
	for i := range want {
		if resultIDs[i] != want[i] {
			t.Errorf("result %d: expected id %q, got %q", i, want[i], resultIDs[i])
		}
	}
}

func TestUnknownToolRecoveredIntoConversation(t *testing.T) {
	provider := &scriptedProvider{script: []model.Completion{
		toolCycle(model.ToolCall{ID: "c1", Name: "nonexistent", Arguments: map[string]any{}}),
		finalAnswer("I don't have an answer for that"),
	}}
	exec := New(provider, newTestRegistry(t), Options{})
	conv := newConversation(t, "use a tool I don't have")

	final, err := exec.RunTurn(context.Background(), conv)
	if err != nil {
		t.Fatalf("unknown tool must not abort the turn: %v", err)
	}
	if final.Content == "" {
		t.Error("expected a final answer")
	}

	var errorResult string
	for _, msg := range conv.Snapshot() {
		if msg.Role == model.RoleTool && msg.ToolCallID == "c1" {
			errorResult = msg.Content
		}
	}
	if errorResult == "" {
		t.Fatal("no tool-result message for the failed call")
	}
	if !strings.Contains(errorResult, "nonexistent") {
		t.Errorf("error payload does not name the tool: %q", errorResult)
	}
}

func TestMalformedToolCallRecoveredIntoConversation(t *testing.T) {
	// A provider that got back truncated argument JSON marks the call
	// malformed. The handler must not run; the model gets an
	// invalid-arguments error result and can self-correct.
	provider := &scriptedProvider{script: []model.Completion{
		toolCycle(model.ToolCall{ID: "c1", Name: "touchy", Malformed: true}),
		finalAnswer("let me try that again"),
	}}

	registry := tool.NewRegistry()
	var handlerRan bool
	spec := mcptypes.Tool{Name: "touchy", InputSchema: mcptypes.ToolInputSchema{Type: "object"}}
	handler := func(ctx context.Context, args map[string]any) (string, error) {
		handlerRan = true
		return "should never happen", nil
	}
	if err := registry.Register(spec, handler); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	exec := New(provider, registry, Options{})
	conv := newConversation(t, "call something with broken arguments")

	final, err := exec.RunTurn(context.Background(), conv)
	if err != nil {
		t.Fatalf("malformed call must not abort the turn: %v", err)
	}
	if final.Content == "" {
		t.Error("expected a final answer")
	}
	if handlerRan {
		t.Error("handler ran despite the malformed argument payload")
	}

	var errorResult string
	for _, msg := range conv.Snapshot() {
		if msg.Role == model.RoleTool && msg.ToolCallID == "c1" {
			errorResult = msg.Content
		}
	}
	if errorResult == "" {
		t.Fatal("no tool-result message for the malformed call")
	}
	if !strings.Contains(errorResult, tool.ErrInvalidArguments.Error()) {
		t.Errorf("error payload does not carry invalid-arguments: %q", errorResult)
	}
}

func TestModelUnavailable(t *testing.T) {
	provider := &scriptedProvider{failWith: fmt.Errorf("connection refused")}
	exec := New(provider, newTestRegistry(t), Options{})
	conv := newConversation(t, "hello")

	_, err := exec.RunTurn(context.Background(), conv)
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
	// Only the user message remains; nothing half-applied.
	if conv.Len() != 1 {
		t.Errorf("conversation mutated on provider failure: %d messages", conv.Len())
	}
}

func TestPerCallTimeout(t *testing.T) {
	provider := &scriptedProvider{
		script:   []model.Completion{finalAnswer("too late")},
		blockFor: 200 * time.Millisecond,
	}
	exec := New(provider, newTestRegistry(t), Options{PerCallTimeout: 20 * time.Millisecond})
	conv := newConversation(t, "hello")

	_, err := exec.RunTurn(context.Background(), conv)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestConversationBusy(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	registry := tool.NewRegistry()
	spec := mcptypes.Tool{Name: "wait", InputSchema: mcptypes.ToolInputSchema{Type: "object"}}
	handler := func(ctx context.Context, args map[string]any) (string, error) {
		close(started)
		<-release
		return "done waiting", nil
	}
	if err := registry.Register(spec, handler); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	provider := &scriptedProvider{script: []model.Completion{
		toolCycle(model.ToolCall{ID: "w1", Name: "wait", Arguments: map[string]any{}}),
		finalAnswer("done"),
	}}
	exec := New(provider, registry, Options{})
	conv := newConversation(t, "slow turn")

	errCh := make(chan error, 1)
	go func() {
		_, err := exec.RunTurn(context.Background(), conv)
		errCh <- err
	}()

	<-started
	_, err := exec.RunTurn(context.Background(), conv)
	if !errors.Is(err, conversation.ErrConversationBusy) {
		t.Fatalf("expected ErrConversationBusy, got %v", err)
	}

	close(release)
	if err := <-errCh; err != nil {
		t.Fatalf("first turn failed: %v", err)
	}
}

func TestConcurrentSessionIsolation(t *testing.T) {
	registry := newTestRegistry(t)

	run := func(tag string) (*conversation.Store, error) {
		provider := &scriptedProvider{script: []model.Completion{
			toolCycle(model.ToolCall{ID: tag + "-1", Name: "lookup", Arguments: map[string]any{"key": tag}}),
			finalAnswer("answer for " + tag),
		}}
		exec := New(provider, registry, Options{})
		conv := newConversation(t, "question from "+tag)
		_, err := exec.RunTurn(context.Background(), conv)
		return conv, err
	}

	type result struct {
		conv *conversation.Store
		err  error
	}
	results := make(chan result, 2)
	for _, tag := range []string{"alpha", "beta"} {
		tag := tag
		go func() {
			conv, err := run(tag)
			results <- result{conv, err}
		}()
	}

	for i := 0; i < 2; i++ {
		r := <-results
		if r.err != nil {
			t.Fatalf("turn failed: %v", r.err)
		}
		snap := r.conv.Snapshot()
		tag := snap[0].Content[len("question from "):]
		for _, msg := range snap {
			if msg.Role == model.RoleTool && msg.ToolCallID != tag+"-1" {
				t.Errorf("session %s contains foreign tool result %q", tag, msg.ToolCallID)
			}
		}
		if snap[len(snap)-1].Content != "answer for "+tag {
			t.Errorf("session %s final answer: %q", tag, snap[len(snap)-1].Content)
		}
	}
}

func TestStreamTurnSnapshots(t *testing.T) {
	provider := &scriptedProvider{
		script: []model.Completion{
			toolCycle(model.ToolCall{ID: "c1", Name: "lookup", Arguments: map[string]any{"key": "k"}}),
			finalAnswer("Hello world"),
		},
		chunkSize: 3,
	}
	exec := New(provider, newTestRegistry(t), Options{})
	conv := newConversation(t, "stream it")

	bridge, err := exec.StreamTurn(context.Background(), conv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var last string
	var doneCount int
	prevLen := -1
	for snap := range bridge.Snapshots() {
		if len(snap.CumulativeText) < prevLen {
			t.Errorf("cumulative text shrank: %q after %d chars", snap.CumulativeText, prevLen)
		}
		prevLen = len(snap.CumulativeText)
		last = snap.CumulativeText
		if snap.Done {
			doneCount++
		}
	}

	if bridge.Err() != nil {
		t.Fatalf("stream failed: %v", bridge.Err())
	}
	if last != "Hello world" {
		t.Errorf("final text: %q", last)
	}
	if doneCount != 1 {
		t.Errorf("expected exactly one Done snapshot, got %d", doneCount)
	}
	if conv.Outstanding() != 0 {
		t.Errorf("stream left %d unresolved tool calls", conv.Outstanding())
	}
}

func TestStreamTurnCancellation(t *testing.T) {
	provider := &scriptedProvider{
		script:    []model.Completion{finalAnswer("aaaaabbbbbcccccdddddeeeee")},
		chunkSize: 5,
	}
	// Buffer of 1 so the producer blocks after the consumer stops reading.
	exec := New(provider, newTestRegistry(t), Options{StreamBuffer: 1})
	conv := newConversation(t, "stream then cancel")

	bridge, err := exec.StreamTurn(context.Background(), conv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var received int
	for range bridge.Snapshots() {
		received++
		if received == 2 {
			bridge.Cancel()
			break
		}
	}
	for range bridge.Snapshots() {
		received++
	}

	if !errors.Is(bridge.Err(), ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", bridge.Err())
	}
	// Cancellation discards anything still in flight: the two snapshots
	// consumed before Cancel are all the consumer ever sees.
	if received != 2 {
		t.Errorf("received %d snapshots after cancelling at 2, want exactly 2", received)
	}
	// The conversation must stay consistent for a retry.
	if conv.Outstanding() != 0 {
		t.Errorf("cancellation left %d unresolved tool calls", conv.Outstanding())
	}
}

func TestStreamTurnBusy(t *testing.T) {
	provider := &scriptedProvider{script: []model.Completion{finalAnswer("x")}}
	exec := New(provider, newTestRegistry(t), Options{})
	conv := newConversation(t, "hi")

	if err := conv.Acquire(); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	defer conv.Release()

	if _, err := exec.StreamTurn(context.Background(), conv); !errors.Is(err, conversation.ErrConversationBusy) {
		t.Fatalf("expected ErrConversationBusy, got %v", err)
	}
}
