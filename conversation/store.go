// Package conversation owns the ordered message history a turn executor
// reads and appends to, together with its two invariants: tool results
// are supplied in the order their calls were announced, and a
// conversation runs at most one turn at a time.
package conversation

import (
	"errors"
	"fmt"
	"sync"

	"agentloop/model"
)

// ErrInvalidSequence is returned when a tool message does not match the
// oldest outstanding tool call, or no tool call is outstanding at all.
var ErrInvalidSequence = errors.New("invalid message sequence")

// ErrConversationBusy is returned when a second turn is started while one
// is already executing on the same conversation.
var ErrConversationBusy = errors.New("conversation busy")

// Store is an append-only, ordered message history for one session.
// It grows monotonically and is discarded with the session; truncation or
// summarization would be a separate explicit operation, not exposed here.
//
// Store is safe for concurrent use, but the busy flag means only one
// turn mutates it at a time.
type Store struct {
	mu          sync.Mutex
	messages    []model.Message
	outstanding []string // announced tool-call ids awaiting results, oldest first
	busy        bool
}

// New creates an empty conversation store.
func New() *Store {
	return &Store{}
}

// Append adds a message to the history.
//
// Assistant messages that announce tool calls record their ids as
// outstanding, in announcement order. A tool message must resolve the
// oldest outstanding id (the calling convention of every supported
// provider); anything else fails with ErrInvalidSequence.
func (s *Store) Append(msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.Role == model.RoleTool {
		if len(s.outstanding) == 0 {
			return fmt.Errorf("%w: tool result %q with no outstanding tool call", ErrInvalidSequence, msg.ToolCallID)
		}
		if s.outstanding[0] != msg.ToolCallID {
			return fmt.Errorf("%w: tool result %q supplied before %q", ErrInvalidSequence, msg.ToolCallID, s.outstanding[0])
		}
		s.outstanding = s.outstanding[1:]
		s.messages = append(s.messages, msg)
		return nil
	}

	for _, call := range msg.ToolCalls {
		s.outstanding = append(s.outstanding, call.ID)
	}
	s.messages = append(s.messages, msg)
	return nil
}

// Snapshot returns an ordered copy of all messages. The copy is safe to
// hand to an outbound provider call while other goroutines keep appending.
func (s *Store) Snapshot() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages appended so far.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Outstanding reports how many announced tool calls still await results.
func (s *Store) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outstanding)
}

// Acquire marks the conversation as running a turn. A second Acquire
// before Release fails with ErrConversationBusy rather than interleaving
// two turns on the same history.
func (s *Store) Acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy {
		return ErrConversationBusy
	}
	s.busy = true
	return nil
}

// Release clears the busy flag set by Acquire.
func (s *Store) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
}
