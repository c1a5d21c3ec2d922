// Package sink defines the narrow capability interface tools use for
// side effects (notifications, durable question records) without the
// engine depending on any concrete transport. Implementations must be
// safe for concurrent use by multiple sessions.
package sink

import (
	"context"
	"errors"
	"fmt"

	"agentloop/config"
)

var (
	// ErrNotificationFailed reports a failed best-effort delivery. It is
	// never raised back into a conversation turn, only logged.
	ErrNotificationFailed = errors.New("notification failed")

	// ErrRecordNotFound is returned when resolving an unknown record id.
	ErrRecordNotFound = errors.New("question record not found")
)

// SideEffects is the capability handle handed to tools at registration
// time. Both operations are fire-and-forget from the turn's viewpoint.
type SideEffects interface {
	// Notify delivers a short message, best effort.
	Notify(ctx context.Context, message string) error

	// RecordUnanswered creates a QuestionRecord with a null answer and
	// returns its id.
	RecordUnanswered(ctx context.Context, question string) (string, error)

	// Resolve sets the answer on an existing record. Resolving an
	// unknown id fails with ErrRecordNotFound.
	Resolve(ctx context.Context, id, answer string) error
}

// Notifier is the delivery half of SideEffects.
type Notifier interface {
	Push(ctx context.Context, message string) error
}

// QuestionStore is the ledger half of SideEffects.
type QuestionStore interface {
	Create(ctx context.Context, question string) (string, error)
	SetAnswer(ctx context.Context, id, answer string) error
}

// Hub composes a Notifier and a QuestionStore into a SideEffects
// implementation. Either half may be nil; the corresponding operation
// then reports failure without touching anything.
type Hub struct {
	notifier Notifier
	ledger   QuestionStore
}

// NewHub builds a Hub from its two halves.
func NewHub(notifier Notifier, ledger QuestionStore) *Hub {
	return &Hub{notifier: notifier, ledger: ledger}
}

// Notify implements SideEffects.Notify.
func (h *Hub) Notify(ctx context.Context, message string) error {
	if h.notifier == nil {
		return fmt.Errorf("%w: no notifier configured", ErrNotificationFailed)
	}
	if err := h.notifier.Push(ctx, message); err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Sink] notification failed: %v", err)
		}
		return fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}
	return nil
}

// RecordUnanswered implements SideEffects.RecordUnanswered.
func (h *Hub) RecordUnanswered(ctx context.Context, question string) (string, error) {
	if h.ledger == nil {
		return "", fmt.Errorf("no question ledger configured")
	}
	return h.ledger.Create(ctx, question)
}

// Resolve implements SideEffects.Resolve.
func (h *Hub) Resolve(ctx context.Context, id, answer string) error {
	if h.ledger == nil {
		return fmt.Errorf("no question ledger configured")
	}
	return h.ledger.SetAnswer(ctx, id, answer)
}

// Nop is a SideEffects implementation that records nothing. Used in
// tests and when no notification transport is configured.
type Nop struct{}

func (Nop) Notify(ctx context.Context, message string) error { return nil }

func (Nop) RecordUnanswered(ctx context.Context, question string) (string, error) {
	return "", nil
}

func (Nop) Resolve(ctx context.Context, id, answer string) error { return nil }
