// Package stream adapts a provider's incremental token-delta feed into
// discrete, ordered snapshots a polling or blocking caller can consume
// at its own pace. The producer and consumer run in different goroutines
// joined by a bounded buffer: a slow consumer applies backpressure to
// the producer instead of dropping snapshots.
package stream

import (
	"context"
	"strings"
	"sync"

	"agentloop/model"
)

// DefaultBuffer is the snapshot buffer capacity used when the caller
// does not specify one.
const DefaultBuffer = 32

// Bridge is the consumer handle for one streamed turn. It is finite and
// non-restartable: once the snapshot channel closes, Err reports how the
// turn ended.
//
// Snapshots flow producer → in → pump → out → consumer. The pump is what
// makes Cancel exact: it stops forwarding the moment the context dies,
// so no buffered snapshot reaches a consumer that already cancelled.
type Bridge struct {
	in     chan model.StreamSnapshot
	out    chan model.StreamSnapshot
	ctx    context.Context
	cancel context.CancelFunc

	stopped  chan struct{} // closed when the pump stops forwarding
	stopOnce sync.Once

	mu         sync.Mutex
	cumulative strings.Builder
	err        error
	closed     bool
}

// NewBridge creates a bridge whose producer side is governed by ctx.
// Cancelling the returned bridge cancels the derived context, which the
// turn executor watches while driving the provider feed.
func NewBridge(ctx context.Context, buffer int) *Bridge {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ctx, cancel := context.WithCancel(ctx)
	b := &Bridge{
		in:      make(chan model.StreamSnapshot, buffer),
		out:     make(chan model.StreamSnapshot),
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
	go b.pump()
	return b
}

// pump forwards snapshots from the producer side to the consumer side
// until the producer closes the feed. After cancellation it keeps
// draining the producer side without delivering, so Push never blocks
// on a consumer that walked away.
func (b *Bridge) pump() {
	defer func() {
		b.stopForwarding()
		close(b.out)
		b.cancel()
	}()

	for {
		select {
		case <-b.ctx.Done():
			b.stopForwarding()
			for range b.in {
			}
			return
		case snap, ok := <-b.in:
			if !ok {
				return
			}
			select {
			case b.out <- snap:
			case <-b.ctx.Done():
				b.stopForwarding()
				for range b.in {
				}
				return
			}
		}
	}
}

func (b *Bridge) stopForwarding() {
	b.stopOnce.Do(func() { close(b.stopped) })
}

// Context returns the producer-side context. The executor passes it to
// provider calls so cancellation stops the underlying feed within one
// increment.
func (b *Bridge) Context() context.Context {
	return b.ctx
}

// Snapshots returns the channel of cumulative snapshots, delivered in
// production order. The channel closes after the final snapshot (or
// after cancellation/failure, in which case Err is non-nil).
func (b *Bridge) Snapshots() <-chan model.StreamSnapshot {
	return b.out
}

// Cancel stops the stream. It cancels the producer-side context and
// returns only once forwarding has stopped, so a consumer that cancels
// from its own reading goroutine sees no snapshot after Cancel returns;
// anything still buffered is discarded.
func (b *Bridge) Cancel() {
	b.cancel()
	<-b.stopped
}

// Err reports how the turn ended. Valid after Snapshots is closed.
func (b *Bridge) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Text returns the cumulative text produced so far.
func (b *Bridge) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cumulative.String()
}

// Push appends a delta to the cumulative text and delivers a snapshot.
// A full buffer blocks until the consumer catches up or the stream is
// cancelled; cancellation surfaces as the context error.
func (b *Bridge) Push(delta string) error {
	if err := b.ctx.Err(); err != nil {
		return err
	}
	if delta == "" {
		return nil
	}

	b.mu.Lock()
	b.cumulative.WriteString(delta)
	snap := model.StreamSnapshot{CumulativeText: b.cumulative.String()}
	b.mu.Unlock()

	select {
	case b.in <- snap:
		return nil
	case <-b.ctx.Done():
		return b.ctx.Err()
	}
}

// Finish delivers the terminal snapshot (Done=true), records the turn
// outcome, and closes the producer side; the pump closes the consumer
// side once it has drained. Safe to call exactly once; the executor
// owns that guarantee.
func (b *Bridge) Finish(err error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.err = err
	final := model.StreamSnapshot{CumulativeText: b.cumulative.String(), Done: true}
	b.mu.Unlock()

	if err == nil {
		select {
		case b.in <- final:
		case <-b.ctx.Done():
		}
	}
	close(b.in)
}
