package stream

import (
	"context"
	"testing"
	"time"
)

func TestSnapshotMonotonicity(t *testing.T) {
	bridge := NewBridge(context.Background(), 8)

	deltas := []string{"Hel", "lo", " world"}
	go func() {
		for _, d := range deltas {
			if err := bridge.Push(d); err != nil {
				t.Errorf("push failed: %v", err)
				return
			}
		}
		bridge.Finish(nil)
	}()

	want := []string{"Hel", "Hello", "Hello world", "Hello world"}
	var got []string
	var doneCount int
	for snap := range bridge.Snapshots() {
		got = append(got, snap.CumulativeText)
		if snap.Done {
			doneCount++
		}
	}

	if len(got) != len(want) {
		t.Fatalf("expected %d snapshots, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("snapshot %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	if doneCount != 1 {
		t.Errorf("expected exactly one Done snapshot, got %d", doneCount)
	}
	if got[len(got)-1] != "Hello world" {
		t.Errorf("final snapshot text: %q", got[len(got)-1])
	}
	if bridge.Err() != nil {
		t.Errorf("unexpected error: %v", bridge.Err())
	}
}

func TestCancellationMidStream(t *testing.T) {
	bridge := NewBridge(context.Background(), 1)

	deltas := []string{"a", "b", "c", "d", "e"}
	pushErr := make(chan error, 1)
	go func() {
		for _, d := range deltas {
			if err := bridge.Push(d); err != nil {
				pushErr <- err
				bridge.Finish(err)
				return
			}
		}
		bridge.Finish(nil)
	}()

	// Consume exactly two snapshots, then cancel.
	var received int
	for snap := range bridge.Snapshots() {
		received++
		if received == 2 {
			bridge.Cancel()
			break
		}
		_ = snap
	}

	select {
	case err := <-pushErr:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("producer did not observe cancellation")
	}

	// Buffered snapshots are discarded on cancellation: draining the
	// channel afterwards yields nothing.
	for range bridge.Snapshots() {
		received++
	}
	if received != 2 {
		t.Errorf("received %d snapshots after cancelling at 2, want exactly 2", received)
	}
}

func TestBackpressureBlocksProducer(t *testing.T) {
	bridge := NewBridge(context.Background(), 1)

	// With a buffer of one and no consumer, the producer can get at most
	// two deltas in flight (one buffered, one held by the forwarder)
	// before blocking.
	done := make(chan struct{})
	go func() {
		_ = bridge.Push("a")
		_ = bridge.Push("b")
		_ = bridge.Push("c")
		close(done)
		bridge.Finish(nil)
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("producer was not blocked by the full buffer")
	default:
	}

	var texts []string
	for snap := range bridge.Snapshots() {
		texts = append(texts, snap.CumulativeText)
	}
	if texts[len(texts)-1] != "abc" {
		t.Errorf("final text: %q", texts[len(texts)-1])
	}
}

func TestFinishWithErrorOmitsDoneSnapshot(t *testing.T) {
	bridge := NewBridge(context.Background(), 4)
	_ = bridge.Push("partial")
	bridge.Finish(context.DeadlineExceeded)

	var doneSeen bool
	for snap := range bridge.Snapshots() {
		if snap.Done {
			doneSeen = true
		}
	}
	if doneSeen {
		t.Error("Done snapshot delivered for a failed turn")
	}
	if bridge.Err() != context.DeadlineExceeded {
		t.Errorf("expected DeadlineExceeded, got %v", bridge.Err())
	}
}
