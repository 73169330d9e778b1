package jobmanager

import (
	"context"
	"testing"
	"time"
)

func TestPauseGate_StartsUnpaused(t *testing.T) {
	g := newPauseGate()
	if err := g.wait(context.Background()); err != nil {
		t.Fatalf("expected an unpaused gate not to block: %v", err)
	}
}

func TestPauseGate_PauseBlocksUntilResume(t *testing.T) {
	g := newPauseGate()
	g.pause()

	done := make(chan error, 1)
	go func() { done <- g.wait(context.Background()) }()

	select {
	case <-done:
		t.Fatal("expected wait to block while paused")
	case <-time.After(20 * time.Millisecond):
	}

	g.resume()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected wait to return nil after resume, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("wait did not unblock after resume")
	}
}

func TestPauseGate_PauseIsIdempotent(t *testing.T) {
	g := newPauseGate()
	g.pause()
	g.pause()

	select {
	case <-g.ch:
		t.Fatal("expected the gate to still be paused")
	default:
	}
}

func TestPauseGate_ResumeIsIdempotent(t *testing.T) {
	g := newPauseGate()
	g.resume()
	g.resume()

	if err := g.wait(context.Background()); err != nil {
		t.Errorf("expected the gate to be unpaused, got %v", err)
	}
}

func TestPauseGate_CheckpointRespectsContextCancellation(t *testing.T) {
	g := newPauseGate()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := g.checkpoint(ctx); err == nil {
		t.Error("expected checkpoint to report the cancelled context")
	}
}

func TestPauseGate_WaitUnblocksOnContextCancelWhilePaused(t *testing.T) {
	g := newPauseGate()
	g.pause()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.wait(ctx) }()

	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Error("expected wait to surface context cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("wait did not unblock on context cancellation")
	}
}
