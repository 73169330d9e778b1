package eventbus

import (
	"testing"
	"time"
)

func TestPublish_SequenceMonotonic(t *testing.T) {
	b := New()
	b.EnsureJob("job1")

	e1 := b.Publish("job1", "task_started", nil)
	e2 := b.Publish("job1", "task_progress", nil)

	if e1.Seq >= e2.Seq {
		t.Errorf("expected e1.Seq < e2.Seq, got %d, %d", e1.Seq, e2.Seq)
	}
}

func TestSubscribe_ReceivesBacklogThenLive(t *testing.T) {
	b := New()
	b.Publish("job1", "job_created", nil)

	ch := b.Subscribe("job1")
	defer b.Unsubscribe("job1", ch)

	select {
	case ev := <-ch:
		if ev.Type != "job_created" {
			t.Errorf("Type = %s, want job_created", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for backlog event")
	}

	b.Publish("job1", "job_planning_finished", nil)
	select {
	case ev := <-ch:
		if ev.Type != "job_planning_finished" {
			t.Errorf("Type = %s, want job_planning_finished", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for live event")
	}
}

func TestPublish_OverflowDropsOldestWithoutBlocking(t *testing.T) {
	b := New()
	done := make(chan struct{})
	go func() {
		for range 6000 {
			b.Publish("job1", "tick", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publishing beyond capacity blocked")
	}

	ch := b.Subscribe("job1")
	defer b.Unsubscribe("job1", ch)
	if len(ch) > 5000 {
		t.Errorf("backlog not bounded: got %d buffered events", len(ch))
	}
}

func TestMultipleSubscribers_BothReceive(t *testing.T) {
	b := New()
	ch1 := b.Subscribe("job1")
	ch2 := b.Subscribe("job1")
	defer b.Unsubscribe("job1", ch1)
	defer b.Unsubscribe("job1", ch2)

	b.Publish("job1", "task_progress", nil)

	for _, ch := range []chan Event{ch1, ch2} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestSSEFormat(t *testing.T) {
	ev := Event{Ts: 1, Seq: 1, JobID: "j1", Type: "hello", Payload: map[string]string{"job_id": "j1"}}
	frame, err := ev.SSEFormat()
	if err != nil {
		t.Fatalf("SSEFormat() error = %v", err)
	}
	if got := string(frame); got[:6] != "data: " || got[len(got)-2:] != "\n\n" {
		t.Errorf("SSEFormat() = %q, want data: ...\\n\\n framing", got)
	}
}
