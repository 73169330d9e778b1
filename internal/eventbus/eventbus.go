// Package eventbus delivers ordered, job-scoped events to subscribers.
// Each job gets a monotonically increasing sequence number; each subscriber
// gets its own bounded, lossy-oldest channel so that a slow or absent
// consumer never blocks publishing and never starves a different
// subscriber of the same job.
package eventbus

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/allanyiin/slidemanager/internal/constants"
)

// Event is one published occurrence on a job's stream.
type Event struct {
	Ts      int64  `json:"ts"`
	Seq     int64  `json:"seq"`
	JobID   string `json:"job_id"`
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// SSEFormat renders the event as an SSE wire frame: "data: <json>\n\n".
func (e Event) SSEFormat() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(b)+8)
	out = append(out, "data: "...)
	out = append(out, b...)
	out = append(out, '\n', '\n')
	return out, nil
}

type jobStream struct {
	mu          sync.Mutex
	seq         int64
	backlog     []Event // bounded, oldest-first; kept even with no subscribers
	subscribers map[chan Event]struct{}
}

// appendBacklog records ev, dropping the oldest entry once the backlog
// reaches constants.EventQueueCapacity, so that even with no subscriber yet
// publishing never blocks and never grows without bound.
func (js *jobStream) appendBacklog(ev Event) {
	if len(js.backlog) >= constants.EventQueueCapacity {
		js.backlog = js.backlog[1:]
	}
	js.backlog = append(js.backlog, ev)
}

// Bus is an in-process, per-job publish/subscribe hub.
type Bus struct {
	mu   sync.Mutex
	jobs map[string]*jobStream
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{jobs: make(map[string]*jobStream)}
}

// EnsureJob registers a job stream if it doesn't already exist. Safe to call
// more than once.
func (b *Bus) EnsureJob(jobID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ensureLocked(jobID)
}

func (b *Bus) ensureLocked(jobID string) *jobStream {
	js, ok := b.jobs[jobID]
	if !ok {
		js = &jobStream{subscribers: make(map[chan Event]struct{})}
		b.jobs[jobID] = js
	}
	return js
}

// Publish appends one event to the job's stream, assigning it the next
// sequence number, and fans it out to every current subscriber. Each
// subscriber channel is bounded at constants.EventQueueCapacity; a full
// channel drops its own oldest buffered event before accepting the new one,
// so one slow subscriber never blocks another or the publisher.
func (b *Bus) Publish(jobID, eventType string, payload any) Event {
	b.mu.Lock()
	js := b.ensureLocked(jobID)
	b.mu.Unlock()

	js.mu.Lock()
	js.seq++
	ev := Event{
		Ts:      time.Now().Unix(),
		Seq:     js.seq,
		JobID:   jobID,
		Type:    eventType,
		Payload: payload,
	}
	js.appendBacklog(ev)
	subs := make([]chan Event, 0, len(js.subscribers))
	for ch := range js.subscribers {
		subs = append(subs, ch)
	}
	js.mu.Unlock()

	for _, ch := range subs {
		deliverLossy(ch, ev)
	}
	return ev
}

// deliverLossy sends ev to ch, dropping the oldest buffered event first if
// ch is full.
func deliverLossy(ch chan Event, ev Event) {
	for {
		select {
		case ch <- ev:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

// Subscribe registers a new private, bounded channel for jobID, pre-seeded
// with whatever backlog has already accumulated, and returns it. Callers
// must call Unsubscribe when done.
func (b *Bus) Subscribe(jobID string) chan Event {
	b.mu.Lock()
	js := b.ensureLocked(jobID)
	b.mu.Unlock()

	ch := make(chan Event, constants.EventQueueCapacity)
	js.mu.Lock()
	for _, ev := range js.backlog {
		ch <- ev
	}
	js.subscribers[ch] = struct{}{}
	js.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a channel previously returned by Subscribe.
func (b *Bus) Unsubscribe(jobID string, ch chan Event) {
	b.mu.Lock()
	js, ok := b.jobs[jobID]
	b.mu.Unlock()
	if !ok {
		return
	}
	js.mu.Lock()
	if _, present := js.subscribers[ch]; present {
		delete(js.subscribers, ch)
		close(ch)
	}
	js.mu.Unlock()
}

// Forget drops all bookkeeping for a job. Called once a job reaches a
// terminal state and its event stream will never be published to again.
func (b *Bus) Forget(jobID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.jobs, jobID)
}
