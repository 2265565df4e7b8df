package testutil

import (
	"context"
	"sync"
	"time"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/ports"
)

// Clock is a settable clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Notifier records sent messages.
type Notifier struct {
	mu       sync.Mutex
	messages []ports.Message
	Err      error
}

func (n *Notifier) Send(_ context.Context, msg ports.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.messages = append(n.messages, msg)
	return nil
}

func (n *Notifier) Messages() []ports.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]ports.Message(nil), n.messages...)
}

// Kinds lists the kinds of recorded messages in send order.
func (n *Notifier) Kinds() []ports.MessageKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]ports.MessageKind, 0, len(n.messages))
	for _, m := range n.messages {
		out = append(out, m.Kind())
	}
	return out
}

// EventSink records published status events batch by batch.
type EventSink struct {
	mu      sync.Mutex
	batches [][]ports.JobStatusEvent
}

func (s *EventSink) Publish(_ context.Context, events []ports.JobStatusEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]ports.JobStatusEvent(nil), events...))
	return nil
}

func (s *EventSink) Batches() [][]ports.JobStatusEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]ports.JobStatusEvent(nil), s.batches...)
}

// Queue records enqueued optimisations.
type Queue struct {
	mu  sync.Mutex
	ids []kernel.UUID
	Err error
}

func (q *Queue) Enqueue(_ context.Context, optimisationID kernel.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Err != nil {
		return q.Err
	}
	q.ids = append(q.ids, optimisationID)
	return nil
}

func (q *Queue) Enqueued() []kernel.UUID {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]kernel.UUID(nil), q.ids...)
}
