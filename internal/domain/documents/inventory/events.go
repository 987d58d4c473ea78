package inventory

import (
	"context"
	"sync"
	"time"

	"pharmastock/internal/core/id"
	"pharmastock/pkg/logger"
)

// EventKind names a session event.
type EventKind string

const (
	SessionCreated  EventKind = "SessionCreated"
	SessionUpdated  EventKind = "SessionUpdated"
	SessionCanceled EventKind = "SessionCanceled"
	SessionDeleted  EventKind = "SessionDeleted"
)

// Event is published after a session change commits.
type Event struct {
	Kind       EventKind   `json:"kind"`
	SessionID  id.ID       `json:"sessionId"`
	Reference  string      `json:"reference"`
	Type       SessionType `json:"type"`
	Status     Status      `json:"status"`
	User       string      `json:"user,omitempty"`
	OccurredAt time.Time   `json:"occurredAt"`
}

func newEvent(kind EventKind, s *Session, at time.Time) Event {
	return Event{
		Kind:       kind,
		SessionID:  s.ID,
		Reference:  s.Reference,
		Type:       s.Type,
		Status:     s.Status,
		User:       s.User,
		OccurredAt: at,
	}
}

// EventRecorder stores an event inside the caller's transaction so it can be
// relayed after commit.
type EventRecorder interface {
	Record(ctx context.Context, e Event) error
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, Event) error { return nil }

// EventBus fans events out to in-process subscribers over channels.
// A subscriber that falls behind loses events instead of blocking publishers.
type EventBus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	next   int
	closed bool
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[int]chan Event)}
}

// Subscribe returns a receive channel and the func that cancels it.
func (b *EventBus) Subscribe(buffer int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	key := b.next
	b.next++
	b.subs[key] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[key]; ok {
				delete(b.subs, key)
				close(c)
			}
		})
	}
}

// Publish delivers e to every subscriber without blocking.
func (b *EventBus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			logger.Warn(ctx, "dropping inventory event for slow subscriber",
				"kind", e.Kind, "session_id", e.SessionID)
		}
	}
}

// Close closes every subscriber channel. Later subscriptions get a closed channel.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for key, ch := range b.subs {
		close(ch)
		delete(b.subs, key)
	}
}

// Subscribers returns the number of open subscriptions.
func (b *EventBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
