// Package events carries workflow lifecycle notifications from the
// orchestrator to in-process consumers such as the CLI progress printer
// and the HTTP event stream.
package events

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Event is one lifecycle notification.
type Event interface {
	EventType() string
	Timestamp() time.Time
	SessionID() string
}

// BaseEvent holds the fields every event shares.
type BaseEvent struct {
	Type    string    `json:"type"`
	Time    time.Time `json:"timestamp"`
	Session string    `json:"session_id"`
}

func (e BaseEvent) EventType() string    { return e.Type }
func (e BaseEvent) Timestamp() time.Time { return e.Time }
func (e BaseEvent) SessionID() string    { return e.Session }

// NewBaseEvent stamps an event of eventType for sessionID with the current
// time.
func NewBaseEvent(eventType, sessionID string) BaseEvent {
	return BaseEvent{Type: eventType, Time: time.Now(), Session: sessionID}
}

// SubscribeOption narrows or changes a subscription.
type SubscribeOption func(*subscription)

// OfType delivers only events of the given types.
func OfType(types ...string) SubscribeOption {
	return func(s *subscription) {
		s.types = append(s.types, types...)
	}
}

// ForSession delivers only events of one session. An empty ID matches
// every session.
func ForSession(sessionID string) SubscribeOption {
	return func(s *subscription) {
		s.session = sessionID
	}
}

// Reliable makes Publish wait for room in the channel instead of dropping
// the oldest buffered event. The consumer must keep draining the channel
// until it is closed.
func Reliable() SubscribeOption {
	return func(s *subscription) {
		s.reliable = true
	}
}

// WithBuffer overrides the bus default channel capacity.
func WithBuffer(n int) SubscribeOption {
	return func(s *subscription) {
		if n > 0 {
			s.size = n
		}
	}
}

type subscription struct {
	ch       chan Event
	size     int
	types    []string
	session  string
	reliable bool
}

func (s *subscription) matches(e Event) bool {
	if s.session != "" && e.SessionID() != s.session {
		return false
	}
	return len(s.types) == 0 || slices.Contains(s.types, e.EventType())
}

// EventBus fans events out to subscribers. Lossy subscribers never slow the
// publisher: when their buffer is full the oldest event is discarded.
type EventBus struct {
	mu      sync.RWMutex
	subs    []*subscription
	size    int
	dropped atomic.Int64
	closed  bool
}

// New creates a bus whose subscriptions buffer bufferSize events.
func New(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &EventBus{size: bufferSize}
}

// Subscribe registers a subscription and returns its channel. On a closed
// bus the channel is already closed.
func (eb *EventBus) Subscribe(opts ...SubscribeOption) <-chan Event {
	sub := &subscription{size: eb.size}
	for _, opt := range opts {
		opt(sub)
	}
	sub.ch = make(chan Event, sub.size)

	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.closed {
		close(sub.ch)
		return sub.ch
	}
	eb.subs = append(eb.subs, sub)
	return sub.ch
}

// Unsubscribe removes the subscription owning ch and closes ch. Events
// already buffered stay readable.
func (eb *EventBus) Unsubscribe(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subs = slices.DeleteFunc(eb.subs, func(s *subscription) bool {
		if s.ch != ch {
			return false
		}
		close(s.ch)
		return true
	})
}

// Publish delivers e to every matching subscription. It is a no-op on a
// closed bus.
func (eb *EventBus) Publish(e Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}
	for _, sub := range eb.subs {
		if !sub.matches(e) {
			continue
		}
		if sub.reliable {
			sub.ch <- e
			continue
		}
		eb.offer(sub.ch, e)
	}
}

// offer sends without blocking, evicting the oldest event when ch is full.
func (eb *EventBus) offer(ch chan Event, e Event) {
	select {
	case ch <- e:
		return
	default:
	}
	select {
	case <-ch:
		eb.dropped.Add(1)
	default:
	}
	select {
	case ch <- e:
	default:
		eb.dropped.Add(1)
	}
}

// DroppedCount returns how many events lossy subscribers have lost.
func (eb *EventBus) DroppedCount() int64 {
	return eb.dropped.Load()
}

// Close closes every subscription channel. Later publishes are ignored.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.closed = true
	for _, sub := range eb.subs {
		close(sub.ch)
	}
	eb.subs = nil
}
