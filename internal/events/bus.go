// Package events provides the in-process pub/sub seam between the fusion
// core and the presentation layer.
//
// Dispatch is synchronous and in subscription order, which preserves the
// causal ordering the UI depends on: a cursor change is fully delivered
// before any dependent redraw event fires.
package events

import "sync"

// Topic names the event streams crossing the core/UI seam.
type Topic string

const (
	ActiveSessionChanged Topic = "active-session-changed"
	SessionsChanged      Topic = "sessions-changed"
	IMUCursorChanged     Topic = "imu-cursor-changed"
	IMUTimeframeMarked   Topic = "imu-timeframe-marked"
	IMUTimeframeApplied  Topic = "imu-timeframe-applied"
	IMUTimeframeReset    Topic = "imu-timeframe-reset"
	TimeSyncChanged      Topic = "time-sync-changed"
	TimeSyncModeChanged  Topic = "time-sync-mode-changed"
)

// Event is one published notification.
type Event struct {
	Topic Topic                  `json:"topic"`
	Data  map[string]interface{} `json:"data,omitempty"`
}

// Handler receives published events.
type Handler func(Event)

// Bus is a synchronous in-process pub/sub bus. Safe for concurrent use;
// handlers for one Publish run on the publishing goroutine.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[Topic][]subscription
	all    []subscription
}

type subscription struct {
	id int
	fn Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Topic][]subscription)}
}

// Subscribe registers a handler for one topic and returns an unsubscribe
// function.
func (b *Bus) Subscribe(topic Topic, fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[topic]
		for i, s := range list {
			if s.id == id {
				b.subs[topic] = append(list[:i], list[i+1:]...)
				return
			}
		}
	}
}

// SubscribeAll registers a handler for every topic. Used by the WebSocket
// forwarder.
func (b *Bus) SubscribeAll(fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscription{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.all {
			if s.id == id {
				b.all = append(b.all[:i], b.all[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers the event to topic subscribers first, then to
// subscribe-all handlers, synchronously and in subscription order.
func (b *Bus) Publish(topic Topic, data map[string]interface{}) {
	b.mu.RLock()
	topicSubs := make([]subscription, len(b.subs[topic]))
	copy(topicSubs, b.subs[topic])
	allSubs := make([]subscription, len(b.all))
	copy(allSubs, b.all)
	b.mu.RUnlock()

	ev := Event{Topic: topic, Data: data}
	for _, s := range topicSubs {
		s.fn(ev)
	}
	for _, s := range allSubs {
		s.fn(ev)
	}
}
