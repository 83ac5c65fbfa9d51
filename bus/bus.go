// Package bus provides the in-process event bus connecting the pipeline to
// every window surface.
package bus

import (
	"log/slog"
	"sync"
	"time"
)

// Envelope wraps a published payload with its topic and emission time.
// EmittedAt doubles as the idempotency key for deduplicating subscribers.
type Envelope struct {
	Topic     string `json:"topic"`
	Payload   any    `json:"payload"`
	EmittedAt int64  `json:"emittedAt"` // Unix milliseconds
}

// Handler receives envelopes for a subscribed topic.
type Handler func(Envelope)

// subscriberQueueSize bounds the per-subscriber delivery queue. A slow
// subscriber drops events rather than stalling publishers.
const subscriberQueueSize = 128

type subscriber struct {
	ch   chan Envelope
	done chan struct{}
}

// Bus delivers topic events to every subscriber. Delivery to a single
// subscriber preserves publish order; ordering between subscribers is
// unspecified.
type Bus struct {
	mu         sync.RWMutex
	subs       map[string]map[int]*subscriber
	nextID     int
	lastMillis int64
	closed     bool
}

// New creates an event bus.
func New() *Bus {
	return &Bus{subs: make(map[string]map[int]*subscriber)}
}

// Publish delivers payload to every current subscriber of topic.
// Fire-and-forget: a full subscriber queue drops the event for that
// subscriber only.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}

	// Keep emission timestamps strictly increasing so they stay usable as
	// idempotency keys even when two publishes land in the same millisecond.
	now := time.Now().UnixMilli()
	if now <= b.lastMillis {
		now = b.lastMillis + 1
	}
	b.lastMillis = now

	env := Envelope{Topic: topic, Payload: payload, EmittedAt: now}

	targets := make([]*subscriber, 0, len(b.subs[topic]))
	for _, sub := range b.subs[topic] {
		targets = append(targets, sub)
	}
	b.mu.Unlock()

	for _, sub := range targets {
		select {
		case sub.ch <- env:
		default:
			slog.Warn("event bus subscriber queue full, dropping event", "topic", topic)
		}
	}
}

// Subscribe registers handler for topic and returns an unsubscribe function.
// The handler runs on a dedicated goroutine, one envelope at a time, in
// publish order.
func (b *Bus) Subscribe(topic string, handler Handler) func() {
	sub := &subscriber{
		ch:   make(chan Envelope, subscriberQueueSize),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	b.nextID++
	id := b.nextID
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]*subscriber)
	}
	b.subs[topic][id] = sub
	b.mu.Unlock()

	go func() {
		for {
			select {
			case env := <-sub.ch:
				handler(env)
			case <-sub.done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			// Close may have already torn the subscriber down.
			if m := b.subs[topic]; m != nil {
				if _, ok := m[id]; ok {
					delete(m, id)
					close(sub.done)
				}
			}
		})
	}
}

// Close stops delivery to all subscribers.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, m := range b.subs {
		for id, sub := range m {
			close(sub.done)
			delete(m, id)
		}
	}
}
