package bus

import "sync"

// Guard prevents re-entrant topic subscription. The hosting window framework
// may re-run a window's setup logic without a matching teardown, so each
// component records which topics it already registered for and refuses a
// second registration within its lifetime.
type Guard struct {
	mu         sync.Mutex
	registered map[string]bool
}

// NewGuard creates an empty subscription guard.
func NewGuard() *Guard {
	return &Guard{registered: make(map[string]bool)}
}

// Acquire marks topic as registered. It returns false if the topic was
// already registered, in which case the caller must not subscribe again.
func (g *Guard) Acquire(topic string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.registered[topic] {
		return false
	}
	g.registered[topic] = true
	return true
}

// Release clears the registration for topic, typically from a teardown path
// that did run.
func (g *Guard) Release(topic string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.registered, topic)
}

// SubscribeGuarded subscribes handler to topic unless the guard already holds
// a registration for it. The returned unsubscribe function also releases the
// guard; it is nil when the registration was refused, so a caller never
// mistakes a refused registration's teardown for the live one.
func SubscribeGuarded(b *Bus, g *Guard, topic string, handler Handler) func() {
	if !g.Acquire(topic) {
		return nil
	}
	unsub := b.Subscribe(topic, handler)
	return func() {
		unsub()
		g.Release(topic)
	}
}
