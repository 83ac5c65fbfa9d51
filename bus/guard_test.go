package bus

import (
	"testing"
	"time"
)

func TestGuard_RefusesSecondRegistration(t *testing.T) {
	g := NewGuard()

	if !g.Acquire("stage") {
		t.Fatal("first Acquire refused")
	}
	if g.Acquire("stage") {
		t.Fatal("second Acquire allowed for same topic")
	}
	if !g.Acquire("overlay") {
		t.Fatal("Acquire refused for different topic")
	}

	g.Release("stage")
	if !g.Acquire("stage") {
		t.Fatal("Acquire refused after Release")
	}
}

// TestSubscribeGuarded simulates the window framework re-running setup
// without teardown: the second subscription must be a no-op so the handler
// fires once per event.
func TestSubscribeGuarded(t *testing.T) {
	b := New()
	defer b.Close()
	g := NewGuard()

	got := make(chan struct{}, 4)
	handler := func(Envelope) { got <- struct{}{} }

	unsub1 := SubscribeGuarded(b, g, "stage", handler)
	if unsub1 == nil {
		t.Fatal("first registration refused")
	}
	defer unsub1()

	if unsub2 := SubscribeGuarded(b, g, "stage", handler); unsub2 != nil {
		t.Fatal("second registration accepted for same topic")
	}

	b.Publish("stage", nil)

	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	select {
	case <-got:
		t.Fatal("handler invoked twice: re-entrant subscription not guarded")
	case <-time.After(50 * time.Millisecond):
	}
}
