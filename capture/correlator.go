// Package capture binds before/after screenshots to speech segments so the
// analysis step can see what happened on screen around an utterance.
package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gamepal-app/gamepal/bus"
	"github.com/gamepal-app/gamepal/listen"
	"github.com/gamepal-app/gamepal/screenshot"
)

// DefaultFailureThreshold is the number of consecutive fully-failed capture
// sessions after which the pipeline escalates.
const DefaultFailureThreshold = 2

const captureTimeout = 5 * time.Second

// Session is one correlated capture. Either shot may be empty when its
// capture failed; analysis degrades rather than fails.
type Session struct {
	Before   []byte
	After    []byte
	OpenedAt time.Time
}

// ScreenshotStartedPayload is published on the screenshot_started topic.
type ScreenshotStartedPayload struct {
	Phase string `json:"phase"` // "before" or "after"
}

// Correlator receives the listener's speech transitions, captures a screen
// shot on each side of the segment, and hands the pair downstream. At most
// one session is open at a time.
type Correlator struct {
	shooter  screenshot.Shooter
	bus      *bus.Bus
	submit   func(seg listen.Segment, sess Session)
	escalate func()
	failures *FailureCounter

	mu  sync.Mutex
	cur *openSession
}

type openSession struct {
	openedAt   time.Time
	beforeDone chan struct{}
	before     []byte
}

// New creates a correlator. submit receives each closed session; escalate
// fires when the failure counter reaches its threshold.
func New(shooter screenshot.Shooter, b *bus.Bus, threshold int, submit func(listen.Segment, Session), escalate func()) *Correlator {
	return &Correlator{
		shooter:  shooter,
		bus:      b,
		submit:   submit,
		escalate: escalate,
		failures: NewFailureCounter(threshold),
	}
}

// Failures exposes the session failure counter.
func (c *Correlator) Failures() *FailureCounter { return c.failures }

// SpeechStarted opens a session and issues the "before" capture. The capture
// runs off the audio path; a failure leaves the slot empty.
func (c *Correlator) SpeechStarted() {
	s := &openSession{
		openedAt:   time.Now(),
		beforeDone: make(chan struct{}),
	}

	c.mu.Lock()
	c.cur = s
	c.mu.Unlock()

	c.bus.Publish(bus.TopicScreenshotStarted, ScreenshotStartedPayload{Phase: "before"})

	go func() {
		defer close(s.beforeDone)
		data, err := c.captureOne()
		if err != nil {
			slog.Warn("before screenshot failed", "error", err)
			return
		}
		s.before = data
	}()
}

// SpeechEnded closes the session and hands the "after" capture and the
// downstream handoff to a goroutine. The caller is the microphone callback;
// a stuck capture backend must never stall audio intake.
func (c *Correlator) SpeechEnded(seg listen.Segment) {
	c.mu.Lock()
	s := c.cur
	c.cur = nil
	c.mu.Unlock()

	go c.closeSession(seg, s)
}

func (c *Correlator) closeSession(seg listen.Segment, s *openSession) {
	sess := Session{OpenedAt: time.Now()}
	if s != nil {
		// The before capture is issued strictly first; wait out its
		// deadline before starting the after shot. Past the deadline the
		// before slot stays empty, its goroutine may still be writing.
		select {
		case <-s.beforeDone:
			sess.Before = s.before
		case <-time.After(captureTimeout):
		}
		sess.OpenedAt = s.openedAt
	}

	c.bus.Publish(bus.TopicScreenshotStarted, ScreenshotStartedPayload{Phase: "after"})
	after, err := c.captureOne()
	if err != nil {
		slog.Warn("after screenshot failed", "error", err)
	}
	sess.After = after

	escalated := false
	if len(sess.Before) == 0 && len(sess.After) == 0 {
		escalated = c.failures.Failure()
		slog.Warn("capture session closed with no screenshots",
			"consecutiveFailures", c.failures.Count())
	} else {
		c.failures.Success()
	}

	// The segment is still worth recognizing even without screenshots.
	c.submit(seg, sess)

	if escalated && c.escalate != nil {
		slog.Error("screenshot capture failing repeatedly, stopping session")
		c.escalate()
	}
}

// Clear drops any open session without handing it off. Called when the
// listening session stops.
func (c *Correlator) Clear() {
	c.mu.Lock()
	c.cur = nil
	c.mu.Unlock()
}

func (c *Correlator) captureOne() ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), captureTimeout)
	defer cancel()
	return c.shooter.Capture(ctx)
}

// FailureCounter tracks consecutive capture sessions that produced no
// screenshots at all. Any successful capture resets it.
type FailureCounter struct {
	mu        sync.Mutex
	count     int
	threshold int
	fired     bool
}

// NewFailureCounter creates a counter. A threshold below 1 falls back to the
// default.
func NewFailureCounter(threshold int) *FailureCounter {
	if threshold < 1 {
		threshold = DefaultFailureThreshold
	}
	return &FailureCounter{threshold: threshold}
}

// Failure records a fully-failed session and reports whether the threshold
// was just reached. It fires at most once until a success resets it.
func (f *FailureCounter) Failure() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	if f.count >= f.threshold && !f.fired {
		f.fired = true
		return true
	}
	return false
}

// Success resets the counter.
func (f *FailureCounter) Success() {
	f.mu.Lock()
	f.count = 0
	f.fired = false
	f.mu.Unlock()
}

// Count returns the current consecutive failure count.
func (f *FailureCounter) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}
