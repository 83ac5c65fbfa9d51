// Package listen tracks voice activity on the microphone and cuts the audio
// stream into speech segments for recognition.
package listen

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gamepal-app/gamepal/bus"
	"github.com/gamepal-app/gamepal/internal/types"
)

// ErrAlreadyListening is returned when Start is called on a running listener.
var ErrAlreadyListening = errors.New("already listening")

// Segment is one finished speech segment. Immutable once produced; consumed
// exactly once by the orchestrator.
type Segment struct {
	PCM        []float32
	SampleRate int
	Duration   time.Duration
}

// Source supplies microphone audio as PCM float32 chunks.
type Source interface {
	Start(onSamples func([]float32)) error
	Stop() error
	SampleRate() int
}

// Sink receives the listener's speech transitions. The capture correlator
// implements this to bind screenshots to segments.
type Sink interface {
	SpeechStarted()
	SpeechEnded(seg Segment)
}

// SpeechEndedPayload is published on the speech_ended topic.
type SpeechEndedPayload struct {
	DurationSeconds float64 `json:"durationSeconds"`
}

// Listener drives microphone chunks through the voice-activity detector and
// hands finished segments downstream.
type Listener struct {
	source Source
	bus    *bus.Bus
	sink   Sink

	mu                sync.Mutex
	det               *Detector
	running           bool
	lastTranscription string
}

// New creates a listener. The sink may be nil in tests.
func New(source Source, b *bus.Bus, sink Sink, cfg Config) *Listener {
	return &Listener{
		source: source,
		bus:    b,
		sink:   sink,
		det:    NewDetector(cfg),
	}
}

// Start begins monitoring audio input. The context is retained only for the
// duration of the call; monitoring continues until Stop.
func (l *Listener) Start(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return ErrAlreadyListening
	}

	l.det.Reset()
	l.lastTranscription = ""

	if err := l.source.Start(l.handleChunk); err != nil {
		return err
	}

	l.running = true
	slog.Info("listening started", "sampleRate", l.source.SampleRate())
	return nil
}

// Stop halts monitoring and discards any partially accumulated segment. An
// in-flight recognition chain is not aborted; its side effects still occur.
func (l *Listener) Stop() error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = false
	l.mu.Unlock()

	// The source's Stop joins its delivery goroutine, which may itself be
	// inside handleChunk waiting on l.mu. Stopping outside the lock lets
	// that last callback drain instead of deadlocking.
	err := l.source.Stop()

	l.mu.Lock()
	l.det.Reset()
	l.mu.Unlock()

	if err != nil {
		slog.Error("stop audio source", "error", err)
		return err
	}
	slog.Info("listening stopped")
	return nil
}

// IsRunning reports whether the listener is monitoring audio.
func (l *Listener) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// SetLastTranscription records the most recent recognition result for the
// status snapshot.
func (l *Listener) SetLastTranscription(text string) {
	l.mu.Lock()
	l.lastTranscription = text
	l.mu.Unlock()
}

// SegmentDone returns the state machine to Idle after the recognition and
// analysis chain for the last segment reached a terminal path.
func (l *Listener) SegmentDone() {
	l.mu.Lock()
	l.det.MarkProcessed()
	l.mu.Unlock()
}

// Status returns a poll-able snapshot for the overlay window.
func (l *Listener) Status() types.ListenerStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return types.ListenerStatus{
		State:             l.det.State().String(),
		Listening:         l.running,
		RecordingDuration: l.det.RecordingDuration().Seconds(),
		BufferSize:        l.det.BufferSize(),
		LastTranscription: l.lastTranscription,
	}
}

// handleChunk processes one chunk of microphone samples.
func (l *Listener) handleChunk(samples []float32) {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}

	res := l.det.Process(samples)

	var seg Segment
	if res.Event == EventSpeechEnd {
		seg = Segment{
			PCM:        l.det.TakeBuffer(),
			SampleRate: l.source.SampleRate(),
			Duration:   res.Duration,
		}
	}
	l.mu.Unlock()

	switch res.Event {
	case EventSpeechStart:
		slog.Debug("speech started")
		l.bus.Publish(bus.TopicSpeechStarted, nil)
		if l.sink != nil {
			l.sink.SpeechStarted()
		}
	case EventSpeechEnd:
		slog.Debug("speech ended", "duration", seg.Duration)
		l.bus.Publish(bus.TopicSpeechEnded, SpeechEndedPayload{
			DurationSeconds: seg.Duration.Seconds(),
		})
		if l.sink != nil {
			l.sink.SpeechEnded(seg)
		}
	}
}
