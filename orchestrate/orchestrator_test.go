package orchestrate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gamepal-app/gamepal/analyze"
	"github.com/gamepal-app/gamepal/bus"
	"github.com/gamepal-app/gamepal/capture"
	"github.com/gamepal-app/gamepal/internal/types"
	"github.com/gamepal-app/gamepal/listen"
)

type fakeRecognizer struct {
	calls   atomic.Int32
	text    string
	err     error
	release chan struct{} // when non-nil, Recognize blocks until closed
}

func (f *fakeRecognizer) Recognize(ctx context.Context, seg listen.Segment) (string, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

type fakeAnalyzer struct {
	mu    sync.Mutex
	reqs  []analyze.Request
	reply string
	err   error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, req analyze.Request) (string, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	return f.reply, f.err
}

func (f *fakeAnalyzer) requests() []analyze.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]analyze.Request(nil), f.reqs...)
}

type fakeListener struct {
	mu            sync.Mutex
	doneCalls     int
	transcription string
}

func (f *fakeListener) SegmentDone() {
	f.mu.Lock()
	f.doneCalls++
	f.mu.Unlock()
}

func (f *fakeListener) SetLastTranscription(text string) {
	f.mu.Lock()
	f.transcription = text
	f.mu.Unlock()
}

func (f *fakeListener) done() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doneCalls
}

type memHistory struct {
	mu   sync.Mutex
	msgs []types.ChatMessage
}

func (h *memHistory) Add(msg types.ChatMessage) (types.ChatMessage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	msg.ID = "m"
	msg.Timestamp = time.Now().UnixMilli()
	h.msgs = append(h.msgs, msg)
	return msg, nil
}

func (h *memHistory) Recent(gameID string, n int) ([]types.ChatMessage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]types.ChatMessage(nil), h.msgs...), nil
}

func (h *memHistory) all() []types.ChatMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]types.ChatMessage(nil), h.msgs...)
}

func activeCred() *types.APICredential {
	return &types.APICredential{ID: "c1", Type: "openai", APIKey: "sk-test", Active: true}
}

type env struct {
	bus        *bus.Bus
	recognizer *fakeRecognizer
	analyzer   *fakeAnalyzer
	listener   *fakeListener
	history    *memHistory
	orch       *Orchestrator
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		bus:        bus.New(),
		recognizer: &fakeRecognizer{text: "nice shot"},
		analyzer:   &fakeAnalyzer{reply: "That was clean!"},
		listener:   &fakeListener{},
		history:    &memHistory{},
	}
	t.Cleanup(e.bus.Close)
	e.orch = New(Config{
		Bus:        e.bus,
		Recognizer: e.recognizer,
		Analyzer:   e.analyzer,
		History:    e.history,
		Listener:   e.listener,
		Credential: activeCred,
		GameID:     "celeste",
	})
	return e
}

func collect(t *testing.T, b *bus.Bus, topic string) <-chan bus.Envelope {
	t.Helper()
	ch := make(chan bus.Envelope, 16)
	unsub := b.Subscribe(topic, func(ev bus.Envelope) { ch <- ev })
	t.Cleanup(unsub)
	return ch
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestOrchestrator_HappyPath(t *testing.T) {
	e := newEnv(t)
	responses := collect(t, e.bus, bus.TopicAIResponseReady)
	thinking := collect(t, e.bus, bus.TopicAIThinking)

	e.orch.Submit(listen.Segment{PCM: make([]float32, 320), SampleRate: 16000}, capture.Session{
		Before: []byte("before-jpeg"),
		After:  []byte("after-jpeg"),
	})

	select {
	case ev := <-responses:
		msg := ev.Payload.(types.ChatMessage)
		if msg.Role != "assistant" || msg.Content != "That was clean!" {
			t.Errorf("response message = %+v", msg)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no ai_response_ready event")
	}

	select {
	case <-thinking:
	default:
		t.Error("no ai_thinking event before the response")
	}

	waitFor(t, func() bool { return e.listener.done() == 1 }, "SegmentDone not called")

	reqs := e.analyzer.requests()
	if len(reqs) != 1 {
		t.Fatalf("analyzer calls = %d, want 1", len(reqs))
	}
	if reqs[0].SpeechText != "nice shot" {
		t.Errorf("SpeechText = %q", reqs[0].SpeechText)
	}
	if !strings.HasPrefix(reqs[0].ScreenshotBefore, "data:image/jpeg;base64,") {
		t.Errorf("ScreenshotBefore = %q, want data URL", reqs[0].ScreenshotBefore)
	}

	msgs := e.history.all()
	if len(msgs) != 2 || msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Errorf("stored messages = %+v", msgs)
	}
}

func TestOrchestrator_OverlappingSubmitDropped(t *testing.T) {
	e := newEnv(t)
	e.recognizer.release = make(chan struct{})
	responses := collect(t, e.bus, bus.TopicAIResponseReady)

	seg := listen.Segment{PCM: make([]float32, 320), SampleRate: 16000}
	e.orch.Submit(seg, capture.Session{})

	waitFor(t, func() bool { return e.recognizer.calls.Load() == 1 }, "first chain never started")
	if !e.orch.InFlight() {
		t.Fatal("InFlight() = false while chain is blocked")
	}

	// Second segment lands while the first is still recognizing.
	e.orch.Submit(seg, capture.Session{})

	close(e.recognizer.release)

	select {
	case <-responses:
	case <-time.After(3 * time.Second):
		t.Fatal("first chain never completed")
	}

	if got := e.recognizer.calls.Load(); got != 1 {
		t.Errorf("recognizer calls = %d, want 1 (overlap must be dropped)", got)
	}

	select {
	case ev := <-responses:
		t.Fatalf("unexpected second response %+v", ev.Payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestOrchestrator_NoCredential(t *testing.T) {
	e := newEnv(t)
	e.orch.cfg.Credential = func() *types.APICredential { return nil }
	errs := collect(t, e.bus, bus.TopicVoiceError)

	e.orch.Submit(listen.Segment{PCM: make([]float32, 320)}, capture.Session{})

	select {
	case ev := <-errs:
		p := ev.Payload.(VoiceErrorPayload)
		if !strings.Contains(p.Message, "credential") {
			t.Errorf("voice_error message = %q", p.Message)
		}
	case <-time.After(time.Second):
		t.Fatal("no voice_error event")
	}

	waitFor(t, func() bool { return e.listener.done() == 1 }, "SegmentDone not called")
	if got := e.recognizer.calls.Load(); got != 0 {
		t.Errorf("recognizer calls = %d, want 0", got)
	}
}

func TestOrchestrator_RecognitionFailure(t *testing.T) {
	e := newEnv(t)
	e.recognizer.err = errors.New("api unreachable")
	errs := collect(t, e.bus, bus.TopicVoiceError)

	e.orch.Submit(listen.Segment{PCM: make([]float32, 320)}, capture.Session{})

	select {
	case ev := <-errs:
		p := ev.Payload.(VoiceErrorPayload)
		if !strings.Contains(p.Message, "api unreachable") {
			t.Errorf("voice_error message = %q", p.Message)
		}
	case <-time.After(time.Second):
		t.Fatal("no voice_error event")
	}

	waitFor(t, func() bool { return e.listener.done() == 1 }, "SegmentDone not called")
	if len(e.analyzer.requests()) != 0 {
		t.Error("analyzer called after recognition failure")
	}
}

func TestOrchestrator_AnalysisFailureStillResponds(t *testing.T) {
	e := newEnv(t)
	e.analyzer.err = errors.New("model overloaded")
	responses := collect(t, e.bus, bus.TopicAIResponseReady)

	e.orch.Submit(listen.Segment{PCM: make([]float32, 320)}, capture.Session{})

	select {
	case ev := <-responses:
		msg := ev.Payload.(types.ChatMessage)
		if msg.Role != "assistant" || !strings.Contains(msg.Content, "model overloaded") {
			t.Errorf("diagnostic message = %+v", msg)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no diagnostic response after analysis failure")
	}

	waitFor(t, func() bool { return e.listener.done() == 1 }, "SegmentDone not called")
}

func TestOrchestrator_CadenceDirectiveApplied(t *testing.T) {
	e := newEnv(t)
	e.analyzer.reply = "On it! ```json\n{\"active\": true, \"now\": true, \"suggested_interval\": 2}\n```"
	responses := collect(t, e.bus, bus.TopicAIResponseReady)

	e.orch.Submit(listen.Segment{PCM: make([]float32, 320)}, capture.Session{})

	select {
	case ev := <-responses:
		msg := ev.Payload.(types.ChatMessage)
		if msg.Content != "On it!" {
			t.Errorf("display text = %q, want control block stripped", msg.Content)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no response")
	}

	// now:true arms a one-shot immediate capture.
	if got := e.orch.NextCaptureDelay(); got != 0 {
		t.Errorf("NextCaptureDelay() = %v, want 0 after now directive", got)
	}
	if got := e.orch.NextCaptureDelay(); got != 2*time.Second {
		t.Errorf("second NextCaptureDelay() = %v, want suggested 2s", got)
	}
}

// idleSource is a listen.Source that never delivers chunks; the test feeds
// the orchestrator directly.
type idleSource struct{}

func (idleSource) Start(func([]float32)) error { return nil }
func (idleSource) Stop() error                 { return nil }
func (idleSource) SampleRate() int             { return 16000 }

// TestOrchestrator_SurvivesListenerStop stops and restarts the listener while
// a chain is blocked in recognition. The in-flight reply must still land;
// stopping the microphone never suppresses ai_response_ready.
func TestOrchestrator_SurvivesListenerStop(t *testing.T) {
	e := newEnv(t)
	lst := listen.New(idleSource{}, e.bus, nil, listen.DefaultConfig())
	e.orch.cfg.Listener = lst
	e.recognizer.release = make(chan struct{})
	responses := collect(t, e.bus, bus.TopicAIResponseReady)

	if err := lst.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	e.orch.Submit(listen.Segment{PCM: make([]float32, 320), SampleRate: 16000}, capture.Session{})
	waitFor(t, func() bool { return e.recognizer.calls.Load() == 1 }, "chain never started")

	// Stop mid-chain, then resume before the chain finishes.
	if err := lst.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := lst.Start(context.Background()); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	defer lst.Stop()

	close(e.recognizer.release)

	select {
	case ev := <-responses:
		msg := ev.Payload.(types.ChatMessage)
		if msg.Role != "assistant" || msg.Content != "That was clean!" {
			t.Errorf("response message = %+v", msg)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no ai_response_ready after stop and resume")
	}

	waitFor(t, func() bool { return !e.orch.InFlight() }, "chain still in flight after response")
}

func TestOrchestrator_EmptyTranscriptionSkipsAnalysis(t *testing.T) {
	e := newEnv(t)
	e.recognizer.text = ""

	e.orch.Submit(listen.Segment{PCM: make([]float32, 320)}, capture.Session{})

	waitFor(t, func() bool { return e.listener.done() == 1 }, "SegmentDone not called")
	if len(e.analyzer.requests()) != 0 {
		t.Error("analyzer called for empty transcription")
	}
	if len(e.history.all()) != 0 {
		t.Error("message stored for empty transcription")
	}
}
