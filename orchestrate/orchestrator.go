// Package orchestrate runs the recognize, analyze, respond chain for each
// finished speech segment.
package orchestrate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gamepal-app/gamepal/analyze"
	"github.com/gamepal-app/gamepal/bus"
	"github.com/gamepal-app/gamepal/cadence"
	"github.com/gamepal-app/gamepal/capture"
	"github.com/gamepal-app/gamepal/internal/types"
	"github.com/gamepal-app/gamepal/langdetect"
	"github.com/gamepal-app/gamepal/listen"
	"github.com/gamepal-app/gamepal/recognize"
	"github.com/gamepal-app/gamepal/speech"
)

const chainTimeout = 60 * time.Second

// Listener is the slice of the audio listener the orchestrator drives.
type Listener interface {
	SegmentDone()
	SetLastTranscription(string)
}

// History stores and replays conversation messages.
type History interface {
	Add(types.ChatMessage) (types.ChatMessage, error)
	Recent(gameID string, n int) ([]types.ChatMessage, error)
}

// VoiceErrorPayload is published on the voice_error topic.
type VoiceErrorPayload struct {
	Message string `json:"message"`
}

// Config wires an orchestrator's collaborators. Speaker and OnSpeech are
// optional.
type Config struct {
	Bus        *bus.Bus
	Recognizer recognize.Recognizer
	Analyzer   analyze.Analyzer
	Speaker    speech.Speaker
	History    History
	Listener   Listener
	Strategy   *cadence.Strategy
	Credential func() *types.APICredential
	OnSpeech   func(text string) // simulated audience reaction
	GameID     string
	Persona    *types.Persona
	Speak      bool
}

// Orchestrator turns one speech segment at a time into a companion reply.
// A segment arriving while a chain is in flight is dropped, not queued;
// a stale utterance is worth less than keeping the pipeline current.
type Orchestrator struct {
	cfg Config

	inFlight atomic.Bool
	strategy *cadence.Strategy
	stratMu  sync.Mutex
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.Strategy == nil {
		s := cadence.DefaultStrategy()
		cfg.Strategy = &s
	}
	return &Orchestrator{cfg: cfg, strategy: cfg.Strategy}
}

// InFlight reports whether a chain is currently running.
func (o *Orchestrator) InFlight() bool { return o.inFlight.Load() }

// NextCaptureDelay returns the current capture schedule's next delay.
func (o *Orchestrator) NextCaptureDelay() time.Duration {
	o.stratMu.Lock()
	defer o.stratMu.Unlock()
	return o.strategy.NextDelay()
}

// Submit starts the chain for a segment. It returns immediately; the chain
// runs on its own goroutine and survives a listening-session stop so the
// streamer's last utterance is never lost mid-flight.
func (o *Orchestrator) Submit(seg listen.Segment, sess capture.Session) {
	cred := o.cfg.Credential()
	if cred == nil {
		slog.Warn("no active API credential, dropping segment")
		o.cfg.Bus.Publish(bus.TopicVoiceError, VoiceErrorPayload{
			Message: "no active API credential configured",
		})
		o.cfg.Listener.SegmentDone()
		return
	}

	if !o.inFlight.CompareAndSwap(false, true) {
		// Intentional backpressure, not an error.
		slog.Debug("chain in flight, dropping segment", "duration", seg.Duration)
		return
	}

	go o.run(seg, sess)
}

// ObserveScreen runs a proactive analysis of a periodic screenshot, with no
// utterance attached. It competes for the same in-flight lock as Submit and
// silently yields when a speech chain is running or no credential is set.
func (o *Orchestrator) ObserveScreen(shot []byte) {
	if len(shot) == 0 || o.cfg.Credential() == nil {
		return
	}
	if !o.inFlight.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer o.inFlight.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), chainTimeout)
		defer cancel()

		history, err := o.cfg.History.Recent(o.cfg.GameID, 10)
		if err != nil {
			slog.Error("load conversation history", "error", err)
		}

		reply, err := o.cfg.Analyzer.Analyze(ctx, analyze.Request{
			ScreenshotAfter: analyze.DataURL(shot),
			GameID:          o.cfg.GameID,
			Persona:         o.cfg.Persona,
			History:         history,
		})
		if err != nil {
			// Unlike the speech path, unsolicited commentary fails quietly.
			slog.Error("screen observation failed", "error", err)
			return
		}

		directive, display := cadence.Parse(reply)
		o.stratMu.Lock()
		cadence.Apply(directive, o.strategy)
		o.stratMu.Unlock()

		if display != "" {
			o.respond(display, o.cfg.Speak)
		}
	}()
}

func (o *Orchestrator) run(seg listen.Segment, sess capture.Session) {
	defer o.inFlight.Store(false)
	defer o.cfg.Listener.SegmentDone()

	ctx, cancel := context.WithTimeout(context.Background(), chainTimeout)
	defer cancel()

	text, err := o.cfg.Recognizer.Recognize(ctx, seg)
	if err != nil {
		slog.Error("recognition failed", "error", err)
		o.cfg.Bus.Publish(bus.TopicVoiceError, VoiceErrorPayload{
			Message: fmt.Sprintf("speech recognition failed: %v", err),
		})
		return
	}
	if text == "" {
		slog.Debug("recognition returned empty text")
		return
	}

	o.cfg.Listener.SetLastTranscription(text)
	langCode, _ := langdetect.Detect(text)

	userMsg := types.ChatMessage{
		Role:     "user",
		GameID:   o.cfg.GameID,
		Content:  text,
		Language: langCode,
	}
	stored, err := o.cfg.History.Add(userMsg)
	if err != nil {
		slog.Error("store user message", "error", err)
	} else {
		userMsg = stored
	}
	o.cfg.Bus.Publish(bus.TopicChatMessage, userMsg)

	if o.cfg.OnSpeech != nil {
		o.cfg.OnSpeech(text)
	}

	o.cfg.Bus.Publish(bus.TopicAIThinking, nil)

	history, err := o.cfg.History.Recent(o.cfg.GameID, 10)
	if err != nil {
		slog.Error("load conversation history", "error", err)
	}

	reply, err := o.cfg.Analyzer.Analyze(ctx, analyze.Request{
		SpeechText:       text,
		ScreenshotBefore: analyze.DataURL(sess.Before),
		ScreenshotAfter:  analyze.DataURL(sess.After),
		GameID:           o.cfg.GameID,
		Persona:          o.cfg.Persona,
		History:          history,
	})
	if err != nil {
		slog.Error("analysis failed", "error", err)
		// The user always sees something, never a silent drop.
		o.respond(fmt.Sprintf("analysis failed: %v", err), false)
		return
	}

	directive, display := cadence.Parse(reply)
	o.stratMu.Lock()
	cadence.Apply(directive, o.strategy)
	o.stratMu.Unlock()

	o.respond(display, o.cfg.Speak)
}

// respond records and publishes an assistant message, optionally voicing it.
func (o *Orchestrator) respond(text string, speak bool) {
	msg := types.ChatMessage{
		Role:    "assistant",
		GameID:  o.cfg.GameID,
		Content: text,
	}
	if o.cfg.Persona != nil {
		msg.PersonaID = o.cfg.Persona.ID
		msg.Nickname = o.cfg.Persona.Nickname
	}

	stored, err := o.cfg.History.Add(msg)
	if err != nil {
		slog.Error("store assistant message", "error", err)
	} else {
		msg = stored
	}

	o.cfg.Bus.Publish(bus.TopicAIResponseReady, msg)
	o.cfg.Bus.Publish(bus.TopicChatMessage, msg)

	if speak && o.cfg.Speaker != nil && text != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), chainTimeout)
			defer cancel()
			if err := o.cfg.Speaker.Speak(ctx, text, true); err != nil {
				slog.Error("spoken playback failed", "error", err)
			}
		}()
	}
}
