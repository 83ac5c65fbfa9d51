package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gamepal-app/gamepal/analyze"
	"github.com/gamepal-app/gamepal/audiocapture"
	"github.com/gamepal-app/gamepal/capture"
	"github.com/gamepal-app/gamepal/config"
	"github.com/gamepal-app/gamepal/internal/types"
	"github.com/gamepal-app/gamepal/listen"
	"github.com/gamepal-app/gamepal/llm"
	"github.com/gamepal-app/gamepal/orchestrate"
	"github.com/gamepal-app/gamepal/recognize"
	"github.com/gamepal-app/gamepal/screenshot"
	"github.com/gamepal-app/gamepal/speech"
)

// session owns everything that lives only while listening: the microphone,
// detector, correlator, orchestrator, capture strategy and failure counter.
// Nothing in it is shared across listening sessions.
type session struct {
	mic        *audiocapture.Microphone
	listener   *listen.Listener
	correlator *capture.Correlator
	orch       *orchestrate.Orchestrator
	shooter    screenshot.Shooter
	change     *screenshot.ChangeDetector

	stop chan struct{}
	wg   sync.WaitGroup
}

// newSession wires a listening session from the current config. The session
// is not started.
func (s *Service) newSession(cred *types.APICredential) (*session, error) {
	if cred == nil {
		return nil, fmt.Errorf("no active API credential")
	}

	sess := &session{
		mic:     audiocapture.New(audiocapture.Config{}),
		shooter: screenshot.New(),
		change:  screenshot.NewChangeDetector(),
		stop:    make(chan struct{}),
	}

	completer := llm.NewCompleter(cred.Type, cred.APIKey, cred.BaseURL, cred.Model, llm.Options{})

	sess.correlator = capture.New(
		sess.shooter,
		s.bus,
		s.cfg.Capture.EscalationThreshold,
		func(seg listen.Segment, cs capture.Session) { sess.orch.Submit(seg, cs) },
		// Escalation fires on the correlator's session-close goroutine;
		// tearing down asynchronously keeps that goroutine out of its own
		// shutdown.
		func() { go s.stopAfterEscalation() },
	)

	sess.listener = listen.New(sess.mic, s.bus, sess.correlator, vadConfig(s.cfg.VAD))

	var speaker speech.Speaker
	if s.cfg.SpeakResponses {
		speaker = speech.NewOpenAI(speech.Config{APIKey: cred.APIKey, BaseURL: cred.BaseURL})
	}

	sess.orch = orchestrate.New(orchestrate.Config{
		Bus:        s.bus,
		Recognizer: recognize.NewWhisper(recognize.WhisperConfig{APIKey: cred.APIKey, BaseURL: cred.BaseURL}),
		Analyzer:   analyze.New(completer),
		Speaker:    speaker,
		History:    s.history,
		Listener:   sess.listener,
		Credential: s.cfg.GetActiveCredential,
		OnSpeech:   s.engine.OnStreamerSpeak,
		GameID:     s.facade.ActiveGame(),
		Persona:    s.companionPersona(),
		Speak:      s.cfg.SpeakResponses,
	})

	return sess, nil
}

func (sess *session) start(ctx context.Context) error {
	if err := sess.listener.Start(ctx); err != nil {
		return err
	}
	sess.wg.Add(1)
	go sess.captureLoop()
	return nil
}

// close stops the session's own machinery. An in-flight recognition chain is
// left alone; its side effects still land.
func (sess *session) close() {
	close(sess.stop)
	if err := sess.listener.Stop(); err != nil {
		slog.Error("stop listener", "error", err)
	}
	sess.correlator.Clear()
	sess.wg.Wait()
}

// captureLoop takes cadence-scheduled screenshots and feeds changed frames
// to the orchestrator for proactive commentary.
func (sess *session) captureLoop() {
	defer sess.wg.Done()

	for {
		select {
		case <-sess.stop:
			return
		case <-time.After(sess.orch.NextCaptureDelay()):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		shot, err := sess.shooter.Capture(ctx)
		cancel()
		if err != nil {
			slog.Debug("periodic capture failed", "error", err)
			continue
		}

		changed, err := sess.change.Changed(shot)
		if err != nil {
			slog.Debug("change detection failed", "error", err)
			continue
		}
		if !changed {
			continue
		}
		sess.orch.ObserveScreen(shot)
	}
}

func vadConfig(c config.VADConfig) listen.Config {
	return listen.Config{
		VolumeThreshold:   float32(c.Threshold),
		SilenceDuration:   secs(c.SilenceDuration),
		MinSpeechDuration: secs(c.MinSpeechDuration),
		MaxSpeechDuration: secs(c.MaxSpeechDuration),
	}
}

func secs(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
