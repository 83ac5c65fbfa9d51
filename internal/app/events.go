// Package app provides the core application service for Wails bindings.
package app

import (
	"log/slog"

	"github.com/gamepal-app/gamepal/bus"
	"github.com/wailsapp/wails/v3/pkg/application"
)

// bridgedTopics are forwarded from the in-process bus to the Wails frontend
// event system, so every webview sees the same stream.
var bridgedTopics = []string{
	bus.TopicSpeechStarted,
	bus.TopicSpeechEnded,
	bus.TopicAIThinking,
	bus.TopicAIResponseReady,
	bus.TopicScreenshotStarted,
	bus.TopicVoiceError,
	bus.TopicGameChanged,
	bus.TopicSimulationEvent,
	bus.TopicChatMessage,
	bus.TopicListeningStopped,
}

// bridgeEvents mirrors bus topics onto the Wails event system. Returns a
// teardown that removes every forwarding subscription.
func bridgeEvents(b *bus.Bus, wails *application.App) func() {
	unsubs := make([]func(), 0, len(bridgedTopics))
	for _, topic := range bridgedTopics {
		unsubs = append(unsubs, b.Subscribe(topic, func(env bus.Envelope) {
			wails.Event.Emit(env.Topic, env.Payload)
		}))
	}
	slog.Debug("event bridge installed", "topics", len(bridgedTopics))
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
