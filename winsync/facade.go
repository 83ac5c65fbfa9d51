// Package winsync keeps the main, overlay and stage windows converged on the
// same conversation state without sharing memory between them.
package winsync

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gamepal-app/gamepal/bus"
	"github.com/gamepal-app/gamepal/internal/types"
	"github.com/gamepal-app/gamepal/simulate"
)

// History is the conversation store slice the facade writes through.
type History interface {
	Add(types.ChatMessage) (types.ChatMessage, error)
	Recent(gameID string, n int) ([]types.ChatMessage, error)
}

// GameChangedPayload is published on the game-changed topic.
type GameChangedPayload struct {
	GameID string `json:"gameId"`
}

// Projection is a read-only snapshot one window renders from. Windows never
// reach into each other's state; each asks the facade for its own copy.
type Projection struct {
	ActiveGame string              `json:"activeGame"`
	Messages   []types.ChatMessage `json:"messages"`
}

// Facade fans pipeline and simulation output into the shared conversation
// and broadcasts game switches so every window follows.
type Facade struct {
	bus     *bus.Bus
	history History
	guard   *bus.Guard
	dedup   *bus.Deduper

	mu         sync.RWMutex
	activeGame string
	unsub      func()
}

// NewFacade creates a facade scoped to gameID.
func NewFacade(b *bus.Bus, history History, gameID string) *Facade {
	return &Facade{
		bus:        b,
		history:    history,
		guard:      bus.NewGuard(),
		dedup:      bus.NewDeduper(),
		activeGame: gameID,
	}
}

// ActiveGame returns the game the windows are currently scoped to.
func (f *Facade) ActiveGame() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.activeGame
}

// GameChanged rescopes the conversation and tells every window to converge
// on the new game.
func (f *Facade) GameChanged(gameID string) {
	f.mu.Lock()
	if f.activeGame == gameID {
		f.mu.Unlock()
		return
	}
	f.activeGame = gameID
	f.mu.Unlock()

	slog.Info("active game changed", "gameId", gameID)
	f.bus.Publish(bus.TopicGameChanged, GameChangedPayload{GameID: gameID})
}

// WatchSimulation subscribes the facade to simulation events and fans each
// one into a conversation message. The subscription deduplicates on the
// envelope timestamp and refuses re-entrant registration, since the window
// framework may re-run setup without a teardown.
func (f *Facade) WatchSimulation() {
	unsub := bus.SubscribeGuarded(f.bus, f.guard, bus.TopicSimulationEvent, func(env bus.Envelope) {
		if f.dedup.Seen(env.EmittedAt) {
			return
		}
		ev, ok := env.Payload.(simulate.Event)
		if !ok {
			return
		}
		f.BroadcastStageEvents(ev)
	})
	if unsub == nil {
		// Refused re-entrant registration; the live subscription stands.
		return
	}
	f.mu.Lock()
	f.unsub = unsub
	f.mu.Unlock()
}

// BroadcastStageEvents turns simulated viewer interactions into conversation
// messages. They carry the viewer role and persona and never pass through
// the orchestrator.
func (f *Facade) BroadcastStageEvents(events ...simulate.Event) {
	game := f.ActiveGame()
	for _, ev := range events {
		msg := types.ChatMessage{
			Role:      "viewer",
			GameID:    game,
			PersonaID: ev.PersonaID,
			Nickname:  ev.Nickname,
			Content:   stageEventContent(ev),
		}
		stored, err := f.history.Add(msg)
		if err != nil {
			slog.Error("store stage message", "error", err)
			stored = msg
		}
		f.bus.Publish(bus.TopicChatMessage, stored)
	}
}

// Project returns the snapshot a window renders: the active game and its
// most recent messages.
func (f *Facade) Project(limit int) Projection {
	game := f.ActiveGame()
	msgs, err := f.history.Recent(game, limit)
	if err != nil {
		slog.Error("load projection messages", "error", err)
	}
	return Projection{ActiveGame: game, Messages: msgs}
}

// Close tears down the simulation subscription.
func (f *Facade) Close() {
	f.mu.Lock()
	unsub := f.unsub
	f.unsub = nil
	f.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func stageEventContent(ev simulate.Event) string {
	if ev.Type == simulate.EventGift {
		return fmt.Sprintf("送出了 %s x%d", ev.GiftName, ev.GiftCount)
	}
	return ev.Message
}
