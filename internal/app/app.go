// Package app provides the core application service for Wails bindings.
package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gamepal-app/gamepal/bus"
	"github.com/gamepal-app/gamepal/clipboard"
	"github.com/gamepal-app/gamepal/config"
	"github.com/gamepal-app/gamepal/convo"
	"github.com/gamepal-app/gamepal/hotkey"
	"github.com/gamepal-app/gamepal/internal/types"
	"github.com/gamepal-app/gamepal/langdetect"
	"github.com/gamepal-app/gamepal/screenshot"
	"github.com/gamepal-app/gamepal/simulate"
	"github.com/gamepal-app/gamepal/winsync"

	"github.com/wailsapp/wails/v3/pkg/application"
)

// ListeningStoppedPayload is published on the listening_stopped topic.
type ListeningStoppedPayload struct {
	Reason string `json:"reason"` // "user" or "capture_failure"
}

// The AI companion identity attached to analysis prompts and replies.
var companion = &types.Persona{
	ID:          "companion",
	Nickname:    "GamePal",
	Personality: "upbeat, observant couch co-op friend",
}

// Service provides application functionality bound to Wails.
// This struct focuses on orchestration; business logic lives in the feature
// packages.
type Service struct {
	cfg     *config.Config
	bus     *bus.Bus
	store   *convo.Store
	history winsync.History
	facade  *winsync.Facade
	engine  *simulate.Engine
	hotkey  *hotkey.Manager

	// UI references - set via Init
	app          *application.App
	window       application.Window
	bridgeDown   func()
	shutdownOnce sync.Once

	mu   sync.Mutex
	sess *session

	// Version info (set by caller)
	version string
}

// New creates a new Service. Call Init() after the Wails app is created.
func New(version string) *Service {
	return &Service{version: version, bus: bus.New()}
}

// GetVersion returns the application version.
func (s *Service) GetVersion() string {
	return s.version
}

// Bus exposes the in-process event bus, used by main.go for window wiring.
func (s *Service) Bus() *bus.Bus {
	return s.bus
}

// Init initializes the service with app and window references.
// Must be called after the Wails application is created.
func (s *Service) Init(app *application.App, window application.Window) {
	s.app = app
	s.window = window

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		cfg = &config.Config{}
	}
	s.cfg = cfg

	s.setupStore()
	s.facade = winsync.NewFacade(s.bus, s.history, cfg.ActiveGameID)
	s.facade.WatchSimulation()
	s.engine = simulate.NewEngine(s.bus, cfg.GetPersonas(), cfg.GiftFrequency)

	s.bridgeDown = bridgeEvents(s.bus, app)
	s.setupHotkey()
}

// Shutdown cleans up resources.
func (s *Service) Shutdown() {
	s.shutdownOnce.Do(func() {
		if s.hotkey != nil {
			s.hotkey.Stop()
		}
		_ = s.StopListening()
		if s.engine != nil {
			s.engine.Stop()
		}
		if s.facade != nil {
			s.facade.Close()
		}
		if s.bridgeDown != nil {
			s.bridgeDown()
		}
		if s.store != nil {
			if err := s.store.Close(); err != nil {
				slog.Error("close conversation store", "error", err)
			}
		}
		s.bus.Close()
	})
}

func (s *Service) setupStore() {
	// Memory-only history when the on-disk store is unavailable; the session
	// still works, it just forgets on restart.
	s.history = &memoryHistory{}

	configDir, err := os.UserConfigDir()
	if err != nil {
		slog.Error("get config dir for store", "error", err)
		return
	}

	storePath := filepath.Join(configDir, "gamepal", "conversations")
	store, err := convo.Open(storePath)
	if err != nil {
		slog.Error("open conversation store", "error", err)
		return
	}
	s.store = store
	s.history = store
	slog.Info("conversation store opened", "path", storePath)
}

func (s *Service) setupHotkey() {
	s.hotkey = hotkey.NewManager(s.cfg.Hotkey, func() {
		if err := s.ToggleListening(); err != nil {
			slog.Error("toggle listening", "error", err)
		}
	})

	s.hotkey.SetStatusCallback(func(granted bool) {
		s.emit("accessibility-permission", granted)
		if granted {
			slog.Info("accessibility permission granted")
		} else {
			slog.Warn("accessibility permission denied")
		}
	})

	if err := s.hotkey.Start(); err != nil {
		slog.Error("start hotkey", "error", err)
	}
}

// emit is a safe wrapper around app.Event.Emit
func (s *Service) emit(name string, data any) {
	if s.app != nil {
		s.app.Event.Emit(name, data)
	}
}

func (s *Service) companionPersona() *types.Persona {
	return companion
}

// ─────────────────────────────────────────────────────────────────────────────
// Listening Session
// ─────────────────────────────────────────────────────────────────────────────

// StartListening begins a listening session: microphone, VAD, screenshot
// correlation and the recognition chain.
func (s *Service) StartListening() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess != nil {
		return nil
	}

	sess, err := s.newSession(s.cfg.GetActiveCredential())
	if err != nil {
		return err
	}
	if err := sess.start(context.Background()); err != nil {
		return err
	}
	s.sess = sess

	slog.Info("listening session started", "game", s.facade.ActiveGame())
	return nil
}

// StopListening ends the listening session. An in-flight recognition chain
// completes on its own and its reply still lands.
func (s *Service) StopListening() error {
	s.mu.Lock()
	sess := s.sess
	s.sess = nil
	s.mu.Unlock()

	if sess == nil {
		return nil
	}
	sess.close()
	s.bus.Publish(bus.TopicListeningStopped, ListeningStoppedPayload{Reason: "user"})
	slog.Info("listening session stopped")
	return nil
}

// ToggleListening flips the listening session, used by the global hotkey.
func (s *Service) ToggleListening() error {
	if s.IsListening() {
		return s.StopListening()
	}
	return s.StartListening()
}

// IsListening reports whether a listening session is active.
func (s *Service) IsListening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess != nil
}

// GetListenerStatus returns the poll-able listener snapshot for the overlay.
func (s *Service) GetListenerStatus() types.ListenerStatus {
	s.mu.Lock()
	sess := s.sess
	s.mu.Unlock()

	if sess == nil {
		return types.ListenerStatus{State: "idle"}
	}
	return sess.listener.Status()
}

// stopAfterEscalation tears down the session and the simulation after the
// capture correlator gave up on screenshots.
func (s *Service) stopAfterEscalation() {
	s.mu.Lock()
	sess := s.sess
	s.sess = nil
	s.mu.Unlock()

	if sess != nil {
		sess.close()
	}
	s.engine.Stop()
	s.bus.Publish(bus.TopicListeningStopped, ListeningStoppedPayload{Reason: "capture_failure"})
	slog.Error("listening stopped after repeated capture failures")
}

// ─────────────────────────────────────────────────────────────────────────────
// Simulation
// ─────────────────────────────────────────────────────────────────────────────

// StartSimulation launches the simulated livestream audience.
func (s *Service) StartSimulation() error {
	return s.engine.Start()
}

// StopSimulation halts the simulated audience.
func (s *Service) StopSimulation() {
	s.engine.Stop()
}

// IsSimulationRunning reports whether the stage engine is active.
func (s *Service) IsSimulationRunning() bool {
	return s.engine.IsRunning()
}

// ─────────────────────────────────────────────────────────────────────────────
// Conversation & Game
// ─────────────────────────────────────────────────────────────────────────────

// GameChanged switches the active game across every window.
func (s *Service) GameChanged(gameID string) error {
	s.facade.GameChanged(gameID)
	return s.cfg.SetActiveGame(gameID)
}

// GetActiveGame returns the game the windows are scoped to.
func (s *Service) GetActiveGame() string {
	return s.facade.ActiveGame()
}

// GetConversation returns the most recent messages for the active game.
func (s *Service) GetConversation(limit int) []types.ChatMessage {
	if limit <= 0 {
		limit = 50
	}
	return s.facade.Project(limit).Messages
}

// ClearConversation wipes the active game's history.
func (s *Service) ClearConversation() error {
	if s.store == nil {
		return nil
	}
	return s.store.Clear(s.facade.ActiveGame())
}

// CopyMessage places a conversation message's text on the system clipboard.
func (s *Service) CopyMessage(text string) error {
	return clipboard.SetText(s.app, text)
}

// GetClipboardText returns the clipboard text, used by the chat input's
// paste action.
func (s *Service) GetClipboardText() (string, error) {
	return clipboard.GetText(s.app)
}

// DetectLanguage detects the language of the given text.
func (s *Service) DetectLanguage(text string) types.DetectResult {
	code, name := langdetect.Detect(text)
	return types.DetectResult{Code: code, Name: name}
}

// ─────────────────────────────────────────────────────────────────────────────
// Permissions
// ─────────────────────────────────────────────────────────────────────────────

// GetScreenRecordingPermission returns whether screen recording is permitted.
func (s *Service) GetScreenRecordingPermission() bool {
	return screenshot.HasPermission()
}

// RequestScreenRecordingPermission requests screen recording permission.
func (s *Service) RequestScreenRecordingPermission() {
	screenshot.RequestPermission()
}

// ─────────────────────────────────────────────────────────────────────────────
// API Credential Management
// ─────────────────────────────────────────────────────────────────────────────

// GetCredentials returns all API credentials.
func (s *Service) GetCredentials() []types.APICredential {
	return s.cfg.GetCredentials()
}

// AddCredential adds a new API credential.
func (s *Service) AddCredential(cred types.APICredential) error {
	return s.cfg.AddCredential(cred)
}

// UpdateCredential updates an existing credential.
func (s *Service) UpdateCredential(id string, cred types.APICredential) error {
	return s.cfg.UpdateCredential(id, cred)
}

// RemoveCredential removes a credential by ID.
func (s *Service) RemoveCredential(id string) error {
	return s.cfg.RemoveCredential(id)
}

// SetCredentialActive sets a credential as active.
func (s *Service) SetCredentialActive(id string) error {
	return s.cfg.SetCredentialActive(id)
}

// ─────────────────────────────────────────────────────────────────────────────
// Persona Management
// ─────────────────────────────────────────────────────────────────────────────

// GetPersonas returns the simulated viewer personas.
func (s *Service) GetPersonas() []types.Persona {
	return s.cfg.GetPersonas()
}

// AddPersona adds a simulated viewer persona.
func (s *Service) AddPersona(p types.Persona) error {
	return s.cfg.AddPersona(p)
}

// RemovePersona removes a persona by ID.
func (s *Service) RemovePersona(id string) error {
	return s.cfg.RemovePersona(id)
}
