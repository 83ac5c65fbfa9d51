// Package config handles application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/gamepal-app/gamepal/internal/types"
	"github.com/google/uuid"
)

const (
	appName        = "gamepal"
	configFileName = "config.json"
)

// VADConfig holds the voice-activity tuning knobs, in seconds where a
// duration is meant.
type VADConfig struct {
	Threshold         float64 `json:"threshold"`
	SilenceDuration   float64 `json:"silence_duration"`
	MinSpeechDuration float64 `json:"min_speech_duration"`
	MaxSpeechDuration float64 `json:"max_speech_duration"`
}

// CaptureConfig holds the screenshot pipeline settings.
type CaptureConfig struct {
	// EscalationThreshold is how many consecutive fully-failed capture
	// pairs stop the simulation.
	EscalationThreshold int `json:"escalation_threshold"`
}

// Config represents the application configuration.
type Config struct {
	Credentials []types.APICredential `json:"credentials,omitempty"`
	Personas    []types.Persona       `json:"personas,omitempty"`

	VAD     VADConfig     `json:"vad"`
	Capture CaptureConfig `json:"capture"`

	// GiftFrequency is "high", "medium" or "low".
	GiftFrequency string `json:"gift_frequency"`
	// SpeakResponses voices AI replies through TTS.
	SpeakResponses bool `json:"speak_responses"`
	// ActiveGameID scopes the conversation.
	ActiveGameID string `json:"active_game_id,omitempty"`
	// Hotkey toggles listening globally, e.g. "ctrl+shift+g".
	Hotkey string `json:"hotkey,omitempty"`
}

// Load loads configuration from the config file.
// Returns default config if file doesn't exist.
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, fmt.Errorf("get config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// Save persists the configuration to disk.
func (c *Config) Save() error {
	path, err := configPath()
	if err != nil {
		return fmt.Errorf("get config path: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// API Credential Management
// ─────────────────────────────────────────────────────────────────────────────

// GetCredentials returns all API credentials.
func (c *Config) GetCredentials() []types.APICredential {
	return c.Credentials
}

// GetCredential returns a credential by ID.
func (c *Config) GetCredential(id string) *types.APICredential {
	for i := range c.Credentials {
		if c.Credentials[i].ID == id {
			return &c.Credentials[i]
		}
	}
	return nil
}

// GetActiveCredential returns the currently active credential.
func (c *Config) GetActiveCredential() *types.APICredential {
	for i := range c.Credentials {
		if c.Credentials[i].Active {
			cred := c.Credentials[i]
			return &cred
		}
	}
	// Auto-activate first if none active
	if len(c.Credentials) > 0 {
		c.Credentials[0].Active = true
		_ = c.Save()
		cred := c.Credentials[0]
		return &cred
	}
	return nil
}

// AddCredential adds a new API credential.
func (c *Config) AddCredential(cred types.APICredential) error {
	if err := validateCredential(cred); err != nil {
		return err
	}

	if cred.ID == "" {
		cred.ID = uuid.New().String()
	}

	// First credential or explicitly active: deactivate others
	if len(c.Credentials) == 0 || cred.Active {
		for i := range c.Credentials {
			c.Credentials[i].Active = false
		}
		cred.Active = true
	}

	c.Credentials = append(c.Credentials, cred)
	return c.Save()
}

// UpdateCredential updates an existing credential.
func (c *Config) UpdateCredential(id string, cred types.APICredential) error {
	if err := validateCredential(cred); err != nil {
		return err
	}

	idx := slices.IndexFunc(c.Credentials, func(x types.APICredential) bool {
		return x.ID == id
	})
	if idx == -1 {
		return fmt.Errorf("credential not found: %s", id)
	}

	wasActive := c.Credentials[idx].Active
	if cred.Active && !wasActive {
		for i := range c.Credentials {
			c.Credentials[i].Active = false
		}
	} else {
		cred.Active = wasActive
	}

	cred.ID = id // Preserve ID
	c.Credentials[idx] = cred
	return c.Save()
}

// RemoveCredential removes a credential by ID.
func (c *Config) RemoveCredential(id string) error {
	idx := slices.IndexFunc(c.Credentials, func(x types.APICredential) bool {
		return x.ID == id
	})
	if idx == -1 {
		return fmt.Errorf("credential not found: %s", id)
	}

	wasActive := c.Credentials[idx].Active
	c.Credentials = slices.Delete(c.Credentials, idx, idx+1)

	if wasActive && len(c.Credentials) > 0 {
		c.Credentials[0].Active = true
	}

	return c.Save()
}

// SetCredentialActive sets a credential as active.
func (c *Config) SetCredentialActive(id string) error {
	found := false
	for i := range c.Credentials {
		if c.Credentials[i].ID == id {
			c.Credentials[i].Active = true
			found = true
		} else {
			c.Credentials[i].Active = false
		}
	}
	if !found {
		return fmt.Errorf("credential not found: %s", id)
	}
	return c.Save()
}

// ─────────────────────────────────────────────────────────────────────────────
// Persona Management
// ─────────────────────────────────────────────────────────────────────────────

// GetPersonas returns the simulated viewer personas.
func (c *Config) GetPersonas() []types.Persona {
	return c.Personas
}

// AddPersona adds a persona.
func (c *Config) AddPersona(p types.Persona) error {
	if p.Nickname == "" {
		return fmt.Errorf("persona nickname required")
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Frequency == "" {
		p.Frequency = "medium"
	}
	c.Personas = append(c.Personas, p)
	return c.Save()
}

// RemovePersona removes a persona by ID.
func (c *Config) RemovePersona(id string) error {
	idx := slices.IndexFunc(c.Personas, func(p types.Persona) bool {
		return p.ID == id
	})
	if idx == -1 {
		return fmt.Errorf("persona not found: %s", id)
	}
	c.Personas = slices.Delete(c.Personas, idx, idx+1)
	return c.Save()
}

// SetActiveGame persists the game the windows are scoped to.
func (c *Config) SetActiveGame(gameID string) error {
	c.ActiveGameID = gameID
	return c.Save()
}

// Helper functions

func validateCredential(cred types.APICredential) error {
	if cred.Name == "" {
		return fmt.Errorf("credential name required")
	}
	if cred.APIKey == "" {
		return fmt.Errorf("api key required")
	}
	if cred.Model == "" {
		return fmt.Errorf("model required")
	}
	if cred.Type == "openai-compatible" && cred.BaseURL == "" {
		return fmt.Errorf("base url required for openai-compatible")
	}
	return nil
}

func configPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName, configFileName), nil
}

func defaultConfig() *Config {
	cfg := &Config{
		Credentials: []types.APICredential{},
		Personas:    defaultPersonas(),
	}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills zero-valued settings so older config files keep
// working after new knobs are added.
func (c *Config) applyDefaults() {
	if c.VAD.Threshold == 0 {
		c.VAD.Threshold = 0.035
	}
	if c.VAD.SilenceDuration == 0 {
		c.VAD.SilenceDuration = 2.5
	}
	if c.VAD.MinSpeechDuration == 0 {
		c.VAD.MinSpeechDuration = 0.5
	}
	if c.VAD.MaxSpeechDuration == 0 {
		c.VAD.MaxSpeechDuration = 60
	}
	if c.Capture.EscalationThreshold == 0 {
		c.Capture.EscalationThreshold = 2
	}
	if c.GiftFrequency == "" {
		c.GiftFrequency = "medium"
	}
	if len(c.Personas) == 0 {
		c.Personas = defaultPersonas()
	}
}

func defaultPersonas() []types.Persona {
	return []types.Persona{
		{ID: uuid.New().String(), Nickname: "阳光小伙", Personality: "sunnyou_male", Frequency: "high"},
		{ID: uuid.New().String(), Nickname: "搞笑女孩", Personality: "funny_female", Frequency: "medium"},
		{ID: uuid.New().String(), Nickname: "Kobe", Personality: "kobe", Frequency: "medium"},
		{ID: uuid.New().String(), Nickname: "甜心", Personality: "sweet_girl", Frequency: "medium"},
		{ID: uuid.New().String(), Nickname: "Donald", Personality: "trump", Frequency: "low"},
	}
}
