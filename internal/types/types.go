// Package types provides shared type definitions for the application.
package types

// APICredential represents a stored API credential for an external service.
type APICredential struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"` // "openai", "openai-compatible", "gemini", "claude"
	BaseURL string `json:"base_url,omitempty"`
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
	Active  bool   `json:"active"`
}

// Persona describes a simulated viewer driven by the stage engine.
type Persona struct {
	ID          string `json:"id"`
	Nickname    string `json:"nickname"`
	Personality string `json:"personality"`
	// Frequency is "high", "medium" or "low" and controls how often the
	// persona interacts on its own.
	Frequency string `json:"frequency"`
}

// ChatMessage is a single conversation entry shown in every window surface.
// Messages produced by the stage engine carry a synthetic role and persona
// and are visually indistinguishable from AI replies.
type ChatMessage struct {
	ID        string `json:"id"`
	Role      string `json:"role"` // "user", "assistant", "viewer"
	GameID    string `json:"gameId,omitempty"`
	PersonaID string `json:"personaId,omitempty"`
	Nickname  string `json:"nickname,omitempty"`
	Content   string `json:"content"`
	Language  string `json:"language,omitempty"`
	Timestamp int64  `json:"timestamp"` // Unix milliseconds
}

// ListenerStatus is the poll-able snapshot of the listening pipeline.
type ListenerStatus struct {
	State             string  `json:"state"` // "idle", "speaking", "processing"
	Listening         bool    `json:"listening"`
	RecordingDuration float64 `json:"recordingDuration"` // seconds
	BufferSize        int     `json:"bufferSize"`        // samples
	LastTranscription string  `json:"lastTranscription"`
}

// Usage represents token usage statistics from LLM API calls.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// DetectResult represents the result of language detection.
type DetectResult struct {
	Code string `json:"code"`
	Name string `json:"name"`
}
