// Package recognize turns speech segments into text through the OpenAI
// transcription API.
package recognize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/gamepal-app/gamepal/listen"
)

// ErrEmptySegment is returned when a segment holds no audio.
var ErrEmptySegment = errors.New("empty speech segment")

// Recognizer converts a speech segment into text.
type Recognizer interface {
	Recognize(ctx context.Context, seg listen.Segment) (string, error)
}

// WhisperConfig holds configuration for the Whisper recognizer.
type WhisperConfig struct {
	APIKey   string
	BaseURL  string // optional, defaults to the OpenAI API
	Model    string // optional, defaults to "whisper-1"
	Language string // optional, empty or "auto" means auto-detect
}

// Whisper recognizes speech through the hosted Whisper endpoint.
type Whisper struct {
	client   openai.Client
	model    string
	language string
}

// NewWhisper creates a Whisper recognizer.
func NewWhisper(cfg WhisperConfig) *Whisper {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = "whisper-1"
	}

	return &Whisper{
		client:   openai.NewClient(opts...),
		model:    model,
		language: cfg.Language,
	}
}

// Recognize transcribes one segment. The PCM is shipped as a mono 16-bit WAV.
func (w *Whisper) Recognize(ctx context.Context, seg listen.Segment) (string, error) {
	if len(seg.PCM) == 0 {
		return "", ErrEmptySegment
	}

	sampleRate := seg.SampleRate
	if sampleRate == 0 {
		sampleRate = 16000
	}
	wav := encodeWAV(seg.PCM, sampleRate)

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(wav), "segment.wav", "audio/wav"),
		Model: openai.AudioModel(w.model),
	}
	// The API rejects "auto"; omitting the field means auto-detect.
	if w.language != "" && w.language != "auto" {
		params.Language = openai.String(w.language)
	}

	resp, err := w.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("transcribe segment: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
