// Package speech voices companion replies through the OpenAI TTS API.
package speech

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// ttsSampleRate is the fixed rate of the API's raw PCM response.
const ttsSampleRate = 24000

// Speaker voices a piece of text. Implementations are fire-and-forget from
// the pipeline's point of view.
type Speaker interface {
	Speak(ctx context.Context, text string, interrupt bool) error
}

// Config holds configuration for the OpenAI speaker.
type Config struct {
	APIKey  string
	BaseURL string // optional
	Model   string // optional, defaults to "tts-1"
	Voice   string // optional, defaults to "alloy"
}

// OpenAISpeaker synthesizes speech through the hosted TTS endpoint and plays
// it on the default output device. At most one utterance plays at a time.
type OpenAISpeaker struct {
	client openai.Client
	model  string
	voice  string

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewOpenAI creates a speaker.
func NewOpenAI(cfg Config) *OpenAISpeaker {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = "tts-1"
	}
	voice := cfg.Voice
	if voice == "" {
		voice = "alloy"
	}

	return &OpenAISpeaker{
		client: openai.NewClient(opts...),
		model:  model,
		voice:  voice,
	}
}

// Speak synthesizes and plays text. With interrupt set, any utterance still
// playing is cut off; without it, a busy speaker skips the new text rather
// than queueing stale replies.
func (s *OpenAISpeaker) Speak(ctx context.Context, text string, interrupt bool) error {
	if text == "" {
		return nil
	}

	s.mu.Lock()
	if s.cancel != nil {
		if !interrupt {
			s.mu.Unlock()
			return nil
		}
		s.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
		s.mu.Unlock()
	}()

	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(s.model),
		Voice:          openai.AudioSpeechNewParamsVoice(s.voice),
		Input:          text,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		return fmt.Errorf("synthesize speech: %w", err)
	}
	defer resp.Body.Close()

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read speech audio: %w", err)
	}

	if err := playPCM(ctx, pcm); err != nil {
		return fmt.Errorf("play speech: %w", err)
	}
	return nil
}

// decodePCM converts the API's 16-bit little-endian mono stream to samples.
func decodePCM(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}
