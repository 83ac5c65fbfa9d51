// Package analyze turns a recognized utterance plus before/after screenshots
// into an AI companion reply.
package analyze

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gamepal-app/gamepal/internal/types"
	"github.com/gamepal-app/gamepal/llm"
)

// Request is one analysis call. Screenshots are base64 data URLs and may be
// empty when capture failed; analysis proceeds on whatever is present.
type Request struct {
	SpeechText       string
	ScreenshotBefore string
	ScreenshotAfter  string
	GameID           string
	Persona          *types.Persona
	History          []types.ChatMessage
}

// Analyzer produces a companion reply for a request.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (string, error)
}

// LLMAnalyzer runs analysis over a chat completer.
type LLMAnalyzer struct {
	completer llm.Completer
}

// New creates an analyzer on top of the given completer.
func New(c llm.Completer) *LLMAnalyzer {
	return &LLMAnalyzer{completer: c}
}

// DataURL wraps JPEG bytes as a base64 data URL. Empty input stays empty so
// a failed capture flows through as the absent marker.
func DataURL(jpeg []byte) string {
	if len(jpeg) == 0 {
		return ""
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg)
}

// Analyze sends the utterance, history, and available screenshots to the
// model and returns the raw reply, control block included.
func (a *LLMAnalyzer) Analyze(ctx context.Context, req Request) (string, error) {
	reply, usage, err := a.completer.Complete(ctx, buildMessages(req))
	if err != nil {
		return "", fmt.Errorf("analysis completion: %w", err)
	}
	slog.Debug("analysis complete",
		"game", req.GameID,
		"promptTokens", usage.PromptTokens,
		"completionTokens", usage.CompletionTokens)
	return reply, nil
}

const maxHistoryMessages = 10

func buildMessages(req Request) []llm.Message {
	messages := []llm.Message{{Role: "system", Content: systemPrompt(req)}}

	history := req.History
	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}
	for _, msg := range history {
		role := msg.Role
		if role != "assistant" {
			role = "user"
		}
		messages = append(messages, llm.Message{Role: role, Content: msg.Content})
	}

	user := llm.Message{
		Role:    "user",
		Content: userPrompt(req),
	}
	if req.ScreenshotBefore != "" {
		user.Images = append(user.Images, req.ScreenshotBefore)
	}
	if req.ScreenshotAfter != "" {
		user.Images = append(user.Images, req.ScreenshotAfter)
	}
	return append(messages, user)
}

func systemPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You are an AI gaming companion watching a live stream. ")
	b.WriteString("The streamer talks while playing; you see screenshots from just before and after they spoke. ")
	if req.Persona != nil {
		fmt.Fprintf(&b, "Your nickname is %s. Your personality: %s. Stay in character. ",
			req.Persona.Nickname, req.Persona.Personality)
	}
	if req.GameID != "" {
		fmt.Fprintf(&b, "The streamer is playing %s. ", req.GameID)
	}
	b.WriteString("Reply briefly and conversationally, like a friend on the couch. Under 50 words.\n\n")
	b.WriteString("After your reply, append a capture control block exactly in this form:\n")
	b.WriteString("```json\n{\"active\": <bool>, \"now\": <bool>, \"suggested_interval\": <seconds, optional>}\n```\n")
	b.WriteString("Set active=true while the on-screen action is developing and worth watching closely, ")
	b.WriteString("now=true if you need a fresh screenshot immediately, ")
	b.WriteString("and suggested_interval to how many seconds until the next capture would be useful.")
	return b.String()
}

func userPrompt(req Request) string {
	var b strings.Builder
	if req.SpeechText == "" {
		b.WriteString("The streamer hasn't said anything lately.")
	} else {
		fmt.Fprintf(&b, "The streamer just said: %q", req.SpeechText)
	}
	switch {
	case req.ScreenshotBefore != "" && req.ScreenshotAfter != "":
		b.WriteString("\nThe first image is right before they spoke, the second right after.")
	case req.ScreenshotBefore != "" || req.ScreenshotAfter != "":
		b.WriteString("\nOne screenshot of the current screen is attached.")
	default:
		b.WriteString("\nNo screenshot is available this time; go by the words alone.")
	}
	return b.String()
}
