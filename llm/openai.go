package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gamepal-app/gamepal/internal/types"
)

const defaultBaseURL = "https://api.openai.com/v1/chat/completions"

// openaiCompleter implements Completer for OpenAI and compatible APIs.
type openaiCompleter struct {
	cfg          completerConfig
	isCompatible bool
}

// OpenAI request/response types
type openaiRequest struct {
	Model       string             `json:"model"`
	Messages    []openaiReqMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
}

// openaiReqMessage carries either a plain string or a part list in Content,
// matching the API's union encoding.
type openaiReqMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openaiTextPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type openaiImagePart struct {
	Type     string         `json:"type"`
	ImageURL openaiImageURL `json:"image_url"`
}

type openaiImageURL struct {
	URL string `json:"url"`
}

type openaiResponse struct {
	Choices []openaiChoice `json:"choices"`
	Usage   openaiUsage    `json:"usage"`
}

type openaiChoice struct {
	Message openaiMessage `json:"message"`
}

type openaiMessage struct {
	Content string `json:"content"`
}

type openaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func encodeOpenAIMessage(msg Message) openaiReqMessage {
	if len(msg.Images) == 0 {
		return openaiReqMessage{Role: msg.Role, Content: msg.Content}
	}

	parts := []any{openaiTextPart{Type: "text", Text: msg.Content}}
	for _, img := range msg.Images {
		parts = append(parts, openaiImagePart{
			Type:     "image_url",
			ImageURL: openaiImageURL{URL: img},
		})
	}
	return openaiReqMessage{Role: msg.Role, Content: parts}
}

func (c *openaiCompleter) Complete(ctx context.Context, messages []Message) (string, types.Usage, error) {
	url := defaultBaseURL
	if c.isCompatible && c.cfg.baseURL != "" {
		url = c.cfg.baseURL
	}

	reqMsgs := make([]openaiReqMessage, 0, len(messages))
	for _, msg := range messages {
		reqMsgs = append(reqMsgs, encodeOpenAIMessage(msg))
	}

	reqBody := openaiRequest{
		Model:       c.cfg.model,
		Messages:    reqMsgs,
		MaxTokens:   c.cfg.maxTokens,
		Temperature: c.cfg.temperature,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", types.Usage{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", types.Usage{}, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.apiKey)

	resp, err := c.cfg.http.Do(req)
	if err != nil {
		return "", types.Usage{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", types.Usage{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", types.Usage{}, fmt.Errorf("api error: %d - %s", resp.StatusCode, string(body))
	}

	var chatResp openaiResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", types.Usage{}, fmt.Errorf("unmarshal response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", types.Usage{}, fmt.Errorf("no choices")
	}

	usage := types.Usage{
		PromptTokens:     chatResp.Usage.PromptTokens,
		CompletionTokens: chatResp.Usage.CompletionTokens,
		TotalTokens:      chatResp.Usage.TotalTokens,
	}

	return chatResp.Choices[0].Message.Content, usage, nil
}
