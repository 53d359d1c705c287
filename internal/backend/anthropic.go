package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"AskKit/internal/models"
	"AskKit/internal/sse"
)

const anthropicMaxTokens = 4096

// AnthropicRequest represents the request body for Anthropic API
type AnthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []AnthropicMessage `json:"messages"`
	Stream    bool               `json:"stream"`
}

// AnthropicMessage represents a message in the conversation
type AnthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AnthropicStreamEvent is the payload of one streamed event. Only the
// fields used for text deltas and errors are decoded.
type AnthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) anthropicRequest(ctx context.Context, params TextGenParams) (*http.Request, error) {
	messages := make([]AnthropicMessage, len(params.Messages))
	for i, m := range params.Messages {
		role := "user"
		if m.Role == models.RoleModel {
			role = "assistant"
		}
		messages[i] = AnthropicMessage{Role: role, Content: m.Text}
	}

	req, err := c.newJSONRequest(ctx, c.endpoints.Anthropic+"/messages", AnthropicRequest{
		Model:     params.Model,
		MaxTokens: anthropicMaxTokens,
		Messages:  messages,
		Stream:    true,
	})
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", params.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	return req, nil
}

func decodeAnthropic(r io.Reader) (func() (string, error), func()) {
	dec := sse.NewDecoder(r)
	return func() (string, error) {
		ev, err := dec.Next()
		if err != nil {
			return "", err
		}
		if ev.Data == "" {
			return "", nil
		}
		var payload AnthropicStreamEvent
		if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil {
			return "", models.NewAppError(models.KindJSON, fmt.Errorf("failed to unmarshal response: %w", err))
		}
		switch payload.Type {
		case "content_block_delta":
			if payload.Delta.Type == "text_delta" {
				return payload.Delta.Text, nil
			}
		case "message_stop":
			return "", io.EOF
		case "error":
			msg := "stream error"
			if payload.Error != nil {
				msg = payload.Error.Type + ": " + payload.Error.Message
			}
			return "", models.NewAppError(models.KindUnknown, fmt.Errorf("API error: %s", msg))
		}
		return "", nil
	}, dec.Close
}
