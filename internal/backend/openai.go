package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"AskKit/internal/models"
	"AskKit/internal/sse"
)

// OpenAIRequest represents the request body for OpenAI-compatible APIs
type OpenAIRequest struct {
	Model            string              `json:"model"`
	Messages         []map[string]string `json:"messages"`
	Stream           bool                `json:"stream"`
	IncludeReasoning *bool               `json:"include_reasoning,omitempty"`
}

// OpenAIStreamChunk is one streamed frame from OpenAI-compatible APIs
type OpenAIStreamChunk struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index int `json:"index"`
		Delta struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// assistantMessages converts turns to the role/content maps shared by the
// OpenAI-compatible and Ollama APIs
func assistantMessages(messages []Message) []map[string]string {
	out := make([]map[string]string, len(messages))
	for i, m := range messages {
		role := "user"
		if m.Role == models.RoleModel {
			role = "assistant"
		}
		out[i] = map[string]string{"role": role, "content": m.Text}
	}
	return out
}

func (c *Client) openAIRequest(ctx context.Context, baseURL string, params TextGenParams, includeReasoning *bool) (*http.Request, error) {
	body := OpenAIRequest{
		Model:            params.Model,
		Messages:         assistantMessages(params.Messages),
		Stream:           true,
		IncludeReasoning: includeReasoning,
	}
	req, err := c.newJSONRequest(ctx, baseURL+"/chat/completions", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+params.APIKey)
	return req, nil
}

func decodeOpenAI(r io.Reader) (func() (string, error), func()) {
	dec := sse.NewDecoder(r)
	return func() (string, error) {
		ev, err := dec.Next()
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(ev.Data) == "[DONE]" {
			return "", io.EOF
		}
		var chunk OpenAIStreamChunk
		if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
			return "", models.NewAppError(models.KindJSON, fmt.Errorf("failed to unmarshal response: %w", err))
		}
		var text string
		for _, choice := range chunk.Choices {
			text += choice.Delta.Content
		}
		return text, nil
	}, dec.Close
}
