package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"AskKit/internal/models"
)

// OllamaRequest represents the request body for Ollama API
type OllamaRequest struct {
	Model    string              `json:"model"`
	Messages []map[string]string `json:"messages"`
	Stream   bool                `json:"stream"`
}

// OllamaResponse represents one line of a streamed Ollama reply
type OllamaResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Message   struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

func (c *Client) ollamaRequest(ctx context.Context, params TextGenParams) (*http.Request, error) {
	return c.newJSONRequest(ctx, c.endpoints.Ollama+"/api/chat", OllamaRequest{
		Model:    params.Model,
		Messages: assistantMessages(params.Messages),
		Stream:   true,
	})
}

// Ollama streams newline-delimited JSON rather than server-sent events
func decodeOllama(r io.Reader) (func() (string, error), func()) {
	dec := json.NewDecoder(r)
	done := false
	return func() (string, error) {
		if done {
			return "", io.EOF
		}
		var line OllamaResponse
		if err := dec.Decode(&line); err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", models.NewAppError(models.KindJSON, fmt.Errorf("failed to unmarshal response: %w", err))
		}
		if line.Error != "" {
			return "", models.NewAppError(models.KindUnknown, fmt.Errorf("API error: %s", line.Error))
		}
		done = line.Done
		return line.Message.Content, nil
	}, func() {}
}
