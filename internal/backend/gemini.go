package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"AskKit/internal/models"
	"AskKit/internal/sse"
)

// GeminiRequest represents the request body for the Gemini API
type GeminiRequest struct {
	Contents []GeminiContent `json:"contents"`
}

// GeminiContent is one conversation turn
type GeminiContent struct {
	Role  string       `json:"role"`
	Parts []GeminiPart `json:"parts"`
}

// GeminiPart carries text
type GeminiPart struct {
	Text string `json:"text"`
}

// GeminiResponse is one streamed response frame
type GeminiResponse struct {
	Candidates []struct {
		Content      GeminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

func (c *Client) geminiRequest(ctx context.Context, params TextGenParams) (*http.Request, error) {
	body := GeminiRequest{Contents: make([]GeminiContent, len(params.Messages))}
	for i, m := range params.Messages {
		role := "user"
		if m.Role == models.RoleModel {
			role = "model"
		}
		body.Contents[i] = GeminiContent{Role: role, Parts: []GeminiPart{{Text: m.Text}}}
	}

	endpoint := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", c.endpoints.Gemini, url.PathEscape(params.Model))
	req, err := c.newJSONRequest(ctx, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-goog-api-key", params.APIKey)
	return req, nil
}

func decodeGemini(r io.Reader) (func() (string, error), func()) {
	dec := sse.NewDecoder(r)
	return func() (string, error) {
		ev, err := dec.Next()
		if err != nil {
			return "", err
		}
		var frame GeminiResponse
		if err := json.Unmarshal([]byte(ev.Data), &frame); err != nil {
			return "", models.NewAppError(models.KindJSON, fmt.Errorf("failed to unmarshal response: %w", err))
		}
		var text string
		for _, cand := range frame.Candidates {
			for _, part := range cand.Content.Parts {
				text += part.Text
			}
		}
		return text, nil
	}, dec.Close
}
