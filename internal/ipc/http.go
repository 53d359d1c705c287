package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"AskKit/internal/models"
	"AskKit/internal/sse"
)

// HTTPClient implements Bridge over POST /rpc and a GET /events stream
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	reqID      atomic.Int32
	events     *Bus
	logger     *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHTTPClient creates a client for a bridge at baseURL such as
// http://127.0.0.1:7821 and opens its event stream.
func NewHTTPClient(ctx context.Context, baseURL string, logger *slog.Logger) (*HTTPClient, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	client := &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 0, // No timeout for SSE streams
		},
		events: NewBus(),
		logger: logger,
	}
	if err := client.openEvents(ctx); err != nil {
		return nil, err
	}

	logger.Info("created bridge HTTP client", "url", baseURL)
	return client, nil
}

// openEvents connects the event stream and returns once the server accepted it.
func (c *HTTPClient) openEvents(ctx context.Context) error {
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.baseURL+"/events", nil)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to open event stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		cancel()
		return fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(body))
	}

	c.mu.Lock()
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()

	go func() {
		defer close(c.done)
		defer resp.Body.Close()
		dec := sse.NewDecoder(resp.Body)
		defer dec.Close()
		for {
			ev, err := dec.Next()
			if err != nil {
				if !errors.Is(err, io.EOF) && streamCtx.Err() == nil {
					c.logger.Warn("event stream ended", "error", err)
				}
				return
			}
			if ev.Event == "" {
				continue
			}
			c.events.EmitRaw(ev.Event, json.RawMessage(ev.Data))
		}
	}()
	return nil
}

// Invoke sends one JSON-RPC request
func (c *HTTPClient) Invoke(ctx context.Context, cmd string, args any) (json.RawMessage, error) {
	rawArgs, err := encodeArgs(args)
	if err != nil {
		return nil, err
	}
	params, err := json.Marshal(InvokeParams{Command: cmd, Args: rawArgs})
	if err != nil {
		return nil, models.NewAppError(models.KindJSON, fmt.Errorf("failed to marshal params: %w", err))
	}

	// Build JSON-RPC request
	request := JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      int(c.reqID.Add(1)),
		Method:  MethodInvoke,
		Params:  params,
	}
	requestJSON, err := json.Marshal(request)
	if err != nil {
		return nil, models.NewAppError(models.KindJSON, fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rpc", bytes.NewBuffer(requestJSON))
	if err != nil {
		return nil, models.NewAppError(models.KindHTTPRequest, fmt.Errorf("failed to create HTTP request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, models.NewAppError(models.KindHTTPTimeout, err)
		}
		return nil, models.NewAppError(models.KindHTTPRequest, fmt.Errorf("failed to send HTTP request: %w", err))
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(httpResp.Body)
		return nil, &models.AppError{
			Kind:    models.KindHTTPStatusCode,
			Message: fmt.Sprintf("%d: %s", httpResp.StatusCode, string(body)),
		}
	}

	var response JSONRPCResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&response); err != nil {
		return nil, models.NewAppError(models.KindJSON, fmt.Errorf("failed to unmarshal response: %w", err))
	}
	if response.Error != nil {
		return nil, response.Error.toError()
	}
	return response.Result, nil
}

// Listen subscribes to events from the /events stream
func (c *HTTPClient) Listen(event string, h Handler) func() {
	return c.events.Listen(event, h)
}

// Close stops the event stream
func (c *HTTPClient) Close() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	c.logger.Info("closed bridge HTTP client", "url", c.baseURL)
	return nil
}
