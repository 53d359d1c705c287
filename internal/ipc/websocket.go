package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketClient implements Bridge for a backend served over websocket
type WebSocketClient struct {
	url    string
	conn   *websocket.Conn
	rpc    *rpcConn
	logger *slog.Logger
	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewWebSocketClient connects to a bridge websocket endpoint such as ws://127.0.0.1:7821/ws
func NewWebSocketClient(ctx context.Context, url string, logger *slog.Logger) (*WebSocketClient, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to WebSocket: %w", err)
	}
	conn.SetReadLimit(maxFrameSize)

	client := &WebSocketClient{
		url:    url,
		conn:   conn,
		logger: logger,
		done:   make(chan struct{}),
	}
	client.rpc = newRPCConn(client.write, logger)
	go client.readLoop()

	logger.Info("created bridge WebSocket client", "url", url)
	return client, nil
}

func (c *WebSocketClient) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClosed
	}
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

func (c *WebSocketClient) readLoop() {
	defer close(c.done)
	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			c.rpc.shutdown(fmt.Errorf("connection lost: %w", err))
			return
		}
		c.rpc.handle(frame)
	}
}

// Invoke runs a backend command
func (c *WebSocketClient) Invoke(ctx context.Context, cmd string, args any) (json.RawMessage, error) {
	return c.rpc.invoke(ctx, cmd, args)
}

// Listen subscribes to backend events pushed over the connection
func (c *WebSocketClient) Listen(event string, h Handler) func() {
	return c.rpc.events.Listen(event, h)
}

// Close disconnects from the backend
func (c *WebSocketClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	// Send close message
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := c.conn.Close()
	c.mu.Unlock()

	<-c.done
	c.rpc.shutdown(errClosed)
	c.logger.Info("closed bridge WebSocket client", "url", c.url)
	return err
}
