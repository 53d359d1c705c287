package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"AskKit/internal/models"
)

var errClosed = errors.New("client is closed")

// rpcConn multiplexes invoke requests and event notifications over one
// bidirectional stream. The transport supplies send and feeds frames read
// from the peer into handle.
type rpcConn struct {
	send   func(b []byte) error
	events *Bus
	logger *slog.Logger

	reqID   atomic.Int32
	mu      sync.Mutex
	pending map[int]chan message
	closed  bool
	err     error
}

func newRPCConn(send func([]byte) error, logger *slog.Logger) *rpcConn {
	return &rpcConn{
		send:    send,
		events:  NewBus(),
		logger:  logger,
		pending: make(map[int]chan message),
	}
}

func (c *rpcConn) invoke(ctx context.Context, cmd string, args any) (json.RawMessage, error) {
	rawArgs, err := encodeArgs(args)
	if err != nil {
		return nil, err
	}
	params, err := json.Marshal(InvokeParams{Command: cmd, Args: rawArgs})
	if err != nil {
		return nil, models.NewAppError(models.KindJSON, fmt.Errorf("failed to marshal params: %w", err))
	}

	id := int(c.reqID.Add(1))
	ch := make(chan message, 1)

	c.mu.Lock()
	if c.closed {
		err := c.err
		c.mu.Unlock()
		return nil, models.NewAppError(models.KindTransport, err)
	}
	c.pending[id] = ch
	c.mu.Unlock()

	request, err := json.Marshal(JSONRPCRequest{JSONRPC: "2.0", ID: id, Method: MethodInvoke, Params: params})
	if err != nil {
		c.forget(id)
		return nil, models.NewAppError(models.KindJSON, fmt.Errorf("failed to marshal request: %w", err))
	}
	if err := c.send(request); err != nil {
		c.forget(id)
		return nil, models.NewAppError(models.KindTransport, fmt.Errorf("failed to write request: %w", err))
	}

	select {
	case <-ctx.Done():
		c.forget(id)
		return nil, models.NewAppError(models.KindHTTPTimeout, ctx.Err())
	case resp, ok := <-ch:
		if !ok {
			return nil, models.NewAppError(models.KindTransport, c.closeErr())
		}
		if resp.Error != nil {
			return nil, resp.Error.toError()
		}
		return resp.Result, nil
	}
}

func (c *rpcConn) forget(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

// handle routes one frame from the peer
func (c *rpcConn) handle(frame []byte) {
	var msg message
	if err := json.Unmarshal(frame, &msg); err != nil {
		c.logger.Warn("dropping malformed frame", "error", err)
		return
	}

	if msg.Method == MethodEvent {
		var ev EventParams
		if err := json.Unmarshal(msg.Params, &ev); err != nil {
			c.logger.Warn("dropping malformed event", "error", err)
			return
		}
		c.events.EmitRaw(ev.Event, ev.Payload)
		return
	}
	if msg.ID == nil {
		c.logger.Warn("dropping frame without id", "method", msg.Method)
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[*msg.ID]
	delete(c.pending, *msg.ID)
	c.mu.Unlock()
	if ok {
		ch <- msg
	}
}

// shutdown fails every pending call with err
func (c *rpcConn) shutdown(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if err == nil {
		err = errClosed
	}
	c.err = err
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

func (c *rpcConn) closeErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		return errClosed
	}
	return c.err
}
