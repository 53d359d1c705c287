package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"AskKit/internal/models"
	"AskKit/internal/sse"

	"github.com/gorilla/websocket"
	gosse "github.com/tmaxmax/go-sse"
)

const maxFrameSize = 4 << 20

// Server exposes a Router over websocket, HTTP and stdio.
type Server struct {
	router   *Router
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a server for router
func NewServer(router *Router, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		router: router,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The bridge only listens on loopback addresses chosen by the user.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler routes /ws, /rpc and /events
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.ServeWebSocket)
	mux.HandleFunc("/rpc", s.ServeRPC)
	mux.HandleFunc("/events", s.ServeEvents)
	return mux
}

// ListenAndServe serves HTTP and websocket on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("bridge listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down: %w", err)
		}
		return nil
	}
}

// handleFrame runs one JSON-RPC request and returns the encoded response.
func (s *Server) handleFrame(ctx context.Context, frame []byte) []byte {
	var req JSONRPCRequest
	if err := json.Unmarshal(frame, &req); err != nil {
		return s.encodeResponse(JSONRPCResponse{
			JSONRPC: "2.0",
			Error:   &RPCError{Code: CodeParseError, Message: err.Error()},
		})
	}
	return s.encodeResponse(s.handleRequest(ctx, req))
}

func (s *Server) handleRequest(ctx context.Context, req JSONRPCRequest) JSONRPCResponse {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: req.ID}

	if req.Method != MethodInvoke {
		resp.Error = &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("unknown method %q", req.Method)}
		return resp
	}

	var params InvokeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		resp.Error = newRPCError(models.NewAppError(models.KindInvalidArgs, fmt.Errorf("failed to decode params: %w", err)))
		return resp
	}

	result, err := s.router.Dispatch(ctx, params.Command, params.Args)
	if err != nil {
		resp.Error = newRPCError(err)
		return resp
	}
	resp.Result = result
	return resp
}

func (s *Server) encodeResponse(resp JSONRPCResponse) []byte {
	b, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("failed to marshal response", "id", resp.ID, "error", err)
		b, _ = json.Marshal(JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      resp.ID,
			Error:   &RPCError{Code: CodeAppError, Message: err.Error()},
		})
	}
	return b
}

func encodeEvent(event string, payload json.RawMessage) ([]byte, error) {
	params, err := json.Marshal(EventParams{Event: event, Payload: payload})
	if err != nil {
		return nil, err
	}
	return json.Marshal(JSONRPCNotification{JSONRPC: "2.0", Method: MethodEvent, Params: params})
}

// serveStream runs the request loop shared by websocket and stdio: requests
// are handled concurrently, events are forwarded as notifications.
func (s *Server) serveStream(ctx context.Context, read func() ([]byte, error), write func([]byte) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var writeMu sync.Mutex
	send := func(b []byte) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := write(b); err != nil {
			s.logger.Warn("failed to write frame", "error", err)
		}
	}

	unlisten := s.router.Bus().ListenAll(func(event string, payload json.RawMessage) {
		b, err := encodeEvent(event, payload)
		if err != nil {
			s.logger.Error("failed to encode event", "event", event, "error", err)
			return
		}
		send(b)
	})
	defer unlisten()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		frame, err := read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			send(s.handleFrame(ctx, frame))
		}()
	}
}

// ServeWebSocket upgrades the connection and serves JSON-RPC over it
func (s *Server) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameSize)

	s.logger.Info("websocket client connected", "remote", r.RemoteAddr)
	err = s.serveStream(r.Context(),
		func() ([]byte, error) {
			_, b, err := conn.ReadMessage()
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return b, err
		},
		func(b []byte) error {
			return conn.WriteMessage(websocket.TextMessage, b)
		},
	)
	if err != nil {
		s.logger.Info("websocket client disconnected", "remote", r.RemoteAddr, "error", err)
	}
}

// ServeRPC handles one JSON-RPC request per POST
func (s *Server) ServeRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxFrameSize))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(s.handleFrame(r.Context(), body)); err != nil {
		s.logger.Warn("failed to write rpc response", "error", err)
	}
}

// ServeEvents streams every backend event as a server-sent event. A slow
// subscriber holds up the emitter until it catches up or disconnects.
func (s *Server) ServeEvents(w http.ResponseWriter, r *http.Request) {
	sess, err := gosse.Upgrade(w, r)
	if err != nil {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	events := make(chan sse.Event, 64)
	unlisten := s.router.Bus().ListenAll(func(event string, payload json.RawMessage) {
		select {
		case events <- sse.Event{Event: event, Data: string(payload)}:
		case <-ctx.Done():
		}
	})
	defer unlisten()

	if err := sess.Flush(); err != nil {
		s.logger.Info("event subscriber gone", "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			msg, err := sse.NewMessage(ev)
			if err != nil {
				s.logger.Warn("failed to encode event", "event", ev.Event, "error", err)
				continue
			}
			if err := sess.Send(msg); err != nil {
				s.logger.Info("event subscriber gone", "error", err)
				return
			}
			if err := sess.Flush(); err != nil {
				s.logger.Info("event subscriber gone", "error", err)
				return
			}
		}
	}
}

// ServeStdio serves line-delimited JSON-RPC until in is exhausted
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxFrameSize)

	return s.serveStream(ctx,
		func() ([]byte, error) {
			for scanner.Scan() {
				line := scanner.Bytes()
				if len(line) == 0 {
					continue
				}
				return append([]byte(nil), line...), nil
			}
			if err := scanner.Err(); err != nil {
				return nil, fmt.Errorf("failed to read request: %w", err)
			}
			return nil, io.EOF
		},
		func(b []byte) error {
			_, err := out.Write(append(b, '\n'))
			return err
		},
	)
}
