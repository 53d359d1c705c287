package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"AskKit/internal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// HandlerFunc implements one command. args is nil when the caller sent none.
type HandlerFunc func(ctx context.Context, args json.RawMessage) (any, error)

// Router dispatches commands to handlers and owns the event bus of the
// backend. It is the in-process Bridge.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	bus      *Bus
	logger   *slog.Logger
	tracer   trace.Tracer
	duration metric.Float64Histogram
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithTracer sets the tracer used for invocation spans
func WithTracer(t trace.Tracer) RouterOption {
	return func(r *Router) { r.tracer = t }
}

// WithMeter sets the meter for the invocation duration histogram
func WithMeter(m metric.Meter) RouterOption {
	return func(r *Router) {
		h, err := m.Float64Histogram(
			"ipc.invoke.duration",
			metric.WithDescription("Command invocation duration in milliseconds"),
			metric.WithUnit("ms"),
		)
		if err == nil {
			r.duration = h
		}
	}
}

// WithRouterLogger sets the logger
func WithRouterLogger(l *slog.Logger) RouterOption {
	return func(r *Router) { r.logger = l }
}

// NewRouter creates a router emitting on bus
func NewRouter(bus *Bus, opts ...RouterOption) *Router {
	r := &Router{
		handlers: make(map[string]HandlerFunc),
		bus:      bus,
		logger:   slog.Default(),
		tracer:   otel.Tracer("askkit/ipc"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.duration == nil {
		WithMeter(otel.Meter("askkit/ipc"))(r)
	}
	return r
}

// Handle registers fn for cmd, replacing any previous handler
func (r *Router) Handle(cmd string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[cmd] = fn
}

// Commands lists registered command names in order
func (r *Router) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Bus returns the event bus handlers emit on
func (r *Router) Bus() *Bus {
	return r.bus
}

// Invoke runs cmd in process
func (r *Router) Invoke(ctx context.Context, cmd string, args any) (json.RawMessage, error) {
	raw, err := encodeArgs(args)
	if err != nil {
		return nil, err
	}
	return r.Dispatch(ctx, cmd, raw)
}

// Dispatch runs cmd with already encoded args. Every error it returns is an
// *models.AppError.
func (r *Router) Dispatch(ctx context.Context, cmd string, args json.RawMessage) (json.RawMessage, error) {
	ctx, span := r.tracer.Start(ctx, "ipc.invoke "+cmd, trace.WithAttributes(attribute.String("ipc.command", cmd)))
	defer span.End()

	start := time.Now()
	result, err := r.dispatch(ctx, cmd, args)
	elapsed := time.Since(start)

	if r.duration != nil {
		r.duration.Record(ctx, float64(elapsed.Milliseconds()),
			metric.WithAttributes(attribute.String("ipc.command", cmd), attribute.Bool("ipc.error", err != nil)))
	}

	if err != nil {
		appErr := asAppError(err)
		span.RecordError(appErr)
		span.SetStatus(codes.Error, appErr.Kind)
		r.logger.Warn("command failed", "command", cmd, "kind", appErr.Kind, "error", appErr.Message)
		return nil, appErr
	}
	r.logger.Debug("command completed", "command", cmd, "duration_ms", elapsed.Milliseconds())
	return result, nil
}

func (r *Router) dispatch(ctx context.Context, cmd string, args json.RawMessage) (json.RawMessage, error) {
	r.mu.RLock()
	fn, ok := r.handlers[cmd]
	r.mu.RUnlock()
	if !ok {
		return nil, &models.AppError{Kind: models.KindUnknownCommand, Message: cmd}
	}

	v, err := fn(ctx, args)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, models.NewAppError(models.KindJSON, fmt.Errorf("failed to encode %s result: %w", cmd, err))
	}
	return raw, nil
}

// Listen subscribes to backend events in process
func (r *Router) Listen(event string, h Handler) func() {
	return r.bus.Listen(event, h)
}

// Close is a no-op for the in-process bridge
func (r *Router) Close() error {
	return nil
}

// Bind adapts a typed handler. Args are decoded into A; an empty payload
// leaves A at its zero value.
func Bind[A, R any](fn func(ctx context.Context, args A) (R, error)) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args A
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, models.NewAppError(models.KindInvalidArgs, fmt.Errorf("failed to decode args: %w", err))
			}
		}
		return fn(ctx, args)
	}
}

// NoArgs adapts a handler that takes no arguments
func NoArgs[R any](fn func(ctx context.Context) (R, error)) HandlerFunc {
	return func(ctx context.Context, _ json.RawMessage) (any, error) {
		return fn(ctx)
	}
}
