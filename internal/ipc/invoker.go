// Package ipc carries command invocations and events between the launcher and
// the native backend, in process or over websocket, HTTP or stdio.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"AskKit/internal/models"
)

// Invoker runs a named backend command. args is encoded as JSON; nil means
// no arguments. Failures are returned as *models.AppError.
type Invoker interface {
	Invoke(ctx context.Context, cmd string, args any) (json.RawMessage, error)
}

// EventSource delivers backend events to listeners until they unlisten.
type EventSource interface {
	Listen(event string, h Handler) (unlisten func())
}

// Bridge is both halves of the connection to the backend.
type Bridge interface {
	Invoker
	EventSource
	Close() error
}

// Invoke runs cmd and decodes its result into T
func Invoke[T any](ctx context.Context, inv Invoker, cmd string, args any) (T, error) {
	var out T
	raw, err := inv.Invoke(ctx, cmd, args)
	if err != nil {
		return out, err
	}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, models.NewAppError(models.KindJSON, fmt.Errorf("failed to decode %s result: %w", cmd, err))
	}
	return out, nil
}

func encodeArgs(args any) (json.RawMessage, error) {
	switch a := args.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return a, nil
	}
	b, err := json.Marshal(args)
	if err != nil {
		return nil, models.NewAppError(models.KindJSON, fmt.Errorf("failed to encode args: %w", err))
	}
	return b, nil
}

// asAppError classifies err, keeping an AppError already in the chain.
func asAppError(err error) *models.AppError {
	if appErr, ok := models.IsAppError(err); ok {
		return appErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewAppError(models.KindHTTPTimeout, err)
	}
	return models.NewAppError(models.KindUnknown, err)
}
