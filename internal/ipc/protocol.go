package ipc

import (
	"encoding/json"

	"AskKit/internal/models"
)

// JSON-RPC 2.0 types carried by every remote transport

// JSONRPCRequest represents a JSON-RPC 2.0 request
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"` // Always "2.0"
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"` // Always "2.0"
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// JSONRPCNotification is a request without an id. The server uses it to push events.
type JSONRPCNotification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error. Data carries the AppError.
type RPCError struct {
	Code    int              `json:"code"`
	Message string           `json:"message"`
	Data    *models.AppError `json:"data,omitempty"`
}

// Standard and application error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeAppError       = -32000
)

// Bridge methods
const (
	MethodInvoke = "invoke"
	MethodEvent  = "event"
)

// InvokeParams are the params of an invoke request
type InvokeParams struct {
	Command string          `json:"command"`
	Args    json.RawMessage `json:"args,omitempty"`
}

// EventParams are the params of an event notification
type EventParams struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// message is any frame read from a peer: a response when ID is set and
// Method is empty, otherwise a request or notification.
type message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int            `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// toError converts a wire error back into an AppError
func (e *RPCError) toError() error {
	if e.Data != nil {
		return e.Data
	}
	kind := models.KindTransport
	if e.Code == CodeMethodNotFound {
		kind = models.KindUnknownCommand
	}
	return &models.AppError{Kind: kind, Message: e.Message}
}

func newRPCError(err error) *RPCError {
	appErr := asAppError(err)
	code := CodeAppError
	if appErr.Kind == models.KindUnknownCommand {
		code = CodeMethodNotFound
	}
	return &RPCError{Code: code, Message: appErr.Error(), Data: appErr}
}
