package models

import (
	"errors"
	"fmt"
)

// Error kinds reported across the bridge
const (
	KindUnknown                    = "Unknown"
	KindSQL                        = "SqlError"
	KindJSON                       = "JsonError"
	KindHTTPStatusCode             = "HttpStatusCode"
	KindHTTPRequest                = "HttpRequest"
	KindHTTPTimeout                = "HttpTimeout"
	KindCipher                     = "CipherError"
	KindInvalidAgentProvider       = "InvalidAgentProviderError"
	KindAgentRequired              = "AgentRequiredError"
	KindAgentTextGenParamsRequired = "AgentTextGenParamsRequiredError"
	KindInvalidArgs                = "InvalidArgsError"
	KindUnknownCommand             = "UnknownCommandError"
	KindTransport                  = "TransportError"
)

// AppError is the error shape crossing the bridge
type AppError struct {
	Kind    string `json:"kind"`
	Message string `json:"message,omitempty"`
	cause   error
}

// NewAppError builds an AppError of the given kind wrapping cause
func NewAppError(kind string, cause error) *AppError {
	e := &AppError{Kind: kind, cause: cause}
	if cause != nil {
		e.Message = cause.Error()
	}
	return e
}

func (e *AppError) Error() string {
	if e.Message == "" {
		return e.Kind
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// IsAppError reports whether err carries an AppError and returns it
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Sentinel errors for conditions without an underlying cause
var (
	ErrAgentRequired              = &AppError{Kind: KindAgentRequired}
	ErrAgentTextGenParamsRequired = &AppError{Kind: KindAgentTextGenParamsRequired}
)
