// Package mcp implements the Model Context Protocol server that
// exposes loreseek's hybrid retrieval to AI clients.
package mcp

import (
	"context"
	"errors"
	"fmt"

	lserrors "github.com/loreseek/loreseek/internal/errors"
)

// Custom MCP error codes.
const (
	// ErrCodeIndexNotFound indicates no live collection exists yet.
	ErrCodeIndexNotFound = -32001

	// ErrCodeEmbeddingFailed indicates embedding generation failed.
	ErrCodeEmbeddingFailed = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// ErrCodePageNotFound indicates a source/page pair is not indexed.
	ErrCodePageNotFound = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Error represents an MCP protocol error with code and message.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// NewInvalidParamsError creates an invalid-parameters error.
func NewInvalidParamsError(msg string) *Error {
	return &Error{Code: ErrCodeInvalidParams, Message: msg}
}

// NewResourceNotFoundError creates an unknown-resource error.
// NewInternalError reports a server-side failure.
func NewInternalError(msg string) *Error {
	return &Error{Code: ErrCodeInternalError, Message: msg}
}

func NewResourceNotFoundError(uri string) *Error {
	return &Error{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("Resource '%s' not found.", uri)}
}

// MapError converts internal errors to MCP protocol errors.
func MapError(err error) *Error {
	if err == nil {
		return nil
	}

	var loreErr *lserrors.LoreError
	if errors.As(err, &loreErr) {
		return mapLoreError(loreErr)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &Error{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &Error{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

func mapLoreError(le *lserrors.LoreError) *Error {
	switch le.Category {
	case lserrors.CategoryValidation:
		return &Error{Code: ErrCodeInvalidParams, Message: le.Message}
	case lserrors.CategoryTransient:
		return &Error{Code: ErrCodeTimeout, Message: le.Message}
	case lserrors.CategoryIO:
		if le.Code == lserrors.ErrCodeCorruptIndex {
			return &Error{Code: ErrCodeIndexNotFound, Message: le.Message}
		}
		return &Error{Code: ErrCodeInternalError, Message: le.Message}
	default:
		return &Error{Code: ErrCodeInternalError, Message: le.Message}
	}
}
