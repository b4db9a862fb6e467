package mcp

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	lserrors "github.com/loreseek/loreseek/internal/errors"
)

func TestMapErrorNil(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapErrorValidation(t *testing.T) {
	err := lserrors.New(lserrors.ErrCodeMalformedDocument, "document has no text", nil)

	mapped := MapError(err)
	assert.Equal(t, ErrCodeInvalidParams, mapped.Code)
	assert.Equal(t, "document has no text", mapped.Message)
}

func TestMapErrorTransient(t *testing.T) {
	err := lserrors.New(lserrors.ErrCodeEmbedFailed, "ollama not responding", nil)

	mapped := MapError(err)
	assert.Equal(t, ErrCodeTimeout, mapped.Code)
}

func TestMapErrorCorruptIndex(t *testing.T) {
	err := lserrors.New(lserrors.ErrCodeCorruptIndex, "checksum mismatch", nil)

	mapped := MapError(err)
	assert.Equal(t, ErrCodeIndexNotFound, mapped.Code)
}

func TestMapErrorWrappedLoreError(t *testing.T) {
	inner := lserrors.New(lserrors.ErrCodeMalformedDocument, "bad input", nil)
	wrapped := fmt.Errorf("handling request: %w", inner)

	mapped := MapError(wrapped)
	assert.Equal(t, ErrCodeInvalidParams, mapped.Code)
}

func TestMapErrorContext(t *testing.T) {
	assert.Equal(t, ErrCodeTimeout, MapError(context.DeadlineExceeded).Code)
	assert.Equal(t, ErrCodeTimeout, MapError(context.Canceled).Code)
}

func TestMapErrorUnknown(t *testing.T) {
	mapped := MapError(fmt.Errorf("disk exploded"))
	assert.Equal(t, ErrCodeInternalError, mapped.Code)
	assert.Equal(t, "Internal server error.", mapped.Message)
}

func TestErrorString(t *testing.T) {
	e := &Error{Code: ErrCodeInvalidParams, Message: "query parameter is required"}
	assert.Equal(t, "MCP error -32602: query parameter is required", e.Error())
}
