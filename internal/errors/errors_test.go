package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDerivesClassification(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{ErrCodeConfigNotFound, CategoryConfig, SeverityError, false},
		{ErrCodeBlobNotFound, CategoryIO, SeverityError, false},
		{ErrCodeBlobUnavailable, CategoryIO, SeverityWarning, false},
		{ErrCodeStoreTimeout, CategoryTransient, SeverityError, true},
		{ErrCodeStoreUnavailable, CategoryTransient, SeverityError, true},
		{ErrCodeEmbedFailed, CategoryTransient, SeverityError, true},
		{ErrCodeMalformedDocument, CategoryValidation, SeverityWarning, false},
		{ErrCodeInvalidWeights, CategoryValidation, SeverityError, false},
		{ErrCodeRebuildInProgress, CategoryLifecycle, SeverityError, false},
		{ErrCodeSwapAtomicityUnknown, CategoryLifecycle, SeverityFatal, false},
		{ErrCodeRollbackCleanup, CategoryLifecycle, SeverityWarning, false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	err := New(ErrCodeIndexWrite, "upsert failed", nil)
	assert.Equal(t, "[ERR_504_INDEX_WRITE] upsert failed", err.Error())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(ErrCodeStoreUnavailable, cause)
	require.NotNil(t, err)
	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, cause, err.Unwrap())
}

func TestHasCodeThroughChain(t *testing.T) {
	inner := New(ErrCodeStoreTimeout, "search timed out", nil)
	outer := fmt.Errorf("query page: %w", inner)

	assert.True(t, HasCode(outer, ErrCodeStoreTimeout))
	assert.False(t, HasCode(outer, ErrCodeStoreUnavailable))
	assert.False(t, HasCode(nil, ErrCodeStoreTimeout))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrCodeEmbedFailed, "embedder down", nil)))
	assert.False(t, IsRetryable(New(ErrCodeInvalidWeights, "negative weight", nil)))
	assert.False(t, IsRetryable(stderrors.New("plain error")))

	wrapped := fmt.Errorf("rebuild: %w", New(ErrCodeStoreTimeout, "timeout", nil))
	assert.True(t, IsRetryable(wrapped))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrCodeRebuildInProgress, "rebuild already running", nil).
		WithDetail("base", "rulebooks").
		WithDetail("run_id", "a1b2c3d4")

	assert.Equal(t, "rulebooks", err.Details["base"])
	assert.Equal(t, "a1b2c3d4", err.Details["run_id"])
}
