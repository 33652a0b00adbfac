package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	err := NewError(ErrNotFound, "handler not registered")
	assert.Equal(t, "[NOT_FOUND] handler not registered", err.Error())

	wrapped := NewError(ErrSynthesisFailure, "answer backend unreachable").
		WithCause(errors.New("dial tcp: connection refused")).
		WithRetryable(true)
	assert.Contains(t, wrapped.Error(), "SYNTHESIS_FAILURE")
	assert.Contains(t, wrapped.Error(), "connection refused")
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewError(ErrToolExecutionFailure, "tool failed").WithCause(cause)
	assert.True(t, errors.Is(err, cause))
}

func TestError_CodeExtraction(t *testing.T) {
	err := NewError(ErrConflict, "duplicate identifier")
	assert.Equal(t, ErrConflict, GetErrorCode(err))
	assert.True(t, IsCode(err, ErrConflict))
	assert.False(t, IsCode(err, ErrNotFound))

	// Wrapped errors still expose their code via errors.As.
	wrapped := fmt.Errorf("register chat: %w", err)
	assert.Equal(t, ErrConflict, GetErrorCode(wrapped))

	plain := errors.New("plain")
	assert.Equal(t, ErrorCode(""), GetErrorCode(plain))
	assert.False(t, IsRetryable(plain))
}

func TestError_Retryable(t *testing.T) {
	err := NewError(ErrSynthesisFailure, "unreachable").WithRetryable(true)
	assert.True(t, IsRetryable(err))

	err2 := NewError(ErrNotFound, "missing")
	assert.False(t, IsRetryable(err2))
}
