package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the core.
type ErrorCode string

// Workflow and routing error codes.
const (
	// ErrClassificationFailure: model output unparsable. Recovered locally
	// via the keyword fallback and never surfaced to callers.
	ErrClassificationFailure ErrorCode = "CLASSIFICATION_FAILURE"
	// ErrRoutingFallback: confidence below threshold. A policy outcome, not
	// an error; carried for logging only.
	ErrRoutingFallback ErrorCode = "ROUTING_FALLBACK"
	// ErrToolExecutionFailure: a selected tool raised or returned an error.
	// Surfaced as a partial-result marker in the tool results.
	ErrToolExecutionFailure ErrorCode = "TOOL_EXECUTION_FAILURE"
	// ErrInvalidTransition: a stage was invoked out of order. Programmer
	// error.
	ErrInvalidTransition ErrorCode = "INVALID_TRANSITION"
)

// Retrieval error codes.
const (
	// ErrRetrievalDegraded: one or more modality collections unreachable or
	// timed out. Surfaced as reduced evidence, not a failure.
	ErrRetrievalDegraded ErrorCode = "RETRIEVAL_DEGRADED"
	// ErrSynthesisFailure: the answer generation backend is unreachable.
	// Surfaced to the caller as a retryable error; no partial answer is
	// fabricated.
	ErrSynthesisFailure ErrorCode = "SYNTHESIS_FAILURE"
	// ErrEmbeddingFailure: the embedding service failed for the query
	// vector; retrieval cannot proceed without it.
	ErrEmbeddingFailure ErrorCode = "EMBEDDING_FAILURE"
)

// Registry error codes. Both are fatal at startup (programmer error).
const (
	ErrConflict ErrorCode = "CONFLICT"
	ErrNotFound ErrorCode = "NOT_FOUND"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
