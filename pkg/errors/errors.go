package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeValidation represents malformed input that was skipped
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeEmbedding represents embedding-service errors
	ErrorTypeEmbedding ErrorType = "embedding"
	// ErrorTypeVector represents vector store errors
	ErrorTypeVector ErrorType = "vector"
	// ErrorTypeGraph represents graph database errors
	ErrorTypeGraph ErrorType = "graph"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeContext represents context cancellation/timeout errors
	ErrorTypeContext ErrorType = "context"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Validation Errors

// ErrInvalidFact is returned when a fact is missing a required field
type ErrInvalidFact struct {
	*BaseError
	Field string
}

func NewInvalidFact(field string) *ErrInvalidFact {
	return &ErrInvalidFact{
		BaseError: NewBaseError(ErrorTypeValidation, fmt.Sprintf("fact is missing required field: %s", field), nil),
		Field:     field,
	}
}

// ErrEmptyText is returned when an embedding is requested for empty text
var ErrEmptyText = NewBaseError(ErrorTypeValidation, "cannot embed empty text", nil)

// User Errors

// ErrUserNotFound is returned when a user node does not exist in the graph.
// Retrieval treats this as a warning, not a failure.
type ErrUserNotFound struct {
	*BaseError
	Username string
}

func NewUserNotFound(username string) *ErrUserNotFound {
	return &ErrUserNotFound{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("user not found: %s", username), nil),
		Username:  username,
	}
}

// ErrUserCreateFailed is the only fatal consolidation error: the user does
// not exist and could not be created.
type ErrUserCreateFailed struct {
	*BaseError
	Username string
}

func NewUserCreateFailed(username string, err error) *ErrUserCreateFailed {
	return &ErrUserCreateFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("user %q does not exist and could not be created", username), err),
		Username:  username,
	}
}

// Dependency Errors

// ErrEmbeddingFailed wraps an embedding-service failure for one text
type ErrEmbeddingFailed struct {
	*BaseError
	Text string
}

func NewEmbeddingFailed(text string, err error) *ErrEmbeddingFailed {
	return &ErrEmbeddingFailed{
		BaseError: NewBaseError(ErrorTypeEmbedding, "failed to generate embedding", err),
		Text:      text,
	}
}

// ErrVectorStoreUnavailable is returned when the vector store client is not initialized
var ErrVectorStoreUnavailable = NewBaseError(ErrorTypeVector, "vector store not available", nil)

// IsUserNotFound reports whether err is (or wraps) an ErrUserNotFound
func IsUserNotFound(err error) bool {
	var e *ErrUserNotFound
	return errors.As(err, &e)
}

// IsUserCreateFailed reports whether err is (or wraps) an ErrUserCreateFailed
func IsUserCreateFailed(err error) bool {
	var e *ErrUserCreateFailed
	return errors.As(err, &e)
}
