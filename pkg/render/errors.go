package render

import (
	"errors"
	"fmt"
)

// Common errors returned by the renderer.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of render failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx responses from the renderer.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses from the renderer.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// RenderError represents a failed render with additional context.
type RenderError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *RenderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("render %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("render %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *RenderError) Unwrap() error {
	return e.Err
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// a 4xx is the page's answer, rendering again won't change it
		return false
	case ErrorClassServer:
		return true
	case ErrorClassNetwork:
		return true
	default:
		return false
	}
}

// classify returns the error class carried by err.
// Errors without a class are treated as network failures.
func classify(err error) ErrorClass {
	var renderErr *RenderError
	if errors.As(err, &renderErr) {
		return renderErr.ErrorClass
	}
	return ErrorClassNetwork
}
