package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeInvalidArgument   = "INVALID_ARGUMENT"
	ErrCodeInvalidContent    = "INVALID_CONTENT"
	ErrCodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	ErrCodeExecution         = "EXECUTION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeStore             = "STORE_ERROR"
)

// CertflowError is the structured error type for all certflow operations.
type CertflowError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	NodeID  string         `json:"node_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *CertflowError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("[%s] node %s: %s", e.Code, e.NodeID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *CertflowError) Unwrap() error {
	return e.Cause
}

// NewError creates a new CertflowError.
func NewError(code, message string) *CertflowError {
	return &CertflowError{Code: code, Message: message}
}

// NewErrorf creates a new CertflowError with a formatted message.
func NewErrorf(code, format string, args ...any) *CertflowError {
	return &CertflowError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithNode attaches a node ID to the error.
func (e *CertflowError) WithNode(nodeID string) *CertflowError {
	e.NodeID = nodeID
	return e
}

// WithCause attaches an underlying cause.
func (e *CertflowError) WithCause(err error) *CertflowError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *CertflowError) WithDetails(details map[string]any) *CertflowError {
	e.Details = details
	return e
}

// IsCode reports whether err, or any error it wraps, is a CertflowError with the given code.
func IsCode(err error, code string) bool {
	var ce *CertflowError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}
