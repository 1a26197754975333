package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while serving a session.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// SessionID identifies the affected session.
	SessionID string

	// EventID identifies the offending event, when there is one.
	EventID string

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeCorruptLog indicates the raw log still violates call matching
	// and must not reach the model.
	ErrCodeCorruptLog RuntimeErrorCode = "CORRUPT_LOG"

	// ErrCodeInvalidAppend indicates an append without a session or event.
	ErrCodeInvalidAppend RuntimeErrorCode = "INVALID_APPEND"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.SessionID != "" {
		msg = fmt.Sprintf("%s (session=%s)", msg, e.SessionID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsCorruptLogError returns true if err is a corrupt-log runtime error.
// Uses errors.As to handle wrapped errors.
func IsCorruptLogError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeCorruptLog
	}
	return false
}

// NewCorruptLogError wraps the integrity failure that blocks a turn.
func NewCorruptLogError(sessionID string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeCorruptLog,
		Message:   "raw log failed integrity check",
		SessionID: sessionID,
		Err:       cause,
	}
}
