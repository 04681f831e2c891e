package engine

import (
	"context"
	"errors"
	"fmt"
)

// Error is a classified failure raised while syncing.
//
// The code decides what the engine does next:
//   - TRANSIENT: safe to retry; the destination did not act on the request.
//   - CONTENT: the destination rejected the payload; retrying will not help.
//   - PARTIAL_MEDIA: some images could not be transferred.
//   - INVARIANT: the ledger refused a duplicate record; the run aborts.
//   - PERSISTENCE: the ledger could not be saved; the run aborts.
//   - BREAKER_OPEN: publishing stopped after repeated failures.
//   - AUTHENTICATION: a platform rejected the credentials.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// SourceID identifies the affected source item, when there is one.
	SourceID string

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	ErrCodeTransient      ErrorCode = "TRANSIENT"
	ErrCodeContent        ErrorCode = "CONTENT"
	ErrCodePartialMedia   ErrorCode = "PARTIAL_MEDIA"
	ErrCodeInvariant      ErrorCode = "INVARIANT"
	ErrCodePersistence    ErrorCode = "PERSISTENCE"
	ErrCodeBreakerOpen    ErrorCode = "BREAKER_OPEN"
	ErrCodeAuthentication ErrorCode = "AUTHENTICATION"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.SourceID != "" {
		return fmt.Sprintf("%s: %s (source=%s)", e.Code, msg, e.SourceID)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Transient marks err as safe to retry. Destination adapters use it for
// failures that happened before the request reached the server.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: ErrCodeTransient, Err: err}
}

// Content marks err as a rejection of the payload itself.
func Content(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: ErrCodeContent, Err: err}
}

func codeOf(err error) (ErrorCode, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// IsTransientError returns true if the error is marked safe to retry.
// Context cancellation is never transient.
func IsTransientError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	code, ok := codeOf(err)
	return ok && code == ErrCodeTransient
}

// IsContentError returns true if the destination rejected the payload.
func IsContentError(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodeContent
}

// IsPersistenceError returns true if the ledger could not be saved or loaded.
func IsPersistenceError(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodePersistence
}

// IsInvariantError returns true if the ledger rejected a duplicate record.
func IsInvariantError(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodeInvariant
}

// IsAuthenticationError returns true if a platform rejected the credentials.
func IsAuthenticationError(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodeAuthentication
}

// IsFatal reports whether err must abort the run.
func IsFatal(err error) bool {
	return IsPersistenceError(err) || IsInvariantError(err)
}
