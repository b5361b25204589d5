package domain

import (
	"errors"
	"fmt"
)

// Common errors used throughout the application.
var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrStaleEntity      = errors.New("stale entity")
	ErrSubmitFailed     = errors.New("submit failed")
	ErrSubmitInProgress = errors.New("submit already in progress")
	ErrNoPendingChanges = errors.New("no pending changes")
	ErrSyncInProgress   = errors.New("sync already in progress")
)

// StaleEntityError reports a matrix pair referencing an entity that is
// no longer present in the directory snapshot. The caller must refresh
// the directory and retry.
type StaleEntityError struct {
	EntityID string
}

func (e *StaleEntityError) Error() string {
	return fmt.Sprintf("entity %q not in directory snapshot", e.EntityID)
}

// Unwrap allows errors.Is(err, ErrStaleEntity).
func (e *StaleEntityError) Unwrap() error {
	return ErrStaleEntity
}

// APIError represents an error response from the API.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}
