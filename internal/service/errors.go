package service

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across services.
var (
	// ErrNotFound indicates a referenced item, history entry or backup
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotUndoable indicates a historical undo was requested for an
	// action kind that cannot be inverted (UNDO, RESTORE_*, RESCUE_MERGE).
	ErrNotUndoable = errors.New("action is not undoable")
)

// ValidationError reports malformed user input. The operation is aborted
// before any store call is made.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Invalidf creates a ValidationError with a formatted message.
func Invalidf(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// StoreError wraps an underlying persistence failure. The attempted
// mutation is considered not applied; no automatic retry is performed.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// storeErr wraps err as a StoreError, passing nil through.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
