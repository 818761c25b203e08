// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrFeedNotReady       = errors.New("price feed not ready")
	ErrFeedDisconnected   = errors.New("price feed disconnected")
	ErrInvalidTrade       = errors.New("invalid trade parameters")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrUnknownOffset      = errors.New("strike offset not offered")
	ErrInvalidSettlement  = errors.New("invalid settlement inputs")
	ErrAlreadyConfirmed   = errors.New("settlement already confirmed")
	ErrSubmissionInFlight = errors.New("settlement submission already in flight")
	ErrLedgerUnavailable  = errors.New("ledger unavailable")
	ErrConfigInvalid      = errors.New("invalid configuration")
	ErrDataNotFound       = errors.New("data not found")
)

// ValidationError represents a rejected input with a specific reason.
// Validation failures are never transient and must not be retried.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation failed [%s]: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("validation failed [%s]: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, reason string, err error) *ValidationError {
	return &ValidationError{
		Field:  field,
		Reason: reason,
		Err:    err,
	}
}

// LedgerError represents an error returned by the external ledger.
type LedgerError struct {
	Operation string
	Code      string
	Message   string
	Err       error
}

func (e *LedgerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ledger error [%s] %s: %s: %v", e.Operation, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("ledger error [%s] %s: %s", e.Operation, e.Code, e.Message)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

// NewLedgerError creates a new LedgerError.
func NewLedgerError(operation, code, message string, err error) *LedgerError {
	return &LedgerError{
		Operation: operation,
		Code:      code,
		Message:   message,
		Err:       err,
	}
}

// FeedError represents an error from the price feed connection.
type FeedError struct {
	Source string
	Reason string
	Err    error
}

func (e *FeedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("feed error [%s]: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("feed error [%s]: %s", e.Source, e.Reason)
}

func (e *FeedError) Unwrap() error {
	return e.Err
}

// NewFeedError creates a new FeedError.
func NewFeedError(source, reason string, err error) *FeedError {
	return &FeedError{
		Source: source,
		Reason: reason,
		Err:    err,
	}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsLedger reports whether err is (or wraps) a LedgerError.
func IsLedger(err error) bool {
	var le *LedgerError
	return errors.As(err, &le)
}
