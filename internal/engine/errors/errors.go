package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrClientRequired    = sterrors.New("supercart: transport client is required")
	ErrStoreRequired     = sterrors.New("supercart: document store is required")
	ErrSessionRequired   = sterrors.New("supercart: cart session is required")
	ErrResolverRequired  = sterrors.New("supercart: catalog resolver is required")
	ErrTopicRequired     = sterrors.New("supercart: topic is required")
	ErrHandlerRequired   = sterrors.New("supercart: handler function is required")
	ErrNotConnected      = sterrors.New("supercart: transport is not connected")
	ErrAlreadyConnected  = sterrors.New("supercart: transport is already connected")
	ErrSessionUnassigned = sterrors.New("supercart: session has no cart number")
	ErrSessionPaid       = sterrors.New("supercart: session is already paid")
	ErrNotFound          = sterrors.New("supercart: not found")
)

// ValidationError reports a rejected input value. It blocks only the
// triggering action and is never treated as fatal.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("supercart: invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for the named field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return sterrors.As(err, &ve)
}
