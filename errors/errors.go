// Package errors provides error handling for legisync.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Error marks, so a failure keeps its class through any number of wraps
//
// Failures are classified by marking them with one of the taxonomy sentinels
// below. Marking keeps the original message and cause chain intact:
//
//	return errors.Mark(errors.Wrapf(err, "GET %s", url), errors.ErrTransient)
//
// Callers test the class with the Is* helpers or errors.Is:
//
//	if errors.IsTransient(err) {
//	    // retry
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Taxonomy sentinels. Mark errors with these instead of comparing messages.
var (
	// ErrValidation indicates bad input. Never retried, aborts before any network call.
	ErrValidation = New("validation error")

	// ErrNotFound indicates the upstream resource does not exist. Terminal.
	ErrNotFound = New("not found")

	// ErrTransient indicates a network, timeout or 5xx failure that may succeed on retry.
	ErrTransient = New("transient failure")

	// ErrClient indicates an upstream 4xx (other than 404). Terminal.
	ErrClient = New("client error")

	// ErrBatchCommit indicates a whole-batch commit failure against the document store.
	ErrBatchCommit = New("batch commit failed")

	// ErrMapping indicates a single item could not be transformed.
	ErrMapping = New("mapping error")
)

// IsValidation checks if an error is or wraps ErrValidation
func IsValidation(err error) bool {
	return err != nil && Is(err, ErrValidation)
}

// IsNotFoundError checks if an error is or wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsTransient checks if an error is or wraps ErrTransient
func IsTransient(err error) bool {
	return err != nil && Is(err, ErrTransient)
}

// IsClient checks if an error is or wraps ErrClient
func IsClient(err error) bool {
	return err != nil && Is(err, ErrClient)
}

// IsMapping checks if an error is or wraps ErrMapping
func IsMapping(err error) bool {
	return err != nil && Is(err, ErrMapping)
}

// NewValidationError creates a validation error with a formatted message
func NewValidationError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrValidation)
}

// NewMappingError creates a mapping error with a formatted message
func NewMappingError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrMapping)
}

// WrapMapping marks err as a mapping failure with context
func WrapMapping(err error, context string) error {
	return Mark(Wrap(err, context), ErrMapping)
}
