// Package shared contains the error taxonomy and invariant checks used by
// every leveling package. It has no external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds, matched with errors.Is().
var (
	ErrNotFound     = errors.New("entity not found")
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidArgument is returned for values a pure function cannot
	// operate on (for example a level below 1).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrPartialConfiguration marks a guild whose numeric leveling settings
	// are only partially populated.
	ErrPartialConfiguration = errors.New("partial configuration")

	// ErrInvariant marks a state that should be unreachable. In production
	// it is logged and recovered from, elsewhere it fails the call chain.
	ErrInvariant = errors.New("invariant violated")

	ErrExternalService = errors.New("external service error")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g. "leveling", "eligibility"
	Op      string // operation that failed, e.g. "CumulativeXPFor"
	Kind    error  // base error kind for errors.Is() checking
	Message string
	Err     error // underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching against both the kind and the cause.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvariant checks if the error reports a violated invariant.
func IsInvariant(err error) bool {
	return errors.Is(err, ErrInvariant)
}

// IsValidation checks if the error is caused by bad input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrPartialConfiguration)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService)
}
