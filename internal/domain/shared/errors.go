package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies domain errors so callers can react without parsing codes
type ErrorKind string

const (
	KindValidation ErrorKind = "VALIDATION"
	KindInvariant  ErrorKind = "INVARIANT"
	KindState      ErrorKind = "STATE"
	KindConflict   ErrorKind = "CONFLICT"
	KindNotFound   ErrorKind = "NOT_FOUND"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Kind    ErrorKind `json:"kind,omitempty"`
	// State is the lifecycle state the aggregate was in when a transition was refused
	State string `json:"state,omitempty"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code.
// This lets callers match sentinels and freshly constructed errors alike.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Kind:    KindValidation,
	}
}

// NewValidationError creates an error for malformed input
func NewValidationError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindValidation}
}

// NewInvariantError creates an error for a violated business invariant
func NewInvariantError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindInvariant}
}

// NewStateError creates an error for an operation refused in the current lifecycle state
func NewStateError(code, state, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: fmt.Sprintf("%s (current state: %s)", message, state),
		Kind:    KindState,
		State:   state,
	}
}

// NewConflictError creates an optimistic concurrency conflict error
func NewConflictError(message string) *DomainError {
	return &DomainError{Code: ErrConcurrencyConflict.Code, Message: message, Kind: KindConflict}
}

// NewNotFoundError creates an error for a missing aggregate
func NewNotFoundError(resource string, id any) *DomainError {
	return &DomainError{
		Code:    ErrNotFound.Code,
		Message: fmt.Sprintf("%s %v not found", resource, id),
		Kind:    KindNotFound,
	}
}

// KindOf returns the kind of a domain error, or empty if err is not a domain error
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// Common domain errors
var (
	ErrNotFound            = &DomainError{Code: "NOT_FOUND", Message: "Resource not found", Kind: KindNotFound}
	ErrAlreadyExists       = &DomainError{Code: "ALREADY_EXISTS", Message: "Resource already exists", Kind: KindConflict}
	ErrInvalidInput        = &DomainError{Code: "INVALID_INPUT", Message: "Invalid input provided", Kind: KindValidation}
	ErrConcurrencyConflict = &DomainError{Code: "CONCURRENCY_CONFLICT", Message: "Resource was modified by another process", Kind: KindConflict}
	ErrUnauthorized        = &DomainError{Code: "UNAUTHORIZED", Message: "Not authorized to perform this action", Kind: KindValidation}
	ErrInvalidState        = &DomainError{Code: "INVALID_STATE", Message: "Operation not allowed in current state", Kind: KindState}
)

// InfrastructureError wraps a failure from a persistence or messaging collaborator.
// Infrastructure errors are never domain errors and may be retried by the caller.
type InfrastructureError struct {
	Op  string
	Err error
}

// NewInfrastructureError wraps err with the failing operation name
func NewInfrastructureError(op string, err error) *InfrastructureError {
	return &InfrastructureError{Op: op, Err: err}
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error {
	return e.Err
}

// Retryable reports that the operation may succeed when attempted again
func (e *InfrastructureError) Retryable() bool {
	return true
}

// IsRetryable reports whether err is an infrastructure failure or a concurrency conflict
func IsRetryable(err error) bool {
	var ie *InfrastructureError
	if errors.As(err, &ie) {
		return ie.Retryable()
	}
	return errors.Is(err, ErrConcurrencyConflict)
}
