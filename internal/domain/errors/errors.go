package errors

import (
	"errors"
	"fmt"
)

var (
	// Request errors
	ErrInvalidRequest = errors.New("invalid request")
	ErrInvalidAmount  = errors.New("invalid amount")

	// Payment errors
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrDuplicateReceipt       = errors.New("receipt already recorded")
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// Order errors
	ErrOrderNotFound = errors.New("order not found")

	// Gateway errors
	ErrGatewayAuth     = errors.New("payment gateway authentication failed")
	ErrGatewayRejected = errors.New("payment gateway rejected the request")

	// Injected faults
	ErrSimulatedFailure = errors.New("payment service internal error")
	ErrTransportFault   = errors.New("payment gateway connection failed")

	// Lock errors
	ErrLockUnavailable = errors.New("lock store unavailable")
	ErrLockNotHeld     = errors.New("lock not held")

	// Idempotency errors
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error on a single request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// Unwrap lets callers match any field error against ErrInvalidRequest.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidRequest
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// FaultKind classifies an error produced by the fault injector. It returns
// an empty string for errors that did not originate there.
func FaultKind(err error) string {
	switch {
	case errors.Is(err, ErrSimulatedFailure):
		return "simulated_error"
	case errors.Is(err, ErrTransportFault):
		return "transport_error"
	default:
		return ""
	}
}
