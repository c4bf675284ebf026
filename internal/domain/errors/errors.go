// Package errors provides standardized error types for the domain layer.
// Every rejected engine command surfaces one of these and leaves state untouched.
package errors

import (
	"errors"
)

// Standard error categories
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates invalid input was provided
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict indicates a conflict with the current state
	ErrConflict = errors.New("conflict")

	// ErrServiceUnavailable indicates the service is temporarily unavailable
	ErrServiceUnavailable = errors.New("service unavailable")
)

// DomainError represents a domain-specific error with additional context
type DomainError struct {
	Err       error
	Code      string
	Message   string
	Details   map[string]interface{}
	Retryable bool
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target
func (e *DomainError) Is(target error) bool {
	if e.Err != nil {
		return errors.Is(e.Err, target)
	}
	return false
}

func (e *DomainError) IsRetryable() bool {
	return e.Retryable
}

// ValidationError creates a validation error
func ValidationError(field, message string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidInput,
		Code:    "VALIDATION_ERROR",
		Message: message,
		Details: map[string]interface{}{
			"field": field,
		},
	}
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return isAny(err, ErrNotFound, ErrAgentNotFound, ErrSafetyExitNotFound)
}

// IsInvalidInput checks if an error is an invalid input error
func IsInvalidInput(err error) bool {
	return isAny(err, ErrInvalidInput, ErrInvalidAmount, ErrInvalidTradeType, ErrInvalidBaseline)
}

// IsConflict checks if an error was caused by the current account or agent state
func IsConflict(err error) bool {
	return isAny(err,
		ErrConflict,
		ErrInsufficientBalance,
		ErrInsufficientPosition,
		ErrNoPosition,
		ErrAgentLimitExceeded,
		ErrAgentNotActive,
		ErrAgentExited,
		ErrAssetNotAllowed,
		ErrTradeLimitExceeded,
	)
}

// IsServiceUnavailable checks if an error is a service unavailable error
func IsServiceUnavailable(err error) bool {
	return isAny(err, ErrServiceUnavailable, ErrMarketDataUnavailable)
}

func isAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// GetErrorCode extracts the error code from a domain error
func GetErrorCode(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return "UNKNOWN_ERROR"
}

// GetErrorDetails extracts details from a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}
