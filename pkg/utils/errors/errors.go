package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies an application error
type ErrorType uint

const (
	// ErrorTypeUnknown represents an unclassified error
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeInvalidArgument represents rejected input
	ErrorTypeInvalidArgument
	// ErrorTypeNumericDegeneracy represents input that cannot be factorized
	ErrorTypeNumericDegeneracy
	// ErrorTypeComputeFailure represents a fault inside a simulation task
	ErrorTypeComputeFailure
	// ErrorTypeResourceExhausted represents a request over the configured limits
	ErrorTypeResourceExhausted
	// ErrorTypeUnavailable represents a dependency that cannot be reached
	ErrorTypeUnavailable
	// ErrorTypeInternal represents an internal error
	ErrorTypeInternal
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeInvalidArgument:
		return "invalid_argument"
	case ErrorTypeNumericDegeneracy:
		return "numeric_degeneracy"
	case ErrorTypeComputeFailure:
		return "compute_failure"
	case ErrorTypeResourceExhausted:
		return "resource_exhausted"
	case ErrorTypeUnavailable:
		return "unavailable"
	case ErrorTypeInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Details []string
	Err     error
}

// Error returns the error message
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Wrap wraps err with a message, keeping the type of the innermost AppError
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Type:    TypeOf(err),
		Message: message,
		Err:     err,
	}
}

// Wrapf wraps an error with a formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// TypeOf returns the type of the first AppError in err's chain
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

// DetailsOf collects the details of every AppError in err's chain
func DetailsOf(err error) []string {
	var details []string
	for err != nil {
		if appErr, ok := err.(*AppError); ok {
			details = append(details, appErr.Details...)
		}
		err = errors.Unwrap(err)
	}
	return details
}

// Is reports whether err or any error in its chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// InvalidArgument creates a new InvalidArgument error
func InvalidArgument(message string, details ...string) error {
	return &AppError{
		Type:    ErrorTypeInvalidArgument,
		Message: message,
		Details: details,
	}
}

// InvalidArgumentf creates a new InvalidArgument error with a formatted message
func InvalidArgumentf(format string, args ...interface{}) error {
	return InvalidArgument(fmt.Sprintf(format, args...))
}

// NumericDegeneracy creates a new NumericDegeneracy error
func NumericDegeneracy(message string) error {
	return &AppError{
		Type:    ErrorTypeNumericDegeneracy,
		Message: message,
	}
}

// ComputeFailure wraps a worker fault
func ComputeFailure(message string, err error) error {
	return &AppError{
		Type:    ErrorTypeComputeFailure,
		Message: message,
		Err:     err,
	}
}

// ResourceExhausted creates a new ResourceExhausted error
func ResourceExhausted(message string) error {
	return &AppError{
		Type:    ErrorTypeResourceExhausted,
		Message: message,
	}
}
