package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context. The code of a wrapped
// AppError is kept; anything else becomes a computation error.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   err,
		}
	}
	return &AppError{
		Code:    CodeComputationError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Cause:   appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetCode returns the code of the outermost AppError in the chain,
// otherwise "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Predefined error codes
const (
	CodeInvalidArgument  = "INVALID_ARGUMENT"
	CodeKeyNotFound      = "KEY_NOT_FOUND"
	CodeComputationError = "COMPUTATION_ERROR"
	CodeConfigInvalid    = "CONFIG_INVALID"
)

// InvalidArgument reports a caller-supplied value the scorers cannot use.
func InvalidArgument(message string) *AppError {
	return New(CodeInvalidArgument, message)
}

// InvalidArgumentf is InvalidArgument with formatting.
func InvalidArgumentf(format string, args ...interface{}) *AppError {
	return New(CodeInvalidArgument, fmt.Sprintf(format, args...))
}

// KeyNotFound reports a named outcome missing from the outcome mapping.
func KeyNotFound(key string) *AppError {
	return New(CodeKeyNotFound, fmt.Sprintf("outcome %q not found", key))
}

// ComputationError reports that the data could not support a delegated
// statistical procedure.
func ComputationError(message string, cause error) *AppError {
	return &AppError{
		Code:    CodeComputationError,
		Message: message,
		Cause:   cause,
	}
}

func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

// HasCode reports whether any AppError in the chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Code == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

func IsInvalidArgument(err error) bool {
	return HasCode(err, CodeInvalidArgument)
}

func IsKeyNotFound(err error) bool {
	return HasCode(err, CodeKeyNotFound)
}

func IsComputationError(err error) bool {
	return HasCode(err, CodeComputationError)
}

func IsConfigInvalid(err error) bool {
	return HasCode(err, CodeConfigInvalid)
}
