// Package errors attaches a numeric ErrorCode to every error the backtester returns.
//
// Codes are grouped by hundreds (see Category). Callers branch with HasCode
// or GetCode; the standard errors.Is and errors.As keep working through Unwrap.
//
//	err := errors.Newf(errors.ErrCodeDataIntegrity, "bar %d has high below low", index)
//	if errors.HasCode(err, errors.ErrCodeDataIntegrity) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error is a coded error with an optional cause.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches code and message to cause.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Error formats as "[code] message" or "[code] message: cause".
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// GetCode returns the code of the outermost *Error in err's chain,
// or ErrCodeUnknown when there is none.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// InsufficientDataError reports a price series shorter than a run needs.
type InsufficientDataError struct {
	Required int
	Actual   int
	// Symbol may be empty.
	Symbol string
}

func (e *InsufficientDataError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("insufficient data: required %d bars, got %d", e.Required, e.Actual)
	}

	return fmt.Sprintf("insufficient data for %s: required %d bars, got %d", e.Symbol, e.Required, e.Actual)
}

// NewInsufficientData returns an ErrCodeInsufficientData error caused by an
// *InsufficientDataError, so callers can match on the code or extract the counts.
func NewInsufficientData(required, actual int, symbol string) *Error {
	cause := &InsufficientDataError{Required: required, Actual: actual, Symbol: symbol}

	return Wrap(ErrCodeInsufficientData, "price series shorter than indicator warm-up", cause)
}
