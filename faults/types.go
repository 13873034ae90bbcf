package faults

import "errors"

type ErrorCategory string

const (
	ValidationError      ErrorCategory = "ValidationError"
	NotFoundError        ErrorCategory = "NotFoundError"
	ConflictError        ErrorCategory = "ConflictError"
	AuthError            ErrorCategory = "AuthError"
	TransportError       ErrorCategory = "TransportError"
	ApplicationError     ErrorCategory = "ApplicationError"
	ParseError           ErrorCategory = "ParseError"
	ProtocolError        ErrorCategory = "ProtocolError"
	OperationFailedError ErrorCategory = "OperationFailedError"
	AggregateError       ErrorCategory = "AggregateError"
	InternalError        ErrorCategory = "InternalError"
)

type TypedError struct {
	Category ErrorCategory
	Message  string
	Cause    error
	// StatusCode is the HTTP status of the remote response, zero when the
	// error did not come from a completed HTTP exchange.
	StatusCode int
}

func (e *TypedError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message != "" && e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return string(e.Category)
}

func (e *TypedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func NewTypedError(category ErrorCategory, message string, cause error) *TypedError {
	return &TypedError{
		Category: category,
		Message:  message,
		Cause:    cause,
	}
}

func NewStatusError(category ErrorCategory, statusCode int, message string) *TypedError {
	return &TypedError{
		Category:   category,
		Message:    message,
		StatusCode: statusCode,
	}
}

func IsCategory(err error, category ErrorCategory) bool {
	if err == nil {
		return false
	}

	var typedErr *TypedError
	if !errors.As(err, &typedErr) {
		return false
	}
	return typedErr.Category == category
}

// StatusCode returns the first non-zero HTTP status carried by a typed error
// in the chain, or zero. Wrappers without a status, such as a transport error
// around a failed poll, are looked through to their cause.
func StatusCode(err error) int {
	for err != nil {
		var typedErr *TypedError
		if !errors.As(err, &typedErr) {
			return 0
		}
		if typedErr.StatusCode != 0 {
			return typedErr.StatusCode
		}
		err = typedErr.Cause
	}
	return 0
}

func CategoryOf(err error) ErrorCategory {
	var typedErr *TypedError
	if !errors.As(err, &typedErr) {
		return ""
	}
	return typedErr.Category
}
