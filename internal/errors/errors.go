package errors

import "fmt"

// ErrorCode represents a Protocol error code.
type ErrorCode string

const (
	ErrInvalidRequest         ErrorCode = "INVALID_REQUEST"         // 400
	ErrMalformedTime          ErrorCode = "MALFORMED_TIME"          // 400
	ErrPermissionDenied       ErrorCode = "PERMISSION_DENIED"       // 403
	ErrUnknownField           ErrorCode = "UNKNOWN_FIELD"           // 404
	ErrFileNotFound           ErrorCode = "FILE_NOT_FOUND"          // 404
	ErrCancelled              ErrorCode = "CANCELLED"               // 499
	ErrInternal               ErrorCode = "INTERNAL"                // 500
	ErrUnsupportedEnvironment ErrorCode = "UNSUPPORTED_ENVIRONMENT" // 501
	ErrStorageUnavailable     ErrorCode = "STORAGE_UNAVAILABLE"     // 503
)

// ProtocolError represents a structured error with code, status, and details.
type ProtocolError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ProtocolError {
	return &ProtocolError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewMalformedTime creates a 400 error for a reminder time that cannot be parsed.
// The scheduler reports these per slot; they never abort an activation.
func NewMalformedTime(slot int, raw string) *ProtocolError {
	return &ProtocolError{
		Code:    ErrMalformedTime,
		Status:  400,
		Message: fmt.Sprintf("reminder %d: cannot parse time %q", slot+1, raw),
		Details: map[string]any{"slot": slot, "raw": raw},
	}
}

// NewPermissionDenied creates a 403 error for refused notification permission.
func NewPermissionDenied() *ProtocolError {
	return &ProtocolError{
		Code:    ErrPermissionDenied,
		Status:  403,
		Message: "notification permission denied",
	}
}

// NewUnknownField creates a 404 error for a key the active flow does not declare.
func NewUnknownField(key string) *ProtocolError {
	return &ProtocolError{
		Code:    ErrUnknownField,
		Status:  404,
		Message: fmt.Sprintf("unknown field: %s", key),
		Details: map[string]any{"key": key},
	}
}

// NewFileNotFound creates a 404 error for a missing file.
func NewFileNotFound(path string) *ProtocolError {
	return &ProtocolError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewCancelled creates a 499 error when an operation is cancelled by its context.
func NewCancelled(op string) *ProtocolError {
	return &ProtocolError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewUnsupportedEnvironment creates a 501 error when notifications are unavailable.
func NewUnsupportedEnvironment() *ProtocolError {
	return &ProtocolError{
		Code:    ErrUnsupportedEnvironment,
		Status:  501,
		Message: "notifications are not supported in this environment",
	}
}

// NewStorageUnavailable creates a 503 error when durable storage cannot be reached.
func NewStorageUnavailable(err error) *ProtocolError {
	msg := "durable storage unavailable"
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &ProtocolError{
		Code:    ErrStorageUnavailable,
		Status:  503,
		Message: msg,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *ProtocolError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ProtocolError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a ProtocolError with the given code.
func Is(err error, code ErrorCode) bool {
	if pErr, ok := err.(*ProtocolError); ok {
		return pErr.Code == code
	}
	return false
}
