// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Data errors
	ErrNoData = &Error{Code: "NO_DATA", Message: "no data available"}

	// Provider errors
	ErrProviderFailed  = &Error{Code: "PROVIDER_FAILED", Message: "price history request failed"}
	ErrProfileFailed   = &Error{Code: "PROFILE_FAILED", Message: "profile request failed"}
	ErrUnknownProvider = &Error{Code: "UNKNOWN_PROVIDER", Message: "unknown data provider"}

	// Chart errors
	ErrRenderFailed  = &Error{Code: "RENDER_FAILED", Message: "chart rendering failed"}
	ErrUnknownStyle  = &Error{Code: "UNKNOWN_STYLE", Message: "unknown chart style"}
	ErrArtifactWrite = &Error{Code: "ARTIFACT_WRITE", Message: "writing chart artifact failed"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}

	// API errors
	ErrNotFound       = &Error{Code: "NOT_FOUND", Message: "resource not found"}
	ErrInvalidRequest = &Error{Code: "INVALID_REQUEST", Message: "invalid request"}
	ErrUnauthorized   = &Error{Code: "UNAUTHORIZED", Message: "missing or invalid api key"}
	ErrRunInProgress  = &Error{Code: "RUN_IN_PROGRESS", Message: "a chart run is already in progress"}
	ErrRunCanceled    = &Error{Code: "RUN_CANCELED", Message: "chart run canceled"}
)
