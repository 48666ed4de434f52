// Package errors defines structured error types for the admission control service.
// Errors carry a machine-readable code, an HTTP status, and optional metadata so
// transport layers can map failures without inspecting message strings.
package errors

import (
	"fmt"
	"net/http"
)

// ================================================================================
// Error Code Constants
// ================================================================================

// ErrorCode identifies an error category.
type ErrorCode string

const (
	// CodeStoreUnavailable means the counter store could not be reached in time.
	CodeStoreUnavailable ErrorCode = "store_unavailable"

	// CodeAdvisorTimeout means the limit advisor did not answer in time.
	CodeAdvisorTimeout ErrorCode = "advisor_timeout"

	// CodeMalformedContext means a client key could not be derived from the request.
	CodeMalformedContext ErrorCode = "malformed_context"

	// CodeOverLimit means the request exceeded its admission window budget.
	CodeOverLimit ErrorCode = "over_limit"

	// CodeInvalidRequest means the caller supplied unusable parameters.
	CodeInvalidRequest ErrorCode = "invalid_request"

	// CodeInternal means an unexpected programming or dependency failure.
	CodeInternal ErrorCode = "internal_error"
)

// ================================================================================
// AdmissionError
// ================================================================================

// AdmissionError is the structured error type used across the service.
type AdmissionError struct {
	code       ErrorCode
	httpStatus int
	message    string
	cause      error
	metadata   map[string]interface{}
}

// Error implements the error interface.
func (e *AdmissionError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the machine-readable error code.
func (e *AdmissionError) Code() ErrorCode {
	return e.code
}

// HTTPStatus returns the HTTP status this error maps to.
func (e *AdmissionError) HTTPStatus() int {
	return e.httpStatus
}

// Unwrap returns the underlying cause for error-chain support.
func (e *AdmissionError) Unwrap() error {
	return e.cause
}

// WithCause attaches an underlying error.
func (e *AdmissionError) WithCause(cause error) *AdmissionError {
	e.cause = cause
	return e
}

// WithMetadata attaches a context key/value pair.
func (e *AdmissionError) WithMetadata(key string, value interface{}) *AdmissionError {
	if e.metadata == nil {
		e.metadata = make(map[string]interface{})
	}
	e.metadata[key] = value
	return e
}

// Metadata returns all attached metadata.
func (e *AdmissionError) Metadata() map[string]interface{} {
	return e.metadata
}

// New creates an AdmissionError with explicit code and status.
func New(code ErrorCode, httpStatus int, message string) *AdmissionError {
	return &AdmissionError{
		code:       code,
		httpStatus: httpStatus,
		message:    message,
	}
}

// ================================================================================
// Predefined Constructors
// ================================================================================

// ErrStoreUnavailable creates a counter-store unreachable error. Under a strict
// endpoint policy this surfaces to the caller as 503, never as 429.
func ErrStoreUnavailable(message string) *AdmissionError {
	return New(CodeStoreUnavailable, http.StatusServiceUnavailable, message)
}

// ErrAdvisorTimeout creates a limit-advisor timeout error. This condition is
// always absorbed internally and never propagated to callers.
func ErrAdvisorTimeout(message string) *AdmissionError {
	return New(CodeAdvisorTimeout, http.StatusServiceUnavailable, message)
}

// ErrMalformedContext creates an unresolvable-client-identity error.
func ErrMalformedContext(message string) *AdmissionError {
	return New(CodeMalformedContext, http.StatusBadRequest, message)
}

// ErrOverLimit creates a rate-limit-exceeded error for the given endpoint.
func ErrOverLimit(endpoint string, limit int) *AdmissionError {
	return New(CodeOverLimit, http.StatusTooManyRequests,
		fmt.Sprintf("admission budget exceeded for endpoint %q (limit %d)", endpoint, limit)).
		WithMetadata("endpoint", endpoint).
		WithMetadata("limit", limit)
}

// ErrInvalidRequest creates an invalid-parameters error.
func ErrInvalidRequest(message string) *AdmissionError {
	return New(CodeInvalidRequest, http.StatusBadRequest, message)
}

// ErrInternal creates an unexpected-failure error.
func ErrInternal(message string) *AdmissionError {
	return New(CodeInternal, http.StatusInternalServerError, message)
}

// ================================================================================
// Classification Helpers
// ================================================================================

// AsAdmissionError attempts to cast an error to *AdmissionError.
func AsAdmissionError(err error) (*AdmissionError, bool) {
	ae, ok := err.(*AdmissionError)
	return ae, ok
}

// IsStoreUnavailable reports whether err is a counter-store availability failure.
func IsStoreUnavailable(err error) bool {
	if ae, ok := AsAdmissionError(err); ok {
		return ae.code == CodeStoreUnavailable
	}
	return false
}

// IsOverLimit reports whether err is an over-limit rejection.
func IsOverLimit(err error) bool {
	if ae, ok := AsAdmissionError(err); ok {
		return ae.code == CodeOverLimit
	}
	return false
}

// HTTPStatusOf returns the HTTP status for any error, defaulting to 500.
func HTTPStatusOf(err error) int {
	if ae, ok := AsAdmissionError(err); ok {
		return ae.httpStatus
	}
	return http.StatusInternalServerError
}

// ================================================================================
// Error Response Builder
// ================================================================================

// ErrorResponse is the JSON body for error replies.
type ErrorResponse struct {
	Error            string                 `json:"error"`
	ErrorDescription string                 `json:"error_description"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// ToErrorResponse converts any error to an ErrorResponse.
func ToErrorResponse(err error) *ErrorResponse {
	if ae, ok := AsAdmissionError(err); ok {
		return &ErrorResponse{
			Error:            string(ae.code),
			ErrorDescription: ae.message,
			Metadata:         ae.metadata,
		}
	}
	return &ErrorResponse{
		Error:            string(CodeInternal),
		ErrorDescription: "An unexpected error occurred",
	}
}
