package storage

import "net/http"

// Error is the transport error shape shared by all stores and the route
// layer: a numeric code, a message and, for validation failures, the list of
// individual violations. An *Error is considered already formatted for
// transport and is never re-wrapped.
type Error struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// NewError creates an error with an explicit code.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// BadRequest creates a 400 error.
func BadRequest(message string) *Error {
	return &Error{Code: http.StatusBadRequest, Message: message}
}

// PermissionDenied creates a 401 error.
func PermissionDenied(message string) *Error {
	return &Error{Code: http.StatusUnauthorized, Message: message}
}

// NotFound creates a 404 error.
func NotFound(message string) *Error {
	return &Error{Code: http.StatusNotFound, Message: message}
}

// Conflict creates a 409 error, used for stale revision tokens.
func Conflict(message string) *Error {
	return &Error{Code: http.StatusConflict, Message: message}
}

// ValidationFailed creates a 400 error carrying the individual schema
// violations. The violations survive all the way into the response payload.
func ValidationFailed(message string, violations []string) *Error {
	return &Error{Code: http.StatusBadRequest, Message: message, Errors: violations}
}

// CodeOf returns the transport code of an error, or 0 if it has none.
func CodeOf(err error) int {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return 0
}

// IsNotFound returns true if the error is a 404 transport error.
func IsNotFound(err error) bool {
	return CodeOf(err) == http.StatusNotFound
}

// IsConflict returns true if the error is a 409 transport error.
func IsConflict(err error) bool {
	return CodeOf(err) == http.StatusConflict
}
