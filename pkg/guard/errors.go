package guard

import "net/http"

// ErrorCode classifies gate failures
type ErrorCode string

// Gate failure codes
const (
	CodeUnauthorized    ErrorCode = "unauthorized"
	CodeForbidden       ErrorCode = "forbidden"
	CodeTooManyRequests ErrorCode = "too_many_requests"
	CodeInternal        ErrorCode = "internal"
)

// Error is a request-gating failure with a stable code and a message safe
// to return to the caller.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// HTTPStatus maps the code to a response status
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Unauthorized builds a 401-class error
func Unauthorized(message string) *Error {
	return &Error{Code: CodeUnauthorized, Message: message}
}

// Forbidden builds a 403-class error
func Forbidden(message string) *Error {
	return &Error{Code: CodeForbidden, Message: message}
}

// TooManyRequests builds a 429-class error
func TooManyRequests(message string) *Error {
	return &Error{Code: CodeTooManyRequests, Message: message}
}

// Internal builds a 500-class error. The message is still client-safe;
// underlying detail belongs in logs.
func Internal(message string) *Error {
	return &Error{Code: CodeInternal, Message: message}
}
