package api

import (
	"fmt"
	"net/http"
)

// Error type identifiers surfaced to callers in the `error.type` field.
// These are stable machine-readable strings; clients branch on them.
const (
	TypeAuthentication = "authentication_error"
	TypeNotFound       = "not_found_error"
	TypeValidation     = "validation_error"
	TypeUpstream       = "upstream_error"
	TypeTransport      = "transport_error"
	TypeRateLimit      = "rate_limit_error"
	TypeInternal       = "internal_error"
)

// Error is the caller-facing error shape. Every failed request renders as
// {"error": {"message": ..., "type": ...}} with the HTTP status taken from
// Status.
type Error struct {
	Status  int    `json:"-"`
	Type    string `json:"type"`
	Message string `json:"message"`

	// Log carries the internal cause for server-side logging. Never
	// serialized.
	Log error `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%d] %s: %s", e.Status, e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Log
}

// ErrorEnvelope wraps an Error for the wire.
type ErrorEnvelope struct {
	Error *Error `json:"error"`
}

// Envelope returns the JSON-serializable envelope for this error.
func (e *Error) Envelope() ErrorEnvelope {
	return ErrorEnvelope{Error: e}
}

// AuthenticationError covers missing, invalid, or malformed credentials on
// routes that require them.
func AuthenticationError(msg string) *Error {
	return &Error{Status: http.StatusUnauthorized, Type: TypeAuthentication, Message: msg}
}

// NotFoundError covers unknown model ids and unknown resources. Model
// resolution never falls back silently; it fails with this.
func NotFoundError(msg string) *Error {
	return &Error{Status: http.StatusNotFound, Type: TypeNotFound, Message: msg}
}

// ValidationError covers malformed request bodies.
func ValidationError(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Type: TypeValidation, Message: msg}
}

// UpstreamError preserves the upstream status code and body text verbatim
// for diagnosability. The gateway never retries these.
func UpstreamError(status int, body string, cause error) *Error {
	if status < 400 {
		status = http.StatusBadGateway
	}
	return &Error{Status: status, Type: TypeUpstream, Message: body, Log: cause}
}

// TransportError covers upstream connection failures and a missing response
// body where one was required.
func TransportError(msg string, cause error) *Error {
	return &Error{Status: http.StatusBadGateway, Type: TypeTransport, Message: msg, Log: cause}
}

// RateLimitError is returned when a caller exceeds the configured request
// rate.
func RateLimitError(msg string) *Error {
	return &Error{Status: http.StatusTooManyRequests, Type: TypeRateLimit, Message: msg}
}

// InternalError is the catch-all for unexpected failures.
func InternalError(msg string, cause error) *Error {
	return &Error{Status: http.StatusInternalServerError, Type: TypeInternal, Message: msg, Log: cause}
}
