// Package errs contains sentinel errors and the status-carrying error type
// used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Common sentinels across gateway/client layers.
var (
	// ErrUnauthorized indicates the server rejected the bearer token (401/403).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound indicates the requested entity does not exist (404).
	ErrNotFound = errors.New("not found")

	// ErrConnection indicates the transport failed before any response was obtained.
	ErrConnection = errors.New("connection failed")

	// ErrDecode indicates a response body did not match the shape its content type promised.
	ErrDecode = errors.New("decode failed")
)

// StatusError is a failure with an HTTP status attached. Transport failures
// carry a synthetic status 500; server failures carry the server's status and
// its message field when present.
type StatusError struct {
	Status  int
	Message string
	Err     error // optional sentinel for errors.Is matching
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
	}
	return fmt.Sprintf("request failed (status %d)", e.Status)
}

func (e *StatusError) Unwrap() error { return e.Err }

// WithStatus builds a StatusError wrapping an optional sentinel.
func WithStatus(status int, message string, sentinel error) *StatusError {
	return &StatusError{Status: status, Message: message, Err: sentinel}
}

// StatusOf extracts the HTTP status from err, or 0 if none is attached.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

// MessageOf extracts the display message from err, falling back to Error().
func MessageOf(err error) string {
	var se *StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// IsAuthStatus reports whether err carries a 401 or 403 status. Callers use
// this to decide on session termination; the gateway itself never does.
func IsAuthStatus(err error) bool {
	s := StatusOf(err)
	return s == 401 || s == 403
}
