package adminapi

import (
	"errors"
	"fmt"
)

var (
	// ErrNoToken is returned when login succeeds without a token in the body.
	ErrNoToken = errors.New("login response carried no token")

	// ErrTokenExpired is returned by CheckToken for a token past its exp claim.
	ErrTokenExpired = errors.New("token has expired")
)

// APIError is a non-2xx response from the admin backend.
type APIError struct {
	Method     string
	Path       string
	StatusCode int

	// Payload is the trimmed response body, empty when the server sent none.
	Payload string
}

func (e *APIError) Error() string {
	if e.Payload == "" {
		return fmt.Sprintf("%s %s: unexpected status code %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: unexpected status code %d: %s", e.Method, e.Path, e.StatusCode, e.Payload)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// Payload returns the server-provided error body carried by err, or "".
func Payload(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Payload
	}
	return ""
}
