package gateway

import "fmt"

// Kind classifies a gateway failure for the caller
type Kind string

// Failure kinds surfaced by every gateway method
const (
	Unauthorized     Kind = "unauthorized"
	Forbidden        Kind = "forbidden"
	NotFound         Kind = "not_found"
	ValidationFailed Kind = "validation_failed"
	ServerError      Kind = "server_error"
	NetworkError     Kind = "network_error"
)

// APIError is the error type returned by all gateway methods
type APIError struct {
	Kind       Kind
	StatusCode int
	Message    string
	Fields     map[string]string
	Err        error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

// Unwrap exposes the underlying transport error, if any
func (e *APIError) Unwrap() error { return e.Err }

// IsKind reports whether err is an APIError of the given kind
func IsKind(err error, kind Kind) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Kind == kind
}

func kindForStatus(code int) Kind {
	switch {
	case code == 401:
		return Unauthorized
	case code == 403:
		return Forbidden
	case code == 404:
		return NotFound
	case code == 400 || code == 422:
		return ValidationFailed
	default:
		return ServerError
	}
}
