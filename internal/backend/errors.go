package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrUnknownBackend indicates a model id whose prefix no registered adapter
// serves. It is a configuration error, not an execution failure.
var ErrUnknownBackend = errors.New("unknown backend prefix")

// ErrorKind classifies an execution failure.
type ErrorKind string

const (
	// KindTimeout - the call exceeded its deadline or the context expired.
	KindTimeout ErrorKind = "timeout"
	// KindRateLimited - the backend refused the call with a 429.
	KindRateLimited ErrorKind = "rate_limited"
	// KindServerError - transport failure or 5xx from the backend.
	KindServerError ErrorKind = "server_error"
	// KindMalformedResponse - the backend replied but the payload was not
	// usable (bad JSON, empty choices, unknown model, 4xx).
	KindMalformedResponse ErrorKind = "malformed_response"
)

// ExecutionError is the typed failure every adapter returns for transport
// and backend errors. Callers inspect it with errors.As.
type ExecutionError struct {
	Kind    ErrorKind
	Backend string
	ModelID string
	Detail  string
	// Err is the underlying cause, when one exists.
	Err error
}

func (e *ExecutionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s/%s: %s: %s", e.Backend, e.ModelID, e.Kind, e.Detail)
	}
	return fmt.Sprintf("%s/%s: %s", e.Backend, e.ModelID, e.Kind)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Transient reports whether retrying the same call later could succeed.
func (e *ExecutionError) Transient() bool {
	switch e.Kind {
	case KindTimeout, KindRateLimited, KindServerError:
		return true
	}
	return false
}

// KindOf extracts the ErrorKind from err, unwrapping as needed. ok is false
// when err carries no *ExecutionError.
func KindOf(err error) (ErrorKind, bool) {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Kind, true
	}
	return "", false
}

// IsTransient reports whether err is an *ExecutionError worth retrying.
func IsTransient(err error) bool {
	var execErr *ExecutionError
	return errors.As(err, &execErr) && execErr.Transient()
}

// classifyHTTPStatus maps a non-2xx status code to an ErrorKind.
func classifyHTTPStatus(status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindServerError
	default:
		return KindMalformedResponse
	}
}

// classifyTransportErr maps a failed http.Client.Do (or SDK call) error to an
// ErrorKind: context expiry is a timeout, anything else a server error.
func classifyTransportErr(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	return KindServerError
}
