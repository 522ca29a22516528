// Package apierr attaches an HTTP status to an error chain so callers can
// classify a failure without parsing message text.
package apierr

import (
	"fmt"
	"net/http"
)

// Error pairs an HTTP status with a short machine-readable code. The wrapped
// cause stays reachable through errors.Is / errors.As.
type Error struct {
	Status int
	Code   string
	Err    error
}

// New wraps err under a status and code. err may be nil when the status and
// code alone describe the failure.
func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Code != "" && e.Err != nil:
		return e.Code + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Err.Error()
	case e.Code != "":
		return e.Code
	default:
		return fmt.Sprintf("http status %d", e.Status)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Temporary reports whether the status suggests the same request may succeed
// if retried: rate limiting or a server-side failure.
func (e *Error) Temporary() bool {
	return e != nil && (e.Status == http.StatusTooManyRequests || e.Status >= 500)
}
