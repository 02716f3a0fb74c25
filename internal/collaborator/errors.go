package collaborator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// CallError describes a failed call to a collaborator service.
type CallError struct {
	Collaborator string
	StatusCode   int
	Message      string
	Transient    bool
	Cause        error
}

func (e *CallError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, e.Collaborator+" call failed")
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *CallError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsNotFound reports whether the collaborator answered 404.
func IsNotFound(err error) bool {
	var callErr *CallError
	return errors.As(err, &callErr) && callErr.StatusCode == http.StatusNotFound
}

// IsTransient reports whether a later attempt could succeed.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr.Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}
