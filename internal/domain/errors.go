package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMandatoryParamMissing = errors.New("mandatory parameter missing")
	ErrInvalidParameterValue = errors.New("invalid parameter value")
	ErrDateOrdering          = errors.New("date ordering error")
	ErrInvalidActivity       = errors.New("invalid activity")
	ErrInvalidOrg            = errors.New("invalid organisation")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrNotFound              = errors.New("not found")
	ErrStore                 = errors.New("store error")
)

// FieldError names the request or record field that failed a check.
type FieldError struct {
	Field  string
	Reason string
	Err    error
}

func (e *FieldError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Field)
	}
	return fmt.Sprintf("%v: %s: %s", e.Err, e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return e.Err }

func MissingField(field string) error {
	return &FieldError{Field: field, Err: ErrMandatoryParamMissing}
}

func InvalidField(field, reason string) error {
	return &FieldError{Field: field, Reason: reason, Err: ErrInvalidParameterValue}
}

// IsClientError reports whether err was caused by caller input rather than a backend failure.
func IsClientError(err error) bool {
	switch {
	case errors.Is(err, ErrMandatoryParamMissing),
		errors.Is(err, ErrInvalidParameterValue),
		errors.Is(err, ErrDateOrdering),
		errors.Is(err, ErrInvalidActivity),
		errors.Is(err, ErrInvalidOrg),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrNotFound):
		return true
	}
	return false
}

// ErrorCode returns the stable response code for err.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrMandatoryParamMissing):
		return "MANDATORY_PARAMETER_MISSING"
	case errors.Is(err, ErrInvalidParameterValue):
		return "INVALID_PARAMETER_VALUE"
	case errors.Is(err, ErrDateOrdering):
		return "DATE_ORDERING_ERROR"
	case errors.Is(err, ErrInvalidActivity):
		return "INVALID_ACTIVITY"
	case errors.Is(err, ErrInvalidOrg):
		return "INVALID_ORGANISATION"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrStore):
		return "STORE_ERROR"
	}
	return "INTERNAL_ERROR"
}
