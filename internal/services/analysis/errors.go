package analysis

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusClass is the stable classification carried by every analysis failure.
type StatusClass string

const (
	ClassBadRequest      StatusClass = "bad_request"
	ClassPayloadTooLarge StatusClass = "payload_too_large"
	ClassRateLimited     StatusClass = "rate_limited"
	ClassUpstream        StatusClass = "upstream_error"
	ClassInternal        StatusClass = "internal_error"
)

// HTTPStatus maps a class to the status code returned at the HTTP boundary.
func (c StatusClass) HTTPStatus() int {
	switch c {
	case ClassBadRequest, ClassUpstream:
		return http.StatusBadRequest
	case ClassPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case ClassRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is the ErrorResult of the pipeline. Message is safe to show to callers.
// Details overrides the default "HTTP <code>" detail text when set.
type Error struct {
	Class   StatusClass
	Message string
	Details string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Class, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(class StatusClass, message string, err error) *Error {
	return &Error{Class: class, Message: message, Err: err}
}

func badRequest(format string, args ...interface{}) *Error {
	return newError(ClassBadRequest, fmt.Sprintf(format, args...), nil)
}

// DetailText is the details value written at the HTTP boundary.
func (e *Error) DetailText() string {
	if e.Details != "" {
		return e.Details
	}
	return fmt.Sprintf("HTTP %d", e.Class.HTTPStatus())
}

// ClassOf returns the status class of err, defaulting to ClassInternal.
func ClassOf(err error) StatusClass {
	var aerr *Error
	if errors.As(err, &aerr) {
		return aerr.Class
	}
	return ClassInternal
}

// BadRequest builds a ClassBadRequest error for transport-level input problems.
func BadRequest(message string) *Error {
	return newError(ClassBadRequest, message, nil)
}
