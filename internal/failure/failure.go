// Package failure defines the error kinds shared by the control plane
// services and their mapping to HTTP status codes.
package failure

import (
	"net/http"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidInput reports a missing or malformed field.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict reports a logical name collision.
	ErrConflict = errors.New("conflict")
	// ErrNotFound reports an unknown identifier.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState reports an operation not allowed in the entity's current state.
	ErrInvalidState = errors.New("invalid state")
	// ErrIntegrity reports a divergence between the database and the disk,
	// or data that failed authentication.
	ErrIntegrity = errors.New("integrity error")
	// ErrUpstreamUnavailable reports an unreachable collaborator (container daemon, queue).
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

func InvalidInput(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidInput, format, args...)
}

func Conflict(format string, args ...any) error {
	return errors.Wrapf(ErrConflict, format, args...)
}

func NotFound(format string, args ...any) error {
	return errors.Wrapf(ErrNotFound, format, args...)
}

func InvalidState(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidState, format, args...)
}

func Integrity(format string, args ...any) error {
	return errors.Wrapf(ErrIntegrity, format, args...)
}

func UpstreamUnavailable(cause error, format string, args ...any) error {
	if cause == nil {
		return errors.Wrapf(ErrUpstreamUnavailable, format, args...)
	}

	return errors.Wrapf(&upstreamError{cause}, format, args...)
}

type upstreamError struct {
	cause error
}

func (e *upstreamError) Error() string {
	return ErrUpstreamUnavailable.Error() + ": " + e.cause.Error()
}

func (e *upstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

func (e *upstreamError) Unwrap() error {
	return e.cause
}

// StatusCode maps an error to the HTTP status code of its kind.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// IsExpected reports whether the error is a client-side condition that does
// not need to be logged as a server failure.
func IsExpected(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrNotFound)
}
