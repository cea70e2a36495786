package editor

import (
	"errors"
	"fmt"

	"github.com/mapnest/mapnest/internal/annotation"
	"github.com/mapnest/mapnest/internal/boundary"
	"github.com/mapnest/mapnest/internal/geom"
	"github.com/mapnest/mapnest/internal/layer"
	"github.com/mapnest/mapnest/internal/maparea"
)

// ErrorKind partitions engine failures by how they must be handled: local
// validation and authorization short-circuit before any gateway call,
// not-found and transport failures come back from the gateway.
type ErrorKind int

// Engine error kinds.
const (
	KindValidation ErrorKind = iota + 1
	KindAuthorization
	KindNotFound
	KindTransport
)

// String returns the kind's wire name.
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error is a classified engine failure scoped to a single attempted
// transition. No engine error is fatal; the session returns to Idle after
// reporting it.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error returns the human-readable message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Validationf builds a validation error.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Authorizationf builds an authorization error.
func Authorizationf(format string, args ...any) *Error {
	return &Error{Kind: KindAuthorization, Message: fmt.Sprintf(format, args...)}
}

// classify wraps a gateway or validation failure into an engine error,
// keeping the specific message so the user never sees a generic failure
// string for a server-side rejection.
func classify(err error, op string) *Error {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr
	}

	kind := KindTransport
	switch {
	case errors.Is(err, maparea.ErrMapAreaNotFound),
		errors.Is(err, layer.ErrLayerNotFound),
		errors.Is(err, annotation.ErrAnnotationNotFound),
		errors.Is(err, boundary.ErrBoundaryNotFound):
		kind = KindNotFound
	case errors.Is(err, layer.ErrLayerNotEditable):
		kind = KindAuthorization
	case errors.Is(err, geom.ErrDegenerateRing),
		errors.Is(err, annotation.ErrTooFewPoints),
		errors.Is(err, boundary.ErrBoundaryExists):
		kind = KindValidation
	}

	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf("%s: %s", op, err.Error()),
		Err:     err,
	}
}

// KindOf classifies an arbitrary error. Unrecognized errors count as
// transport failures, which are reported as retryable.
func KindOf(err error) ErrorKind {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr.Kind
	}
	if err == nil {
		return 0
	}
	return classify(err, "").Kind
}
