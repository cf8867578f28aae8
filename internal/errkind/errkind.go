// Package errkind defines the machine-readable error taxonomy for the
// analysis and billing pipeline. Kinds are carried end to end so the HTTP
// layer can map them to status codes and clients can branch on them.
package errkind

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	// AIEmptyResponse means the model returned nothing usable.
	AIEmptyResponse Kind = "AI_EMPTY_RESPONSE"

	// AIInvalidFormat means the response text doesn't even resemble JSON.
	AIInvalidFormat Kind = "AI_INVALID_FORMAT"

	// AIJSONParseError means the text resembles JSON but every repair stage failed.
	AIJSONParseError Kind = "AI_JSON_PARSE_ERROR"

	// AIIncompleteResponse means the JSON parsed but required fields are
	// missing or the payload looks truncated.
	AIIncompleteResponse Kind = "AI_INCOMPLETE_RESPONSE"

	// InsufficientPoints means the user's balance is too low. Checked twice:
	// preflight and again at deduction time.
	InsufficientPoints Kind = "INSUFFICIENT_POINTS"

	// UserNotFound means the balance record is missing. A data-integrity
	// fault, not a retryable condition.
	UserNotFound Kind = "USER_NOT_FOUND"

	// UnknownServiceType means the fixed-price table has no entry for the
	// requested service. A configuration fault.
	UnknownServiceType Kind = "UNKNOWN_SERVICE_TYPE"

	// GenerationFailed means the model call itself failed (transport error,
	// provider error, timeout, cancellation).
	GenerationFailed Kind = "GENERATION_FAILED"
)

// Error is a pipeline error carrying its Kind and optional context.
type Error struct {
	Kind    Kind
	Message string
	Err     error

	// Balance is the user's current balance, set for InsufficientPoints.
	Balance int
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of err, or "" if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsServerFault reports whether the kind should surface as a server error
// rather than a user-facing validation failure.
func IsServerFault(kind Kind) bool {
	return kind == UserNotFound || kind == UnknownServiceType
}
