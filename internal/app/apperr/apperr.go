package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that need to branch on failure class
// rather than on message text.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindIO                  Kind = "io"
	KindConstraint          Kind = "constraint"
	KindNotFound            Kind = "not_found"
	KindConversion          Kind = "conversion"
	KindResourceUnavailable Kind = "resource_unavailable"
	KindInferenceExhausted  Kind = "inference_exhausted"
	KindPersistence         Kind = "persistence"
	KindDuplicateSubmission Kind = "duplicate_submission"
	KindInternal            Kind = "internal"
)

// Error is the structured error carried across the engine. Retryable marks
// failures local to one fallback attempt; the orchestrator advances the
// chain on those instead of failing the job.
type Error struct {
	Kind      Kind   `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Err       error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// IsKind reports whether err (or anything it wraps) carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Validation creates a caller-fault input error.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// NotFound creates a lookup failure for the named resource.
func NotFound(resource, id string) *Error {
	return Newf(KindNotFound, "%s not found: %s", resource, id)
}

// ResourceUnavailable marks one fallback attempt as failed but recoverable.
func ResourceUnavailable(err error, device, computeType string) *Error {
	return &Error{
		Kind:      KindResourceUnavailable,
		Message:   fmt.Sprintf("inference unavailable on %s/%s", device, computeType),
		Retryable: true,
		Err:       err,
	}
}
