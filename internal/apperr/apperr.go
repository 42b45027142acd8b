package apperr

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable error category. Every surfaced error carries
// one so the presentation layer can render a targeted message without the
// engine depending on presentation strings.
type Kind string

const (
	// KindNetwork marks transient failures. Retried automatically exactly
	// once before being surfaced as retryable.
	KindNetwork Kind = "network"

	// KindUnsupportedSource marks sources blocked by policy. Permanent.
	KindUnsupportedSource Kind = "unsupported_source"

	// KindExtraction marks backend-reported failures (geo-block, removed
	// content, private video). Permanent, queue continues.
	KindExtraction Kind = "extraction"

	// KindInvalidSelection marks caller errors in spec construction.
	// Surfaced synchronously; such a task never enters the queue.
	KindInvalidSelection Kind = "invalid_selection"

	// KindDiskFull is systemic: it halts the entire queue until the user
	// acknowledges it.
	KindDiskFull Kind = "disk_full"

	// KindCancelled marks user-initiated cancellation. Not reported as an
	// error.
	KindCancelled Kind = "cancelled"

	// KindInternal covers everything else.
	KindInternal Kind = "internal"
)

// Error is an application error with a Kind and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Kind so errors.Is(err, apperr.New(KindNetwork, "")) holds for
// any network error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind around a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from an error chain, defaulting to KindInternal.
// A nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether the error is transient. Only network failures
// qualify; everything else surfaces immediately.
func Retryable(err error) bool {
	return IsKind(err, KindNetwork)
}

// Terminal reports whether the kind should be recorded as a failure.
// Cancellations are removed silently.
func (k Kind) Terminal() bool {
	return k != KindCancelled
}
