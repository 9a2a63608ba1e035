package download

import (
	"errors"
	"fmt"
)

// Kind classifies a download failure. The orchestrator translates kinds
// into user-facing outcome categories; the kind also decides retry policy.
type Kind string

const (
	KindSizeExceeded      Kind = "size_exceeded"
	KindTimeout           Kind = "timeout"
	KindSourceUnavailable Kind = "source_unavailable"
	KindNetwork           Kind = "network"
	KindDelivery          Kind = "delivery"
	KindSystem            Kind = "system"
)

// Retryable reports whether a failure of this kind may be retried.
// Size violations and unavailable sources fail fast.
func (k Kind) Retryable() bool {
	return k != KindSizeExceeded && k != KindSourceUnavailable
}

// Error is a classified download failure.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the classification from any error chain. Unclassified
// errors read as KindSystem.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindSystem
}
