package apperr

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category. The HTTP layer maps kinds to
// status codes; callers branch on kinds instead of string-matching messages.
type Kind string

const (
	// KindInput marks caller mistakes: missing content, malformed IDs.
	KindInput Kind = "input"
	// KindUpstream marks failures of the LLM or embedding backends.
	KindUpstream Kind = "upstream"
	// KindNotFound marks lookups of documents that have no stored chunks.
	KindNotFound Kind = "not_found"
	// KindPersistence marks vector index or registry write failures.
	KindPersistence Kind = "persistence"
	// KindInternal marks everything else.
	KindInternal Kind = "internal"
)

// Error is the tagged result carried across pipeline boundaries. The wrapped
// cause stays available for logs; Message is what callers may show to users.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error with no underlying cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from err, or KindInternal for untagged errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf extracts the user-facing message from err. Untagged errors fall
// back to their full text.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
