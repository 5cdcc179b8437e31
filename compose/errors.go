package compose

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies pipeline failures so the web layer can map them to a
// response without inspecting messages.
type Kind string

const (
	KindCount       Kind = "COUNT"
	KindDecode      Kind = "DECODE"
	KindLayout      Kind = "LAYOUT"
	KindPersist     Kind = "PERSIST"
	KindInvalidName Kind = "INVALID_NAME"
)

// Error is a pipeline error with a kind and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf returns the kind of err, or "" if err is not a pipeline error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Describe renders the pipeline messages in err's chain without the
// underlying causes, which can carry file system paths. It returns ""
// when err holds no pipeline error.
func Describe(err error) string {
	var parts []string
	for err != nil {
		if e, ok := err.(*Error); ok {
			parts = append(parts, e.Message)
		}
		err = errors.Unwrap(err)
	}
	return strings.Join(parts, ": ")
}
