// Package errs defines the tagged error variants the core uses to
// classify failures (spec §7): Network, Timeout, Validation, NotFound,
// Conflict, Extraction, Storage, Cancelled.
package errs

import (
	"errors"
	"fmt"
)

// Kind tags an Error with the propagation policy spec §7 assigns it.
type Kind string

const (
	Network    Kind = "network"
	Timeout    Kind = "timeout"
	Validation Kind = "validation"
	NotFound   Kind = "not_found"
	Conflict   Kind = "conflict"
	Extraction Kind = "extraction"
	Storage    Kind = "storage"
	Cancelled  Kind = "cancelled"
)

// Error wraps an underlying error with a Kind and the operation that
// produced it, so callers can branch on Kind without string matching.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind for op, wrapping err.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is lets errors.Is(err, errs.Sentinel(errs.Network)) etc. match an
// *Error by its Kind.
func (e *Error) Is(target error) bool {
	var k *kindSentinel
	if errors.As(target, &k) {
		return e.Kind == k.kind
	}
	return false
}

type kindSentinel struct{ kind Kind }

func (s *kindSentinel) Error() string { return string(s.kind) }

// Sentinel returns a comparable error value for use with errors.Is,
// e.g. errors.Is(err, errs.Sentinel(errs.NotFound)).
func Sentinel(k Kind) error { return &kindSentinel{kind: k} }

// KindOf extracts the Kind from err if it (or something it wraps) is
// an *Error; ok is false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
