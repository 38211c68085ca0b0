// Package kerrors defines the typed failures reported by the kernel.
// Every constructive operation either returns a fully validated value or
// one of these errors; there is no partially valid result.
package kerrors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Kind is a machine-readable failure category.
type Kind string

const (
	// KindUnknown is reported for errors that did not originate in the kernel.
	KindUnknown Kind = "UNKNOWN"

	// InvalidProfile: a sketch cycle self-intersects, is open, or a hole is
	// not fully contained in the exterior.
	InvalidProfile Kind = "INVALID_PROFILE"
	// InvalidSweep: the sweep direction has zero length or lies in the
	// profile plane.
	InvalidSweep Kind = "INVALID_SWEEP"
	// NonManifoldResult: a closed shell has an edge not shared by exactly
	// two faces.
	NonManifoldResult Kind = "NON_MANIFOLD_RESULT"
	// ToleranceExceeded: adaptive approximation could not meet the requested
	// deviation within its depth bound.
	ToleranceExceeded Kind = "TOLERANCE_EXCEEDED"
	// CsgDegenerate: boolean classification is ambiguous because faces
	// coincide or touch within tolerance.
	CsgDegenerate Kind = "CSG_DEGENERATE"

	// InvalidTopology: a topological constructor rejected its inputs.
	InvalidTopology Kind = "INVALID_TOPOLOGY"
	// InvalidTolerance: a tolerance was zero, negative or not finite.
	InvalidTolerance Kind = "INVALID_TOLERANCE"
	// InvalidDescription: a geometry description could not be evaluated.
	InvalidDescription Kind = "INVALID_DESCRIPTION"
	// EmptyResult: a boolean removed every part of both operands.
	EmptyResult Kind = "EMPTY_RESULT"
	// Unsupported: an operation needs geometry the kernel cannot
	// represent, such as the intersection of two cylinders whose axes are
	// not parallel.
	Unsupported Kind = "UNSUPPORTED"
)

// Error is a kernel failure with a kind and optional metadata.
type Error struct {
	Kind     Kind
	Message  string
	Metadata map[string]string
	cause    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Metadata) > 0 {
		keys := make([]string, 0, len(e.Metadata))
		for k := range e.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" [")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%s=%s", k, e.Metadata[k])
		}
		b.WriteString("]")
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// With returns a copy of e with an extra metadata entry.
func (e *Error) With(key string, value any) *Error {
	md := make(map[string]string, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		md[k] = v
	}
	md[key] = fmt.Sprint(value)
	cp := *e
	cp.Metadata = md
	return &cp
}

// New creates an error of the given kind. The returned error carries a
// stack trace captured at the call site.
func New(kind Kind, format string, args ...any) error {
	return errors.WithStack(&Error{Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// Newf is like New but returns the concrete *Error so callers can attach
// metadata before returning it.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps cause with a kernel error of the given kind. A nil cause
// yields nil.
func Wrap(cause error, kind Kind, format string, args ...any) error {
	if cause == nil {
		return nil
	}
	return errors.WithStack(&Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause})
}

// KindOf extracts the kind of the first kernel error in err's chain.
// Returns KindUnknown if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Metadata returns the metadata of the first kernel error in err's chain.
func Metadata(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Metadata
	}
	return nil
}
