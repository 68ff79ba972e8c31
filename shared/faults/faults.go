package faults

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a failure for propagation and transport mapping.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation marks malformed or missing input; no side effects occurred.
	KindValidation
	// KindNotFound marks an absent order, product or reservation.
	KindNotFound
	// KindConflict marks duplicates, illegal status transitions and
	// optimistic-lock failures.
	KindConflict
	// KindUnavailable marks a downstream service that could not be reached.
	KindUnavailable
	// KindProcessing marks a saga step that failed for a business reason.
	KindProcessing
	// KindCompensation marks a best-effort rollback failure; logged, never propagated.
	KindCompensation
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	case KindProcessing:
		return "processing"
	case KindCompensation:
		return "compensation"
	default:
		return "unknown"
	}
}

// Fault is a classified error with an optional underlying cause.
type Fault struct {
	kind  Kind
	msg   string
	cause error
}

// New creates a fault without an underlying cause
func New(kind Kind, msg string) *Fault {
	return &Fault{kind: kind, msg: msg}
}

// Newf creates a fault with a formatted message
func Newf(kind Kind, format string, args ...interface{}) *Fault {
	return &Fault{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap creates a fault preserving the underlying cause
func Wrap(kind Kind, cause error, msg string) *Fault {
	return &Fault{kind: kind, msg: msg, cause: cause}
}

// Wrapf creates a fault with a formatted message preserving the cause
func Wrapf(kind Kind, cause error, format string, args ...interface{}) *Fault {
	return &Fault{kind: kind, msg: fmt.Sprintf(format, args...), cause: cause}
}

// Error implements the error interface
func (f *Fault) Error() string {
	if f.cause != nil {
		return f.msg + ": " + f.cause.Error()
	}
	return f.msg
}

// Unwrap exposes the cause for errors.Is / errors.As chains
func (f *Fault) Unwrap() error {
	return f.cause
}

// Kind returns the fault classification
func (f *Fault) Kind() Kind {
	return f.kind
}

// KindOf returns the classification of err, walking the wrap chain.
// A Processing fault wrapping a more specific fault keeps its own kind:
// the outermost classification wins.
func KindOf(err error) Kind {
	var f *Fault
	if stderrors.As(err, &f) {
		return f.kind
	}
	return KindUnknown
}

// IsKind reports whether the outermost fault in err's chain has the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Cause returns the innermost cause of err
func Cause(err error) error {
	return errors.Cause(err)
}
