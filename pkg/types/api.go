package types

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Typed Errors (stable categories for programmatic handling)
// -----------------------------------------------------------------------------

// ErrKind classifies errors so callers can branch on intent rather than text.
type ErrKind int

const (
	ErrKindInvalidArgument  ErrKind = iota // local misuse: bad id, size, mode or address
	ErrKindCapacityExceeded                // a hard limit (pool count) was reached
	ErrKindAborted                         // cooperative cancellation of a slab release
	ErrKindInvariant                       // internal bookkeeping inconsistency
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindInvalidArgument:
		return "invalid argument"
	case ErrKindCapacityExceeded:
		return "capacity exceeded"
	case ErrKindAborted:
		return "aborted"
	case ErrKindInvariant:
		return "invariant violation"
	default:
		return fmt.Sprintf("ErrKind(%d)", int(k))
	}
}

// Error is a typed error with an optional underlying cause.
type Error struct {
	Kind ErrKind
	Msg  string
	Err  error // optional underlying cause
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind. This lets callers
// match on the sentinels below regardless of the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is matching by kind.
var (
	// ErrInvalidArgument matches every misuse error.
	ErrInvalidArgument = &Error{Kind: ErrKindInvalidArgument, Msg: "invalid argument"}
	// ErrCapacityExceeded matches pool-count exhaustion.
	ErrCapacityExceeded = &Error{Kind: ErrKindCapacityExceeded, Msg: "capacity exceeded"}
	// ErrAborted matches a slab release abandoned through its context.
	ErrAborted = &Error{Kind: ErrKindAborted, Msg: "slab release aborted"}
	// ErrInvariant matches internal inconsistencies (normally raised as panics).
	ErrInvariant = &Error{Kind: ErrKindInvariant, Msg: "invariant violation"}
)

// Invalidf builds an ErrKindInvalidArgument error.
func Invalidf(format string, args ...any) error {
	return &Error{Kind: ErrKindInvalidArgument, Msg: fmt.Sprintf(format, args...)}
}

// InvalidWrap builds an ErrKindInvalidArgument error around a package sentinel.
func InvalidWrap(err error, format string, args ...any) error {
	return &Error{Kind: ErrKindInvalidArgument, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Capacityf builds an ErrKindCapacityExceeded error.
func Capacityf(format string, args ...any) error {
	return &Error{Kind: ErrKindCapacityExceeded, Msg: fmt.Sprintf(format, args...)}
}

// Aborted wraps the cancellation cause of a slab release.
func Aborted(cause error) error {
	return &Error{Kind: ErrKindAborted, Msg: "slab release aborted", Err: cause}
}

// Invariantf builds an ErrKindInvariant error. Callers panic with it.
func Invariantf(format string, args ...any) error {
	return &Error{Kind: ErrKindInvariant, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrKind, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return 0, false
}
