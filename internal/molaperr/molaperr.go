// Package molaperr defines the error taxonomy shared by every engine
// component: a fixed set of abstract kinds (Input, State, Policy,
// Evaluation, Resource, Lifecycle) plus sentinel values callers can match
// with errors.Is, and a wrapper that carries the kind alongside the
// failing operation name.
package molaperr

import (
	"errors"
	"fmt"
)

// Kind is an abstract error category. Callers that need to branch on
// category (e.g. an HTTP adapter choosing a status code) should switch on
// Kind rather than match error strings.
type Kind int

const (
	// KindInput covers malformed requests: bad names, paths, positions,
	// unknown ids, or a value whose type doesn't match the target cell.
	KindInput Kind = iota
	// KindState covers conflicts with existing server state: name
	// collisions, cycles, missing elements, lock conflicts, unknown rules.
	KindState
	// KindPolicy covers authorization and configured-limit rejections.
	KindPolicy
	// KindEvaluation covers rule-evaluation failures.
	KindEvaluation
	// KindResource covers memory and file-system failures.
	KindResource
	// KindLifecycle covers cancellation, timeouts, and shutdown.
	KindLifecycle
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindState:
		return "state"
	case KindPolicy:
		return "policy"
	case KindEvaluation:
		return "evaluation"
	case KindResource:
		return "resource"
	case KindLifecycle:
		return "lifecycle"
	default:
		return "unknown"
	}
}

// Sentinels, one per taxonomy entry named in spec.md §7. Wrap with Wrap
// when an operation name or extra context is available.
var (
	ErrInvalidName     = errors.New("invalid name")
	ErrInvalidPath     = errors.New("invalid path")
	ErrInvalidPosition = errors.New("invalid position")
	ErrUnknownID       = errors.New("unknown id")
	ErrTypeMismatch    = errors.New("type mismatch")

	ErrNameInUse       = errors.New("name in use")
	ErrCircularRef     = errors.New("circular reference")
	ErrDimensionLocked = errors.New("dimension locked")
	ErrElementNotFound = errors.New("element not found")
	ErrLockConflict    = errors.New("lock conflict")
	ErrNoSuchRule      = errors.New("no such rule")

	ErrNotAuthorized  = errors.New("not authorized")
	ErrReadOnly       = errors.New("read only")
	ErrSplashRejected = errors.New("splash rejected")
	ErrCellLimit      = errors.New("cell limit exceeded")

	ErrRuleCircular    = errors.New("rule circular reference")
	ErrDivisionByZero  = errors.New("division by zero")
	ErrFunctionArity   = errors.New("wrong function arity")
	ErrUnsupportedConv = errors.New("unsupported conversion")
	ErrUnsupported     = errors.New("unsupported")
	ErrOutOfMemory     = errors.New("out of memory")
	ErrFileCorrupt     = errors.New("file corrupt")
	ErrFileOpen        = errors.New("file open failed")
	ErrCancelled       = errors.New("cancelled")
	ErrTimeout         = errors.New("timeout")
	ErrShutdown        = errors.New("shutdown")
)

// Error wraps a sentinel with the kind it belongs to and the operation
// that produced it, without losing errors.Is/As compatibility.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap attaches kind and operation context to a sentinel (or any error).
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf reports the Kind of err if it (or something it wraps) is a
// *Error; ok is false otherwise.
func KindOf(err error) (k Kind, ok bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
