package core

import (
	"errors"
	"fmt"
)

// Kind classifies an Error the way spec error kinds are contracts, not
// code: callers branch on Kind, never on the message text.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindConfig        Kind = "config"
	KindProvider      Kind = "provider"
	KindPersistence   Kind = "persistence"
	KindTool          Kind = "tool"
	KindConnection    Kind = "connection"
	KindTimeout       Kind = "timeout"
	KindAuth          Kind = "auth"
	KindDecomposition Kind = "decomposition"
	KindStagnation    Kind = "stagnation"
)

// DecompositionSubKind narrows a KindDecomposition error.
type DecompositionSubKind string

const (
	SubKindMaxDepth              DecompositionSubKind = "max_depth"
	SubKindCyclic                DecompositionSubKind = "cyclic"
	SubKindInsufficientChildren  DecompositionSubKind = "insufficient_children"
	SubKindTooManyChildren       DecompositionSubKind = "too_many_children"
	SubKindEmptyChild            DecompositionSubKind = "empty_child"
	SubKindParseFailure          DecompositionSubKind = "parse_failure"
	SubKindProcessingError       DecompositionSubKind = "processing_error"
)

// Standard sentinel errors for comparison using errors.Is().
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInvalidInput      = errors.New("invalid input")
	ErrMissingConfig     = errors.New("missing required configuration")
	ErrInconsistentConfig = errors.New("inconsistent configuration")
	ErrAlreadyTerminal   = errors.New("session already in a terminal state")
	ErrTimeout           = errors.New("operation timeout")
	ErrContextCanceled   = errors.New("context canceled")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
	ErrConnectionFailed  = errors.New("connection failed")
	ErrCircuitOpen       = errors.New("circuit breaker open")
	ErrNoValidCheckpoint = errors.New("no valid checkpoint")
	ErrCyclicDecomposition = errors.New("cyclic decomposition")
	ErrMaxDepthReached   = errors.New("maximum depth reached")
	ErrStagnation        = errors.New("routing stagnation at frontier tier")
)

// Error is the structured error every component returns. It implements
// Unwrap so callers can still use errors.Is/As against the sentinels
// above or a wrapped provider/transport error.
type Error struct {
	Op      string // operation that failed, e.g. "checkpoint.Load"
	Kind    Kind
	SubKind DecompositionSubKind // only meaningful when Kind == KindDecomposition
	ID      string               // optional id of the entity involved
	Message string
	Err     error
	Retriable bool
}

func (e *Error) Error() string {
	prefix := e.Op
	if prefix == "" {
		prefix = string(e.Kind)
	}
	if e.ID != "" {
		prefix = fmt.Sprintf("%s [%s]", prefix, e.ID)
	}
	if e.Message != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", prefix, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	}
	return fmt.Sprintf("%s error", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetriable reports whether a retry of the failed operation could
// plausibly succeed. Non-retriable kinds (auth, validation, decomposition,
// stagnation) are surfaced immediately per spec §5/§7.
func (e *Error) IsRetriable() bool {
	if e.Retriable {
		return true
	}
	switch e.Kind {
	case KindConnection, KindTimeout:
		return true
	default:
		return false
	}
}

// New builds a structured Error.
func New(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Newf builds a structured Error with a formatted message and no wrapped err.
func Newf(op string, kind Kind, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithID attaches the entity id involved and returns the same error for chaining.
func (e *Error) WithID(id string) *Error {
	e.ID = id
	return e
}

// WithSubKind attaches a decomposition sub-kind and returns the same error for chaining.
func (e *Error) WithSubKind(sk DecompositionSubKind) *Error {
	e.SubKind = sk
	return e
}

// KindOf extracts the Kind from err if it (or something it wraps) is an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsRetriable reports whether err is retriable: either an *Error marked
// retriable/of a retriable kind, or one of the bare sentinel connection/
// timeout errors used by lower layers before they get wrapped.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.IsRetriable()
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrConnectionFailed)
}

// IsNotFound reports whether err represents a "not found" condition.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	k, ok := KindOf(err)
	return ok && k == KindTool && errors.Is(err, ErrNotFound)
}

// IsStagnation reports whether err signals routing stagnation at Frontier.
func IsStagnation(err error) bool {
	if errors.Is(err, ErrStagnation) {
		return true
	}
	k, ok := KindOf(err)
	return ok && k == KindStagnation
}
