package ops

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-mdsync/internal/syntax"
)

var (
	// ErrInvalidOperation marks an operation that can never apply: bad
	// shape, out of range positions or a schema violation.
	ErrInvalidOperation = errors.New("ops: invalid operation")
	// ErrStaleOperation marks an operation computed against a tree that has
	// since changed underneath it.
	ErrStaleOperation = errors.New("ops: stale operation")
)

// Error describes why an operation was rejected. Err is one of the package
// sentinels so callers can branch with errors.Is.
type Error struct {
	Err    error
	Op     Kind
	Path   syntax.Path
	Index  int
	Detail string
	// Step is the position inside a batch, -1 outside one.
	Step int
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%v: %s at %s", e.Err, e.Op, e.Path)
	if e.Op != KindTextEdit && e.Op != KindBatch {
		msg += fmt.Sprintf("[%d]", e.Index)
	}
	if e.Step >= 0 {
		msg += fmt.Sprintf(" (step %d)", e.Step)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsStale reports whether err was caused by a stale operation.
func IsStale(err error) bool {
	return errors.Is(err, ErrStaleOperation)
}

// IsInvalid reports whether err was caused by an invalid operation.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

func invalid(op Operation, detail string, args ...any) *Error {
	return newError(ErrInvalidOperation, op, detail, args...)
}

func stale(op Operation, detail string, args ...any) *Error {
	return newError(ErrStaleOperation, op, detail, args...)
}

func newError(kind error, op Operation, detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{
		Err:    kind,
		Op:     op.Kind,
		Path:   op.Path.Clone(),
		Index:  op.Index,
		Detail: detail,
		Step:   -1,
	}
}
