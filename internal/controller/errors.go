package controller

import (
	"errors"

	"github.com/goliatone/go-mdsync/internal/history"
	"github.com/goliatone/go-mdsync/internal/markdown"
	"github.com/goliatone/go-mdsync/internal/ops"
	"github.com/goliatone/go-mdsync/internal/textpatch"
)

var (
	// ErrSerializationInvariant marks a sync pass whose serialized text did
	// not survive a parse round trip. The pass is rejected and the tree is
	// rebuilt from the current text.
	ErrSerializationInvariant = errors.New("controller: serialization invariant violated")
	// ErrSaveFailed marks a pass rejected because the host could not store
	// the new text.
	ErrSaveFailed = errors.New("controller: save failed")
	// ErrClosed is returned for work submitted to, or pending in, a closed
	// controller.
	ErrClosed = errors.New("controller: closed")
	// ErrQueueFull is returned when the view queue is at capacity.
	ErrQueueFull = errors.New("controller: queue full")
	// ErrSuperseded resolves an external change replaced by a newer one
	// before it was processed.
	ErrSuperseded = errors.New("controller: superseded by a newer source change")

	ErrInvalidOperation = ops.ErrInvalidOperation
	ErrStaleOperation   = ops.ErrStaleOperation
	ErrNothingToUndo    = history.ErrNothingToUndo
	ErrNothingToRedo    = history.ErrNothingToRedo
	ErrConflict         = textpatch.ErrConflict
)

// ErrorKind classifies errors reported to the view listener.
type ErrorKind string

const (
	ErrorInvalidOperation       ErrorKind = "invalid_operation"
	ErrorStaleOperation         ErrorKind = "stale_operation"
	ErrorSerializationInvariant ErrorKind = "serialization_invariant"
	ErrorSaveFailed             ErrorKind = "save_failed"
	ErrorConflict               ErrorKind = "conflict"
	ErrorNothingToUndo          ErrorKind = "nothing_to_undo"
	ErrorNothingToRedo          ErrorKind = "nothing_to_redo"
	ErrorClosed                 ErrorKind = "closed"
	ErrorInternal               ErrorKind = "internal"
)

// KindOf maps err onto the listener taxonomy.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStaleOperation):
		return ErrorStaleOperation
	case errors.Is(err, ErrInvalidOperation):
		return ErrorInvalidOperation
	case errors.Is(err, ErrSerializationInvariant), errors.Is(err, markdown.ErrRoundTrip):
		return ErrorSerializationInvariant
	case errors.Is(err, ErrSaveFailed):
		return ErrorSaveFailed
	case errors.Is(err, ErrConflict):
		return ErrorConflict
	case errors.Is(err, ErrNothingToUndo):
		return ErrorNothingToUndo
	case errors.Is(err, ErrNothingToRedo):
		return ErrorNothingToRedo
	case errors.Is(err, ErrClosed):
		return ErrorClosed
	default:
		return ErrorInternal
	}
}
