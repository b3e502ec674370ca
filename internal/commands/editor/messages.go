// Package editor exposes the synchronization controller as go-command
// messages so transports can submit edits through validated handlers.
package editor

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-mdsync/internal/controller"
	"github.com/goliatone/go-mdsync/internal/history"
	"github.com/goliatone/go-mdsync/internal/ops"
)

const (
	submitOperationMessageType = "mdsync.editor.submit_operation"
	undoMessageType            = "mdsync.editor.undo"
	redoMessageType            = "mdsync.editor.redo"
	externalChangeMessageType  = "mdsync.editor.external_change"
)

const maxRequestIDLength = 128

// Outcome reports the version that includes an accepted request.
type Outcome struct {
	RequestID string `json:"request_id,omitempty"`
	Version   int64  `json:"version"`
}

// ResultSink receives the outcome of an accepted command.
type ResultSink func(Outcome)

// SubmitOperationCommand queues a structured edit issued by the presentation.
type SubmitOperationCommand struct {
	RequestID string `json:"request_id,omitempty"`
	// BaseVersion is the version the presentation saw when it built the
	// operation. Zero means unknown.
	BaseVersion int64              `json:"base_version,omitempty"`
	Operation   ops.Operation      `json:"operation"`
	Selection   *history.Selection `json:"selection,omitempty"`
	Result      ResultSink         `json:"-"`
	// Pending is set once the command has been queued; see Queue.
	Pending *controller.Pending `json:"-"`
}

// Type implements command.Message.
func (SubmitOperationCommand) Type() string { return submitOperationMessageType }

// Validate checks the envelope and the operation shape.
func (cmd SubmitOperationCommand) Validate() error {
	return validation.ValidateStruct(&cmd,
		validation.Field(&cmd.RequestID, validation.Length(0, maxRequestIDLength)),
		validation.Field(&cmd.BaseVersion, validation.Min(int64(0))),
		validation.Field(&cmd.Operation),
		validation.Field(&cmd.Selection, validation.By(validSelection)),
	)
}

// UndoCommand reverts the latest view edit.
type UndoCommand struct {
	RequestID string              `json:"request_id,omitempty"`
	Result    ResultSink          `json:"-"`
	Pending   *controller.Pending `json:"-"`
}

// Type implements command.Message.
func (UndoCommand) Type() string { return undoMessageType }

// Validate checks the request identifier.
func (cmd UndoCommand) Validate() error {
	return validation.ValidateStruct(&cmd,
		validation.Field(&cmd.RequestID, validation.Length(0, maxRequestIDLength)),
	)
}

// RedoCommand reapplies the latest undone edit.
type RedoCommand struct {
	RequestID string              `json:"request_id,omitempty"`
	Result    ResultSink          `json:"-"`
	Pending   *controller.Pending `json:"-"`
}

// Type implements command.Message.
func (RedoCommand) Type() string { return redoMessageType }

// Validate checks the request identifier.
func (cmd RedoCommand) Validate() error {
	return validation.ValidateStruct(&cmd,
		validation.Field(&cmd.RequestID, validation.Length(0, maxRequestIDLength)),
	)
}

// ExternalChangeCommand delivers a new source text from the host.
type ExternalChangeCommand struct {
	RequestID   string              `json:"request_id,omitempty"`
	Text        string              `json:"text"`
	BaseVersion int64               `json:"base_version,omitempty"`
	Result      ResultSink          `json:"-"`
	Pending     *controller.Pending `json:"-"`
}

// Type implements command.Message.
func (ExternalChangeCommand) Type() string { return externalChangeMessageType }

// Validate checks the envelope. Empty text is a valid document.
func (cmd ExternalChangeCommand) Validate() error {
	return validation.ValidateStruct(&cmd,
		validation.Field(&cmd.RequestID, validation.Length(0, maxRequestIDLength)),
		validation.Field(&cmd.BaseVersion, validation.Min(int64(0))),
		validation.Field(&cmd.Text, validation.By(func(value any) error {
			if strings.ContainsRune(value.(string), 0) {
				return errors.New("text must not contain NUL bytes")
			}
			return nil
		})),
	)
}

func validSelection(value any) error {
	sel, _ := value.(*history.Selection)
	if sel == nil {
		return nil
	}
	if sel.Start < 0 || sel.End < sel.Start {
		return errors.New("selection range is invalid")
	}
	return nil
}
