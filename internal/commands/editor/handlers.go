package editor

import (
	"context"
	"errors"

	command "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-mdsync/internal/commands"
	"github.com/goliatone/go-mdsync/internal/controller"
	"github.com/goliatone/go-mdsync/internal/history"
	"github.com/goliatone/go-mdsync/internal/logging"
	"github.com/goliatone/go-mdsync/internal/ops"
	"github.com/goliatone/go-mdsync/pkg/interfaces"
)

const (
	submitOperation   = "editor.submit_operation"
	undoOperation     = "editor.undo"
	redoOperation     = "editor.redo"
	externalOperation = "editor.external_change"
)

// Session is the part of a controller the editor commands drive.
type Session interface {
	EnqueueWithSelection(op ops.Operation, selection *history.Selection) *controller.Pending
	EnqueueUndo() *controller.Pending
	EnqueueRedo() *controller.Pending
	ExternalChange(text string, base int64) *controller.Pending
}

var _ Session = (*controller.Controller)(nil)

var (
	_ command.Commander[SubmitOperationCommand] = (*commands.Handler[SubmitOperationCommand])(nil)
	_ command.Commander[UndoCommand]            = (*commands.Handler[UndoCommand])(nil)
	_ command.Commander[RedoCommand]            = (*commands.Handler[RedoCommand])(nil)
	_ command.Commander[ExternalChangeCommand]  = (*commands.Handler[ExternalChangeCommand])(nil)
)

// Queue hands the operation to session unless that already happened. A
// transport queues in read order and executes the returned command later, so
// requests arriving together share a pass.
func (cmd SubmitOperationCommand) Queue(session Session) SubmitOperationCommand {
	if cmd.Pending == nil {
		op := cmd.Operation
		if cmd.BaseVersion > 0 {
			op = op.At(cmd.BaseVersion)
		}
		cmd.Pending = session.EnqueueWithSelection(op, cmd.Selection)
	}
	return cmd
}

// Queue hands the undo step to session unless that already happened.
func (cmd UndoCommand) Queue(session Session) UndoCommand {
	if cmd.Pending == nil {
		cmd.Pending = session.EnqueueUndo()
	}
	return cmd
}

// Queue hands the redo step to session unless that already happened.
func (cmd RedoCommand) Queue(session Session) RedoCommand {
	if cmd.Pending == nil {
		cmd.Pending = session.EnqueueRedo()
	}
	return cmd
}

// Queue hands the text to session unless that already happened.
func (cmd ExternalChangeCommand) Queue(session Session) ExternalChangeCommand {
	if cmd.Pending == nil {
		cmd.Pending = session.ExternalChange(cmd.Text, cmd.BaseVersion)
	}
	return cmd
}

// NewSubmitOperationHandler queues operations on session and waits for the
// version that includes them.
func NewSubmitOperationHandler(session Session, logger interfaces.Logger, opts ...commands.HandlerOption[SubmitOperationCommand]) *commands.Handler[SubmitOperationCommand] {
	exec := func(ctx context.Context, msg SubmitOperationCommand) error {
		version, err := msg.Queue(session).Pending.Wait(ctx)
		if err != nil {
			return classify(err)
		}
		deliver(msg.Result, msg.RequestID, version)
		return nil
	}
	base := []commands.HandlerOption[SubmitOperationCommand]{
		commands.WithLogger[SubmitOperationCommand](orNoOp(logger)),
		commands.WithOperation[SubmitOperationCommand](submitOperation),
		commands.WithMessageFields(func(msg SubmitOperationCommand) map[string]any {
			fields := map[string]any{
				"op_kind":  string(msg.Operation.Kind),
				"op_count": msg.Operation.Count(),
			}
			if msg.RequestID != "" {
				fields["request_id"] = msg.RequestID
			}
			if msg.BaseVersion > 0 {
				fields["base_version"] = msg.BaseVersion
			}
			return fields
		}),
		commands.WithTelemetry(commands.DefaultTelemetry[SubmitOperationCommand](orNoOp(logger))),
	}
	return commands.NewHandler(exec, append(base, opts...)...)
}

// NewUndoHandler queues an undo step on session.
func NewUndoHandler(session Session, logger interfaces.Logger, opts ...commands.HandlerOption[UndoCommand]) *commands.Handler[UndoCommand] {
	exec := func(ctx context.Context, msg UndoCommand) error {
		version, err := msg.Queue(session).Pending.Wait(ctx)
		if err != nil {
			return classify(err)
		}
		deliver(msg.Result, msg.RequestID, version)
		return nil
	}
	base := []commands.HandlerOption[UndoCommand]{
		commands.WithLogger[UndoCommand](orNoOp(logger)),
		commands.WithOperation[UndoCommand](undoOperation),
		commands.WithTelemetry(commands.DefaultTelemetry[UndoCommand](orNoOp(logger))),
	}
	return commands.NewHandler(exec, append(base, opts...)...)
}

// NewRedoHandler queues a redo step on session.
func NewRedoHandler(session Session, logger interfaces.Logger, opts ...commands.HandlerOption[RedoCommand]) *commands.Handler[RedoCommand] {
	exec := func(ctx context.Context, msg RedoCommand) error {
		version, err := msg.Queue(session).Pending.Wait(ctx)
		if err != nil {
			return classify(err)
		}
		deliver(msg.Result, msg.RequestID, version)
		return nil
	}
	base := []commands.HandlerOption[RedoCommand]{
		commands.WithLogger[RedoCommand](orNoOp(logger)),
		commands.WithOperation[RedoCommand](redoOperation),
		commands.WithTelemetry(commands.DefaultTelemetry[RedoCommand](orNoOp(logger))),
	}
	return commands.NewHandler(exec, append(base, opts...)...)
}

// NewExternalChangeHandler hands a new source text to session.
func NewExternalChangeHandler(session Session, logger interfaces.Logger, opts ...commands.HandlerOption[ExternalChangeCommand]) *commands.Handler[ExternalChangeCommand] {
	exec := func(ctx context.Context, msg ExternalChangeCommand) error {
		version, err := msg.Queue(session).Pending.Wait(ctx)
		if err != nil {
			return classify(err)
		}
		deliver(msg.Result, msg.RequestID, version)
		return nil
	}
	base := []commands.HandlerOption[ExternalChangeCommand]{
		commands.WithLogger[ExternalChangeCommand](orNoOp(logger)),
		commands.WithOperation[ExternalChangeCommand](externalOperation),
		commands.WithMessageFields(func(msg ExternalChangeCommand) map[string]any {
			return map[string]any{"text_bytes": len(msg.Text), "base_version": msg.BaseVersion}
		}),
		commands.WithTelemetry(commands.DefaultTelemetry[ExternalChangeCommand](orNoOp(logger))),
	}
	return commands.NewHandler(exec, append(base, opts...)...)
}

type classification struct {
	target   error
	category goerrors.Category
	message  string
	code     string
}

var classifications = []classification{
	{controller.ErrStaleOperation, goerrors.CategoryConflict, "operation is stale", "STALE_OPERATION"},
	{controller.ErrInvalidOperation, goerrors.CategoryBadInput, "operation is invalid", "INVALID_OPERATION"},
	{controller.ErrConflict, goerrors.CategoryConflict, "source change conflicts with view edits", "SOURCE_CONFLICT"},
	{controller.ErrSuperseded, goerrors.CategoryConflict, "source change superseded", "SOURCE_SUPERSEDED"},
	{controller.ErrNothingToUndo, goerrors.CategoryOperation, "nothing to undo", "NOTHING_TO_UNDO"},
	{controller.ErrNothingToRedo, goerrors.CategoryOperation, "nothing to redo", "NOTHING_TO_REDO"},
	{controller.ErrQueueFull, goerrors.CategoryRateLimit, "edit queue is full", "QUEUE_FULL"},
	{controller.ErrClosed, goerrors.CategoryOperation, "document is closed", "DOCUMENT_CLOSED"},
	{controller.ErrSaveFailed, goerrors.CategoryExternal, "host could not save the document", "SAVE_FAILED"},
	{controller.ErrSerializationInvariant, goerrors.CategoryInternal, "serialized text did not round-trip", "SERIALIZATION_INVARIANT"},
}

// classify maps controller errors onto go-errors categories. Context errors
// are left for the handler to tag.
func classify(err error) error {
	for _, c := range classifications {
		if errors.Is(err, c.target) {
			return commands.Tag(err, c.category, c.message, c.code)
		}
	}
	return err
}

func deliver(sink ResultSink, requestID string, version int64) {
	if sink != nil {
		sink(Outcome{RequestID: requestID, Version: version})
	}
}

func orNoOp(logger interfaces.Logger) interfaces.Logger {
	if logger == nil {
		return logging.NoOp()
	}
	return logger
}
