package editor

import (
	"errors"

	"github.com/goliatone/go-mdsync/internal/commands"
	"github.com/goliatone/go-mdsync/internal/logging"
	"github.com/goliatone/go-mdsync/pkg/interfaces"
)

// CommandRegistry is the registration contract of a go-command registry.
type CommandRegistry interface {
	RegisterCommand(handler any) error
}

// HandlerSet groups the editor handlers bound to one session.
type HandlerSet struct {
	Submit   *commands.Handler[SubmitOperationCommand]
	Undo     *commands.Handler[UndoCommand]
	Redo     *commands.Handler[RedoCommand]
	External *commands.Handler[ExternalChangeCommand]
}

// Option customises handler construction.
type Option func(*options)

type options struct {
	submit   []commands.HandlerOption[SubmitOperationCommand]
	undo     []commands.HandlerOption[UndoCommand]
	redo     []commands.HandlerOption[RedoCommand]
	external []commands.HandlerOption[ExternalChangeCommand]
}

// WithSubmitOptions forwards options to the submit handler.
func WithSubmitOptions(opts ...commands.HandlerOption[SubmitOperationCommand]) Option {
	return func(o *options) { o.submit = append(o.submit, opts...) }
}

// WithUndoOptions forwards options to the undo handler.
func WithUndoOptions(opts ...commands.HandlerOption[UndoCommand]) Option {
	return func(o *options) { o.undo = append(o.undo, opts...) }
}

// WithRedoOptions forwards options to the redo handler.
func WithRedoOptions(opts ...commands.HandlerOption[RedoCommand]) Option {
	return func(o *options) { o.redo = append(o.redo, opts...) }
}

// WithExternalOptions forwards options to the external change handler.
func WithExternalOptions(opts ...commands.HandlerOption[ExternalChangeCommand]) Option {
	return func(o *options) { o.external = append(o.external, opts...) }
}

// RegisterEditorCommands builds the editor handlers for session and registers
// them when reg is not nil.
func RegisterEditorCommands(reg CommandRegistry, session Session, provider interfaces.LoggerProvider, opts ...Option) (*HandlerSet, error) {
	if session == nil {
		return nil, errors.New("editor command registration: session is nil")
	}
	cfg := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	logger := logging.CommandLogger(provider, "editor")
	set := &HandlerSet{
		Submit:   NewSubmitOperationHandler(session, logger, cfg.submit...),
		Undo:     NewUndoHandler(session, logger, cfg.undo...),
		Redo:     NewRedoHandler(session, logger, cfg.redo...),
		External: NewExternalChangeHandler(session, logger, cfg.external...),
	}
	if reg != nil {
		for _, handler := range []any{set.Submit, set.Undo, set.Redo, set.External} {
			if err := reg.RegisterCommand(handler); err != nil {
				return nil, err
			}
		}
	}
	return set, nil
}
