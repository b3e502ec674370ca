// Package mdsync keeps a Markdown file and a structured editing surface in
// step. A Module shares the parser, serializer and operation engine across the
// documents it opens; each Document runs its own synchronization controller.
package mdsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-mdsync/internal/bridge"
	"github.com/goliatone/go-mdsync/internal/controller"
	"github.com/goliatone/go-mdsync/internal/di"
	"github.com/goliatone/go-mdsync/internal/history"
	"github.com/goliatone/go-mdsync/internal/host"
	"github.com/goliatone/go-mdsync/internal/identity"
	"github.com/goliatone/go-mdsync/internal/logging"
	"github.com/goliatone/go-mdsync/internal/markdown"
	"github.com/goliatone/go-mdsync/internal/ops"
	"github.com/goliatone/go-mdsync/internal/syntax"
	"github.com/goliatone/go-mdsync/internal/view"
)

// Operation is a structured edit submitted by a presentation surface.
type Operation = ops.Operation

// Delta is the incremental view update published after every version.
type Delta = view.Delta

// ViewModel is a projected document.
type ViewModel = view.Model

// Node is a syntax tree node.
type Node = syntax.Node

// Path addresses a node by child indices from the root.
type Path = syntax.Path

// Selection is the caret or range reported with an edit.
type Selection = history.Selection

// ViewListener receives deltas and failures from a document.
type ViewListener = controller.ViewListener

// ListenerFuncs adapts plain functions to ViewListener.
type ListenerFuncs = controller.ListenerFuncs

// ErrorKind classifies failures reported to listeners.
type ErrorKind = controller.ErrorKind

// Stats are the counters of one document.
type Stats = controller.Stats

// Sentinel errors returned by document operations.
var (
	ErrStaleOperation         = controller.ErrStaleOperation
	ErrInvalidOperation       = controller.ErrInvalidOperation
	ErrSerializationInvariant = controller.ErrSerializationInvariant
	ErrSaveFailed             = controller.ErrSaveFailed
	ErrConflict               = controller.ErrConflict
	ErrNothingToUndo          = controller.ErrNothingToUndo
	ErrNothingToRedo          = controller.ErrNothingToRedo
	ErrClosed                 = controller.ErrClosed
	ErrQueueFull              = controller.ErrQueueFull
)

// Module wires shared components.
type Module struct {
	container *di.Container
}

// New validates cfg and builds a module.
func New(cfg Config, opts ...di.Option) (*Module, error) {
	container, err := di.NewContainer(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Module{container: container}, nil
}

// Container exposes the underlying DI container for advanced integrations.
func (m *Module) Container() *di.Container {
	return m.container
}

// Document is a controller bound to a file.
type Document struct {
	*controller.Controller
	file *host.File
}

// File returns the host storing the document.
func (d *Document) File() *host.File {
	return d.file
}

// Watch forwards changes other programs make to the file until ctx ends.
func (d *Document) Watch(ctx context.Context) error {
	err := d.file.Watch(ctx, func(text string) {
		d.OnExternalTextChange(text)
	})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// Open loads the file at path and starts a controller for it. A nil listener
// discards updates.
func (m *Module) Open(ctx context.Context, path string, listener ViewListener) (*Document, error) {
	file, err := m.container.NewFileHost(path)
	if err != nil {
		return nil, err
	}
	text, err := file.Load(ctx)
	if err != nil {
		return nil, err
	}
	id := identity.DocumentUUID(file.Path())
	ctrl := controller.New(text, file, listener, m.container.ControllerConfig(),
		m.container.ControllerOptions(file.Path(), id)...)
	file.OnExternalChange(func(text string) {
		ctrl.OnExternalTextChange(text)
	})
	ctrl.Start()

	logging.ModuleLogger(m.container.LoggerProvider(), "mdsync").Info("document.opened",
		"document_path", file.Path(),
		"document_id", id.String(),
		"bytes", len(text),
	)
	return &Document{Controller: ctrl, file: file}, nil
}

// Serve opens path behind a websocket bridge. The returned server is the
// document's listener and is ready to be mounted on an HTTP mux.
func (m *Module) Serve(ctx context.Context, path string, opts ...bridge.Option) (*Document, *bridge.Server, error) {
	server := m.container.NewBridge(opts...)
	doc, err := m.Open(ctx, path, server)
	if err != nil {
		return nil, nil, err
	}
	if err := server.Bind(doc.Controller); err != nil {
		_ = doc.Close(ctx)
		return nil, nil, fmt.Errorf("mdsync: bind bridge: %w", err)
	}
	return doc, server, nil
}

// Parse parses text with the module parser.
func (m *Module) Parse(text string) (*Node, markdown.Diagnostics) {
	return m.container.Parser().Parse(text)
}

// Project parses text and projects it into a view model at version 1.
func (m *Module) Project(text string) (*ViewModel, markdown.Diagnostics) {
	tree, diags := m.Parse(text)
	model := view.Project(tree)
	model.Version = 1
	return model, diags
}

// Format returns the canonical form of text.
func (m *Module) Format(text string) (string, error) {
	tree, _ := m.Parse(text)
	canonical := m.container.Serializer().Serialize(tree)
	if err := markdown.VerifyRoundTrip(m.container.Parser(), canonical); err != nil {
		return "", err
	}
	return canonical, nil
}
