package controller

import (
	"context"

	"github.com/goliatone/go-mdsync/internal/textpatch"
	"github.com/goliatone/go-mdsync/internal/view"
)

// TextHost owns the Markdown source. SaveText receives the full new text and
// the character patch from the previously saved text.
type TextHost interface {
	SaveText(ctx context.Context, text string, patch textpatch.Patch) error
}

// ViewListener receives presentation updates. Calls are made from the
// controller worker and must not block on the controller.
type ViewListener interface {
	OnViewModelUpdated(delta view.Delta)
	OnError(kind ErrorKind, detail string)
}

// ListenerFuncs adapts plain functions to ViewListener. Nil fields are
// ignored.
type ListenerFuncs struct {
	Updated func(delta view.Delta)
	Failed  func(kind ErrorKind, detail string)
}

func (l ListenerFuncs) OnViewModelUpdated(delta view.Delta) {
	if l.Updated != nil {
		l.Updated(delta)
	}
}

func (l ListenerFuncs) OnError(kind ErrorKind, detail string) {
	if l.Failed != nil {
		l.Failed(kind, detail)
	}
}

// HostFunc adapts a function to TextHost.
type HostFunc func(ctx context.Context, text string, patch textpatch.Patch) error

func (f HostFunc) SaveText(ctx context.Context, text string, patch textpatch.Patch) error {
	return f(ctx, text, patch)
}

type discardHost struct{}

func (discardHost) SaveText(context.Context, string, textpatch.Patch) error { return nil }

type discardListener struct{}

func (discardListener) OnViewModelUpdated(view.Delta) {}
func (discardListener) OnError(ErrorKind, string)     {}
