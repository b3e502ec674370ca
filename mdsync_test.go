package mdsync_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	mdsync "github.com/goliatone/go-mdsync"
	"github.com/goliatone/go-mdsync/internal/ops"
	"github.com/goliatone/go-mdsync/internal/syntax"
	"github.com/goliatone/go-mdsync/internal/textpatch"
)

func newModule(t *testing.T) *mdsync.Module {
	t.Helper()
	module, err := mdsync.New(mdsync.DefaultConfig())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return module
}

func writeFile(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.md")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestOpenedDocumentSavesViewEdits(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	path := writeFile(t, "# Notes\n\n- one")

	doc, err := newModule(t).Open(ctx, path, nil)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer doc.Close(ctx)

	item := syntax.NewParagraph(syntax.NewText("two"))
	entry := syntax.New(syntax.KindListItem, item)
	version, err := doc.SubmitOperation(ctx, ops.Insert(syntax.Path{1}, 1, entry))
	if err != nil {
		t.Fatalf("SubmitOperation returned error: %v", err)
	}
	if version != 2 {
		t.Fatalf("expected version 2, got %d", version)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "# Notes\n\n- one\n- two" {
		t.Fatalf("unexpected file contents %q", data)
	}

	if _, err := doc.Undo(ctx); err != nil {
		t.Fatalf("Undo returned error: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "# Notes\n\n- one" {
		t.Fatalf("unexpected file contents after undo %q", data)
	}
	if doc.Document().ID == uuid.Nil {
		t.Fatal("expected a document id")
	}
}

func TestWatchForwardsForeignEdits(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	path := writeFile(t, "first")

	doc, err := newModule(t).Open(ctx, path, nil)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer doc.Close(context.Background())

	watchCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() { _ = doc.Watch(watchCtx) }()

	if err := os.WriteFile(path, []byte("second"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	for doc.CurrentText() != "second" {
		select {
		case <-ctx.Done():
			t.Fatalf("foreign edit not picked up, text %q", doc.CurrentText())
		case <-time.After(10 * time.Millisecond):
		}
	}
	if doc.Version() != 2 {
		t.Fatalf("expected version 2, got %d", doc.Version())
	}
}

func TestSaveDoesNotOverwriteForeignEdits(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	path := writeFile(t, "first")

	doc, err := newModule(t).Open(ctx, path, nil)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer doc.Close(context.Background())

	if err := os.WriteFile(path, []byte("second"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err = doc.SubmitOperation(ctx, ops.TextEdit(syntax.Path{0, 0}, 5, 5, "!"))
	if !errors.Is(err, mdsync.ErrSaveFailed) || !errors.Is(err, textpatch.ErrConflict) {
		t.Fatalf("expected a save conflict, got %v", err)
	}
	if data, _ := os.ReadFile(path); string(data) != "second" {
		t.Fatalf("expected foreign text on disk, got %q", data)
	}
	for doc.CurrentText() != "second" {
		select {
		case <-ctx.Done():
			t.Fatalf("foreign edit not picked up, text %q", doc.CurrentText())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestFormatAndProject(t *testing.T) {
	module := newModule(t)
	canonical, err := module.Format("Title\n=====\n\n* a\n* b\n")
	if err != nil {
		t.Fatalf("Format returned error: %v", err)
	}
	if canonical != "# Title\n\n- a\n- b" {
		t.Fatalf("unexpected canonical text %q", canonical)
	}

	model, diags := module.Project(canonical)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics %v", diags)
	}
	if model.Version != 1 || model.Root.Children[0].Attrs.Tag != "h1" {
		t.Fatalf("unexpected model %+v", model.Root.Children[0])
	}
}
