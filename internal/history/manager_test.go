package history_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-mdsync/internal/history"
	"github.com/goliatone/go-mdsync/internal/ops"
	"github.com/goliatone/go-mdsync/internal/syntax"
)

// document is a minimal live document replaying operations through the engine.
type document struct {
	engine  *ops.Engine
	tree    *syntax.Node
	version int64
}

func newDocument() *document {
	return &document{
		engine: ops.NewEngine(),
		tree:   syntax.New(syntax.KindDocument, syntax.NewParagraph(syntax.NewText("Hello"))),
	}
}

func (d *document) apply(op ops.Operation) (ops.Operation, int64, error) {
	res, err := d.engine.Apply(d.tree, op)
	if err != nil {
		return ops.Operation{}, 0, err
	}
	d.tree = res.Tree
	d.version++
	return res.Inverse, d.version, nil
}

func (d *document) edit(t *testing.T, h *history.Manager, op ops.Operation) {
	t.Helper()
	inverse, version, err := d.apply(op)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	h.Push(history.Entry{Version: version, Forward: op, Inverse: inverse})
}

func TestUndoRedoRestoresTrees(t *testing.T) {
	doc := newDocument()
	h := history.NewManager(10)
	original := doc.tree

	doc.edit(t, h, ops.TextEdit(syntax.Path{0, 0}, 5, 5, " world"))
	edited := doc.tree

	entry, err := h.Undo(doc.apply)
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if diff := cmp.Diff(original, doc.tree); diff != "" {
		t.Fatalf("undo did not restore tree (-want +got):\n%s", diff)
	}
	if entry.Version != 2 {
		t.Fatalf("expected undo to commit version 2, got %d", entry.Version)
	}
	if !h.CanRedo() || h.CanUndo() {
		t.Fatal("expected entry to move to the redo stack")
	}

	if _, err := h.Redo(doc.apply); err != nil {
		t.Fatalf("redo: %v", err)
	}
	if diff := cmp.Diff(edited, doc.tree); diff != "" {
		t.Fatalf("redo did not restore tree (-want +got):\n%s", diff)
	}

	if _, err := h.Undo(doc.apply); err != nil {
		t.Fatalf("second undo: %v", err)
	}
	if diff := cmp.Diff(original, doc.tree); diff != "" {
		t.Fatalf("second undo did not restore tree (-want +got):\n%s", diff)
	}
}

func TestEmptyStacks(t *testing.T) {
	h := history.NewManager(0)
	if _, err := h.Undo(nil); !errors.Is(err, history.ErrNothingToUndo) {
		t.Fatalf("expected ErrNothingToUndo, got %v", err)
	}
	if _, err := h.Redo(nil); !errors.Is(err, history.ErrNothingToRedo) {
		t.Fatalf("expected ErrNothingToRedo, got %v", err)
	}
}

func TestPushClearsRedo(t *testing.T) {
	doc := newDocument()
	h := history.NewManager(10)

	doc.edit(t, h, ops.TextEdit(syntax.Path{0, 0}, 0, 0, "A"))
	if _, err := h.Undo(doc.apply); err != nil {
		t.Fatalf("undo: %v", err)
	}
	doc.edit(t, h, ops.TextEdit(syntax.Path{0, 0}, 0, 0, "B"))

	if h.CanRedo() {
		t.Fatal("expected new edit to clear redo stack")
	}
}

func TestMaxEntriesEvictsOldest(t *testing.T) {
	doc := newDocument()
	h := history.NewManager(2)

	for _, s := range []string{"a", "b", "c"} {
		doc.edit(t, h, ops.TextEdit(syntax.Path{0, 0}, 0, 0, s))
	}
	if undo, _ := h.Len(); undo != 2 {
		t.Fatalf("expected 2 entries, got %d", undo)
	}
	top, _ := h.Peek()
	if top.Version != 3 {
		t.Fatalf("expected newest entry on top, got version %d", top.Version)
	}
}

func TestFailedReplayDropsEntry(t *testing.T) {
	doc := newDocument()
	h := history.NewManager(10)
	doc.edit(t, h, ops.TextEdit(syntax.Path{0, 0}, 0, 0, "A"))

	boom := errors.New("boom")
	_, err := h.Undo(func(ops.Operation) (ops.Operation, int64, error) {
		return ops.Operation{}, 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected replay error, got %v", err)
	}
	if h.CanUndo() || h.CanRedo() {
		t.Fatal("expected failing entry to be dropped")
	}
}

func TestGroupProducesSingleEntry(t *testing.T) {
	doc := newDocument()
	h := history.NewManager(10)
	original := doc.tree

	h.BeginGroup()
	doc.edit(t, h, ops.TextEdit(syntax.Path{0, 0}, 5, 5, "!"))
	doc.edit(t, h, ops.Insert(syntax.Path{0}, 1, syntax.New(syntax.KindStrong, syntax.NewText("bold"))))
	entry, ok := h.EndGroup(7)
	if !ok {
		t.Fatal("expected group entry")
	}
	if entry.Version != 7 || entry.Forward.Kind != ops.KindBatch || entry.Forward.Count() != 2 {
		t.Fatalf("unexpected group entry %+v", entry)
	}
	if undo, _ := h.Len(); undo != 1 {
		t.Fatalf("expected one undo entry, got %d", undo)
	}

	if _, err := h.Undo(doc.apply); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if diff := cmp.Diff(original, doc.tree); diff != "" {
		t.Fatalf("group undo did not restore tree (-want +got):\n%s", diff)
	}
}

func TestEmptyAndCancelledGroups(t *testing.T) {
	h := history.NewManager(10)

	h.BeginGroup()
	if _, ok := h.EndGroup(1); ok {
		t.Fatal("expected empty group to push nothing")
	}

	h.BeginGroup()
	h.Push(history.Entry{Version: 1, Forward: ops.Delete(syntax.Path{}, 0)})
	h.CancelGroup()
	if h.CanUndo() || h.Grouping() {
		t.Fatal("expected cancelled group to be discarded")
	}
}
