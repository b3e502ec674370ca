package ops_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/goliatone/go-mdsync/internal/markdown"
	"github.com/goliatone/go-mdsync/internal/ops"
	"github.com/goliatone/go-mdsync/internal/syntax"
)

func sample() *syntax.Node {
	return syntax.New(syntax.KindDocument,
		syntax.NewHeading(1, syntax.NewText("Title")),
		syntax.NewParagraph(
			syntax.NewText("Hello "),
			syntax.New(syntax.KindStrong, syntax.NewText("bold")),
		),
		syntax.NewList(false,
			syntax.New(syntax.KindListItem, syntax.NewParagraph(syntax.NewText("one"))),
			syntax.New(syntax.KindListItem, syntax.NewParagraph(syntax.NewText("two"))),
		),
	)
}

func TestTextEditHelloWorld(t *testing.T) {
	parser := markdown.NewGoldmarkParser(markdown.ParseOptions{})
	tree, _ := parser.Parse("Hello")

	res, err := ops.NewEngine().Apply(tree, ops.TextEdit(syntax.Path{0, 0}, 5, 5, " world"))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := markdown.Serialize(res.Tree); got != "Hello world" {
		t.Fatalf("expected %q, got %q", "Hello world", got)
	}
	if res.Tree.Children[0].ID != tree.Children[0].ID {
		t.Fatal("expected paragraph to keep its id")
	}
	if res.Inverse.Range != (ops.Range{Start: 5, End: 11}) || res.Inverse.Text != "" {
		t.Fatalf("unexpected inverse %+v", res.Inverse)
	}
}

func TestApplyThenInverseRestoresTree(t *testing.T) {
	cases := []struct {
		name string
		op   func(tree *syntax.Node) ops.Operation
	}{
		{"insert block", func(*syntax.Node) ops.Operation {
			return ops.Insert(syntax.Path{}, 1, syntax.NewCodeBlock("go", "fmt.Println()"))
		}},
		{"insert inline", func(*syntax.Node) ops.Operation {
			return ops.Insert(syntax.Path{1}, 2, syntax.NewLink("https://example.com", "", syntax.NewText("link")))
		}},
		{"delete list item", func(*syntax.Node) ops.Operation {
			return ops.Delete(syntax.Path{2}, 0)
		}},
		{"replace heading", func(*syntax.Node) ops.Operation {
			return ops.Replace(syntax.Path{}, 0, syntax.NewHeading(2, syntax.NewText("Other")))
		}},
		{"move block", func(*syntax.Node) ops.Operation {
			return ops.Move(syntax.Path{}, 0, syntax.Path{}, 2)
		}},
		{"move into item", func(*syntax.Node) ops.Operation {
			return ops.Move(syntax.Path{}, 0, syntax.Path{1, 1}, 0)
		}},
		{"text edit utf8", func(*syntax.Node) ops.Operation {
			return ops.TextEdit(syntax.Path{0, 0}, 0, 5, "Título")
		}},
		{"batch", func(tree *syntax.Node) ops.Operation {
			return ops.Batch(
				ops.TextEdit(syntax.Path{1, 0}, 0, 5, "Bye"),
				ops.Delete(syntax.Path{1}, 1),
				ops.Insert(syntax.Path{1}, 1, syntax.New(syntax.KindEmphasis, syntax.NewText("soft"))),
				ops.Move(syntax.Path{2}, 1, syntax.Path{2}, 0).Expect(tree.Children[2].Children[1].ID),
			)
		}},
	}

	engine := ops.NewEngine()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tree := sample()
			before := tree.Clone()

			res, err := engine.Apply(tree, tc.op(tree))
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			if diff := cmp.Diff(before, tree); diff != "" {
				t.Fatalf("input mutated (-want +got):\n%s", diff)
			}
			if err := syntax.Validate(res.Tree); err != nil {
				t.Fatalf("result invalid: %v", err)
			}

			undone, err := engine.Apply(res.Tree, res.Inverse)
			if err != nil {
				t.Fatalf("apply inverse: %v", err)
			}
			if diff := cmp.Diff(tree, undone.Tree); diff != "" {
				t.Fatalf("inverse did not restore tree (-want +got):\n%s", diff)
			}

			redone, err := engine.Apply(undone.Tree, undone.Inverse)
			if err != nil {
				t.Fatalf("apply inverse of inverse: %v", err)
			}
			if diff := cmp.Diff(res.Tree, redone.Tree); diff != "" {
				t.Fatalf("redo diverged (-want +got):\n%s", diff)
			}
		})
	}
}

func TestApplySharesUntouchedSubtrees(t *testing.T) {
	tree := sample()
	res, err := ops.NewEngine().Apply(tree, ops.TextEdit(syntax.Path{1, 0}, 0, 0, "Oh, "))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Tree == tree {
		t.Fatal("expected a new root")
	}
	if res.Tree.Children[0] != tree.Children[0] || res.Tree.Children[2] != tree.Children[2] {
		t.Fatal("expected untouched blocks to be shared")
	}
	if res.Tree.Children[1].Children[1] != tree.Children[1].Children[1] {
		t.Fatal("expected untouched inline sibling to be shared")
	}
	if res.Tree.Children[1] == tree.Children[1] {
		t.Fatal("expected edited paragraph to be copied")
	}
}

func TestInsertAllocatesMissingIDs(t *testing.T) {
	tree := sample()
	node := &syntax.Node{Kind: syntax.KindParagraph, Children: []*syntax.Node{{Kind: syntax.KindText, Literal: "x"}}}

	res, err := ops.NewEngine().Apply(tree, ops.Insert(syntax.Path{}, 0, node))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	inserted := res.Tree.Children[0]
	if inserted.ID == uuid.Nil || inserted.Children[0].ID == uuid.Nil {
		t.Fatal("expected ids to be allocated")
	}
	if node.ID != uuid.Nil {
		t.Fatal("expected caller node to stay untouched")
	}
	if res.Inverse.Target != inserted.ID {
		t.Fatal("expected inverse to target inserted node")
	}
}

func TestApplyRejectsInvalidOperations(t *testing.T) {
	tree := sample()
	cases := []struct {
		name string
		op   ops.Operation
	}{
		{"unknown kind", ops.Operation{Kind: "split"}},
		{"unresolved path", ops.Insert(syntax.Path{9}, 0, syntax.NewText("x"))},
		{"index out of range", ops.Delete(syntax.Path{}, 3)},
		{"negative index", ops.Insert(syntax.Path{}, -1, syntax.NewParagraph())},
		{"block in paragraph", ops.Insert(syntax.Path{1}, 0, syntax.NewParagraph())},
		{"inline in document", ops.Insert(syntax.Path{}, 0, syntax.NewText("x"))},
		{"paragraph in list", ops.Insert(syntax.Path{2}, 0, syntax.NewParagraph())},
		{"nested link", ops.Insert(syntax.Path{1}, 0, syntax.NewLink("a", "", syntax.NewLink("b", "")))},
		{"missing node", ops.Operation{Kind: ops.KindInsert, Path: syntax.Path{}}},
		{"insert document", ops.Insert(syntax.Path{}, 0, syntax.New(syntax.KindDocument))},
		{"heading level", ops.Insert(syntax.Path{}, 0, syntax.NewHeading(7))},
		{"duplicate id", ops.Insert(syntax.Path{}, 0, tree.Children[0])},
		{"children under leaf", ops.Insert(syntax.Path{0, 0}, 0, syntax.NewText("x"))},
		{"text edit on container", ops.TextEdit(syntax.Path{1}, 0, 0, "x")},
		{"text edit past end", ops.TextEdit(syntax.Path{0, 0}, 2, 9, "x")},
		{"text edit inverted", ops.TextEdit(syntax.Path{0, 0}, 3, 2, "x")},
		{"move to missing parent", ops.Move(syntax.Path{}, 0, syntax.Path{7}, 0)},
		{"move list item to document", ops.Move(syntax.Path{2}, 0, syntax.Path{}, 0)},
	}

	engine := ops.NewEngine()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Apply(tree, tc.op)
			if !errors.Is(err, ops.ErrInvalidOperation) {
				t.Fatalf("expected invalid operation, got %v", err)
			}
			var opErr *ops.Error
			if !errors.As(err, &opErr) || opErr.Op != tc.op.Kind {
				t.Fatalf("expected *ops.Error for %s, got %T", tc.op.Kind, err)
			}
		})
	}
}

func TestTextEditRejectsSplitRune(t *testing.T) {
	tree := syntax.New(syntax.KindDocument, syntax.NewParagraph(syntax.NewText("día")))
	_, err := ops.NewEngine().Apply(tree, ops.TextEdit(syntax.Path{0, 0}, 2, 3, "x"))
	if !ops.IsInvalid(err) {
		t.Fatalf("expected invalid operation, got %v", err)
	}
}

func TestTargetMismatchIsStale(t *testing.T) {
	parser := markdown.NewGoldmarkParser(markdown.ParseOptions{})
	before, _ := parser.Parse("A")
	target := before.Children[0].Children[0].ID

	// An external change inserted a sibling before the paragraph.
	after, _ := parser.Parse("B\n\nA")
	after.Children[1] = before.Children[0]

	engine := ops.NewEngine()
	_, err := engine.Apply(after, ops.TextEdit(syntax.Path{0, 0}, 1, 1, "!").Expect(target))
	if !errors.Is(err, ops.ErrStaleOperation) {
		t.Fatalf("expected stale operation, got %v", err)
	}
	var opErr *ops.Error
	if !errors.As(err, &opErr) || opErr.Path.String() != "/0/0" {
		t.Fatalf("expected error to carry path, got %v", err)
	}

	_, err = engine.Apply(after, ops.Delete(syntax.Path{}, 5).Expect(target))
	if !ops.IsStale(err) {
		t.Fatalf("expected guarded out-of-range delete to be stale, got %v", err)
	}
}

func TestBatchIsAtomic(t *testing.T) {
	tree := sample()
	before := tree.Clone()

	_, err := ops.NewEngine().Apply(tree, ops.Batch(
		ops.TextEdit(syntax.Path{0, 0}, 0, 5, "Changed"),
		ops.Delete(syntax.Path{}, 9),
	))
	if !ops.IsInvalid(err) {
		t.Fatalf("expected invalid operation, got %v", err)
	}
	var opErr *ops.Error
	if !errors.As(err, &opErr) || opErr.Step != 1 {
		t.Fatalf("expected failure at step 1, got %v", err)
	}
	if diff := cmp.Diff(before, tree); diff != "" {
		t.Fatalf("batch left partial changes (-want +got):\n%s", diff)
	}
}

func TestOperationValidate(t *testing.T) {
	valid := []ops.Operation{
		ops.Insert(syntax.Path{}, 0, syntax.NewParagraph()),
		ops.Delete(syntax.Path{1}, 0),
		ops.TextEdit(syntax.Path{0, 0}, 0, 1, "x"),
		ops.Batch(ops.Delete(syntax.Path{}, 0)),
	}
	for _, op := range valid {
		if err := op.Validate(); err != nil {
			t.Fatalf("expected %s to validate, got %v", op.Kind, err)
		}
	}

	invalid := []ops.Operation{
		{},
		{Kind: "split"},
		{Kind: ops.KindInsert},
		ops.Delete(syntax.Path{}, -1),
		ops.TextEdit(syntax.Path{0}, 4, 2, ""),
		{Kind: ops.KindBatch},
		ops.Batch(ops.Operation{Kind: ops.KindReplace}),
		ops.Insert(syntax.Path{}, 0, syntax.New(syntax.KindDocument)),
	}
	for _, op := range invalid {
		if err := op.Validate(); err == nil {
			t.Fatalf("expected %+v to fail validation", op)
		}
	}
}

func TestCountFlattensBatches(t *testing.T) {
	op := ops.Batch(
		ops.Delete(syntax.Path{}, 0),
		ops.Batch(ops.Delete(syntax.Path{}, 0), ops.Delete(syntax.Path{}, 0)),
	)
	if op.Count() != 3 {
		t.Fatalf("expected 3 leaf operations, got %d", op.Count())
	}
}
