package ops

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/goliatone/go-mdsync/internal/syntax"
)

// Kind names an operation variant.
type Kind string

const (
	KindInsert   Kind = "insert"
	KindDelete   Kind = "delete"
	KindReplace  Kind = "replace"
	KindMove     Kind = "move"
	KindTextEdit Kind = "text_edit"
	KindBatch    Kind = "batch"
)

// Range is a byte range [Start, End) inside a literal.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Operation is a structured edit against a syntax tree.
//
// Structural operations address a child slot: Path is the parent and Index
// the position under it. Move takes the child at Path/Index and places it at
// ToPath/ToIndex, both read in the tree after the child has been removed.
// TextEdit addresses the literal node at Path directly.
//
// Target, when set, is the ID the addressed node must carry: the child at
// Path/Index for delete, replace and move; the parent at Path for insert;
// the node at Path for text_edit. ToTarget likewise guards the move
// destination parent. A mismatch makes the operation stale.
type Operation struct {
	Kind     Kind         `json:"kind"`
	Path     syntax.Path  `json:"path"`
	Index    int          `json:"index,omitempty"`
	Node     *syntax.Node `json:"node,omitempty"`
	ToPath   syntax.Path  `json:"to_path,omitempty"`
	ToIndex  int          `json:"to_index,omitempty"`
	Range    Range        `json:"range,omitempty"`
	Text     string       `json:"text,omitempty"`
	Target   uuid.UUID    `json:"target,omitempty"`
	ToTarget uuid.UUID    `json:"to_target,omitempty"`
	Ops      []Operation  `json:"ops,omitempty"`
	// BaseVersion is the document version the operation was computed
	// against. The engine ignores it.
	BaseVersion int64 `json:"base_version,omitempty"`
}

// Insert places node as child index of the node at parent.
func Insert(parent syntax.Path, index int, node *syntax.Node) Operation {
	return Operation{Kind: KindInsert, Path: parent.Clone(), Index: index, Node: node}
}

// Delete removes child index of the node at parent.
func Delete(parent syntax.Path, index int) Operation {
	return Operation{Kind: KindDelete, Path: parent.Clone(), Index: index}
}

// Replace swaps child index of the node at parent for node.
func Replace(parent syntax.Path, index int, node *syntax.Node) Operation {
	return Operation{Kind: KindReplace, Path: parent.Clone(), Index: index, Node: node}
}

// Move relocates child index of parent to toIndex under toParent.
func Move(parent syntax.Path, index int, toParent syntax.Path, toIndex int) Operation {
	return Operation{Kind: KindMove, Path: parent.Clone(), Index: index, ToPath: toParent.Clone(), ToIndex: toIndex}
}

// TextEdit replaces the bytes [start, end) of the literal at path with text.
func TextEdit(path syntax.Path, start, end int, text string) Operation {
	return Operation{Kind: KindTextEdit, Path: path.Clone(), Range: Range{Start: start, End: end}, Text: text}
}

// Batch groups operations that apply atomically in order.
func Batch(ops ...Operation) Operation {
	return Operation{Kind: KindBatch, Ops: ops}
}

// Expect returns a copy of op guarded by the given target ID.
func (op Operation) Expect(target uuid.UUID) Operation {
	op.Target = target
	return op
}

// At returns a copy of op stamped with the base version it was computed on.
func (op Operation) At(version int64) Operation {
	op.BaseVersion = version
	for i := range op.Ops {
		op.Ops[i] = op.Ops[i].At(version)
	}
	return op
}

// Count returns the number of leaf operations, flattening batches.
func (op Operation) Count() int {
	if op.Kind != KindBatch {
		return 1
	}
	total := 0
	for _, inner := range op.Ops {
		total += inner.Count()
	}
	return total
}

// Validate checks the shape of op without looking at a tree.
func (op Operation) Validate() error {
	return validation.ValidateStruct(&op,
		validation.Field(&op.Kind,
			validation.Required,
			validation.In(KindInsert, KindDelete, KindReplace, KindMove, KindTextEdit, KindBatch),
		),
		validation.Field(&op.Index, validation.Min(0)),
		validation.Field(&op.ToIndex, validation.Min(0)),
		validation.Field(&op.Node, validation.When(op.Kind == KindInsert || op.Kind == KindReplace,
			validation.Required,
			validation.By(validNode),
		)),
		validation.Field(&op.Range, validation.When(op.Kind == KindTextEdit, validation.By(validRange))),
		validation.Field(&op.Ops, validation.When(op.Kind == KindBatch, validation.Required)),
	)
}

func validNode(value any) error {
	node, _ := value.(*syntax.Node)
	if node == nil {
		return nil
	}
	if node.Kind == syntax.KindDocument {
		return errors.New("document nodes cannot be inserted")
	}
	return syntax.Validate(node)
}

func validRange(value any) error {
	r, _ := value.(Range)
	if r.Start < 0 || r.End < r.Start {
		return errors.New("range must satisfy 0 <= start <= end")
	}
	return nil
}
