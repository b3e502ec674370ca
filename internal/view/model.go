// Package view projects syntax trees into the presentation model consumed by
// WYSIWYG surfaces and keeps that model in step with tree diffs.
package view

import (
	"github.com/google/uuid"

	"github.com/goliatone/go-mdsync/internal/syntax"
	"github.com/goliatone/go-mdsync/internal/treediff"
)

// Attrs carries the presentation attributes of a view node.
type Attrs struct {
	Tag      string `json:"tag"`
	Level    int    `json:"level,omitempty"`
	Anchor   string `json:"anchor,omitempty"`
	Href     string `json:"href,omitempty"`
	Src      string `json:"src,omitempty"`
	Title    string `json:"title,omitempty"`
	Alt      string `json:"alt,omitempty"`
	Language string `json:"language,omitempty"`
	Ordered  bool   `json:"ordered,omitempty"`
	Start    int    `json:"start,omitempty"`
	Raw      bool   `json:"raw,omitempty"`
}

// Node mirrors one syntax node. View nodes are shared between successive
// models when their syntax counterpart did not change, so they must not be
// mutated after publication.
type Node struct {
	ID       uuid.UUID   `json:"id"`
	Kind     syntax.Kind `json:"kind"`
	Attrs    Attrs       `json:"attrs"`
	Text     string      `json:"text,omitempty"`
	Children []*Node     `json:"children,omitempty"`
}

// Model is a projected document.
type Model struct {
	Version int64 `json:"version"`
	Root    *Node `json:"root"`

	index map[uuid.UUID]*Node
}

// Lookup returns the view node with the given ID.
func (m *Model) Lookup(id uuid.UUID) (*Node, bool) {
	if m == nil {
		return nil, false
	}
	n, ok := m.index[id]
	return n, ok
}

// Len returns the number of nodes in the model.
func (m *Model) Len() int {
	if m == nil {
		return 0
	}
	return len(m.index)
}

// Resolve walks path from the root.
func (m *Model) Resolve(path syntax.Path) (*Node, bool) {
	if m == nil || m.Root == nil {
		return nil, false
	}
	node := m.Root
	for _, idx := range path {
		if idx < 0 || idx >= len(node.Children) {
			return nil, false
		}
		node = node.Children[idx]
	}
	return node, true
}

// Edit is a presentation level change derived from a tree edit. Node holds
// the projected subtree for inserts, moves and updates.
type Edit struct {
	Op   treediff.Op `json:"op"`
	ID   uuid.UUID   `json:"id"`
	Path syntax.Path `json:"path"`
	From syntax.Path `json:"from,omitempty"`
	Node *Node       `json:"node,omitempty"`
}

// Delta is the incremental update published after every accepted mutation.
type Delta struct {
	Version int64  `json:"version"`
	Edits   []Edit `json:"edits"`
	// Reused and Built count view nodes carried over and projected anew.
	Reused int `json:"reused"`
	Built  int `json:"built"`
}

// Empty reports whether the delta carries no edits.
func (d Delta) Empty() bool {
	return len(d.Edits) == 0
}
