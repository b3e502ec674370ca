package syntax

import (
	"strings"

	"github.com/google/uuid"
)

// Kind tags the variant carried by a Node.
type Kind string

const (
	KindDocument   Kind = "document"
	KindHeading    Kind = "heading"
	KindParagraph  Kind = "paragraph"
	KindList       Kind = "list"
	KindListItem   Kind = "list_item"
	KindEmphasis   Kind = "emphasis"
	KindStrong     Kind = "strong"
	KindLink       Kind = "link"
	KindImage      Kind = "image"
	KindCodeBlock  Kind = "code_block"
	KindInlineCode Kind = "inline_code"
	KindText       Kind = "text"
)

// Span is a byte range [Start, End) into the text a tree was parsed from.
// Spans are only meaningful immediately after a parse.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Node is one element of the syntax tree. Nodes are treated as immutable once
// they are reachable from a published tree: every mutation builds new nodes
// along the edited path and shares the untouched children.
type Node struct {
	ID       uuid.UUID `json:"id"`
	Kind     Kind      `json:"kind"`
	Level    int       `json:"level,omitempty"`
	Ordered  bool      `json:"ordered,omitempty"`
	Start    int       `json:"start,omitempty"`
	Target   string    `json:"target,omitempty"`
	Title    string    `json:"title,omitempty"`
	Alt      string    `json:"alt,omitempty"`
	Language string    `json:"language,omitempty"`
	Literal  string    `json:"literal,omitempty"`
	// Raw marks source kept verbatim: a block or inline construct without a
	// node kind of its own. Raw nodes are written back unescaped.
	Raw      bool      `json:"raw,omitempty"`
	Children []*Node   `json:"children,omitempty"`
	Span     Span      `json:"span"`
}

// NewID allocates a fresh node identifier.
func NewID() uuid.UUID {
	return uuid.New()
}

// New returns a node of the given kind with a freshly allocated ID.
func New(kind Kind, children ...*Node) *Node {
	return &Node{ID: NewID(), Kind: kind, Children: children}
}

// NewText returns a Text leaf.
func NewText(literal string) *Node {
	return &Node{ID: NewID(), Kind: KindText, Literal: literal}
}

// NewRawText returns a Text leaf written back verbatim.
func NewRawText(literal string) *Node {
	return &Node{ID: NewID(), Kind: KindText, Literal: literal, Raw: true}
}

// NewHeading returns a Heading of the given level wrapping inline children.
func NewHeading(level int, children ...*Node) *Node {
	n := New(KindHeading, children...)
	n.Level = level
	return n
}

// NewParagraph returns a Paragraph wrapping inline children.
func NewParagraph(children ...*Node) *Node {
	return New(KindParagraph, children...)
}

// NewLink returns a Link wrapping inline children.
func NewLink(target, title string, children ...*Node) *Node {
	n := New(KindLink, children...)
	n.Target = target
	n.Title = title
	return n
}

// NewList returns a List of items.
func NewList(ordered bool, items ...*Node) *Node {
	n := New(KindList, items...)
	n.Ordered = ordered
	if ordered {
		n.Start = 1
	}
	return n
}

// NewCodeBlock returns a fenced code block leaf.
func NewCodeBlock(language, literal string) *Node {
	return &Node{ID: NewID(), Kind: KindCodeBlock, Language: language, Literal: literal}
}

// ShallowCopy returns a copy of n that shares n's children slice contents but
// owns its own slice header, so callers can replace entries safely.
func (n *Node) ShallowCopy() *Node {
	if n == nil {
		return nil
	}
	cp := *n
	if len(n.Children) > 0 {
		cp.Children = make([]*Node, len(n.Children))
		copy(cp.Children, n.Children)
	}
	return &cp
}

// Clone deep copies n, keeping IDs.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := *n
	cp.Children = nil
	if len(n.Children) > 0 {
		cp.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			cp.Children[i] = child.Clone()
		}
	}
	return &cp
}

// Reidentify deep copies n allocating fresh IDs for every node.
func (n *Node) Reidentify() *Node {
	if n == nil {
		return nil
	}
	cp := n.Clone()
	Walk(cp, func(node *Node, _ Path) bool {
		node.ID = NewID()
		return true
	})
	return cp
}

// IsLiteral reports whether the kind carries editable literal content.
func (k Kind) IsLiteral() bool {
	switch k {
	case KindText, KindInlineCode, KindCodeBlock:
		return true
	default:
		return false
	}
}

// IsBlock reports whether the kind is a block-level construct.
func (k Kind) IsBlock() bool {
	switch k {
	case KindHeading, KindParagraph, KindList, KindCodeBlock:
		return true
	default:
		return false
	}
}

// IsInline reports whether the kind is an inline construct.
func (k Kind) IsInline() bool {
	switch k {
	case KindEmphasis, KindStrong, KindLink, KindImage, KindInlineCode, KindText:
		return true
	default:
		return false
	}
}

// IsContainer reports whether nodes of this kind may hold children.
func (k Kind) IsContainer() bool {
	switch k {
	case KindDocument, KindHeading, KindParagraph, KindList, KindListItem,
		KindEmphasis, KindStrong, KindLink:
		return true
	default:
		return false
	}
}

// SameAttributes reports whether a and b carry identical own attributes,
// ignoring IDs, spans and children.
func SameAttributes(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Kind == b.Kind &&
		a.Level == b.Level &&
		a.Ordered == b.Ordered &&
		a.Start == b.Start &&
		a.Target == b.Target &&
		a.Title == b.Title &&
		a.Alt == b.Alt &&
		a.Language == b.Language &&
		a.Literal == b.Literal &&
		a.Raw == b.Raw
}

// Equal reports whether a and b are structurally identical, ignoring IDs and
// spans.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a == b {
		return true
	}
	if !SameAttributes(a, b) || len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !Equal(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

// PlainText concatenates the literal content below n.
func PlainText(n *Node) string {
	var b strings.Builder
	Walk(n, func(node *Node, _ Path) bool {
		switch node.Kind {
		case KindText, KindInlineCode, KindCodeBlock:
			b.WriteString(node.Literal)
		case KindImage:
			b.WriteString(node.Alt)
		}
		return true
	})
	return b.String()
}

// Count returns the number of nodes in the subtree rooted at n.
func Count(n *Node) int {
	total := 0
	Walk(n, func(*Node, Path) bool {
		total++
		return true
	})
	return total
}
