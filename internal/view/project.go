package view

import (
	"strings"

	"github.com/goliatone/go-slug"
	"github.com/google/uuid"

	"github.com/goliatone/go-mdsync/internal/syntax"
	"github.com/goliatone/go-mdsync/internal/treediff"
)

// Project builds a view model for tree from scratch.
func Project(tree *syntax.Node) *Model {
	p := projector{index: map[uuid.UUID]*Node{}}
	return &Model{Root: p.sync(tree, true), index: p.index}
}

// ApplyDelta projects result.Tree reusing every view node of model whose ID
// is outside the dirty set of result. Inserted and moved subtrees are
// projected anew. The returned delta mirrors result.Edits.
func ApplyDelta(model *Model, result treediff.Result) (*Model, Delta) {
	if model == nil || model.Root == nil {
		next := Project(result.Tree)
		delta := Delta{Built: next.Len()}
		if next.Root != nil {
			delta.Edits = []Edit{{Op: treediff.OpInsert, ID: next.Root.ID, Path: syntax.Path{}, Node: next.Root}}
		}
		return next, delta
	}

	rebuild := make(map[uuid.UUID]bool)
	for _, e := range result.Edits {
		if e.Op == treediff.OpInsert || e.Op == treediff.OpMove {
			rebuild[e.ID] = true
		}
	}

	p := projector{
		index:   make(map[uuid.UUID]*Node, len(model.index)),
		prev:    model,
		dirty:   result.Dirty(),
		rebuild: rebuild,
	}
	next := &Model{Version: model.Version, Root: p.sync(result.Tree, false), index: p.index}

	delta := Delta{Reused: p.reused, Built: p.built}
	for _, e := range result.Edits {
		edit := Edit{Op: e.Op, ID: e.ID, Path: e.Path.Clone(), From: e.From.Clone()}
		if e.Op != treediff.OpDelete {
			edit.Node = p.index[e.ID]
		}
		delta.Edits = append(delta.Edits, edit)
	}
	return next, delta
}

type projector struct {
	index   map[uuid.UUID]*Node
	prev    *Model
	dirty   map[uuid.UUID]struct{}
	rebuild map[uuid.UUID]bool

	reused int
	built  int
}

func (p *projector) sync(n *syntax.Node, fresh bool) *Node {
	if n == nil {
		return nil
	}
	fresh = fresh || p.rebuild[n.ID]
	if !fresh {
		if _, dirty := p.dirty[n.ID]; !dirty {
			if old, ok := p.prev.index[n.ID]; ok {
				p.adopt(old)
				return old
			}
		}
	}

	v := project(n)
	p.built++
	p.index[v.ID] = v
	if len(n.Children) > 0 {
		v.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			v.Children[i] = p.sync(child, fresh)
		}
	}
	return v
}

// adopt registers a reused subtree in the new index.
func (p *projector) adopt(v *Node) {
	p.reused++
	p.index[v.ID] = v
	for _, child := range v.Children {
		p.adopt(child)
	}
}

// project maps the own attributes of n; children are filled by the caller.
func project(n *syntax.Node) *Node {
	v := &Node{ID: n.ID, Kind: n.Kind}
	switch n.Kind {
	case syntax.KindDocument:
		v.Attrs.Tag = "article"
	case syntax.KindHeading:
		v.Attrs.Tag = headingTag(n.Level)
		v.Attrs.Level = n.Level
		v.Attrs.Anchor = Anchor(syntax.PlainText(n))
	case syntax.KindParagraph:
		v.Attrs.Tag = "p"
		if n.Raw {
			v.Attrs.Tag = "div"
		}
	case syntax.KindList:
		v.Attrs.Tag = "ul"
		if n.Ordered {
			v.Attrs.Tag = "ol"
			v.Attrs.Ordered = true
			v.Attrs.Start = n.Start
		}
	case syntax.KindListItem:
		v.Attrs.Tag = "li"
	case syntax.KindEmphasis:
		v.Attrs.Tag = "em"
	case syntax.KindStrong:
		v.Attrs.Tag = "strong"
	case syntax.KindLink:
		v.Attrs.Tag = "a"
		v.Attrs.Href = n.Target
		v.Attrs.Title = n.Title
	case syntax.KindImage:
		v.Attrs.Tag = "img"
		v.Attrs.Src = n.Target
		v.Attrs.Alt = n.Alt
		v.Attrs.Title = n.Title
	case syntax.KindCodeBlock:
		v.Attrs.Tag = "pre"
		v.Attrs.Language = n.Language
		v.Text = n.Literal
	case syntax.KindInlineCode:
		v.Attrs.Tag = "code"
		v.Text = n.Literal
	case syntax.KindText:
		v.Attrs.Tag = "#text"
		v.Text = n.Literal
		if n.Raw && n.Literal == hardBreak {
			v.Attrs.Tag = "br"
			v.Text = ""
		}
	}
	v.Attrs.Raw = n.Raw
	return v
}

const hardBreak = "\\\n"

func headingTag(level int) string {
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	return "h" + string(rune('0'+level))
}

// Anchor derives the fragment identifier of a heading from its text. It only
// depends on the heading itself, so unchanged headings keep their anchors.
func Anchor(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	normalized, err := slug.Normalize(text)
	if err != nil || normalized == "" {
		return strings.ToLower(strings.Join(strings.Fields(text), "-"))
	}
	return normalized
}
