package markdown

import (
	"strconv"
	"strings"

	"github.com/goliatone/go-mdsync/internal/syntax"
)

// Serializer writes syntax trees as canonical Markdown. It is stateless.
type Serializer struct{}

// NewSerializer returns the canonical serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// Serialize renders tree in canonical style. See Serialize.
func (*Serializer) Serialize(tree *syntax.Node) string {
	return Serialize(tree)
}

// Serialize renders tree in canonical style: ATX headings, '*' emphasis,
// '-' bullets, fenced code and a single blank line between blocks. The result
// carries no trailing newline. Nodes that cannot appear at their position are
// skipped rather than reported; callers validate trees before serializing.
func Serialize(tree *syntax.Node) string {
	if tree == nil {
		return ""
	}
	var body string
	switch {
	case tree.Kind == syntax.KindDocument:
		body = strings.Join(renderBlocks(tree.Children), "\n\n")
	case tree.Kind.IsBlock():
		body = renderBlock(tree, listStyle{})
	default:
		body = renderParagraph([]*syntax.Node{tree})
	}

	frontMatter := ""
	if tree.Kind == syntax.KindDocument {
		frontMatter = tree.Literal
	}
	if frontMatter == "" {
		return body
	}
	if body == "" {
		return frontMatter
	}
	if !strings.HasSuffix(frontMatter, "\n") {
		frontMatter += "\n"
	}
	return frontMatter + body
}

// listStyle carries the marker variant chosen for a list so that adjacent
// sibling lists of the same type do not merge on re-parse.
type listStyle struct {
	alternate bool
}

func renderBlocks(blocks []*syntax.Node) []string {
	out := make([]string, 0, len(blocks))
	var prev *syntax.Node
	var prevStyle listStyle
	for _, block := range blocks {
		if block == nil || !block.Kind.IsBlock() {
			continue
		}
		style := listStyle{}
		if block.Kind == syntax.KindList && prev != nil && prev.Kind == syntax.KindList && prev.Ordered == block.Ordered {
			style.alternate = !prevStyle.alternate
		}
		rendered := renderBlock(block, style)
		if rendered == "" {
			continue
		}
		out = append(out, rendered)
		prev, prevStyle = block, style
	}
	return out
}

func renderBlock(n *syntax.Node, style listStyle) string {
	switch n.Kind {
	case syntax.KindHeading:
		return renderHeading(n)
	case syntax.KindParagraph:
		if n.Raw {
			return renderRaw(n)
		}
		return renderParagraph(n.Children)
	case syntax.KindList:
		return renderList(n, style)
	case syntax.KindCodeBlock:
		return renderCodeBlock(n)
	default:
		return ""
	}
}

func renderHeading(n *syntax.Node) string {
	level := min(max(n.Level, 1), 6)
	hashes := strings.Repeat("#", level)
	content := renderInlines(n.Children, 0)
	content = strings.ReplaceAll(content, "\r", "")
	content = strings.ReplaceAll(content, "\n", " ")
	content = strings.Trim(content, " \t")
	if content == "" {
		return hashes
	}
	return hashes + " " + escapeHeadingEnd(content)
}

func renderParagraph(inlines []*syntax.Node) string {
	rendered := renderInlines(inlines, 0)
	lines := strings.Split(rendered, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.Trim(line, " \t")
		if line == "" {
			continue
		}
		kept = append(kept, escapeLineStart(line))
	}
	return strings.Join(kept, "\n")
}

// renderRaw writes the literals of a raw paragraph as they are.
func renderRaw(n *syntax.Node) string {
	var b strings.Builder
	for _, child := range n.Children {
		if child != nil && child.Kind == syntax.KindText {
			b.WriteString(child.Literal)
		}
	}
	return strings.TrimRight(strings.ReplaceAll(b.String(), "\r", ""), " \t\n")
}

func renderList(n *syntax.Node, style listStyle) string {
	var b strings.Builder
	number := n.Start
	written := 0
	for _, item := range n.Children {
		if item == nil || item.Kind != syntax.KindListItem {
			continue
		}
		marker := bulletMarker(style)
		if n.Ordered {
			marker = orderedMarker(number, style)
			number++
		}
		if written > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(renderListItem(item, marker))
		written++
	}
	return b.String()
}

func bulletMarker(style listStyle) string {
	if style.alternate {
		return "*"
	}
	return "-"
}

func orderedMarker(number int, style listStyle) string {
	if number < 0 {
		number = 0
	}
	delim := "."
	if style.alternate {
		delim = ")"
	}
	return strconv.Itoa(number) + delim
}

func renderListItem(item *syntax.Node, marker string) string {
	content := strings.Join(renderBlocks(item.Children), "\n\n")
	if content == "" {
		return marker
	}
	indent := strings.Repeat(" ", len(marker)+1)
	lines := strings.Split(content, "\n")
	var b strings.Builder
	b.WriteString(marker)
	b.WriteByte(' ')
	b.WriteString(lines[0])
	for _, line := range lines[1:] {
		b.WriteByte('\n')
		if line == "" {
			continue
		}
		b.WriteString(indent)
		b.WriteString(line)
	}
	return b.String()
}

func renderCodeBlock(n *syntax.Node) string {
	literal := strings.ReplaceAll(n.Literal, "\r", "")
	fenceChar := byte('`')
	if strings.Contains(n.Language, "`") {
		fenceChar = '~'
	}
	fence := strings.Repeat(string(fenceChar), max(3, longestRun(literal, fenceChar)+1))

	var b strings.Builder
	b.WriteString(fence)
	b.WriteString(strings.TrimSpace(strings.ReplaceAll(n.Language, "\n", " ")))
	b.WriteByte('\n')
	if literal != "" {
		b.WriteString(literal)
		b.WriteByte('\n')
	}
	b.WriteString(fence)
	return b.String()
}

// renderInlines renders an inline sequence. parentDelim is the emphasis
// delimiter wrapping the sequence, zero at the top level.
func renderInlines(nodes []*syntax.Node, parentDelim byte) string {
	var b strings.Builder
	leftDelim := parentDelim
	for i, n := range nodes {
		if n == nil {
			continue
		}
		last := i == len(nodes)-1
		switch n.Kind {
		case syntax.KindText:
			if n.Raw {
				b.WriteString(strings.ReplaceAll(n.Literal, "\r", ""))
				leftDelim = 0
				continue
			}
			text := escapeText(n.Literal)
			if strings.HasSuffix(n.Literal, "!") && i+1 < len(nodes) && nodes[i+1] != nil && nodes[i+1].Kind == syntax.KindLink {
				text = text[:len(text)-1] + "\\!"
			}
			b.WriteString(text)
			leftDelim = 0
		case syntax.KindEmphasis, syntax.KindStrong:
			delim := byte('*')
			if leftDelim == '*' || (last && parentDelim == '*' && !endsWithWord(b.String())) {
				delim = '_'
			}
			rendered, wrapped := renderEmphasis(n, delim)
			b.WriteString(rendered)
			leftDelim = 0
			if wrapped {
				leftDelim = delim
			}
		case syntax.KindInlineCode:
			b.WriteString(formatCodeSpan(n.Literal))
			leftDelim = 0
		case syntax.KindLink:
			b.WriteByte('[')
			b.WriteString(renderInlines(n.Children, 0))
			b.WriteString("](")
			b.WriteString(formatDestination(n.Target))
			b.WriteString(formatTitle(n.Title))
			b.WriteByte(')')
			leftDelim = 0
		case syntax.KindImage:
			alt := strings.NewReplacer("\r", "", "\n", " ").Replace(n.Alt)
			b.WriteString("![")
			b.WriteString(escapeText(alt))
			b.WriteString("](")
			b.WriteString(formatDestination(n.Target))
			b.WriteString(formatTitle(n.Title))
			b.WriteByte(')')
			leftDelim = 0
		}
	}
	return b.String()
}

// renderEmphasis wraps the rendered children in delim markers, moving
// boundary whitespace outside. wrapped is false when the content was blank
// and only whitespace was written.
func renderEmphasis(n *syntax.Node, delim byte) (string, bool) {
	inner := renderInlines(n.Children, delim)
	trimmed := strings.TrimLeft(inner, " \t\n")
	lead := inner[:len(inner)-len(trimmed)]
	content := strings.TrimRight(trimmed, " \t\n")
	trail := trimmed[len(content):]
	if content == "" {
		return collapseSpace(lead + trail), false
	}
	marker := string(delim)
	if n.Kind == syntax.KindStrong {
		marker += marker
	}
	return collapseSpace(lead) + marker + content + marker + collapseSpace(trail), true
}

func endsWithWord(s string) bool {
	return isWordBefore(s, len(s))
}

func collapseSpace(ws string) string {
	switch {
	case ws == "":
		return ""
	case strings.Contains(ws, "\n"):
		return "\n"
	default:
		return " "
	}
}
