package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	gmtext "github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/goliatone/go-mdsync/internal/syntax"
)

// ParseOptions customises parsing. Extensions are opt-in; constructs they add
// that have no syntax.Node counterpart degrade to text.
type ParseOptions struct {
	Extensions  []string
	FrontMatter bool
}

// GoldmarkParser turns Markdown text into a syntax tree using the goldmark
// block and inline parsers. The parser holds no per-document state and can be
// shared across goroutines.
type GoldmarkParser struct {
	opts   ParseOptions
	engine goldmark.Markdown
}

// NewGoldmarkParser constructs a parser. With zero options it parses plain
// CommonMark and ignores front matter.
func NewGoldmarkParser(opts ParseOptions) *GoldmarkParser {
	return &GoldmarkParser{
		opts:   opts,
		engine: newGoldmarkEngine(opts),
	}
}

// Parse never fails: malformed or unsupported constructs become Paragraph or
// Text nodes and are reported as ParseDegraded diagnostics. Every node is
// given a fresh ID and a span into text.
func (p *GoldmarkParser) Parse(text string) (*syntax.Node, Diagnostics) {
	root := syntax.New(syntax.KindDocument)
	root.Span = syntax.Span{Start: 0, End: len(text)}

	var diags Diagnostics
	offset := 0
	if p.opts.FrontMatter {
		fm, ok, err := SplitFrontMatter(text)
		switch {
		case err != nil:
			diags = append(diags, Diagnostic{
				Kind:      DiagnosticParseDegraded,
				Construct: "front_matter",
				Detail:    err.Error(),
			})
		case ok:
			root.Literal = fm.Raw
			offset = len(fm.Raw)
		}
	}

	source := []byte(text[offset:])
	doc := p.engine.Parser().Parse(gmtext.NewReader(source))

	b := &treeBuilder{src: source, diags: &diags}
	root.Children = b.blocks(doc)

	if offset > 0 {
		for _, child := range root.Children {
			shiftSpans(child, offset)
		}
		for i := range diags {
			if diags[i].Construct != "front_matter" {
				diags[i].Span.Start += offset
				diags[i].Span.End += offset
			}
		}
	}
	return root, diags
}

func shiftSpans(n *syntax.Node, delta int) {
	syntax.Walk(n, func(node *syntax.Node, _ syntax.Path) bool {
		node.Span.Start += delta
		node.Span.End += delta
		return true
	})
}

// newGoldmarkEngine builds a goldmark.Markdown configured from the parse
// options. Unknown extension names are ignored.
func newGoldmarkEngine(opts ParseOptions) goldmark.Markdown {
	exts := collectExtensions(opts.Extensions)
	if len(exts) == 0 {
		return goldmark.New()
	}
	return goldmark.New(goldmark.WithExtensions(exts...))
}

var extensionRegistry = map[string]goldmark.Extender{
	"gfm":           extension.GFM,
	"table":         extension.Table,
	"tables":        extension.Table,
	"strikethrough": extension.Strikethrough,
	"linkify":       extension.Linkify,
	"autolink":      extension.Linkify,
	"tasklist":      extension.TaskList,
	"definition":    extension.DefinitionList,
	"footnote":      extension.Footnote,
}

func collectExtensions(names []string) []goldmark.Extender {
	var extenders []goldmark.Extender
	seen := map[string]struct{}{}

	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		ext, ok := extensionRegistry[key]
		if !ok {
			continue
		}
		extenders = append(extenders, ext)
		seen[key] = struct{}{}
	}

	return extenders
}

// treeBuilder maps a goldmark AST onto syntax nodes. cursor tracks the end of
// the last located construct so nodes goldmark keeps no positions for can be
// anchored somewhere sensible.
type treeBuilder struct {
	src    []byte
	cursor int
	diags  *Diagnostics
	// heading is set while heading inlines are built; headings hold no
	// hard breaks.
	heading bool
}

func (b *treeBuilder) blocks(parent ast.Node) []*syntax.Node {
	var out []*syntax.Node
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		if n := b.block(c); n != nil {
			out = append(out, n)
			b.advance(n.Span.End)
		}
	}
	return out
}

func (b *treeBuilder) block(n ast.Node) *syntax.Node {
	switch node := n.(type) {
	case *ast.Heading:
		out := syntax.New(syntax.KindHeading)
		out.Level = node.Level
		b.heading = true
		out.Children = b.inlines(node)
		b.heading = false
		out.Span = b.headingSpan(node, out.Children)
		return out

	case *ast.Paragraph, *ast.TextBlock:
		out := syntax.New(syntax.KindParagraph)
		out.Children = b.inlines(node)
		out.Span = b.linesSpan(node, out.Children)
		return out

	case *ast.List:
		out := syntax.New(syntax.KindList)
		out.Ordered = node.IsOrdered()
		if out.Ordered {
			out.Start = node.Start
		}
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			item, ok := c.(*ast.ListItem)
			if !ok {
				if degraded := b.degradeBlock(c); degraded != nil {
					out.Children = append(out.Children, syntax.New(syntax.KindListItem, degraded))
				}
				continue
			}
			li := b.listItem(item)
			out.Children = append(out.Children, li)
			b.advance(li.Span.End)
		}
		out.Span = childrenSpan(out.Children, b.cursor)
		return out

	case *ast.FencedCodeBlock:
		out := syntax.New(syntax.KindCodeBlock)
		out.Language = string(node.Language(b.src))
		out.Literal = joinLines(b.src, node.Lines(), true)
		out.Span = b.fencedSpan(node)
		return out

	case *ast.CodeBlock:
		out := syntax.New(syntax.KindCodeBlock)
		out.Literal = strings.TrimRight(joinLines(b.src, node.Lines(), false), "\n")
		out.Span = b.rawBlockSpan(node)
		return out

	default:
		return b.degradeBlock(n)
	}
}

func (b *treeBuilder) listItem(item *ast.ListItem) *syntax.Node {
	out := syntax.New(syntax.KindListItem)
	start := b.cursor
	out.Children = b.blocks(item)
	if len(out.Children) == 0 {
		out.Span = b.locateLine(start)
		return out
	}
	first := out.Children[0].Span.Start
	out.Span = syntax.Span{
		Start: listMarkerStart(b.src, first),
		End:   out.Children[len(out.Children)-1].Span.End,
	}
	return out
}

// degradeBlock keeps the source of an unsupported block verbatim in a raw
// paragraph. Container prefixes (list indentation and markers) are cut so the
// block can be re-indented under a different marker.
func (b *treeBuilder) degradeBlock(n ast.Node) *syntax.Node {
	span := b.rawBlockSpan(n)
	b.record(n, span)
	start := b.rawStart(n, span)
	if start >= span.End {
		return nil
	}
	raw := dedent(string(b.src[start:span.End]), start-lineStart(b.src, start))
	raw = strings.TrimRight(strings.ReplaceAll(raw, "\r", ""), " \t\n")
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	text := syntax.NewRawText(raw)
	text.Span = syntax.Span{Start: start, End: span.End}
	out := syntax.NewParagraph(text)
	out.Raw = true
	out.Span = text.Span
	return out
}

// rawStart finds where the block itself begins on the first line of span,
// past the markers of the list items that open on that line.
func (b *treeBuilder) rawStart(n ast.Node, span syntax.Span) int {
	end := lineEnd(b.src, span.Start)
	start := skipIndent(b.src, span.Start)
	for i := openingItems(n); i > 0; i-- {
		next := skipListMarker(b.src, start)
		if next == start || next > end {
			break
		}
		start = next
	}
	return start
}

// openingItems counts the list items whose marker shares a line with n: n
// opens an item, which opens its list, which opens an enclosing item.
func openingItems(n ast.Node) int {
	depth := 0
	for node := n; node != nil; {
		item, ok := node.Parent().(*ast.ListItem)
		if !ok || node.PreviousSibling() != nil {
			break
		}
		depth++
		if item.PreviousSibling() != nil {
			break
		}
		node = item.Parent()
	}
	return depth
}

// skipListMarker steps over a bullet or ordinal marker and the blanks after
// it. pos is returned unchanged when no marker starts there.
func skipListMarker(src []byte, pos int) int {
	i := pos
	switch {
	case i < len(src) && (src[i] == '-' || src[i] == '+' || src[i] == '*'):
		i++
	default:
		for i < len(src) && i-pos < 9 && src[i] >= '0' && src[i] <= '9' {
			i++
		}
		if i == pos || i >= len(src) || (src[i] != '.' && src[i] != ')') {
			return pos
		}
		i++
	}
	if i < len(src) && src[i] != ' ' && src[i] != '\t' && src[i] != '\n' {
		return pos
	}
	return skipIndent(src, i)
}

// extendQuote widens span over the quote lines goldmark keeps no segments
// for, such as the fences of a code block inside the quote.
func (b *treeBuilder) extendQuote(span syntax.Span) syntax.Span {
	for span.Start > 0 {
		prev := lineStart(b.src, span.Start-1)
		if prev < b.cursor || (prev == b.cursor && b.cursor > 0) || !quoteLine(b.src, prev, true) {
			break
		}
		span.Start = prev
	}
	for {
		next := lineEnd(b.src, span.End) + 1
		if next >= len(b.src) || !quoteLine(b.src, next, false) {
			break
		}
		span.End = trimRightPos(b.src, lineEnd(b.src, next))
	}
	return span
}

// quoteLine reports whether the line at pos starts with '>' after its
// indentation and, when marker is set, an optional list marker.
func quoteLine(src []byte, pos int, marker bool) bool {
	i := skipIndent(src, pos)
	if marker {
		i = skipListMarker(src, i)
	}
	return i < len(src) && src[i] == '>'
}

// dedent removes up to col leading blanks from every line after the first.
func dedent(raw string, col int) string {
	if col <= 0 || !strings.Contains(raw, "\n") {
		return raw
	}
	lines := strings.Split(raw, "\n")
	for i := 1; i < len(lines); i++ {
		line := lines[i]
		cut := 0
		for cut < col && cut < len(line) && (line[cut] == ' ' || line[cut] == '\t') {
			cut++
		}
		lines[i] = line[cut:]
	}
	return strings.Join(lines, "\n")
}

func (b *treeBuilder) record(n ast.Node, span syntax.Span) {
	*b.diags = append(*b.diags, Diagnostic{
		Kind:      DiagnosticParseDegraded,
		Construct: n.Kind().String(),
		Span:      span,
	})
}

func (b *treeBuilder) inlines(parent ast.Node) []*syntax.Node {
	var out []*syntax.Node
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		n := b.inline(c)
		if n == nil {
			continue
		}
		b.advance(n.Span.End)
		out = appendInline(out, n)
		if t, ok := c.(*ast.Text); ok && t.HardLineBreak() && !b.heading {
			br := syntax.NewRawText(hardBreak)
			br.Span = syntax.Span{Start: t.Segment.Stop, End: t.Segment.Stop}
			out = append(out, br)
		}
	}
	return out
}

// hardBreak is the literal of a raw Text standing for a hard line break.
const hardBreak = "\\\n"

// appendInline merges adjacent plain Text nodes.
func appendInline(out []*syntax.Node, n *syntax.Node) []*syntax.Node {
	last := len(out) - 1
	if last >= 0 && n.Kind == syntax.KindText && !n.Raw && out[last].Kind == syntax.KindText && !out[last].Raw {
		out[last].Literal += n.Literal
		out[last].Span.End = n.Span.End
		return out
	}
	return append(out, n)
}

func (b *treeBuilder) inline(n ast.Node) *syntax.Node {
	switch node := n.(type) {
	case *ast.Text:
		out := syntax.NewText(decodeText(node.Segment.Value(b.src)))
		if node.SoftLineBreak() || (node.HardLineBreak() && b.heading) {
			out.Literal += "\n"
		}
		out.Span = syntax.Span{Start: node.Segment.Start, End: node.Segment.Stop}
		return out

	case *ast.String:
		out := syntax.NewText(string(node.Value))
		out.Span = syntax.Span{Start: b.cursor, End: b.cursor}
		return out

	case *ast.Emphasis:
		kind := syntax.KindEmphasis
		if node.Level >= 2 {
			kind = syntax.KindStrong
		}
		out := syntax.New(kind)
		out.Children = b.inlines(node)
		span := childrenSpan(out.Children, b.cursor)
		out.Span = syntax.Span{
			Start: max(span.Start-node.Level, 0),
			End:   min(span.End+node.Level, len(b.src)),
		}
		return out

	case *ast.Link:
		start := b.cursor
		out := syntax.NewLink(string(node.Destination), unescape(node.Title))
		out.Children = b.inlines(node)
		out.Span = b.linkSpan(out.Children, start, 1)
		return out

	case *ast.Image:
		start := b.cursor
		out := &syntax.Node{
			ID:     syntax.NewID(),
			Kind:   syntax.KindImage,
			Target: string(node.Destination),
			Title:  unescape(node.Title),
		}
		label := b.inlines(node)
		out.Alt = strings.TrimSpace(syntax.PlainText(syntax.NewParagraph(label...)))
		out.Span = b.linkSpan(label, start, 2)
		return out

	case *ast.CodeSpan:
		var lit strings.Builder
		span := syntax.Span{Start: -1}
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *ast.Text:
				lit.Write(t.Segment.Value(b.src))
				if span.Start < 0 {
					span.Start = t.Segment.Start
				}
				span.End = t.Segment.Stop
			case *ast.String:
				lit.Write(t.Value)
			}
		}
		literal := strings.NewReplacer("\r\n", " ", "\n", " ").Replace(lit.String())
		out := &syntax.Node{ID: syntax.NewID(), Kind: syntax.KindInlineCode, Literal: literal}
		if span.Start < 0 {
			out.Span = syntax.Span{Start: b.cursor, End: b.cursor}
		} else {
			out.Span = codeSpanBounds(b.src, span)
		}
		return out

	case *ast.AutoLink:
		label := string(node.Label(b.src))
		text := syntax.NewText(label)
		out := syntax.NewLink(string(node.URL(b.src)), "", text)
		if idx := bytes.Index(b.src[b.cursor:], []byte(label)); idx >= 0 {
			start := b.cursor + idx
			text.Span = syntax.Span{Start: start, End: start + len(label)}
			out.Span = syntax.Span{Start: max(start-1, 0), End: min(start+len(label)+1, len(b.src))}
		} else {
			text.Span = syntax.Span{Start: b.cursor, End: b.cursor}
			out.Span = text.Span
		}
		return out

	case *ast.RawHTML:
		var raw strings.Builder
		span := syntax.Span{Start: b.cursor, End: b.cursor}
		for i := 0; i < node.Segments.Len(); i++ {
			seg := node.Segments.At(i)
			if i == 0 {
				span.Start = seg.Start
			}
			span.End = seg.Stop
			raw.Write(seg.Value(b.src))
		}
		b.record(n, span)
		out := syntax.NewRawText(raw.String())
		out.Span = span
		return out

	case *east.TaskCheckBox:
		box := "[ ] "
		if node.IsChecked {
			box = "[x] "
		}
		out := syntax.NewRawText(box)
		out.Span = syntax.Span{Start: b.cursor, End: b.cursor}
		return out

	case *east.Strikethrough:
		children := b.inlines(n)
		span := childrenSpan(children, b.cursor)
		for span.Start > 0 && b.src[span.Start-1] == '~' {
			span.Start--
		}
		for span.End < len(b.src) && b.src[span.End] == '~' {
			span.End++
		}
		b.record(n, span)
		out := syntax.NewRawText(string(b.src[span.Start:span.End]))
		out.Span = span
		return out

	default:
		// Unknown inline (extension nodes): keep the literal text below it.
		children := b.inlines(n)
		span := childrenSpan(children, b.cursor)
		b.record(n, span)
		out := syntax.NewText(syntax.PlainText(syntax.NewParagraph(children...)))
		out.Span = span
		return out
	}
}

func (b *treeBuilder) advance(pos int) {
	if pos > b.cursor {
		b.cursor = pos
	}
}

func (b *treeBuilder) headingSpan(node *ast.Heading, children []*syntax.Node) syntax.Span {
	lines := node.Lines()
	if lines.Len() == 0 {
		return b.locateLine(b.cursor)
	}
	first := lines.At(0)
	last := lines.At(lines.Len() - 1)

	start := first.Start
	for start > 0 && (b.src[start-1] == '#' || b.src[start-1] == ' ' || b.src[start-1] == '\t') {
		start--
	}
	end := lineEnd(b.src, last.Start)
	// Setext underline.
	if next := end + 1; next < len(b.src) {
		underline := strings.TrimSpace(string(b.src[next:lineEnd(b.src, next)]))
		if underline != "" && strings.Trim(underline, "=-") == "" {
			end = lineEnd(b.src, next)
		}
	}
	if len(children) > 0 && children[0].Span.Start < start {
		start = children[0].Span.Start
	}
	return syntax.Span{Start: start, End: end}
}

func (b *treeBuilder) linesSpan(n ast.Node, children []*syntax.Node) syntax.Span {
	lines := n.Lines()
	if lines.Len() == 0 {
		return childrenSpan(children, b.cursor)
	}
	start := lines.At(0).Start
	end := trimRightPos(b.src, lines.At(lines.Len()-1).Stop)
	if end < start {
		end = start
	}
	return syntax.Span{Start: start, End: end}
}

func (b *treeBuilder) fencedSpan(node *ast.FencedCodeBlock) syntax.Span {
	lines := node.Lines()
	var start, contentEnd int
	switch {
	case node.Info != nil:
		start = lineStart(b.src, node.Info.Segment.Start)
	case lines.Len() > 0:
		first := lineStart(b.src, lines.At(0).Start)
		start = lineStart(b.src, max(first-1, 0))
	default:
		return b.locateLine(b.cursor)
	}
	start = skipIndent(b.src, start)
	if lines.Len() > 0 {
		contentEnd = lines.At(lines.Len() - 1).Stop
	} else {
		contentEnd = lineEnd(b.src, start) + 1
	}
	if contentEnd > len(b.src) {
		contentEnd = len(b.src)
	}
	// Closing fence, when present, sits on the line after the content.
	pos := skipIndent(b.src, contentEnd)
	end := trimRightPos(b.src, contentEnd)
	if pos < len(b.src) && (b.src[pos] == '`' || b.src[pos] == '~') {
		end = lineEnd(b.src, pos)
	}
	return syntax.Span{Start: start, End: end}
}

// rawBlockSpan covers every line touched by n or its descendants. Blocks that
// keep no positions (thematic breaks) resolve to the next non-blank line.
func (b *treeBuilder) rawBlockSpan(n ast.Node) syntax.Span {
	lo, hi := rawBounds(n)
	if lo < 0 {
		return b.locateLine(b.cursor)
	}
	start := lineStart(b.src, lo)
	end := trimRightPos(b.src, lineEnd(b.src, max(hi-1, lo)))
	if end < start {
		end = start
	}
	span := syntax.Span{Start: start, End: end}
	if _, ok := n.(*ast.Blockquote); ok {
		span = b.extendQuote(span)
	}
	return span
}

// rawBounds returns the smallest and largest offsets covered by the lines and
// text segments below n, -1 when it keeps none.
func rawBounds(n ast.Node) (lo, hi int) {
	lo, hi = -1, -1
	var visit func(ast.Node)
	visit = func(node ast.Node) {
		if node.Type() == ast.TypeBlock {
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				if lo < 0 || seg.Start < lo {
					lo = seg.Start
				}
				if seg.Stop > hi {
					hi = seg.Stop
				}
			}
		} else if t, ok := node.(*ast.Text); ok {
			if lo < 0 || t.Segment.Start < lo {
				lo = t.Segment.Start
			}
			if t.Segment.Stop > hi {
				hi = t.Segment.Stop
			}
		}
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			visit(c)
		}
	}
	visit(n)
	return lo, hi
}

// locateLine returns the span of the first non-blank line at or after pos.
func (b *treeBuilder) locateLine(pos int) syntax.Span {
	for pos < len(b.src) && (b.src[pos] == '\n' || b.src[pos] == '\r') {
		pos++
	}
	if pos >= len(b.src) {
		return syntax.Span{Start: len(b.src), End: len(b.src)}
	}
	start := skipIndent(b.src, lineStart(b.src, pos))
	return syntax.Span{Start: start, End: trimRightPos(b.src, lineEnd(b.src, pos))}
}

// linkSpan derives the span of a link or image from its label children and
// the destination that follows the closing bracket. prefix is the length of
// the opening delimiter ("[" or "![").
func (b *treeBuilder) linkSpan(label []*syntax.Node, fallback, prefix int) syntax.Span {
	var start, labelEnd int
	if len(label) > 0 {
		start = max(label[0].Span.Start-prefix, 0)
		labelEnd = label[len(label)-1].Span.End
	} else {
		idx := bytes.IndexByte(b.src[min(fallback, len(b.src)):], '[')
		if idx < 0 {
			return syntax.Span{Start: fallback, End: fallback}
		}
		start = max(fallback+idx-(prefix-1), 0)
		labelEnd = fallback + idx + 1
	}
	closeIdx := bytes.IndexByte(b.src[min(labelEnd, len(b.src)):], ']')
	if closeIdx < 0 {
		return syntax.Span{Start: start, End: labelEnd}
	}
	end := scanLinkTail(b.src, labelEnd+closeIdx+1)
	return syntax.Span{Start: start, End: end}
}

// scanLinkTail returns the offset just past an inline destination "(...)" or
// reference label "[...]" starting at pos; pos itself when neither follows.
func scanLinkTail(src []byte, pos int) int {
	if pos >= len(src) {
		return len(src)
	}
	switch src[pos] {
	case '(':
		depth := 0
		inAngle := false
		for i := pos; i < len(src); i++ {
			switch c := src[i]; {
			case c == '\\':
				i++
			case c == '<':
				inAngle = true
			case c == '>':
				inAngle = false
			case c == '(' && !inAngle:
				depth++
			case c == ')' && !inAngle:
				depth--
				if depth == 0 {
					return i + 1
				}
			}
		}
		return len(src)
	case '[':
		if idx := bytes.IndexByte(src[pos:], ']'); idx >= 0 {
			return pos + idx + 1
		}
	}
	return pos
}

func codeSpanBounds(src []byte, content syntax.Span) syntax.Span {
	start := content.Start
	for start > 0 && src[start-1] == ' ' {
		start--
	}
	for start > 0 && src[start-1] == '`' {
		start--
	}
	end := content.End
	for end < len(src) && src[end] == ' ' {
		end++
	}
	for end < len(src) && src[end] == '`' {
		end++
	}
	return syntax.Span{Start: start, End: end}
}

// listMarkerStart walks back from the first content byte of an item to its
// bullet or ordinal marker.
func listMarkerStart(src []byte, contentStart int) int {
	i := contentStart
	for i > 0 && (src[i-1] == ' ' || src[i-1] == '\t') {
		i--
	}
	if i == 0 || src[i-1] == '\n' {
		return i
	}
	switch src[i-1] {
	case '-', '+', '*':
		return i - 1
	case '.', ')':
		j := i - 1
		for j > 0 && src[j-1] >= '0' && src[j-1] <= '9' {
			j--
		}
		if j < i-1 {
			return j
		}
	}
	return i
}

func childrenSpan(children []*syntax.Node, fallback int) syntax.Span {
	if len(children) == 0 {
		return syntax.Span{Start: fallback, End: fallback}
	}
	return syntax.Span{Start: children[0].Span.Start, End: children[len(children)-1].Span.End}
}

// joinLines concatenates segment values. When dropFinalNewline is set the
// single newline terminating the last line is removed, so that a block with
// no lines and a block with one empty line stay distinguishable.
func joinLines(src []byte, lines *gmtext.Segments, dropFinalNewline bool) string {
	if lines == nil || lines.Len() == 0 {
		return ""
	}
	var buf bytes.Buffer
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
	out := buf.String()
	if dropFinalNewline {
		out = strings.TrimSuffix(out, "\n")
		out = strings.TrimSuffix(out, "\r")
	}
	return out
}

// decodeText resolves backslash escapes and entity references in one pass,
// so an escaped '&' never starts a reference.
func decodeText(value []byte) string {
	if bytes.IndexByte(value, '\\') < 0 && bytes.IndexByte(value, '&') < 0 {
		return string(value)
	}
	var out bytes.Buffer
	chunk := 0
	flush := func(end int) {
		if end > chunk {
			out.Write(util.ResolveNumericReferences(util.ResolveEntityNames(value[chunk:end])))
		}
	}
	for i := 0; i < len(value); i++ {
		if value[i] == '\\' && i+1 < len(value) && util.IsPunct(value[i+1]) {
			flush(i)
			out.WriteByte(value[i+1])
			i++
			chunk = i + 1
		}
	}
	flush(len(value))
	return out.String()
}

func unescape(value []byte) string {
	if len(value) == 0 {
		return ""
	}
	return string(util.UnescapePunctuations(value))
}

func lineStart(src []byte, pos int) int {
	if pos > len(src) {
		pos = len(src)
	}
	for pos > 0 && src[pos-1] != '\n' {
		pos--
	}
	return pos
}

func lineEnd(src []byte, pos int) int {
	for pos < len(src) && src[pos] != '\n' {
		pos++
	}
	return pos
}

func trimRightPos(src []byte, pos int) int {
	if pos > len(src) {
		pos = len(src)
	}
	for pos > 0 && (src[pos-1] == '\n' || src[pos-1] == '\r' || src[pos-1] == ' ' || src[pos-1] == '\t') {
		pos--
	}
	return pos
}

func skipIndent(src []byte, pos int) int {
	for pos < len(src) && (src[pos] == ' ' || src[pos] == '\t') {
		pos++
	}
	return pos
}
