// Package markdown converts between Markdown text and syntax trees. The
// parser maps goldmark's CommonMark AST onto syntax.Node values and never
// fails; the serializer writes a canonical style that re-parses to an equal
// tree.
package markdown

import (
	"fmt"

	"github.com/goliatone/go-mdsync/internal/syntax"
)

// DiagnosticKind classifies parser diagnostics.
type DiagnosticKind string

// DiagnosticParseDegraded marks a construct that was kept as literal text.
const DiagnosticParseDegraded DiagnosticKind = "parse_degraded"

// Diagnostic describes one degraded construct.
type Diagnostic struct {
	Kind      DiagnosticKind `json:"kind"`
	Construct string         `json:"construct"`
	Span      syntax.Span    `json:"span"`
	Detail    string         `json:"detail,omitempty"`
}

func (d Diagnostic) String() string {
	if d.Detail != "" {
		return fmt.Sprintf("%s %s [%d,%d): %s", d.Kind, d.Construct, d.Span.Start, d.Span.End, d.Detail)
	}
	return fmt.Sprintf("%s %s [%d,%d)", d.Kind, d.Construct, d.Span.Start, d.Span.End)
}

// Diagnostics is the list reported by a single parse.
type Diagnostics []Diagnostic

// Degraded reports whether any construct was degraded.
func (d Diagnostics) Degraded() bool {
	for _, diag := range d {
		if diag.Kind == DiagnosticParseDegraded {
			return true
		}
	}
	return false
}

// Parser turns Markdown text into a syntax tree. Implementations never fail;
// unsupported input is reported through diagnostics.
type Parser interface {
	Parse(text string) (*syntax.Node, Diagnostics)
}

// TreeSerializer renders a syntax tree as canonical Markdown.
type TreeSerializer interface {
	Serialize(tree *syntax.Node) string
}

var (
	_ Parser         = (*GoldmarkParser)(nil)
	_ TreeSerializer = (*Serializer)(nil)
)
