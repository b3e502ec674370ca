// Package textpatch computes, applies and rebases character-granular patches
// between two versions of a text.
package textpatch

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"
)

var (
	// ErrInvalidPatch is returned when a patch does not fit the text it is
	// applied to.
	ErrInvalidPatch = errors.New("textpatch: invalid patch")
	// ErrConflict is returned when two patches touch overlapping ranges.
	ErrConflict = errors.New("textpatch: conflicting edits")
)

// Edit replaces the bytes [Start, End) of the original text.
type Edit struct {
	Start       int    `json:"start"`
	End         int    `json:"end"`
	Replacement string `json:"replacement"`
}

// Delta is the change in length the edit causes.
func (e Edit) Delta() int {
	return len(e.Replacement) - (e.End - e.Start)
}

// Patch is an ordered list of non-overlapping edits sorted by Start. Every
// offset refers to the text before any edit is applied.
type Patch []Edit

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return len(p) == 0
}

// Size returns the number of bytes removed plus the bytes inserted.
func (p Patch) Size() int {
	total := 0
	for _, e := range p {
		total += e.End - e.Start + len(e.Replacement)
	}
	return total
}

// Validate checks ordering and bounds against a text of length n.
func (p Patch) Validate(n int) error {
	prev := 0
	for i, e := range p {
		if e.Start < prev || e.End < e.Start || e.End > n {
			return fmt.Errorf("%w: edit %d [%d,%d) with text length %d", ErrInvalidPatch, i, e.Start, e.End, n)
		}
		prev = e.End
	}
	return nil
}

// Apply returns text with the patch applied.
func Apply(text string, p Patch) (string, error) {
	if err := p.Validate(len(text)); err != nil {
		return "", err
	}
	var b strings.Builder
	b.Grow(len(text) + p.Size())
	cursor := 0
	for _, e := range p {
		b.WriteString(text[cursor:e.Start])
		b.WriteString(e.Replacement)
		cursor = e.End
	}
	b.WriteString(text[cursor:])
	return b.String(), nil
}

// Compute returns a patch turning oldText into newText. Lines are aligned
// first; each changed region is then narrowed to the characters that differ.
func Compute(oldText, newText string) Patch {
	if oldText == newText {
		return nil
	}
	prefix := commonPrefix(oldText, newText)
	suffix := commonSuffix(oldText[prefix:], newText[prefix:])
	oldMid := oldText[prefix : len(oldText)-suffix]
	newMid := newText[prefix : len(newText)-suffix]

	if !strings.Contains(oldMid, "\n") || !strings.Contains(newMid, "\n") {
		return Patch{{Start: prefix, End: prefix + len(oldMid), Replacement: newMid}}
	}

	oldLines, newLines := splitLines(oldMid), splitLines(newMid)
	oldOffsets := offsets(oldLines)
	newOffsets := offsets(newLines)

	matcher := difflib.NewMatcherWithJunk(oldLines, newLines, false, nil)
	var out Patch
	for _, code := range matcher.GetOpCodes() {
		if code.Tag == 'e' {
			continue
		}
		removed := oldMid[oldOffsets[code.I1]:oldOffsets[code.I2]]
		added := newMid[newOffsets[code.J1]:newOffsets[code.J2]]
		head := commonPrefix(removed, added)
		tail := commonSuffix(removed[head:], added[head:])
		start := prefix + oldOffsets[code.I1] + head
		out = append(out, Edit{
			Start:       start,
			End:         prefix + oldOffsets[code.I2] - tail,
			Replacement: added[head : len(added)-tail],
		})
	}
	return out
}

// Rebase transforms p, computed against some base text, so it applies to the
// text obtained by applying over to that same base. Edits that overlap an
// edit of over fail with ErrConflict. Insertions at the same offset order the
// edits of over first.
func Rebase(p, over Patch) (Patch, error) {
	out := make(Patch, 0, len(p))
	for _, e := range p {
		shift := 0
		for _, o := range over {
			if overlaps(e, o) {
				return nil, fmt.Errorf("%w: [%d,%d) against [%d,%d)", ErrConflict, e.Start, e.End, o.Start, o.End)
			}
			if o.End <= e.Start {
				shift += o.Delta()
			}
		}
		out = append(out, Edit{Start: e.Start + shift, End: e.End + shift, Replacement: e.Replacement})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}

// Unified renders the change from oldText to newText as a unified diff.
func Unified(name, oldText, newText string, context int) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldText),
		B:        difflib.SplitLines(newText),
		FromFile: name,
		ToFile:   name,
		Context:  context,
	})
	if err != nil {
		return ""
	}
	return diff
}

func overlaps(a, b Edit) bool {
	if a.Start < b.End && b.Start < a.End {
		return true
	}
	// An insertion strictly inside the other range.
	if a.Start == a.End && b.Start < a.Start && a.Start < b.End {
		return true
	}
	if b.Start == b.End && a.Start < b.Start && b.Start < a.End {
		return true
	}
	return false
}

func splitLines(s string) []string {
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func offsets(lines []string) []int {
	out := make([]int, len(lines)+1)
	for i, line := range lines {
		out[i+1] = out[i] + len(line)
	}
	return out
}

func commonPrefix(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	for n > 0 && n < len(a) && !utf8.RuneStart(a[n]) {
		n--
	}
	for n > 0 && n < len(b) && !utf8.RuneStart(b[n]) {
		n--
	}
	return n
}

func commonSuffix(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[len(a)-1-n] == b[len(b)-1-n] {
		n++
	}
	for n > 0 && n < len(a) && !utf8.RuneStart(a[len(a)-n]) {
		n--
	}
	for n > 0 && n < len(b) && !utf8.RuneStart(b[len(b)-n]) {
		n--
	}
	return n
}
