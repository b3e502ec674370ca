package markdown

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// escapeText escapes a Text literal so the inline parser reads it back as the
// same characters. Line-start hazards are handled per line by escapeLineStart.
func escapeText(literal string) string {
	if literal == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(literal) + 8)
	for i := 0; i < len(literal); i++ {
		c := literal[i]
		switch c {
		case '\r':
			continue
		case '\\', '*', '`', '[', ']', '<':
			b.WriteByte('\\')
		case '&':
			if isReference(literal[i+1:]) {
				b.WriteByte('\\')
			}
		case '_':
			if !(isWordBefore(literal, i) && isWordAfter(literal, i+1)) {
				b.WriteByte('\\')
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// isReference reports whether s, the text after an '&', reads as an entity
// or numeric character reference.
func isReference(s string) bool {
	i := 0
	if i < len(s) && s[i] == '#' {
		i++
		hex := i < len(s) && (s[i] == 'x' || s[i] == 'X')
		if hex {
			i++
		}
		digits := 0
		for i < len(s) && digits < 8 && (isDigit(s[i]) || (hex && isHexLetter(s[i]))) {
			i++
			digits++
		}
		return digits > 0 && i < len(s) && s[i] == ';'
	}
	for i < len(s) && i < 32 && (isDigit(s[i]) || isASCIILetter(s[i])) {
		i++
	}
	return i > 0 && isASCIILetter(s[0]) && i < len(s) && s[i] == ';'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexLetter(c byte) bool { return (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') }

func isASCIILetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

func isWordBefore(s string, i int) bool {
	if i == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isWordAfter(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// escapeLineStart neutralises characters that would open a block construct
// when they appear first on a paragraph line.
func escapeLineStart(line string) string {
	if line == "" {
		return line
	}
	switch line[0] {
	case '#', '-', '+', '=', '>', '~':
		return "\\" + line
	}
	digits := 0
	for digits < len(line) && digits < 10 && line[digits] >= '0' && line[digits] <= '9' {
		digits++
	}
	if digits > 0 && digits < len(line) && (line[digits] == '.' || line[digits] == ')') {
		return line[:digits] + "\\" + line[digits:]
	}
	return line
}

// escapeHeadingEnd escapes a trailing run of '#' so it is not read as the
// optional ATX closing sequence.
func escapeHeadingEnd(content string) string {
	end := len(content)
	start := end
	for start > 0 && content[start-1] == '#' {
		start--
	}
	if start == end {
		return content
	}
	return content[:start] + "\\" + content[start:]
}

// formatDestination renders a link destination that parses back to target.
func formatDestination(target string) string {
	if target == "" {
		return ""
	}
	if isPlainDestination(target) {
		return target
	}
	if !strings.ContainsAny(target, "<>\n\r") && !strings.HasSuffix(target, "\\") {
		return "<" + target + ">"
	}
	var b strings.Builder
	for i := 0; i < len(target); i++ {
		c := target[i]
		switch {
		case c == ' ':
			b.WriteString("%20")
		case c == '<':
			b.WriteString("%3C")
		case c == '>':
			b.WriteString("%3E")
		case c == '(':
			b.WriteString("%28")
		case c == ')':
			b.WriteString("%29")
		case c == '\\':
			b.WriteString("%5C")
		case c < 0x20 || c == 0x7f:
			b.WriteString("%")
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0f])
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

const hexDigits = "0123456789ABCDEF"

// isPlainDestination reports whether target can be written without angle
// brackets: no spaces or control characters, balanced parentheses and no
// dangling backslash.
func isPlainDestination(target string) bool {
	if target[0] == '<' {
		return false
	}
	depth := 0
	for i := 0; i < len(target); i++ {
		c := target[i]
		switch {
		case c == '\\':
			if i == len(target)-1 {
				return false
			}
			i++
		case c <= ' ' || c == 0x7f:
			return false
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

// formatTitle renders a link title including its leading space.
func formatTitle(title string) string {
	if title == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString(` "`)
	for i := 0; i < len(title); i++ {
		c := title[i]
		switch c {
		case '\\', '"':
			b.WriteByte('\\')
		case '\n', '\r':
			c = ' '
		}
		b.WriteByte(c)
	}
	b.WriteByte('"')
	return b.String()
}

// formatCodeSpan wraps literal in a backtick fence longer than any run it
// contains, padding with a space where the content would otherwise touch the
// fence or lose a leading and trailing space.
func formatCodeSpan(literal string) string {
	literal = strings.ReplaceAll(literal, "\r", "")
	literal = strings.ReplaceAll(literal, "\n", " ")
	if literal == "" {
		return ""
	}
	fence := strings.Repeat("`", longestRun(literal, '`')+1)
	pad := strings.HasPrefix(literal, "`") || strings.HasSuffix(literal, "`")
	if !pad && len(literal) >= 2 && literal[0] == ' ' && literal[len(literal)-1] == ' ' && strings.Trim(literal, " ") != "" {
		pad = true
	}
	if pad {
		return fence + " " + literal + " " + fence
	}
	return fence + literal + fence
}

func longestRun(s string, c byte) int {
	longest, run := 0, 0
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			run++
			if run > longest {
				longest = run
			}
			continue
		}
		run = 0
	}
	return longest
}
