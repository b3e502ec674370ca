package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/adrg/frontmatter"
)

// FrontMatter is the metadata block found at the top of a Markdown source.
// Raw holds the block verbatim (delimiters included) so it can be written back
// unchanged; Values holds the decoded keys.
type FrontMatter struct {
	Raw    string
	Values map[string]any
}

// SplitFrontMatter detects a leading YAML (---) or TOML (+++) front matter
// block. ok is false when the text carries no front matter; err reports a
// block that was found but could not be decoded.
func SplitFrontMatter(text string) (fm FrontMatter, ok bool, err error) {
	if !hasFrontMatterDelimiter(text) {
		return FrontMatter{}, false, nil
	}

	values := map[string]any{}
	body, err := frontmatter.Parse(strings.NewReader(text), &values)
	if err != nil {
		return FrontMatter{}, false, fmt.Errorf("parse frontmatter: %w", err)
	}
	if len(body) == len(text) || !bytes.HasSuffix([]byte(text), body) {
		return FrontMatter{}, false, nil
	}

	return FrontMatter{
		Raw:    text[:len(text)-len(body)],
		Values: values,
	}, true, nil
}

// DecodeFrontMatter decodes a raw block previously returned by SplitFrontMatter.
func DecodeFrontMatter(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	fm, ok, err := SplitFrontMatter(raw)
	if err != nil || !ok {
		return nil, err
	}
	return cloneMap(fm.Values), nil
}

func hasFrontMatterDelimiter(text string) bool {
	for _, delim := range []string{"---", "+++"} {
		if strings.HasPrefix(text, delim+"\n") || strings.HasPrefix(text, delim+"\r\n") {
			return true
		}
	}
	return false
}

func cloneMap(input map[string]any) map[string]any {
	if input == nil {
		return map[string]any{}
	}

	out := make(map[string]any, len(input))
	for key, value := range input {
		out[key] = value
	}
	return out
}
