package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestRunViewPrintsModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.md")
	if err := os.WriteFile(path, []byte("---\ntitle: Hi\n---\n# Hello\n\nSee [docs](https://example.com)."), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	var buf bytes.Buffer
	original := stdout
	stdout = &buf
	defer func() { stdout = original }()

	if err := runView([]string{"-tree", path}); err != nil {
		t.Fatalf("runView returned error: %v", err)
	}

	var got struct {
		Model struct {
			Version int64 `json:"version"`
			Root    struct {
				Children []struct {
					Attrs struct {
						Tag    string `json:"tag"`
						Anchor string `json:"anchor"`
					} `json:"attrs"`
				} `json:"children"`
			} `json:"root"`
		} `json:"model"`
		Tree        map[string]any `json:"tree"`
		FrontMatter map[string]any `json:"front_matter"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode output: %v\n%s", err, buf.String())
	}
	if got.Model.Version != 1 || len(got.Model.Root.Children) != 2 {
		t.Fatalf("unexpected model %+v", got.Model)
	}
	if heading := got.Model.Root.Children[0].Attrs; heading.Tag != "h1" || heading.Anchor != "hello" {
		t.Fatalf("unexpected heading attrs %+v", heading)
	}
	if got.Tree == nil {
		t.Fatal("expected the syntax tree to be included")
	}
	if got.FrontMatter["title"] != "Hi" {
		t.Fatalf("unexpected front matter %v", got.FrontMatter)
	}
}

func TestRunViewRequiresOneFile(t *testing.T) {
	if err := runView(nil); err == nil {
		t.Fatal("expected missing file to fail")
	}
}
