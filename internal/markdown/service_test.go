package markdown

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestServiceLoad(t *testing.T) {
	svc := newTestService(t, true)

	doc, err := svc.Load(context.Background(), "notes/today.md")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if doc.File.Path != "notes/today.md" {
		t.Fatalf("unexpected path %s", doc.File.Path)
	}
	if doc.File.Checksum == 0 {
		t.Fatalf("expected checksum to be populated")
	}
	if doc.FrontMatter["title"] != "Today" {
		t.Fatalf("expected decoded front matter, got %#v", doc.FrontMatter)
	}
	if len(doc.Tree.Children) != 2 {
		t.Fatalf("expected heading and paragraph, got %d blocks", len(doc.Tree.Children))
	}
}

func TestServiceLoadDirectory(t *testing.T) {
	svc := newTestService(t, true)

	docs, err := svc.LoadDirectory(context.Background(), ".")
	if err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].File.Path != "notes/today.md" || docs[1].File.Path != "readme.md" {
		t.Fatalf("expected sorted paths, got %s, %s", docs[0].File.Path, docs[1].File.Path)
	}
}

func TestServiceLoadDirectory_NonRecursive(t *testing.T) {
	svc := newTestService(t, false)

	docs, err := svc.LoadDirectory(context.Background(), ".")
	if err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}
	if len(docs) != 1 || docs[0].File.Path != "readme.md" {
		t.Fatalf("expected only the root document, got %d", len(docs))
	}
}

func TestServiceFormat(t *testing.T) {
	svc := newTestService(t, true)

	got, diags, err := svc.Format(context.Background(), "Title\n=====\n\n* a\n* b\n")
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics %v", diags)
	}
	if want := "# Title\n\n- a\n- b"; got != want {
		t.Fatalf("unexpected canonical text\nwant: %q\ngot:  %q", want, got)
	}
}

func TestServiceFormat_HonoursContext(t *testing.T) {
	svc := newTestService(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := svc.Format(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestRoundTripErrorUnwraps(t *testing.T) {
	err := error(&RoundTripError{Offset: 3})
	if !errors.Is(err, ErrRoundTrip) {
		t.Fatalf("expected ErrRoundTrip, got %v", err)
	}
}

func newTestService(tb testing.TB, recursive bool) *Service {
	tb.Helper()

	base := tb.TempDir()
	writeFile(tb, filepath.Join(base, "readme.md"), "# Readme\n\nTop level.")
	writeFile(tb, filepath.Join(base, "notes", "today.md"), "---\ntitle: Today\n---\n# Today\n\nNotes.")
	writeFile(tb, filepath.Join(base, "notes", "skip.txt"), "not markdown")

	svc, err := NewService(Config{
		BasePath:  base,
		Pattern:   "*.md",
		Recursive: recursive,
		Parser:    ParseOptions{FrontMatter: true},
	})
	if err != nil {
		tb.Fatalf("NewService: %v", err)
	}
	return svc
}

func writeFile(tb testing.TB, path, content string) {
	tb.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tb.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
}
