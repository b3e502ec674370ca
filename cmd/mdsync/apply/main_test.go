package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-mdsync/internal/controller"
)

func setup(t *testing.T, text, operations string) (string, *bytes.Buffer) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.md")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	var out bytes.Buffer
	originalIn, originalOut := stdin, stdout
	stdin, stdout = strings.NewReader(operations), &out
	t.Cleanup(func() { stdin, stdout = originalIn, originalOut })
	return path, &out
}

func TestRunApplyBatchesOperations(t *testing.T) {
	path, out := setup(t, "# Title\n\nHello", `[
		{"kind":"text_edit","path":[1,0],"range":{"start":5,"end":5},"text":" world"},
		{"kind":"text_edit","path":[0,0],"range":{"start":0,"end":5},"text":"Greeting"}
	]`)

	if err := runApply([]string{path}); err != nil {
		t.Fatalf("runApply returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "# Greeting\n\nHello world" {
		t.Fatalf("unexpected file contents %q", data)
	}
	if !strings.Contains(out.String(), "version 2, 2 operation(s)") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestRunApplySeparateVersions(t *testing.T) {
	path, out := setup(t, "a", `[
		{"kind":"text_edit","path":[0,0],"range":{"start":1,"end":1},"text":"b"},
		{"kind":"text_edit","path":[0,0],"range":{"start":2,"end":2},"text":"c"}
	]`)
	if err := runApply([]string{"-separate", "-print", path}); err != nil {
		t.Fatalf("runApply returned error: %v", err)
	}
	if strings.TrimSpace(out.String()) != "abc" {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestRunApplyReportsInvalidOperation(t *testing.T) {
	path, _ := setup(t, "# Title", `{"kind":"insert","path":[0],"index":0,"node":{"kind":"paragraph"}}`)

	err := runApply([]string{path})
	if !errors.Is(err, controller.ErrInvalidOperation) || !goerrors.IsCategory(err, goerrors.CategoryBadInput) {
		t.Fatalf("expected invalid operation, got %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "# Title" {
		t.Fatalf("file changed on failure: %q", data)
	}
}
