package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/goliatone/go-mdsync/cmd/mdsync/internal/bootstrap"
	"github.com/goliatone/go-mdsync/internal/markdown"
	"github.com/goliatone/go-mdsync/internal/syntax"
	"github.com/goliatone/go-mdsync/internal/view"
)

var (
	moduleBuilder           = bootstrap.BuildModule
	stdout        io.Writer = os.Stdout
)

type output struct {
	Path        string               `json:"path"`
	Model       *view.Model          `json:"model"`
	Tree        *syntax.Node         `json:"tree,omitempty"`
	FrontMatter map[string]any       `json:"front_matter,omitempty"`
	Diagnostics markdown.Diagnostics `json:"diagnostics,omitempty"`
}

func main() {
	if err := runView(os.Args[1:]); err != nil {
		log.Fatalf("mdsync view: %v", err)
	}
}

func runView(args []string) error {
	fs := flag.NewFlagSet("mdsync-view", flag.ExitOnError)
	opts := bootstrap.RegisterFlags(fs)
	withTree := fs.Bool("tree", false, "Include the syntax tree with source spans")
	compact := fs.Bool("compact", false, "Print JSON on a single line")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("expected exactly one markdown file, got %d", fs.NArg())
	}
	path := fs.Arg(0)

	module, err := moduleBuilder(*opts)
	if err != nil {
		return fmt.Errorf("bootstrap module: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	tree, diags := module.Parse(string(data))
	model := view.Project(tree)
	model.Version = 1
	out := output{Path: path, Model: model, Diagnostics: diags}
	if *withTree {
		out.Tree = tree
	}
	if tree.Literal != "" {
		if values, err := markdown.DecodeFrontMatter(tree.Literal); err == nil {
			out.FrontMatter = values
		}
	}

	encoder := json.NewEncoder(stdout)
	if !*compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(out)
}
