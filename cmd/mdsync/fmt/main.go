package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	mdsync "github.com/goliatone/go-mdsync"
	"github.com/goliatone/go-mdsync/cmd/mdsync/internal/bootstrap"
	"github.com/goliatone/go-mdsync/internal/textpatch"
)

var (
	moduleBuilder           = bootstrap.BuildModule
	stdout        io.Writer = os.Stdout
)

// errUnformatted is returned by -check when a file is not canonical.
var errUnformatted = errors.New("files are not in canonical form")

func main() {
	if err := runFormat(os.Args[1:]); err != nil {
		log.Fatalf("mdsync fmt: %v", err)
	}
}

func runFormat(args []string) error {
	fs := flag.NewFlagSet("mdsync-fmt", flag.ExitOnError)
	opts := bootstrap.RegisterFlags(fs)
	write := fs.Bool("w", false, "Write the canonical form back to each file")
	check := fs.Bool("check", false, "Report files that are not canonical and fail")
	diff := fs.Bool("d", false, "Print a unified diff instead of the canonical text")
	dir := fs.String("dir", "", "Format every markdown file below this directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	module, err := moduleBuilder(*opts)
	if err != nil {
		return fmt.Errorf("bootstrap module: %w", err)
	}
	ctx := context.Background()

	files, err := collect(ctx, module, *dir, fs.Args())
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no markdown files given")
	}

	unformatted := 0
	for _, f := range files {
		canonical, err := module.Format(f.text)
		if err != nil {
			return fmt.Errorf("format %s: %w", f.path, err)
		}
		if canonical == f.text {
			continue
		}
		unformatted++
		switch {
		case *check:
			fmt.Fprintln(stdout, f.path)
		case *diff:
			fmt.Fprint(stdout, textpatch.Unified(f.path, f.text, canonical, 3))
		case *write:
			file, err := module.Container().NewFileHost(f.path)
			if err != nil {
				return err
			}
			if err := file.SaveText(ctx, canonical, textpatch.Compute(f.text, canonical)); err != nil {
				return fmt.Errorf("write %s: %w", f.path, err)
			}
		default:
			fmt.Fprintln(stdout, canonical)
		}
	}
	if *check && unformatted > 0 {
		return fmt.Errorf("%w: %d", errUnformatted, unformatted)
	}
	return nil
}

type source struct {
	path string
	text string
}

func collect(ctx context.Context, module *mdsync.Module, dir string, paths []string) ([]source, error) {
	var out []source
	if dir != "" {
		svc, err := module.Container().MarkdownService(dir, true)
		if err != nil {
			return nil, err
		}
		docs, err := svc.LoadDirectory(ctx, ".")
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", dir, err)
		}
		for _, doc := range docs {
			out = append(out, source{path: filepath.Join(dir, doc.File.Path), text: doc.Text})
		}
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		out = append(out, source{path: path, text: string(data)})
	}
	return out, nil
}
