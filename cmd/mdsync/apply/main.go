package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/goliatone/go-mdsync/cmd/mdsync/internal/bootstrap"
	"github.com/goliatone/go-mdsync/internal/commands"
	"github.com/goliatone/go-mdsync/internal/commands/editor"
	"github.com/goliatone/go-mdsync/internal/ops"
)

var (
	moduleBuilder           = bootstrap.BuildModule
	stdin         io.Reader = os.Stdin
	stdout        io.Writer = os.Stdout
)

func main() {
	if err := runApply(os.Args[1:]); err != nil {
		log.Fatalf("mdsync apply: %v", err)
	}
}

func runApply(args []string) error {
	fs := flag.NewFlagSet("mdsync-apply", flag.ExitOnError)
	opts := bootstrap.RegisterFlags(fs)
	opsPath := fs.String("ops", "-", "JSON file holding an operation or a list of operations (- reads stdin)")
	separate := fs.Bool("separate", false, "Submit each operation as its own version instead of one batch")
	baseVersion := fs.Int64("base-version", 0, "Version the operations were computed against")
	printText := fs.Bool("print", false, "Print the resulting document text")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("expected exactly one markdown file, got %d", fs.NArg())
	}

	operations, err := readOperations(*opsPath)
	if err != nil {
		return err
	}
	if len(operations) == 0 {
		return fmt.Errorf("no operations to apply")
	}

	module, err := moduleBuilder(*opts)
	if err != nil {
		return fmt.Errorf("bootstrap module: %w", err)
	}
	ctx := context.Background()
	doc, err := module.Open(ctx, fs.Arg(0), nil)
	if err != nil {
		return fmt.Errorf("open %s: %w", fs.Arg(0), err)
	}
	defer doc.Close(ctx)

	container := module.Container()
	handlers, err := editor.RegisterEditorCommands(nil, doc.Controller, container.LoggerProvider(),
		editor.WithSubmitOptions(commands.WithTimeout[editor.SubmitOperationCommand](container.Config.Commands.Timeout)),
	)
	if err != nil {
		return err
	}

	batches := []ops.Operation{ops.Batch(operations...)}
	if *separate || len(operations) == 1 {
		batches = operations
	}
	var version int64
	for i, op := range batches {
		err := handlers.Submit.Execute(ctx, editor.SubmitOperationCommand{
			RequestID:   fmt.Sprintf("apply-%d", i+1),
			BaseVersion: *baseVersion,
			Operation:   op,
			Result:      func(o editor.Outcome) { version = o.Version },
		})
		if err != nil {
			return fmt.Errorf("apply operation %d: %w", i+1, err)
		}
	}

	if *printText {
		fmt.Fprintln(stdout, doc.CurrentText())
		return nil
	}
	fmt.Fprintf(stdout, "%s: version %d, %d operation(s) applied\n", doc.File().Path(), version, len(operations))
	return nil
}

// readOperations accepts a single operation object or an array of them.
func readOperations(path string) ([]ops.Operation, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read operations: %w", err)
	}

	var list []ops.Operation
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var single ops.Operation
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("decode operations: %w", err)
	}
	return []ops.Operation{single}, nil
}
