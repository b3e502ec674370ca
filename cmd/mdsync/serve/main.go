package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mdsync "github.com/goliatone/go-mdsync"
	"github.com/goliatone/go-mdsync/cmd/mdsync/internal/bootstrap"
	"github.com/goliatone/go-mdsync/internal/bridge"
	"github.com/goliatone/go-mdsync/internal/logging"
)

var moduleBuilder = bootstrap.BuildModule

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := runServe(ctx, os.Args[1:]); err != nil {
		log.Fatalf("mdsync serve: %v", err)
	}
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("mdsync-serve", flag.ExitOnError)
	opts := bootstrap.RegisterFlags(fs)
	fs.StringVar(&opts.BridgeAddr, "addr", "", "Listen address (defaults to the bridge config)")
	fs.StringVar(&opts.BridgePath, "path", "", "Websocket path (defaults to the bridge config)")
	fs.DurationVar(&opts.CoalesceWindow, "coalesce", 0, "Delay each sync pass to batch bursts of edits")
	allowAnyOrigin := fs.Bool("allow-any-origin", false, "Accept websocket upgrades from any origin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("expected exactly one markdown file, got %d", fs.NArg())
	}
	opts.Bridge = true

	module, err := moduleBuilder(*opts)
	if err != nil {
		return fmt.Errorf("bootstrap module: %w", err)
	}
	var bridgeOpts []bridge.Option
	if *allowAnyOrigin {
		bridgeOpts = append(bridgeOpts, bridge.WithCheckOrigin(func(*http.Request) bool { return true }))
	}

	session, err := start(ctx, module, fs.Arg(0), bridgeOpts...)
	if err != nil {
		return err
	}
	defer session.close()

	cfg := module.Container().Config.Bridge
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           session.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger := logging.BridgeLogger(module.Container().LoggerProvider())
	errCh := make(chan error, 1)
	go func() {
		logger.Info("bridge.listening", "addr", cfg.Addr, "path", cfg.Path)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type session struct {
	doc    *mdsync.Document
	server *bridge.Server
	mux    *http.ServeMux
	stop   context.CancelFunc
}

// start opens path behind the bridge and watches the file for foreign edits.
func start(ctx context.Context, module *mdsync.Module, path string, opts ...bridge.Option) (*session, error) {
	doc, server, err := module.Serve(ctx, path, opts...)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	watchCtx, stop := context.WithCancel(ctx)
	go func() {
		if err := doc.Watch(watchCtx); err != nil {
			logging.HostLogger(module.Container().LoggerProvider()).Warn("host.watch.stopped", "error", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle(module.Container().Config.Bridge.Path, server)
	return &session{doc: doc, server: server, mux: mux, stop: stop}, nil
}

func (s *session) close() {
	s.stop()
	s.server.Close()
	_ = s.doc.Close(context.Background())
}
