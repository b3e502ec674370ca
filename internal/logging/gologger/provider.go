// Package gologger plugs github.com/goliatone/go-logger into the sync engine's
// logging contracts.
package gologger

import (
	"context"
	"fmt"
	"strings"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-mdsync/internal/logging"
	"github.com/goliatone/go-mdsync/pkg/interfaces"
)

// Config mirrors the logging section of the runtime configuration.
type Config struct {
	Level     string
	Format    string
	AddSource bool
	Focus     []string
}

// Provider hands out go-logger children named after engine modules.
type Provider struct {
	root *glog.BaseLogger
}

var _ interfaces.LoggerProvider = (*Provider)(nil)

var levels = map[string]string{
	"trace":   glog.Trace,
	"debug":   glog.Debug,
	"info":    glog.Info,
	"warn":    glog.Warn,
	"warning": glog.Warn,
	"error":   glog.Error,
	"fatal":   glog.Fatal,
}

// NewProvider builds a go-logger root from cfg. Formats are json (default),
// console and pretty.
func NewProvider(cfg Config) (*Provider, error) {
	var options []glog.Option

	level := strings.ToLower(strings.TrimSpace(cfg.Level))
	if level != "" {
		mapped, ok := levels[level]
		if !ok {
			return nil, fmt.Errorf("gologger: unknown level %q", cfg.Level)
		}
		options = append(options, glog.WithLevel(mapped))
	}

	switch format := strings.ToLower(strings.TrimSpace(cfg.Format)); format {
	case "", "json":
		options = append(options, glog.WithLoggerTypeJSON())
	case "console", "text":
		options = append(options, glog.WithLoggerTypeConsole())
	case "pretty":
		options = append(options, glog.WithLoggerTypePretty())
	default:
		return nil, fmt.Errorf("gologger: unknown format %q", cfg.Format)
	}

	if cfg.AddSource {
		options = append(options, glog.WithAddSource(true))
	}

	root := glog.NewLogger(options...)
	var focus []string
	for _, name := range cfg.Focus {
		if name = strings.TrimSpace(name); name != "" {
			focus = append(focus, name)
		}
	}
	if len(focus) > 0 {
		root.Focus(focus...)
	}
	return &Provider{root: root}, nil
}

// GetLogger returns the child logger for name, or the root for an empty name.
func (p *Provider) GetLogger(name string) interfaces.Logger {
	if p == nil || p.root == nil {
		return logging.NoOp()
	}
	if name = strings.TrimSpace(name); name == "" {
		return adapt(p.root)
	}
	return adapt(p.root.GetLogger(name))
}

func adapt(inner glog.Logger) interfaces.Logger {
	if inner == nil {
		return logging.NoOp()
	}
	return adapter{inner: inner}
}

type adapter struct {
	inner glog.Logger
}

func (a adapter) Trace(msg string, args ...any) { a.inner.Trace(msg, args...) }
func (a adapter) Debug(msg string, args ...any) { a.inner.Debug(msg, args...) }
func (a adapter) Info(msg string, args ...any)  { a.inner.Info(msg, args...) }
func (a adapter) Warn(msg string, args ...any)  { a.inner.Warn(msg, args...) }
func (a adapter) Error(msg string, args ...any) { a.inner.Error(msg, args...) }
func (a adapter) Fatal(msg string, args ...any) { a.inner.Fatal(msg, args...) }

// WithFields attaches fields when the go-logger child supports them and is a
// no-op otherwise.
func (a adapter) WithFields(fields map[string]any) interfaces.Logger {
	with, ok := a.inner.(glog.FieldsLogger)
	if !ok || len(fields) == 0 {
		return a
	}
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return adapt(with.WithFields(copied))
}

func (a adapter) WithContext(ctx context.Context) interfaces.Logger {
	if ctx == nil {
		return a
	}
	return adapt(a.inner.WithContext(ctx))
}
