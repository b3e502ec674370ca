package bootstrap

import (
	"errors"
	"flag"
	"testing"

	mdsync "github.com/goliatone/go-mdsync"
)

func TestRegisterFlagsParsesSharedOptions(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	opts := RegisterFlags(fs)
	if err := fs.Parse([]string{"-log-provider", "console", "-extensions", "table, strikethrough", "-front-matter=false"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opts.LogProvider != "console" || opts.FrontMatter {
		t.Fatalf("unexpected options %+v", opts)
	}
	if len(opts.Extensions) != 2 || opts.Extensions[1] != "strikethrough" {
		t.Fatalf("unexpected extensions %v", opts.Extensions)
	}
}

func TestBuildModuleValidatesLogging(t *testing.T) {
	_, err := BuildModule(Options{LogProvider: "syslog"})
	if !errors.Is(err, mdsync.ErrLoggingProviderUnknown) {
		t.Fatalf("expected ErrLoggingProviderUnknown, got %v", err)
	}
	module, err := BuildModule(Options{LogProvider: "console", LogLevel: "warn", Bridge: true})
	if err != nil {
		t.Fatalf("BuildModule returned error: %v", err)
	}
	cfg := module.Container().Config
	if !cfg.Features.Logger || !cfg.Bridge.Enabled || cfg.Bridge.Path != "/ws" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestSplitList(t *testing.T) {
	if got := SplitList(" "); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
	if got := SplitList("a,,b "); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected list %v", got)
	}
}
