package bootstrap

import (
	"flag"
	"fmt"
	"strings"
	"time"

	mdsync "github.com/goliatone/go-mdsync"
	"github.com/goliatone/go-mdsync/internal/di"
	"github.com/goliatone/go-mdsync/pkg/interfaces"
)

// Options captures configuration shared by the mdsync commands.
type Options struct {
	LogProvider    string
	LogLevel       string
	LogFormat      string
	Extensions     []string
	FrontMatter    bool
	CoalesceWindow time.Duration
	Bridge         bool
	BridgeAddr     string
	BridgePath     string
	LoggerProvider interfaces.LoggerProvider
}

// RegisterFlags binds the shared flags to fs.
func RegisterFlags(fs *flag.FlagSet) *Options {
	opts := &Options{}
	fs.StringVar(&opts.LogProvider, "log-provider", "", "Logging provider (console or gologger); empty disables logging")
	fs.StringVar(&opts.LogLevel, "log-level", "info", "Log level")
	fs.StringVar(&opts.LogFormat, "log-format", "", "Log format (console: text/json, gologger: json/console/pretty)")
	fs.BoolVar(&opts.FrontMatter, "front-matter", true, "Treat a leading --- block as front matter")
	fs.Func("extensions", "Comma separated goldmark extensions (table, strikethrough, linkify, tasklist, gfm)", func(value string) error {
		opts.Extensions = SplitList(value)
		return nil
	})
	return opts
}

// BuildModule constructs a sync module from opts.
func BuildModule(opts Options) (*mdsync.Module, error) {
	cfg := mdsync.DefaultConfig()
	cfg.Markdown.FrontMatter = opts.FrontMatter
	cfg.Markdown.Extensions = append([]string(nil), opts.Extensions...)
	if opts.CoalesceWindow > 0 {
		cfg.Sync.CoalesceWindow = opts.CoalesceWindow
	}

	if provider := strings.TrimSpace(opts.LogProvider); provider != "" {
		cfg.Features.Logger = true
		cfg.Logging.Provider = provider
		cfg.Logging.Level = strings.TrimSpace(opts.LogLevel)
		cfg.Logging.Format = strings.TrimSpace(opts.LogFormat)
	}
	if opts.Bridge {
		cfg.Features.Bridge = true
		cfg.Bridge.Enabled = true
		if addr := strings.TrimSpace(opts.BridgeAddr); addr != "" {
			cfg.Bridge.Addr = addr
		}
		if path := strings.TrimSpace(opts.BridgePath); path != "" {
			cfg.Bridge.Path = path
		}
	}

	diOpts := []di.Option{}
	if opts.LoggerProvider != nil {
		diOpts = append(diOpts, di.WithLoggerProvider(opts.LoggerProvider))
	}
	module, err := mdsync.New(cfg, diOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise mdsync module: %w", err)
	}
	return module, nil
}

// SplitList parses a comma separated list into a trimmed slice.
func SplitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
