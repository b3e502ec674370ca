package di

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/goliatone/go-mdsync/internal/bridge"
	"github.com/goliatone/go-mdsync/internal/commands/editor"
	"github.com/goliatone/go-mdsync/internal/controller"
	"github.com/goliatone/go-mdsync/internal/history"
	"github.com/goliatone/go-mdsync/internal/host"
	"github.com/goliatone/go-mdsync/internal/logging"
	"github.com/goliatone/go-mdsync/internal/logging/console"
	"github.com/goliatone/go-mdsync/internal/logging/gologger"
	"github.com/goliatone/go-mdsync/internal/markdown"
	"github.com/goliatone/go-mdsync/internal/ops"
	"github.com/goliatone/go-mdsync/internal/runtimeconfig"
	"github.com/goliatone/go-mdsync/pkg/interfaces"
)

// Container wires the parser, serializer, engine and logging shared by every
// document a module opens.
type Container struct {
	Config runtimeconfig.Config

	loggerProvider interfaces.LoggerProvider
	parser         *markdown.GoldmarkParser
	serializer     *markdown.Serializer
	engine         *ops.Engine
	registry       editor.CommandRegistry
}

// Option mutates the container before it is finalised.
type Option func(*Container)

// WithLoggerProvider overrides the provider built from the logging config.
func WithLoggerProvider(provider interfaces.LoggerProvider) Option {
	return func(c *Container) {
		c.loggerProvider = provider
	}
}

// WithParser overrides the goldmark parser built from the markdown config.
func WithParser(parser *markdown.GoldmarkParser) Option {
	return func(c *Container) {
		c.parser = parser
	}
}

// WithSerializer overrides the canonical serializer.
func WithSerializer(serializer *markdown.Serializer) Option {
	return func(c *Container) {
		c.serializer = serializer
	}
}

// WithEngine overrides the operation engine.
func WithEngine(engine *ops.Engine) Option {
	return func(c *Container) {
		c.engine = engine
	}
}

// WithCommandRegistry registers editor handlers built for bridged documents.
func WithCommandRegistry(reg editor.CommandRegistry) Option {
	return func(c *Container) {
		c.registry = reg
	}
}

// NewContainer creates a container with the provided configuration.
func NewContainer(cfg runtimeconfig.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Container{Config: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if err := c.configureLoggerProvider(); err != nil {
		return nil, err
	}
	if c.parser == nil {
		c.parser = markdown.NewGoldmarkParser(markdown.ParseOptions{
			Extensions:  cfg.Markdown.Extensions,
			FrontMatter: cfg.Markdown.FrontMatter,
		})
	}
	if c.serializer == nil {
		c.serializer = markdown.NewSerializer()
	}
	if c.engine == nil {
		c.engine = ops.NewEngine()
	}

	logging.ModuleLogger(c.loggerProvider, "mdsync").Debug("container.configured",
		"logging", c.loggerName(),
		"front_matter", cfg.Markdown.FrontMatter,
		"extensions", len(cfg.Markdown.Extensions),
		"bridge", cfg.Features.Bridge,
	)
	return c, nil
}

func (c *Container) configureLoggerProvider() error {
	if c.loggerProvider != nil || !c.Config.Features.Logger {
		return nil
	}
	logCfg := c.Config.Logging
	switch strings.ToLower(strings.TrimSpace(logCfg.Provider)) {
	case "gologger":
		provider, err := gologger.NewProvider(gologger.Config{
			Level:     logCfg.Level,
			Format:    logCfg.Format,
			AddSource: logCfg.AddSource,
			Focus:     logCfg.Focus,
		})
		if err != nil {
			return fmt.Errorf("di: configure go-logger: %w", err)
		}
		c.loggerProvider = provider
	default:
		opts := console.Options{
			Writer: os.Stderr,
			Format: console.Format(strings.ToLower(strings.TrimSpace(logCfg.Format))),
			Focus:  logCfg.Focus,
		}
		if strings.TrimSpace(logCfg.Level) != "" {
			level := console.ParseLevel(logCfg.Level)
			opts.Level = &level
		}
		c.loggerProvider = console.NewProvider(opts)
	}
	return nil
}

func (c *Container) loggerName() string {
	switch c.loggerProvider.(type) {
	case nil:
		return "noop"
	case *gologger.Provider:
		return "gologger"
	case *console.Provider:
		return "console"
	default:
		return "custom"
	}
}

// LoggerProvider returns the configured provider, nil when logging is off.
func (c *Container) LoggerProvider() interfaces.LoggerProvider { return c.loggerProvider }

// Parser returns the shared parser.
func (c *Container) Parser() *markdown.GoldmarkParser { return c.parser }

// Serializer returns the shared serializer.
func (c *Container) Serializer() *markdown.Serializer { return c.serializer }

// Engine returns the shared operation engine.
func (c *Container) Engine() *ops.Engine { return c.engine }

// ControllerConfig maps the sync section onto controller settings.
func (c *Container) ControllerConfig() controller.Config {
	return controller.Config{
		CoalesceWindow:  c.Config.Sync.CoalesceWindow,
		QueueSize:       c.Config.Sync.QueueSize,
		MaxUndoEntries:  c.Config.Sync.MaxUndoEntries,
		VerifyRoundTrip: c.Config.Sync.VerifyRoundTrip,
	}
}

// NewHistory builds an undo manager for one document.
func (c *Container) NewHistory() *history.Manager {
	return history.NewManager(c.Config.Sync.MaxUndoEntries,
		history.WithLogger(logging.HistoryLogger(c.loggerProvider)),
	)
}

// ControllerOptions returns the options binding a controller to the shared
// components and to the document at path.
func (c *Container) ControllerOptions(path string, id uuid.UUID) []controller.Option {
	return []controller.Option{
		controller.WithParser(c.parser),
		controller.WithSerializer(c.serializer),
		controller.WithEngine(c.engine),
		controller.WithHistory(c.NewHistory()),
		controller.WithLogger(logging.ControllerLogger(c.loggerProvider)),
		controller.WithDocument(path, id),
	}
}

// NewFileHost builds the file host for path.
func (c *Container) NewFileHost(path string) (*host.File, error) {
	level := strings.ToLower(strings.TrimSpace(c.Config.Logging.Level))
	return host.NewFile(path,
		host.WithLogger(logging.HostLogger(c.loggerProvider)),
		host.WithUnifiedDiffs(level == "debug" || level == "trace"),
	)
}

// NewBridge builds an unbound websocket bridge.
func (c *Container) NewBridge(opts ...bridge.Option) *bridge.Server {
	base := []bridge.Option{
		bridge.WithLoggerProvider(c.loggerProvider),
		bridge.WithCommandRegistry(c.registry),
	}
	return bridge.NewServer(append(base, opts...)...)
}

// MarkdownService builds a service reading files under basePath.
func (c *Container) MarkdownService(basePath string, recursive bool) (*markdown.Service, error) {
	return markdown.NewService(markdown.Config{
		BasePath:  basePath,
		Pattern:   c.Config.Markdown.Pattern,
		Recursive: recursive,
		Parser: markdown.ParseOptions{
			Extensions:  c.Config.Markdown.Extensions,
			FrontMatter: c.Config.Markdown.FrontMatter,
		},
	}, markdown.WithServiceLogger(logging.ParserLogger(c.loggerProvider)))
}
