package runtimeconfig

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrLoggingProviderRequired = errors.New("mdsync config: logging provider is required when logging feature is enabled")
	ErrLoggingProviderUnknown  = errors.New("mdsync config: logging provider is invalid")
	ErrLoggingLevelInvalid     = errors.New("mdsync config: logging level is invalid")
	ErrLoggingFormatInvalid    = errors.New("mdsync config: logging format is invalid")
	// ErrQueueSizeInvalid rejects a negative view queue bound.
	ErrQueueSizeInvalid = errors.New("mdsync config: sync queue size must be zero or positive")
	// ErrUndoLimitInvalid rejects a negative undo bound.
	ErrUndoLimitInvalid = errors.New("mdsync config: max undo entries must be zero or positive")
	// ErrCoalesceWindowInvalid rejects a negative debounce window.
	ErrCoalesceWindowInvalid = errors.New("mdsync config: coalesce window must be zero or positive")
	// ErrBridgeFeatureRequired flags bridge settings without the feature.
	ErrBridgeFeatureRequired = errors.New("mdsync config: bridge feature must be enabled to configure the bridge")
	// ErrBridgeAddrRequired flags an enabled bridge without a listen address.
	ErrBridgeAddrRequired = errors.New("mdsync config: bridge address is required when the bridge is enabled")
	// ErrBridgePathInvalid flags a websocket path that is not absolute.
	ErrBridgePathInvalid = errors.New("mdsync config: bridge path must start with /")
	// ErrCommandTimeoutInvalid rejects a negative command timeout.
	ErrCommandTimeoutInvalid = errors.New("mdsync config: command timeout must be zero or positive")
)

// Config aggregates the settings of a sync module. Fields use plain types so
// host applications can fill them from any configuration source.
type Config struct {
	Logging  LoggingConfig
	Sync     SyncConfig
	Markdown MarkdownConfig
	Bridge   BridgeConfig
	Commands CommandsConfig
	Features Features
}

// LoggingConfig captures provider specific options for runtime logging.
type LoggingConfig struct {
	Provider  string
	Level     string
	Format    string
	AddSource bool
	Focus     []string
}

// SyncConfig tunes the synchronization controller.
type SyncConfig struct {
	CoalesceWindow  time.Duration
	QueueSize       int
	MaxUndoEntries  int
	VerifyRoundTrip bool
}

// MarkdownConfig controls parsing.
type MarkdownConfig struct {
	FrontMatter bool
	Extensions  []string
	Pattern     string
}

// BridgeConfig configures the websocket presentation bridge.
type BridgeConfig struct {
	Enabled bool
	Addr    string
	Path    string
}

// CommandsConfig captures command handler behaviour.
type CommandsConfig struct {
	Timeout time.Duration
}

// Features toggles optional modules.
type Features struct {
	Logger bool
	Bridge bool
}

// DefaultConfig returns the defaults used by the CLI and tests.
func DefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Provider: "console",
			Level:    "info",
		},
		Sync: SyncConfig{
			QueueSize:       256,
			MaxUndoEntries:  500,
			VerifyRoundTrip: true,
		},
		Markdown: MarkdownConfig{
			FrontMatter: true,
			Pattern:     "*.md",
		},
		Bridge: BridgeConfig{
			Addr: "127.0.0.1:7420",
			Path: "/ws",
		},
		Commands: CommandsConfig{
			Timeout: 5 * time.Second,
		},
	}
}

// Validate performs consistency checks.
func (cfg Config) Validate() error {
	if cfg.Sync.QueueSize < 0 {
		return ErrQueueSizeInvalid
	}
	if cfg.Sync.MaxUndoEntries < 0 {
		return ErrUndoLimitInvalid
	}
	if cfg.Sync.CoalesceWindow < 0 {
		return ErrCoalesceWindowInvalid
	}
	if cfg.Commands.Timeout < 0 {
		return ErrCommandTimeoutInvalid
	}
	if cfg.Bridge.Enabled {
		if !cfg.Features.Bridge {
			return ErrBridgeFeatureRequired
		}
		if strings.TrimSpace(cfg.Bridge.Addr) == "" {
			return ErrBridgeAddrRequired
		}
	}
	if path := strings.TrimSpace(cfg.Bridge.Path); path != "" && !strings.HasPrefix(path, "/") {
		return fmt.Errorf("%w: %s", ErrBridgePathInvalid, path)
	}
	if cfg.Features.Logger {
		provider := normalizeProvider(cfg.Logging.Provider)
		if provider == "" {
			return ErrLoggingProviderRequired
		}
		if !isSupportedProvider(provider) {
			return fmt.Errorf("%w: %s", ErrLoggingProviderUnknown, provider)
		}
		if level := strings.TrimSpace(cfg.Logging.Level); level != "" && !isSupportedLevel(level) {
			return fmt.Errorf("%w: %s", ErrLoggingLevelInvalid, level)
		}
		if format := strings.TrimSpace(cfg.Logging.Format); format != "" && !isSupportedFormat(provider, format) {
			return fmt.Errorf("%w: %s", ErrLoggingFormatInvalid, format)
		}
	}
	return nil
}

func normalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}

func isSupportedProvider(provider string) bool {
	switch provider {
	case "console", "gologger":
		return true
	default:
		return false
	}
}

func isSupportedLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal":
		return true
	default:
		return false
	}
}

func isSupportedFormat(provider, format string) bool {
	format = strings.ToLower(strings.TrimSpace(format))
	if provider == "console" {
		return format == "text" || format == "json"
	}
	switch format {
	case "json", "console", "text", "pretty":
		return true
	default:
		return false
	}
}
