package runtimeconfig_test

import (
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-mdsync/internal/runtimeconfig"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := runtimeconfig.DefaultConfig().Validate(); err != nil {
		t.Fatalf("Validate() returned unexpected error: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*runtimeconfig.Config)
		want   error
	}{
		{"negative queue", func(c *runtimeconfig.Config) { c.Sync.QueueSize = -1 }, runtimeconfig.ErrQueueSizeInvalid},
		{"negative undo", func(c *runtimeconfig.Config) { c.Sync.MaxUndoEntries = -1 }, runtimeconfig.ErrUndoLimitInvalid},
		{"negative window", func(c *runtimeconfig.Config) { c.Sync.CoalesceWindow = -time.Millisecond }, runtimeconfig.ErrCoalesceWindowInvalid},
		{"negative timeout", func(c *runtimeconfig.Config) { c.Commands.Timeout = -time.Second }, runtimeconfig.ErrCommandTimeoutInvalid},
		{"bridge without feature", func(c *runtimeconfig.Config) { c.Bridge.Enabled = true }, runtimeconfig.ErrBridgeFeatureRequired},
		{"bridge without addr", func(c *runtimeconfig.Config) {
			c.Features.Bridge = true
			c.Bridge.Enabled = true
			c.Bridge.Addr = " "
		}, runtimeconfig.ErrBridgeAddrRequired},
		{"relative bridge path", func(c *runtimeconfig.Config) { c.Bridge.Path = "ws" }, runtimeconfig.ErrBridgePathInvalid},
		{"logger without provider", func(c *runtimeconfig.Config) {
			c.Features.Logger = true
			c.Logging.Provider = ""
		}, runtimeconfig.ErrLoggingProviderRequired},
		{"unknown provider", func(c *runtimeconfig.Config) {
			c.Features.Logger = true
			c.Logging.Provider = "syslog"
		}, runtimeconfig.ErrLoggingProviderUnknown},
		{"unknown level", func(c *runtimeconfig.Config) {
			c.Features.Logger = true
			c.Logging.Level = "verbose"
		}, runtimeconfig.ErrLoggingLevelInvalid},
		{"console pretty", func(c *runtimeconfig.Config) {
			c.Features.Logger = true
			c.Logging.Format = "pretty"
		}, runtimeconfig.ErrLoggingFormatInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := runtimeconfig.DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestConfigValidateAcceptsGologgerPretty(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Features.Logger = true
	cfg.Logging.Provider = "gologger"
	cfg.Logging.Format = "pretty"
	cfg.Logging.Level = "debug"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned unexpected error: %v", err)
	}
}

func TestConfigValidateAcceptsEnabledBridge(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Features.Bridge = true
	cfg.Bridge.Enabled = true

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned unexpected error: %v", err)
	}
}
