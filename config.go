package mdsync

import "github.com/goliatone/go-mdsync/internal/runtimeconfig"

var (
	ErrLoggingProviderRequired = runtimeconfig.ErrLoggingProviderRequired
	ErrLoggingProviderUnknown  = runtimeconfig.ErrLoggingProviderUnknown
	ErrLoggingLevelInvalid     = runtimeconfig.ErrLoggingLevelInvalid
	ErrLoggingFormatInvalid    = runtimeconfig.ErrLoggingFormatInvalid
	ErrQueueSizeInvalid        = runtimeconfig.ErrQueueSizeInvalid
	ErrUndoLimitInvalid        = runtimeconfig.ErrUndoLimitInvalid
	ErrCoalesceWindowInvalid   = runtimeconfig.ErrCoalesceWindowInvalid
	ErrBridgeFeatureRequired   = runtimeconfig.ErrBridgeFeatureRequired
	ErrBridgeAddrRequired      = runtimeconfig.ErrBridgeAddrRequired
	ErrBridgePathInvalid       = runtimeconfig.ErrBridgePathInvalid
	ErrCommandTimeoutInvalid   = runtimeconfig.ErrCommandTimeoutInvalid
)

type (
	Config         = runtimeconfig.Config
	LoggingConfig  = runtimeconfig.LoggingConfig
	SyncConfig     = runtimeconfig.SyncConfig
	MarkdownConfig = runtimeconfig.MarkdownConfig
	BridgeConfig   = runtimeconfig.BridgeConfig
	CommandsConfig = runtimeconfig.CommandsConfig
	Features       = runtimeconfig.Features
)

func DefaultConfig() Config {
	return runtimeconfig.DefaultConfig()
}
