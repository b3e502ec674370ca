package logging

import (
	"context"
	"strings"

	"github.com/goliatone/go-mdsync/pkg/interfaces"
)

const (
	rootModule       = "mdsync"
	parserModule     = "mdsync.parser"
	controllerModule = "mdsync.controller"
	historyModule    = "mdsync.history"
	bridgeModule     = "mdsync.bridge"
	hostModule       = "mdsync.host"
	commandsModule   = "mdsync.commands"
)

const (
	fieldDocumentPath = "document_path"
	fieldDocumentID   = "document_id"
	fieldSyncPass     = "sync_pass"
)

// ModuleLogger returns a module-scoped logger, defaulting to a no-op
// implementation when no provider is supplied. The returned logger attaches
// the module identifier as structured context so downstream entries can be
// filtered predictably.
func ModuleLogger(provider interfaces.LoggerProvider, module string) interfaces.Logger {
	if module == "" {
		module = rootModule
	}

	logger := NoOp()
	if provider != nil {
		if provided := provider.GetLogger(module); provided != nil {
			logger = provided
		}
	}

	if fieldsLogger, ok := logger.(interfaces.FieldsLogger); ok {
		return fieldsLogger.WithFields(map[string]any{
			"module": module,
		})
	}

	return WithFields(logger, map[string]any{
		"module": module,
	})
}

// ParserLogger returns the logger namespace reserved for parse and serialize workflows.
func ParserLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, parserModule)
}

// ControllerLogger returns the logger namespace reserved for the synchronization controller.
func ControllerLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, controllerModule)
}

// HistoryLogger returns the logger namespace reserved for the undo/redo manager.
func HistoryLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, historyModule)
}

// BridgeLogger returns the logger namespace reserved for the presentation bridge.
func BridgeLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, bridgeModule)
}

// HostLogger returns the logger namespace reserved for text hosts.
func HostLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, hostModule)
}

// CommandLogger returns the logger namespace for a command handler family,
// e.g. mdsync.commands.editor.
func CommandLogger(provider interfaces.LoggerProvider, family string) interfaces.Logger {
	family = strings.Trim(strings.TrimSpace(family), ".")
	if family == "" {
		return ModuleLogger(provider, commandsModule)
	}
	return ModuleLogger(provider, commandsModule+"."+family)
}

// WithDocumentContext enriches the provided logger with the document path, its
// identifier and the sync pass kind. Empty values are ignored.
func WithDocumentContext(logger interfaces.Logger, path, documentID, pass string) interfaces.Logger {
	fields := map[string]any{}
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		fields[fieldDocumentPath] = trimmed
	}
	if trimmed := strings.TrimSpace(documentID); trimmed != "" {
		fields[fieldDocumentID] = trimmed
	}
	if trimmed := strings.TrimSpace(pass); trimmed != "" {
		fields[fieldSyncPass] = trimmed
	}
	return WithFields(logger, fields)
}

// NoOp returns a logger that drops every log entry. It satisfies the Logger
// contract so services can safely operate when logging is disabled.
func NoOp() interfaces.Logger {
	return noopLogger{}
}

type noopLogger struct{}

var _ interfaces.Logger = noopLogger{}

func (noopLogger) Trace(string, ...any) {}
func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Fatal(string, ...any) {}

func (n noopLogger) WithFields(map[string]any) interfaces.Logger {
	return n
}

func (n noopLogger) WithContext(context.Context) interfaces.Logger {
	return n
}
