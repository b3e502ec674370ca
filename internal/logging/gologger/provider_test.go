package gologger

import (
	"context"
	"testing"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-mdsync/internal/logging"
)

func TestNewProviderFormats(t *testing.T) {
	for _, format := range []string{"", "json", "console", "pretty"} {
		p, err := NewProvider(Config{Level: "debug", Format: format, Focus: []string{" mdsync.controller "}})
		if err != nil {
			t.Fatalf("format %q: %v", format, err)
		}
		logger := logging.WithFields(p.GetLogger("mdsync.controller"), map[string]any{"module": "mdsync.controller"})
		logger.Debug("controller.started")
	}
}

func TestNewProviderRejectsUnknownSettings(t *testing.T) {
	if _, err := NewProvider(Config{Format: "xml"}); err == nil {
		t.Fatal("expected unknown format to fail")
	}
	if _, err := NewProvider(Config{Level: "loud"}); err == nil {
		t.Fatal("expected unknown level to fail")
	}
}

func TestNilProviderFallsBackToNoOp(t *testing.T) {
	var p *Provider
	if p.GetLogger("mdsync") == nil {
		t.Fatal("expected a logger")
	}
}

func TestAdapterDelegates(t *testing.T) {
	stub := &stubLogger{}
	logger := adapt(stub)

	logger.Trace("a")
	logger.Debug("b")
	logger.Info("c")
	logger.Warn("d")
	logger.Error("e")
	logger.Fatal("f")

	fields := map[string]any{"document_path": "notes.md"}
	logging.WithFields(logger, fields)
	fields["document_path"] = "other.md"
	if len(stub.fields) != 1 || stub.fields[0]["document_path"] != "notes.md" {
		t.Fatalf("expected a private copy of the fields, got %v", stub.fields)
	}

	ctx := context.WithValue(context.Background(), struct{}{}, "v")
	logger.WithContext(ctx)
	if len(stub.contexts) != 1 || stub.contexts[0] != ctx {
		t.Fatalf("expected context to propagate, got %v", stub.contexts)
	}
	if got := len(stub.calls); got != 6 {
		t.Fatalf("expected 6 calls, got %d", got)
	}
}

type stubLogger struct {
	calls    []string
	fields   []map[string]any
	contexts []context.Context
}

var (
	_ glog.Logger       = (*stubLogger)(nil)
	_ glog.FieldsLogger = (*stubLogger)(nil)
)

func (s *stubLogger) Trace(msg string, _ ...any) { s.calls = append(s.calls, msg) }
func (s *stubLogger) Debug(msg string, _ ...any) { s.calls = append(s.calls, msg) }
func (s *stubLogger) Info(msg string, _ ...any)  { s.calls = append(s.calls, msg) }
func (s *stubLogger) Warn(msg string, _ ...any)  { s.calls = append(s.calls, msg) }
func (s *stubLogger) Error(msg string, _ ...any) { s.calls = append(s.calls, msg) }
func (s *stubLogger) Fatal(msg string, _ ...any) { s.calls = append(s.calls, msg) }

func (s *stubLogger) WithContext(ctx context.Context) glog.Logger {
	s.contexts = append(s.contexts, ctx)
	return s
}

func (s *stubLogger) WithFields(fields map[string]any) glog.Logger {
	s.fields = append(s.fields, fields)
	return s
}
